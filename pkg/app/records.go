package app

import (
	"encoding/json"
	"fmt"

	"github.com/lightpool/lightpool-go/pkg/types"
)

// Object kinds stored under obj: keys.
const (
	KindToken   = "token"
	KindBalance = "balance"
	KindMarket  = "market"
)

// Object is the stored envelope of every chain object. Data holds the
// kind-specific record.
type Object struct {
	ID    types.ObjectID  `json:"object_id"`
	Kind  string          `json:"kind"`
	Owner types.Address   `json:"owner"`
	Data  json.RawMessage `json:"data"`
}

func newObject(id types.ObjectID, kind string, owner types.Address, record any) (Object, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return Object{}, fmt.Errorf("encode %s record: %w", kind, err)
	}
	return Object{ID: id, Kind: kind, Owner: owner, Data: data}, nil
}

func (o Object) decode(kind string, record any) error {
	if o.Kind != kind {
		return fmt.Errorf("object %s is a %s, not a %s", o.ID, o.Kind, kind)
	}
	if err := json.Unmarshal(o.Data, record); err != nil {
		return fmt.Errorf("decode %s record %s: %w", kind, o.ID, err)
	}
	return nil
}

// TokenRecord is the data of a token object. The token address is the
// object id's bytes.
type TokenRecord struct {
	Name        string        `json:"name"`
	Symbol      string        `json:"symbol"`
	TotalSupply uint64        `json:"total_supply"`
	Mintable    bool          `json:"mintable"`
	Creator     types.Address `json:"creator"`
	Address     types.Address `json:"address"`
}

// BalanceRecord is the data of a balance object. The owner lives on
// the envelope.
type BalanceRecord struct {
	Token  types.Address `json:"token"`
	Amount uint64        `json:"amount"`
}

// MarketRecord is the data of a market object. The two balance ids are
// the market's escrow pools; every resting order's funds sit in them
// until the order fills or is cancelled.
type MarketRecord struct {
	Name              string            `json:"name"`
	BaseToken         types.Address     `json:"base_token"`
	QuoteToken        types.Address     `json:"quote_token"`
	BaseBalanceID     types.ObjectID    `json:"base_balance_id"`
	QuoteBalanceID    types.ObjectID    `json:"quote_balance_id"`
	MinOrderSize      uint64            `json:"min_order_size"`
	TickSize          uint64            `json:"tick_size"`
	MakerFeeBps       uint16            `json:"maker_fee_bps"`
	TakerFeeBps       uint16            `json:"taker_fee_bps"`
	AllowMarketOrders bool              `json:"allow_market_orders"`
	LimitOrders       bool              `json:"limit_orders"`
	State             types.MarketState `json:"state"`
	Address           types.Address     `json:"address"`
}

// OrderRecord is a resting order. Escrow tracks the funds still held
// for it in the market's pool: base units for sells, quote units for
// buys (including the fee reserve). Seq gives time priority.
type OrderRecord struct {
	OrderID   types.OrderId   `json:"order_id"`
	MarketID  types.ObjectID  `json:"market_id"`
	Side      types.OrderSide `json:"side"`
	Price     uint64          `json:"price"`
	Amount    uint64          `json:"amount"`
	Remaining uint64          `json:"remaining"`
	Escrow    uint64          `json:"escrow"`
	Creator   types.Address   `json:"creator"`
	Seq       uint64          `json:"seq"`
}

// TradeRecord is one fill, persisted in fill order per market.
type TradeRecord struct {
	MarketID  types.ObjectID  `json:"market_id"`
	Price     uint64          `json:"price"`
	Amount    uint64          `json:"amount"`
	Maker     types.Address   `json:"maker"`
	Taker     types.Address   `json:"taker"`
	TakerSide types.OrderSide `json:"taker_side"`
	Seq       uint64          `json:"seq"`
	Height    uint64          `json:"height"`
}

// AccountRecord tracks an address's executed transaction count and its
// balance objects, so balance lookups never scan the store.
type AccountRecord struct {
	Address  types.Address    `json:"address"`
	Nonce    uint64           `json:"nonce"`
	Balances []types.ObjectID `json:"balances"`
}

func (a *AccountRecord) addBalance(id types.ObjectID) {
	a.Balances = append(a.Balances, id)
}

func (a *AccountRecord) removeBalance(id types.ObjectID) {
	for i, b := range a.Balances {
		if b == id {
			a.Balances = append(a.Balances[:i], a.Balances[i+1:]...)
			return
		}
	}
}

// ChainMeta is the devnet's global counters. Every executed
// transaction is its own block, so height and tx count advance
// together.
type ChainMeta struct {
	ChainID  string `json:"chain_id"`
	Height   uint64 `json:"height"`
	TxCount  uint64 `json:"tx_count"`
	OrderSeq uint64 `json:"order_seq"`
	TradeSeq uint64 `json:"trade_seq"`
}
