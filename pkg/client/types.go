package client

import (
	"encoding/json"

	"github.com/lightpool/lightpool-go/pkg/events"
	"github.com/lightpool/lightpool-go/pkg/types"
)

// Query result shapes. The node serves exactly these, so the SDK and
// the server cannot drift apart.

type SubmitResult struct {
	Digest  types.Digest   `json:"digest"`
	Receipt events.Receipt `json:"receipt"`
}

// ObjectInfo is the generic view of any chain object. Data holds the
// kind-specific record.
type ObjectInfo struct {
	ID    types.ObjectID  `json:"object_id"`
	Kind  string          `json:"kind"`
	Owner types.Address   `json:"owner"`
	Data  json.RawMessage `json:"data"`
}

type BalanceInfo struct {
	Address  types.Address  `json:"address"`
	ObjectID types.ObjectID `json:"object_id"`
	Token    types.Address  `json:"token"`
	Amount   uint64         `json:"amount"`
}

type MarketInfo struct {
	MarketID          types.ObjectID    `json:"market_id"`
	MarketAddress     types.Address     `json:"market_address"`
	Name              string            `json:"name"`
	BaseToken         types.Address     `json:"base_token"`
	QuoteToken        types.Address     `json:"quote_token"`
	MinOrderSize      uint64            `json:"min_order_size"`
	TickSize          uint64            `json:"tick_size"`
	MakerFeeBps       uint16            `json:"maker_fee_bps"`
	TakerFeeBps       uint16            `json:"taker_fee_bps"`
	AllowMarketOrders bool              `json:"allow_market_orders"`
	State             types.MarketState `json:"state"`
}

// PriceLevel aggregates the resting volume at one price.
type PriceLevel struct {
	Price  uint64 `json:"price"`
	Amount uint64 `json:"amount"`
	Orders int    `json:"orders"`
}

type OrderBook struct {
	MarketID types.ObjectID `json:"market_id"`
	Bids     []PriceLevel   `json:"bids"`
	Asks     []PriceLevel   `json:"asks"`
}

type Order struct {
	OrderID   types.OrderId   `json:"order_id"`
	MarketID  types.ObjectID  `json:"market_id"`
	Side      types.OrderSide `json:"side"`
	Price     uint64          `json:"price"`
	Amount    uint64          `json:"amount"`
	Remaining uint64          `json:"remaining"`
	Creator   types.Address   `json:"creator"`
}

type Trade struct {
	MarketID  types.ObjectID  `json:"market_id"`
	Price     uint64          `json:"price"`
	Amount    uint64          `json:"amount"`
	Maker     types.Address   `json:"maker"`
	Taker     types.Address   `json:"taker"`
	TakerSide types.OrderSide `json:"taker_side"`
}

type AccountInfo struct {
	Address  types.Address `json:"address"`
	Nonce    uint64        `json:"nonce"`
	Balances []BalanceInfo `json:"balances"`
}

type ChainInfo struct {
	ChainID string `json:"chain_id"`
	Height  uint64 `json:"height"`
	TxCount uint64 `json:"tx_count"`
}
