package api

import (
	"encoding/json"

	"github.com/lightpool/lightpool-go/pkg/app"
	"github.com/lightpool/lightpool-go/pkg/client"
)

// The node serves the DTO structs from pkg/client directly, so the SDK
// and the server cannot drift apart. This file holds only the JSON-RPC
// envelope, the server-side param shapes, and the record-to-DTO
// mapping.

type rpcRequest struct {
	Jsonrpc string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	Jsonrpc string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *client.RPCError `json:"error,omitempty"`
}

// Param shapes mirror the key names the SDK sends.

type digestParams struct {
	Digest string `json:"digest"`
}

type objectParams struct {
	ObjectID string `json:"objectId"`
}

type balanceParams struct {
	Address  string `json:"address"`
	ObjectID string `json:"objectId"`
}

type marketParams struct {
	MarketID string `json:"marketId"`
}

type orderBookParams struct {
	MarketID string `json:"marketId"`
	Depth    int    `json:"depth"`
}

type ordersParams struct {
	Address  string `json:"address"`
	MarketID string `json:"marketId"`
}

type tradesParams struct {
	MarketID string `json:"marketId"`
	Limit    int    `json:"limit"`
}

type addressParams struct {
	Address string `json:"address"`
}

// List results are wrapped in an object so the shapes can grow fields
// without breaking callers.

type marketsResult struct {
	Markets []client.MarketInfo `json:"markets"`
}

type ordersResult struct {
	Orders []client.Order `json:"orders"`
}

type tradesResult struct {
	Trades []client.Trade `json:"trades"`
}

func toObjectInfo(obj app.Object) client.ObjectInfo {
	return client.ObjectInfo{
		ID:    obj.ID,
		Kind:  obj.Kind,
		Owner: obj.Owner,
		Data:  obj.Data,
	}
}

func toBalanceInfo(b app.BalanceEntry) client.BalanceInfo {
	return client.BalanceInfo{
		Address:  b.Owner,
		ObjectID: b.ID,
		Token:    b.Token,
		Amount:   b.Amount,
	}
}

func toMarketInfo(m app.MarketEntry) client.MarketInfo {
	return client.MarketInfo{
		MarketID:          m.ID,
		MarketAddress:     m.Address,
		Name:              m.Name,
		BaseToken:         m.BaseToken,
		QuoteToken:        m.QuoteToken,
		MinOrderSize:      m.MinOrderSize,
		TickSize:          m.TickSize,
		MakerFeeBps:       m.MakerFeeBps,
		TakerFeeBps:       m.TakerFeeBps,
		AllowMarketOrders: m.AllowMarketOrders,
		State:             m.State,
	}
}

func toPriceLevels(levels []app.Level) []client.PriceLevel {
	out := make([]client.PriceLevel, len(levels))
	for i, lv := range levels {
		out[i] = client.PriceLevel{Price: lv.Price, Amount: lv.Amount, Orders: lv.Orders}
	}
	return out
}

func toOrder(o app.OrderRecord) client.Order {
	return client.Order{
		OrderID:   o.OrderID,
		MarketID:  o.MarketID,
		Side:      o.Side,
		Price:     o.Price,
		Amount:    o.Amount,
		Remaining: o.Remaining,
		Creator:   o.Creator,
	}
}

func toTrade(t app.TradeRecord) client.Trade {
	return client.Trade{
		MarketID:  t.MarketID,
		Price:     t.Price,
		Amount:    t.Amount,
		Maker:     t.Maker,
		Taker:     t.Taker,
		TakerSide: t.TakerSide,
	}
}
