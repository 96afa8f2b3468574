// Package events defines the payloads the chain modules emit and the
// receipt envelope that carries them. Payload bytes are the binary
// codec; the envelope itself travels as JSON inside receipts and over
// the websocket stream.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/lightpool/lightpool-go/pkg/bincode"
	"github.com/lightpool/lightpool-go/pkg/types"
)

// Call names as emitted by the chain modules.
const (
	CallTokenCreated   = "token_created"
	CallTransfer       = "Transfer"
	CallMarketCreated  = "market_created"
	CallOrderCreated   = "order_created"
	CallOrderFilled    = "order_filled"
	CallOrderCancelled = "order_cancelled"
)

// EventType names the module function that emitted the event.
type EventType struct {
	Call string `json:"Call"`
}

// Payload holds encoded event bytes. On the wire it keeps the chain's
// enum shape, {"Bytes": [ints]}.
type Payload []byte

func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Bytes types.Bytes `json:"Bytes"`
	}{Bytes: types.Bytes(p)})
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var w struct {
		Bytes types.Bytes `json:"Bytes"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("event payload: %w", types.ErrMalformedText)
	}
	*p = Payload(w.Bytes)
	return nil
}

// Event is the envelope carried in receipts and on the event stream.
type Event struct {
	EventType EventType `json:"event_type"`
	Data      Payload   `json:"data"`
}

func New(call string, payload []byte) Event {
	return Event{EventType: EventType{Call: call}, Data: payload}
}

// Receipt reports the outcome of executing one transaction. Effects
// stays schema-free; the chain fills it with created, mutated and
// deleted object ids.
type Receipt struct {
	Status  types.ExecutionStatus      `json:"status"`
	Events  []Event                    `json:"events"`
	Effects map[string]json.RawMessage `json:"effects"`
	GasUsed uint64                     `json:"gas_used"`
	Error   string                     `json:"error,omitempty"`
}

func (r Receipt) IsSuccess() bool { return r.Status.IsSuccess() }

// Parse decodes the payload of a known call name. Events with an
// unknown name come back untouched so callers can still inspect the
// raw bytes.
func Parse(ev Event) (any, error) {
	switch ev.EventType.Call {
	case CallTokenCreated:
		return DecodeTokenCreated(ev.Data)
	case CallTransfer:
		return DecodeTransfer(ev.Data)
	case CallMarketCreated:
		return DecodeMarketCreated(ev.Data)
	case CallOrderCreated:
		return DecodeOrderCreated(ev.Data)
	case CallOrderFilled:
		return DecodeOrderFilled(ev.Data)
	case CallOrderCancelled:
		return DecodeOrderCancelled(ev.Data)
	default:
		return ev, nil
	}
}

// TokenCreatedEvent reports a new token and the creator's initial
// balance object.
type TokenCreatedEvent struct {
	TokenID      types.ObjectID
	TokenAddress types.Address
	Name         string
	Symbol       string
	TotalSupply  uint64
	Creator      types.Address
	Mintable     bool
	To           types.Address
	BalanceID    types.ObjectID
}

func (e TokenCreatedEvent) EncodeTo(w *bincode.Writer) {
	e.TokenID.EncodeTo(w)
	e.TokenAddress.EncodeTo(w)
	w.String(e.Name)
	w.String(e.Symbol)
	w.U64(e.TotalSupply)
	e.Creator.EncodeTo(w)
	w.Bool(e.Mintable)
	e.To.EncodeTo(w)
	e.BalanceID.EncodeTo(w)
}

func (e TokenCreatedEvent) Encode() []byte {
	w := bincode.NewWriter()
	e.EncodeTo(w)
	return w.Finish()
}

func (e TokenCreatedEvent) Envelope() Event {
	return New(CallTokenCreated, e.Encode())
}

func DecodeTokenCreated(b []byte) (TokenCreatedEvent, error) {
	var e TokenCreatedEvent
	r := bincode.NewReader(b)
	var err error
	if err = e.TokenID.DecodeFrom(r); err != nil {
		return TokenCreatedEvent{}, fmt.Errorf("token created id: %w", err)
	}
	if err = e.TokenAddress.DecodeFrom(r); err != nil {
		return TokenCreatedEvent{}, fmt.Errorf("token created address: %w", err)
	}
	if e.Name, err = r.String(); err != nil {
		return TokenCreatedEvent{}, fmt.Errorf("token created name: %w", err)
	}
	if e.Symbol, err = r.String(); err != nil {
		return TokenCreatedEvent{}, fmt.Errorf("token created symbol: %w", err)
	}
	if e.TotalSupply, err = r.U64(); err != nil {
		return TokenCreatedEvent{}, fmt.Errorf("token created supply: %w", err)
	}
	if err = e.Creator.DecodeFrom(r); err != nil {
		return TokenCreatedEvent{}, fmt.Errorf("token created creator: %w", err)
	}
	if e.Mintable, err = r.Bool(); err != nil {
		return TokenCreatedEvent{}, fmt.Errorf("token created mintable: %w", err)
	}
	if err = e.To.DecodeFrom(r); err != nil {
		return TokenCreatedEvent{}, fmt.Errorf("token created to: %w", err)
	}
	if err = e.BalanceID.DecodeFrom(r); err != nil {
		return TokenCreatedEvent{}, fmt.Errorf("token created balance id: %w", err)
	}
	return e, nil
}

// TransferEvent reports balance movement. RemainderID is set when the
// source balance was split and a remainder object survives.
type TransferEvent struct {
	From          types.Address
	To            types.Address
	Amount        uint64
	FromBalanceID types.ObjectID
	ToBalanceID   types.ObjectID
	RemainderID   *types.ObjectID
	Remainder     uint64
}

func (e TransferEvent) EncodeTo(w *bincode.Writer) {
	e.From.EncodeTo(w)
	e.To.EncodeTo(w)
	w.U64(e.Amount)
	e.FromBalanceID.EncodeTo(w)
	e.ToBalanceID.EncodeTo(w)
	w.Option(e.RemainderID != nil)
	if e.RemainderID != nil {
		e.RemainderID.EncodeTo(w)
	}
	w.U64(e.Remainder)
}

func (e TransferEvent) Encode() []byte {
	w := bincode.NewWriter()
	e.EncodeTo(w)
	return w.Finish()
}

func (e TransferEvent) Envelope() Event {
	return New(CallTransfer, e.Encode())
}

func DecodeTransfer(b []byte) (TransferEvent, error) {
	var e TransferEvent
	r := bincode.NewReader(b)
	var err error
	if err = e.From.DecodeFrom(r); err != nil {
		return TransferEvent{}, fmt.Errorf("transfer from: %w", err)
	}
	if err = e.To.DecodeFrom(r); err != nil {
		return TransferEvent{}, fmt.Errorf("transfer to: %w", err)
	}
	if e.Amount, err = r.U64(); err != nil {
		return TransferEvent{}, fmt.Errorf("transfer amount: %w", err)
	}
	if err = e.FromBalanceID.DecodeFrom(r); err != nil {
		return TransferEvent{}, fmt.Errorf("transfer from balance: %w", err)
	}
	if err = e.ToBalanceID.DecodeFrom(r); err != nil {
		return TransferEvent{}, fmt.Errorf("transfer to balance: %w", err)
	}
	present, err := r.Option()
	if err != nil {
		return TransferEvent{}, fmt.Errorf("transfer remainder tag: %w", err)
	}
	if present {
		var id types.ObjectID
		if err = id.DecodeFrom(r); err != nil {
			return TransferEvent{}, fmt.Errorf("transfer remainder id: %w", err)
		}
		e.RemainderID = &id
	}
	if e.Remainder, err = r.U64(); err != nil {
		return TransferEvent{}, fmt.Errorf("transfer remainder: %w", err)
	}
	return e, nil
}

// MarketCreatedEvent reports a new spot market and its escrow balance
// objects.
type MarketCreatedEvent struct {
	MarketID          types.ObjectID
	MarketAddress     types.Address
	Name              string
	BaseToken         types.Address
	QuoteToken        types.Address
	BaseBalanceID     types.ObjectID
	QuoteBalanceID    types.ObjectID
	MinOrderSize      uint64
	TickSize          uint64
	MakerFeeBps       uint16
	TakerFeeBps       uint16
	AllowMarketOrders bool
	State             types.MarketState
	Creator           types.Address
}

func (e MarketCreatedEvent) EncodeTo(w *bincode.Writer) {
	e.MarketID.EncodeTo(w)
	e.MarketAddress.EncodeTo(w)
	w.String(e.Name)
	e.BaseToken.EncodeTo(w)
	e.QuoteToken.EncodeTo(w)
	e.BaseBalanceID.EncodeTo(w)
	e.QuoteBalanceID.EncodeTo(w)
	w.U64(e.MinOrderSize)
	w.U64(e.TickSize)
	w.U16(e.MakerFeeBps)
	w.U16(e.TakerFeeBps)
	w.Bool(e.AllowMarketOrders)
	e.State.EncodeTo(w)
	e.Creator.EncodeTo(w)
}

func (e MarketCreatedEvent) Encode() []byte {
	w := bincode.NewWriter()
	e.EncodeTo(w)
	return w.Finish()
}

func (e MarketCreatedEvent) Envelope() Event {
	return New(CallMarketCreated, e.Encode())
}

func DecodeMarketCreated(b []byte) (MarketCreatedEvent, error) {
	var e MarketCreatedEvent
	r := bincode.NewReader(b)
	var err error
	if err = e.MarketID.DecodeFrom(r); err != nil {
		return MarketCreatedEvent{}, fmt.Errorf("market created id: %w", err)
	}
	if err = e.MarketAddress.DecodeFrom(r); err != nil {
		return MarketCreatedEvent{}, fmt.Errorf("market created address: %w", err)
	}
	if e.Name, err = r.String(); err != nil {
		return MarketCreatedEvent{}, fmt.Errorf("market created name: %w", err)
	}
	if err = e.BaseToken.DecodeFrom(r); err != nil {
		return MarketCreatedEvent{}, fmt.Errorf("market created base token: %w", err)
	}
	if err = e.QuoteToken.DecodeFrom(r); err != nil {
		return MarketCreatedEvent{}, fmt.Errorf("market created quote token: %w", err)
	}
	if err = e.BaseBalanceID.DecodeFrom(r); err != nil {
		return MarketCreatedEvent{}, fmt.Errorf("market created base balance: %w", err)
	}
	if err = e.QuoteBalanceID.DecodeFrom(r); err != nil {
		return MarketCreatedEvent{}, fmt.Errorf("market created quote balance: %w", err)
	}
	if e.MinOrderSize, err = r.U64(); err != nil {
		return MarketCreatedEvent{}, fmt.Errorf("market created min order size: %w", err)
	}
	if e.TickSize, err = r.U64(); err != nil {
		return MarketCreatedEvent{}, fmt.Errorf("market created tick size: %w", err)
	}
	if e.MakerFeeBps, err = r.U16(); err != nil {
		return MarketCreatedEvent{}, fmt.Errorf("market created maker fee: %w", err)
	}
	if e.TakerFeeBps, err = r.U16(); err != nil {
		return MarketCreatedEvent{}, fmt.Errorf("market created taker fee: %w", err)
	}
	if e.AllowMarketOrders, err = r.Bool(); err != nil {
		return MarketCreatedEvent{}, fmt.Errorf("market created allow market orders: %w", err)
	}
	if err = e.State.DecodeFrom(r); err != nil {
		return MarketCreatedEvent{}, fmt.Errorf("market created state: %w", err)
	}
	if err = e.Creator.DecodeFrom(r); err != nil {
		return MarketCreatedEvent{}, fmt.Errorf("market created creator: %w", err)
	}
	return e, nil
}

// OrderCreatedEvent reports an order accepted onto the book.
type OrderCreatedEvent struct {
	OrderID  types.OrderId
	MarketID types.ObjectID
	Side     types.OrderSide
	Amount   uint64
	Price    uint64
	Creator  types.Address
}

func (e OrderCreatedEvent) EncodeTo(w *bincode.Writer) {
	e.OrderID.EncodeTo(w)
	e.MarketID.EncodeTo(w)
	e.Side.EncodeTo(w)
	w.U64(e.Amount)
	w.U64(e.Price)
	e.Creator.EncodeTo(w)
}

func (e OrderCreatedEvent) Encode() []byte {
	w := bincode.NewWriter()
	e.EncodeTo(w)
	return w.Finish()
}

func (e OrderCreatedEvent) Envelope() Event {
	return New(CallOrderCreated, e.Encode())
}

func DecodeOrderCreated(b []byte) (OrderCreatedEvent, error) {
	var e OrderCreatedEvent
	r := bincode.NewReader(b)
	var err error
	if err = e.OrderID.DecodeFrom(r); err != nil {
		return OrderCreatedEvent{}, fmt.Errorf("order created id: %w", err)
	}
	if err = e.MarketID.DecodeFrom(r); err != nil {
		return OrderCreatedEvent{}, fmt.Errorf("order created market: %w", err)
	}
	if err = e.Side.DecodeFrom(r); err != nil {
		return OrderCreatedEvent{}, fmt.Errorf("order created side: %w", err)
	}
	if e.Amount, err = r.U64(); err != nil {
		return OrderCreatedEvent{}, fmt.Errorf("order created amount: %w", err)
	}
	if e.Price, err = r.U64(); err != nil {
		return OrderCreatedEvent{}, fmt.Errorf("order created price: %w", err)
	}
	if err = e.Creator.DecodeFrom(r); err != nil {
		return OrderCreatedEvent{}, fmt.Errorf("order created creator: %w", err)
	}
	return e, nil
}

// OrderFilledEvent reports a single fill. Partial fills emit one event
// per matched resting order.
type OrderFilledEvent struct {
	OrderID  types.OrderId
	MarketID types.ObjectID
	Amount   uint64
	Price    uint64
	Maker    types.Address
	Taker    types.Address
}

func (e OrderFilledEvent) EncodeTo(w *bincode.Writer) {
	e.OrderID.EncodeTo(w)
	e.MarketID.EncodeTo(w)
	w.U64(e.Amount)
	w.U64(e.Price)
	e.Maker.EncodeTo(w)
	e.Taker.EncodeTo(w)
}

func (e OrderFilledEvent) Encode() []byte {
	w := bincode.NewWriter()
	e.EncodeTo(w)
	return w.Finish()
}

func (e OrderFilledEvent) Envelope() Event {
	return New(CallOrderFilled, e.Encode())
}

func DecodeOrderFilled(b []byte) (OrderFilledEvent, error) {
	var e OrderFilledEvent
	r := bincode.NewReader(b)
	var err error
	if err = e.OrderID.DecodeFrom(r); err != nil {
		return OrderFilledEvent{}, fmt.Errorf("order filled id: %w", err)
	}
	if err = e.MarketID.DecodeFrom(r); err != nil {
		return OrderFilledEvent{}, fmt.Errorf("order filled market: %w", err)
	}
	if e.Amount, err = r.U64(); err != nil {
		return OrderFilledEvent{}, fmt.Errorf("order filled amount: %w", err)
	}
	if e.Price, err = r.U64(); err != nil {
		return OrderFilledEvent{}, fmt.Errorf("order filled price: %w", err)
	}
	if err = e.Maker.DecodeFrom(r); err != nil {
		return OrderFilledEvent{}, fmt.Errorf("order filled maker: %w", err)
	}
	if err = e.Taker.DecodeFrom(r); err != nil {
		return OrderFilledEvent{}, fmt.Errorf("order filled taker: %w", err)
	}
	return e, nil
}

// OrderCancelledEvent reports an order leaving the book without a
// fill.
type OrderCancelledEvent struct {
	OrderID  types.OrderId
	MarketID types.ObjectID
}

func (e OrderCancelledEvent) EncodeTo(w *bincode.Writer) {
	e.OrderID.EncodeTo(w)
	e.MarketID.EncodeTo(w)
}

func (e OrderCancelledEvent) Encode() []byte {
	w := bincode.NewWriter()
	e.EncodeTo(w)
	return w.Finish()
}

func (e OrderCancelledEvent) Envelope() Event {
	return New(CallOrderCancelled, e.Encode())
}

func DecodeOrderCancelled(b []byte) (OrderCancelledEvent, error) {
	var e OrderCancelledEvent
	r := bincode.NewReader(b)
	var err error
	if err = e.OrderID.DecodeFrom(r); err != nil {
		return OrderCancelledEvent{}, fmt.Errorf("order cancelled id: %w", err)
	}
	if err = e.MarketID.DecodeFrom(r); err != nil {
		return OrderCancelledEvent{}, fmt.Errorf("order cancelled market: %w", err)
	}
	return e, nil
}
