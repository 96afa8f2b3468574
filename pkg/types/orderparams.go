package types

import (
	"fmt"

	"github.com/lightpool/lightpool-go/pkg/bincode"
)

// OrderParams selects the execution mode of an order. Exactly one of
// the three variants appears on the wire, tagged by its u32 index.
type OrderParams interface {
	EncodeTo(w *bincode.Writer)
	orderParams()
}

// LimitOrderParams rests at the limit price until filled, per its time
// in force. Variant 0.
type LimitOrderParams struct {
	TIF TimeInForce
}

// MarketOrderParams crosses immediately; Slippage bounds how far past
// the touch the fill may walk, in basis points. Variant 1.
type MarketOrderParams struct {
	Slippage uint64
}

// TriggerOrderParams arms a stop or take-profit. The trigger type is a
// single byte on the wire. Variant 2.
type TriggerOrderParams struct {
	TriggerPrice uint64
	IsMarket     bool
	TriggerType  uint8
}

func (LimitOrderParams) orderParams()   {}
func (MarketOrderParams) orderParams()  {}
func (TriggerOrderParams) orderParams() {}

func (p LimitOrderParams) EncodeTo(w *bincode.Writer) {
	w.U32(0)
	p.TIF.EncodeTo(w)
}

func (p MarketOrderParams) EncodeTo(w *bincode.Writer) {
	w.U32(1)
	w.U64(p.Slippage)
}

func (p TriggerOrderParams) EncodeTo(w *bincode.Writer) {
	w.U32(2)
	w.U64(p.TriggerPrice)
	w.Bool(p.IsMarket)
	w.U8(p.TriggerType)
}

func decodeOrderParams(r *bincode.Reader) (OrderParams, error) {
	idx, err := r.Variant(3)
	if err != nil {
		return nil, fmt.Errorf("order params: %w", err)
	}
	switch idx {
	case 0:
		var p LimitOrderParams
		if err := p.TIF.DecodeFrom(r); err != nil {
			return nil, fmt.Errorf("limit params: %w", err)
		}
		return p, nil
	case 1:
		var p MarketOrderParams
		if p.Slippage, err = r.U64(); err != nil {
			return nil, fmt.Errorf("market params: %w", err)
		}
		return p, nil
	default:
		var p TriggerOrderParams
		if p.TriggerPrice, err = r.U64(); err != nil {
			return nil, fmt.Errorf("trigger params: %w", err)
		}
		if p.IsMarket, err = r.Bool(); err != nil {
			return nil, fmt.Errorf("trigger params: %w", err)
		}
		if p.TriggerType, err = r.U8(); err != nil {
			return nil, fmt.Errorf("trigger params: %w", err)
		}
		return p, nil
	}
}

// PlaceOrderParams is the payload of an ord_place action. Fields
// encode in declaration order.
type PlaceOrderParams struct {
	Side       OrderSide
	Amount     uint64
	Type       OrderParams
	LimitPrice uint64
}

func (p PlaceOrderParams) EncodeTo(w *bincode.Writer) {
	p.Side.EncodeTo(w)
	w.U64(p.Amount)
	p.Type.EncodeTo(w)
	w.U64(p.LimitPrice)
}

func (p PlaceOrderParams) Encode() []byte {
	w := bincode.NewWriter()
	p.EncodeTo(w)
	return w.Finish()
}

func (p *PlaceOrderParams) DecodeFrom(r *bincode.Reader) error {
	if err := p.Side.DecodeFrom(r); err != nil {
		return fmt.Errorf("place order: %w", err)
	}
	var err error
	if p.Amount, err = r.U64(); err != nil {
		return fmt.Errorf("place order amount: %w", err)
	}
	if p.Type, err = decodeOrderParams(r); err != nil {
		return fmt.Errorf("place order: %w", err)
	}
	if p.LimitPrice, err = r.U64(); err != nil {
		return fmt.Errorf("place order limit price: %w", err)
	}
	return nil
}

func DecodePlaceOrderParams(b []byte) (PlaceOrderParams, error) {
	var p PlaceOrderParams
	if err := p.DecodeFrom(bincode.NewReader(b)); err != nil {
		return PlaceOrderParams{}, err
	}
	return p, nil
}
