package types

import (
	"fmt"

	"github.com/lightpool/lightpool-go/pkg/bincode"
)

// OrderSide is the direction of an order.
type OrderSide uint32

const (
	Buy OrderSide = iota
	Sell
)

func (s OrderSide) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return fmt.Sprintf("side(%d)", uint32(s))
}

// Opposite returns the side an order matches against.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s OrderSide) EncodeTo(w *bincode.Writer) { w.U32(uint32(s)) }

func (s *OrderSide) DecodeFrom(r *bincode.Reader) error {
	v, err := r.Variant(2)
	if err != nil {
		return fmt.Errorf("order side: %w", err)
	}
	*s = OrderSide(v)
	return nil
}

// TimeInForce controls how long a limit order may rest.
type TimeInForce uint32

const (
	GTC TimeInForce = iota // good til cancelled
	IOC                    // immediate or cancel
	FOK                    // fill or kill
)

func (t TimeInForce) String() string {
	switch t {
	case GTC:
		return "gtc"
	case IOC:
		return "ioc"
	case FOK:
		return "fok"
	}
	return fmt.Sprintf("tif(%d)", uint32(t))
}

func (t TimeInForce) EncodeTo(w *bincode.Writer) { w.U32(uint32(t)) }

func (t *TimeInForce) DecodeFrom(r *bincode.Reader) error {
	v, err := r.Variant(3)
	if err != nil {
		return fmt.Errorf("time in force: %w", err)
	}
	*t = TimeInForce(v)
	return nil
}

// MarketState gates which order flow a market accepts.
type MarketState uint32

const (
	MarketActive MarketState = iota
	MarketPaused
	MarketPostOnly
	MarketCancelOnly
	MarketClosed
)

func (m MarketState) String() string {
	switch m {
	case MarketActive:
		return "active"
	case MarketPaused:
		return "paused"
	case MarketPostOnly:
		return "post_only"
	case MarketCancelOnly:
		return "cancel_only"
	case MarketClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", uint32(m))
}

func (m MarketState) EncodeTo(w *bincode.Writer) { w.U32(uint32(m)) }

func (m *MarketState) DecodeFrom(r *bincode.Reader) error {
	v, err := r.Variant(5)
	if err != nil {
		return fmt.Errorf("market state: %w", err)
	}
	*m = MarketState(v)
	return nil
}

// ExecutionStatus is the outcome of a transaction in its receipt.
type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "success"
	StatusFailure ExecutionStatus = "failure"
)

func (s ExecutionStatus) IsSuccess() bool { return s == StatusSuccess }
