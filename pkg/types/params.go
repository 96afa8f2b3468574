package types

import (
	"fmt"

	"github.com/lightpool/lightpool-go/pkg/bincode"
)

// Payloads of the token module's functions.

type CreateTokenParams struct {
	Name        string
	Symbol      string
	TotalSupply uint64
	Mintable    bool
	To          Address
}

func (p CreateTokenParams) EncodeTo(w *bincode.Writer) {
	w.String(p.Name)
	w.String(p.Symbol)
	w.U64(p.TotalSupply)
	w.Bool(p.Mintable)
	p.To.EncodeTo(w)
}

func (p CreateTokenParams) Encode() []byte {
	w := bincode.NewWriter()
	p.EncodeTo(w)
	return w.Finish()
}

func (p *CreateTokenParams) DecodeFrom(r *bincode.Reader) error {
	var err error
	if p.Name, err = r.String(); err != nil {
		return fmt.Errorf("create token name: %w", err)
	}
	if p.Symbol, err = r.String(); err != nil {
		return fmt.Errorf("create token symbol: %w", err)
	}
	if p.TotalSupply, err = r.U64(); err != nil {
		return fmt.Errorf("create token supply: %w", err)
	}
	if p.Mintable, err = r.Bool(); err != nil {
		return fmt.Errorf("create token mintable: %w", err)
	}
	if err = p.To.DecodeFrom(r); err != nil {
		return fmt.Errorf("create token to: %w", err)
	}
	return nil
}

func DecodeCreateTokenParams(b []byte) (CreateTokenParams, error) {
	var p CreateTokenParams
	if err := p.DecodeFrom(bincode.NewReader(b)); err != nil {
		return CreateTokenParams{}, err
	}
	return p, nil
}

type TransferParams struct {
	To     Address
	Amount uint64
}

func (p TransferParams) EncodeTo(w *bincode.Writer) {
	p.To.EncodeTo(w)
	w.U64(p.Amount)
}

func (p TransferParams) Encode() []byte {
	w := bincode.NewWriter()
	p.EncodeTo(w)
	return w.Finish()
}

func (p *TransferParams) DecodeFrom(r *bincode.Reader) error {
	if err := p.To.DecodeFrom(r); err != nil {
		return fmt.Errorf("transfer to: %w", err)
	}
	var err error
	if p.Amount, err = r.U64(); err != nil {
		return fmt.Errorf("transfer amount: %w", err)
	}
	return nil
}

func DecodeTransferParams(b []byte) (TransferParams, error) {
	var p TransferParams
	if err := p.DecodeFrom(bincode.NewReader(b)); err != nil {
		return TransferParams{}, err
	}
	return p, nil
}

type MintParams struct {
	To     Address
	Amount uint64
}

func (p MintParams) EncodeTo(w *bincode.Writer) {
	p.To.EncodeTo(w)
	w.U64(p.Amount)
}

func (p MintParams) Encode() []byte {
	w := bincode.NewWriter()
	p.EncodeTo(w)
	return w.Finish()
}

func (p *MintParams) DecodeFrom(r *bincode.Reader) error {
	if err := p.To.DecodeFrom(r); err != nil {
		return fmt.Errorf("mint to: %w", err)
	}
	var err error
	if p.Amount, err = r.U64(); err != nil {
		return fmt.Errorf("mint amount: %w", err)
	}
	return nil
}

func DecodeMintParams(b []byte) (MintParams, error) {
	var p MintParams
	if err := p.DecodeFrom(bincode.NewReader(b)); err != nil {
		return MintParams{}, err
	}
	return p, nil
}

// SplitParams carves Amount out of a balance object into a new object.
type SplitParams struct {
	Amount uint64
}

func (p SplitParams) EncodeTo(w *bincode.Writer) { w.U64(p.Amount) }

func (p SplitParams) Encode() []byte {
	w := bincode.NewWriter()
	p.EncodeTo(w)
	return w.Finish()
}

func (p *SplitParams) DecodeFrom(r *bincode.Reader) error {
	var err error
	if p.Amount, err = r.U64(); err != nil {
		return fmt.Errorf("split amount: %w", err)
	}
	return nil
}

func DecodeSplitParams(b []byte) (SplitParams, error) {
	var p SplitParams
	if err := p.DecodeFrom(bincode.NewReader(b)); err != nil {
		return SplitParams{}, err
	}
	return p, nil
}

// MergeParams folds the second input balance into the first. No
// payload; encodes to zero bytes.
type MergeParams struct{}

func (MergeParams) EncodeTo(*bincode.Writer) {}

func (MergeParams) Encode() []byte { return []byte{} }

func (*MergeParams) DecodeFrom(*bincode.Reader) error { return nil }

// Payloads of the spot module's functions.

type CreateMarketParams struct {
	Name              string
	BaseToken         Address
	QuoteToken        Address
	MinOrderSize      uint64
	TickSize          uint64
	MakerFeeBps       uint16
	TakerFeeBps       uint16
	AllowMarketOrders bool
	State             MarketState
	LimitOrder        bool
}

func (p CreateMarketParams) EncodeTo(w *bincode.Writer) {
	w.String(p.Name)
	p.BaseToken.EncodeTo(w)
	p.QuoteToken.EncodeTo(w)
	w.U64(p.MinOrderSize)
	w.U64(p.TickSize)
	w.U16(p.MakerFeeBps)
	w.U16(p.TakerFeeBps)
	w.Bool(p.AllowMarketOrders)
	p.State.EncodeTo(w)
	w.Bool(p.LimitOrder)
}

func (p CreateMarketParams) Encode() []byte {
	w := bincode.NewWriter()
	p.EncodeTo(w)
	return w.Finish()
}

func (p *CreateMarketParams) DecodeFrom(r *bincode.Reader) error {
	var err error
	if p.Name, err = r.String(); err != nil {
		return fmt.Errorf("create market name: %w", err)
	}
	if err = p.BaseToken.DecodeFrom(r); err != nil {
		return fmt.Errorf("create market base: %w", err)
	}
	if err = p.QuoteToken.DecodeFrom(r); err != nil {
		return fmt.Errorf("create market quote: %w", err)
	}
	if p.MinOrderSize, err = r.U64(); err != nil {
		return fmt.Errorf("create market min size: %w", err)
	}
	if p.TickSize, err = r.U64(); err != nil {
		return fmt.Errorf("create market tick: %w", err)
	}
	if p.MakerFeeBps, err = r.U16(); err != nil {
		return fmt.Errorf("create market maker fee: %w", err)
	}
	if p.TakerFeeBps, err = r.U16(); err != nil {
		return fmt.Errorf("create market taker fee: %w", err)
	}
	if p.AllowMarketOrders, err = r.Bool(); err != nil {
		return fmt.Errorf("create market allow market: %w", err)
	}
	if err = p.State.DecodeFrom(r); err != nil {
		return fmt.Errorf("create market: %w", err)
	}
	if p.LimitOrder, err = r.Bool(); err != nil {
		return fmt.Errorf("create market limit order: %w", err)
	}
	return nil
}

func DecodeCreateMarketParams(b []byte) (CreateMarketParams, error) {
	var p CreateMarketParams
	if err := p.DecodeFrom(bincode.NewReader(b)); err != nil {
		return CreateMarketParams{}, err
	}
	return p, nil
}

// UpdateMarketParams patches a market in place. Every field is
// optional on the wire; nil means leave unchanged.
type UpdateMarketParams struct {
	MinOrderSize      *uint64
	MakerFeeBps       *uint16
	TakerFeeBps       *uint16
	AllowMarketOrders *bool
	State             *MarketState
}

func (p UpdateMarketParams) EncodeTo(w *bincode.Writer) {
	w.Option(p.MinOrderSize != nil)
	if p.MinOrderSize != nil {
		w.U64(*p.MinOrderSize)
	}
	w.Option(p.MakerFeeBps != nil)
	if p.MakerFeeBps != nil {
		w.U16(*p.MakerFeeBps)
	}
	w.Option(p.TakerFeeBps != nil)
	if p.TakerFeeBps != nil {
		w.U16(*p.TakerFeeBps)
	}
	w.Option(p.AllowMarketOrders != nil)
	if p.AllowMarketOrders != nil {
		w.Bool(*p.AllowMarketOrders)
	}
	w.Option(p.State != nil)
	if p.State != nil {
		p.State.EncodeTo(w)
	}
}

func (p UpdateMarketParams) Encode() []byte {
	w := bincode.NewWriter()
	p.EncodeTo(w)
	return w.Finish()
}

func (p *UpdateMarketParams) DecodeFrom(r *bincode.Reader) error {
	some, err := r.Option()
	if err != nil {
		return fmt.Errorf("update market min size: %w", err)
	}
	if some {
		v, err := r.U64()
		if err != nil {
			return fmt.Errorf("update market min size: %w", err)
		}
		p.MinOrderSize = &v
	}
	if some, err = r.Option(); err != nil {
		return fmt.Errorf("update market maker fee: %w", err)
	}
	if some {
		v, err := r.U16()
		if err != nil {
			return fmt.Errorf("update market maker fee: %w", err)
		}
		p.MakerFeeBps = &v
	}
	if some, err = r.Option(); err != nil {
		return fmt.Errorf("update market taker fee: %w", err)
	}
	if some {
		v, err := r.U16()
		if err != nil {
			return fmt.Errorf("update market taker fee: %w", err)
		}
		p.TakerFeeBps = &v
	}
	if some, err = r.Option(); err != nil {
		return fmt.Errorf("update market allow market: %w", err)
	}
	if some {
		v, err := r.Bool()
		if err != nil {
			return fmt.Errorf("update market allow market: %w", err)
		}
		p.AllowMarketOrders = &v
	}
	if some, err = r.Option(); err != nil {
		return fmt.Errorf("update market state: %w", err)
	}
	if some {
		var v MarketState
		if err := v.DecodeFrom(r); err != nil {
			return fmt.Errorf("update market: %w", err)
		}
		p.State = &v
	}
	return nil
}

func DecodeUpdateMarketParams(b []byte) (UpdateMarketParams, error) {
	var p UpdateMarketParams
	if err := p.DecodeFrom(bincode.NewReader(b)); err != nil {
		return UpdateMarketParams{}, err
	}
	return p, nil
}

type CancelOrderParams struct {
	OrderID OrderId
}

func (p CancelOrderParams) EncodeTo(w *bincode.Writer) {
	p.OrderID.EncodeTo(w)
}

func (p CancelOrderParams) Encode() []byte {
	w := bincode.NewWriter()
	p.EncodeTo(w)
	return w.Finish()
}

func (p *CancelOrderParams) DecodeFrom(r *bincode.Reader) error {
	if err := p.OrderID.DecodeFrom(r); err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	return nil
}

func DecodeCancelOrderParams(b []byte) (CancelOrderParams, error) {
	var p CancelOrderParams
	if err := p.DecodeFrom(bincode.NewReader(b)); err != nil {
		return CancelOrderParams{}, err
	}
	return p, nil
}
