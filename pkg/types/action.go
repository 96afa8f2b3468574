package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lightpool/lightpool-go/pkg/bincode"
)

// Action is one call in a transaction: the objects it consumes, the
// module it targets, the packed function name, and the function's
// bincode-encoded payload.
type Action struct {
	Inputs   []ObjectID `json:"inputs"`
	Contract Address    `json:"contract"`
	Name     Name       `json:"action"`
	Params   Bytes      `json:"params"`
}

// EncodeText renders the action in the chain's JSON wire form: byte
// arrays as integer lists, the name as a bare u64 number. Field order
// is fixed: inputs, contract, action, params.
func (a Action) EncodeText() ([]byte, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode action text: %w", err)
	}
	return b, nil
}

// actionWire mirrors Action with pointer fields so decode can tell a
// missing field from a zero one.
type actionWire struct {
	Inputs   *[]ObjectID `json:"inputs"`
	Contract *Address    `json:"contract"`
	Name     *Name       `json:"action"`
	Params   *Bytes      `json:"params"`
}

// DecodeActionText parses the JSON wire form. Unknown or missing
// fields, wrong shapes, out-of-range byte values, and trailing data
// all fail with ErrMalformedText; no partial action escapes.
func DecodeActionText(data []byte) (Action, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var wire actionWire
	if err := dec.Decode(&wire); err != nil {
		if errors.Is(err, ErrMalformedText) {
			return Action{}, fmt.Errorf("decode action text: %w", err)
		}
		return Action{}, fmt.Errorf("decode action text: %s: %w", err, ErrMalformedText)
	}
	if dec.More() {
		return Action{}, fmt.Errorf("decode action text: trailing data: %w", ErrMalformedText)
	}
	if wire.Inputs == nil || wire.Contract == nil || wire.Name == nil || wire.Params == nil {
		return Action{}, fmt.Errorf("decode action text: missing field: %w", ErrMalformedText)
	}
	return Action{
		Inputs:   *wire.Inputs,
		Contract: *wire.Contract,
		Name:     *wire.Name,
		Params:   *wire.Params,
	}, nil
}

func (a Action) EncodeTo(w *bincode.Writer) {
	w.Seq(len(a.Inputs))
	for _, id := range a.Inputs {
		id.EncodeTo(w)
	}
	a.Contract.EncodeTo(w)
	w.U64(uint64(a.Name))
	w.VarBytes(a.Params)
}

func (a Action) Encode() []byte {
	w := bincode.NewWriter()
	a.EncodeTo(w)
	return w.Finish()
}

func (a *Action) DecodeFrom(r *bincode.Reader) error {
	n, err := r.Seq()
	if err != nil {
		return fmt.Errorf("action inputs: %w", err)
	}
	inputs := make([]ObjectID, n)
	for i := range inputs {
		if err := inputs[i].DecodeFrom(r); err != nil {
			return fmt.Errorf("action input %d: %w", i, err)
		}
	}
	var contract Address
	if err := contract.DecodeFrom(r); err != nil {
		return fmt.Errorf("action contract: %w", err)
	}
	name, err := r.U64()
	if err != nil {
		return fmt.Errorf("action name: %w", err)
	}
	params, err := r.VarBytes()
	if err != nil {
		return fmt.Errorf("action params: %w", err)
	}
	a.Inputs = inputs
	a.Contract = contract
	a.Name = Name(name)
	a.Params = params
	return nil
}

func DecodeAction(b []byte) (Action, error) {
	var a Action
	if err := a.DecodeFrom(bincode.NewReader(b)); err != nil {
		return Action{}, err
	}
	return a, nil
}

// Constructors for the chain's function calls. Input object order
// matters; the modules read them positionally.

func NewCreateTokenAction(p CreateTokenParams) Action {
	return Action{Inputs: []ObjectID{}, Contract: TokenModule, Name: NameCreate, Params: p.Encode()}
}

func NewTransferAction(balance ObjectID, p TransferParams) Action {
	return Action{Inputs: []ObjectID{balance}, Contract: TokenModule, Name: NameTransfer, Params: p.Encode()}
}

func NewMintAction(token ObjectID, p MintParams) Action {
	return Action{Inputs: []ObjectID{token}, Contract: TokenModule, Name: NameMint, Params: p.Encode()}
}

func NewSplitAction(balance ObjectID, p SplitParams) Action {
	return Action{Inputs: []ObjectID{balance}, Contract: TokenModule, Name: NameSplit, Params: p.Encode()}
}

// NewMergeAction folds src balances into dst. dst comes first in the
// inputs.
func NewMergeAction(dst ObjectID, src ...ObjectID) Action {
	inputs := append([]ObjectID{dst}, src...)
	return Action{Inputs: inputs, Contract: TokenModule, Name: NameMerge, Params: MergeParams{}.Encode()}
}

func NewCreateMarketAction(p CreateMarketParams) Action {
	return Action{Inputs: []ObjectID{}, Contract: SpotModule, Name: NameMarketCreate, Params: p.Encode()}
}

func NewUpdateMarketAction(market ObjectID, p UpdateMarketParams) Action {
	return Action{Inputs: []ObjectID{market}, Contract: SpotModule, Name: NameMarketUpdate, Params: p.Encode()}
}

// NewPlaceOrderAction funds the order from balance. Buys spend the
// quote balance, sells the base balance.
func NewPlaceOrderAction(market, balance ObjectID, p PlaceOrderParams) Action {
	return Action{Inputs: []ObjectID{market, balance}, Contract: SpotModule, Name: NameOrderPlace, Params: p.Encode()}
}

func NewCancelOrderAction(market ObjectID, p CancelOrderParams) Action {
	return Action{Inputs: []ObjectID{market}, Contract: SpotModule, Name: NameOrderCancel, Params: p.Encode()}
}
