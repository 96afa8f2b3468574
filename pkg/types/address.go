package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lightpool/lightpool-go/pkg/bincode"
)

// Address is a 32-byte account or module address. Account addresses
// derive from the SHA-512 of an Ed25519 public key; module addresses
// are chain constants.
type Address [32]byte

// Module addresses baked into the chain.
var (
	ZeroAddress = Address{}
	TokenModule = Address{0: 0x01}
	SpotModule  = Address{0: 0x02}
)

func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return a, fmt.Errorf("parse address: %w", err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("parse address: got %d bytes, want %d", len(b), len(a))
	}
	copy(a[:], b)
	return a, nil
}

// AddressFromBytes copies a 32-byte slice into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != len(a) {
		return a, fmt.Errorf("address from bytes: got %d bytes, want %d", len(b), len(a))
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }
func (a Address) IsZero() bool   { return a == ZeroAddress }

func (a Address) EncodeTo(w *bincode.Writer) { w.Raw(a[:]) }

func (a *Address) DecodeFrom(r *bincode.Reader) error {
	p, err := r.Raw(len(a))
	if err != nil {
		return fmt.Errorf("address: %w", err)
	}
	copy(a[:], p)
	return nil
}

func (a Address) MarshalJSON() ([]byte, error) {
	return appendByteArrayJSON(make([]byte, 0, 4*len(a)+2), a[:]), nil
}

func (a *Address) UnmarshalJSON(data []byte) error {
	return unmarshalFixedBytes(data, a[:], "address")
}
