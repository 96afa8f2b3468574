package types

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lightpool/lightpool-go/pkg/bincode"
)

// ObjectID names an object in the chain's object store (balances,
// tokens, markets, orders). 32 random bytes.
type ObjectID [32]byte

func NewObjectID() ObjectID {
	var id ObjectID
	if _, err := rand.Read(id[:]); err != nil {
		panic(fmt.Sprintf("object id entropy: %v", err))
	}
	return id
}

func ParseObjectID(s string) (ObjectID, error) {
	var id ObjectID
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return id, fmt.Errorf("parse object id: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("parse object id: got %d bytes, want %d", len(b), len(id))
	}
	copy(id[:], b)
	return id, nil
}

func (id ObjectID) String() string { return "0x" + hex.EncodeToString(id[:]) }
func (id ObjectID) IsZero() bool   { return id == ObjectID{} }

func (id ObjectID) EncodeTo(w *bincode.Writer) { w.Raw(id[:]) }

func (id *ObjectID) DecodeFrom(r *bincode.Reader) error {
	p, err := r.Raw(len(id))
	if err != nil {
		return fmt.Errorf("object id: %w", err)
	}
	copy(id[:], p)
	return nil
}

func (id ObjectID) MarshalJSON() ([]byte, error) {
	return appendByteArrayJSON(make([]byte, 0, 4*len(id)+2), id[:]), nil
}

func (id *ObjectID) UnmarshalJSON(data []byte) error {
	return unmarshalFixedBytes(data, id[:], "object id")
}

// OrderId identifies a resting order: four u64 words, little-endian on
// the wire. The spot module derives it from the order object id.
type OrderId [32]byte

func OrderIdFromWords(words [4]uint64) OrderId {
	var id OrderId
	for i, w := range words {
		binary.LittleEndian.PutUint64(id[i*8:], w)
	}
	return id
}

func (id OrderId) Words() [4]uint64 {
	var words [4]uint64
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(id[i*8:])
	}
	return words
}

func ParseOrderId(s string) (OrderId, error) {
	var id OrderId
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return id, fmt.Errorf("parse order id: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("parse order id: got %d bytes, want %d", len(b), len(id))
	}
	copy(id[:], b)
	return id, nil
}

func (id OrderId) String() string { return "0x" + hex.EncodeToString(id[:]) }

func (id OrderId) EncodeTo(w *bincode.Writer) { w.Raw(id[:]) }

func (id *OrderId) DecodeFrom(r *bincode.Reader) error {
	p, err := r.Raw(len(id))
	if err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	copy(id[:], p)
	return nil
}

func (id OrderId) MarshalJSON() ([]byte, error) {
	return appendByteArrayJSON(make([]byte, 0, 4*len(id)+2), id[:]), nil
}

func (id *OrderId) UnmarshalJSON(data []byte) error {
	return unmarshalFixedBytes(data, id[:], "order id")
}

// Digest is the SHA-256 of a transaction's signing bytes.
type Digest [32]byte

func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return d, fmt.Errorf("parse digest: %w", err)
	}
	if len(b) != len(d) {
		return d, fmt.Errorf("parse digest: got %d bytes, want %d", len(b), len(d))
	}
	copy(d[:], b)
	return d, nil
}

func (d Digest) String() string { return "0x" + hex.EncodeToString(d[:]) }

func (d Digest) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Digest) UnmarshalJSON(data []byte) error {
	var s string
	if err := jsonUnmarshalStrict(data, &s); err != nil {
		return fmt.Errorf("digest: %w", err)
	}
	parsed, err := ParseDigest(s)
	if err != nil {
		return fmt.Errorf("digest: %s: %w", err, ErrMalformedText)
	}
	*d = parsed
	return nil
}
