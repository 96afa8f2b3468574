package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedText reports text (JSON) input that does not decode into
// the expected shape. Binary decode errors are reported by pkg/bincode.
var ErrMalformedText = errors.New("malformed text encoding")

// Bytes is an opaque byte sequence that renders in JSON as an array of
// integers 0..255, matching the chain's serde output. The default Go
// encoding of []byte (base64) never appears on the wire.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	return appendByteArrayJSON(make([]byte, 0, len(b)*4+2), b), nil
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	vals, err := parseByteArrayJSON(data)
	if err != nil {
		return fmt.Errorf("bytes: %w", err)
	}
	*b = vals
	return nil
}

func appendByteArrayJSON(dst []byte, p []byte) []byte {
	dst = append(dst, '[')
	for i, v := range p {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = strconv.AppendUint(dst, uint64(v), 10)
	}
	return append(dst, ']')
}

func jsonUnmarshalStrict(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", err, ErrMalformedText)
	}
	return nil
}

func parseByteArrayJSON(data []byte) ([]byte, error) {
	var vals []int
	if err := jsonUnmarshalStrict(data, &vals); err != nil {
		return nil, err
	}
	out := make([]byte, len(vals))
	for i, v := range vals {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("element %d out of byte range: %w", v, ErrMalformedText)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// unmarshalFixedBytes decodes a JSON integer array into a fixed-size
// destination, rejecting length mismatches.
func unmarshalFixedBytes(data []byte, dst []byte, what string) error {
	vals, err := parseByteArrayJSON(data)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if len(vals) != len(dst) {
		return fmt.Errorf("%s: got %d bytes, want %d: %w", what, len(vals), len(dst), ErrMalformedText)
	}
	copy(dst, vals)
	return nil
}
