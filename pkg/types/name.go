package types

import "fmt"

// Name packs a short module function name into a u64. Up to 12
// characters, base-32: '_' is 0, '1'..'5' map to 1..5, 'a'..'z' map to
// 6..31. Shorter names are zero-padded on the right, so "ord_place"
// and "ord_place___" pack identically.
type Name uint64

const nameMaxLen = 12

// Function names dispatched by the token and spot modules.
var (
	NameCreate       = mustName("create")
	NameTransfer     = mustName("transfer")
	NameMint         = mustName("mint")
	NameSplit        = mustName("split")
	NameMerge        = mustName("merge")
	NameMarketCreate = mustName("mkt_create")
	NameMarketUpdate = mustName("mkt_update")
	NameOrderPlace   = mustName("ord_place")
	NameOrderCancel  = mustName("ord_cancel")
)

func ParseName(s string) (Name, error) {
	if s == "" {
		return 0, fmt.Errorf("parse name: empty")
	}
	if len(s) > nameMaxLen {
		return 0, fmt.Errorf("parse name %q: longer than %d chars", s, nameMaxLen)
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		d, ok := nameDigit(s[i])
		if !ok {
			return 0, fmt.Errorf("parse name %q: invalid char %q", s, s[i])
		}
		v = v*32 + uint64(d)
	}
	for i := len(s); i < nameMaxLen; i++ {
		v *= 32
	}
	return Name(v), nil
}

func mustName(s string) Name {
	n, err := ParseName(s)
	if err != nil {
		panic(err)
	}
	return n
}

func nameDigit(c byte) (byte, bool) {
	switch {
	case c == '_':
		return 0, true
	case c >= '1' && c <= '5':
		return c - '1' + 1, true
	case c >= 'a' && c <= 'z':
		return c - 'a' + 6, true
	}
	return 0, false
}

func nameChar(d byte) byte {
	switch {
	case d == 0:
		return '_'
	case d <= 5:
		return '1' + d - 1
	default:
		return 'a' + d - 6
	}
}

// String unpacks the name, dropping right padding. Names that really
// end in '_' are indistinguishable from padding; none of the chain's
// function names do.
func (n Name) String() string {
	var buf [nameMaxLen]byte
	v := uint64(n)
	for i := nameMaxLen - 1; i >= 0; i-- {
		buf[i] = nameChar(byte(v % 32))
		v /= 32
	}
	end := nameMaxLen
	for end > 0 && buf[end-1] == '_' {
		end--
	}
	return string(buf[:end])
}
