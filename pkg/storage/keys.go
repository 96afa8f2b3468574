package storage

import (
	"fmt"

	"github.com/lightpool/lightpool-go/pkg/types"
)

// Key schema. Hex-string ids keep keys readable in debugging tools:
//
//   obj:<object id hex>                  → object record (JSON)
//   tx:<digest hex>                      → submitted envelope (JSON)
//   rcpt:<digest hex>                    → execution receipt (JSON)
//   acct:<address hex>                   → account record (JSON)
//   ord:<market id hex>:<order id hex>   → resting order (JSON)
//   trade:<market id hex>:<seq>          → fill record (JSON)
//   mktname:<name>                       → market id (JSON string)
//   meta:chain                           → chain counters (JSON)
//
// Trade seq is zero-padded so lexicographic order is fill order.
const (
	prefixObject     = "obj:"
	prefixTx         = "tx:"
	prefixReceipt    = "rcpt:"
	prefixAccount    = "acct:"
	prefixOrder      = "ord:"
	prefixTrade      = "trade:"
	prefixMarketName = "mktname:"
	keyChainMeta     = "meta:chain"
)

func ObjectKey(id types.ObjectID) []byte {
	return []byte(prefixObject + id.String())
}

func ObjectPrefix() []byte { return []byte(prefixObject) }

func TxKey(digest types.Digest) []byte {
	return []byte(prefixTx + digest.String())
}

func ReceiptKey(digest types.Digest) []byte {
	return []byte(prefixReceipt + digest.String())
}

func AccountKey(addr types.Address) []byte {
	return []byte(prefixAccount + addr.String())
}

func AccountPrefix() []byte { return []byte(prefixAccount) }

func OrderKey(marketID types.ObjectID, orderID types.OrderId) []byte {
	return []byte(prefixOrder + marketID.String() + ":" + orderID.String())
}

func OrderPrefix() []byte { return []byte(prefixOrder) }

func MarketOrderPrefix(marketID types.ObjectID) []byte {
	return []byte(prefixOrder + marketID.String() + ":")
}

func TradeKey(marketID types.ObjectID, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixTrade, marketID.String(), seq))
}

func TradePrefix(marketID types.ObjectID) []byte {
	return []byte(prefixTrade + marketID.String() + ":")
}

func MarketNameKey(name string) []byte {
	return []byte(prefixMarketName + name)
}

func ChainMetaKey() []byte { return []byte(keyChainMeta) }
