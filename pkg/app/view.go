package app

import (
	"encoding/json"
	"fmt"

	"github.com/lightpool/lightpool-go/pkg/events"
	"github.com/lightpool/lightpool-go/pkg/storage"
	"github.com/lightpool/lightpool-go/pkg/types"
)

// stateView buffers a transaction's writes over the committed store.
// Reads see the buffered state; nothing touches the store until
// commit, so a failed transaction leaves no trace.
type stateView struct {
	store storage.ObjectStore
	dirty map[string][]byte
	gone  map[string]struct{}
}

func newView(store storage.ObjectStore) *stateView {
	return &stateView{
		store: store,
		dirty: make(map[string][]byte),
		gone:  make(map[string]struct{}),
	}
}

func (v *stateView) get(key []byte) ([]byte, bool, error) {
	k := string(key)
	if _, ok := v.gone[k]; ok {
		return nil, false, nil
	}
	if val, ok := v.dirty[k]; ok {
		return val, true, nil
	}
	return v.store.Get(key)
}

func (v *stateView) put(key, value []byte) {
	k := string(key)
	delete(v.gone, k)
	v.dirty[k] = value
}

func (v *stateView) del(key []byte) {
	k := string(key)
	delete(v.dirty, k)
	v.gone[k] = struct{}{}
}

func (v *stateView) commit() error {
	for k := range v.gone {
		if err := v.store.Delete([]byte(k)); err != nil {
			return fmt.Errorf("commit delete %s: %w", k, err)
		}
	}
	for k, val := range v.dirty {
		if err := v.store.Put([]byte(k), val); err != nil {
			return fmt.Errorf("commit put %s: %w", k, err)
		}
	}
	return nil
}

func (v *stateView) putJSON(key []byte, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	v.put(key, data)
	return nil
}

func (v *stateView) loadObject(id types.ObjectID) (Object, error) {
	data, ok, err := v.get(storage.ObjectKey(id))
	if err != nil {
		return Object{}, err
	}
	if !ok {
		return Object{}, fmt.Errorf("unknown object %s", id)
	}
	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return Object{}, fmt.Errorf("decode object %s: %w", id, err)
	}
	return obj, nil
}

func (v *stateView) saveObject(obj Object) error {
	return v.putJSON(storage.ObjectKey(obj.ID), obj)
}

func (v *stateView) deleteObject(id types.ObjectID) {
	v.del(storage.ObjectKey(id))
}

// loadAccount returns a zero record for unseen addresses.
func (v *stateView) loadAccount(addr types.Address) (AccountRecord, error) {
	data, ok, err := v.get(storage.AccountKey(addr))
	if err != nil {
		return AccountRecord{}, err
	}
	if !ok {
		return AccountRecord{Address: addr}, nil
	}
	var acct AccountRecord
	if err := json.Unmarshal(data, &acct); err != nil {
		return AccountRecord{}, fmt.Errorf("decode account %s: %w", addr, err)
	}
	return acct, nil
}

func (v *stateView) saveAccount(acct AccountRecord) error {
	return v.putJSON(storage.AccountKey(acct.Address), acct)
}

func (v *stateView) loadOrder(marketID types.ObjectID, orderID types.OrderId) (OrderRecord, bool, error) {
	data, ok, err := v.get(storage.OrderKey(marketID, orderID))
	if err != nil || !ok {
		return OrderRecord{}, false, err
	}
	var ord OrderRecord
	if err := json.Unmarshal(data, &ord); err != nil {
		return OrderRecord{}, false, fmt.Errorf("decode order %s: %w", orderID, err)
	}
	return ord, true, nil
}

func (v *stateView) saveOrder(ord OrderRecord) error {
	return v.putJSON(storage.OrderKey(ord.MarketID, ord.OrderID), ord)
}

func (v *stateView) deleteOrder(marketID types.ObjectID, orderID types.OrderId) {
	v.del(storage.OrderKey(marketID, orderID))
}

func (v *stateView) saveTrade(trade TradeRecord) error {
	return v.putJSON(storage.TradeKey(trade.MarketID, trade.Seq), trade)
}

func (v *stateView) saveMeta(meta ChainMeta) error {
	return v.putJSON(storage.ChainMetaKey(), meta)
}

func (v *stateView) saveTx(digest types.Digest, env types.TxEnvelope) error {
	return v.putJSON(storage.TxKey(digest), env)
}

func (v *stateView) saveReceipt(digest types.Digest, rcpt events.Receipt) error {
	return v.putJSON(storage.ReceiptKey(digest), rcpt)
}

func (v *stateView) marketByName(name string) (types.ObjectID, bool, error) {
	data, ok, err := v.get(storage.MarketNameKey(name))
	if err != nil || !ok {
		return types.ObjectID{}, false, err
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return types.ObjectID{}, false, fmt.Errorf("decode market name index %q: %w", name, err)
	}
	id, err := types.ParseObjectID(s)
	if err != nil {
		return types.ObjectID{}, false, fmt.Errorf("market name index %q: %w", name, err)
	}
	return id, true, nil
}

func (v *stateView) indexMarketName(name string, id types.ObjectID) error {
	return v.putJSON(storage.MarketNameKey(name), id.String())
}
