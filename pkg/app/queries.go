package app

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lightpool/lightpool-go/pkg/events"
	"github.com/lightpool/lightpool-go/pkg/storage"
	"github.com/lightpool/lightpool-go/pkg/types"
)

// BalanceEntry is a balance object resolved for queries.
type BalanceEntry struct {
	ID    types.ObjectID
	Owner types.Address
	BalanceRecord
}

// MarketEntry is a market object resolved for queries.
type MarketEntry struct {
	ID    types.ObjectID
	Owner types.Address
	MarketRecord
}

func (a *App) ChainInfo() ChainMeta {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.meta
}

func (a *App) Transaction(digest types.Digest) (types.TxEnvelope, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok, err := a.store.Get(storage.TxKey(digest))
	if err != nil || !ok {
		return types.TxEnvelope{}, false, err
	}
	var env types.TxEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return types.TxEnvelope{}, false, fmt.Errorf("decode tx %s: %w", digest, err)
	}
	return env, true, nil
}

func (a *App) Receipt(digest types.Digest) (events.Receipt, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loadReceipt(digest)
}

func (a *App) Object(id types.ObjectID) (Object, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.object(id)
}

func (a *App) object(id types.ObjectID) (Object, bool, error) {
	data, ok, err := a.store.Get(storage.ObjectKey(id))
	if err != nil || !ok {
		return Object{}, false, err
	}
	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return Object{}, false, fmt.Errorf("decode object %s: %w", id, err)
	}
	return obj, true, nil
}

func (a *App) Balance(id types.ObjectID) (BalanceEntry, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	obj, ok, err := a.object(id)
	if err != nil || !ok {
		return BalanceEntry{}, false, err
	}
	var rec BalanceRecord
	if err := obj.decode(KindBalance, &rec); err != nil {
		return BalanceEntry{}, false, err
	}
	return BalanceEntry{ID: obj.ID, Owner: obj.Owner, BalanceRecord: rec}, true, nil
}

func (a *App) Market(id types.ObjectID) (MarketEntry, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	obj, ok, err := a.object(id)
	if err != nil || !ok {
		return MarketEntry{}, false, err
	}
	var rec MarketRecord
	if err := obj.decode(KindMarket, &rec); err != nil {
		return MarketEntry{}, false, err
	}
	return MarketEntry{ID: obj.ID, Owner: obj.Owner, MarketRecord: rec}, true, nil
}

// Markets lists every market, sorted by name.
func (a *App) Markets() ([]MarketEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	kvs, err := a.store.List(storage.ObjectPrefix())
	if err != nil {
		return nil, fmt.Errorf("scan objects: %w", err)
	}
	var markets []MarketEntry
	for _, kv := range kvs {
		var obj Object
		if err := json.Unmarshal(kv.Value, &obj); err != nil {
			return nil, fmt.Errorf("decode object %s: %w", kv.Key, err)
		}
		if obj.Kind != KindMarket {
			continue
		}
		var rec MarketRecord
		if err := obj.decode(KindMarket, &rec); err != nil {
			return nil, err
		}
		markets = append(markets, MarketEntry{ID: obj.ID, Owner: obj.Owner, MarketRecord: rec})
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].Name < markets[j].Name })
	return markets, nil
}

// OrderBook returns aggregated levels, best price first on both sides.
// depth 0 means every level.
func (a *App) OrderBook(marketID types.ObjectID, depth int) (bids, asks []Level, err error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	bk, ok := a.books[marketID]
	if !ok {
		return nil, nil, fmt.Errorf("unknown market %s", marketID)
	}
	return bk.levels(types.Buy, depth), bk.levels(types.Sell, depth), nil
}

// Orders lists an address's resting orders, oldest first. A nil market
// id searches every market.
func (a *App) Orders(creator types.Address, marketID *types.ObjectID) ([]OrderRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	prefix := storage.OrderPrefix()
	if marketID != nil {
		prefix = storage.MarketOrderPrefix(*marketID)
	}
	kvs, err := a.store.List(prefix)
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}
	var orders []OrderRecord
	for _, kv := range kvs {
		var ord OrderRecord
		if err := json.Unmarshal(kv.Value, &ord); err != nil {
			return nil, fmt.Errorf("decode order %s: %w", kv.Key, err)
		}
		if ord.Creator == creator {
			orders = append(orders, ord)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].Seq < orders[j].Seq })
	return orders, nil
}

// Trades lists a market's fills in fill order. limit > 0 keeps only
// the most recent fills.
func (a *App) Trades(marketID types.ObjectID, limit int) ([]TradeRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	kvs, err := a.store.List(storage.TradePrefix(marketID))
	if err != nil {
		return nil, fmt.Errorf("scan trades: %w", err)
	}
	trades := make([]TradeRecord, 0, len(kvs))
	for _, kv := range kvs {
		var tr TradeRecord
		if err := json.Unmarshal(kv.Value, &tr); err != nil {
			return nil, fmt.Errorf("decode trade %s: %w", kv.Key, err)
		}
		trades = append(trades, tr)
	}
	if limit > 0 && len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	return trades, nil
}

// Account returns an address's record and its resolved balances. An
// unseen address gets a zero record.
func (a *App) Account(addr types.Address) (AccountRecord, []BalanceEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acct := AccountRecord{Address: addr}
	data, ok, err := a.store.Get(storage.AccountKey(addr))
	if err != nil {
		return AccountRecord{}, nil, err
	}
	if ok {
		if err := json.Unmarshal(data, &acct); err != nil {
			return AccountRecord{}, nil, fmt.Errorf("decode account %s: %w", addr, err)
		}
	}
	balances := make([]BalanceEntry, 0, len(acct.Balances))
	for _, id := range acct.Balances {
		obj, ok, err := a.object(id)
		if err != nil {
			return AccountRecord{}, nil, err
		}
		if !ok {
			continue
		}
		var rec BalanceRecord
		if err := obj.decode(KindBalance, &rec); err != nil {
			return AccountRecord{}, nil, err
		}
		balances = append(balances, BalanceEntry{ID: obj.ID, Owner: obj.Owner, BalanceRecord: rec})
	}
	return acct, balances, nil
}
