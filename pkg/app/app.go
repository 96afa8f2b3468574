// Package app executes LightPool transactions against the object
// store: the token module (balances as consumable objects) and the
// spot module (markets with price-time FIFO orderbooks). Every
// executed transaction is its own block on the devnet.
package app

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/lightpool/lightpool-go/pkg/crypto"
	"github.com/lightpool/lightpool-go/pkg/events"
	"github.com/lightpool/lightpool-go/pkg/storage"
	"github.com/lightpool/lightpool-go/pkg/types"
)

const defaultChainID = "lightpool-devnet"

// Flat gas schedule. Execution never meters mid-action; the total is
// checked against the budget after the fact.
const (
	gasTxBase    uint64 = 1_000
	gasPerAction uint64 = 1_000
	gasPerEvent  uint64 = 100
)

// App holds the chain state: the backing store, the global counters,
// and one in-memory book per market. A single mutex serializes
// execution; queries share a read lock.
type App struct {
	store   storage.ObjectStore
	log     *zap.Logger
	journal storage.Journal
	notify  func(events.Event)

	mu    sync.RWMutex
	meta  ChainMeta
	books map[types.ObjectID]*book
}

type Option func(*App)

func WithLogger(log *zap.Logger) Option {
	return func(a *App) { a.log = log }
}

func WithJournal(j storage.Journal) Option {
	return func(a *App) { a.journal = j }
}

// WithNotify registers a hook called for every event of a committed
// transaction, in emission order.
func WithNotify(fn func(events.Event)) Option {
	return func(a *App) { a.notify = fn }
}

// WithChainID sets the chain id for a fresh store. An existing store
// keeps the id it was created with.
func WithChainID(id string) Option {
	return func(a *App) { a.meta.ChainID = id }
}

// New loads the chain counters and rebuilds every market's book from
// the stored orders.
func New(store storage.ObjectStore, opts ...Option) (*App, error) {
	a := &App{
		store:   store,
		log:     zap.NewNop(),
		journal: storage.NewNopJournal(),
		meta:    ChainMeta{ChainID: defaultChainID},
		books:   make(map[types.ObjectID]*book),
	}
	for _, opt := range opts {
		opt(a)
	}

	data, ok, err := store.Get(storage.ChainMetaKey())
	if err != nil {
		return nil, fmt.Errorf("load chain meta: %w", err)
	}
	if ok {
		if err := json.Unmarshal(data, &a.meta); err != nil {
			return nil, fmt.Errorf("decode chain meta: %w", err)
		}
	}

	if err := a.loadBooks(); err != nil {
		return nil, err
	}
	a.log.Info("app ready",
		zap.String("chain_id", a.meta.ChainID),
		zap.Uint64("height", a.meta.Height),
		zap.Int("markets", len(a.books)))
	return a, nil
}

func (a *App) loadBooks() error {
	objs, err := a.store.List(storage.ObjectPrefix())
	if err != nil {
		return fmt.Errorf("scan objects: %w", err)
	}
	for _, kv := range objs {
		var obj Object
		if err := json.Unmarshal(kv.Value, &obj); err != nil {
			return fmt.Errorf("decode object %s: %w", kv.Key, err)
		}
		if obj.Kind == KindMarket {
			a.books[obj.ID] = newBook()
		}
	}

	orders, err := a.store.List(storage.OrderPrefix())
	if err != nil {
		return fmt.Errorf("scan orders: %w", err)
	}
	byMarket := make(map[types.ObjectID][]*OrderRecord)
	for _, kv := range orders {
		ord := new(OrderRecord)
		if err := json.Unmarshal(kv.Value, ord); err != nil {
			return fmt.Errorf("decode order %s: %w", kv.Key, err)
		}
		byMarket[ord.MarketID] = append(byMarket[ord.MarketID], ord)
	}
	for id, list := range byMarket {
		a.books[id] = rebuildBook(list)
	}
	return nil
}

// reloadBook restores one market's book from the committed store after
// a failed transaction mutated it.
func (a *App) reloadBook(marketID types.ObjectID) error {
	_, ok, err := a.store.Get(storage.ObjectKey(marketID))
	if err != nil {
		return fmt.Errorf("reload book %s: %w", marketID, err)
	}
	if !ok {
		delete(a.books, marketID)
		return nil
	}
	kvs, err := a.store.List(storage.MarketOrderPrefix(marketID))
	if err != nil {
		return fmt.Errorf("reload book %s: %w", marketID, err)
	}
	orders := make([]*OrderRecord, 0, len(kvs))
	for _, kv := range kvs {
		ord := new(OrderRecord)
		if err := json.Unmarshal(kv.Value, ord); err != nil {
			return fmt.Errorf("reload book %s: %w", marketID, err)
		}
		orders = append(orders, ord)
	}
	a.books[marketID] = rebuildBook(orders)
	return nil
}

// execCtx threads one transaction's staged state through the module
// handlers.
type execCtx struct {
	view    *stateView
	meta    *ChainMeta
	sender  types.Address
	digest  types.Digest
	action  int
	objSeq  uint32
	events  []events.Event
	fx      *effects
	touched map[types.ObjectID]struct{}
}

func (ec *execCtx) emit(ev events.Event) { ec.events = append(ec.events, ev) }

func (ec *execCtx) touch(marketID types.ObjectID) { ec.touched[marketID] = struct{}{} }

// newObjectID derives a fresh id from the transaction digest, the
// action index, and a per-transaction counter. Deterministic, so a
// replayed store rebuilds identically.
func (ec *execCtx) newObjectID() types.ObjectID {
	var buf [40]byte
	copy(buf[:32], ec.digest[:])
	binary.LittleEndian.PutUint32(buf[32:36], uint32(ec.action))
	binary.LittleEndian.PutUint32(buf[36:40], ec.objSeq)
	ec.objSeq++
	return types.ObjectID(sha256.Sum256(buf[:]))
}

// effects tracks which objects a transaction created, mutated, and
// deleted. An object created and deleted in the same transaction
// leaves no trace.
type effects struct {
	state map[string]byte
}

func newEffects() *effects {
	return &effects{state: make(map[string]byte)}
}

func (fx *effects) markCreated(id string) {
	if _, ok := fx.state[id]; !ok {
		fx.state[id] = 'c'
	}
}

func (fx *effects) markMutated(id string) {
	if _, ok := fx.state[id]; !ok {
		fx.state[id] = 'm'
	}
}

func (fx *effects) markDeleted(id string) {
	if fx.state[id] == 'c' {
		delete(fx.state, id)
		return
	}
	fx.state[id] = 'd'
}

func (fx *effects) encode() map[string]json.RawMessage {
	created := make([]string, 0)
	mutated := make([]string, 0)
	deleted := make([]string, 0)
	for id, s := range fx.state {
		switch s {
		case 'c':
			created = append(created, id)
		case 'm':
			mutated = append(mutated, id)
		case 'd':
			deleted = append(deleted, id)
		}
	}
	sort.Strings(created)
	sort.Strings(mutated)
	sort.Strings(deleted)

	out := make(map[string]json.RawMessage, 3)
	for key, list := range map[string][]string{
		"created": created,
		"mutated": mutated,
		"deleted": deleted,
	} {
		data, err := json.Marshal(list)
		if err != nil {
			panic(fmt.Sprintf("encode effects: %v", err))
		}
		out[key] = data
	}
	return out
}

// Execute admits, runs, and commits one transaction. Envelope failures
// (bad digest, bad signatures, wrong sender key) reject the
// transaction outright; execution failures commit a failure receipt.
// Resubmitting an executed digest returns the stored receipt.
func (a *App) Execute(env types.TxEnvelope) (types.Digest, events.Receipt, error) {
	if err := crypto.VerifyEnvelope(env); err != nil {
		return types.Digest{}, events.Receipt{}, fmt.Errorf("reject transaction: %w", err)
	}
	digest := env.Digest
	tx := env.Signed.Transaction

	a.mu.Lock()
	defer a.mu.Unlock()

	if rcpt, ok, err := a.loadReceipt(digest); err != nil {
		return digest, events.Receipt{}, err
	} else if ok {
		a.log.Debug("duplicate transaction", zap.Stringer("digest", digest))
		return digest, rcpt, nil
	}

	meta := a.meta
	meta.Height++
	meta.TxCount++

	ec := &execCtx{
		view:    newView(a.store),
		meta:    &meta,
		sender:  tx.Sender,
		digest:  digest,
		fx:      newEffects(),
		touched: make(map[types.ObjectID]struct{}),
	}
	execErr := a.runTx(ec, tx)

	gasUsed := gasTxBase + uint64(len(tx.Actions))*gasPerAction
	if execErr == nil {
		gasUsed += uint64(len(ec.events)) * gasPerEvent
		if gasUsed > tx.GasBudget {
			execErr = fmt.Errorf("gas budget exceeded: used %d, budget %d", gasUsed, tx.GasBudget)
		}
	}
	if gasUsed > tx.GasBudget {
		gasUsed = tx.GasBudget
	}

	var rcpt events.Receipt

	if execErr != nil {
		for id := range ec.touched {
			if err := a.reloadBook(id); err != nil {
				return digest, events.Receipt{}, err
			}
		}
		ec.view = newView(a.store)
		meta = a.meta
		meta.Height++
		meta.TxCount++
		rcpt = events.Receipt{
			Status:  types.StatusFailure,
			Events:  []events.Event{},
			Effects: newEffects().encode(),
			GasUsed: gasUsed,
			Error:   execErr.Error(),
		}
	} else {
		if ec.events == nil {
			ec.events = []events.Event{}
		}
		rcpt = events.Receipt{
			Status:  types.StatusSuccess,
			Events:  ec.events,
			Effects: ec.fx.encode(),
			GasUsed: gasUsed,
		}
	}

	acct, err := ec.view.loadAccount(tx.Sender)
	if err != nil {
		return digest, events.Receipt{}, err
	}
	acct.Nonce++
	if err := ec.view.saveAccount(acct); err != nil {
		return digest, events.Receipt{}, err
	}
	if err := ec.view.saveTx(digest, env); err != nil {
		return digest, events.Receipt{}, err
	}
	if err := ec.view.saveReceipt(digest, rcpt); err != nil {
		return digest, events.Receipt{}, err
	}
	if err := ec.view.saveMeta(meta); err != nil {
		return digest, events.Receipt{}, err
	}
	if err := ec.view.commit(); err != nil {
		return digest, events.Receipt{}, fmt.Errorf("commit %s: %w", digest, err)
	}
	a.meta = meta

	a.journal.Append(fmt.Sprintf("%d %s %s gas=%d events=%d",
		meta.Height, digest, rcpt.Status, rcpt.GasUsed, len(rcpt.Events)))
	if execErr != nil {
		a.log.Info("transaction failed",
			zap.Stringer("digest", digest),
			zap.Uint64("height", meta.Height),
			zap.String("error", execErr.Error()))
	} else {
		a.log.Info("transaction executed",
			zap.Stringer("digest", digest),
			zap.Uint64("height", meta.Height),
			zap.Int("actions", len(tx.Actions)),
			zap.Int("events", len(rcpt.Events)),
			zap.Uint64("gas", rcpt.GasUsed))
	}
	if a.notify != nil {
		for _, ev := range rcpt.Events {
			a.notify(ev)
		}
	}
	return digest, rcpt, nil
}

func (a *App) runTx(ec *execCtx, tx types.Transaction) error {
	if tx.Expiration < ec.meta.Height {
		return fmt.Errorf("transaction expired at height %d", tx.Expiration)
	}
	for i, act := range tx.Actions {
		ec.action = i
		if err := a.execAction(ec, act); err != nil {
			return fmt.Errorf("action %d (%s): %w", i, act.Name, err)
		}
	}
	return nil
}

func (a *App) execAction(ec *execCtx, act types.Action) error {
	switch act.Contract {
	case types.TokenModule:
		return a.execToken(ec, act)
	case types.SpotModule:
		return a.execSpot(ec, act)
	default:
		return fmt.Errorf("unknown contract %s", act.Contract)
	}
}

func (a *App) loadReceipt(digest types.Digest) (events.Receipt, bool, error) {
	data, ok, err := a.store.Get(storage.ReceiptKey(digest))
	if err != nil || !ok {
		return events.Receipt{}, false, err
	}
	var rcpt events.Receipt
	if err := json.Unmarshal(data, &rcpt); err != nil {
		return events.Receipt{}, false, fmt.Errorf("decode receipt %s: %w", digest, err)
	}
	return rcpt, true, nil
}

// Close releases the backing store and the journal.
func (a *App) Close() error {
	if err := a.journal.Close(); err != nil {
		return err
	}
	return a.store.Close()
}
