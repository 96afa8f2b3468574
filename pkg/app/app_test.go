package app

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/lightpool/lightpool-go/pkg/crypto"
	"github.com/lightpool/lightpool-go/pkg/events"
	"github.com/lightpool/lightpool-go/pkg/storage"
	"github.com/lightpool/lightpool-go/pkg/types"
)

// testChain wraps an app over a fresh memory store and tracks nonces
// so every signed transaction gets a distinct digest.
type testChain struct {
	t      *testing.T
	app    *App
	store  *storage.MemoryStore
	nonces map[types.Address]uint64
}

func newTestChain(t *testing.T) *testChain {
	t.Helper()
	store := storage.NewMemoryStore()
	a, err := New(store)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return &testChain{t: t, app: a, store: store, nonces: make(map[types.Address]uint64)}
}

func testSigner(t *testing.T, tag byte) *crypto.Signer {
	t.Helper()
	var seed [32]byte
	seed[0] = tag
	return crypto.FromSeed(seed)
}

func (c *testChain) sign(s *crypto.Signer, actions ...types.Action) types.TxEnvelope {
	c.t.Helper()
	b := types.NewTxBuilder().Sender(s.Address()).Nonce(c.nonces[s.Address()])
	c.nonces[s.Address()]++
	for _, act := range actions {
		b.AddAction(act)
	}
	st, err := b.BuildAndSign(s)
	if err != nil {
		c.t.Fatalf("failed to sign tx: %v", err)
	}
	return s.Envelope(st)
}

func (c *testChain) submit(s *crypto.Signer, actions ...types.Action) events.Receipt {
	c.t.Helper()
	_, rcpt, err := c.app.Execute(c.sign(s, actions...))
	if err != nil {
		c.t.Fatalf("failed to execute tx: %v", err)
	}
	return rcpt
}

func (c *testChain) mustSucceed(s *crypto.Signer, actions ...types.Action) events.Receipt {
	c.t.Helper()
	rcpt := c.submit(s, actions...)
	if !rcpt.IsSuccess() {
		c.t.Fatalf("transaction failed: %s", rcpt.Error)
	}
	return rcpt
}

func (c *testChain) mustFail(s *crypto.Signer, wantErr string, actions ...types.Action) events.Receipt {
	c.t.Helper()
	rcpt := c.submit(s, actions...)
	if rcpt.IsSuccess() {
		c.t.Fatalf("transaction succeeded, want failure mentioning %q", wantErr)
	}
	if !strings.Contains(rcpt.Error, wantErr) {
		c.t.Fatalf("failure %q does not mention %q", rcpt.Error, wantErr)
	}
	return rcpt
}

// createToken issues a token and returns its creation event. A zero to
// address leaves the initial supply with the creator.
func (c *testChain) createToken(s *crypto.Signer, name, symbol string, supply uint64, to types.Address) events.TokenCreatedEvent {
	c.t.Helper()
	rcpt := c.mustSucceed(s, types.NewCreateTokenAction(types.CreateTokenParams{
		Name:        name,
		Symbol:      symbol,
		TotalSupply: supply,
		Mintable:    true,
		To:          to,
	}))
	ev, err := events.DecodeTokenCreated(rcpt.Events[0].Data)
	if err != nil {
		c.t.Fatalf("failed to decode token created event: %v", err)
	}
	return ev
}

func (c *testChain) createMarket(s *crypto.Signer, p types.CreateMarketParams) events.MarketCreatedEvent {
	c.t.Helper()
	rcpt := c.mustSucceed(s, types.NewCreateMarketAction(p))
	ev, err := events.DecodeMarketCreated(rcpt.Events[0].Data)
	if err != nil {
		c.t.Fatalf("failed to decode market created event: %v", err)
	}
	return ev
}

// mint credits to with amount of an existing token and returns the new
// balance object id.
func (c *testChain) mint(s *crypto.Signer, token types.ObjectID, to types.Address, amount uint64) types.ObjectID {
	c.t.Helper()
	rcpt := c.mustSucceed(s, types.NewMintAction(token, types.MintParams{To: to, Amount: amount}))
	ev, err := events.DecodeTransfer(rcpt.Events[0].Data)
	if err != nil {
		c.t.Fatalf("failed to decode transfer event: %v", err)
	}
	return ev.ToBalanceID
}

// balanceAmount reads one balance object.
func (c *testChain) balanceAmount(id types.ObjectID) uint64 {
	c.t.Helper()
	entry, ok, err := c.app.Balance(id)
	if err != nil {
		c.t.Fatalf("failed to load balance %s: %v", id, err)
	}
	if !ok {
		c.t.Fatalf("balance %s does not exist", id)
	}
	return entry.Amount
}

// holdings sums every balance of one token on an account.
func (c *testChain) holdings(addr, token types.Address) uint64 {
	c.t.Helper()
	_, balances, err := c.app.Account(addr)
	if err != nil {
		c.t.Fatalf("failed to load account %s: %v", addr, err)
	}
	var total uint64
	for _, b := range balances {
		if b.Token == token {
			total += b.Amount
		}
	}
	return total
}

func decodeEffects(t *testing.T, rcpt events.Receipt, key string) []string {
	t.Helper()
	var ids []string
	if err := json.Unmarshal(rcpt.Effects[key], &ids); err != nil {
		t.Fatalf("failed to decode %s effects: %v", key, err)
	}
	return ids
}

func TestExecuteRejectsBadEnvelopes(t *testing.T) {
	c := newTestChain(t)
	alice := testSigner(t, 0xA1)
	bob := testSigner(t, 0xB2)
	action := types.NewCreateTokenAction(types.CreateTokenParams{
		Name: "Alpha", Symbol: "ALPHA", TotalSupply: 1_000,
	})

	t.Run("tampered transaction", func(t *testing.T) {
		env := c.sign(alice, action)
		env.Signed.Transaction.Nonce += 100
		if _, _, err := c.app.Execute(env); err == nil {
			t.Fatalf("tampered transaction was accepted")
		}
	})

	t.Run("no signatures", func(t *testing.T) {
		env := c.sign(alice, action)
		env.Signed.Signatures = nil
		env.PublicKeys = nil
		if _, _, err := c.app.Execute(env); err == nil {
			t.Fatalf("unsigned transaction was accepted")
		}
	})

	t.Run("wrong sender key", func(t *testing.T) {
		st, err := types.NewTxBuilder().Sender(bob.Address()).AddAction(action).BuildAndSign(alice)
		if err != nil {
			t.Fatalf("failed to sign tx: %v", err)
		}
		_, _, err = c.app.Execute(alice.Envelope(st))
		if err == nil || !strings.Contains(err.Error(), "no signature from sender") {
			t.Fatalf("got %v, want sender key error", err)
		}
	})

	// Rejected envelopes never reach the chain.
	if info := c.app.ChainInfo(); info.Height != 0 || info.TxCount != 0 {
		t.Errorf("rejections advanced the chain: %+v", info)
	}
}

func TestDuplicateSubmissionReturnsStoredReceipt(t *testing.T) {
	c := newTestChain(t)
	alice := testSigner(t, 0xA1)
	env := c.sign(alice, types.NewCreateTokenAction(types.CreateTokenParams{
		Name: "Alpha", Symbol: "ALPHA", TotalSupply: 1_000,
	}))

	_, first, err := c.app.Execute(env)
	if err != nil {
		t.Fatalf("failed to execute tx: %v", err)
	}
	_, second, err := c.app.Execute(env)
	if err != nil {
		t.Fatalf("failed to re-execute tx: %v", err)
	}

	if second.Status != first.Status || second.GasUsed != first.GasUsed || len(second.Events) != len(first.Events) {
		t.Errorf("duplicate receipt differs: first %+v, second %+v", first, second)
	}
	if info := c.app.ChainInfo(); info.Height != 1 || info.TxCount != 1 {
		t.Errorf("duplicate advanced the chain: %+v", info)
	}
	acct, _, err := c.app.Account(alice.Address())
	if err != nil {
		t.Fatalf("failed to load account: %v", err)
	}
	if acct.Nonce != 1 {
		t.Errorf("nonce = %d, want 1", acct.Nonce)
	}
}

func TestTransactionExpiry(t *testing.T) {
	c := newTestChain(t)
	alice := testSigner(t, 0xA1)
	action := types.NewCreateTokenAction(types.CreateTokenParams{
		Name: "Alpha", Symbol: "ALPHA", TotalSupply: 1_000,
	})

	// The first transaction executes at height 1: an expiration of 0 is
	// already in the past, an expiration of 1 is still good.
	st, err := types.NewTxBuilder().Sender(alice.Address()).Expiration(0).AddAction(action).BuildAndSign(alice)
	if err != nil {
		t.Fatalf("failed to sign tx: %v", err)
	}
	_, rcpt, err := c.app.Execute(alice.Envelope(st))
	if err != nil {
		t.Fatalf("failed to execute tx: %v", err)
	}
	if rcpt.IsSuccess() || !strings.Contains(rcpt.Error, "expired") {
		t.Fatalf("expired transaction got receipt %+v", rcpt)
	}
	if info := c.app.ChainInfo(); info.Height != 1 {
		t.Errorf("expired transaction did not take a block: %+v", info)
	}

	st, err = types.NewTxBuilder().Sender(alice.Address()).Nonce(1).Expiration(2).AddAction(action).BuildAndSign(alice)
	if err != nil {
		t.Fatalf("failed to sign tx: %v", err)
	}
	_, rcpt, err = c.app.Execute(alice.Envelope(st))
	if err != nil {
		t.Fatalf("failed to execute tx: %v", err)
	}
	if !rcpt.IsSuccess() {
		t.Fatalf("unexpired transaction failed: %s", rcpt.Error)
	}
}

func TestGasBudget(t *testing.T) {
	c := newTestChain(t)
	alice := testSigner(t, 0xA1)
	action := types.NewCreateTokenAction(types.CreateTokenParams{
		Name: "Alpha", Symbol: "ALPHA", TotalSupply: 1_000,
	})

	st, err := types.NewTxBuilder().Sender(alice.Address()).GasBudget(1_500).AddAction(action).BuildAndSign(alice)
	if err != nil {
		t.Fatalf("failed to sign tx: %v", err)
	}
	_, rcpt, err := c.app.Execute(alice.Envelope(st))
	if err != nil {
		t.Fatalf("failed to execute tx: %v", err)
	}
	if rcpt.IsSuccess() || !strings.Contains(rcpt.Error, "gas budget exceeded") {
		t.Fatalf("underfunded transaction got receipt %+v", rcpt)
	}
	if rcpt.GasUsed != 1_500 {
		t.Errorf("gas used = %d, want the full budget 1500", rcpt.GasUsed)
	}
	// The token must not exist.
	_, balances, err := c.app.Account(alice.Address())
	if err != nil {
		t.Fatalf("failed to load account: %v", err)
	}
	if len(balances) != 0 {
		t.Errorf("rolled-back transaction left %d balances", len(balances))
	}

	rcpt = c.mustSucceed(alice, action)
	if want := gasTxBase + gasPerAction + gasPerEvent; rcpt.GasUsed != want {
		t.Errorf("gas used = %d, want %d", rcpt.GasUsed, want)
	}
}

func TestFailedActionRollsBackWholeTransaction(t *testing.T) {
	c := newTestChain(t)
	alice := testSigner(t, 0xA1)

	var bogus types.ObjectID
	bogus[0] = 0xFF
	rcpt := c.mustFail(alice, "action 1 (transfer)",
		types.NewCreateTokenAction(types.CreateTokenParams{
			Name: "Alpha", Symbol: "ALPHA", TotalSupply: 1_000,
		}),
		types.NewTransferAction(bogus, types.TransferParams{To: alice.Address(), Amount: 1}),
	)
	if len(rcpt.Events) != 0 {
		t.Errorf("failure receipt carries %d events", len(rcpt.Events))
	}
	for _, key := range []string{"created", "mutated", "deleted"} {
		if ids := decodeEffects(t, rcpt, key); len(ids) != 0 {
			t.Errorf("failure receipt lists %s effects: %v", key, ids)
		}
	}

	_, balances, err := c.app.Account(alice.Address())
	if err != nil {
		t.Fatalf("failed to load account: %v", err)
	}
	if len(balances) != 0 {
		t.Errorf("first action's writes survived the rollback")
	}
	acct, _, _ := c.app.Account(alice.Address())
	if acct.Nonce != 1 {
		t.Errorf("failed transaction did not count against the nonce: %d", acct.Nonce)
	}
	if info := c.app.ChainInfo(); info.Height != 1 || info.TxCount != 1 {
		t.Errorf("failed transaction did not take a block: %+v", info)
	}
}

func TestUnknownContract(t *testing.T) {
	c := newTestChain(t)
	alice := testSigner(t, 0xA1)
	var elsewhere types.Address
	elsewhere[0] = 0x7F
	c.mustFail(alice, "unknown contract", types.Action{
		Inputs:   []types.ObjectID{},
		Contract: elsewhere,
		Name:     types.NameCreate,
		Params:   []byte{},
	})
}

func TestEffectsTracking(t *testing.T) {
	c := newTestChain(t)
	alice := testSigner(t, 0xA1)
	bob := testSigner(t, 0xB2)

	rcpt := c.mustSucceed(alice, types.NewCreateTokenAction(types.CreateTokenParams{
		Name: "Alpha", Symbol: "ALPHA", TotalSupply: 1_000_000,
	}))
	ev, err := events.DecodeTokenCreated(rcpt.Events[0].Data)
	if err != nil {
		t.Fatalf("failed to decode token created event: %v", err)
	}
	created := decodeEffects(t, rcpt, "created")
	if len(created) != 2 {
		t.Fatalf("created = %v, want token and balance", created)
	}
	wantIDs := map[string]bool{ev.TokenID.String(): true, ev.BalanceID.String(): true}
	for _, id := range created {
		if !wantIDs[id] {
			t.Errorf("unexpected created id %s", id)
		}
	}
	if mutated := decodeEffects(t, rcpt, "mutated"); len(mutated) != 0 {
		t.Errorf("mutated = %v, want empty", mutated)
	}

	// A full-amount transfer consumes the source and creates one new
	// balance.
	rcpt = c.mustSucceed(alice, types.NewTransferAction(ev.BalanceID, types.TransferParams{
		To: bob.Address(), Amount: 1_000_000,
	}))
	if deleted := decodeEffects(t, rcpt, "deleted"); len(deleted) != 1 || deleted[0] != ev.BalanceID.String() {
		t.Errorf("deleted = %v, want the source balance", deleted)
	}
	if created := decodeEffects(t, rcpt, "created"); len(created) != 1 {
		t.Errorf("created = %v, want one destination balance", created)
	}
}

func TestDeterministicObjectIDs(t *testing.T) {
	run := func() events.TokenCreatedEvent {
		c := newTestChain(t)
		return c.createToken(testSigner(t, 0xA1), "Alpha", "ALPHA", 1_000, types.ZeroAddress)
	}
	first, second := run(), run()
	if first.TokenID != second.TokenID || first.BalanceID != second.BalanceID {
		t.Errorf("same transaction derived different ids: %s vs %s", first.TokenID, second.TokenID)
	}
}

func TestRestartRebuildsBooks(t *testing.T) {
	c := newTestChain(t)
	alice := testSigner(t, 0xA1)
	bob := testSigner(t, 0xB2)

	base := c.createToken(alice, "Alpha", "ALPHA", 100*UnitScale, types.ZeroAddress)
	quote := c.createToken(alice, "USD Mock", "USDM", 1_000*UnitScale, bob.Address())
	mkt := c.createMarket(alice, types.CreateMarketParams{
		Name:         "ALPHA-USDM",
		BaseToken:    base.TokenAddress,
		QuoteToken:   quote.TokenAddress,
		MinOrderSize: 1_000,
		TickSize:     1_000,
		MakerFeeBps:  10,
		TakerFeeBps:  20,
		State:        types.MarketActive,
		LimitOrder:   true,
	})
	c.mustSucceed(alice, types.NewPlaceOrderAction(mkt.MarketID, base.BalanceID, types.PlaceOrderParams{
		Side:       types.Sell,
		Amount:     2 * UnitScale,
		Type:       types.LimitOrderParams{TIF: types.GTC},
		LimitPrice: 5_000_000,
	}))

	info := c.app.ChainInfo()
	reopened, err := New(c.store)
	if err != nil {
		t.Fatalf("failed to reopen app: %v", err)
	}
	if got := reopened.ChainInfo(); got != info {
		t.Errorf("chain meta after restart = %+v, want %+v", got, info)
	}
	_, asks, err := reopened.OrderBook(mkt.MarketID, 0)
	if err != nil {
		t.Fatalf("failed to load order book: %v", err)
	}
	if len(asks) != 1 || asks[0].Price != 5_000_000 || asks[0].Amount != 2*UnitScale {
		t.Fatalf("rebuilt asks = %+v, want one level of 2 units at 5.0", asks)
	}

	// The rebuilt book still matches.
	c.app = reopened
	rcpt := c.mustSucceed(bob, types.NewPlaceOrderAction(mkt.MarketID, quote.BalanceID, types.PlaceOrderParams{
		Side:       types.Buy,
		Amount:     2 * UnitScale,
		Type:       types.LimitOrderParams{TIF: types.GTC},
		LimitPrice: 5_000_000,
	}))
	var filled bool
	for _, ev := range rcpt.Events {
		if ev.EventType.Call == events.CallOrderFilled {
			filled = true
		}
	}
	if !filled {
		t.Errorf("crossing order did not fill against the rebuilt book")
	}
}

func TestChainMetaAdvancesPerTransaction(t *testing.T) {
	c := newTestChain(t)
	alice := testSigner(t, 0xA1)

	c.mustSucceed(alice, types.NewCreateTokenAction(types.CreateTokenParams{
		Name: "Alpha", Symbol: "ALPHA", TotalSupply: 1_000,
	}))
	c.mustFail(alice, "token name required", types.NewCreateTokenAction(types.CreateTokenParams{
		Symbol: "NONAME", TotalSupply: 1,
	}))

	info := c.app.ChainInfo()
	if info.Height != 2 || info.TxCount != 2 {
		t.Errorf("chain meta = %+v, want height 2 and tx count 2", info)
	}
	if info.ChainID != "lightpool-devnet" {
		t.Errorf("chain id = %q", info.ChainID)
	}
}
