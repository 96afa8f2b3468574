package app

import (
	"strings"
	"testing"

	"github.com/lightpool/lightpool-go/pkg/crypto"
	"github.com/lightpool/lightpool-go/pkg/events"
	"github.com/lightpool/lightpool-go/pkg/types"
)

// marketFixture sets up an ALPHA-USDM market with alice holding the
// base supply and bob the quote supply.
type marketFixture struct {
	*testChain
	alice, bob *crypto.Signer
	base       events.TokenCreatedEvent
	quote      events.TokenCreatedEvent
	mkt        events.MarketCreatedEvent
}

const (
	testBaseSupply  = 100 * UnitScale
	testQuoteSupply = 1_000 * UnitScale
	testPrice       = 5_000_000 // 5 quote per whole base token
)

func defaultMarketParams(name string, base, quote types.Address) types.CreateMarketParams {
	return types.CreateMarketParams{
		Name:              name,
		BaseToken:         base,
		QuoteToken:        quote,
		MinOrderSize:      1_000,
		TickSize:          1_000,
		MakerFeeBps:       10,
		TakerFeeBps:       20,
		AllowMarketOrders: true,
		State:             types.MarketActive,
		LimitOrder:        true,
	}
}

func newMarketFixture(t *testing.T) *marketFixture {
	t.Helper()
	c := newTestChain(t)
	alice := testSigner(t, 0xA1)
	bob := testSigner(t, 0xB2)
	base := c.createToken(alice, "Alpha", "ALPHA", testBaseSupply, types.ZeroAddress)
	quote := c.createToken(alice, "USD Mock", "USDM", testQuoteSupply, bob.Address())
	mkt := c.createMarket(alice, defaultMarketParams("ALPHA-USDM", base.TokenAddress, quote.TokenAddress))
	return &marketFixture{testChain: c, alice: alice, bob: bob, base: base, quote: quote, mkt: mkt}
}

func limitOrder(side types.OrderSide, amount, price uint64, tif types.TimeInForce) types.PlaceOrderParams {
	return types.PlaceOrderParams{
		Side:       side,
		Amount:     amount,
		Type:       types.LimitOrderParams{TIF: tif},
		LimitPrice: price,
	}
}

func marketOrder(side types.OrderSide, amount, slippageBps uint64) types.PlaceOrderParams {
	return types.PlaceOrderParams{
		Side:   side,
		Amount: amount,
		Type:   types.MarketOrderParams{Slippage: slippageBps},
	}
}

// fills extracts the fill events of a receipt.
func fills(t *testing.T, rcpt events.Receipt) []events.OrderFilledEvent {
	t.Helper()
	var out []events.OrderFilledEvent
	for _, ev := range rcpt.Events {
		if ev.EventType.Call != events.CallOrderFilled {
			continue
		}
		fill, err := events.DecodeOrderFilled(ev.Data)
		if err != nil {
			t.Fatalf("failed to decode fill event: %v", err)
		}
		out = append(out, fill)
	}
	return out
}

func hasCancel(rcpt events.Receipt) bool {
	for _, ev := range rcpt.Events {
		if ev.EventType.Call == events.CallOrderCancelled {
			return true
		}
	}
	return false
}

func TestCreateMarket(t *testing.T) {
	f := newMarketFixture(t)

	if f.mkt.Name != "ALPHA-USDM" || f.mkt.MakerFeeBps != 10 || f.mkt.TakerFeeBps != 20 {
		t.Errorf("event = %+v", f.mkt)
	}
	if f.mkt.MarketAddress != types.Address(f.mkt.MarketID) {
		t.Errorf("market address %s does not match object id %s", f.mkt.MarketAddress, f.mkt.MarketID)
	}

	// The escrow pools exist, empty, owned by the market address.
	for _, id := range []types.ObjectID{f.mkt.BaseBalanceID, f.mkt.QuoteBalanceID} {
		entry, ok, err := f.app.Balance(id)
		if err != nil || !ok {
			t.Fatalf("pool %s missing: %v", id, err)
		}
		if entry.Amount != 0 || entry.Owner != f.mkt.MarketAddress {
			t.Errorf("pool = %+v", entry)
		}
	}

	markets, err := f.app.Markets()
	if err != nil {
		t.Fatalf("failed to list markets: %v", err)
	}
	if len(markets) != 1 || markets[0].ID != f.mkt.MarketID {
		t.Errorf("markets = %+v", markets)
	}
}

func TestCreateMarketValidation(t *testing.T) {
	f := newMarketFixture(t)
	var unknown types.Address
	unknown[0] = 0x55

	tests := []struct {
		name    string
		mutate  func(*types.CreateMarketParams)
		wantErr string
	}{
		{"missing name", func(p *types.CreateMarketParams) { p.Name = "" }, "market name required"},
		{"same tokens", func(p *types.CreateMarketParams) { p.QuoteToken = p.BaseToken }, "must differ"},
		{"unknown base", func(p *types.CreateMarketParams) { p.BaseToken = unknown }, "unknown object"},
		{"zero tick", func(p *types.CreateMarketParams) { p.TickSize = 0 }, "tick size required"},
		{"zero min size", func(p *types.CreateMarketParams) { p.MinOrderSize = 0 }, "minimum order size required"},
		{"excessive fee", func(p *types.CreateMarketParams) { p.TakerFeeBps = 10_001 }, "fee exceeds"},
		{"taken name", func(p *types.CreateMarketParams) { p.Name = "ALPHA-USDM" }, "is taken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := defaultMarketParams("SECOND", f.base.TokenAddress, f.quote.TokenAddress)
			tt.mutate(&p)
			f.mustFail(f.alice, tt.wantErr, types.NewCreateMarketAction(p))
		})
	}
}

func TestUpdateMarket(t *testing.T) {
	f := newMarketFixture(t)

	minSize := uint64(5_000)
	fee := uint16(50)
	paused := types.MarketPaused
	f.mustSucceed(f.alice, types.NewUpdateMarketAction(f.mkt.MarketID, types.UpdateMarketParams{
		MinOrderSize: &minSize,
		TakerFeeBps:  &fee,
		State:        &paused,
	}))

	mkt, ok, err := f.app.Market(f.mkt.MarketID)
	if err != nil || !ok {
		t.Fatalf("market missing: %v", err)
	}
	if mkt.MinOrderSize != 5_000 || mkt.TakerFeeBps != 50 || mkt.State != types.MarketPaused {
		t.Errorf("market after update = %+v", mkt.MarketRecord)
	}
	// Untouched fields keep their values.
	if mkt.MakerFeeBps != 10 || !mkt.AllowMarketOrders || mkt.TickSize != 1_000 {
		t.Errorf("update clobbered unrelated fields: %+v", mkt.MarketRecord)
	}

	f.mustFail(f.alice, "is paused", types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, UnitScale, testPrice, types.GTC)))

	f.mustFail(f.bob, "only the market creator", types.NewUpdateMarketAction(f.mkt.MarketID, types.UpdateMarketParams{
		State: &paused,
	}))
	badFee := uint16(10_001)
	f.mustFail(f.alice, "fee exceeds", types.NewUpdateMarketAction(f.mkt.MarketID, types.UpdateMarketParams{
		MakerFeeBps: &badFee,
	}))
}

func TestLimitOrderRestsOnBook(t *testing.T) {
	f := newMarketFixture(t)

	rcpt := f.mustSucceed(f.alice, types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, 2*UnitScale, testPrice, types.GTC)))
	created, err := events.DecodeOrderCreated(rcpt.Events[0].Data)
	if err != nil {
		t.Fatalf("failed to decode order created event: %v", err)
	}
	if created.Side != types.Sell || created.Amount != 2*UnitScale || created.Price != testPrice {
		t.Errorf("event = %+v", created)
	}

	// The base escrow moved into the market pool.
	if got := f.balanceAmount(f.base.BalanceID); got != testBaseSupply-2*UnitScale {
		t.Errorf("funding balance = %d, want %d", got, testBaseSupply-2*UnitScale)
	}
	if got := f.balanceAmount(f.mkt.BaseBalanceID); got != 2*UnitScale {
		t.Errorf("base pool = %d, want %d", got, 2*UnitScale)
	}

	_, asks, err := f.app.OrderBook(f.mkt.MarketID, 0)
	if err != nil {
		t.Fatalf("failed to load order book: %v", err)
	}
	if len(asks) != 1 || asks[0].Price != testPrice || asks[0].Amount != 2*UnitScale {
		t.Errorf("asks = %+v", asks)
	}

	orders, err := f.app.Orders(f.alice.Address(), &f.mkt.MarketID)
	if err != nil {
		t.Fatalf("failed to list orders: %v", err)
	}
	if len(orders) != 1 || orders[0].OrderID != created.OrderID || orders[0].Remaining != 2*UnitScale {
		t.Errorf("orders = %+v", orders)
	}
}

func TestLimitMatchSettlesAtMakerPrice(t *testing.T) {
	f := newMarketFixture(t)

	f.mustSucceed(f.alice, types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, 2*UnitScale, testPrice, types.GTC)))

	// The buy is priced above the resting ask; it fills at the maker's
	// price and the unspent escrow comes back.
	rcpt := f.mustSucceed(f.bob, types.NewPlaceOrderAction(f.mkt.MarketID, f.quote.BalanceID,
		limitOrder(types.Buy, 2*UnitScale, 6_000_000, types.GTC)))
	fl := fills(t, rcpt)
	if len(fl) != 1 {
		t.Fatalf("got %d fills, want 1", len(fl))
	}
	if fl[0].Price != testPrice || fl[0].Amount != 2*UnitScale {
		t.Errorf("fill = %+v", fl[0])
	}
	if fl[0].Maker != f.alice.Address() || fl[0].Taker != f.bob.Address() {
		t.Errorf("fill parties = %+v", fl[0])
	}

	// notional = 2 * 5.0 = 10_000_000 quote units.
	const notional = 10_000_000
	const makerFee = notional * 10 / 10_000
	const takerFee = notional * 20 / 10_000

	if got := f.holdings(f.alice.Address(), f.quote.TokenAddress); got != notional-makerFee {
		t.Errorf("seller proceeds = %d, want %d", got, notional-makerFee)
	}
	if got := f.holdings(f.bob.Address(), f.base.TokenAddress); got != 2*UnitScale {
		t.Errorf("buyer base = %d, want %d", got, 2*UnitScale)
	}
	if got := f.holdings(f.bob.Address(), f.quote.TokenAddress); got != testQuoteSupply-notional-takerFee {
		t.Errorf("buyer quote = %d, want %d", got, testQuoteSupply-notional-takerFee)
	}

	// Both fees stay in the quote pool; the base pool is drained.
	if got := f.balanceAmount(f.mkt.QuoteBalanceID); got != makerFee+takerFee {
		t.Errorf("quote pool = %d, want %d", got, makerFee+takerFee)
	}
	if got := f.balanceAmount(f.mkt.BaseBalanceID); got != 0 {
		t.Errorf("base pool = %d, want 0", got)
	}

	bids, asks, err := f.app.OrderBook(f.mkt.MarketID, 0)
	if err != nil {
		t.Fatalf("failed to load order book: %v", err)
	}
	if len(bids) != 0 || len(asks) != 0 {
		t.Errorf("book not empty after full fill: bids %v asks %v", bids, asks)
	}

	trades, err := f.app.Trades(f.mkt.MarketID, 0)
	if err != nil {
		t.Fatalf("failed to list trades: %v", err)
	}
	if len(trades) != 1 || trades[0].Price != testPrice || trades[0].TakerSide != types.Buy {
		t.Errorf("trades = %+v", trades)
	}
}

func TestPartialFillRestsRemainder(t *testing.T) {
	f := newMarketFixture(t)

	f.mustSucceed(f.alice, types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, UnitScale, testPrice, types.GTC)))
	rcpt := f.mustSucceed(f.bob, types.NewPlaceOrderAction(f.mkt.MarketID, f.quote.BalanceID,
		limitOrder(types.Buy, 3*UnitScale, testPrice, types.GTC)))
	if len(fills(t, rcpt)) != 1 {
		t.Fatalf("expected one fill")
	}

	bids, asks, err := f.app.OrderBook(f.mkt.MarketID, 0)
	if err != nil {
		t.Fatalf("failed to load order book: %v", err)
	}
	if len(asks) != 0 {
		t.Errorf("ask side should be drained: %+v", asks)
	}
	if len(bids) != 1 || bids[0].Price != testPrice || bids[0].Amount != 2*UnitScale {
		t.Errorf("bids = %+v, want 2 units resting at 5.0", bids)
	}

	// The resting buy later fills as maker and gets its fee reserve
	// dust back: it reserved the taker rate but pays the maker rate.
	rcpt = f.mustSucceed(f.alice, types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, 2*UnitScale, testPrice, types.GTC)))
	fl := fills(t, rcpt)
	if len(fl) != 1 || fl[0].Maker != f.bob.Address() || fl[0].Taker != f.alice.Address() {
		t.Fatalf("second fill = %+v", fl)
	}

	// Fill 1: notional 5_000_000, bob pays taker 20bps, alice maker 10bps.
	// Fill 2: notional 10_000_000, bob pays maker 10bps, alice taker 20bps.
	const bobSpent = 5_000_000 + 10_000 + 10_000_000 + 10_000
	const aliceEarned = 5_000_000 - 5_000 + 10_000_000 - 20_000
	if got := f.holdings(f.bob.Address(), f.quote.TokenAddress); got != testQuoteSupply-bobSpent {
		t.Errorf("buyer quote = %d, want %d", got, testQuoteSupply-bobSpent)
	}
	if got := f.holdings(f.bob.Address(), f.base.TokenAddress); got != 3*UnitScale {
		t.Errorf("buyer base = %d, want %d", got, 3*UnitScale)
	}
	if got := f.holdings(f.alice.Address(), f.quote.TokenAddress); got != aliceEarned {
		t.Errorf("seller quote = %d, want %d", got, aliceEarned)
	}

	// Everything settled: the pools hold exactly the fees.
	const totalFees = 10_000 + 5_000 + 10_000 + 20_000
	if got := f.balanceAmount(f.mkt.QuoteBalanceID); got != totalFees {
		t.Errorf("quote pool = %d, want %d", got, totalFees)
	}
	if got := f.balanceAmount(f.mkt.BaseBalanceID); got != 0 {
		t.Errorf("base pool = %d, want 0", got)
	}
}

func TestPriceTimePriority(t *testing.T) {
	f := newMarketFixture(t)
	carol := testSigner(t, 0xC3)
	carolBase := f.mint(f.alice, f.base.TokenID, carol.Address(), 10*UnitScale)

	// Same price: alice rested first, so she fills first.
	f.mustSucceed(f.alice, types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, UnitScale, testPrice, types.GTC)))
	f.mustSucceed(carol, types.NewPlaceOrderAction(f.mkt.MarketID, carolBase,
		limitOrder(types.Sell, UnitScale, testPrice, types.GTC)))

	rcpt := f.mustSucceed(f.bob, types.NewPlaceOrderAction(f.mkt.MarketID, f.quote.BalanceID,
		limitOrder(types.Buy, UnitScale, testPrice, types.GTC)))
	fl := fills(t, rcpt)
	if len(fl) != 1 || fl[0].Maker != f.alice.Address() {
		t.Fatalf("first fill maker = %+v, want alice", fl)
	}

	// A better-priced late arrival jumps the queue.
	f.mustSucceed(carol, types.NewPlaceOrderAction(f.mkt.MarketID, carolBase,
		limitOrder(types.Sell, UnitScale, testPrice-1_000, types.GTC)))
	rcpt = f.mustSucceed(f.bob, types.NewPlaceOrderAction(f.mkt.MarketID, f.quote.BalanceID,
		limitOrder(types.Buy, UnitScale, testPrice, types.GTC)))
	fl = fills(t, rcpt)
	if len(fl) != 1 || fl[0].Maker != carol.Address() || fl[0].Price != testPrice-1_000 {
		t.Fatalf("price priority fill = %+v, want carol at the lower price", fl)
	}
}

func TestIOCCancelsRemainder(t *testing.T) {
	f := newMarketFixture(t)

	f.mustSucceed(f.alice, types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, UnitScale, testPrice, types.GTC)))
	rcpt := f.mustSucceed(f.bob, types.NewPlaceOrderAction(f.mkt.MarketID, f.quote.BalanceID,
		limitOrder(types.Buy, 2*UnitScale, testPrice, types.IOC)))

	if len(fills(t, rcpt)) != 1 {
		t.Errorf("IOC should fill what it can")
	}
	if !hasCancel(rcpt) {
		t.Errorf("IOC remainder should cancel")
	}
	bids, _, err := f.app.OrderBook(f.mkt.MarketID, 0)
	if err != nil {
		t.Fatalf("failed to load order book: %v", err)
	}
	if len(bids) != 0 {
		t.Errorf("IOC remainder rested: %+v", bids)
	}

	// Only the filled part was spent: notional 5_000_000 plus 20bps.
	if got := f.holdings(f.bob.Address(), f.quote.TokenAddress); got != testQuoteSupply-5_010_000 {
		t.Errorf("buyer quote = %d, want %d", got, testQuoteSupply-5_010_000)
	}
}

func TestFOKRequiresFullFill(t *testing.T) {
	f := newMarketFixture(t)

	f.mustSucceed(f.alice, types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, UnitScale, testPrice, types.GTC)))

	f.mustFail(f.bob, "fill or kill", types.NewPlaceOrderAction(f.mkt.MarketID, f.quote.BalanceID,
		limitOrder(types.Buy, 2*UnitScale, testPrice, types.FOK)))
	// Nothing moved.
	if got := f.holdings(f.bob.Address(), f.quote.TokenAddress); got != testQuoteSupply {
		t.Errorf("failed FOK spent funds: %d", got)
	}
	_, asks, err := f.app.OrderBook(f.mkt.MarketID, 0)
	if err != nil {
		t.Fatalf("failed to load order book: %v", err)
	}
	if len(asks) != 1 || asks[0].Amount != UnitScale {
		t.Errorf("failed FOK disturbed the book: %+v", asks)
	}

	rcpt := f.mustSucceed(f.bob, types.NewPlaceOrderAction(f.mkt.MarketID, f.quote.BalanceID,
		limitOrder(types.Buy, UnitScale, testPrice, types.FOK)))
	if len(fills(t, rcpt)) != 1 || hasCancel(rcpt) {
		t.Errorf("coverable FOK should fill completely")
	}
}

func TestMarketOrderWalksWithinSlippage(t *testing.T) {
	f := newMarketFixture(t)

	f.mustSucceed(f.alice, types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, UnitScale, 5_000_000, types.GTC)))
	f.mustSucceed(f.alice, types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, UnitScale, 6_000_000, types.GTC)))

	// 10% past the 5.0 touch bounds the walk at 5.5: the 6.0 level is
	// out of reach, the remainder cancels.
	rcpt := f.mustSucceed(f.bob, types.NewPlaceOrderAction(f.mkt.MarketID, f.quote.BalanceID,
		marketOrder(types.Buy, 2*UnitScale, 1_000)))
	fl := fills(t, rcpt)
	if len(fl) != 1 || fl[0].Price != 5_000_000 || fl[0].Amount != UnitScale {
		t.Fatalf("fills = %+v, want one unit at 5.0", fl)
	}
	if !hasCancel(rcpt) {
		t.Errorf("out-of-bound remainder should cancel")
	}
	if got := f.holdings(f.bob.Address(), f.base.TokenAddress); got != UnitScale {
		t.Errorf("buyer base = %d, want %d", got, UnitScale)
	}
	// Unspent escrow came back: only 5_000_000 + 20bps left the wallet.
	if got := f.holdings(f.bob.Address(), f.quote.TokenAddress); got != testQuoteSupply-5_010_000 {
		t.Errorf("buyer quote = %d, want %d", got, testQuoteSupply-5_010_000)
	}

	_, asks, err := f.app.OrderBook(f.mkt.MarketID, 0)
	if err != nil {
		t.Fatalf("failed to load order book: %v", err)
	}
	if len(asks) != 1 || asks[0].Price != 6_000_000 {
		t.Errorf("asks = %+v, want the 6.0 level untouched", asks)
	}
}

func TestMarketSellAgainstBids(t *testing.T) {
	f := newMarketFixture(t)

	f.mustSucceed(f.bob, types.NewPlaceOrderAction(f.mkt.MarketID, f.quote.BalanceID,
		limitOrder(types.Buy, UnitScale, testPrice, types.GTC)))
	rcpt := f.mustSucceed(f.alice, types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		marketOrder(types.Sell, 2*UnitScale, 0)))

	fl := fills(t, rcpt)
	if len(fl) != 1 || fl[0].Price != testPrice {
		t.Fatalf("fills = %+v", fl)
	}
	if !hasCancel(rcpt) {
		t.Errorf("unfilled remainder should cancel")
	}
	// Seller nets notional minus the 20bps taker fee; the filled-out
	// maker gets its reserve dust back, paying only the 10bps maker fee.
	if got := f.holdings(f.alice.Address(), f.quote.TokenAddress); got != 5_000_000-10_000 {
		t.Errorf("seller quote = %d, want %d", got, 5_000_000-10_000)
	}
	if got := f.holdings(f.bob.Address(), f.quote.TokenAddress); got != testQuoteSupply-5_005_000 {
		t.Errorf("buyer quote = %d, want %d", got, testQuoteSupply-5_005_000)
	}
	if got := f.holdings(f.bob.Address(), f.base.TokenAddress); got != UnitScale {
		t.Errorf("buyer base = %d, want %d", got, UnitScale)
	}
}

func TestMarketOrderNeedsLiquidity(t *testing.T) {
	f := newMarketFixture(t)
	f.mustFail(f.bob, "no liquidity", types.NewPlaceOrderAction(f.mkt.MarketID, f.quote.BalanceID,
		marketOrder(types.Buy, UnitScale, 100)))

	off := false
	f.mustSucceed(f.alice, types.NewUpdateMarketAction(f.mkt.MarketID, types.UpdateMarketParams{
		AllowMarketOrders: &off,
	}))
	f.mustFail(f.bob, "market orders are disabled", types.NewPlaceOrderAction(f.mkt.MarketID, f.quote.BalanceID,
		marketOrder(types.Buy, UnitScale, 100)))
}

func TestPostOnlyRejectsCrossing(t *testing.T) {
	f := newMarketFixture(t)
	postOnly := types.MarketPostOnly
	f.mustSucceed(f.alice, types.NewUpdateMarketAction(f.mkt.MarketID, types.UpdateMarketParams{
		State: &postOnly,
	}))

	f.mustSucceed(f.alice, types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, UnitScale, testPrice, types.GTC)))
	f.mustFail(f.bob, "would cross", types.NewPlaceOrderAction(f.mkt.MarketID, f.quote.BalanceID,
		limitOrder(types.Buy, UnitScale, testPrice, types.GTC)))
	// A passive bid is fine.
	f.mustSucceed(f.bob, types.NewPlaceOrderAction(f.mkt.MarketID, f.quote.BalanceID,
		limitOrder(types.Buy, UnitScale, testPrice-1_000, types.GTC)))
}

func TestMarketStateGates(t *testing.T) {
	f := newMarketFixture(t)
	rcpt := f.mustSucceed(f.alice, types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, UnitScale, testPrice, types.GTC)))
	created, err := events.DecodeOrderCreated(rcpt.Events[0].Data)
	if err != nil {
		t.Fatalf("failed to decode order created event: %v", err)
	}

	cancelOnly := types.MarketCancelOnly
	f.mustSucceed(f.alice, types.NewUpdateMarketAction(f.mkt.MarketID, types.UpdateMarketParams{
		State: &cancelOnly,
	}))
	f.mustFail(f.bob, "cancel only", types.NewPlaceOrderAction(f.mkt.MarketID, f.quote.BalanceID,
		limitOrder(types.Buy, UnitScale, testPrice, types.GTC)))
	// Cancels still go through.
	f.mustSucceed(f.alice, types.NewCancelOrderAction(f.mkt.MarketID, types.CancelOrderParams{
		OrderID: created.OrderID,
	}))

	closed := types.MarketClosed
	f.mustSucceed(f.alice, types.NewUpdateMarketAction(f.mkt.MarketID, types.UpdateMarketParams{
		State: &closed,
	}))
	f.mustFail(f.alice, "is closed", types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, UnitScale, testPrice, types.GTC)))
	f.mustFail(f.alice, "is closed", types.NewCancelOrderAction(f.mkt.MarketID, types.CancelOrderParams{
		OrderID: created.OrderID,
	}))
}

func TestCancelRefundsEscrow(t *testing.T) {
	f := newMarketFixture(t)

	sell := f.mustSucceed(f.alice, types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, 2*UnitScale, testPrice, types.GTC)))
	sellCreated, err := events.DecodeOrderCreated(sell.Events[0].Data)
	if err != nil {
		t.Fatalf("failed to decode order created event: %v", err)
	}
	buy := f.mustSucceed(f.bob, types.NewPlaceOrderAction(f.mkt.MarketID, f.quote.BalanceID,
		limitOrder(types.Buy, UnitScale, testPrice-1_000, types.GTC)))
	buyCreated, err := events.DecodeOrderCreated(buy.Events[0].Data)
	if err != nil {
		t.Fatalf("failed to decode order created event: %v", err)
	}

	f.mustSucceed(f.alice, types.NewCancelOrderAction(f.mkt.MarketID, types.CancelOrderParams{
		OrderID: sellCreated.OrderID,
	}))
	if got := f.holdings(f.alice.Address(), f.base.TokenAddress); got != testBaseSupply {
		t.Errorf("seller base after cancel = %d, want full supply back", got)
	}

	// The buy reserved its worst-case cost plus the 20bps fee reserve;
	// all of it comes back.
	f.mustSucceed(f.bob, types.NewCancelOrderAction(f.mkt.MarketID, types.CancelOrderParams{
		OrderID: buyCreated.OrderID,
	}))
	if got := f.holdings(f.bob.Address(), f.quote.TokenAddress); got != testQuoteSupply {
		t.Errorf("buyer quote after cancel = %d, want full supply back", got)
	}

	if got := f.balanceAmount(f.mkt.BaseBalanceID); got != 0 {
		t.Errorf("base pool = %d after cancels", got)
	}
	if got := f.balanceAmount(f.mkt.QuoteBalanceID); got != 0 {
		t.Errorf("quote pool = %d after cancels", got)
	}

	bids, asks, err := f.app.OrderBook(f.mkt.MarketID, 0)
	if err != nil {
		t.Fatalf("failed to load order book: %v", err)
	}
	if len(bids) != 0 || len(asks) != 0 {
		t.Errorf("book not empty after cancels")
	}
}

func TestCancelValidation(t *testing.T) {
	f := newMarketFixture(t)
	rcpt := f.mustSucceed(f.alice, types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, UnitScale, testPrice, types.GTC)))
	created, err := events.DecodeOrderCreated(rcpt.Events[0].Data)
	if err != nil {
		t.Fatalf("failed to decode order created event: %v", err)
	}

	var unknown types.OrderId
	unknown[0] = 0x99
	f.mustFail(f.alice, "unknown order", types.NewCancelOrderAction(f.mkt.MarketID, types.CancelOrderParams{
		OrderID: unknown,
	}))
	f.mustFail(f.bob, "only the order creator", types.NewCancelOrderAction(f.mkt.MarketID, types.CancelOrderParams{
		OrderID: created.OrderID,
	}))
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newMarketFixture(t)

	tests := []struct {
		name    string
		params  types.PlaceOrderParams
		funding types.ObjectID
		signer  *crypto.Signer
		wantErr string
	}{
		{"zero amount", limitOrder(types.Sell, 0, testPrice, types.GTC), f.base.BalanceID, f.alice, "order amount required"},
		{"below min size", limitOrder(types.Sell, 999, testPrice, types.GTC), f.base.BalanceID, f.alice, "below the minimum order size"},
		{"zero price", limitOrder(types.Sell, UnitScale, 0, types.GTC), f.base.BalanceID, f.alice, "limit price required"},
		{"off tick", limitOrder(types.Sell, UnitScale, testPrice+1, types.GTC), f.base.BalanceID, f.alice, "not a multiple of the tick size"},
		{"wrong funding token", limitOrder(types.Buy, UnitScale, testPrice, types.GTC), f.base.BalanceID, f.alice, "wrong token for a buy"},
		{"insufficient funds", limitOrder(types.Sell, 101*UnitScale, testPrice, types.GTC), f.base.BalanceID, f.alice, "insufficient balance"},
		{"trigger unsupported", types.PlaceOrderParams{
			Side:       types.Buy,
			Amount:     UnitScale,
			Type:       types.TriggerOrderParams{TriggerPrice: testPrice},
			LimitPrice: testPrice,
		}, f.quote.BalanceID, f.bob, "unsupported order type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.mustFail(tt.signer, tt.wantErr, types.NewPlaceOrderAction(f.mkt.MarketID, tt.funding, tt.params))
		})
	}
}

// A taker crossing their own resting order settles normally: both role
// fees are paid, and the refund accounts for the proceeds credited to
// the funding balance mid-match.
func TestSelfTradeSettles(t *testing.T) {
	f := newMarketFixture(t)
	aliceQuote := f.mint(f.alice, f.quote.TokenID, f.alice.Address(), 100*UnitScale)

	f.mustSucceed(f.alice, types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, UnitScale, testPrice, types.GTC)))
	rcpt := f.mustSucceed(f.alice, types.NewPlaceOrderAction(f.mkt.MarketID, aliceQuote,
		limitOrder(types.Buy, UnitScale, 6_000_000, types.GTC)))
	fl := fills(t, rcpt)
	if len(fl) != 1 || fl[0].Maker != f.alice.Address() || fl[0].Taker != f.alice.Address() {
		t.Fatalf("self fill = %+v", fl)
	}

	// Base comes back to her, quote drops by exactly both fees.
	if got := f.holdings(f.alice.Address(), f.base.TokenAddress); got != testBaseSupply {
		t.Errorf("base holdings = %d, want %d", got, testBaseSupply)
	}
	const bothFees = 5_000 + 10_000
	if got := f.holdings(f.alice.Address(), f.quote.TokenAddress); got != 100*UnitScale-bothFees {
		t.Errorf("quote holdings = %d, want %d", got, 100*UnitScale-bothFees)
	}
	if got := f.balanceAmount(f.mkt.QuoteBalanceID); got != bothFees {
		t.Errorf("quote pool = %d, want %d", got, bothFees)
	}
}

func TestLimitOrdersDisabled(t *testing.T) {
	f := newMarketFixture(t)
	p := defaultMarketParams("NOLIMIT", f.base.TokenAddress, f.quote.TokenAddress)
	p.LimitOrder = false
	mkt := f.createMarket(f.alice, p)

	f.mustFail(f.alice, "limit orders are disabled", types.NewPlaceOrderAction(mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, UnitScale, testPrice, types.GTC)))
}

func TestTradesQueryLimit(t *testing.T) {
	f := newMarketFixture(t)

	for i := 0; i < 3; i++ {
		f.mustSucceed(f.alice, types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
			limitOrder(types.Sell, UnitScale, testPrice, types.GTC)))
		f.mustSucceed(f.bob, types.NewPlaceOrderAction(f.mkt.MarketID, f.quote.BalanceID,
			limitOrder(types.Buy, UnitScale, testPrice, types.GTC)))
	}

	trades, err := f.app.Trades(f.mkt.MarketID, 0)
	if err != nil {
		t.Fatalf("failed to list trades: %v", err)
	}
	if len(trades) != 3 {
		t.Fatalf("got %d trades, want 3", len(trades))
	}
	for i := 1; i < len(trades); i++ {
		if trades[i].Seq <= trades[i-1].Seq {
			t.Errorf("trades out of order: %+v", trades)
		}
	}

	last, err := f.app.Trades(f.mkt.MarketID, 2)
	if err != nil {
		t.Fatalf("failed to list trades: %v", err)
	}
	if len(last) != 2 || last[1].Seq != trades[2].Seq {
		t.Errorf("limited trades = %+v", last)
	}
}

func TestOrderErrorsNameTheAction(t *testing.T) {
	f := newMarketFixture(t)
	rcpt := f.mustFail(f.alice, "ord_place", types.NewPlaceOrderAction(f.mkt.MarketID, f.base.BalanceID,
		limitOrder(types.Sell, 999, testPrice, types.GTC)))
	if !strings.Contains(rcpt.Error, "action 0") {
		t.Errorf("error %q does not locate the failing action", rcpt.Error)
	}
}
