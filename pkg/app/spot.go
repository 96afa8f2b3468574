package app

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/lightpool/lightpool-go/pkg/events"
	"github.com/lightpool/lightpool-go/pkg/types"
)

// UnitScale is one whole token in raw units. Prices quote raw quote
// units per whole base token, so a fill's quote cost is
// amount * price / UnitScale.
const UnitScale uint64 = 1_000_000

const bpsDenominator = 10_000

// mulDiv computes a*b/den with a 128-bit intermediate. ok is false
// when the quotient does not fit in a uint64.
func mulDiv(a, b, den uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	if hi >= den {
		return 0, false
	}
	q, _ := bits.Div64(hi, lo, den)
	return q, true
}

func quoteCost(amount, price uint64) (uint64, error) {
	cost, ok := mulDiv(amount, price, UnitScale)
	if !ok {
		return 0, fmt.Errorf("quote cost overflows: %d base at price %d", amount, price)
	}
	return cost, nil
}

// feeOf computes a basis-point fee. Never overflows for bps within the
// denominator, since the fee cannot exceed the notional.
func feeOf(notional uint64, bps uint16) uint64 {
	fee, _ := mulDiv(notional, uint64(bps), bpsDenominator)
	return fee
}

func (a *App) execSpot(ec *execCtx, act types.Action) error {
	switch act.Name {
	case types.NameMarketCreate:
		return a.createMarket(ec, act)
	case types.NameMarketUpdate:
		return a.updateMarket(ec, act)
	case types.NameOrderPlace:
		return a.placeOrder(ec, act)
	case types.NameOrderCancel:
		return a.cancelOrder(ec, act)
	default:
		return fmt.Errorf("unknown spot function %s", act.Name)
	}
}

// bookFor lazily creates a market's in-memory book.
func (a *App) bookFor(marketID types.ObjectID) *book {
	if bk, ok := a.books[marketID]; ok {
		return bk
	}
	bk := newBook()
	a.books[marketID] = bk
	return bk
}

func (a *App) requireToken(ec *execCtx, addr types.Address) error {
	obj, err := ec.view.loadObject(types.ObjectID(addr))
	if err != nil {
		return err
	}
	var tok TokenRecord
	return obj.decode(KindToken, &tok)
}

func (a *App) createMarket(ec *execCtx, act types.Action) error {
	if len(act.Inputs) != 0 {
		return fmt.Errorf("mkt_create takes no inputs, got %d", len(act.Inputs))
	}
	p, err := types.DecodeCreateMarketParams(act.Params)
	if err != nil {
		return err
	}
	if p.Name == "" {
		return fmt.Errorf("market name required")
	}
	if p.BaseToken == p.QuoteToken {
		return fmt.Errorf("base and quote tokens must differ")
	}
	if err := a.requireToken(ec, p.BaseToken); err != nil {
		return fmt.Errorf("base token: %w", err)
	}
	if err := a.requireToken(ec, p.QuoteToken); err != nil {
		return fmt.Errorf("quote token: %w", err)
	}
	if p.TickSize == 0 {
		return fmt.Errorf("tick size required")
	}
	if p.MinOrderSize == 0 {
		return fmt.Errorf("minimum order size required")
	}
	if p.MakerFeeBps > bpsDenominator || p.TakerFeeBps > bpsDenominator {
		return fmt.Errorf("fee exceeds %d bps", bpsDenominator)
	}
	if _, taken, err := ec.view.marketByName(p.Name); err != nil {
		return err
	} else if taken {
		return fmt.Errorf("market name %q is taken", p.Name)
	}

	marketID := ec.newObjectID()
	marketAddr := types.Address(marketID)

	baseBalanceID, err := a.newBalance(ec, marketAddr, p.BaseToken, 0)
	if err != nil {
		return err
	}
	quoteBalanceID, err := a.newBalance(ec, marketAddr, p.QuoteToken, 0)
	if err != nil {
		return err
	}

	rec := MarketRecord{
		Name:              p.Name,
		BaseToken:         p.BaseToken,
		QuoteToken:        p.QuoteToken,
		BaseBalanceID:     baseBalanceID,
		QuoteBalanceID:    quoteBalanceID,
		MinOrderSize:      p.MinOrderSize,
		TickSize:          p.TickSize,
		MakerFeeBps:       p.MakerFeeBps,
		TakerFeeBps:       p.TakerFeeBps,
		AllowMarketOrders: p.AllowMarketOrders,
		LimitOrders:       p.LimitOrder,
		State:             p.State,
		Address:           marketAddr,
	}
	obj, err := newObject(marketID, KindMarket, ec.sender, rec)
	if err != nil {
		return err
	}
	if err := ec.view.saveObject(obj); err != nil {
		return err
	}
	if err := ec.view.indexMarketName(p.Name, marketID); err != nil {
		return err
	}
	ec.fx.markCreated(marketID.String())
	a.books[marketID] = newBook()
	ec.touch(marketID)

	ec.emit(events.MarketCreatedEvent{
		MarketID:          marketID,
		MarketAddress:     marketAddr,
		Name:              p.Name,
		BaseToken:         p.BaseToken,
		QuoteToken:        p.QuoteToken,
		BaseBalanceID:     baseBalanceID,
		QuoteBalanceID:    quoteBalanceID,
		MinOrderSize:      p.MinOrderSize,
		TickSize:          p.TickSize,
		MakerFeeBps:       p.MakerFeeBps,
		TakerFeeBps:       p.TakerFeeBps,
		AllowMarketOrders: p.AllowMarketOrders,
		State:             p.State,
		Creator:           ec.sender,
	}.Envelope())
	return nil
}

func (a *App) updateMarket(ec *execCtx, act types.Action) error {
	if len(act.Inputs) != 1 {
		return fmt.Errorf("mkt_update takes one market input, got %d", len(act.Inputs))
	}
	p, err := types.DecodeUpdateMarketParams(act.Params)
	if err != nil {
		return err
	}
	marketID := act.Inputs[0]
	obj, err := ec.view.loadObject(marketID)
	if err != nil {
		return err
	}
	var rec MarketRecord
	if err := obj.decode(KindMarket, &rec); err != nil {
		return err
	}
	if obj.Owner != ec.sender {
		return fmt.Errorf("only the market creator can update it")
	}

	if p.MinOrderSize != nil {
		if *p.MinOrderSize == 0 {
			return fmt.Errorf("minimum order size required")
		}
		rec.MinOrderSize = *p.MinOrderSize
	}
	if p.MakerFeeBps != nil {
		if *p.MakerFeeBps > bpsDenominator {
			return fmt.Errorf("fee exceeds %d bps", bpsDenominator)
		}
		rec.MakerFeeBps = *p.MakerFeeBps
	}
	if p.TakerFeeBps != nil {
		if *p.TakerFeeBps > bpsDenominator {
			return fmt.Errorf("fee exceeds %d bps", bpsDenominator)
		}
		rec.TakerFeeBps = *p.TakerFeeBps
	}
	if p.AllowMarketOrders != nil {
		rec.AllowMarketOrders = *p.AllowMarketOrders
	}
	if p.State != nil {
		rec.State = *p.State
	}

	updated, err := newObject(marketID, KindMarket, obj.Owner, rec)
	if err != nil {
		return err
	}
	if err := ec.view.saveObject(updated); err != nil {
		return err
	}
	ec.fx.markMutated(marketID.String())
	return nil
}

func (a *App) placeOrder(ec *execCtx, act types.Action) error {
	if len(act.Inputs) != 2 {
		return fmt.Errorf("ord_place takes market and funding balance inputs, got %d", len(act.Inputs))
	}
	p, err := types.DecodePlaceOrderParams(act.Params)
	if err != nil {
		return err
	}
	marketID, fundingID := act.Inputs[0], act.Inputs[1]
	obj, err := ec.view.loadObject(marketID)
	if err != nil {
		return err
	}
	var mkt MarketRecord
	if err := obj.decode(KindMarket, &mkt); err != nil {
		return err
	}
	switch mkt.State {
	case types.MarketClosed:
		return fmt.Errorf("market %s is closed", mkt.Name)
	case types.MarketPaused:
		return fmt.Errorf("market %s is paused", mkt.Name)
	case types.MarketCancelOnly:
		return fmt.Errorf("market %s is cancel only", mkt.Name)
	}
	if p.Amount == 0 {
		return fmt.Errorf("order amount required")
	}
	if p.Amount < mkt.MinOrderSize {
		return fmt.Errorf("amount %d below the minimum order size %d", p.Amount, mkt.MinOrderSize)
	}

	bk := a.bookFor(marketID)

	// Resolve the execution mode into a price bound and a time in
	// force. Market orders run as IOC against a slippage bound off the
	// touch.
	var bound uint64
	var tif types.TimeInForce
	isLimit := false
	switch op := p.Type.(type) {
	case types.LimitOrderParams:
		if !mkt.LimitOrders {
			return fmt.Errorf("limit orders are disabled on %s", mkt.Name)
		}
		if p.LimitPrice == 0 {
			return fmt.Errorf("limit price required")
		}
		if p.LimitPrice%mkt.TickSize != 0 {
			return fmt.Errorf("price %d is not a multiple of the tick size %d", p.LimitPrice, mkt.TickSize)
		}
		bound = p.LimitPrice
		tif = op.TIF
		isLimit = true
	case types.MarketOrderParams:
		if !mkt.AllowMarketOrders {
			return fmt.Errorf("market orders are disabled on %s", mkt.Name)
		}
		if p.Side == types.Buy {
			ask, ok := bk.bestAsk()
			if !ok {
				return fmt.Errorf("no liquidity for market order")
			}
			slip, ok := mulDiv(ask, op.Slippage, bpsDenominator)
			if !ok || math.MaxUint64-ask < slip {
				return fmt.Errorf("slippage bound overflows")
			}
			bound = ask + slip
		} else {
			bid, ok := bk.bestBid()
			if !ok {
				return fmt.Errorf("no liquidity for market order")
			}
			slip, ok := mulDiv(bid, op.Slippage, bpsDenominator)
			if !ok {
				return fmt.Errorf("slippage bound overflows")
			}
			if slip >= bid {
				bound = 0
			} else {
				bound = bid - slip
			}
		}
		tif = types.IOC
	default:
		return fmt.Errorf("unsupported order type")
	}

	// The funding balance must hold the spent token: quote for buys,
	// base for sells.
	fundingToken := mkt.BaseToken
	poolID := mkt.BaseBalanceID
	if p.Side == types.Buy {
		fundingToken = mkt.QuoteToken
		poolID = mkt.QuoteBalanceID
	}
	fundObj, fund, err := a.loadOwnedBalance(ec, fundingID, ec.sender)
	if err != nil {
		return err
	}
	if fund.Token != fundingToken {
		return fmt.Errorf("funding balance holds the wrong token for a %s", p.Side)
	}

	// Sells escrow the base amount. Buys escrow the worst-case quote
	// cost plus a fee reserve; whatever goes unspent is refunded when
	// the order completes.
	var escrow uint64
	if p.Side == types.Sell {
		escrow = p.Amount
	} else {
		cost, err := quoteCost(p.Amount, bound)
		if err != nil {
			return err
		}
		reserve := feeOf(cost, max(mkt.MakerFeeBps, mkt.TakerFeeBps))
		if math.MaxUint64-cost < reserve {
			return fmt.Errorf("order cost overflows")
		}
		escrow = cost + reserve
	}
	if fund.Amount < escrow {
		return fmt.Errorf("insufficient balance: have %d, need %d", fund.Amount, escrow)
	}

	if mkt.State == types.MarketPostOnly {
		if m := bk.head(p.Side); m != nil && crosses(p.Side, bound, m.Price) {
			return fmt.Errorf("post-only market: order would cross")
		}
	}
	if tif == types.FOK && !bk.available(p.Side, bound, p.Amount) {
		return fmt.Errorf("fill or kill: not enough liquidity within the limit")
	}

	fund.Amount -= escrow
	if err := a.putBalance(ec, fundingID, fundObj.Owner, fund); err != nil {
		return err
	}
	ec.fx.markMutated(fundingID.String())
	if err := a.poolDeposit(ec, poolID, escrow); err != nil {
		return err
	}

	ec.meta.OrderSeq++
	order := &OrderRecord{
		OrderID:   types.OrderId(ec.newObjectID()),
		MarketID:  marketID,
		Side:      p.Side,
		Price:     p.LimitPrice,
		Amount:    p.Amount,
		Remaining: p.Amount,
		Escrow:    escrow,
		Creator:   ec.sender,
		Seq:       ec.meta.OrderSeq,
	}
	ec.touch(marketID)
	ec.emit(events.OrderCreatedEvent{
		OrderID:  order.OrderID,
		MarketID: marketID,
		Side:     p.Side,
		Amount:   p.Amount,
		Price:    p.LimitPrice,
		Creator:  ec.sender,
	}.Envelope())

	for order.Remaining > 0 {
		maker := bk.head(p.Side)
		if maker == nil || !crosses(p.Side, bound, maker.Price) {
			break
		}
		q := min(order.Remaining, maker.Remaining)
		if err := a.settleFill(ec, &mkt, bk, maker, order, q); err != nil {
			return err
		}
	}

	if order.Remaining > 0 && isLimit && tif == types.GTC {
		if err := ec.view.saveOrder(*order); err != nil {
			return err
		}
		bk.add(order)
		ec.fx.markCreated(order.OrderID.String())
		return nil
	}

	// IOC and market remainders cancel; fully filled orders just
	// return their unspent escrow. Reload the funding balance: a fill
	// against the sender's own resting order may have credited it.
	if order.Escrow > 0 {
		if err := a.poolWithdraw(ec, poolID, order.Escrow); err != nil {
			return err
		}
		refundObj, refund, err := a.loadOwnedBalance(ec, fundingID, ec.sender)
		if err != nil {
			return err
		}
		refund.Amount += order.Escrow
		if err := a.putBalance(ec, fundingID, refundObj.Owner, refund); err != nil {
			return err
		}
		order.Escrow = 0
	}
	if order.Remaining > 0 {
		ec.emit(events.OrderCancelledEvent{
			OrderID:  order.OrderID,
			MarketID: marketID,
		}.Envelope())
	}
	return nil
}

// settleFill executes q base units between the resting maker and the
// aggressing taker at the maker's price. Both legs settle out of the
// market's escrow pools; each side pays its role fee in quote, which
// stays pooled.
func (a *App) settleFill(ec *execCtx, mkt *MarketRecord, bk *book, maker, taker *OrderRecord, q uint64) error {
	price := maker.Price
	notional, err := quoteCost(q, price)
	if err != nil {
		return err
	}
	makerFee := feeOf(notional, mkt.MakerFeeBps)
	takerFee := feeOf(notional, mkt.TakerFeeBps)

	buyer, seller := taker, maker
	buyerFee, sellerFee := takerFee, makerFee
	if taker.Side == types.Sell {
		buyer, seller = maker, taker
		buyerFee, sellerFee = makerFee, takerFee
	}

	if math.MaxUint64-notional < buyerFee {
		return fmt.Errorf("fill cost overflows")
	}
	buyerCharge := notional + buyerFee
	if buyer.Escrow < buyerCharge {
		return fmt.Errorf("order escrow underflow on %s", buyer.OrderID)
	}
	if seller.Escrow < q {
		return fmt.Errorf("order escrow underflow on %s", seller.OrderID)
	}
	buyer.Escrow -= buyerCharge
	seller.Escrow -= q

	// The quote pool pays the seller, keeping both fees. The base pool
	// delivers to the buyer.
	sellerProceeds := notional - sellerFee
	if err := a.poolWithdraw(ec, mkt.QuoteBalanceID, sellerProceeds); err != nil {
		return err
	}
	if _, err := a.creditToken(ec, seller.Creator, mkt.QuoteToken, sellerProceeds); err != nil {
		return err
	}
	if err := a.poolWithdraw(ec, mkt.BaseBalanceID, q); err != nil {
		return err
	}
	if _, err := a.creditToken(ec, buyer.Creator, mkt.BaseToken, q); err != nil {
		return err
	}

	maker.Remaining -= q
	taker.Remaining -= q
	bk.lastPrice = price

	if maker.Remaining == 0 {
		bk.remove(maker.OrderID)
		ec.view.deleteOrder(maker.MarketID, maker.OrderID)
		ec.fx.markDeleted(maker.OrderID.String())
		if maker.Escrow > 0 {
			// a filled-out buy maker gets its fee reserve dust back
			pool, token := mkt.BaseBalanceID, mkt.BaseToken
			if maker.Side == types.Buy {
				pool, token = mkt.QuoteBalanceID, mkt.QuoteToken
			}
			if err := a.poolWithdraw(ec, pool, maker.Escrow); err != nil {
				return err
			}
			if _, err := a.creditToken(ec, maker.Creator, token, maker.Escrow); err != nil {
				return err
			}
			maker.Escrow = 0
		}
	} else {
		if err := ec.view.saveOrder(*maker); err != nil {
			return err
		}
		ec.fx.markMutated(maker.OrderID.String())
	}

	ec.meta.TradeSeq++
	trade := TradeRecord{
		MarketID:  maker.MarketID,
		Price:     price,
		Amount:    q,
		Maker:     maker.Creator,
		Taker:     taker.Creator,
		TakerSide: taker.Side,
		Seq:       ec.meta.TradeSeq,
		Height:    ec.meta.Height,
	}
	if err := ec.view.saveTrade(trade); err != nil {
		return err
	}

	ec.emit(events.OrderFilledEvent{
		OrderID:  taker.OrderID,
		MarketID: maker.MarketID,
		Amount:   q,
		Price:    price,
		Maker:    maker.Creator,
		Taker:    taker.Creator,
	}.Envelope())
	return nil
}

func (a *App) cancelOrder(ec *execCtx, act types.Action) error {
	if len(act.Inputs) != 1 {
		return fmt.Errorf("ord_cancel takes one market input, got %d", len(act.Inputs))
	}
	p, err := types.DecodeCancelOrderParams(act.Params)
	if err != nil {
		return err
	}
	marketID := act.Inputs[0]
	obj, err := ec.view.loadObject(marketID)
	if err != nil {
		return err
	}
	var mkt MarketRecord
	if err := obj.decode(KindMarket, &mkt); err != nil {
		return err
	}
	if mkt.State == types.MarketClosed {
		return fmt.Errorf("market %s is closed", mkt.Name)
	}

	ord, ok, err := ec.view.loadOrder(marketID, p.OrderID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("unknown order %s", p.OrderID)
	}
	if ord.Creator != ec.sender {
		return fmt.Errorf("only the order creator can cancel it")
	}

	a.bookFor(marketID).remove(ord.OrderID)
	ec.touch(marketID)
	ec.view.deleteOrder(marketID, ord.OrderID)
	ec.fx.markDeleted(ord.OrderID.String())

	if ord.Escrow > 0 {
		pool, token := mkt.BaseBalanceID, mkt.BaseToken
		if ord.Side == types.Buy {
			pool, token = mkt.QuoteBalanceID, mkt.QuoteToken
		}
		if err := a.poolWithdraw(ec, pool, ord.Escrow); err != nil {
			return err
		}
		if _, err := a.creditToken(ec, ec.sender, token, ord.Escrow); err != nil {
			return err
		}
	}

	ec.emit(events.OrderCancelledEvent{
		OrderID:  ord.OrderID,
		MarketID: marketID,
	}.Envelope())
	return nil
}

func (a *App) poolDeposit(ec *execCtx, poolID types.ObjectID, amount uint64) error {
	if amount == 0 {
		return nil
	}
	obj, err := ec.view.loadObject(poolID)
	if err != nil {
		return err
	}
	var rec BalanceRecord
	if err := obj.decode(KindBalance, &rec); err != nil {
		return err
	}
	if math.MaxUint64-rec.Amount < amount {
		return fmt.Errorf("escrow pool overflow")
	}
	rec.Amount += amount
	if err := a.putBalance(ec, poolID, obj.Owner, rec); err != nil {
		return err
	}
	ec.fx.markMutated(poolID.String())
	return nil
}

func (a *App) poolWithdraw(ec *execCtx, poolID types.ObjectID, amount uint64) error {
	if amount == 0 {
		return nil
	}
	obj, err := ec.view.loadObject(poolID)
	if err != nil {
		return err
	}
	var rec BalanceRecord
	if err := obj.decode(KindBalance, &rec); err != nil {
		return err
	}
	if rec.Amount < amount {
		return fmt.Errorf("escrow pool underflow: have %d, need %d", rec.Amount, amount)
	}
	rec.Amount -= amount
	if err := a.putBalance(ec, poolID, obj.Owner, rec); err != nil {
		return err
	}
	ec.fx.markMutated(poolID.String())
	return nil
}
