// Package trading layers human units on top of the RPC client: decimal
// amounts, market lookup by name, and receipt parsing down to order
// ids. One instance drives one signing key.
package trading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lightpool/lightpool-go/pkg/client"
	"github.com/lightpool/lightpool-go/pkg/crypto"
	"github.com/lightpool/lightpool-go/pkg/events"
	"github.com/lightpool/lightpool-go/pkg/types"
	"github.com/lightpool/lightpool-go/pkg/util"
)

const defaultCacheTTL = 30 * time.Second

// Decimals is the unit scale of a market: base token for amounts,
// quote token for prices.
type Decimals struct {
	Base  int32
	Quote int32
}

type cachedMarket struct {
	info    client.MarketInfo
	fetched time.Time
}

type Client struct {
	rpc    *client.Client
	signer *crypto.Signer
	log    *zap.Logger
	clock  util.Clock
	ttl    time.Duration

	mu       sync.RWMutex
	markets  map[string]cachedMarket
	decimals map[string]Decimals
}

type Option func(*Client)

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithClock(clock util.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// WithDecimals sets the unit scale for one market. Markets without an
// entry use DefaultDecimals on both legs.
func WithDecimals(market string, d Decimals) Option {
	return func(c *Client) { c.decimals[market] = d }
}

func New(rpc *client.Client, signer *crypto.Signer, opts ...Option) *Client {
	c := &Client{
		rpc:      rpc,
		signer:   signer,
		log:      zap.NewNop(),
		clock:    util.RealClock{},
		ttl:      defaultCacheTTL,
		markets:  make(map[string]cachedMarket),
		decimals: make(map[string]Decimals),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OrderResult is the parsed outcome of an order submission.
type OrderResult struct {
	OrderID types.OrderId
	Digest  types.Digest
	Fills   []events.OrderFilledEvent
	Receipt events.Receipt
}

// Markets lists the chain's markets and refreshes the name cache.
func (c *Client) Markets(ctx context.Context) ([]client.MarketInfo, error) {
	infos, err := c.rpc.GetMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list markets: %w", err)
	}
	now := c.clock.Now()
	c.mu.Lock()
	for _, info := range infos {
		c.markets[info.Name] = cachedMarket{info: info, fetched: now}
	}
	c.mu.Unlock()
	return infos, nil
}

// market resolves a name through the cache, refreshing once when the
// entry is missing or past its TTL.
func (c *Client) market(ctx context.Context, name string) (client.MarketInfo, error) {
	c.mu.RLock()
	entry, ok := c.markets[name]
	c.mu.RUnlock()
	if ok && c.clock.Now().Sub(entry.fetched) < c.ttl {
		return entry.info, nil
	}

	if _, err := c.Markets(ctx); err != nil {
		return client.MarketInfo{}, err
	}
	c.mu.RLock()
	entry, ok = c.markets[name]
	c.mu.RUnlock()
	if !ok {
		return client.MarketInfo{}, fmt.Errorf("unknown market %q", name)
	}
	return entry.info, nil
}

func (c *Client) marketDecimals(name string) Decimals {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if d, ok := c.decimals[name]; ok {
		return d
	}
	return Decimals{Base: DefaultDecimals, Quote: DefaultDecimals}
}

// PlaceLimitOrder rests or crosses a priced order. The funding balance
// is picked from the signer's account: quote for buys, base for sells.
func (c *Client) PlaceLimitOrder(ctx context.Context, market string, side types.OrderSide, amount, price decimal.Decimal, tif types.TimeInForce) (*OrderResult, error) {
	info, err := c.market(ctx, market)
	if err != nil {
		return nil, err
	}
	dec := c.marketDecimals(market)
	rawAmount, err := ToRaw(amount, dec.Base)
	if err != nil {
		return nil, fmt.Errorf("order amount: %w", err)
	}
	rawPrice, err := ToRaw(price, dec.Quote)
	if err != nil {
		return nil, fmt.Errorf("order price: %w", err)
	}

	balance, err := c.findBalance(ctx, fundingToken(info, side))
	if err != nil {
		return nil, err
	}
	action := types.NewPlaceOrderAction(info.MarketID, balance, types.PlaceOrderParams{
		Side:       side,
		Amount:     rawAmount,
		Type:       types.LimitOrderParams{TIF: tif},
		LimitPrice: rawPrice,
	})

	c.log.Debug("placing limit order",
		zap.String("market", market),
		zap.Stringer("side", side),
		zap.Uint64("amount", rawAmount),
		zap.Uint64("price", rawPrice))
	return c.submitOrder(ctx, action)
}

// PlaceMarketOrder crosses immediately against the book, giving up at
// slippageBps away from the touch.
func (c *Client) PlaceMarketOrder(ctx context.Context, market string, side types.OrderSide, amount decimal.Decimal, slippageBps uint64) (*OrderResult, error) {
	info, err := c.market(ctx, market)
	if err != nil {
		return nil, err
	}
	if !info.AllowMarketOrders {
		return nil, fmt.Errorf("market %q does not accept market orders", market)
	}
	dec := c.marketDecimals(market)
	rawAmount, err := ToRaw(amount, dec.Base)
	if err != nil {
		return nil, fmt.Errorf("order amount: %w", err)
	}

	balance, err := c.findBalance(ctx, fundingToken(info, side))
	if err != nil {
		return nil, err
	}
	action := types.NewPlaceOrderAction(info.MarketID, balance, types.PlaceOrderParams{
		Side:   side,
		Amount: rawAmount,
		Type:   types.MarketOrderParams{Slippage: slippageBps},
	})

	c.log.Debug("placing market order",
		zap.String("market", market),
		zap.Stringer("side", side),
		zap.Uint64("amount", rawAmount),
		zap.Uint64("slippage_bps", slippageBps))
	return c.submitOrder(ctx, action)
}

// CancelOrder pulls a resting order from the book.
func (c *Client) CancelOrder(ctx context.Context, market string, orderID types.OrderId) (*events.Receipt, error) {
	info, err := c.market(ctx, market)
	if err != nil {
		return nil, err
	}
	action := types.NewCancelOrderAction(info.MarketID, types.CancelOrderParams{OrderID: orderID})

	c.log.Debug("cancelling order", zap.String("market", market), zap.Stringer("order_id", orderID))
	result, err := c.submit(ctx, action)
	if err != nil {
		return nil, err
	}
	return &result.Receipt, nil
}

// OrderBook returns aggregated depth for a market by name.
func (c *Client) OrderBook(ctx context.Context, market string, depth int) (*client.OrderBook, error) {
	info, err := c.market(ctx, market)
	if err != nil {
		return nil, err
	}
	return c.rpc.GetOrderBook(ctx, info.MarketID, depth)
}

func fundingToken(info client.MarketInfo, side types.OrderSide) types.Address {
	if side == types.Buy {
		return info.QuoteToken
	}
	return info.BaseToken
}

// findBalance picks the signer's largest balance of token.
func (c *Client) findBalance(ctx context.Context, token types.Address) (types.ObjectID, error) {
	account, err := c.rpc.GetAccountInfo(ctx, c.signer.Address())
	if err != nil {
		return types.ObjectID{}, fmt.Errorf("failed to fetch account: %w", err)
	}
	var (
		best  types.ObjectID
		found bool
		max   uint64
	)
	for _, bal := range account.Balances {
		if bal.Token == token {
			if !found || bal.Amount > max {
				best, max, found = bal.ObjectID, bal.Amount, true
			}
		}
	}
	if !found {
		return types.ObjectID{}, fmt.Errorf("no %s balance for %s", token, c.signer.Address())
	}
	return best, nil
}

func (c *Client) submit(ctx context.Context, action types.Action) (*client.SubmitResult, error) {
	account, err := c.rpc.GetAccountInfo(ctx, c.signer.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	signed, err := types.NewTxBuilder().
		Nonce(account.Nonce).
		AddAction(action).
		BuildAndSign(c.signer)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	result, err := c.rpc.SubmitTransaction(ctx, c.signer.Envelope(signed))
	if err != nil {
		return nil, err
	}
	if !result.Receipt.IsSuccess() {
		if result.Receipt.Error != "" {
			return nil, fmt.Errorf("transaction failed: %s", result.Receipt.Error)
		}
		return nil, errors.New("transaction failed")
	}
	return result, nil
}

// submitOrder submits and digs the order id and fills out of the
// receipt events.
func (c *Client) submitOrder(ctx context.Context, action types.Action) (*OrderResult, error) {
	result, err := c.submit(ctx, action)
	if err != nil {
		return nil, err
	}
	out := &OrderResult{Digest: result.Digest, Receipt: result.Receipt}
	for _, ev := range result.Receipt.Events {
		switch ev.EventType.Call {
		case events.CallOrderCreated:
			created, err := events.DecodeOrderCreated(ev.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode order created event: %w", err)
			}
			out.OrderID = created.OrderID
		case events.CallOrderFilled:
			filled, err := events.DecodeOrderFilled(ev.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode order filled event: %w", err)
			}
			out.Fills = append(out.Fills, filled)
		}
	}
	return out, nil
}
