// Package client is the Go SDK for a LightPool node. It speaks
// JSON-RPC 2.0 over HTTP and subscribes to the node's websocket event
// stream. All calls take a context and positional params with a single
// element, matching the node's handler.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lightpool/lightpool-go/params"
	"github.com/lightpool/lightpool-go/pkg/events"
	"github.com/lightpool/lightpool-go/pkg/types"
)

// RPCError is a protocol-level failure returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
	idCounter  uint64
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, for tests or
// custom transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New builds a client for the node at baseURL. An empty baseURL means
// the default local devnet.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = params.DefaultRPCURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	Jsonrpc string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  [1]any `json:"params"`
}

type rpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, param any, result any) error {
	id := atomic.AddUint64(&c.idCounter, 1)

	body, err := json.Marshal(rpcRequest{
		Jsonrpc: "2.0",
		ID:      id,
		Method:  method,
		Params:  [1]any{param},
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug("rpc call", zap.String("method", method), zap.Uint64("id", id))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s returned http status %s", method, resp.Status)
		}
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// SubmitTransaction sends a signed transaction envelope and waits for
// its receipt. The devnet executes synchronously, so the receipt in
// the result is final.
func (c *Client) SubmitTransaction(ctx context.Context, env types.TxEnvelope) (*SubmitResult, error) {
	var result SubmitResult
	if err := c.call(ctx, "submitTransaction", env, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTransaction returns the stored envelope for a digest.
func (c *Client) GetTransaction(ctx context.Context, digest types.Digest) (*types.TxEnvelope, error) {
	var env types.TxEnvelope
	err := c.call(ctx, "getTransaction", digestParam{Digest: digest.String()}, &env)
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *Client) GetTransactionReceipt(ctx context.Context, digest types.Digest) (*events.Receipt, error) {
	var receipt events.Receipt
	err := c.call(ctx, "getTransactionReceipt", digestParam{Digest: digest.String()}, &receipt)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) GetObject(ctx context.Context, id types.ObjectID) (*ObjectInfo, error) {
	var obj ObjectInfo
	err := c.call(ctx, "getObject", objectParam{ObjectID: id.String()}, &obj)
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

// GetBalance returns one balance object owned by address.
func (c *Client) GetBalance(ctx context.Context, address types.Address, id types.ObjectID) (*BalanceInfo, error) {
	var bal BalanceInfo
	err := c.call(ctx, "getBalance", balanceParam{Address: address.String(), ObjectID: id.String()}, &bal)
	if err != nil {
		return nil, err
	}
	return &bal, nil
}

func (c *Client) GetMarketInfo(ctx context.Context, marketID types.ObjectID) (*MarketInfo, error) {
	var info MarketInfo
	err := c.call(ctx, "getMarketInfo", marketParam{MarketID: marketID.String()}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// GetMarkets lists every market on the chain.
func (c *Client) GetMarkets(ctx context.Context) ([]MarketInfo, error) {
	var result struct {
		Markets []MarketInfo `json:"markets"`
	}
	if err := c.call(ctx, "getMarkets", struct{}{}, &result); err != nil {
		return nil, err
	}
	return result.Markets, nil
}

// GetOrderBook returns aggregated depth for a market, best prices
// first on both sides.
func (c *Client) GetOrderBook(ctx context.Context, marketID types.ObjectID, depth int) (*OrderBook, error) {
	var book OrderBook
	err := c.call(ctx, "getOrderBook", orderBookParam{MarketID: marketID.String(), Depth: depth}, &book)
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// GetOrders returns the open orders of an address. A nil marketID
// means all markets.
func (c *Client) GetOrders(ctx context.Context, address types.Address, marketID *types.ObjectID) ([]Order, error) {
	p := ordersParam{Address: address.String()}
	if marketID != nil {
		p.MarketID = marketID.String()
	}
	var result struct {
		Orders []Order `json:"orders"`
	}
	if err := c.call(ctx, "getOrders", p, &result); err != nil {
		return nil, err
	}
	return result.Orders, nil
}

// GetTrades returns recent fills for a market, newest first.
func (c *Client) GetTrades(ctx context.Context, marketID types.ObjectID, limit int) ([]Trade, error) {
	var result struct {
		Trades []Trade `json:"trades"`
	}
	err := c.call(ctx, "getTrades", tradesParam{MarketID: marketID.String(), Limit: limit}, &result)
	if err != nil {
		return nil, err
	}
	return result.Trades, nil
}

func (c *Client) GetAccountInfo(ctx context.Context, address types.Address) (*AccountInfo, error) {
	var info AccountInfo
	err := c.call(ctx, "getAccountInfo", addressParam{Address: address.String()}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) GetChainInfo(ctx context.Context) (*ChainInfo, error) {
	var info ChainInfo
	if err := c.call(ctx, "getChainInfo", struct{}{}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Health probes the node's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach node: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node unhealthy: http status %s", resp.Status)
	}
	return nil
}

type digestParam struct {
	Digest string `json:"digest"`
}

type objectParam struct {
	ObjectID string `json:"objectId"`
}

type balanceParam struct {
	Address  string `json:"address"`
	ObjectID string `json:"objectId"`
}

type marketParam struct {
	MarketID string `json:"marketId"`
}

type orderBookParam struct {
	MarketID string `json:"marketId"`
	Depth    int    `json:"depth"`
}

type ordersParam struct {
	Address  string `json:"address"`
	MarketID string `json:"marketId,omitempty"`
}

type tradesParam struct {
	MarketID string `json:"marketId"`
	Limit    int    `json:"limit"`
}

type addressParam struct {
	Address string `json:"address"`
}
