// Package api exposes a LightPool node over HTTP: the /rpc JSON-RPC
// endpoint the SDK speaks, a /health liveness probe, and the /ws
// websocket stream that pushes chain events to subscribers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/lightpool/lightpool-go/pkg/app"
	"github.com/lightpool/lightpool-go/pkg/client"
	"github.com/lightpool/lightpool-go/pkg/events"
	"github.com/lightpool/lightpool-go/pkg/types"
)

// JSON-RPC 2.0 error codes. The -32000 range is ours.
const (
	codeParse          = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603
	codeRejected       = -32000 // transaction failed admission
	codeNotFound       = -32001
)

// Server routes JSON-RPC calls to the app and fans chain events out to
// websocket subscribers.
type Server struct {
	app    *app.App
	log    *zap.Logger
	router *mux.Router
	hub    *hub

	httpSrv   *http.Server
	closeOnce sync.Once
}

type Option func(*Server)

func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithEventBuffer sets the per-subscriber send queue depth. Slow
// subscribers that fall behind by more than this are dropped.
func WithEventBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.hub.sendBuffer = n
		}
	}
}

func NewServer(a *app.App, opts ...Option) *Server {
	s := &Server{
		app:    a,
		log:    zap.NewNop(),
		router: mux.NewRouter(),
	}
	s.hub = newHub(s)
	for _, opt := range opts {
		opt(s)
	}

	s.router.HandleFunc("/rpc", s.handleRPC).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebSocket)

	go s.hub.run()
	return s
}

// Handler returns the full HTTP handler with CORS applied. Useful for
// tests that mount the server on httptest.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{Addr: addr, Handler: s.Handler()}
	s.log.Info("rpc server listening", zap.String("addr", addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("rpc server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and disconnects every websocket
// subscriber.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}
	s.closeOnce.Do(func() { close(s.hub.stop) })
	return err
}

// Broadcast queues one chain event for every websocket subscriber.
// Wire it to the app with app.WithNotify. It never blocks; if the
// queue is full the event is dropped.
func (s *Server) Broadcast(ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("failed to encode event", zap.Error(err))
		return
	}
	select {
	case s.hub.broadcast <- data:
	default:
		s.log.Warn("event queue full, dropping event", zap.String("call", ev.EventType.Call))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPC(w, nil, nil, &client.RPCError{Code: codeParse, Message: "parse error: " + err.Error()})
		return
	}
	if req.Jsonrpc != "2.0" {
		writeRPC(w, req.ID, nil, &client.RPCError{Code: codeInvalidRequest, Message: "invalid request: jsonrpc must be 2.0"})
		return
	}

	s.log.Debug("rpc request", zap.String("method", req.Method))

	result, rpcErr := s.dispatch(req.Method, req.Params)
	writeRPC(w, req.ID, result, rpcErr)
}

func (s *Server) dispatch(method string, params []json.RawMessage) (any, *client.RPCError) {
	switch method {
	case "submitTransaction":
		return s.submitTransaction(params)
	case "getTransaction":
		return s.getTransaction(params)
	case "getTransactionReceipt":
		return s.getTransactionReceipt(params)
	case "getObject":
		return s.getObject(params)
	case "getBalance":
		return s.getBalance(params)
	case "getMarketInfo":
		return s.getMarketInfo(params)
	case "getMarkets":
		return s.getMarkets()
	case "getOrderBook":
		return s.getOrderBook(params)
	case "getOrders":
		return s.getOrders(params)
	case "getTrades":
		return s.getTrades(params)
	case "getAccountInfo":
		return s.getAccountInfo(params)
	case "getChainInfo":
		return s.getChainInfo()
	default:
		return nil, &client.RPCError{Code: codeMethodNotFound, Message: "method not found: " + method}
	}
}

func (s *Server) submitTransaction(params []json.RawMessage) (any, *client.RPCError) {
	var env types.TxEnvelope
	if rpcErr := decodeParams(params, &env); rpcErr != nil {
		return nil, rpcErr
	}
	digest, receipt, err := s.app.Execute(env)
	if err != nil {
		s.log.Warn("transaction rejected", zap.Error(err))
		return nil, &client.RPCError{Code: codeRejected, Message: err.Error()}
	}
	return client.SubmitResult{Digest: digest, Receipt: receipt}, nil
}

func (s *Server) getTransaction(params []json.RawMessage) (any, *client.RPCError) {
	var p digestParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	digest, err := types.ParseDigest(p.Digest)
	if err != nil {
		return nil, invalidParams(err)
	}
	env, ok, err := s.app.Transaction(digest)
	if err != nil {
		return nil, internalError(err)
	}
	if !ok {
		return nil, notFound("transaction %s", p.Digest)
	}
	return env, nil
}

func (s *Server) getTransactionReceipt(params []json.RawMessage) (any, *client.RPCError) {
	var p digestParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	digest, err := types.ParseDigest(p.Digest)
	if err != nil {
		return nil, invalidParams(err)
	}
	receipt, ok, err := s.app.Receipt(digest)
	if err != nil {
		return nil, internalError(err)
	}
	if !ok {
		return nil, notFound("receipt for %s", p.Digest)
	}
	return receipt, nil
}

func (s *Server) getObject(params []json.RawMessage) (any, *client.RPCError) {
	var p objectParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	id, err := types.ParseObjectID(p.ObjectID)
	if err != nil {
		return nil, invalidParams(err)
	}
	obj, ok, err := s.app.Object(id)
	if err != nil {
		return nil, internalError(err)
	}
	if !ok {
		return nil, notFound("object %s", p.ObjectID)
	}
	return toObjectInfo(obj), nil
}

func (s *Server) getBalance(params []json.RawMessage) (any, *client.RPCError) {
	var p balanceParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := types.ParseAddress(p.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	id, err := types.ParseObjectID(p.ObjectID)
	if err != nil {
		return nil, invalidParams(err)
	}
	bal, ok, err := s.app.Balance(id)
	if err != nil {
		return nil, internalError(err)
	}
	if !ok || bal.Owner != addr {
		return nil, notFound("balance %s for %s", p.ObjectID, p.Address)
	}
	return toBalanceInfo(bal), nil
}

func (s *Server) getMarketInfo(params []json.RawMessage) (any, *client.RPCError) {
	var p marketParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	id, err := types.ParseObjectID(p.MarketID)
	if err != nil {
		return nil, invalidParams(err)
	}
	mkt, ok, err := s.app.Market(id)
	if err != nil {
		return nil, internalError(err)
	}
	if !ok {
		return nil, notFound("market %s", p.MarketID)
	}
	return toMarketInfo(mkt), nil
}

func (s *Server) getMarkets() (any, *client.RPCError) {
	markets, err := s.app.Markets()
	if err != nil {
		return nil, internalError(err)
	}
	out := make([]client.MarketInfo, len(markets))
	for i, m := range markets {
		out[i] = toMarketInfo(m)
	}
	return marketsResult{Markets: out}, nil
}

func (s *Server) getOrderBook(params []json.RawMessage) (any, *client.RPCError) {
	var p orderBookParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	id, err := types.ParseObjectID(p.MarketID)
	if err != nil {
		return nil, invalidParams(err)
	}
	bids, asks, err := s.app.OrderBook(id, p.Depth)
	if err != nil {
		return nil, notFound("market %s", p.MarketID)
	}
	return client.OrderBook{
		MarketID: id,
		Bids:     toPriceLevels(bids),
		Asks:     toPriceLevels(asks),
	}, nil
}

func (s *Server) getOrders(params []json.RawMessage) (any, *client.RPCError) {
	var p ordersParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := types.ParseAddress(p.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	var marketID *types.ObjectID
	if p.MarketID != "" {
		id, err := types.ParseObjectID(p.MarketID)
		if err != nil {
			return nil, invalidParams(err)
		}
		marketID = &id
	}
	orders, err := s.app.Orders(addr, marketID)
	if err != nil {
		return nil, internalError(err)
	}
	out := make([]client.Order, len(orders))
	for i, o := range orders {
		out[i] = toOrder(o)
	}
	return ordersResult{Orders: out}, nil
}

func (s *Server) getTrades(params []json.RawMessage) (any, *client.RPCError) {
	var p tradesParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	id, err := types.ParseObjectID(p.MarketID)
	if err != nil {
		return nil, invalidParams(err)
	}
	trades, err := s.app.Trades(id, p.Limit)
	if err != nil {
		return nil, internalError(err)
	}
	// The app stores fills oldest first; the wire serves newest first.
	out := make([]client.Trade, len(trades))
	for i, tr := range trades {
		out[len(trades)-1-i] = toTrade(tr)
	}
	return tradesResult{Trades: out}, nil
}

func (s *Server) getAccountInfo(params []json.RawMessage) (any, *client.RPCError) {
	var p addressParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := types.ParseAddress(p.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	acct, balances, err := s.app.Account(addr)
	if err != nil {
		return nil, internalError(err)
	}
	out := make([]client.BalanceInfo, len(balances))
	for i, b := range balances {
		out[i] = toBalanceInfo(b)
	}
	return client.AccountInfo{Address: acct.Address, Nonce: acct.Nonce, Balances: out}, nil
}

func (s *Server) getChainInfo() (any, *client.RPCError) {
	meta := s.app.ChainInfo()
	return client.ChainInfo{ChainID: meta.ChainID, Height: meta.Height, TxCount: meta.TxCount}, nil
}

func decodeParams(params []json.RawMessage, v any) *client.RPCError {
	if len(params) == 0 {
		return &client.RPCError{Code: codeInvalidParams, Message: "invalid params: expected one positional param"}
	}
	if err := json.Unmarshal(params[0], v); err != nil {
		return invalidParams(err)
	}
	return nil
}

func invalidParams(err error) *client.RPCError {
	return &client.RPCError{Code: codeInvalidParams, Message: "invalid params: " + err.Error()}
}

func internalError(err error) *client.RPCError {
	return &client.RPCError{Code: codeInternal, Message: "internal error: " + err.Error()}
}

func notFound(format string, args ...any) *client.RPCError {
	return &client.RPCError{Code: codeNotFound, Message: fmt.Sprintf(format+" not found", args...)}
}

func writeRPC(w http.ResponseWriter, id json.RawMessage, result any, rpcErr *client.RPCError) {
	resp := rpcResponse{Jsonrpc: "2.0", ID: id, Error: rpcErr}
	if rpcErr == nil {
		data, err := json.Marshal(result)
		if err != nil {
			resp.Error = internalError(err)
		} else {
			resp.Result = data
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
