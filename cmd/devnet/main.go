// Command devnet runs a single-process LightPool node: object store,
// execution app, and the JSON-RPC/websocket API, with no consensus.
// Configuration comes from the environment (see params).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lightpool/lightpool-go/params"
	"github.com/lightpool/lightpool-go/pkg/api"
	"github.com/lightpool/lightpool-go/pkg/app"
	"github.com/lightpool/lightpool-go/pkg/events"
	"github.com/lightpool/lightpool-go/pkg/storage"
	"github.com/lightpool/lightpool-go/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Devnet.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.Devnet.LogFile)
	} else {
		logger, err = util.NewLogger()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	var store storage.ObjectStore
	if cfg.Devnet.DataDir != "" {
		store, err = storage.NewPebbleStore(cfg.Devnet.DataDir)
		if err != nil {
			logger.Fatal("failed to open store", zap.String("dir", cfg.Devnet.DataDir), zap.Error(err))
		}
		logger.Info("pebble store open", zap.String("dir", cfg.Devnet.DataDir))
	} else {
		store = storage.NewMemoryStore()
		logger.Info("in-memory store, state will not survive a restart")
	}

	var journal storage.Journal = storage.NewNopJournal()
	if cfg.Devnet.DataDir != "" {
		j, err := storage.NewFileJournal(filepath.Join(cfg.Devnet.DataDir, "transactions.log"))
		if err != nil {
			logger.Fatal("failed to open journal", zap.Error(err))
		}
		journal = j
	}

	// The server is created after the app, so the notify hook closes
	// over the variable. Events only flow once transactions execute,
	// well after both exist.
	var srv *api.Server
	a, err := app.New(store,
		app.WithLogger(logger.Named("app")),
		app.WithJournal(journal),
		app.WithChainID(cfg.Devnet.ChainID),
		app.WithNotify(func(ev events.Event) { srv.Broadcast(ev) }),
	)
	if err != nil {
		logger.Fatal("failed to start app", zap.Error(err))
	}

	srv = api.NewServer(a,
		api.WithLogger(logger.Named("api")),
		api.WithEventBuffer(cfg.Devnet.EventBuffer),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(cfg.Devnet.ListenAddr); err != nil {
			logger.Fatal("api server failed", zap.Error(err))
		}
	}()

	logger.Info("devnet up",
		zap.String("chain_id", cfg.Devnet.ChainID),
		zap.String("listen", cfg.Devnet.ListenAddr))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown", zap.Error(err))
	}
	if err := a.Close(); err != nil {
		logger.Warn("app close", zap.Error(err))
	}
}
