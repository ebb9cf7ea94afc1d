package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/auction-sync/project/internal/app/auctionsink"
	"github.com/auction-sync/project/internal/dispatch"
	"github.com/auction-sync/project/internal/platform/dbpool"
	"github.com/auction-sync/project/internal/platform/env"
	"github.com/auction-sync/project/internal/platform/logger"
	"github.com/auction-sync/project/internal/platform/metrics"
	"github.com/auction-sync/project/internal/platform/natsutil"
	"github.com/auction-sync/project/internal/platform/ops"
	"github.com/auction-sync/project/internal/platform/otel"
	"go.uber.org/zap"
)

const serviceName = "auction-consumer"

type config struct {
	env.Common
	env.Consumer
	env.Postgres

	OpsAddr string `env:"OPS_ADDR" envDefault:":9090"`

	// Store selects the backend: "postgres" or "sqlite".
	Store      string `env:"AUCTION_STORE" envDefault:"postgres"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"auctions.db"`
}

func main() {
	var cfg config
	if err := env.Load(&cfg); err != nil {
		log.Fatal(err)
	}
	if strings.TrimSpace(cfg.Queue) == "" {
		cfg.Queue = "auction-svc"
	}

	logr, err := logger.New(serviceName, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logr.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("auction consumer stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logr *zap.Logger) error {
	shutdownTracing, err := otel.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	store, ready, closeStore, err := openStore(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer closeStore()

	client, err := natsutil.ConnectJetStreamWithRetry(cfg.NATSURL, cfg.NATSConnectWait)
	if err != nil {
		return err
	}
	defer client.Close()

	d := dispatch.New(logr, cfg.HandlerTimeout)
	auctionsink.NewService(store, logr).Register(d)

	subs, err := natsutil.SubscribeRoutes(client.JS, d, natsutil.SubscribeConfig{
		Queue:         cfg.Queue,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		NotFoundDelay: cfg.NotFoundDelay,
	})
	if err != nil {
		return err
	}
	for _, sub := range subs {
		logr.Info("listening", zap.String("subject", sub.Subject), zap.String("queue", sub.Queue))
	}

	server := ops.NewServer(cfg.OpsAddr, ops.Router(metrics.Default, client.Ready, ready))
	logr.Info("ops server listening", zap.String("addr", cfg.OpsAddr), zap.String("store", cfg.Store))
	return ops.Serve(ctx, server, cfg.ShutdownTimeout)
}

func openStore(ctx context.Context, cfg config, logr *zap.Logger) (auctionsink.Store, ops.ReadyCheck, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Store)) {
	case "sqlite":
		store, err := auctionsink.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store, store.Ping, func() { _ = store.Close() }, nil
	case "postgres", "":
		pool, err := dbpool.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, nil, err
		}
		store := auctionsink.NewPostgresStore(pool)
		if err := waitForPostgres(ctx, store, 30*time.Second, logr); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return store, pool.Ping, pool.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown AUCTION_STORE %q", cfg.Store)
	}
}

func waitForPostgres(ctx context.Context, store *auctionsink.PostgresStore, timeout time.Duration, logr *zap.Logger) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = store.Pool.Ping(attemptCtx)
		if lastErr == nil {
			lastErr = store.EnsureSchema(attemptCtx)
		}
		cancel()

		if lastErr == nil {
			return nil
		}
		logr.Warn("waiting for postgres readiness", zap.Error(lastErr))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return lastErr
}
