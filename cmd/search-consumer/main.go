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

	"github.com/auction-sync/project/internal/app/searchsink"
	"github.com/auction-sync/project/internal/dispatch"
	"github.com/auction-sync/project/internal/platform/env"
	"github.com/auction-sync/project/internal/platform/logger"
	"github.com/auction-sync/project/internal/platform/metrics"
	"github.com/auction-sync/project/internal/platform/natsutil"
	"github.com/auction-sync/project/internal/platform/ops"
	"github.com/auction-sync/project/internal/platform/otel"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "search-consumer"

type config struct {
	env.Common
	env.Consumer
	env.Redis

	OpsAddr string `env:"OPS_ADDR" envDefault:":9091"`
}

func main() {
	var cfg config
	if err := env.Load(&cfg); err != nil {
		log.Fatal(err)
	}
	if strings.TrimSpace(cfg.Queue) == "" {
		cfg.Queue = "search-svc"
	}

	logr, err := logger.New(serviceName, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logr.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("search consumer stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logr *zap.Logger) error {
	shutdownTracing, err := otel.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	defer func() { _ = rdb.Close() }()

	store := searchsink.NewRedisStore(rdb)
	if err := waitForRedis(ctx, store, 30*time.Second, logr); err != nil {
		return err
	}

	client, err := natsutil.ConnectJetStreamWithRetry(cfg.NATSURL, cfg.NATSConnectWait)
	if err != nil {
		return err
	}
	defer client.Close()

	d := dispatch.New(logr, cfg.HandlerTimeout)
	searchsink.NewService(store, logr).Register(d)

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

	server := ops.NewServer(cfg.OpsAddr, ops.Router(metrics.Default, client.Ready, store.Ping))
	logr.Info("ops server listening", zap.String("addr", cfg.OpsAddr))
	return ops.Serve(ctx, server, cfg.ShutdownTimeout)
}

func waitForRedis(ctx context.Context, store *searchsink.RedisStore, timeout time.Duration, logr *zap.Logger) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = store.Ping(attemptCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		logr.Warn("waiting for redis readiness", zap.Error(lastErr))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("redis not ready after %s: %w", timeout, lastErr)
}
