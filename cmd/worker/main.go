package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quayside/vendorq/internal/config"
	"github.com/quayside/vendorq/internal/db"
	"github.com/quayside/vendorq/internal/health"
	"github.com/quayside/vendorq/internal/logging"
	"github.com/quayside/vendorq/internal/metrics"
	"github.com/quayside/vendorq/internal/queue"
	"github.com/quayside/vendorq/internal/ratelimit"
	"github.com/quayside/vendorq/internal/redisx"
	"github.com/quayside/vendorq/internal/store"
	"github.com/quayside/vendorq/internal/tracing"
	"github.com/quayside/vendorq/internal/vendors"
	"github.com/quayside/vendorq/internal/worker"
)

func main() {
	ctx := context.Background()
	logger := logging.New("vendorq-worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Plain().WithError(err).Fatal("config load failed")
	}

	shutdown, err := tracing.InitTracing(ctx, "vendorq-worker")
	if err != nil {
		logger.Plain().WithError(err).Fatal("Failed to initialize tracing")
	}
	defer shutdown()

	pool, err := db.Connect(ctx, cfg.DSN())
	if err != nil {
		logger.Plain().WithError(err).Fatal("db connect failed")
	}
	defer pool.Close()

	rdb, err := redisx.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Plain().WithError(err).Fatal("redis connect failed")
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health.HTTPHandler(pool, rdb))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpSrv := &http.Server{Addr: cfg.Worker.HTTPAddr, Handler: mux}
	go func() {
		logger.Plain().WithField("addr", httpSrv.Addr).Info("worker HTTP server starting")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Plain().WithError(err).Fatal("worker HTTP server failed")
		}
	}()

	st := store.NewPostgres(pool)
	q := queue.NewRedis(rdb)
	limiter := ratelimit.New(rdb, cfg.RateLimit.Window, cfg.Capacities(), logger)

	httpClient := &http.Client{Timeout: cfg.Vendors.RequestTimeout}
	registry := vendors.NewRegistry()
	registry.Register(vendors.NewSyncClient(cfg.Vendors.SyncURL, httpClient))
	registry.Register(vendors.NewAsyncClient(cfg.Vendors.AsyncURL, cfg.Vendors.WebhookURL, httpClient))

	pl := worker.NewPool(worker.Config{
		Concurrency:    cfg.Worker.Concurrency,
		VendorTimeout:  cfg.Vendors.RequestTimeout,
		RetryBaseDelay: cfg.Worker.RetryBaseDelay,
	}, st, q, limiter, registry, logger)

	runCtx, cancel := context.WithCancel(ctx)
	startQueueDepthMonitor(runCtx, q, logger)

	done := make(chan struct{})
	go func() {
		pl.Run(runCtx)
		close(done)
	}()
	logger.Plain().WithField("concurrency", cfg.Worker.Concurrency).Info("worker pool started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Plain().Info("shutting down")

	cancel()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Plain().Warn("worker pool did not drain in time")
	}
	_ = httpSrv.Shutdown(context.Background())
}

// startQueueDepthMonitor periodically exports queue band depths.
func startQueueDepthMonitor(ctx context.Context, q queue.Queue, logger *logging.Logger) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				high, low, delayed, err := q.Depths(ctx)
				if err != nil {
					if ctx.Err() == nil {
						logger.Plain().WithError(err).Error("Failed to read queue depths")
					}
					continue
				}
				metrics.UpdateQueueDepth("high", float64(high))
				metrics.UpdateQueueDepth("low", float64(low))
				metrics.UpdateQueueDepth("delayed", float64(delayed))
			}
		}
	}()
}
