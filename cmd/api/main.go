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

	"github.com/quayside/vendorq/internal/api"
	"github.com/quayside/vendorq/internal/config"
	"github.com/quayside/vendorq/internal/db"
	"github.com/quayside/vendorq/internal/health"
	"github.com/quayside/vendorq/internal/intake"
	"github.com/quayside/vendorq/internal/logging"
	"github.com/quayside/vendorq/internal/metrics"
	"github.com/quayside/vendorq/internal/queue"
	"github.com/quayside/vendorq/internal/redisx"
	"github.com/quayside/vendorq/internal/store"
	"github.com/quayside/vendorq/internal/tracing"
	"github.com/quayside/vendorq/internal/webhook"
)

func main() {
	ctx := context.Background()
	logger := logging.New("vendorq-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Plain().WithError(err).Fatal("config load failed")
	}

	shutdown, err := tracing.InitTracing(ctx, "vendorq-api")
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

	st := store.NewPostgres(pool)
	q := queue.NewRedis(rdb)
	in := intake.NewService(st, q, cfg.Worker.MaxAttempts, logger)
	res := webhook.NewResolver(st, logger)
	srv := api.NewServer(in, res, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health.HTTPHandler(pool, rdb))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", srv.Routes())

	httpSrv := &http.Server{Addr: cfg.APIAddr, Handler: mux}
	go func() {
		logger.Plain().WithField("addr", httpSrv.Addr).Info("api server starting")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Plain().WithError(err).Fatal("api server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Plain().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
