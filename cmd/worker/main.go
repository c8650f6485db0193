package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/lgu-docflow/internal/bootstrap"
	"github.com/kirillkom/lgu-docflow/internal/config"
	"github.com/kirillkom/lgu-docflow/internal/core/domain"
	"github.com/kirillkom/lgu-docflow/internal/observability/logging"
	"github.com/kirillkom/lgu-docflow/internal/observability/metrics"
)

const (
	service    = "worker"
	jobTimeout = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, service, workerMetrics.Registry())
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSPDFSubject)
	err = app.Queue.SubscribePDFJobs(ctx, func(handlerCtx context.Context, job domain.PDFJob) error {
		jobCtx, cancel := context.WithTimeout(handlerCtx, jobTimeout)
		defer cancel()

		workerMetrics.StartJob()
		start := time.Now()
		err := app.Fulfiller.Fulfil(jobCtx, job)
		workerMetrics.FinishJob(service, time.Since(start), err)
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
