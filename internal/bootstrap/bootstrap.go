package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/lgu-docflow/internal/config"
	"github.com/kirillkom/lgu-docflow/internal/core/claimtoken"
	"github.com/kirillkom/lgu-docflow/internal/core/ports"
	"github.com/kirillkom/lgu-docflow/internal/core/usecase"
	"github.com/kirillkom/lgu-docflow/internal/core/workflow"
	"github.com/kirillkom/lgu-docflow/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/lgu-docflow/internal/infrastructure/queue/nats"
	redislimiter "github.com/kirillkom/lgu-docflow/internal/infrastructure/ratelimit/redis"
	"github.com/kirillkom/lgu-docflow/internal/infrastructure/renderer"
	"github.com/kirillkom/lgu-docflow/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/lgu-docflow/internal/infrastructure/resilience"
	"github.com/kirillkom/lgu-docflow/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/lgu-docflow/internal/infrastructure/storage/minio"
	"github.com/kirillkom/lgu-docflow/internal/observability/metrics"
)

const auditTimezone = "Asia/Manila"

type App struct {
	Config config.Config

	Queue     *nats.Queue
	Repo      ports.RequestReader
	Workflow  ports.RequestWorkflow
	Fulfiller ports.DocumentFulfiller
	Exporter  ports.AuditExporter

	closeFns []func()
}

// New wires every adapter. Collectors are registered on reg so the calling
// process exposes them on its own /metrics endpoint.
func New(ctx context.Context, cfg config.Config, service string, reg prometheus.Registerer) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.onClose(func() { _ = db.Close() })
	repo := postgres.NewRequestRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	breakerMetrics := metrics.NewBreakerMetrics(service, reg)
	listener := resilience.WithStateListener(breakerMetrics.ObserveBreakerState)
	policy := resilienceConfig(cfg.Resilience)
	brokerExecutor := resilience.NewExecutor(policy, listener)
	rendererExecutor := resilience.NewExecutor(policy.ForRenderer(), listener)

	conn, err := nats.Connect(cfg.NATSURL, "docflow-"+service, nats.Options{})
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	app.onClose(func() { _ = conn.Drain() })
	queue := nats.NewQueue(conn, cfg.NATSPDFSubject, brokerExecutor)
	notifier := nats.NewNotifier(conn, cfg.NATSNotifySubject, brokerExecutor, cfg.NotificationTemplates)

	var limiter ports.AttemptLimiter
	if cfg.RedisURL != "" {
		client, err := redislimiter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.onClose(func() { _ = client.Close() })
		limiter = redislimiter.NewAttemptLimiter(client, cfg.OfficeCodeMaxAttempts, cfg.OfficeCodeAttemptWindow)
	} else {
		slog.Warn("office_code_throttling_disabled", "reason", "REDIS_URL is empty")
	}

	engine := workflow.New()
	issuer := claimtoken.NewIssuer(cfg.ClaimTokenLength, cfg.BcryptCost)
	transitionUC := usecase.NewTransitionUseCase(repo, engine, issuer, queue, notifier, usecase.TransitionOptions{
		Limiter:         limiter,
		Observer:        metrics.NewWorkflowMetrics(service, reg),
		ConflictRetries: cfg.StoreConflictRetries,
	})

	pdfRenderer := renderer.New(cfg.RendererURL, renderer.Options{
		Timeout:            cfg.RendererTimeout,
		ResilienceExecutor: rendererExecutor,
	})
	fulfilUC := usecase.NewFulfilDocumentUseCase(repo, pdfRenderer, storage)
	exportUC := usecase.NewAuditExportUseCase(repo, repo, xlsx.NewAuditWriter(auditLocation()))

	app.Queue = queue
	app.Repo = repo
	app.Workflow = transitionUC
	app.Fulfiller = fulfilUC
	app.Exporter = exportUC
	return app, nil
}

func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	if cfg.StorageBackend != "minio" {
		return localfs.New(cfg.StoragePath)
	}
	store, err := minio.New(minio.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func resilienceConfig(c config.ResilienceConfig) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        c.RetryMaxAttempts,
		RetryInitialBackoff:     c.RetryInitialBackoff,
		RetryMaxBackoff:         c.RetryMaxBackoff,
		BreakerEnabled:          c.BreakerEnabled,
		BreakerMinRequests:      c.BreakerMinRequests,
		BreakerFailureRatio:     c.BreakerFailureRatio,
		BreakerOpenTimeout:      c.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: c.BreakerHalfOpenMaxCalls,
	}
}

func auditLocation() *time.Location {
	loc, err := time.LoadLocation(auditTimezone)
	if err != nil {
		slog.Warn("audit_timezone_unavailable", "timezone", auditTimezone, "error", err)
		return time.UTC
	}
	return loc
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
