package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
	"github.com/kirillkom/lgu-docflow/internal/infrastructure/resilience"
)

const workerQueueGroup = "pdf-workers"

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
}

// Connect dials NATS with reconnect handling suitable for long-running processes.
func Connect(url, name string, options Options) (*nats.Conn, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

// NewQueue carries PDF generation jobs on subject.
func NewQueue(conn *nats.Conn, subject string, executor *resilience.Executor) *Queue {
	return &Queue{conn: conn, subject: subject, executor: executor}
}

func (q *Queue) PublishPDFJob(ctx context.Context, job domain.PDFJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal pdf job: %w", err)
	}
	return publish(ctx, q.conn, q.executor, "nats.publish.pdf_job", q.subject, data)
}

// SubscribePDFJobs blocks until ctx is done, then drains the subscription.
// Jobs delivered during the drain still run; they are not dropped.
func (q *Queue) SubscribePDFJobs(ctx context.Context, handler func(context.Context, domain.PDFJob) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		handlePDFJob(ctx, msg.Subject, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := waitDrained(sub, drainTimeout); err != nil {
		return err
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

const (
	// jobBudget bounds a job that outlives the subscription context.
	jobBudget    = 5 * time.Minute
	drainTimeout = jobBudget + 30*time.Second
	drainPoll    = 50 * time.Millisecond
)

func handlePDFJob(ctx context.Context, subject string, data []byte, handler func(context.Context, domain.PDFJob) error) {
	var job domain.PDFJob
	if err := json.Unmarshal(data, &job); err != nil {
		slog.Error("pdf_job_decode_failed", "subject", subject, "error", err)
		return
	}

	jobCtx, cancel := jobContext(ctx)
	defer cancel()
	if ctx.Err() != nil {
		slog.Info("pdf_job_draining", "request_id", job.RequestID)
	}
	if err := handler(jobCtx, job); err != nil {
		slog.Error("pdf_job_failed", "request_id", job.RequestID, "error", err)
	}
}

// jobContext detaches a job from shutdown so a job started before, or
// delivered during, the drain can finish and commit its attachment.
func jobContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), jobBudget)
}

func waitDrained(sub *nats.Subscription, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for sub.IsValid() {
		if time.Now().After(deadline) {
			return fmt.Errorf("nats drain subscription: %w", nats.ErrTimeout)
		}
		time.Sleep(drainPoll)
	}
	return nil
}

func publish(ctx context.Context, conn *nats.Conn, executor *resilience.Executor, operation, subject string, data []byte) error {
	call := func(_ context.Context) error {
		if err := conn.Publish(subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if executor != nil {
		err = executor.Execute(ctx, operation, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}
