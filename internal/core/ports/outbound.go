package ports

import (
	"context"
	"io"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
)

// RequestStore persists request snapshots. Save is a compare-and-swap on
// Version: it must fail with domain.ErrStoreConflict when the stored version
// differs from expectedVersion, and must append audit in the same transaction.
type RequestStore interface {
	GetByID(ctx context.Context, id string) (*domain.DocumentRequest, error)
	Save(ctx context.Context, req *domain.DocumentRequest, expectedVersion int64, audit []domain.AuditEntry) error
}

// AuditLog reads the append-only audit trail.
type AuditLog interface {
	ListByEntity(ctx context.Context, entityType, entityID string) ([]domain.AuditEntry, error)
}

// JobQueue carries PDF generation jobs from the API to the worker.
type JobQueue interface {
	PublishPDFJob(ctx context.Context, job domain.PDFJob) error
	SubscribePDFJobs(ctx context.Context, handler func(context.Context, domain.PDFJob) error) error
}

// Notifier delivers resident notifications. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, notice domain.Notification) error
}

// PDFRenderer is the external document generator.
type PDFRenderer interface {
	Render(ctx context.Context, job domain.PDFJob) ([]byte, error)
}

// ObjectStorage stores generated documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// AttemptLimiter throttles office-code verification per request.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// SpreadsheetWriter renders audit entries into a workbook.
type SpreadsheetWriter interface {
	WriteAudit(w io.Writer, req *domain.DocumentRequest, entries []domain.AuditEntry) error
}

// WorkflowObserver receives lifecycle outcomes for metrics.
type WorkflowObserver interface {
	ObserveDecision(action domain.Action, outcome string)
	ObserveStoreConflict(action domain.Action)
}
