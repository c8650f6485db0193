package ports

import (
	"context"
	"io"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
)

// RequestWorkflow is the inbound contract for admin-driven lifecycle actions.
type RequestWorkflow interface {
	LegalActions(ctx context.Context, requestID string, actor domain.Actor) ([]domain.Action, error)
	Perform(ctx context.Context, requestID string, actor domain.Actor, action domain.Action, payload domain.ActionPayload) (*domain.DocumentRequest, error)
	Settlement(ctx context.Context, requestID string) (domain.Settlement, error)
}

// RequestReader is the inbound read model for request snapshots.
type RequestReader interface {
	GetByID(ctx context.Context, id string) (*domain.DocumentRequest, error)
}

// DocumentFulfiller renders and attaches the digital document for a request.
type DocumentFulfiller interface {
	Fulfil(ctx context.Context, job domain.PDFJob) error
}

// AuditExporter writes a request's audit trail as a spreadsheet.
type AuditExporter interface {
	ExportAudit(ctx context.Context, requestID string, w io.Writer) error
}
