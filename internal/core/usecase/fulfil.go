package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
	"github.com/kirillkom/lgu-docflow/internal/core/ports"
	"github.com/kirillkom/lgu-docflow/internal/core/workflow"
)

const (
	pdfWorkerActorID      = "system:pdf-worker"
	auditDocumentGenerate = "document_generated"
)

// FulfilDocumentUseCase renders the digital document for a request and
// attaches it, so mark_complete becomes legal.
type FulfilDocumentUseCase struct {
	store    ports.RequestStore
	renderer ports.PDFRenderer
	storage  ports.ObjectStorage
	retries  int
	now      func() time.Time
}

func NewFulfilDocumentUseCase(
	store ports.RequestStore,
	renderer ports.PDFRenderer,
	storage ports.ObjectStorage,
) *FulfilDocumentUseCase {
	return &FulfilDocumentUseCase{
		store:    store,
		renderer: renderer,
		storage:  storage,
		retries:  defaultConflictRetries,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (uc *FulfilDocumentUseCase) Fulfil(ctx context.Context, job domain.PDFJob) error {
	if strings.TrimSpace(job.RequestID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "fulfil document", errors.New("job without request id"))
	}

	req, err := uc.loadRequest(ctx, job.RequestID)
	if err != nil {
		return err
	}
	if reason := ineligible(req); reason != "" {
		slog.Info("pdf_job_skipped", "request_id", req.ID, "reason", reason)
		return nil
	}

	data, err := uc.render(ctx, job)
	if err != nil {
		return err
	}

	key := documentKey(req)
	if err := uc.storage.Save(ctx, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save document to object storage: %w", err)
	}

	return uc.attach(ctx, req, key)
}

// attach records the document on the request, re-reading on version conflicts.
func (uc *FulfilDocumentUseCase) attach(ctx context.Context, req *domain.DocumentRequest, key string) error {
	var lastErr error
	for attempt := 1; attempt <= uc.retries; attempt++ {
		if reason := ineligible(req); reason != "" {
			slog.Info("pdf_attach_skipped", "request_id", req.ID, "reason", reason)
			return nil
		}

		now := uc.now()
		next := req.Clone()
		next.DocumentFile = key
		next.Version = req.Version + 1
		next.UpdatedAt = now

		entry := domain.AuditEntry{
			ID:            uuid.NewString(),
			EntityType:    domain.AuditEntityDocumentRequest,
			EntityID:      req.ID,
			RequestNumber: req.RequestNumber,
			Action:        auditDocumentGenerate,
			FromStatus:    req.Status,
			ToStatus:      req.Status,
			ActorID:       pdfWorkerActorID,
			ActorRole:     domain.RoleSystem,
			Details:       map[string]string{"document_file": key},
			OccurredAt:    now,
		}

		err := uc.store.Save(ctx, next, req.Version, []domain.AuditEntry{entry})
		if err == nil {
			return nil
		}
		if !domain.IsKind(err, domain.ErrStoreConflict) {
			return fmt.Errorf("attach document: %w", err)
		}
		lastErr = err

		req, err = uc.loadRequest(ctx, req.ID)
		if err != nil {
			return err
		}
	}
	return fmt.Errorf("attach document after %d attempts: %w", uc.retries, lastErr)
}

func (uc *FulfilDocumentUseCase) loadRequest(ctx context.Context, requestID string) (*domain.DocumentRequest, error) {
	req, err := uc.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("fetch request by id: %w", err)
	}
	return req, nil
}

func (uc *FulfilDocumentUseCase) render(ctx context.Context, job domain.PDFJob) ([]byte, error) {
	data, err := uc.renderer.Render(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "render document", errors.New("empty document"))
	}
	return data, nil
}

// ineligible returns why a job must not attach a document, or "" if it may.
func ineligible(req *domain.DocumentRequest) string {
	switch {
	case req.Status != domain.StatusProcessing:
		return "status " + string(req.Status)
	case req.DeliveryMethod != domain.DeliveryDigital:
		return "not a digital request"
	case req.HasDocumentFile():
		return "document already attached"
	case !workflow.IsSettled(req):
		return "payment not settled"
	default:
		return ""
	}
}

func documentKey(req *domain.DocumentRequest) string {
	return filepath.ToSlash(filepath.Join("documents", req.ID, sanitizeFilename(req.RequestNumber)+".pdf"))
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document"
	}
	return base
}
