package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
	"github.com/kirillkom/lgu-docflow/internal/core/ports"
)

type AuditExportUseCase struct {
	store  ports.RequestStore
	log    ports.AuditLog
	writer ports.SpreadsheetWriter
}

func NewAuditExportUseCase(store ports.RequestStore, log ports.AuditLog, writer ports.SpreadsheetWriter) *AuditExportUseCase {
	return &AuditExportUseCase{store: store, log: log, writer: writer}
}

func (uc *AuditExportUseCase) ExportAudit(ctx context.Context, requestID string, w io.Writer) error {
	req, err := uc.store.GetByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load request: %w", err)
	}
	entries, err := uc.log.ListByEntity(ctx, domain.AuditEntityDocumentRequest, req.ID)
	if err != nil {
		return fmt.Errorf("list audit entries: %w", err)
	}
	if err := uc.writer.WriteAudit(w, req, entries); err != nil {
		return fmt.Errorf("write audit workbook: %w", err)
	}
	return nil
}
