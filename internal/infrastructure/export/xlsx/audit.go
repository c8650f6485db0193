package xlsx

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
)

const (
	summarySheet = "Request"
	auditSheet   = "Audit Trail"
)

var auditHeader = []any{"Occurred At", "Action", "From", "To", "Actor", "Role", "Notes", "Details"}

// AuditWriter renders one request's audit trail as a workbook with a summary
// sheet and one row per entry.
type AuditWriter struct {
	loc *time.Location
}

func NewAuditWriter(loc *time.Location) *AuditWriter {
	if loc == nil {
		loc = time.UTC
	}
	return &AuditWriter{loc: loc}
}

func (a *AuditWriter) WriteAudit(w io.Writer, req *domain.DocumentRequest, entries []domain.AuditEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(auditSheet); err != nil {
		return fmt.Errorf("create audit sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := a.writeSummary(f, req, bold); err != nil {
		return err
	}
	if err := a.writeEntries(f, entries, bold); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func (a *AuditWriter) writeSummary(f *excelize.File, req *domain.DocumentRequest, style int) error {
	rows := [][]any{
		{"Request Number", req.RequestNumber},
		{"Request ID", req.ID},
		{"Barangay", req.BarangayID},
		{"Document Type", req.DocumentType.Name},
		{"Authority", string(req.DocumentType.AuthorityLevel)},
		{"Delivery", string(req.DeliveryMethod)},
		{"Status", string(req.Status)},
		{"Original Fee", formatPesos(req.OriginalFee)},
		{"Final Fee", formatPesos(req.FinalFee)},
		{"Payment Method", string(req.PaymentMethod)},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(rows)), style); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	return f.SetColWidth(summarySheet, "A", "B", 24)
}

func (a *AuditWriter) writeEntries(f *excelize.File, entries []domain.AuditEntry, style int) error {
	if err := f.SetSheetRow(auditSheet, "A1", &auditHeader); err != nil {
		return fmt.Errorf("write audit header: %w", err)
	}
	if err := f.SetCellStyle(auditSheet, "A1", "H1", style); err != nil {
		return fmt.Errorf("style audit header: %w", err)
	}
	for i, e := range entries {
		row := []any{
			e.OccurredAt.In(a.loc).Format("2006-01-02 15:04:05"),
			e.Action,
			string(e.FromStatus),
			string(e.ToStatus),
			e.ActorID,
			string(e.ActorRole),
			e.Notes,
			formatDetails(e.Details),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(auditSheet, cell, &row); err != nil {
			return fmt.Errorf("write audit row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(auditSheet, "A", "H", 22); err != nil {
		return fmt.Errorf("size audit columns: %w", err)
	}
	return f.SetPanes(auditSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func formatDetails(details map[string]string) string {
	keys := slices.Sorted(maps.Keys(details))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+details[k])
	}
	return strings.Join(parts, "; ")
}

// formatPesos renders centavos as a peso amount.
func formatPesos(centavos int64) string {
	return fmt.Sprintf("PHP %d.%02d", centavos/100, centavos%100)
}
