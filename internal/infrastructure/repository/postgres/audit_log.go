package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
)

func insertAudit(ctx context.Context, tx *sql.Tx, entry domain.AuditEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]string{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO request_audit_log (
	id, entity_type, entity_id, request_number, action, from_status, to_status, actor_id, actor_role, notes, details, occurred_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		entry.ID, entry.EntityType, entry.EntityID, entry.RequestNumber, entry.Action,
		string(entry.FromStatus), string(entry.ToStatus), entry.ActorID, string(entry.ActorRole),
		entry.Notes, detailsJSON, entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByEntity returns the audit trail of one entity in chronological order.
func (r *RequestRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, entity_type, entity_id, request_number, action, from_status, to_status, actor_id, actor_role, notes, details, occurred_at
FROM request_audit_log
WHERE entity_type = $1 AND entity_id = $2
ORDER BY occurred_at ASC, id ASC
`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var (
			entry          domain.AuditEntry
			from, to, role string
			detailsRaw     []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.EntityType,
			&entry.EntityID,
			&entry.RequestNumber,
			&entry.Action,
			&from,
			&to,
			&entry.ActorID,
			&role,
			&entry.Notes,
			&detailsRaw,
			&entry.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.FromStatus = domain.RequestStatus(from)
		entry.ToStatus = domain.RequestStatus(to)
		entry.ActorRole = domain.ActorRole(role)
		if entry.Details, err = decodeContent(detailsRaw); err != nil {
			return nil, fmt.Errorf("unmarshal audit details: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}
