package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
)

const schemaLockKey int64 = 2026040601

type RequestRepository struct {
	db *sql.DB
}

func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RequestRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS document_requests (
	id TEXT PRIMARY KEY,
	request_number TEXT NOT NULL UNIQUE,
	barangay_id TEXT NOT NULL,
	document_type TEXT NOT NULL,
	authority_level TEXT NOT NULL,
	delivery_method TEXT NOT NULL,
	status TEXT NOT NULL,
	original_fee BIGINT NOT NULL DEFAULT 0,
	final_fee BIGINT NOT NULL DEFAULT 0,
	applied_exemption TEXT NOT NULL DEFAULT '',
	payment_method TEXT NOT NULL,
	manual_payment_status TEXT NOT NULL DEFAULT 'NONE',
	manual_payment_proof TEXT NOT NULL DEFAULT '',
	manual_payment_notes TEXT NOT NULL DEFAULT '',
	office_payment_status TEXT NOT NULL DEFAULT 'NONE',
	office_code_hash TEXT NOT NULL DEFAULT '',
	paid_at TIMESTAMPTZ,
	claim_code_hash TEXT,
	claim_code_masked TEXT,
	claim_issued_at TIMESTAMPTZ,
	claim_redeemed BOOLEAN NOT NULL DEFAULT FALSE,
	claim_redeemed_at TIMESTAMPTZ,
	document_file TEXT NOT NULL DEFAULT '',
	resident_input JSONB NOT NULL DEFAULT '{}'::jsonb,
	admin_edited_content JSONB NOT NULL DEFAULT '{}'::jsonb,
	rejection_reason TEXT NOT NULL DEFAULT '',
	version BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_document_requests_status ON document_requests(status);
CREATE INDEX IF NOT EXISTS idx_document_requests_barangay ON document_requests(barangay_id, status);

CREATE TABLE IF NOT EXISTS request_audit_log (
	id TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	request_number TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	from_status TEXT NOT NULL,
	to_status TEXT NOT NULL,
	actor_id TEXT NOT NULL,
	actor_role TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	details JSONB NOT NULL DEFAULT '{}'::jsonb,
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_request_audit_log_entity ON request_audit_log(entity_type, entity_id, occurred_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*domain.DocumentRequest, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, request_number, barangay_id, document_type, authority_level, delivery_method, status,
	original_fee, final_fee, applied_exemption,
	payment_method, manual_payment_status, manual_payment_proof, manual_payment_notes,
	office_payment_status, office_code_hash, paid_at,
	claim_code_hash, claim_code_masked, claim_issued_at, claim_redeemed, claim_redeemed_at,
	document_file, resident_input, admin_edited_content, rejection_reason,
	version, created_at, updated_at
FROM document_requests
WHERE id = $1
`, id)

	var (
		req                                    domain.DocumentRequest
		authority, delivery, status, payment   string
		manualStatus, officeStatus             string
		paidAt, claimIssuedAt, claimRedeemedAt sql.NullTime
		claimHash, claimMasked                 sql.NullString
		claimRedeemed                          bool
		residentRaw, editedRaw                 []byte
	)
	err := row.Scan(
		&req.ID, &req.RequestNumber, &req.BarangayID, &req.DocumentType.Name, &authority, &delivery, &status,
		&req.OriginalFee, &req.FinalFee, &req.AppliedExemption,
		&payment, &manualStatus, &req.ManualPaymentProof, &req.ManualPaymentNotes,
		&officeStatus, &req.OfficeCodeHash, &paidAt,
		&claimHash, &claimMasked, &claimIssuedAt, &claimRedeemed, &claimRedeemedAt,
		&req.DocumentFile, &residentRaw, &editedRaw, &req.RejectionReason,
		&req.Version, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRequestNotFound, "get request", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan request: %w", err)
	}

	req.DocumentType.AuthorityLevel = domain.AuthorityLevel(authority)
	req.DeliveryMethod = domain.DeliveryMethod(delivery)
	req.Status = domain.RequestStatus(status)
	req.PaymentMethod = domain.PaymentMethod(payment)
	req.ManualPaymentStatus = domain.ManualPaymentStatus(manualStatus)
	req.OfficePaymentStatus = domain.OfficePaymentStatus(officeStatus)
	req.PaidAt = timePtr(paidAt)

	if claimIssuedAt.Valid {
		req.ClaimToken = &domain.ClaimToken{
			CodeHash:   claimHash.String,
			CodeMasked: claimMasked.String,
			IssuedAt:   claimIssuedAt.Time,
			Redeemed:   claimRedeemed,
			RedeemedAt: timePtr(claimRedeemedAt),
		}
	}

	if req.ResidentInput, err = decodeContent(residentRaw); err != nil {
		return nil, fmt.Errorf("unmarshal resident input: %w", err)
	}
	if req.AdminEditedContent, err = decodeContent(editedRaw); err != nil {
		return nil, fmt.Errorf("unmarshal admin edited content: %w", err)
	}
	return &req, nil
}

// Save writes req only if the stored version still equals expectedVersion,
// appending audit rows in the same transaction.
func (r *RequestRepository) Save(ctx context.Context, req *domain.DocumentRequest, expectedVersion int64, audit []domain.AuditEntry) error {
	editedJSON, err := json.Marshal(nonNilContent(req.AdminEditedContent))
	if err != nil {
		return fmt.Errorf("marshal admin edited content: %w", err)
	}

	var (
		claimHash, claimMasked         any
		claimIssuedAt, claimRedeemedAt any
		claimRedeemed                  bool
	)
	if t := req.ClaimToken; t != nil {
		claimHash = t.CodeHash
		claimMasked = t.CodeMasked
		claimIssuedAt = t.IssuedAt
		claimRedeemed = t.Redeemed
		claimRedeemedAt = nullableTime(t.RedeemedAt)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
UPDATE document_requests
SET status = $3, final_fee = $4,
	manual_payment_status = $5, manual_payment_proof = $6, manual_payment_notes = $7,
	office_payment_status = $8, office_code_hash = $9, paid_at = $10,
	claim_code_hash = $11, claim_code_masked = $12, claim_issued_at = $13, claim_redeemed = $14, claim_redeemed_at = $15,
	document_file = $16, admin_edited_content = $17, rejection_reason = $18,
	version = $19, updated_at = $20
WHERE id = $1 AND version = $2
`,
		req.ID, expectedVersion, string(req.Status), req.FinalFee,
		string(req.ManualPaymentStatus), req.ManualPaymentProof, req.ManualPaymentNotes,
		string(req.OfficePaymentStatus), req.OfficeCodeHash, nullableTime(req.PaidAt),
		claimHash, claimMasked, claimIssuedAt, claimRedeemed, claimRedeemedAt,
		req.DocumentFile, editedJSON, req.RejectionReason,
		req.Version, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request rows affected: %w", err)
	}
	if affected == 0 {
		return r.missOrConflict(ctx, tx, req.ID, expectedVersion)
	}

	for _, entry := range audit {
		if err := insertAudit(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}

func (r *RequestRepository) missOrConflict(ctx context.Context, tx *sql.Tx, id string, expectedVersion int64) error {
	var current int64
	err := tx.QueryRowContext(ctx, `SELECT version FROM document_requests WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrRequestNotFound, "save request", fmt.Errorf("id=%s", id))
	}
	if err != nil {
		return fmt.Errorf("read request version: %w", err)
	}
	return domain.WrapError(domain.ErrStoreConflict, "save request",
		fmt.Errorf("id=%s expected version %d, stored %d", id, expectedVersion, current))
}

func decodeContent(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func nonNilContent(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
