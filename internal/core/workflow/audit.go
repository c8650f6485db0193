package workflow

import (
	"strings"
	"time"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
)

const contentDetailPrefix = "content."

// auditEvent shapes the audit row for a decision. IDs are assigned by the sink.
func auditEvent(
	req *domain.DocumentRequest,
	action domain.Action,
	to domain.RequestStatus,
	actor domain.Actor,
	notes string,
	details map[string]string,
	at time.Time,
) domain.Intent {
	entry := &domain.AuditEntry{
		EntityType:    domain.AuditEntityDocumentRequest,
		EntityID:      req.ID,
		RequestNumber: req.RequestNumber,
		Action:        string(action),
		FromStatus:    req.Status,
		ToStatus:      to,
		ActorID:       actor.ID,
		ActorRole:     actor.Role,
		Notes:         strings.TrimSpace(notes),
		Details:       details,
		OccurredAt:    at,
	}
	return domain.Intent{Kind: domain.IntentEmitAudit, Audit: entry}
}

// contentDetails flattens edited content into audit details so the trail records
// what the admin submitted without interpreting it.
func contentDetails(base map[string]string, content map[string]string) map[string]string {
	if len(content) == 0 {
		return base
	}
	if base == nil {
		base = make(map[string]string, len(content))
	}
	for k, v := range content {
		base[contentDetailPrefix+k] = v
	}
	return base
}

func baseDetails(req *domain.DocumentRequest, settlement domain.Settlement) map[string]string {
	return map[string]string{
		"document_type":   req.DocumentType.Name,
		"authority_level": string(req.DocumentType.AuthorityLevel),
		"delivery_method": string(req.DeliveryMethod),
		"payment_label":   string(settlement.PaymentLabel),
	}
}
