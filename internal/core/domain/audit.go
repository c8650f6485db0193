package domain

import "time"

const AuditEntityDocumentRequest = "document_request"

// AuditEntry is one append-only row of the request audit trail.
type AuditEntry struct {
	ID            string            `json:"id"`
	EntityType    string            `json:"entity_type"`
	EntityID      string            `json:"entity_id"`
	RequestNumber string            `json:"request_number"`
	Action        string            `json:"action"`
	FromStatus    RequestStatus     `json:"from_status"`
	ToStatus      RequestStatus     `json:"to_status"`
	ActorID       string            `json:"actor_id"`
	ActorRole     ActorRole         `json:"actor_role"`
	Notes         string            `json:"notes,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}
