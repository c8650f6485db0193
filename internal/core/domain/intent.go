package domain

type IntentKind string

const (
	IntentEmitAudit            IntentKind = "emit_audit"
	IntentIssueClaimToken      IntentKind = "issue_claim_token"
	IntentInvalidateClaimToken IntentKind = "invalidate_claim_token"
	IntentRedeemClaimToken     IntentKind = "redeem_claim_token"
	IntentRequestPDFGeneration IntentKind = "request_pdf_generation"
	IntentUpdatePayment        IntentKind = "update_payment"
	IntentSendOfficeCode       IntentKind = "send_office_code"
	IntentNotify               IntentKind = "notify"
)

// Intent is a side effect the workflow engine asks its caller to execute.
// Exactly one of the payload pointers is set, matching Kind.
type Intent struct {
	Kind    IntentKind     `json:"kind"`
	Audit   *AuditEntry    `json:"audit,omitempty"`
	Payment *PaymentUpdate `json:"payment,omitempty"`
	PDF     *PDFJob        `json:"pdf,omitempty"`
	Notice  *Notification  `json:"notice,omitempty"`
}

// PaymentUpdate is the payment-field mutation proposed by a review action.
type PaymentUpdate struct {
	ManualPaymentStatus ManualPaymentStatus `json:"manual_payment_status,omitempty"`
	OfficePaymentStatus OfficePaymentStatus `json:"office_payment_status,omitempty"`
	ClearProof          bool                `json:"clear_proof,omitempty"`
	Notes               string              `json:"notes,omitempty"`
}

// PDFJob is the input handed to the external document generator.
type PDFJob struct {
	RequestID          string            `json:"request_id"`
	RequestNumber      string            `json:"request_number"`
	DocumentType       string            `json:"document_type"`
	ResidentInput      map[string]string `json:"resident_input,omitempty"`
	AdminEditedContent map[string]string `json:"admin_edited_content,omitempty"`
}

type NotificationEvent string

const (
	NoticeStatusChanged   NotificationEvent = "status_changed"
	NoticeClaimCodeIssued NotificationEvent = "claim_code_issued"
	NoticeOfficeCodeSent  NotificationEvent = "office_code_sent"
	NoticePaymentReviewed NotificationEvent = "payment_reviewed"
)

// Notification is fire-and-forget. Secret holds a plaintext code only when the
// caller materialises a token or office code; the engine never fills it.
type Notification struct {
	Event         NotificationEvent `json:"event"`
	RequestID     string            `json:"request_id"`
	RequestNumber string            `json:"request_number"`
	Status        RequestStatus     `json:"status"`
	Message       string            `json:"message,omitempty"`
	Secret        string            `json:"secret,omitempty"`
}

// Decision is the pure outcome of applying an action to a snapshot.
type Decision struct {
	Action     Action        `json:"action"`
	From       RequestStatus `json:"from"`
	NextStatus RequestStatus `json:"next_status"`
	Notes      string        `json:"notes,omitempty"`
	Intents    []Intent      `json:"intents"`
}

// Has reports whether the decision carries an intent of the given kind.
func (d Decision) Has(kind IntentKind) bool {
	for _, in := range d.Intents {
		if in.Kind == kind {
			return true
		}
	}
	return false
}
