package domain

import "time"

type RequestStatus string

const (
	StatusPending            RequestStatus = "PENDING"
	StatusBarangayProcessing RequestStatus = "BARANGAY_PROCESSING"
	StatusBarangayApproved   RequestStatus = "BARANGAY_APPROVED"
	StatusBarangayRejected   RequestStatus = "BARANGAY_REJECTED"
	StatusApproved           RequestStatus = "APPROVED"
	StatusProcessing         RequestStatus = "PROCESSING"
	StatusReady              RequestStatus = "READY"
	StatusPickedUp           RequestStatus = "PICKED_UP"
	StatusCompleted          RequestStatus = "COMPLETED"
	StatusRejected           RequestStatus = "REJECTED"
)

// IsTerminal reports whether no further transition is defined from s.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case StatusBarangayRejected, StatusRejected, StatusPickedUp, StatusCompleted:
		return true
	default:
		return false
	}
}

func (s RequestStatus) IsBarangayStage() bool {
	switch s {
	case StatusBarangayProcessing, StatusBarangayApproved, StatusBarangayRejected:
		return true
	default:
		return false
	}
}

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusBarangayProcessing, StatusBarangayApproved, StatusBarangayRejected,
		StatusApproved, StatusProcessing, StatusReady, StatusPickedUp, StatusCompleted, StatusRejected:
		return true
	default:
		return false
	}
}

type AuthorityLevel string

const (
	AuthorityBarangay  AuthorityLevel = "BARANGAY"
	AuthorityMunicipal AuthorityLevel = "MUNICIPAL"
)

type DeliveryMethod string

const (
	DeliveryDigital DeliveryMethod = "DIGITAL"
	DeliveryPickup  DeliveryMethod = "PICKUP"
)

type PaymentMethod string

const (
	PaymentNone       PaymentMethod = "NONE"
	PaymentManualQR   PaymentMethod = "MANUAL_QR"
	PaymentOfficeCode PaymentMethod = "OFFICE_CODE"
)

type ManualPaymentStatus string

const (
	ManualPaymentNone      ManualPaymentStatus = "NONE"
	ManualPaymentSubmitted ManualPaymentStatus = "SUBMITTED"
	ManualPaymentApproved  ManualPaymentStatus = "APPROVED"
	ManualPaymentRejected  ManualPaymentStatus = "REJECTED"
)

type OfficePaymentStatus string

const (
	OfficePaymentNone     OfficePaymentStatus = "NONE"
	OfficePaymentCodeSent OfficePaymentStatus = "CODE_SENT"
	OfficePaymentVerified OfficePaymentStatus = "VERIFIED"
)

type DocumentType struct {
	Name           string         `json:"name"`
	AuthorityLevel AuthorityLevel `json:"authority_level"`
}

// ClaimToken is the stored form of a pickup code. The plaintext never lives here.
type ClaimToken struct {
	CodeHash   string     `json:"-"`
	CodeMasked string     `json:"code_masked"`
	IssuedAt   time.Time  `json:"issued_at"`
	Redeemed   bool       `json:"redeemed"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
}

// Active reports whether the token can still be redeemed.
func (t *ClaimToken) Active() bool {
	return t != nil && !t.Redeemed
}

// DocumentRequest is a snapshot of a resident's request as held by the request store.
// Fees are expressed in centavos.
type DocumentRequest struct {
	ID             string         `json:"id"`
	RequestNumber  string         `json:"request_number"`
	BarangayID     string         `json:"barangay_id"`
	DocumentType   DocumentType   `json:"document_type"`
	DeliveryMethod DeliveryMethod `json:"delivery_method"`
	Status         RequestStatus  `json:"status"`

	OriginalFee      int64  `json:"original_fee"`
	FinalFee         int64  `json:"final_fee"`
	AppliedExemption string `json:"applied_exemption,omitempty"`

	PaymentMethod       PaymentMethod       `json:"payment_method"`
	ManualPaymentStatus ManualPaymentStatus `json:"manual_payment_status"`
	ManualPaymentProof  string              `json:"manual_payment_proof,omitempty"`
	ManualPaymentNotes  string              `json:"manual_payment_notes,omitempty"`
	OfficePaymentStatus OfficePaymentStatus `json:"office_payment_status"`
	OfficeCodeHash      string              `json:"-"`
	PaidAt              *time.Time          `json:"paid_at,omitempty"`

	ClaimToken   *ClaimToken `json:"claim_token,omitempty"`
	DocumentFile string      `json:"document_file,omitempty"`

	ResidentInput      map[string]string `json:"resident_input,omitempty"`
	AdminEditedContent map[string]string `json:"admin_edited_content,omitempty"`
	RejectionReason    string            `json:"rejection_reason,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasActiveClaimToken reports whether a non-redeemed token is attached.
func (r *DocumentRequest) HasActiveClaimToken() bool {
	return r.ClaimToken.Active()
}

func (r *DocumentRequest) HasDocumentFile() bool {
	return r.DocumentFile != ""
}

// Clone returns a deep copy so callers can mutate a snapshot without touching the original.
func (r *DocumentRequest) Clone() *DocumentRequest {
	if r == nil {
		return nil
	}
	out := *r
	if r.PaidAt != nil {
		paidAt := *r.PaidAt
		out.PaidAt = &paidAt
	}
	if r.ClaimToken != nil {
		token := *r.ClaimToken
		if r.ClaimToken.RedeemedAt != nil {
			redeemedAt := *r.ClaimToken.RedeemedAt
			token.RedeemedAt = &redeemedAt
		}
		out.ClaimToken = &token
	}
	out.ResidentInput = cloneStrings(r.ResidentInput)
	out.AdminEditedContent = cloneStrings(r.AdminEditedContent)
	return &out
}

func cloneStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Settlement is the derived payment view of a request. It is never stored.
type Settlement struct {
	FinalFee         int64        `json:"final_fee"`
	IsPaymentSettled bool         `json:"is_payment_settled"`
	PaymentLabel     PaymentLabel `json:"payment_label"`
}

type PaymentLabel string

const (
	LabelNoPaymentRequired PaymentLabel = "No Payment Required"
	LabelPaid              PaymentLabel = "Paid"
	LabelProofUnderReview  PaymentLabel = "Proof Under Review"
	LabelAwaitingOffice    PaymentLabel = "Awaiting Office Verification"
	LabelUnpaid            PaymentLabel = "Unpaid"
)
