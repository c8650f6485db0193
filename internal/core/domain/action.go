package domain

type Action string

const (
	ActionStartBarangayReview  Action = "start_barangay_review"
	ActionBarangayApprove      Action = "barangay_approve"
	ActionApprove              Action = "approve"
	ActionStartProcessing      Action = "start_processing"
	ActionGenerateClaimToken   Action = "generate_claim_token"
	ActionInvalidateClaimToken Action = "invalidate_claim_token"
	ActionMarkReady            Action = "mark_ready"
	ActionRequestPDFGeneration Action = "request_pdf_generation"
	ActionMarkComplete         Action = "mark_complete"
	ActionMarkPickedUp         Action = "mark_picked_up"
	ActionReject               Action = "reject"

	ActionApproveManualPayment Action = "approve_manual_payment"
	ActionRejectManualPayment  Action = "reject_manual_payment"
	ActionSendOfficeCode       Action = "send_office_code"
	ActionResendOfficeCode     Action = "resend_office_code"
	ActionVerifyOfficePayment  Action = "verify_office_payment"
)

// AllActions lists every action in a stable order used for legal-action listings.
var AllActions = []Action{
	ActionStartBarangayReview,
	ActionBarangayApprove,
	ActionApprove,
	ActionStartProcessing,
	ActionGenerateClaimToken,
	ActionInvalidateClaimToken,
	ActionMarkReady,
	ActionRequestPDFGeneration,
	ActionMarkComplete,
	ActionMarkPickedUp,
	ActionApproveManualPayment,
	ActionRejectManualPayment,
	ActionSendOfficeCode,
	ActionResendOfficeCode,
	ActionVerifyOfficePayment,
	ActionReject,
}

func ParseAction(raw string) (Action, bool) {
	for _, a := range AllActions {
		if string(a) == raw {
			return a, true
		}
	}
	return "", false
}

// ActionPayload carries operator input. Only the fields an action reads are inspected.
type ActionPayload struct {
	Notes string `json:"notes,omitempty" validate:"max=2000"`
	// Code is the office payment code or the resident's claim code.
	Code string `json:"code,omitempty" validate:"max=64"`
	// AdminEditedContent is passed through to audit and PDF intents untouched.
	AdminEditedContent map[string]string `json:"admin_edited_content,omitempty"`
}
