package workflow

import (
	"errors"
	"strings"

	"github.com/kirillkom/lgu-docflow/internal/core/claimtoken"
	"github.com/kirillkom/lgu-docflow/internal/core/domain"
)

// Apply checks action against req and, if legal, returns the next status with
// the intents the caller must execute. On failure the returned error is a
// *domain.GuardFailure and req is untouched; Apply never mutates its input.
func (e *Engine) Apply(
	req *domain.DocumentRequest,
	action domain.Action,
	actor domain.Actor,
	payload domain.ActionPayload,
) (domain.Decision, error) {
	if failure := e.Check(req, actor, action); failure != nil {
		return domain.Decision{}, failure
	}

	r, _ := lookupRule(req.Status, action)
	next := r.next
	if next == "" {
		next = req.Status
	}
	if action == domain.ActionReject {
		next = rejectedStatus(req.Status)
	}

	settlement := Settle(req)
	details := contentDetails(baseDetails(req, settlement), payload.AdminEditedContent)
	notes := strings.TrimSpace(payload.Notes)
	fail := func(reason domain.FailureReason, detail string) (domain.Decision, error) {
		return domain.Decision{}, &domain.GuardFailure{Reason: reason, Action: action, Status: req.Status, Detail: detail}
	}

	var intents []domain.Intent
	switch action {
	case domain.ActionReject:
		if notes == "" {
			return fail(domain.ReasonEmptyReason, "a rejection reason is required")
		}
		if req.HasActiveClaimToken() {
			intents = append(intents, domain.Intent{Kind: domain.IntentInvalidateClaimToken})
		}

	case domain.ActionGenerateClaimToken:
		intents = append(intents, domain.Intent{Kind: domain.IntentIssueClaimToken})

	case domain.ActionInvalidateClaimToken:
		details["claim_code_masked"] = req.ClaimToken.CodeMasked
		intents = append(intents, domain.Intent{Kind: domain.IntentInvalidateClaimToken})

	case domain.ActionMarkReady:
		details["claim_code_masked"] = req.ClaimToken.CodeMasked

	case domain.ActionMarkPickedUp:
		if err := claimtoken.Verify(req.ClaimToken, payload.Code); err != nil {
			if errors.Is(err, claimtoken.ErrAlreadyRedeemed) {
				return fail(domain.ReasonInvalidState, err.Error())
			}
			return fail(domain.ReasonInvalidCode, "claim code does not match")
		}
		details["claim_code_masked"] = req.ClaimToken.CodeMasked
		intents = append(intents, domain.Intent{Kind: domain.IntentRedeemClaimToken})

	case domain.ActionRequestPDFGeneration:
		intents = append(intents, domain.Intent{
			Kind: domain.IntentRequestPDFGeneration,
			PDF:  pdfJob(req, payload),
		})

	case domain.ActionMarkComplete:
		details["document_file"] = req.DocumentFile

	case domain.ActionApproveManualPayment:
		intents = append(intents, paymentIntent(domain.PaymentUpdate{
			ManualPaymentStatus: domain.ManualPaymentApproved,
			Notes:               notes,
		}))

	case domain.ActionRejectManualPayment:
		if notes == "" {
			return fail(domain.ReasonEmptyReason, "notes are required when rejecting a payment proof")
		}
		intents = append(intents, paymentIntent(domain.PaymentUpdate{
			ManualPaymentStatus: domain.ManualPaymentRejected,
			ClearProof:          true,
			Notes:               notes,
		}))

	case domain.ActionSendOfficeCode:
		intents = append(intents,
			paymentIntent(domain.PaymentUpdate{OfficePaymentStatus: domain.OfficePaymentCodeSent}),
			domain.Intent{Kind: domain.IntentSendOfficeCode},
		)

	case domain.ActionResendOfficeCode:
		intents = append(intents, domain.Intent{Kind: domain.IntentSendOfficeCode})

	case domain.ActionVerifyOfficePayment:
		if strings.TrimSpace(payload.Code) == "" || !claimtoken.Matches(req.OfficeCodeHash, payload.Code) {
			return fail(domain.ReasonInvalidCode, "office code does not match")
		}
		intents = append(intents, paymentIntent(domain.PaymentUpdate{OfficePaymentStatus: domain.OfficePaymentVerified}))
	}

	intents = append(intents, auditEvent(req, action, next, actor, notes, details, e.now()))
	if notice := notificationFor(req, action, next); notice != nil {
		intents = append(intents, domain.Intent{Kind: domain.IntentNotify, Notice: notice})
	}

	return domain.Decision{
		Action:     action,
		From:       req.Status,
		NextStatus: next,
		Notes:      notes,
		Intents:    intents,
	}, nil
}

// rejectedStatus keeps a rejection inside the barangay track when the request
// has not left it yet.
func rejectedStatus(current domain.RequestStatus) domain.RequestStatus {
	if strings.HasPrefix(string(current), "BARANGAY_") {
		return domain.StatusBarangayRejected
	}
	return domain.StatusRejected
}

func paymentIntent(update domain.PaymentUpdate) domain.Intent {
	return domain.Intent{Kind: domain.IntentUpdatePayment, Payment: &update}
}

func pdfJob(req *domain.DocumentRequest, payload domain.ActionPayload) *domain.PDFJob {
	content := make(map[string]string, len(req.AdminEditedContent)+len(payload.AdminEditedContent))
	for k, v := range req.AdminEditedContent {
		content[k] = v
	}
	for k, v := range payload.AdminEditedContent {
		content[k] = v
	}
	resident := make(map[string]string, len(req.ResidentInput))
	for k, v := range req.ResidentInput {
		resident[k] = v
	}
	return &domain.PDFJob{
		RequestID:          req.ID,
		RequestNumber:      req.RequestNumber,
		DocumentType:       req.DocumentType.Name,
		ResidentInput:      resident,
		AdminEditedContent: content,
	}
}

func notificationFor(req *domain.DocumentRequest, action domain.Action, next domain.RequestStatus) *domain.Notification {
	notice := &domain.Notification{
		RequestID:     req.ID,
		RequestNumber: req.RequestNumber,
		Status:        next,
	}
	switch action {
	case domain.ActionGenerateClaimToken:
		notice.Event = domain.NoticeClaimCodeIssued
		notice.Message = "Your claim code for document pickup has been issued."
	case domain.ActionSendOfficeCode, domain.ActionResendOfficeCode:
		notice.Event = domain.NoticeOfficeCodeSent
		notice.Message = "Present this payment code at the municipal cashier."
	case domain.ActionApproveManualPayment:
		notice.Event = domain.NoticePaymentReviewed
		notice.Message = "Your payment proof was approved."
	case domain.ActionRejectManualPayment:
		notice.Event = domain.NoticePaymentReviewed
		notice.Message = "Your payment proof was rejected. Please submit a new proof."
	case domain.ActionVerifyOfficePayment:
		notice.Event = domain.NoticePaymentReviewed
		notice.Message = "Your office payment was verified."
	default:
		if next == req.Status {
			return nil
		}
		notice.Event = domain.NoticeStatusChanged
		notice.Message = "Your request is now " + string(next) + "."
	}
	return notice
}
