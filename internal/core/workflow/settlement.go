package workflow

import "github.com/kirillkom/lgu-docflow/internal/core/domain"

// Settle derives the payable amount and settlement state of a request.
// Rules are evaluated in order and the first match wins.
func Settle(req *domain.DocumentRequest) domain.Settlement {
	if req == nil {
		return domain.Settlement{PaymentLabel: domain.LabelUnpaid}
	}
	if req.AppliedExemption != "" || req.OriginalFee <= 0 {
		return domain.Settlement{
			FinalFee:         0,
			IsPaymentSettled: true,
			PaymentLabel:     domain.LabelNoPaymentRequired,
		}
	}

	out := domain.Settlement{FinalFee: payableFee(req)}
	switch {
	case req.PaidAt != nil,
		req.ManualPaymentStatus == domain.ManualPaymentApproved,
		req.OfficePaymentStatus == domain.OfficePaymentVerified:
		out.IsPaymentSettled = true
		out.PaymentLabel = domain.LabelPaid
	case req.ManualPaymentStatus == domain.ManualPaymentSubmitted:
		out.PaymentLabel = domain.LabelProofUnderReview
	case req.OfficePaymentStatus == domain.OfficePaymentCodeSent:
		out.PaymentLabel = domain.LabelAwaitingOffice
	default:
		out.PaymentLabel = domain.LabelUnpaid
	}
	return out
}

// payableFee honours a stored discounted fee but never exceeds the original fee
// and never reaches zero without an exemption.
func payableFee(req *domain.DocumentRequest) int64 {
	if req.FinalFee > 0 && req.FinalFee <= req.OriginalFee {
		return req.FinalFee
	}
	return req.OriginalFee
}

// IsSettled is shorthand for Settle(req).IsPaymentSettled.
func IsSettled(req *domain.DocumentRequest) bool {
	return Settle(req).IsPaymentSettled
}
