package workflow

import (
	"fmt"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
)

// guardInput is what every guard sees: the snapshot, the actor and the derived settlement.
type guardInput struct {
	req        *domain.DocumentRequest
	actor      domain.Actor
	settlement domain.Settlement
}

type verdict struct {
	reason domain.FailureReason
	detail string
}

var allowed = verdict{}

func deny(reason domain.FailureReason, format string, args ...any) verdict {
	return verdict{reason: reason, detail: fmt.Sprintf(format, args...)}
}

func (v verdict) ok() bool { return v.reason == "" }

type guardFunc func(in guardInput) verdict

// rule is one row of the transition table. An empty next keeps the current status.
type rule struct {
	next  domain.RequestStatus
	guard guardFunc
}

// statusRules holds the status-specific rows. Rows valid in any non-terminal
// status live in anyStatusRules.
var statusRules = map[domain.RequestStatus]map[domain.Action]rule{
	domain.StatusPending: {
		domain.ActionStartBarangayReview: {
			next:  domain.StatusBarangayProcessing,
			guard: all(barangayAdminOnly, authorityIs(domain.AuthorityBarangay), owningAdmin),
		},
		domain.ActionApprove: {
			next:  domain.StatusApproved,
			guard: all(municipalOnly, authorityIs(domain.AuthorityMunicipal)),
		},
	},
	domain.StatusBarangayProcessing: {
		domain.ActionBarangayApprove: {
			next:  domain.StatusBarangayApproved,
			guard: all(barangayAdminOnly, owningAdmin),
		},
	},
	domain.StatusBarangayApproved: {
		domain.ActionStartProcessing: {
			next:  domain.StatusProcessing,
			guard: all(barangayAdminOnly, authorityIs(domain.AuthorityBarangay), owningAdmin),
		},
		domain.ActionApprove: {
			next:  domain.StatusApproved,
			guard: municipalOnly,
		},
	},
	domain.StatusApproved: {
		domain.ActionStartProcessing: {
			next:  domain.StatusProcessing,
			guard: all(owningAdmin, digitalRequiresSettlement),
		},
	},
	domain.StatusProcessing: {
		domain.ActionGenerateClaimToken: {
			guard: all(owningAdmin, deliveryIs(domain.DeliveryPickup), settled, noActiveToken),
		},
		domain.ActionInvalidateClaimToken: {
			guard: all(owningAdmin, deliveryIs(domain.DeliveryPickup), activeToken),
		},
		domain.ActionMarkReady: {
			next:  domain.StatusReady,
			guard: all(owningAdmin, deliveryIs(domain.DeliveryPickup), activeToken),
		},
		domain.ActionRequestPDFGeneration: {
			guard: all(owningAdmin, deliveryIs(domain.DeliveryDigital), settled, documentAbsent),
		},
		domain.ActionMarkComplete: {
			next:  domain.StatusCompleted,
			guard: all(owningAdmin, deliveryIs(domain.DeliveryDigital), documentPresent),
		},
	},
	domain.StatusReady: {
		domain.ActionMarkPickedUp: {
			next:  domain.StatusPickedUp,
			guard: all(owningAdmin, deliveryIs(domain.DeliveryPickup), settled, redeemableToken),
		},
	},
}

var anyStatusRules = map[domain.Action]rule{
	domain.ActionReject: {
		guard: owningAdmin,
	},
	domain.ActionApproveManualPayment: {
		guard: all(owningAdmin, manualPaymentIs(domain.ManualPaymentSubmitted)),
	},
	domain.ActionRejectManualPayment: {
		guard: all(owningAdmin, manualPaymentIs(domain.ManualPaymentSubmitted)),
	},
	domain.ActionSendOfficeCode: {
		guard: all(owningAdmin, paymentMethodIs(domain.PaymentOfficeCode), unsettled, officePaymentIs(domain.OfficePaymentNone)),
	},
	domain.ActionResendOfficeCode: {
		guard: all(owningAdmin, paymentMethodIs(domain.PaymentOfficeCode), officePaymentIs(domain.OfficePaymentCodeSent)),
	},
	domain.ActionVerifyOfficePayment: {
		guard: all(owningAdmin, paymentMethodIs(domain.PaymentOfficeCode), officePaymentIs(domain.OfficePaymentCodeSent)),
	},
}

func lookupRule(status domain.RequestStatus, action domain.Action) (rule, bool) {
	if status.IsTerminal() {
		return rule{}, false
	}
	if r, ok := statusRules[status][action]; ok {
		return r, true
	}
	r, ok := anyStatusRules[action]
	return r, ok
}

func all(guards ...guardFunc) guardFunc {
	return func(in guardInput) verdict {
		for _, g := range guards {
			if v := g(in); !v.ok() {
				return v
			}
		}
		return allowed
	}
}

func barangayAdminOnly(in guardInput) verdict {
	if !in.actor.IsBarangayAdmin() {
		return deny(domain.ReasonWrongRole, "requires a barangay admin")
	}
	return allowed
}

func municipalOnly(in guardInput) verdict {
	if !in.actor.IsMunicipalLike() {
		return deny(domain.ReasonWrongRole, "requires a municipal-level admin")
	}
	return allowed
}

func owningAdmin(in guardInput) verdict {
	if in.actor.IsBarangayAdmin() && in.req.DocumentType.AuthorityLevel != domain.AuthorityBarangay {
		return deny(domain.ReasonWrongAuthority, "document is under municipal authority")
	}
	if !in.actor.Owns(in.req) {
		return deny(domain.ReasonWrongRole, "actor does not administer this request")
	}
	return allowed
}

func authorityIs(level domain.AuthorityLevel) guardFunc {
	return func(in guardInput) verdict {
		if in.req.DocumentType.AuthorityLevel != level {
			return deny(domain.ReasonWrongAuthority, "requires %s authority, document is %s", level, in.req.DocumentType.AuthorityLevel)
		}
		return allowed
	}
}

func deliveryIs(method domain.DeliveryMethod) guardFunc {
	return func(in guardInput) verdict {
		if in.req.DeliveryMethod != method {
			return deny(domain.ReasonInvalidState, "only for %s delivery", method)
		}
		return allowed
	}
}

func settled(in guardInput) verdict {
	if !in.settlement.IsPaymentSettled {
		return deny(domain.ReasonPaymentUnsettled, "payment is %s", in.settlement.PaymentLabel)
	}
	return allowed
}

func unsettled(in guardInput) verdict {
	if in.settlement.IsPaymentSettled {
		return deny(domain.ReasonInvalidState, "payment already settled")
	}
	return allowed
}

func digitalRequiresSettlement(in guardInput) verdict {
	if in.req.DeliveryMethod != domain.DeliveryDigital {
		return allowed
	}
	if in.settlement.IsPaymentSettled || in.settlement.FinalFee == 0 {
		return allowed
	}
	return deny(domain.ReasonPaymentUnsettled, "digital delivery requires settled payment")
}

func noActiveToken(in guardInput) verdict {
	if in.req.HasActiveClaimToken() {
		return deny(domain.ReasonMissingToken, "an active claim token already exists")
	}
	return allowed
}

func activeToken(in guardInput) verdict {
	if !in.req.HasActiveClaimToken() {
		return deny(domain.ReasonMissingToken, "no active claim token")
	}
	return allowed
}

func redeemableToken(in guardInput) verdict {
	if in.req.ClaimToken != nil && in.req.ClaimToken.Redeemed {
		return deny(domain.ReasonInvalidState, "claim token already redeemed")
	}
	return activeToken(in)
}

func documentAbsent(in guardInput) verdict {
	if in.req.HasDocumentFile() {
		return deny(domain.ReasonMissingDocument, "document already generated")
	}
	return allowed
}

func documentPresent(in guardInput) verdict {
	if !in.req.HasDocumentFile() {
		return deny(domain.ReasonMissingDocument, "document has not been generated")
	}
	return allowed
}

func manualPaymentIs(status domain.ManualPaymentStatus) guardFunc {
	return func(in guardInput) verdict {
		if in.req.ManualPaymentStatus != status {
			return deny(domain.ReasonInvalidState, "manual payment is %s", in.req.ManualPaymentStatus)
		}
		return allowed
	}
}

func paymentMethodIs(method domain.PaymentMethod) guardFunc {
	return func(in guardInput) verdict {
		if in.req.PaymentMethod != method {
			return deny(domain.ReasonInvalidState, "payment method is %s", in.req.PaymentMethod)
		}
		return allowed
	}
}

func officePaymentIs(status domain.OfficePaymentStatus) guardFunc {
	return func(in guardInput) verdict {
		if in.req.OfficePaymentStatus != status {
			return deny(domain.ReasonInvalidState, "office payment is %s", in.req.OfficePaymentStatus)
		}
		return allowed
	}
}
