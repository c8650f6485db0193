package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRequestNotFound = errors.New("document request not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrStoreConflict   = errors.New("store conflict")
	ErrTooManyAttempts = errors.New("too many attempts")
	ErrTemporary       = errors.New("temporary failure")
	ErrGuardRejected   = errors.New("transition rejected")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

type FailureReason string

const (
	ReasonWrongRole        FailureReason = "WRONG_ROLE"
	ReasonWrongAuthority   FailureReason = "WRONG_AUTHORITY"
	ReasonPaymentUnsettled FailureReason = "PAYMENT_UNSETTLED"
	ReasonMissingToken     FailureReason = "MISSING_TOKEN"
	ReasonMissingDocument  FailureReason = "MISSING_DOCUMENT"
	ReasonInvalidState     FailureReason = "INVALID_STATE"
	ReasonInvalidCode      FailureReason = "INVALID_CODE"
	ReasonEmptyReason      FailureReason = "EMPTY_REASON"
)

// GuardFailure is a recoverable refusal of an action. The request is left unchanged.
type GuardFailure struct {
	Reason FailureReason `json:"reason"`
	Action Action        `json:"action"`
	Status RequestStatus `json:"status"`
	Detail string        `json:"detail,omitempty"`
}

func (f *GuardFailure) Error() string {
	if f.Detail == "" {
		return fmt.Sprintf("%s rejected in %s: %s", f.Action, f.Status, f.Reason)
	}
	return fmt.Sprintf("%s rejected in %s: %s: %s", f.Action, f.Status, f.Reason, f.Detail)
}

func (f *GuardFailure) Unwrap() error {
	return ErrGuardRejected
}

// ReasonOf extracts the failure reason from err, if it carries one.
func ReasonOf(err error) (FailureReason, bool) {
	var failure *GuardFailure
	if errors.As(err, &failure) {
		return failure.Reason, true
	}
	return "", false
}
