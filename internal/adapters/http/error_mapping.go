package httpadapter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	if reason, ok := domain.ReasonOf(err); ok {
		switch reason {
		case domain.ReasonWrongRole:
			return http.StatusForbidden
		case domain.ReasonEmptyReason, domain.ReasonInvalidCode:
			return http.StatusUnprocessableEntity
		default:
			return http.StatusConflict
		}
	}

	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrRequestNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrStoreConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
