package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
)

// Identity is asserted by the gateway in front of this service.
const (
	actorIDHeader       = "X-Actor-Id"
	actorRoleHeader     = "X-Actor-Role"
	actorBarangayHeader = "X-Actor-Barangay"
	actorScopeHeader    = "X-Actor-Scope"
)

func actorFromRequest(r *http.Request) (domain.Actor, error) {
	id := trimmedHeader(r, actorIDHeader)
	if id == "" {
		return domain.Actor{}, domain.WrapError(domain.ErrUnauthorized, "resolve actor", errors.New("missing "+actorIDHeader))
	}

	switch domain.ActorRole(trimmedHeader(r, actorRoleHeader)) {
	case domain.RoleBarangayAdmin:
		barangay := trimmedHeader(r, actorBarangayHeader)
		if barangay == "" {
			return domain.Actor{}, domain.WrapError(domain.ErrUnauthorized, "resolve actor", errors.New("barangay admin without "+actorBarangayHeader))
		}
		return domain.BarangayAdmin(id, barangay), nil
	case domain.RoleMunicipalLike:
		return domain.MunicipalAdmin(id, trimmedHeader(r, actorScopeHeader)), nil
	default:
		return domain.Actor{}, domain.WrapError(domain.ErrUnauthorized, "resolve actor", errors.New("unsupported "+actorRoleHeader))
	}
}
