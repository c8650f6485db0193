package domain

type ActorRole string

const (
	RoleBarangayAdmin ActorRole = "BARANGAY_ADMIN"
	RoleMunicipalLike ActorRole = "MUNICIPAL_LIKE"
	// RoleSystem marks audit rows written by background workers.
	RoleSystem ActorRole = "SYSTEM"
)

// Actor is the admin performing an action. BarangayID is set only for
// barangay admins; Scope is set only for municipal, provincial and super admins.
type Actor struct {
	ID         string    `json:"id"`
	Role       ActorRole `json:"role"`
	BarangayID string    `json:"barangay_id,omitempty"`
	Scope      string    `json:"scope,omitempty"`
}

func BarangayAdmin(id, barangayID string) Actor {
	return Actor{ID: id, Role: RoleBarangayAdmin, BarangayID: barangayID}
}

func MunicipalAdmin(id, scope string) Actor {
	return Actor{ID: id, Role: RoleMunicipalLike, Scope: scope}
}

func (a Actor) IsBarangayAdmin() bool { return a.Role == RoleBarangayAdmin }

func (a Actor) IsMunicipalLike() bool { return a.Role == RoleMunicipalLike }

// Owns reports whether the actor administers req. Municipal-like admins own every
// request; a barangay admin owns only barangay-authority requests filed in their barangay.
func (a Actor) Owns(req *DocumentRequest) bool {
	switch a.Role {
	case RoleMunicipalLike:
		return true
	case RoleBarangayAdmin:
		return a.BarangayID != "" &&
			a.BarangayID == req.BarangayID &&
			req.DocumentType.AuthorityLevel == AuthorityBarangay
	default:
		return false
	}
}
