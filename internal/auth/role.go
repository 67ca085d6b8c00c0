package auth

import "errors"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleDelivery Role = "delivery"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAdmin, RoleDelivery:
		return true
	}
	return false
}

// Identity is the authenticated caller, passed explicitly into every operation.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

func (id *Identity) IsAdmin() bool { return id != nil && id.Role == RoleAdmin }

var (
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("forbidden")
)

// CheckRole returns id when its role is one of allowed. A nil identity and a
// disallowed role produce the same ErrForbidden.
func CheckRole(id *Identity, allowed ...Role) (*Identity, error) {
	if id == nil || id.UserID == "" {
		return nil, ErrForbidden
	}
	for _, r := range allowed {
		if id.Role == r {
			return id, nil
		}
	}
	return nil, ErrForbidden
}
