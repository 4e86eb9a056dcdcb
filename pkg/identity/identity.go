package identity

import "errors"

var (
	ErrUnknownRole             = errors.New("unknown role")
	ErrLoginRequired           = errors.New("login required")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrInvalidIdentity         = errors.New("invalid identity")
)

// Identity is the signed-in user as reported by the remote API.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Validate checks the fields the storefront relies on.
func (i Identity) Validate() error {
	if i.ID == "" {
		return errors.Join(ErrInvalidIdentity, errors.New("missing id"))
	}
	if !i.Role.Valid() {
		return errors.Join(ErrInvalidIdentity, ErrUnknownRole)
	}
	return nil
}

// Owns reports whether the identity is the artisan behind artisanID.
func (i *Identity) Owns(artisanID string) bool {
	return i != nil && i.ID != "" && i.ID == artisanID
}
