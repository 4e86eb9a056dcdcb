// Package identity models who is using the storefront: the authenticated
// Identity and its Role. Role is a closed set; every decision that depends on
// it goes through an exhaustive switch here instead of string comparisons at
// call sites.
package identity

import (
	"fmt"
	"strings"
)

type Role int

const (
	Customer Role = iota + 1
	Artisan
	Admin
)

// Roles lists every role in display order.
var Roles = []Role{Customer, Artisan, Admin}

// RegistrableRoles are the roles a visitor may pick when signing up.
var RegistrableRoles = []Role{Customer, Artisan}

// ParseRole maps the wire name of a role to its value.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "customer":
		return Customer, nil
	case "artisan":
		return Artisan, nil
	case "admin":
		return Admin, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// String returns the wire name.
func (r Role) String() string {
	switch r {
	case Customer:
		return "customer"
	case Artisan:
		return "artisan"
	case Admin:
		return "admin"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

func (r Role) Valid() bool {
	switch r {
	case Customer, Artisan, Admin:
		return true
	}
	return false
}

// Label is the human-facing name.
func (r Role) Label() string {
	switch r {
	case Customer:
		return "Customer"
	case Artisan:
		return "Artisan"
	case Admin:
		return "Admin"
	}
	return "Unknown"
}

// Registrable reports whether the role can be chosen at sign-up.
func (r Role) Registrable() bool {
	switch r {
	case Customer, Artisan:
		return true
	case Admin:
		return false
	}
	return false
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
