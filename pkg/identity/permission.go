package identity

// Permission is a capability gated by role.
type Permission int

const (
	// PlaceOrder covers checkout and order history.
	PlaceOrder Permission = iota + 1
	// ManageOwnProducts covers creating products and editing, restocking and
	// deleting the caller's own listings.
	ManageOwnProducts
	// AdminDashboard covers platform stats and the user, product and order listings.
	AdminDashboard
	// ModerateCatalog covers deleting any user or product.
	ModerateCatalog
)

func (p Permission) String() string {
	switch p {
	case PlaceOrder:
		return "orders.place"
	case ManageOwnProducts:
		return "products.manage_own"
	case AdminDashboard:
		return "admin.dashboard"
	case ModerateCatalog:
		return "admin.moderate"
	}
	return "unknown"
}

// Can reports whether role r holds permission p.
func (r Role) Can(p Permission) bool {
	switch r {
	case Customer:
		return p == PlaceOrder
	case Artisan:
		return p == PlaceOrder || p == ManageOwnProducts
	case Admin:
		return p == PlaceOrder || p == AdminDashboard || p == ModerateCatalog
	}
	return false
}

// Permissions lists what r may do.
func (r Role) Permissions() []Permission {
	var out []Permission
	for _, p := range []Permission{PlaceOrder, ManageOwnProducts, AdminDashboard, ModerateCatalog} {
		if r.Can(p) {
			out = append(out, p)
		}
	}
	return out
}

// Require returns nil when id may use p. A nil identity yields ErrLoginRequired.
func Require(id *Identity, p Permission) error {
	if id == nil {
		return ErrLoginRequired
	}
	if !id.Role.Can(p) {
		return ErrInsufficientPermissions
	}
	return nil
}
