package checkout

import "errors"

var (
	// ErrEmptySelection is returned by Begin when no line was selected.
	ErrEmptySelection = errors.New("checkout.empty_selection")

	// ErrNotInCart is returned by Begin for a product that is not in the cart.
	ErrNotInCart = errors.New("checkout.not_in_cart")

	// ErrNothingToCheckout means neither a selection nor a cart is available.
	ErrNothingToCheckout = errors.New("checkout.nothing_to_checkout")

	// ErrCartNotUpdated is returned with a placed order whose lines could not
	// be removed from the stored cart.
	ErrCartNotUpdated = errors.New("checkout.cart_not_updated")
)
