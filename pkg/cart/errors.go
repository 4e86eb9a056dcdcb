package cart

import "errors"

var (
	ErrNoRepository     = errors.New("cart: repository is required")
	ErrMissingProductID = errors.New("cart: product id cannot be empty")
	ErrInvalidQuantity  = errors.New("cart: quantity must be positive")
	ErrLoadFailed       = errors.New("cart: failed to load partition")
	ErrSaveFailed       = errors.New("cart: failed to save partition")
	ErrCorruptCart      = errors.New("cart: stored cart is unreadable")
	ErrNotLoaded        = errors.New("cart: no partition loaded yet")
)
