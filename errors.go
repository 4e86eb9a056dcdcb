package storefront

import "errors"

var (
	ErrUnknownStorage   = errors.New("unknown storage backend")
	ErrInvalidSecretKey = errors.New("invalid STOREFRONT_SECRET_KEY")
	ErrStorageOpen      = errors.New("failed to open storage backend")
)
