// Package session owns "who is signed in". A Store restores the persisted
// credential once at startup, signs users in and out through the API gateway,
// keeps the gateway's bearer credential in step with the current identity,
// and tells subscribers (the cart store first of all) when the identity
// changes.
//
// Lifecycle:
//
//	unresolved --restore--> anonymous | authenticated
//	anonymous  --login----> authenticated
//	authenticated --logout--> anonymous
//
// Until Restore has run the store is unresolved: Ready is open and operations
// that depend on the identity return ErrNotReady.
//
// Persisted keys are "token" and "user". When a Sealer is configured both are
// encrypted at rest.
package session
