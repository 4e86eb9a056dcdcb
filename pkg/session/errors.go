package session

import "errors"

var (
	// ErrNotReady is returned while the persisted session has not been restored yet.
	ErrNotReady = errors.New("session.not_ready")

	// ErrAlreadyRestored is returned by a second Restore.
	ErrAlreadyRestored = errors.New("session.already_restored")

	// ErrPersistFailed wraps failures of the keyed storage.
	ErrPersistFailed = errors.New("session.persist_failed")

	// ErrCorruptSession reports a persisted credential that could not be read back.
	ErrCorruptSession = errors.New("session.corrupt")

	// ErrNoGateway indicates the store was built without a gateway.
	ErrNoGateway = errors.New("session.no_gateway")

	// ErrNoStorage indicates the store was built without keyed storage.
	ErrNoStorage = errors.New("session.no_storage")
)
