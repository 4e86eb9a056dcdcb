package kvstore

import "errors"

var (
	ErrNotFound   = errors.New("key not found")
	ErrEmptyKey   = errors.New("key cannot be empty")
	ErrStoreRead  = errors.New("failed to read from store")
	ErrStoreWrite = errors.New("failed to write to store")

	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not become ready within the given time period")

	ErrFailedToParseDBConfig    = errors.New("failed to parse postgres connection config")
	ErrFailedToOpenDBConnection = errors.New("failed to open postgres connection")
	ErrFailedToApplyMigrations  = errors.New("failed to apply kvstore migrations")

	ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")
)
