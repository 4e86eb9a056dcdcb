package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/handicraft/storefront/pkg/kvstore"
	"github.com/handicraft/storefront/pkg/logger"
)

// OpenStorage connects the backend named by cfg.Storage. The returned close
// function releases its connections and is never nil.
func OpenStorage(ctx context.Context, cfg Config, log *slog.Logger) (kvstore.Store, func() error, error) {
	noop := func() error { return nil }
	log = log.With(logger.Component("storage"), slog.String("backend", cfg.Storage))

	switch cfg.Storage {
	case StorageMemory:
		return kvstore.NewMemoryStore(), noop, nil

	case StorageFile, "":
		fs, err := kvstore.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, noop, errors.Join(ErrStorageOpen, err)
		}
		log.DebugContext(ctx, "file storage ready", slog.String("dir", fs.Dir()))
		return fs, noop, nil

	case StorageRedis:
		client, err := kvstore.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, errors.Join(ErrStorageOpen, err)
		}
		store := kvstore.NewRedisStore(client, cfg.Redis.KeyPrefix)
		log.InfoContext(ctx, "redis storage ready")
		return store, store.Close, nil

	case StoragePostgres:
		pool, err := kvstore.ConnectPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, noop, errors.Join(ErrStorageOpen, err)
		}
		if err := kvstore.MigratePostgres(ctx, pool, cfg.Postgres, log); err != nil {
			pool.Close()
			return nil, noop, errors.Join(ErrStorageOpen, err)
		}
		store := kvstore.NewPostgresStore(pool)
		log.InfoContext(ctx, "postgres storage ready")
		return store, store.Close, nil

	case StorageMongo:
		client, err := kvstore.ConnectMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, noop, errors.Join(ErrStorageOpen, err)
		}
		store := kvstore.NewMongoStore(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
		log.InfoContext(ctx, "mongo storage ready")
		return store, func() error { return client.Disconnect(context.Background()) }, nil
	}

	return nil, noop, fmt.Errorf("%w: %q", ErrUnknownStorage, cfg.Storage)
}
