package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/handicraft/storefront/pkg/catalog"
	"github.com/handicraft/storefront/pkg/kvstore"
)

// Repository persists whole carts by partition. Load returns an empty cart
// for a partition that was never saved.
type Repository interface {
	Load(ctx context.Context, key PartitionKey) ([]Line, error)
	Save(ctx context.Context, key PartitionKey, lines []Line) error
}

// MemoryRepository keeps carts in a map. It is the repository of tests and
// of sessions that must not touch disk.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[PartitionKey][]Line
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{carts: make(map[PartitionKey][]Line)}
}

func (r *MemoryRepository) Load(_ context.Context, key PartitionKey) ([]Line, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneLines(r.carts[key]), nil
}

func (r *MemoryRepository) Save(_ context.Context, key PartitionKey, lines []Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[key] = cloneLines(lines)
	return nil
}

// KVRepository stores each partition as one JSON array under its storage key.
// Every element is the product record with a "quantity" field alongside.
type KVRepository struct {
	store kvstore.Store
}

func NewKVRepository(store kvstore.Store) *KVRepository {
	return &KVRepository{store: store}
}

type storedLine struct {
	catalog.Product
	Quantity int `json:"quantity"`
}

func (r *KVRepository) Load(ctx context.Context, key PartitionKey) ([]Line, error) {
	raw, err := r.store.Get(ctx, key.StorageKey())
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var stored []storedLine
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, errors.Join(ErrCorruptCart, err)
	}

	lines := make([]Line, 0, len(stored))
	seen := make(map[string]bool, len(stored))
	for _, s := range stored {
		// Lines that could never have been written by the store are dropped.
		if s.ID == "" || s.Quantity < 1 || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		lines = append(lines, Line{Product: s.Product, Quantity: s.Quantity})
	}
	return lines, nil
}

func (r *KVRepository) Save(ctx context.Context, key PartitionKey, lines []Line) error {
	stored := make([]storedLine, len(lines))
	for i, l := range lines {
		stored[i] = storedLine{Product: l.Product, Quantity: l.Quantity}
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, key.StorageKey(), raw)
}
