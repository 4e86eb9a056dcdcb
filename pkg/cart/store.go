// Package cart is the storefront's shopping cart. A Store holds exactly one
// active cart, the one of the current partition (the signed-in user or the
// guest), and writes it through to a Repository after every change.
//
// Switching identity replaces the active cart wholesale with the stored cart
// of the new partition; carts of different partitions are never merged.
//
// Mutations are visible in memory as soon as they return. If the write-through
// fails the change stays in memory and the error is returned. Until the first
// SwitchPartition the store holds no cart and mutations fail with
// ErrNotLoaded, so a stored cart is never overwritten before it was read.
package cart

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/handicraft/storefront/pkg/catalog"
	"github.com/handicraft/storefront/pkg/identity"
	"github.com/handicraft/storefront/pkg/logger"
)

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store is the active cart. It is safe for concurrent use.
type Store struct {
	repo   Repository
	logger *slog.Logger

	mu        sync.RWMutex
	partition PartitionKey
	lines     []Line
	loaded    bool

	// persist serialises writes so the last write always carries the newest state.
	persist sync.Mutex
}

// New creates an unloaded store on the guest partition. Nothing is loaded
// until SwitchPartition.
func New(repo Repository, opts ...Option) (*Store, error) {
	if repo == nil {
		return nil, ErrNoRepository
	}
	s := &Store{
		repo:      repo,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		partition: Guest,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("cart"))
	return s, nil
}

// Loaded reports whether a partition has been loaded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Partition returns the active partition.
func (s *Store) Partition() PartitionKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partition
}

// SwitchPartition makes the stored cart of id's partition the active cart.
// A nil id selects the guest partition. When loading fails the active cart is
// empty and the error is returned.
func (s *Store) SwitchPartition(ctx context.Context, id *identity.Identity) error {
	key := PartitionFor(id)
	lines, err := s.repo.Load(ctx, key)
	if err != nil {
		lines = nil
		err = errors.Join(ErrLoadFailed, err)
		s.logger.ErrorContext(ctx, "failed to load cart", logger.Partition(string(key)), logger.Error(err))
	}

	s.mu.Lock()
	s.partition = key
	s.lines = lines
	s.loaded = true
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "cart partition selected",
		logger.Partition(string(key)),
		slog.Int("lines", len(lines)),
	)
	return err
}

// AddToCart adds one unit of p. A new line takes a snapshot of p; an existing
// line keeps its snapshot and gains one unit.
func (s *Store) AddToCart(ctx context.Context, p catalog.Product) error {
	return s.AddQuantity(ctx, p, 1)
}

// AddQuantity is n calls to AddToCart with a single write.
func (s *Store) AddQuantity(ctx context.Context, p catalog.Product, n int) error {
	if p.ID == "" {
		return ErrMissingProductID
	}
	if n < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	if i := s.index(p.ID); i >= 0 {
		s.lines[i].Quantity += n
	} else {
		s.lines = append(s.lines, Line{Product: p.Clone(), Quantity: n})
	}
	s.mu.Unlock()

	return s.save(ctx, "add", logger.ProductID(p.ID), slog.Int("quantity", n))
}

// RemoveFromCart deletes the line of productID. Removing an absent product is
// a no-op.
func (s *Store) RemoveFromCart(ctx context.Context, productID string) error {
	removed, err := s.removeLines(productID)
	if !removed {
		return err
	}
	return s.save(ctx, "remove", logger.ProductID(productID))
}

// UpdateQuantity sets the quantity of productID's line. A quantity of zero or
// less removes the line. An absent product is a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveFromCart(ctx, productID)
	}

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	i := s.index(productID)
	if i >= 0 {
		s.lines[i].Quantity = quantity
	}
	s.mu.Unlock()

	if i < 0 {
		return nil
	}
	return s.save(ctx, "update", logger.ProductID(productID), slog.Int("quantity", quantity))
}

// RemoveAll deletes the lines of every product id with one write. It is how
// a placed order leaves the cart.
func (s *Store) RemoveAll(ctx context.Context, productIDs ...string) error {
	removed, err := s.removeLines(productIDs...)
	if !removed {
		return err
	}
	return s.save(ctx, "remove", slog.Int("products", len(productIDs)))
}

// removeLines deletes lines in memory and reports whether any existed.
func (s *Store) removeLines(productIDs ...string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return false, ErrNotLoaded
	}

	before := len(s.lines)
	s.lines = slices.DeleteFunc(s.lines, func(l Line) bool {
		return slices.Contains(productIDs, l.Product.ID)
	})
	return len(s.lines) != before, nil
}

// ClearCart empties the active cart.
func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	s.lines = nil
	s.mu.Unlock()

	return s.save(ctx, "clear")
}

// Lines returns a copy of the active cart in insertion order.
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneLines(s.lines)
}

// Line returns the line of productID.
func (s *Store) Line(productID string) (Line, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(productID); i >= 0 {
		return Line{Product: s.lines[i].Product.Clone(), Quantity: s.lines[i].Quantity}, true
	}
	return Line{}, false
}

// Total is the sum of snapshot price times quantity over all lines.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Total(s.lines)
}

// Count is the number of units in the cart.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Count(s.lines)
}

// Len is the number of lines in the cart.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// CanIncrement reports whether productID's line is below the stock recorded
// in its snapshot. The store itself never enforces stock.
func (s *Store) CanIncrement(productID string) bool {
	l, ok := s.Line(productID)
	return ok && l.Quantity < l.Product.Stock
}

// index must be called with mu held.
func (s *Store) index(productID string) int {
	return slices.IndexFunc(s.lines, func(l Line) bool { return l.Product.ID == productID })
}

// save writes the current state of the active partition.
func (s *Store) save(ctx context.Context, op string, attrs ...any) error {
	s.persist.Lock()
	defer s.persist.Unlock()

	s.mu.RLock()
	key := s.partition
	lines := cloneLines(s.lines)
	s.mu.RUnlock()

	attrs = append(attrs, slog.String("op", op), logger.Partition(string(key)))
	if err := s.repo.Save(ctx, key, lines); err != nil {
		err = errors.Join(ErrSaveFailed, err)
		s.logger.ErrorContext(ctx, "failed to save cart", append(attrs, logger.Error(err))...)
		return err
	}
	s.logger.DebugContext(ctx, "cart saved", attrs...)
	return nil
}
