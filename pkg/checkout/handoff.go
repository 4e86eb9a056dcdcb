// Package checkout carries a chosen set of cart lines from the cart page to
// a placed order.
//
// Begin freezes the selected lines into a snapshot so that edits made to the
// cart while the checkout form is open cannot change what is being bought.
// Resolve yields that snapshot, or the whole cart when no checkout was begun.
// Complete removes the bought lines from the cart; Abandon drops the snapshot
// and leaves the cart alone. The snapshot lives in memory only.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/handicraft/storefront/pkg/cart"
)

// Cart is the part of the cart store the handoff needs.
type Cart interface {
	Lines() []cart.Line
	RemoveAll(ctx context.Context, productIDs ...string) error
}

// Handoff holds at most one pending checkout snapshot. It is safe for
// concurrent use.
type Handoff struct {
	cart Cart

	mu       sync.Mutex
	snapshot []cart.Line
}

func NewHandoff(c Cart) *Handoff {
	return &Handoff{cart: c}
}

// Begin snapshots the cart lines of the selected product ids, in cart order.
// It fails without touching anything when selected is empty or names a
// product that is not in the cart.
func (h *Handoff) Begin(selected []string) ([]cart.Line, error) {
	if len(selected) == 0 {
		return nil, ErrEmptySelection
	}

	lines := h.cart.Lines()
	for _, id := range selected {
		if !slices.ContainsFunc(lines, func(l cart.Line) bool { return l.Product.ID == id }) {
			return nil, fmt.Errorf("%w: %s", ErrNotInCart, id)
		}
	}

	snapshot := slices.DeleteFunc(lines, func(l cart.Line) bool {
		return !slices.Contains(selected, l.Product.ID)
	})

	h.mu.Lock()
	h.snapshot = snapshot
	h.mu.Unlock()

	return clone(snapshot), nil
}

// Pending returns the snapshot of a begun checkout.
func (h *Handoff) Pending() ([]cart.Line, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.snapshot == nil {
		return nil, false
	}
	return clone(h.snapshot), true
}

// Resolve returns the lines to check out: the pending snapshot if there is
// one, otherwise the whole cart, otherwise nothing.
func (h *Handoff) Resolve() []cart.Line {
	if lines, ok := h.Pending(); ok {
		return lines
	}
	if lines := h.cart.Lines(); len(lines) > 0 {
		return lines
	}
	return nil
}

// Complete removes the placed lines from the cart by product id and drops the
// snapshot. The snapshot is dropped even if the cart could not be saved.
func (h *Handoff) Complete(ctx context.Context, placed []cart.Line) error {
	h.Abandon()

	ids := make([]string, 0, len(placed))
	for _, l := range placed {
		ids = append(ids, l.Product.ID)
	}
	if err := h.cart.RemoveAll(ctx, ids...); err != nil {
		return errors.Join(ErrCartNotUpdated, err)
	}
	return nil
}

// Abandon drops the snapshot. The cart is not touched.
func (h *Handoff) Abandon() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = nil
}

func clone(lines []cart.Line) []cart.Line {
	out := make([]cart.Line, len(lines))
	for i, l := range lines {
		out[i] = cart.Line{Product: l.Product.Clone(), Quantity: l.Quantity}
	}
	return out
}
