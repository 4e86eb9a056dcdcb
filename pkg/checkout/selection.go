package checkout

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/handicraft/storefront/pkg/cart"
)

// Selection is the per-line check box state of the cart page. Lines start
// selected; Sync keeps the choices made for lines that are still in the cart.
// A Selection is not safe for concurrent use.
type Selection struct {
	lines      []cart.Line
	deselected map[string]bool
}

func NewSelection(lines []cart.Line) *Selection {
	s := &Selection{deselected: make(map[string]bool)}
	s.Sync(lines)
	return s
}

// Sync replaces the lines with the current cart contents. New lines are
// selected; choices for lines that left the cart are forgotten.
func (s *Selection) Sync(lines []cart.Line) {
	s.lines = clone(lines)
	for id := range s.deselected {
		if !s.has(id) {
			delete(s.deselected, id)
		}
	}
}

// Toggle flips the check box of productID. Unknown ids are ignored.
func (s *Selection) Toggle(productID string) {
	if !s.has(productID) {
		return
	}
	if s.deselected[productID] {
		delete(s.deselected, productID)
	} else {
		s.deselected[productID] = true
	}
}

// ToggleAll selects every line, or clears the selection when every line is
// already selected.
func (s *Selection) ToggleAll() {
	if s.AllSelected() {
		for _, l := range s.lines {
			s.deselected[l.Product.ID] = true
		}
		return
	}
	clear(s.deselected)
}

func (s *Selection) IsSelected(productID string) bool {
	return s.has(productID) && !s.deselected[productID]
}

// AllSelected reports whether the cart is non-empty and every line is selected.
func (s *Selection) AllSelected() bool {
	return len(s.lines) > 0 && len(s.deselected) == 0
}

// Selected returns the selected lines in cart order.
func (s *Selection) Selected() []cart.Line {
	var out []cart.Line
	for _, l := range s.lines {
		if !s.deselected[l.Product.ID] {
			out = append(out, cart.Line{Product: l.Product.Clone(), Quantity: l.Quantity})
		}
	}
	return out
}

// SelectedIDs returns the product ids of the selected lines, ready for
// Handoff.Begin.
func (s *Selection) SelectedIDs() []string {
	var ids []string
	for _, l := range s.lines {
		if !s.deselected[l.Product.ID] {
			ids = append(ids, l.Product.ID)
		}
	}
	return ids
}

// SelectedTotal is the snapshot total of the selected lines.
func (s *Selection) SelectedTotal() decimal.Decimal {
	return cart.Total(s.Selected())
}

// SelectedCount is the number of selected lines.
func (s *Selection) SelectedCount() int {
	return len(s.SelectedIDs())
}

func (s *Selection) has(productID string) bool {
	return slices.ContainsFunc(s.lines, func(l cart.Line) bool { return l.Product.ID == productID })
}
