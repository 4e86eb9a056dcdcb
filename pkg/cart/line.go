package cart

import (
	"github.com/shopspring/decimal"

	"github.com/handicraft/storefront/pkg/catalog"
)

// Line is one product in the cart. Product is the snapshot taken when the
// line was created; later catalog changes do not reach it.
type Line struct {
	Product  catalog.Product
	Quantity int
}

// Subtotal is the snapshot price times the quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Total sums the subtotals of lines.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Count sums the quantities of lines.
func Count(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

func cloneLines(lines []Line) []Line {
	if lines == nil {
		return nil
	}
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = Line{Product: l.Product.Clone(), Quantity: l.Quantity}
	}
	return out
}
