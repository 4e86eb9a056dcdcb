package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/handicraft/storefront/pkg/cart"
)

// SummaryLine is one row of the order summary.
type SummaryLine struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	Subtotal  decimal.Decimal
}

// Summary is what the checkout page shows before an order is placed. Prices
// come from the cart snapshots; the server prices the order itself.
type Summary struct {
	Lines []SummaryLine
	Units int
	Total decimal.Decimal
}

func Summarize(lines []cart.Line) Summary {
	s := Summary{Lines: make([]SummaryLine, 0, len(lines)), Total: decimal.Zero}
	for _, l := range lines {
		sub := l.Subtotal()
		s.Lines = append(s.Lines, SummaryLine{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			UnitPrice: l.Product.Price,
			Quantity:  l.Quantity,
			Subtotal:  sub,
		})
		s.Units += l.Quantity
		s.Total = s.Total.Add(sub)
	}
	return s
}

// Empty reports whether there is nothing to check out.
func (s Summary) Empty() bool {
	return len(s.Lines) == 0
}
