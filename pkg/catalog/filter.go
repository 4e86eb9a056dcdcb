package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/handicraft/storefront/pkg/identity"
)

// Sort selects the ordering of a filtered listing.
type Sort string

const (
	SortNewest    Sort = "newest"
	SortPriceLow  Sort = "price-low"
	SortPriceHigh Sort = "price-high"
	SortName      Sort = "name"
)

func ParseSort(s string) (Sort, error) {
	switch Sort(s) {
	case "":
		return SortNewest, nil
	case SortNewest, SortPriceLow, SortPriceHigh, SortName:
		return Sort(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSort, s)
}

// Filter narrows a product listing. Zero fields do not filter.
type Filter struct {
	Search     string
	CategoryID string
	MinPrice   decimal.NullDecimal
	MaxPrice   decimal.NullDecimal
	Sort       Sort
	// Language drives case folding and name collation. Defaults to English.
	Language language.Tag
}

// Result is a filtered listing plus the size of the unfiltered one, for
// "showing N of M".
type Result struct {
	Products []Product
	Total    int
}

// Apply filters and sorts products without modifying the input slice.
func (f Filter) Apply(products []Product) Result {
	lang := f.Language
	if lang == language.Und {
		lang = language.English
	}

	fold := cases.Fold()
	term := fold.String(strings.TrimSpace(f.Search))

	out := make([]Product, 0, len(products))
	for _, p := range products {
		if term != "" &&
			!strings.Contains(fold.String(p.Name), term) &&
			!strings.Contains(fold.String(p.Description), term) {
			continue
		}
		if f.CategoryID != "" && p.Category.ID != f.CategoryID {
			continue
		}
		if f.MinPrice.Valid && p.Price.LessThan(f.MinPrice.Decimal) {
			continue
		}
		if f.MaxPrice.Valid && p.Price.GreaterThan(f.MaxPrice.Decimal) {
			continue
		}
		out = append(out, p)
	}

	switch f.Sort {
	case SortPriceLow:
		slices.SortStableFunc(out, func(a, b Product) int { return a.Price.Cmp(b.Price) })
	case SortPriceHigh:
		slices.SortStableFunc(out, func(a, b Product) int { return b.Price.Cmp(a.Price) })
	case SortName:
		col := collate.New(lang, collate.IgnoreCase)
		slices.SortStableFunc(out, func(a, b Product) int { return col.CompareString(a.Name, b.Name) })
	case SortNewest, "":
		slices.SortStableFunc(out, func(a, b Product) int { return b.CreatedAt.Compare(a.CreatedAt) })
	}

	return Result{Products: out, Total: len(products)}
}

// OwnedBy returns the products listed by the given artisan.
func OwnedBy(products []Product, who *identity.Identity) []Product {
	var out []Product
	for _, p := range products {
		if who.Owns(p.Artisan.ID) {
			out = append(out, p)
		}
	}
	return out
}

// Find returns the product with the given id.
func Find(products []Product, id string) (Product, bool) {
	i := slices.IndexFunc(products, func(p Product) bool { return p.ID == id })
	if i < 0 {
		return Product{}, false
	}
	return products[i], true
}
