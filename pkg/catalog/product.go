// Package catalog holds the product model as served by the remote API and the
// client-side browsing helpers built on it: search, category and price
// filters, sorting, and the artisan's own listings.
package catalog

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// MaxImages is the number of images an artisan may attach to a product.
const MaxImages = 5

// Ref is a reference to a category or artisan. The API sends either a
// populated object or a bare id string; both decode into Ref.
type Ref struct {
	ID   string `json:"_id"`
	Name string `json:"name,omitempty"`
}

func (r *Ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &r.ID)
	}
	if bytes.Equal(b, []byte("null")) {
		*r = Ref{}
		return nil
	}
	type plain Ref
	return json.Unmarshal(b, (*plain)(r))
}

// Category is an entry of GET /categories.
type Category struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Image is a product picture. The API sends either a path string or an
// object with a url field.
type Image struct {
	URL string `json:"url"`
}

func (i *Image) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &i.URL)
	}
	type plain Image
	return json.Unmarshal(b, (*plain)(i))
}

// Product mirrors a product record of the remote API.
type Product struct {
	ID          string          `json:"_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    Ref             `json:"category"`
	Artisan     Ref             `json:"artisan"`
	Images      []Image         `json:"images,omitempty"`
	Materials   string          `json:"materials,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Clone returns a copy that shares no memory with p.
func (p Product) Clone() Product {
	if p.Images != nil {
		p.Images = append([]Image(nil), p.Images...)
	}
	return p
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// PrimaryImage returns the first image, which the storefront shows as the cover.
func (p Product) PrimaryImage() (Image, bool) {
	if len(p.Images) == 0 {
		return Image{}, false
	}
	return p.Images[0], true
}

// WithPrimaryImage returns a copy whose image at index moves to the front,
// the rest keeping their relative order.
func (p Product) WithPrimaryImage(index int) Product {
	p = p.Clone()
	if index <= 0 || index >= len(p.Images) {
		return p
	}
	primary := p.Images[index]
	copy(p.Images[1:index+1], p.Images[:index])
	p.Images[0] = primary
	return p
}
