package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/handicraft/storefront/pkg/catalog"
)

// ProductUpdate is a partial update; nil fields are left unchanged.
type ProductUpdate struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
	Materials   *string          `json:"materials,omitempty"`
}

// ImageUpload is one file of a product creation form.
type ImageUpload struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// NewProduct is the multipart form of POST /products.
type NewProduct struct {
	Name        string
	Description string
	Price       decimal.Decimal
	CategoryID  string
	Stock       int
	Materials   string
	Images      []ImageUpload
}

func (c *Client) Products(ctx context.Context) ([]catalog.Product, error) {
	var out []catalog.Product
	if err := c.call(ctx, request{method: http.MethodGet, path: "/products"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Product(ctx context.Context, id string) (catalog.Product, error) {
	if id == "" {
		return catalog.Product{}, ErrMissingID
	}
	var out catalog.Product
	if err := c.call(ctx, request{method: http.MethodGet, path: escape("/products", id)}, &out); err != nil {
		return catalog.Product{}, err
	}
	return out, nil
}

func (c *Client) Categories(ctx context.Context) ([]catalog.Category, error) {
	var out []catalog.Category
	if err := c.call(ctx, request{method: http.MethodGet, path: "/categories"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateProduct uploads a new listing with up to catalog.MaxImages images.
func (c *Client) CreateProduct(ctx context.Context, p NewProduct) (catalog.Product, error) {
	if len(p.Images) > catalog.MaxImages {
		return catalog.Product{}, fmt.Errorf("%w: %d > %d", ErrTooManyImages, len(p.Images), catalog.MaxImages)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := []struct{ name, value string }{
		{"name", p.Name},
		{"description", p.Description},
		{"price", p.Price.String()},
		{"category", p.CategoryID},
		{"stock", strconv.Itoa(p.Stock)},
		{"materials", p.Materials},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return catalog.Product{}, fmt.Errorf("failed to build product form: %w", err)
		}
	}
	for _, img := range p.Images {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename=%q`, img.Filename))
		ct := img.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return catalog.Product{}, fmt.Errorf("failed to build product form: %w", err)
		}
		if _, err := io.Copy(part, img.Content); err != nil {
			return catalog.Product{}, fmt.Errorf("failed to read image %s: %w", img.Filename, err)
		}
	}
	if err := mw.Close(); err != nil {
		return catalog.Product{}, fmt.Errorf("failed to build product form: %w", err)
	}

	var out catalog.Product
	r := request{method: http.MethodPost, path: "/products", body: &buf, contentType: mw.FormDataContentType()}
	if err := c.call(ctx, r, &out); err != nil {
		return catalog.Product{}, err
	}
	return out, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id string, upd ProductUpdate) (catalog.Product, error) {
	if id == "" {
		return catalog.Product{}, ErrMissingID
	}
	r, err := jsonRequest(http.MethodPut, escape("/products", id), upd)
	if err != nil {
		return catalog.Product{}, err
	}
	var out catalog.Product
	if err := c.call(ctx, r, &out); err != nil {
		return catalog.Product{}, err
	}
	return out, nil
}

// UpdateStock sets the absolute stock level of a product.
func (c *Client) UpdateStock(ctx context.Context, id string, stock int) error {
	_, err := c.UpdateProduct(ctx, id, ProductUpdate{Stock: &stock})
	return err
}

// ReorderImages makes the image at primaryIndex the product's cover.
func (c *Client) ReorderImages(ctx context.Context, id string, primaryIndex int) error {
	if id == "" {
		return ErrMissingID
	}
	r, err := jsonRequest(http.MethodPut, escape("/products", id, "reorder-images"), map[string]int{"primaryImageIndex": primaryIndex})
	if err != nil {
		return err
	}
	return c.call(ctx, r, nil)
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	return c.call(ctx, request{method: http.MethodDelete, path: escape("/products", id)}, nil)
}
