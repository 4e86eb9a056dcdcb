package api

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/handicraft/storefront/pkg/catalog"
	"github.com/handicraft/storefront/pkg/identity"
)

// Stats are the platform totals of the admin dashboard.
type Stats struct {
	TotalUsers    int             `json:"totalUsers"`
	TotalProducts int             `json:"totalProducts"`
	TotalOrders   int             `json:"totalOrders"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
}

// User is an account as listed to admins.
type User struct {
	ID        string        `json:"_id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Role      identity.Role `json:"role"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (c *Client) AdminStats(ctx context.Context) (Stats, error) {
	var out Stats
	if err := c.call(ctx, request{method: http.MethodGet, path: "/admin/stats"}, &out); err != nil {
		return Stats{}, err
	}
	return out, nil
}

func (c *Client) AdminUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.call(ctx, request{method: http.MethodGet, path: "/admin/users"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminProducts(ctx context.Context) ([]catalog.Product, error) {
	var out []catalog.Product
	if err := c.call(ctx, request{method: http.MethodGet, path: "/admin/products"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	if err := c.call(ctx, request{method: http.MethodGet, path: "/admin/orders"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminDeleteUser(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	return c.call(ctx, request{method: http.MethodDelete, path: escape("/admin/users", id)}, nil)
}

func (c *Client) AdminDeleteProduct(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	return c.call(ctx, request{method: http.MethodDelete, path: escape("/admin/products", id)}, nil)
}
