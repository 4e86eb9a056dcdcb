package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/handicraft/storefront/pkg/catalog"
)

// OrderStatus is the fulfilment state reported by the API.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// Label capitalises the status for display; unknown statuses pass through
// the same way.
func (s OrderStatus) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Final reports whether the order can no longer change.
func (s OrderStatus) Final() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Address is the shipping address of an order.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// OrderLine is one requested line of POST /orders.
type OrderLine struct {
	ProductID string `json:"product"`
	Quantity  int    `json:"quantity"`
}

// OrderRequest is the body of POST /orders.
type OrderRequest struct {
	Items           []OrderLine `json:"items"`
	ShippingAddress Address     `json:"shippingAddress"`
}

// OrderItem is a line of a placed order, priced by the server.
type OrderItem struct {
	Product  catalog.Ref     `json:"product"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type Order struct {
	ID              string          `json:"_id"`
	User            catalog.Ref     `json:"user"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          OrderStatus     `json:"status"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	ShippingAddress Address         `json:"shippingAddress"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Number is the short reference shown to customers: the last eight
// characters of the id, uppercased.
func (o Order) Number() string {
	id := o.ID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return strings.ToUpper(id)
}

// PlaceOrder submits an order. The returned Order is zero when the server
// acknowledges without echoing it back.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (Order, error) {
	if len(req.Items) == 0 {
		return Order{}, &ValidationError{Status: 0, Message: "order has no items"}
	}
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity < 1 {
			return Order{}, &ValidationError{Status: 0, Message: fmt.Sprintf("invalid order line %+v", it)}
		}
	}

	r, err := jsonRequest(http.MethodPost, "/orders", req)
	if err != nil {
		return Order{}, err
	}
	var out Order
	if err := c.call(ctx, r, &out); err != nil {
		return Order{}, err
	}
	return out, nil
}

// Orders lists the signed-in user's orders.
func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	var out []Order
	if err := c.call(ctx, request{method: http.MethodGet, path: "/orders"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
