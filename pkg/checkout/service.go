package checkout

import (
	"context"
	"io"
	"log/slog"

	"github.com/handicraft/storefront/pkg/api"
	"github.com/handicraft/storefront/pkg/cart"
	"github.com/handicraft/storefront/pkg/identity"
	"github.com/handicraft/storefront/pkg/logger"
	"github.com/handicraft/storefront/pkg/sanitizer"
	"github.com/handicraft/storefront/pkg/validator"
)

// OrderPlacer submits orders to the remote API.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req api.OrderRequest) (api.Order, error)
}

// Authorizer answers whether the current user may do something.
type Authorizer interface {
	Require(p identity.Permission) error
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service places the order for the lines a Handoff resolves.
type Service struct {
	handoff *Handoff
	orders  OrderPlacer
	auth    Authorizer
	logger  *slog.Logger
}

func NewService(h *Handoff, orders OrderPlacer, auth Authorizer, opts ...Option) *Service {
	s := &Service{
		handoff: h,
		orders:  orders,
		auth:    auth,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("checkout"))
	return s
}

// Handoff returns the handoff the service completes.
func (s *Service) Handoff() *Handoff {
	return s.handoff
}

// Summary describes what PlaceOrder would submit right now.
func (s *Service) Summary() Summary {
	return Summarize(s.handoff.Resolve())
}

// PlaceOrder submits the resolved lines with the shipping address. It needs a
// signed-in user. On success the lines leave the cart and the snapshot is
// dropped; when only that cleanup fails the order is returned together with
// ErrCartNotUpdated. On any other failure cart and snapshot are untouched.
func (s *Service) PlaceOrder(ctx context.Context, addr api.Address) (api.Order, error) {
	if err := s.auth.Require(identity.PlaceOrder); err != nil {
		return api.Order{}, err
	}

	lines := s.handoff.Resolve()
	if len(lines) == 0 {
		return api.Order{}, ErrNothingToCheckout
	}

	addr = NormalizeAddress(addr)
	if err := ValidateAddress(addr); err != nil {
		return api.Order{}, err
	}

	req := api.OrderRequest{ShippingAddress: addr, Items: make([]api.OrderLine, 0, len(lines))}
	for _, l := range lines {
		req.Items = append(req.Items, api.OrderLine{ProductID: l.Product.ID, Quantity: l.Quantity})
	}

	order, err := s.orders.PlaceOrder(ctx, req)
	if err != nil {
		s.logger.WarnContext(ctx, "order rejected", slog.Int("lines", len(lines)), logger.Error(err))
		return api.Order{}, err
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.String("order", order.Number()),
		slog.Int("lines", len(lines)),
		slog.String("total", cart.Total(lines).String()),
	)

	if err := s.handoff.Complete(ctx, lines); err != nil {
		s.logger.ErrorContext(ctx, "failed to update cart after order", logger.Error(err))
		return order, err
	}
	return order, nil
}

// NormalizeAddress trims and collapses whitespace in every field and
// canonicalises the postal code.
func NormalizeAddress(a api.Address) api.Address {
	return api.Address{
		Street:  sanitizer.NormalizeWhitespace(a.Street),
		City:    sanitizer.NormalizeWhitespace(a.City),
		State:   sanitizer.NormalizeWhitespace(a.State),
		ZipCode: sanitizer.NormalizePostalCode(a.ZipCode),
		Country: sanitizer.NormalizeWhitespace(a.Country),
	}
}

// ValidateAddress requires every field of the shipping address.
func ValidateAddress(a api.Address) error {
	return validator.Apply(
		validator.Required("street", a.Street),
		validator.Required("city", a.City),
		validator.Required("state", a.State),
		validator.Required("zip_code", a.ZipCode),
		validator.Required("country", a.Country),
		validator.MaxLen("zip_code", a.ZipCode, 16),
	)
}
