package checkout_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/handicraft/storefront/pkg/api"
	"github.com/handicraft/storefront/pkg/api/apitest"
	"github.com/handicraft/storefront/pkg/cart"
	"github.com/handicraft/storefront/pkg/catalog"
	"github.com/handicraft/storefront/pkg/checkout"
	"github.com/handicraft/storefront/pkg/identity"
	"github.com/handicraft/storefront/pkg/kvstore"
	"github.com/handicraft/storefront/pkg/session"
	"github.com/handicraft/storefront/pkg/validator"
)

func product(id, price string) catalog.Product {
	return catalog.Product{ID: id, Name: "Item " + id, Price: decimal.RequireFromString(price), Stock: 10}
}

func filledCart(t *testing.T, repo cart.Repository, ids ...string) *cart.Store {
	t.Helper()
	s, err := cart.New(repo)
	require.NoError(t, err)
	require.NoError(t, s.SwitchPartition(context.Background(), nil))
	for _, id := range ids {
		require.NoError(t, s.AddToCart(context.Background(), product(id, "10")))
	}
	return s
}

func productIDs(lines []cart.Line) []string {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.Product.ID)
	}
	return ids
}

type mockOrders struct {
	mock.Mock
}

func (m *mockOrders) PlaceOrder(ctx context.Context, req api.OrderRequest) (api.Order, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(api.Order), args.Error(1)
}

type staticAuth struct {
	err error
}

func (a staticAuth) Require(identity.Permission) error {
	return a.err
}

type brokenRepo struct {
	*cart.MemoryRepository
	fail bool
}

func (r *brokenRepo) Save(ctx context.Context, key cart.PartitionKey, lines []cart.Line) error {
	if r.fail {
		return errors.New("disk full")
	}
	return r.MemoryRepository.Save(ctx, key, lines)
}

var address = api.Address{Street: "1 Loom St", City: "Jaipur", State: "RJ", ZipCode: "302001", Country: "IN"}

func TestBegin(t *testing.T) {
	t.Parallel()

	t.Run("empty selection", func(t *testing.T) {
		t.Parallel()
		c := filledCart(t, cart.NewMemoryRepository(), "a", "b")
		h := checkout.NewHandoff(c)

		_, err := h.Begin(nil)
		assert.ErrorIs(t, err, checkout.ErrEmptySelection)
		_, err = h.Begin([]string{})
		assert.ErrorIs(t, err, checkout.ErrEmptySelection)

		_, pending := h.Pending()
		assert.False(t, pending)
		assert.Equal(t, []string{"a", "b"}, productIDs(c.Lines()))
	})

	t.Run("product not in cart", func(t *testing.T) {
		t.Parallel()
		h := checkout.NewHandoff(filledCart(t, cart.NewMemoryRepository(), "a"))
		_, err := h.Begin([]string{"a", "zzz"})
		assert.ErrorIs(t, err, checkout.ErrNotInCart)
		_, pending := h.Pending()
		assert.False(t, pending)
	})

	t.Run("snapshot is frozen", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		c := filledCart(t, cart.NewMemoryRepository(), "a", "b", "c")
		h := checkout.NewHandoff(c)

		got, err := h.Begin([]string{"c", "a"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, productIDs(got))

		require.NoError(t, c.UpdateQuantity(ctx, "a", 9))
		require.NoError(t, c.RemoveFromCart(ctx, "c"))

		resolved := h.Resolve()
		assert.Equal(t, []string{"a", "c"}, productIDs(resolved))
		assert.Equal(t, 1, resolved[0].Quantity)
	})
}

func TestResolve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := filledCart(t, cart.NewMemoryRepository(), "a", "b")
	h := checkout.NewHandoff(c)
	assert.Equal(t, []string{"a", "b"}, productIDs(h.Resolve()), "whole cart without a snapshot")

	_, err := h.Begin([]string{"b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, productIDs(h.Resolve()))

	h.Abandon()
	assert.Equal(t, []string{"a", "b"}, productIDs(h.Resolve()))
	assert.Equal(t, 2, c.Len(), "abandon leaves the cart alone")

	require.NoError(t, c.ClearCart(ctx))
	assert.Empty(t, h.Resolve())
}

func TestComplete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("removes exactly the placed lines", func(t *testing.T) {
		t.Parallel()
		repo := cart.NewMemoryRepository()
		c := filledCart(t, repo, "a", "b", "c")
		require.NoError(t, c.UpdateQuantity(ctx, "b", 3))
		h := checkout.NewHandoff(c)

		placed, err := h.Begin([]string{"a"})
		require.NoError(t, err)
		require.NoError(t, h.Complete(ctx, placed))

		assert.Equal(t, []string{"b", "c"}, productIDs(c.Lines()))
		l, _ := c.Line("b")
		assert.Equal(t, 3, l.Quantity)
		_, pending := h.Pending()
		assert.False(t, pending)

		stored, err := repo.Load(ctx, cart.Guest)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, productIDs(stored))
	})

	t.Run("save failure still drops the snapshot", func(t *testing.T) {
		t.Parallel()
		repo := &brokenRepo{MemoryRepository: cart.NewMemoryRepository()}
		c := filledCart(t, repo, "a", "b")
		h := checkout.NewHandoff(c)
		placed, err := h.Begin([]string{"a"})
		require.NoError(t, err)

		repo.fail = true
		err = h.Complete(ctx, placed)
		assert.ErrorIs(t, err, checkout.ErrCartNotUpdated)
		assert.Equal(t, []string{"b"}, productIDs(c.Lines()))
		_, pending := h.Pending()
		assert.False(t, pending)
	})
}

func TestSelection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := filledCart(t, cart.NewMemoryRepository(), "a", "b", "c")
	require.NoError(t, c.UpdateQuantity(ctx, "c", 2))
	sel := checkout.NewSelection(c.Lines())

	assert.True(t, sel.AllSelected())
	assert.Equal(t, 3, sel.SelectedCount())
	assert.Equal(t, "40", sel.SelectedTotal().String())

	sel.Toggle("b")
	assert.False(t, sel.IsSelected("b"))
	assert.False(t, sel.AllSelected())
	assert.Equal(t, []string{"a", "c"}, sel.SelectedIDs())
	assert.Equal(t, "30", sel.SelectedTotal().String())

	sel.Toggle("unknown")
	assert.False(t, sel.IsSelected("unknown"))

	sel.ToggleAll()
	assert.True(t, sel.AllSelected())
	sel.ToggleAll()
	assert.Zero(t, sel.SelectedCount())
	assert.Empty(t, sel.Selected())
	assert.True(t, sel.SelectedTotal().IsZero())

	// Sync keeps choices for remaining lines and selects new ones.
	sel.Toggle("a")
	require.NoError(t, c.RemoveFromCart(ctx, "b"))
	require.NoError(t, c.AddToCart(ctx, product("d", "5")))
	sel.Sync(c.Lines())
	assert.Equal(t, []string{"a", "d"}, sel.SelectedIDs())

	h := checkout.NewHandoff(c)
	got, err := h.Begin(sel.SelectedIDs())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d"}, productIDs(got))

	assert.False(t, checkout.NewSelection(nil).AllSelected())
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	lines := []cart.Line{
		{Product: product("a", "12.10"), Quantity: 3},
		{Product: product("b", "0.30"), Quantity: 1},
	}
	s := checkout.Summarize(lines)
	require.Len(t, s.Lines, 2)
	assert.Equal(t, "36.3", s.Lines[0].Subtotal.String())
	assert.Equal(t, 4, s.Units)
	assert.Equal(t, "36.6", s.Total.String())
	assert.False(t, s.Empty())
	assert.True(t, checkout.Summarize(nil).Empty())
}

func TestAddress(t *testing.T) {
	t.Parallel()

	norm := checkout.NormalizeAddress(api.Address{Street: "  1   Loom St ", City: "Jaipur", State: "RJ", ZipCode: "sw1a 1aa", Country: " UK "})
	assert.Equal(t, "1 Loom St", norm.Street)
	assert.Equal(t, "SW1A1AA", norm.ZipCode)
	assert.Equal(t, "UK", norm.Country)
	assert.NoError(t, checkout.ValidateAddress(norm))

	err := checkout.ValidateAddress(api.Address{Street: "x"})
	errs := validator.ExtractValidationErrors(err)
	assert.Equal(t, []string{"city", "state", "zip_code", "country"}, errs.Fields())
}

func TestPlaceOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("login required", func(t *testing.T) {
		t.Parallel()
		c := filledCart(t, cart.NewMemoryRepository(), "a")
		orders := &mockOrders{}
		svc := checkout.NewService(checkout.NewHandoff(c), orders, staticAuth{err: identity.ErrLoginRequired})

		_, err := svc.PlaceOrder(ctx, address)
		assert.ErrorIs(t, err, identity.ErrLoginRequired)
		assert.Equal(t, 1, c.Len())
		orders.AssertExpectations(t)
	})

	t.Run("nothing to check out", func(t *testing.T) {
		t.Parallel()
		c := filledCart(t, cart.NewMemoryRepository())
		svc := checkout.NewService(checkout.NewHandoff(c), &mockOrders{}, staticAuth{})
		_, err := svc.PlaceOrder(ctx, address)
		assert.ErrorIs(t, err, checkout.ErrNothingToCheckout)
	})

	t.Run("invalid address", func(t *testing.T) {
		t.Parallel()
		c := filledCart(t, cart.NewMemoryRepository(), "a")
		orders := &mockOrders{}
		svc := checkout.NewService(checkout.NewHandoff(c), orders, staticAuth{})
		_, err := svc.PlaceOrder(ctx, api.Address{Street: "   "})
		assert.True(t, validator.IsValidationError(err))
		orders.AssertExpectations(t)
	})

	t.Run("selected lines are ordered and removed", func(t *testing.T) {
		t.Parallel()
		c := filledCart(t, cart.NewMemoryRepository(), "a", "b", "c")
		require.NoError(t, c.UpdateQuantity(ctx, "b", 2))
		h := checkout.NewHandoff(c)
		_, err := h.Begin([]string{"b", "c"})
		require.NoError(t, err)

		orders := &mockOrders{}
		orders.On("PlaceOrder", mock.Anything, api.OrderRequest{
			Items:           []api.OrderLine{{ProductID: "b", Quantity: 2}, {ProductID: "c", Quantity: 1}},
			ShippingAddress: address,
		}).Return(api.Order{ID: "665f1c2ab9e7d4a1c3f0e9ab", Status: api.StatusPending}, nil).Once()

		svc := checkout.NewService(h, orders, staticAuth{})
		assert.Equal(t, "30", svc.Summary().Total.String())

		order, err := svc.PlaceOrder(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, "C3F0E9AB", order.Number())
		assert.Equal(t, []string{"a"}, productIDs(c.Lines()))
		_, pending := h.Pending()
		assert.False(t, pending)
		orders.AssertExpectations(t)
	})

	t.Run("rejected order leaves everything", func(t *testing.T) {
		t.Parallel()
		c := filledCart(t, cart.NewMemoryRepository(), "a", "b")
		h := checkout.NewHandoff(c)
		_, err := h.Begin([]string{"a"})
		require.NoError(t, err)

		orders := &mockOrders{}
		orders.On("PlaceOrder", mock.Anything, mock.Anything).
			Return(api.Order{}, &api.ValidationError{Status: http.StatusBadRequest, Message: "Insufficient stock"}).Once()

		svc := checkout.NewService(h, orders, staticAuth{})
		_, err = svc.PlaceOrder(ctx, address)
		assert.True(t, api.IsValidationError(err))
		assert.Equal(t, 2, c.Len())
		pending, ok := h.Pending()
		require.True(t, ok)
		assert.Equal(t, []string{"a"}, productIDs(pending))
	})
}

func TestPlaceOrderAgainstFakeAPI(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	srv := apitest.NewServer(t)
	srv.AddAccount("Asha", "asha@example.com", "secret1", identity.Customer)
	vase := srv.AddProduct(catalog.Product{Name: "Vase", Price: decimal.RequireFromString("12.50"), Stock: 5})
	rug := srv.AddProduct(catalog.Product{Name: "Rug", Price: decimal.RequireFromString("80"), Stock: 1})

	client, err := api.New(srv.BaseURL())
	require.NoError(t, err)
	sess, err := session.New(client, kvstore.NewMemoryStore())
	require.NoError(t, err)
	require.NoError(t, sess.Restore(ctx))

	c, err := cart.New(cart.NewMemoryRepository())
	require.NoError(t, err)
	require.NoError(t, c.SwitchPartition(ctx, nil))
	require.NoError(t, c.AddQuantity(ctx, vase, 2))
	require.NoError(t, c.AddToCart(ctx, rug))

	svc := checkout.NewService(checkout.NewHandoff(c), client, sess)

	_, err = svc.PlaceOrder(ctx, address)
	assert.ErrorIs(t, err, identity.ErrLoginRequired)

	_, err = sess.Login(ctx, "asha@example.com", "secret1")
	require.NoError(t, err)

	_, err = svc.Handoff().Begin([]string{vase.ID})
	require.NoError(t, err)

	// The server prices the order, not the cart snapshot.
	srv.SetPrice(vase.ID, decimal.NewFromInt(20))
	order, err := svc.PlaceOrder(ctx, address)
	require.NoError(t, err)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(40)))
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)

	assert.Equal(t, []string{rug.ID}, productIDs(c.Lines()))
	assert.Len(t, srv.Orders(), 1)
}
