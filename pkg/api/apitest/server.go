// Package apitest runs an in-process fake of the marketplace API for tests.
// It keeps users, products, categories and orders in memory, issues opaque
// bearer tokens on login, and records every request it sees.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/handicraft/storefront/pkg/api"
	"github.com/handicraft/storefront/pkg/catalog"
	"github.com/handicraft/storefront/pkg/identity"
	"github.com/handicraft/storefront/pkg/requestid"
)

// Account is a registered user with its password.
type Account struct {
	identity.Identity
	Password string
}

// Recorded is one request seen by the server.
type Recorded struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
}

type failure struct {
	status  int
	message string
}

// Server is the fake API. Fields are guarded by the server's mutex; use the
// accessor methods from tests.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	accounts   map[string]Account // by email
	tokens     map[string]string  // token -> user id
	products   []catalog.Product
	categories []catalog.Category
	orders     []api.Order
	requests   []Recorded
	failures   map[string]failure // "METHOD /path" -> injected failure
}

// NewServer starts a fake API and closes it when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		accounts: make(map[string]Account),
		tokens:   make(map[string]string),
		failures: make(map[string]failure),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root, suitable for api.New.
func (s *Server) BaseURL() string {
	return s.Server.URL + "/api"
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Use(s.injectFailures)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Post("/auth/register", s.register)

		r.Get("/products", s.listProducts)
		r.Get("/products/{id}", s.getProduct)
		r.Get("/categories", s.listCategories)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticated)
			r.Post("/products", s.createProduct)
			r.Put("/products/{id}", s.updateProduct)
			r.Put("/products/{id}/reorder-images", s.reorderImages)
			r.Delete("/products/{id}", s.deleteProduct)
			r.Post("/orders", s.placeOrder)
			r.Get("/orders", s.listOrders)

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.adminOnly)
				r.Get("/stats", s.stats)
				r.Get("/users", s.listUsers)
				r.Get("/products", s.listProducts)
				r.Get("/orders", s.listAllOrders)
				r.Delete("/users/{id}", s.deleteUser)
				r.Delete("/products/{id}", s.deleteProduct)
			})
		})
	})
	return r
}

// AddAccount registers a user directly and returns its identity.
func (s *Server) AddAccount(name, email, password string, role identity.Role) identity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := identity.Identity{ID: uuid.NewString(), Name: name, Email: email, Role: role}
	s.accounts[email] = Account{Identity: id, Password: password}
	return id
}

// AddProduct stores p, assigning an id and creation time when missing.
func (s *Server) AddProduct(p catalog.Product) catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.products = append(s.products, p)
	return p
}

// SetPrice changes a product's live price.
func (s *Server) SetPrice(id string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID == id {
			s.products[i].Price = price
		}
	}
}

func (s *Server) AddCategory(c catalog.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append(s.categories, c)
}

// Fail makes the next request to method+path answer with status and message.
func (s *Server) Fail(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, message: message}
}

func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// LastRequest returns the most recent request to method+path.
func (s *Server) LastRequest(method, path string) (Recorded, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Method == method && s.requests[i].Path == path {
			return s.requests[i], true
		}
	}
	return Recorded{}, false
}

func (s *Server) Orders() []api.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.orders)
}

func (s *Server) Products() []catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.products)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Recorded{
			Method:        r.Method,
			Path:          strings.TrimPrefix(r.URL.Path, "/api"),
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get(requestid.Header),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/api")
		s.mu.Lock()
		f, ok := s.failures[key]
		delete(s.failures, key)
		s.mu.Unlock()
		if ok {
			fail(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxUser struct{}

func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		userID, known := s.tokens[token]
		user, found := s.userByID(userID)
		s.mu.Unlock()
		if !ok || !known || !found {
			fail(w, http.StatusUnauthorized, "Not authorized, token failed")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userFrom(r.Context()).Role != identity.Admin {
			fail(w, http.StatusForbidden, "Access denied. Admin only.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds api.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[creds.Email]
	if !ok || acc.Password != creds.Password {
		s.mu.Unlock()
		fail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token := uuid.NewString()
	s.tokens[token] = acc.ID
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token, "user": acc.Identity})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var reg api.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[reg.Email]; exists {
		s.mu.Unlock()
		fail(w, http.StatusBadRequest, "User already exists")
		return
	}
	s.accounts[reg.Email] = Account{
		Identity: identity.Identity{ID: uuid.NewString(), Name: reg.Name, Email: reg.Email, Role: reg.Role},
		Password: reg.Password,
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "User registered successfully"})
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	ok(w, s.Products())
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, found := catalog.Find(s.Products(), chi.URLParam(r, "id"))
	if !found {
		fail(w, http.StatusNotFound, "Product not found")
		return
	}
	ok(w, p)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cats := slices.Clone(s.categories)
	s.mu.Unlock()
	ok(w, cats)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if user.Role != identity.Artisan {
		fail(w, http.StatusForbidden, "Only artisans can create products")
		return
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		fail(w, http.StatusBadRequest, "Invalid form")
		return
	}

	price, err := decimal.NewFromString(r.FormValue("price"))
	if err != nil {
		fail(w, http.StatusBadRequest, "Invalid price")
		return
	}
	stock, err := strconv.Atoi(r.FormValue("stock"))
	if err != nil {
		fail(w, http.StatusBadRequest, "Invalid stock")
		return
	}

	p := catalog.Product{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Price:       price,
		Stock:       stock,
		Category:    catalog.Ref{ID: r.FormValue("category")},
		Artisan:     catalog.Ref{ID: user.ID, Name: user.Name},
		Materials:   r.FormValue("materials"),
	}
	for i, fh := range r.MultipartForm.File["images"] {
		p.Images = append(p.Images, catalog.Image{URL: fmt.Sprintf("/uploads/%d-%s", i, fh.Filename)})
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": s.AddProduct(p)})
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	var upd api.ProductUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.withOwnedProduct(w, r, func(p *catalog.Product) {
		if upd.Name != nil {
			p.Name = *upd.Name
		}
		if upd.Description != nil {
			p.Description = *upd.Description
		}
		if upd.Price != nil {
			p.Price = *upd.Price
		}
		if upd.Category != nil {
			p.Category = catalog.Ref{ID: *upd.Category}
		}
		if upd.Stock != nil {
			p.Stock = *upd.Stock
		}
		if upd.Materials != nil {
			p.Materials = *upd.Materials
		}
	})
}

func (s *Server) reorderImages(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PrimaryImageIndex int `json:"primaryImageIndex"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.withOwnedProduct(w, r, func(p *catalog.Product) {
		*p = p.WithPrimaryImage(body.PrimaryImageIndex)
	})
}

func (s *Server) withOwnedProduct(w http.ResponseWriter, r *http.Request, mutate func(*catalog.Product)) {
	user := userFrom(r.Context())
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID != id {
			continue
		}
		if s.products[i].Artisan.ID != user.ID && user.Role != identity.Admin {
			fail(w, http.StatusForbidden, "Not your product")
			return
		}
		mutate(&s.products[i])
		ok(w, s.products[i])
		return
	}
	fail(w, http.StatusNotFound, "Product not found")
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.products, func(p catalog.Product) bool { return p.ID == id })
	if i < 0 {
		fail(w, http.StatusNotFound, "Product not found")
		return
	}
	if s.products[i].Artisan.ID != user.ID && user.Role != identity.Admin {
		fail(w, http.StatusForbidden, "Not your product")
		return
	}
	s.products = slices.Delete(s.products, i, i+1)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Product deleted"})
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req api.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user := userFrom(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	order := api.Order{
		ID:              strings.ReplaceAll(uuid.NewString(), "-", ""),
		User:            catalog.Ref{ID: user.ID, Name: user.Name},
		Status:          api.StatusPending,
		PaymentMethod:   "cod",
		ShippingAddress: req.ShippingAddress,
		CreatedAt:       time.Now().UTC(),
	}
	for _, line := range req.Items {
		p, found := catalog.Find(s.products, line.ProductID)
		if !found {
			fail(w, http.StatusNotFound, "Product not found")
			return
		}
		if p.Stock < line.Quantity {
			fail(w, http.StatusBadRequest, "Insufficient stock for "+p.Name)
			return
		}
		order.Items = append(order.Items, api.OrderItem{
			Product:  catalog.Ref{ID: p.ID},
			Name:     p.Name,
			Price:    p.Price,
			Quantity: line.Quantity,
		})
		order.TotalAmount = order.TotalAmount.Add(p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	s.orders = append(s.orders, order)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": order})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	var mine []api.Order
	for _, o := range s.Orders() {
		if o.User.ID == user.ID {
			mine = append(mine, o)
		}
	}
	ok(w, mine)
}

func (s *Server) listAllOrders(w http.ResponseWriter, r *http.Request) {
	ok(w, s.Orders())
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revenue := decimal.Zero
	for _, o := range s.orders {
		revenue = revenue.Add(o.TotalAmount)
	}
	ok(w, api.Stats{
		TotalUsers:    len(s.accounts),
		TotalProducts: len(s.products),
		TotalOrders:   len(s.orders),
		TotalRevenue:  revenue,
	})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]api.User, 0, len(s.accounts))
	for _, acc := range s.accounts {
		users = append(users, api.User{ID: acc.ID, Name: acc.Name, Email: acc.Email, Role: acc.Role})
	}
	slices.SortFunc(users, func(a, b api.User) int { return strings.Compare(a.Email, b.Email) })
	ok(w, users)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for email, acc := range s.accounts {
		if acc.ID == id {
			delete(s.accounts, email)
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "User deleted"})
			return
		}
	}
	fail(w, http.StatusNotFound, "User not found")
}

// userByID must be called with s.mu held.
func (s *Server) userByID(id string) (identity.Identity, bool) {
	for _, acc := range s.accounts {
		if acc.ID == id {
			return acc.Identity, true
		}
	}
	return identity.Identity{}, false
}
