package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/handicraft/storefront/pkg/api"
	"github.com/handicraft/storefront/pkg/cart"
	"github.com/handicraft/storefront/pkg/catalog"
	"github.com/handicraft/storefront/pkg/checkout"
	"github.com/handicraft/storefront/pkg/config"
	"github.com/handicraft/storefront/pkg/i18n"
	"github.com/handicraft/storefront/pkg/identity"
	"github.com/handicraft/storefront/pkg/kvstore"
	"github.com/handicraft/storefront/pkg/logger"
	"github.com/handicraft/storefront/pkg/requestid"
	"github.com/handicraft/storefront/pkg/secrets"
	"github.com/handicraft/storefront/pkg/session"
	"github.com/handicraft/storefront/pkg/validator"
)

// App owns the stores and the gateway. Construct it with New, call Start
// once, and Close when done.
type App struct {
	Config     Config
	Logger     *slog.Logger
	Translator *i18n.Translator
	API        *api.Client
	Storage    kvstore.Store
	Session    *session.Store
	Cart       *cart.Store
	Checkout   *checkout.Service

	closeStorage func() error
}

type Option func(*appOptions)

type appOptions struct {
	logger     *slog.Logger
	httpClient *http.Client
	storage    kvstore.Store
}

func WithLogger(l *slog.Logger) Option {
	return func(o *appOptions) { o.logger = l }
}

// WithHTTPClient sets the HTTP client of the API gateway.
func WithHTTPClient(c *http.Client) Option {
	return func(o *appOptions) { o.httpClient = c }
}

// WithStorage uses s instead of opening the configured backend. The caller
// keeps ownership of s.
func WithStorage(s kvstore.Store) Option {
	return func(o *appOptions) { o.storage = s }
}

// NewFromEnv loads Config from the environment and builds the App.
func NewFromEnv(ctx context.Context, opts ...Option) (*App, error) {
	cfg, err := LoadConfig(config.WithEnvFiles(".env"))
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, opts...)
}

// New wires every component. The session is not restored yet; see Start.
func New(ctx context.Context, cfg Config, opts ...Option) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	if log == nil {
		log = logger.New(
			logger.WithLevelName(cfg.LogLevel),
			logger.WithFormat(logger.Format(cfg.LogFormat)),
			logger.WithContextExtractors(requestid.LoggerExtractor()),
		)
	}

	tr, err := i18n.Default(i18n.WithDefaultLanguage(cfg.Language), i18n.WithLogger(log))
	if err != nil {
		return nil, err
	}

	apiOpts := []api.Option{api.WithLogger(log), api.WithTimeout(cfg.HTTPTimeout)}
	if o.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(o.httpClient))
	}
	client, err := api.New(cfg.APIURL, apiOpts...)
	if err != nil {
		return nil, err
	}

	sessOpts := []session.Option{
		session.WithLogger(log),
		session.WithLogoutKeys(cart.Guest.StorageKey()),
	}
	if cfg.SecretKey != "" {
		key, err := secrets.ParseKey(cfg.SecretKey)
		if err != nil {
			return nil, errors.Join(ErrInvalidSecretKey, err)
		}
		sealer, err := secrets.NewSealer(key, "session")
		if err != nil {
			return nil, errors.Join(ErrInvalidSecretKey, err)
		}
		sessOpts = append(sessOpts, session.WithSealer(sealer))
	}

	storage, closeStorage := o.storage, func() error { return nil }
	if storage == nil {
		storage, closeStorage, err = OpenStorage(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
	}

	sess, err := session.New(client, storage, sessOpts...)
	if err != nil {
		_ = closeStorage()
		return nil, err
	}
	carts, err := cart.New(cart.NewKVRepository(storage), cart.WithLogger(log))
	if err != nil {
		_ = closeStorage()
		return nil, err
	}
	handoff := checkout.NewHandoff(carts)

	// A new identity gets its own cart; a checkout begun by the previous one
	// is dropped.
	sess.Subscribe(func(ctx context.Context, who *identity.Identity) {
		handoff.Abandon()
		if err := carts.SwitchPartition(ctx, who); err != nil {
			log.WarnContext(ctx, "cart partition unavailable, starting empty", logger.Error(err))
		}
	})

	return &App{
		Config:       cfg,
		Logger:       log,
		Translator:   tr,
		API:          client,
		Storage:      storage,
		Session:      sess,
		Cart:         carts,
		Checkout:     checkout.NewService(handoff, client, sess, checkout.WithLogger(log)),
		closeStorage: closeStorage,
	}, nil
}

// Start restores the persisted session, which also loads its cart. The app
// is usable even when Start returns an error; it is then anonymous.
func (a *App) Start(ctx context.Context) error {
	return a.Session.Restore(ctx)
}

// Close releases the storage backend.
func (a *App) Close() error {
	return a.closeStorage()
}

// Browse fetches the catalog and applies f to it.
func (a *App) Browse(ctx context.Context, f catalog.Filter) (catalog.Result, error) {
	products, err := a.API.Products(ctx)
	if err != nil {
		return catalog.Result{}, err
	}
	return f.Apply(products), nil
}

// MyProducts lists the signed-in artisan's own products.
func (a *App) MyProducts(ctx context.Context) ([]catalog.Product, error) {
	if err := a.Session.Require(identity.ManageOwnProducts); err != nil {
		return nil, err
	}
	products, err := a.API.Products(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.OwnedBy(products, a.Session.Identity()), nil
}

// AddProductToCart fetches the current product record and adds quantity
// units of it to the cart. Before Start it fails with cart.ErrNotLoaded.
func (a *App) AddProductToCart(ctx context.Context, productID string, quantity int) error {
	p, err := a.API.Product(ctx, productID)
	if err != nil {
		return err
	}
	return a.Cart.AddQuantity(ctx, p, quantity)
}

// CartBadge is the item count label of the cart, e.g. "3 items".
func (a *App) CartBadge(lang string) string {
	return a.Translator.N(lang, "cart.items", a.Cart.Count(), nil)
}

// Message renders err for the user in lang.
func (a *App) Message(lang string, err error) string {
	if err == nil {
		return ""
	}
	t := func(key string) string { return a.Translator.T(lang, key, nil) }

	if errs := validator.ExtractValidationErrors(err); errs != nil {
		msgs := a.Translator.ValidationMessages(lang, errs)
		var parts []string
		for _, field := range errs.Fields() {
			parts = append(parts, msgs[field]...)
		}
		return strings.Join(parts, "; ")
	}

	switch {
	case errors.Is(err, identity.ErrLoginRequired):
		return t("checkout.login_required")
	case errors.Is(err, checkout.ErrEmptySelection), errors.Is(err, checkout.ErrNothingToCheckout):
		return t("checkout.empty_selection")
	case api.IsNetworkError(err):
		return t("error.network")
	case api.IsNotFoundError(err):
		return api.Message(err, t("error.not_found"))
	}
	return api.Message(err, t("error.generic"))
}

func (a *App) String() string {
	return fmt.Sprintf("storefront(api=%s storage=%s state=%s)", a.API.BaseURL(), a.Config.Storage, a.Session.State())
}
