package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/handicraft/storefront/pkg/api"
	"github.com/handicraft/storefront/pkg/identity"
	"github.com/handicraft/storefront/pkg/kvstore"
	"github.com/handicraft/storefront/pkg/logger"
	"github.com/handicraft/storefront/pkg/sanitizer"
	"github.com/handicraft/storefront/pkg/secrets"
	"github.com/handicraft/storefront/pkg/statemachine"
	"github.com/handicraft/storefront/pkg/validator"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// Gateway is the part of the API client the session store drives.
type Gateway interface {
	Login(ctx context.Context, creds api.Credentials) (api.Session, error)
	Register(ctx context.Context, reg api.Registration) error
	Arm(accessToken string)
	Disarm()
}

// Observer is told about every identity change. A nil identity means nobody
// is signed in. Observers run synchronously and must not call back into
// Restore, Login or Logout.
type Observer func(ctx context.Context, current *identity.Identity)

type Option func(*Store)

// WithSealer encrypts the persisted credential at rest.
func WithSealer(s *secrets.Sealer) Option {
	return func(st *Store) {
		st.sealer = s
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(st *Store) {
		if l != nil {
			st.logger = l
		}
	}
}

// WithLogoutKeys replaces the extra storage keys wiped on logout
// (GuestCartKey by default).
func WithLogoutKeys(keys ...string) Option {
	return func(st *Store) {
		st.logoutKeys = keys
	}
}

type subscription struct {
	id int
	fn Observer
}

// Store holds the current identity. It is safe for concurrent use.
type Store struct {
	gateway    Gateway
	storage    kvstore.Store
	sealer     *secrets.Sealer
	logger     *slog.Logger
	logoutKeys []string

	// op serialises Restore, Login and Logout so storage and memory agree.
	op sync.Mutex

	// token is the bearer of current; guarded by op.
	token string

	mu        sync.RWMutex
	machine   *statemachine.Machine[State, event]
	current   *identity.Identity
	observers []subscription
	nextSubID int

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates an unresolved store. Call Restore once before use.
func New(gateway Gateway, storage kvstore.Store, opts ...Option) (*Store, error) {
	if gateway == nil {
		return nil, ErrNoGateway
	}
	if storage == nil {
		return nil, ErrNoStorage
	}

	s := &Store{
		gateway:    gateway,
		storage:    storage,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		logoutKeys: []string{GuestCartKey},
		machine:    newMachine(),
		ready:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("session"))
	return s, nil
}

// Ready is closed once Restore has finished, whatever it found.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

func (s *Store) State() State {
	return s.machine.Current()
}

// Identity returns a copy of the signed-in identity, or nil.
func (s *Store) Identity() *identity.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	id := *s.current
	return &id
}

// Require checks that the current identity holds permission p.
func (s *Store) Require(p identity.Permission) error {
	if s.State() == Unresolved {
		return ErrNotReady
	}
	return identity.Require(s.Identity(), p)
}

// Subscribe registers fn for identity changes and returns a function that
// removes it.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.observers = append(s.observers, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.observers {
			if sub.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// Restore adopts the persisted credential, if any, and arms the gateway with
// it. Ready is closed on return even when nothing usable was stored. A
// corrupt credential resolves to anonymous and is only logged; a storage
// failure resolves to anonymous and is returned.
func (s *Store) Restore(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if !s.machine.CanFire(restoredEmpty) {
		return ErrAlreadyRestored
	}
	defer s.markReady()

	cred, err := s.load(ctx)
	if cred == nil {
		s.transition(restoredEmpty, nil)
		switch {
		case errors.Is(err, ErrCorruptSession):
			s.logger.WarnContext(ctx, "discarding unreadable session", logger.Error(err))
			err = nil
		case err != nil:
			s.logger.ErrorContext(ctx, "failed to restore session", logger.Error(err))
		default:
			s.logger.DebugContext(ctx, "no stored session")
		}
		s.notify(ctx)
		return err
	}

	s.gateway.Arm(cred.token)
	s.token = cred.token
	s.transition(restoredFound, &cred.user)
	s.logger.InfoContext(ctx, "session restored",
		logger.UserID(cred.user.ID),
		logger.Role(cred.user.Role.String()),
	)
	s.notify(ctx)
	return nil
}

// Login signs in with email and password. On success the credential is
// persisted, the gateway armed and subscribers notified. On failure nothing
// changes; rejected credentials come back as *api.AuthError and malformed
// input as validator.ValidationErrors.
func (s *Store) Login(ctx context.Context, email, password string) (identity.Identity, error) {
	email = sanitizer.NormalizeEmail(email)
	if err := validator.Apply(
		validator.ValidEmail("email", email),
		validator.Required("password", password),
	); err != nil {
		return identity.Identity{}, err
	}

	s.op.Lock()
	defer s.op.Unlock()

	if s.State() == Unresolved {
		return identity.Identity{}, ErrNotReady
	}

	sess, err := s.gateway.Login(ctx, api.Credentials{Email: email, Password: password})
	if err != nil {
		s.logger.InfoContext(ctx, "login rejected",
			slog.String("email", sanitizer.MaskEmail(email)),
			logger.Error(err),
		)
		return identity.Identity{}, err
	}

	var prev *credential
	if cur := s.Identity(); cur != nil {
		prev = &credential{token: s.token, user: *cur}
	}
	if err := s.save(ctx, credential{token: sess.Token, user: sess.User}, prev); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist session", logger.Error(err))
		return identity.Identity{}, err
	}

	s.gateway.Arm(sess.Token)
	s.token = sess.Token
	s.transition(loggedIn, &sess.User)
	s.logger.InfoContext(ctx, "logged in",
		logger.UserID(sess.User.ID),
		logger.Role(sess.User.Role.String()),
	)
	s.notify(ctx)
	return sess.User, nil
}

// Register creates an account. It never signs anyone in; only customer and
// artisan accounts can be registered.
func (s *Store) Register(ctx context.Context, name, email, password string, role identity.Role) error {
	name = sanitizer.NormalizeWhitespace(name)
	email = sanitizer.NormalizeEmail(email)
	if err := validator.Apply(
		validator.Required("name", name),
		validator.ValidEmail("email", email),
		validator.MinLen("password", password, MinPasswordLength),
		validator.OneOf("role", role, identity.RegistrableRoles),
	); err != nil {
		return err
	}

	err := s.gateway.Register(ctx, api.Registration{Name: name, Email: email, Password: password, Role: role})
	if err != nil {
		s.logger.InfoContext(ctx, "registration rejected",
			slog.String("email", sanitizer.MaskEmail(email)),
			logger.Error(err),
		)
		return err
	}
	s.logger.InfoContext(ctx, "account registered",
		slog.String("email", sanitizer.MaskEmail(email)),
		logger.Role(role.String()),
	)
	return nil
}

// Logout forgets the credential and wipes the guest cart partition. The
// in-memory sign-out always happens; storage failures are returned after it.
// Logging out while anonymous only clears leftover credential keys; the guest
// cart then stays, since it is the active cart.
func (s *Store) Logout(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if s.State() == Unresolved {
		return ErrNotReady
	}

	prev := s.Identity()
	keys := []string{TokenKey, UserKey}
	if prev != nil {
		keys = append(keys, s.logoutKeys...)
	}
	err := s.remove(ctx, keys...)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to clear stored session", logger.Error(err))
	}

	s.gateway.Disarm()
	s.token = ""
	s.transition(loggedOut, nil)
	if prev != nil {
		s.logger.InfoContext(ctx, "logged out", logger.UserID(prev.ID))
		s.notify(ctx)
	}
	return err
}

func (s *Store) transition(ev event, to *identity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The table in newMachine covers every call site under op.
	if _, err := s.machine.Fire(ev); err != nil {
		panic("session: " + err.Error())
	}
	s.current = to
}

func (s *Store) notify(ctx context.Context) {
	s.mu.RLock()
	subs := append([]subscription(nil), s.observers...)
	s.mu.RUnlock()

	current := s.Identity()
	for _, sub := range subs {
		if current == nil {
			sub.fn(ctx, nil)
			continue
		}
		id := *current
		sub.fn(ctx, &id)
	}
}

func (s *Store) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}
