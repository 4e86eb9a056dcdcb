package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/handicraft/storefront/pkg/identity"
	"github.com/handicraft/storefront/pkg/kvstore"
	"github.com/handicraft/storefront/pkg/logger"
)

// Storage keys of the persisted credential.
const (
	TokenKey = "token"
	UserKey  = "user"
)

// GuestCartKey is the storage key of the guest cart partition, cleared on logout.
const GuestCartKey = "cart_guest"

type credential struct {
	token string
	user  identity.Identity
}

// load reads the persisted credential. It returns (nil, nil) when nothing is
// stored, ErrCorruptSession when the stored values cannot be decoded, and
// ErrPersistFailed when storage itself fails.
func (s *Store) load(ctx context.Context) (*credential, error) {
	rawToken, err := s.read(ctx, TokenKey)
	if err != nil || rawToken == nil {
		return nil, err
	}
	rawUser, err := s.read(ctx, UserKey)
	if err != nil || rawUser == nil {
		return nil, err
	}

	var user identity.Identity
	if err := json.Unmarshal(rawUser, &user); err != nil {
		return nil, errors.Join(ErrCorruptSession, err)
	}
	if err := user.Validate(); err != nil {
		return nil, errors.Join(ErrCorruptSession, err)
	}
	if len(rawToken) == 0 {
		return nil, errors.Join(ErrCorruptSession, errors.New("empty token"))
	}
	return &credential{token: string(rawToken), user: user}, nil
}

// read returns the opened value of key, or nil when the key is absent.
func (s *Store) read(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.storage.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrPersistFailed, err)
	}
	if s.sealer == nil {
		return raw, nil
	}
	opened, err := s.sealer.Open(string(raw))
	if err != nil {
		return nil, errors.Join(ErrCorruptSession, err)
	}
	return opened, nil
}

type entry struct {
	key   string
	value []byte
}

// encode returns the stored form of c, sealed when a sealer is set.
func (s *Store) encode(c credential) ([]entry, error) {
	user, err := json.Marshal(c.user)
	if err != nil {
		return nil, err
	}
	entries := []entry{{TokenKey, []byte(c.token)}, {UserKey, user}}
	if s.sealer == nil {
		return entries, nil
	}
	for i := range entries {
		sealed, err := s.sealer.Seal(entries[i].value)
		if err != nil {
			return nil, err
		}
		entries[i].value = []byte(sealed)
	}
	return entries, nil
}

// save writes both keys of c. When a write fails the keys already written
// are put back to prev, or removed when prev is nil, so storage keeps
// holding the credential that is still current in memory.
func (s *Store) save(ctx context.Context, c credential, prev *credential) error {
	next, err := s.encode(c)
	if err != nil {
		return errors.Join(ErrPersistFailed, err)
	}
	var old []entry
	if prev != nil {
		if old, err = s.encode(*prev); err != nil {
			return errors.Join(ErrPersistFailed, err)
		}
	}

	for i, e := range next {
		if err := s.storage.Set(ctx, e.key, e.value); err != nil {
			return errors.Join(ErrPersistFailed, err, s.rollback(ctx, next[:i], old))
		}
	}
	return nil
}

// rollback undoes the written entries: each gets its value from old, or is
// deleted when old is empty.
func (s *Store) rollback(ctx context.Context, written, old []entry) error {
	var errs []error
	for i, e := range written {
		var err error
		if len(old) > i {
			err = s.storage.Set(ctx, old[i].key, old[i].value)
		} else {
			err = s.storage.Delete(ctx, e.key)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to roll back stored session", logger.Error(err))
	}
	return err
}

// remove deletes every key, reporting all failures.
func (s *Store) remove(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := s.storage.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrPersistFailed}, errs...)...)
	}
	return nil
}
