package statemachine_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handicraft/storefront/pkg/statemachine"
)

type phase string
type signal string

const (
	unresolved    phase = "unresolved"
	anonymous     phase = "anonymous"
	authenticated phase = "authenticated"

	restoredEmpty signal = "restored_empty"
	login         signal = "login"
	logout        signal = "logout"
)

func newMachine(t *testing.T, opts ...statemachine.Option[phase, signal]) *statemachine.Machine[phase, signal] {
	t.Helper()
	base := []statemachine.Option[phase, signal]{
		statemachine.WithTransition[phase, signal](unresolved, anonymous, restoredEmpty),
		statemachine.WithTransition[phase, signal](anonymous, authenticated, login),
		statemachine.WithTransition[phase, signal](authenticated, anonymous, logout),
	}
	m, err := statemachine.New(unresolved, append(base, opts...)...)
	require.NoError(t, err)
	return m
}

func TestMachine_Fire(t *testing.T) {
	t.Parallel()

	t.Run("follows declared transitions", func(t *testing.T) {
		t.Parallel()
		m := newMachine(t)
		assert.Equal(t, unresolved, m.Current())

		from, err := m.Fire(restoredEmpty)
		require.NoError(t, err)
		assert.Equal(t, unresolved, from)
		assert.Equal(t, anonymous, m.Current())

		_, err = m.Fire(login)
		require.NoError(t, err)
		assert.Equal(t, authenticated, m.Current())

		_, err = m.Fire(logout)
		require.NoError(t, err)
		assert.Equal(t, anonymous, m.Current())
	})

	t.Run("undeclared transition leaves state alone", func(t *testing.T) {
		t.Parallel()
		m := newMachine(t)

		_, err := m.Fire(login)
		require.Error(t, err)
		assert.True(t, statemachine.IsNoTransitionAvailableError(err))
		assert.False(t, statemachine.IsTransitionRejectedError(err))
		assert.Equal(t, unresolved, m.Current())
		assert.False(t, m.CanFire(login))
	})

	t.Run("guard rejection", func(t *testing.T) {
		t.Parallel()
		blocked := func(phase, signal) bool { return false }
		m, err := statemachine.New(anonymous,
			statemachine.WithTransition(anonymous, authenticated, login, statemachine.WithGuard[phase, signal](blocked)),
		)
		require.NoError(t, err)

		_, err = m.Fire(login)
		assert.True(t, statemachine.IsTransitionRejectedError(err))
		assert.Equal(t, anonymous, m.Current())
	})

	t.Run("first passing candidate wins", func(t *testing.T) {
		t.Parallel()
		never := func(phase, signal) bool { return false }
		m, err := statemachine.New(anonymous,
			statemachine.WithTransition(anonymous, unresolved, login, statemachine.WithGuard[phase, signal](never)),
			statemachine.WithTransition[phase, signal](anonymous, authenticated, login),
		)
		require.NoError(t, err)

		_, err = m.Fire(login)
		require.NoError(t, err)
		assert.Equal(t, authenticated, m.Current())
	})

	t.Run("reset returns to initial", func(t *testing.T) {
		t.Parallel()
		m := newMachine(t)
		_, _ = m.Fire(restoredEmpty)
		m.Reset()
		assert.Equal(t, unresolved, m.Current())
	})
}

func TestNew_InvalidDeclarations(t *testing.T) {
	t.Parallel()

	_, err := statemachine.New[phase, signal]("")
	assert.Error(t, err)

	_, err = statemachine.New(anonymous, statemachine.WithTransition[phase, signal](anonymous, "", login))
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	assert.Panics(t, func() {
		statemachine.MustNew(anonymous, statemachine.WithTransition[phase, signal]("", anonymous, login))
	})
}

func TestMachine_ConcurrentFire(t *testing.T) {
	t.Parallel()

	m, err := statemachine.New(anonymous,
		statemachine.WithTransition[phase, signal](anonymous, authenticated, login),
		statemachine.WithTransition[phase, signal](authenticated, anonymous, logout),
	)
	require.NoError(t, err)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Fire(login); err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.Equal(t, authenticated, m.Current())
}
