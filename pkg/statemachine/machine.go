package statemachine

import (
	"fmt"
	"sync"
)

// Guard decides at fire time whether a declared transition may proceed.
type Guard[S, E ~string] func(from S, event E) bool

type transition[S, E ~string] struct {
	to     S
	guards []Guard[S, E]
}

// Machine is a thread-safe in-memory state machine.
// Transitions are indexed as [from][event] -> candidates; the first candidate
// whose guards all pass wins.
type Machine[S, E ~string] struct {
	mu          sync.RWMutex
	initial     S
	current     S
	transitions map[S]map[E][]transition[S, E]
}

// Option configures a Machine during construction.
type Option[S, E ~string] func(*Machine[S, E]) error

// TransitionOption configures a single declared transition.
type TransitionOption[S, E ~string] func(*transition[S, E])

// New creates a machine in the initial state.
func New[S, E ~string](initial S, opts ...Option[S, E]) (*Machine[S, E], error) {
	if initial == "" {
		return nil, fmt.Errorf("initial state cannot be empty")
	}

	m := &Machine[S, E]{
		initial:     initial,
		current:     initial,
		transitions: make(map[S]map[E][]transition[S, E]),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New that panics on a bad declaration.
func MustNew[S, E ~string](initial S, opts ...Option[S, E]) *Machine[S, E] {
	m, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return m
}

// WithTransition declares from --event--> to.
func WithTransition[S, E ~string](from, to S, event E, opts ...TransitionOption[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		if from == "" || to == "" || event == "" {
			return ErrInvalidTransition
		}
		t := transition[S, E]{to: to}
		for _, opt := range opts {
			opt(&t)
		}
		if m.transitions[from] == nil {
			m.transitions[from] = make(map[E][]transition[S, E])
		}
		m.transitions[from][event] = append(m.transitions[from][event], t)
		return nil
	}
}

// WithGuard attaches a guard to a transition. Nil guards are ignored.
func WithGuard[S, E ~string](g Guard[S, E]) TransitionOption[S, E] {
	return func(t *transition[S, E]) {
		if g != nil {
			t.guards = append(t.guards, g)
		}
	}
}

func (m *Machine[S, E]) Current() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Fire moves the machine along the first eligible transition for event and
// returns the state it left.
func (m *Machine[S, E]) Fire(event E) (S, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.current
	t, err := m.lookup(from, event)
	if err != nil {
		return from, err
	}
	m.current = t.to
	return from, nil
}

// CanFire reports whether Fire(event) would succeed right now.
func (m *Machine[S, E]) CanFire(event E) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.lookup(m.current, event)
	return err == nil
}

// Reset puts the machine back into its initial state.
func (m *Machine[S, E]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
}

func (m *Machine[S, E]) lookup(from S, event E) (transition[S, E], error) {
	candidates := m.transitions[from][event]
	if len(candidates) == 0 {
		return transition[S, E]{}, &ErrNoTransitionAvailable{StateName: string(from), EventName: string(event)}
	}

next:
	for _, t := range candidates {
		for _, g := range t.guards {
			if !g(from, event) {
				continue next
			}
		}
		return t, nil
	}
	return transition[S, E]{}, &ErrTransitionRejected{StateName: string(from), EventName: string(event)}
}
