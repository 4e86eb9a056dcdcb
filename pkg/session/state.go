package session

import "github.com/handicraft/storefront/pkg/statemachine"

// State is the resolution state of the session.
type State string

const (
	Unresolved    State = "unresolved"
	Anonymous     State = "anonymous"
	Authenticated State = "authenticated"
)

type event string

const (
	restoredEmpty event = "restored_empty"
	restoredFound event = "restored_found"
	loggedIn      event = "logged_in"
	loggedOut     event = "logged_out"
)

func newMachine() *statemachine.Machine[State, event] {
	return statemachine.MustNew(Unresolved,
		statemachine.WithTransition(Unresolved, Anonymous, restoredEmpty),
		statemachine.WithTransition(Unresolved, Authenticated, restoredFound),
		statemachine.WithTransition(Anonymous, Authenticated, loggedIn),
		// Signing in again replaces the identity.
		statemachine.WithTransition(Authenticated, Authenticated, loggedIn),
		statemachine.WithTransition(Authenticated, Anonymous, loggedOut),
		statemachine.WithTransition(Anonymous, Anonymous, loggedOut),
	)
}
