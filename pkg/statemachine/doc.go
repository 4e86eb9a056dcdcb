// Package statemachine provides a small, concurrency-safe finite state machine
// over string-like state and event types.
//
// Transitions are declared up front with options and looked up by
// (current state, event). Guards can reject a transition at runtime. Callers
// tell "no such transition" apart from "guard rejected" with
// IsNoTransitionAvailableError and IsTransitionRejectedError.
//
//	type phase string
//	type signal string
//
//	sm := statemachine.MustNew[phase, signal]("unresolved",
//	    statemachine.WithTransition[phase, signal]("unresolved", "anonymous", "restored"),
//	    statemachine.WithTransition[phase, signal]("anonymous", "authenticated", "login"),
//	)
//	if err := sm.Fire("login"); err != nil {
//	    // still unresolved
//	}
package statemachine
