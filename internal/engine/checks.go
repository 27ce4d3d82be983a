package engine

import (
	"github.com/petrijr/packflow/internal/guard"
	"github.com/petrijr/packflow/pkg/api"
)

// authorize checks the role requirement of a create action.
func authorize(role api.Role, action api.ActionID) *api.Error {
	if st := guard.Authorize(role, action); !st.Enabled {
		return api.Forbidden(st.Reason)
	}
	return nil
}

// permitted turns a disabled record guard into FORBIDDEN. Handlers call it
// after the transition predicate, so only the role part can still fail.
func permitted(st api.ActionState) error {
	if !st.Enabled {
		return api.Forbidden(st.Reason)
	}
	return nil
}

// gate runs the transition predicate and then the record guard for the
// actor. A missing edge is a STATE_CONFLICT carrying the guard's status
// reason, which the guard yields when evaluated with every capability.
func gate[S ~string](state S, can func(S) bool, check func(api.Role, S, api.ActionID) api.ActionState, actor api.Actor, action api.ActionID) error {
	if !can(state) {
		return api.StateConflict("%s (current state: %s)", check(api.RoleSystemAdmin, state, action).Reason, state)
	}
	return permitted(check(actor.Role, state, action))
}
