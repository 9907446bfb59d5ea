package lifecycle

import "context"

// StateMachine tracks a unit's onboarding state and validates credential
// transitions. Instances carry mutable state and are not safe for
// concurrent use; the onboarding service serializes access per unit.
type StateMachine interface {
	// State returns the current onboarding state
	State() State

	// CanFire reports whether the trigger has a configured transition from
	// the current state. Guards are not evaluated; they need a context.
	CanFire(trigger Trigger) bool

	// Fire executes the trigger. Returns ErrInvalidTransition when the
	// current state has no transition for the trigger, ErrGuardFailed when
	// the transition is guarded and the guard rejects.
	Fire(ctx context.Context, trigger Trigger) error
}
