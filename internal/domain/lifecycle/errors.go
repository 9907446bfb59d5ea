package lifecycle

import "errors"

var (
	// ErrInvalidTransition is returned when the current state has no
	// transition for the fired trigger (e.g. issuing production credentials
	// straight from DRAFT, or any trigger on a revoked unit)
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when a transition exists but its guard
	// rejects, such as production issuance without compliance credentials
	ErrGuardFailed = errors.New("guard condition failed")
)
