package lifecycle

// State represents an onboarding state of a credential unit
type State string

const (
	StateDraft            State = "DRAFT"
	StateCsrGenerated     State = "CSR_GENERATED"
	StateComplianceIssued State = "COMPLIANCE_ISSUED"
	StateProductionIssued State = "PRODUCTION_ISSUED"
	StateRevoked          State = "REVOKED"
)

var validStates = map[State]bool{
	StateDraft:            true,
	StateCsrGenerated:     true,
	StateComplianceIssued: true,
	StateProductionIssued: true,
	StateRevoked:          true,
}

// Revoked is the only terminal state: a revoked unit can only be replaced
// by onboarding a fresh unit, never re-credentialed in place.
var terminalStates = map[State]bool{
	StateRevoked: true,
}

// IsTerminal returns true if no further transitions are allowed
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
