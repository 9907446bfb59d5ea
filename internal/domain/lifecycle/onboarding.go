package lifecycle

import (
	"context"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
)

// NewOnboardingMachine builds the credential-onboarding state machine for a
// unit, positioned at the unit's persisted state. Transitions are
// one-directional; revocation is reachable from every post-draft state.
// Production issuance is guarded on compliance credentials being present.
func NewOnboardingMachine(unit *entity.Unit) StateMachine {
	builder := NewBuilder()

	builder.Configure(StateDraft).
		Permit(TriggerGenerateCSR, StateCsrGenerated)

	builder.Configure(StateCsrGenerated).
		Permit(TriggerIssueCompliance, StateComplianceIssued).
		Permit(TriggerRevoke, StateRevoked)

	builder.Configure(StateComplianceIssued).
		PermitIf(TriggerIssueProduction, StateProductionIssued, func(ctx context.Context) bool {
			return !unit.Compliance.Empty()
		}).
		Permit(TriggerRevoke, StateRevoked)

	builder.Configure(StateProductionIssued).
		Permit(TriggerRevoke, StateRevoked)

	return builder.Build(unitState(unit))
}

func unitState(unit *entity.Unit) State {
	s := State(unit.State)
	if !s.IsValid() {
		return StateDraft
	}
	return s
}
