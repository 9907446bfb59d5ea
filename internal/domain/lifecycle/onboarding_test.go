package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
)

func TestNewOnboardingMachine_HappyPath(t *testing.T) {
	unit := &entity.Unit{State: entity.UnitStateDraft}
	machine := NewOnboardingMachine(unit)

	steps := []struct {
		trigger  Trigger
		expected State
		prepare  func()
	}{
		{TriggerGenerateCSR, StateCsrGenerated, nil},
		{TriggerIssueCompliance, StateComplianceIssued, nil},
		{TriggerIssueProduction, StateProductionIssued, func() {
			unit.Compliance = entity.CredentialSet{Token: "t", Secret: "s"}
		}},
		{TriggerRevoke, StateRevoked, nil},
	}

	for _, step := range steps {
		if step.prepare != nil {
			step.prepare()
		}
		if err := machine.Fire(context.Background(), step.trigger); err != nil {
			t.Fatalf("Fire(%s) error = %v", step.trigger, err)
		}
		if machine.State() != step.expected {
			t.Fatalf("State() = %v, want %v", machine.State(), step.expected)
		}
	}
}

func TestNewOnboardingMachine_StartsAtPersistedState(t *testing.T) {
	unit := &entity.Unit{State: entity.UnitStateComplianceIssued}
	machine := NewOnboardingMachine(unit)

	if machine.State() != StateComplianceIssued {
		t.Errorf("State() = %v, want %v", machine.State(), StateComplianceIssued)
	}
}

func TestNewOnboardingMachine_UnknownStateFallsBackToDraft(t *testing.T) {
	unit := &entity.Unit{State: entity.UnitState("LEGACY")}
	machine := NewOnboardingMachine(unit)

	if machine.State() != StateDraft {
		t.Errorf("State() = %v, want %v", machine.State(), StateDraft)
	}
}

func TestNewOnboardingMachine_NoSkippingStates(t *testing.T) {
	unit := &entity.Unit{State: entity.UnitStateDraft}
	machine := NewOnboardingMachine(unit)

	tests := []Trigger{TriggerIssueCompliance, TriggerIssueProduction, TriggerRevoke}
	for _, trigger := range tests {
		err := machine.Fire(context.Background(), trigger)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Fire(%s) from DRAFT error = %v, want ErrInvalidTransition", trigger, err)
		}
	}
}

func TestNewOnboardingMachine_ProductionGuardedOnCompliance(t *testing.T) {
	unit := &entity.Unit{State: entity.UnitStateComplianceIssued}
	machine := NewOnboardingMachine(unit)

	err := machine.Fire(context.Background(), TriggerIssueProduction)
	if !errors.Is(err, ErrGuardFailed) {
		t.Fatalf("Fire(ISSUE_PRODUCTION) without credentials error = %v, want ErrGuardFailed", err)
	}

	unit.Compliance = entity.CredentialSet{Token: "t", Secret: "s"}
	if err := machine.Fire(context.Background(), TriggerIssueProduction); err != nil {
		t.Fatalf("Fire(ISSUE_PRODUCTION) error = %v", err)
	}
}

func TestNewOnboardingMachine_RevokedIsTerminal(t *testing.T) {
	unit := &entity.Unit{State: entity.UnitStateRevoked}
	machine := NewOnboardingMachine(unit)

	for _, trigger := range []Trigger{TriggerGenerateCSR, TriggerIssueCompliance, TriggerIssueProduction, TriggerRevoke} {
		if err := machine.Fire(context.Background(), trigger); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Fire(%s) from REVOKED error = %v, want ErrInvalidTransition", trigger, err)
		}
	}
}
