package lifecycle

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateDraft, false},
		{StateCsrGenerated, false},
		{StateComplianceIssued, false},
		{StateProductionIssued, false},
		{StateRevoked, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"valid state", StateDraft, true},
		{"valid state", StateRevoked, true},
		{"invalid state", State("INVALID"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	if got := StateCsrGenerated.String(); got != "CSR_GENERATED" {
		t.Errorf("State.String() = %v, want %v", got, "CSR_GENERATED")
	}
}

func TestTrigger_String(t *testing.T) {
	if got := TriggerIssueCompliance.String(); got != "ISSUE_COMPLIANCE" {
		t.Errorf("Trigger.String() = %v, want %v", got, "ISSUE_COMPLIANCE")
	}
}

func TestBuilder_Configure(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StateDraft)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}

	// Configuring the same state again returns the same config
	config2 := builder.Configure(StateDraft)
	if config != config2 {
		t.Error("Configure() returned different configs for the same state")
	}
}

func TestBuilder_ConfigureInvalidStatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Configure() with invalid state did not panic")
		}
	}()
	NewBuilder().Configure(State("BOGUS"))
}

func TestBuilder_DuplicateTriggerPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("registering the same trigger twice did not panic")
		}
	}()
	config := NewBuilder().Configure(StateDraft)
	config.Permit(TriggerGenerateCSR, StateCsrGenerated)
	config.Permit(TriggerGenerateCSR, StateRevoked)
}

func TestStateMachine_Fire(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).Permit(TriggerGenerateCSR, StateCsrGenerated)
	builder.Configure(StateCsrGenerated).Permit(TriggerRevoke, StateRevoked)

	machine := builder.Build(StateDraft)

	if err := machine.Fire(context.Background(), TriggerGenerateCSR); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if machine.State() != StateCsrGenerated {
		t.Errorf("State() = %v, want %v", machine.State(), StateCsrGenerated)
	}

	// Trigger not configured for the current state
	err := machine.Fire(context.Background(), TriggerGenerateCSR)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
	}
}

func TestStateMachine_FireGuard(t *testing.T) {
	allow := false

	builder := NewBuilder()
	builder.Configure(StateComplianceIssued).
		PermitIf(TriggerIssueProduction, StateProductionIssued, func(ctx context.Context) bool {
			return allow
		})

	machine := builder.Build(StateComplianceIssued)

	err := machine.Fire(context.Background(), TriggerIssueProduction)
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want ErrGuardFailed", err)
	}
	if machine.State() != StateComplianceIssued {
		t.Errorf("State() changed to %v after failed guard", machine.State())
	}

	allow = true
	if err := machine.Fire(context.Background(), TriggerIssueProduction); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if machine.State() != StateProductionIssued {
		t.Errorf("State() = %v, want %v", machine.State(), StateProductionIssued)
	}
}

func TestStateMachine_CanFire(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).Permit(TriggerGenerateCSR, StateCsrGenerated)

	machine := builder.Build(StateDraft)

	if !machine.CanFire(TriggerGenerateCSR) {
		t.Error("CanFire(GENERATE_CSR) = false, want true")
	}
	if machine.CanFire(TriggerRevoke) {
		t.Error("CanFire(REVOKE) = true, want false")
	}
}

func TestStateMachine_BuildIsolation(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).Permit(TriggerGenerateCSR, StateCsrGenerated)

	first := builder.Build(StateDraft)
	second := builder.Build(StateDraft)

	if err := first.Fire(context.Background(), TriggerGenerateCSR); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}

	if second.State() != StateDraft {
		t.Errorf("second machine state = %v, want %v", second.State(), StateDraft)
	}
}
