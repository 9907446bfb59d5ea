package lifecycle

import (
	"context"
	"fmt"
)

// GuardFunc decides whether a configured transition may run. Guards close
// over the unit being onboarded, so they see credential writes made between
// Build and Fire.
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder declares the onboarding transition table once; Build
// stamps out independent machines positioned at a unit's persisted state.
type StateMachineBuilder interface {
	// Configure returns the transition configuration for a state, creating
	// it on first use
	Configure(state State) StateConfiguration

	// Build creates a machine at the given initial state. Machines built
	// from the same builder do not share mutable state.
	Build(initialState State) StateMachine
}

// StateConfiguration registers the outgoing transitions of one state.
// Onboarding is one-directional, so each trigger maps to exactly one target
// state; registering a trigger twice for the same state is a programming
// error and panics.
type StateConfiguration interface {
	// Permit registers an unguarded transition
	Permit(trigger Trigger, toState State) StateConfiguration

	// PermitIf registers a transition that only runs when guard accepts
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

// transition is the single outgoing edge for one (state, trigger) pair
type transition struct {
	toState State
	guard   GuardFunc
}

type stateConfig struct {
	fromState   State
	transitions map[Trigger]transition
}

type stateMachineBuilder struct {
	configurations map[State]*stateConfig
}

type stateMachine struct {
	currentState   State
	configurations map[State]*stateConfig
}

// NewBuilder creates an empty state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[State]*stateConfig),
	}
}

func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("configure unknown onboarding state: %s", state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{
			fromState:   state,
			transitions: make(map[Trigger]transition),
		}
		b.configurations[state] = config
	}

	return config
}

func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("build from unknown onboarding state: %s", initialState))
	}

	// Copy the transition tables so every unit gets its own machine; the
	// builder stays reusable across onboarding calls
	configs := make(map[State]*stateConfig, len(b.configurations))
	for state, config := range b.configurations {
		transitions := make(map[Trigger]transition, len(config.transitions))
		for trigger, t := range config.transitions {
			transitions[trigger] = t
		}
		configs[state] = &stateConfig{fromState: state, transitions: transitions}
	}

	return &stateMachine{
		currentState:   initialState,
		configurations: configs,
	}
}

func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("transition to unknown onboarding state: %s", toState))
	}
	if _, exists := c.transitions[trigger]; exists {
		panic(fmt.Sprintf("trigger %s already configured for state %s", trigger, c.fromState))
	}

	c.transitions[trigger] = transition{toState: toState, guard: guard}
	return c
}

func (m *stateMachine) State() State {
	return m.currentState
}

func (m *stateMachine) CanFire(trigger Trigger) bool {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return false
	}
	_, exists = config.transitions[trigger]
	return exists
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}

	t, exists := config.transitions[trigger]
	if !exists {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}

	if t.guard != nil && !t.guard(ctx) {
		return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.currentState)
	}

	m.currentState = t.toState
	return nil
}
