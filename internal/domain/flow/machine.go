package flow

import "fmt"

// StateMachine tracks the current state of one flow and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(trigger Trigger) error

	// PermittedTriggers returns all triggers that can be fired in the current state
	PermittedTriggers() []Trigger
}

type stateMachine struct {
	currentState State
	transitions  map[State]map[Trigger]State
}

// lifecycle is the one transition table every signature flow follows. A
// single-signer flow completes straight out of PENDING without ever being
// observed IN_PROGRESS.
var lifecycle = map[State]map[Trigger]State{
	StatePending: {
		TriggerAdvance:  StateInProgress,
		TriggerComplete: StateCompleted,
		TriggerCancel:   StateCancelled,
	},
	StateInProgress: {
		TriggerAdvance:  StateInProgress,
		TriggerComplete: StateCompleted,
		TriggerCancel:   StateCancelled,
	},
}

// NewLifecycle creates a state machine positioned at the given state
func NewLifecycle(initial State) (StateMachine, error) {
	if !initial.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, initial)
	}
	return &stateMachine{
		currentState: initial,
		transitions:  lifecycle,
	}, nil
}

// State returns the current state
func (m *stateMachine) State() State {
	return m.currentState
}

// CanFire returns true if the trigger is permitted in the current state
func (m *stateMachine) CanFire(trigger Trigger) bool {
	outgoing, ok := m.transitions[m.currentState]
	if !ok {
		return false
	}
	_, ok = outgoing[trigger]
	return ok
}

// Fire attempts to execute the trigger, transitioning to the new state if allowed
func (m *stateMachine) Fire(trigger Trigger) error {
	outgoing, ok := m.transitions[m.currentState]
	if !ok {
		return fmt.Errorf("%w: cannot fire trigger %s from terminal state %s", ErrInvalidTransition, trigger, m.currentState)
	}

	next, ok := outgoing[trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}

	m.currentState = next
	return nil
}

// PermittedTriggers returns all triggers that can be fired in the current state
func (m *stateMachine) PermittedTriggers() []Trigger {
	outgoing, ok := m.transitions[m.currentState]
	if !ok {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(outgoing))
	for trigger := range outgoing {
		triggers = append(triggers, trigger)
	}

	return triggers
}
