package flow

import (
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StatePending, false},
		{StateInProgress, false},
		{StateCompleted, true},
		{StateCancelled, true},
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
		{"pending", StatePending, true},
		{"completed", StateCompleted, true},
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

func TestNewLifecycle_InvalidState(t *testing.T) {
	_, err := NewLifecycle(State("BOGUS"))
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("NewLifecycle() error = %v, want ErrInvalidState", err)
	}
}

func TestLifecycle_HappyPath(t *testing.T) {
	m, err := NewLifecycle(StatePending)
	if err != nil {
		t.Fatalf("NewLifecycle() error = %v", err)
	}

	if err := m.Fire(TriggerAdvance); err != nil {
		t.Fatalf("Fire(ADVANCE) error = %v", err)
	}
	if m.State() != StateInProgress {
		t.Errorf("State() = %v, want IN_PROGRESS", m.State())
	}

	// intermediate advances stay in progress
	if err := m.Fire(TriggerAdvance); err != nil {
		t.Fatalf("Fire(ADVANCE) error = %v", err)
	}
	if m.State() != StateInProgress {
		t.Errorf("State() = %v, want IN_PROGRESS", m.State())
	}

	if err := m.Fire(TriggerComplete); err != nil {
		t.Fatalf("Fire(COMPLETE) error = %v", err)
	}
	if m.State() != StateCompleted {
		t.Errorf("State() = %v, want COMPLETED", m.State())
	}
}

func TestLifecycle_SingleSignerSkipsInProgress(t *testing.T) {
	m, _ := NewLifecycle(StatePending)

	if err := m.Fire(TriggerComplete); err != nil {
		t.Fatalf("Fire(COMPLETE) error = %v", err)
	}
	if m.State() != StateCompleted {
		t.Errorf("State() = %v, want COMPLETED", m.State())
	}
}

func TestLifecycle_CancelFromLiveStates(t *testing.T) {
	for _, initial := range []State{StatePending, StateInProgress} {
		t.Run(string(initial), func(t *testing.T) {
			m, _ := NewLifecycle(initial)
			if err := m.Fire(TriggerCancel); err != nil {
				t.Fatalf("Fire(CANCEL) error = %v", err)
			}
			if m.State() != StateCancelled {
				t.Errorf("State() = %v, want CANCELLED", m.State())
			}
		})
	}
}

func TestLifecycle_TerminalStatesRejectEverything(t *testing.T) {
	for _, terminal := range []State{StateCompleted, StateCancelled} {
		for _, trigger := range []Trigger{TriggerAdvance, TriggerComplete, TriggerCancel} {
			t.Run(string(terminal)+"_"+string(trigger), func(t *testing.T) {
				m, _ := NewLifecycle(terminal)
				err := m.Fire(trigger)
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("Fire(%s) error = %v, want ErrInvalidTransition", trigger, err)
				}
				if m.State() != terminal {
					t.Errorf("terminal state mutated to %v", m.State())
				}
			})
		}
	}
}

func TestLifecycle_CanFire(t *testing.T) {
	m, _ := NewLifecycle(StatePending)
	if !m.CanFire(TriggerAdvance) || !m.CanFire(TriggerCancel) {
		t.Error("PENDING should permit ADVANCE and CANCEL")
	}

	done, _ := NewLifecycle(StateCompleted)
	if done.CanFire(TriggerAdvance) {
		t.Error("COMPLETED should permit nothing")
	}
	if len(done.PermittedTriggers()) != 0 {
		t.Error("COMPLETED should have no permitted triggers")
	}
}
