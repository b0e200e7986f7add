package flow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	// TriggerAdvance records a signature with at least one signer still waiting.
	TriggerAdvance Trigger = "ADVANCE"

	// TriggerComplete records the final signature.
	TriggerComplete Trigger = "COMPLETE"

	// TriggerCancel abandons the flow.
	TriggerCancel Trigger = "CANCEL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
