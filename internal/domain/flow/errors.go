package flow

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrFlowNotFound is returned when the referenced flow does not exist
	ErrFlowNotFound = errors.New("signature flow not found")

	// ErrDocumentNotFound is returned when the referenced document does not exist
	ErrDocumentNotFound = errors.New("document not found")

	// ErrUnknownSigners is returned at creation when one or more signer
	// identities do not resolve to existing users
	ErrUnknownSigners = errors.New("one or more signer identities do not exist")

	// ErrNoSigners is returned at creation when the signer list is empty
	ErrNoSigners = errors.New("signer list must not be empty")

	// ErrWrongTurn is returned when an identity other than the current
	// signer attempts to advance the flow
	ErrWrongTurn = errors.New("not this signer's turn")

	// ErrAlreadyCompleted is returned when mutating a completed flow
	ErrAlreadyCompleted = errors.New("flow already completed")

	// ErrAlreadyCancelled is returned when mutating a cancelled flow
	ErrAlreadyCancelled = errors.New("flow already cancelled")

	// ErrForbidden is returned when cancel is attempted by anyone but the creator
	ErrForbidden = errors.New("only the flow creator may cancel")

	// ErrSigningFailed is returned when the signing delegate rejects the artifact
	ErrSigningFailed = errors.New("signing delegate rejected the artifact")

	// ErrSigningUnavailable is returned when the signing delegate cannot be
	// reached; callers may retry the same request unchanged
	ErrSigningUnavailable = errors.New("signing service unavailable")

	// ErrConflict is returned when a concurrent writer committed the same
	// step first; the engine re-reads and maps it to the precise error
	ErrConflict = errors.New("flow was modified concurrently")
)
