package port

import "context"

// SignRequest carries everything the external signing backend needs to
// stamp a document on behalf of a signer. Artifact is opaque to this
// service; Extension tells the backend how to interpret it.
type SignRequest struct {
	DocumentID string
	SignerID   string
	Artifact   []byte
	Extension  string
}

// SigningDelegate wraps the external signing operation. Implementations
// must distinguish connectivity failures (flow.ErrSigningUnavailable) from
// semantic rejection (flow.ErrSigningFailed) so callers can decide whether
// a retry of the same request makes sense. Any non-nil error means the
// flow must not be mutated.
type SigningDelegate interface {
	Sign(ctx context.Context, req SignRequest) error
}

// Notification is a fire-and-forget message to one recipient. Link is an
// optional deep-link into the records UI.
type Notification struct {
	RecipientID string
	Message     string
	Link        string
}

// Notifier delivers notifications. Delivery is best-effort: the engine
// logs and ignores errors, retry policy belongs to the implementation.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
