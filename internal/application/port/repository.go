package port

import (
	"context"
	"time"

	"github.com/veridoc/signflow/internal/domain/entity"
)

// FlowFilter narrows List queries. Zero values mean "no constraint".
// SignerID matches flows whose embedded signer list contains the identity,
// regardless of whose turn it currently is. DocumentTypeID matches flows
// whose document is of the given type.
type FlowFilter struct {
	DocumentID     string
	DocumentTypeID string
	Status         string
	SignerID       string
	CreatedBy      string
	From           *time.Time
	To             *time.Time
	Page           int
	Limit          int
}

// FlowPage is one page of flows plus aggregate counts over the whole
// filtered set (not just the page).
type FlowPage struct {
	Flows        []*entity.SignatureFlow
	Total        int64
	StatusCounts map[string]int64
}

// FlowRepository defines persistence operations for SignatureFlow.
//
// UpdateAdvance and UpdateCancel are conditional writes keyed on the state
// the caller validated against; they return flow.ErrConflict when zero rows
// match, which is how two concurrent writers against the same step are
// serialized to exactly one winner.
type FlowRepository interface {
	Create(ctx context.Context, f *entity.SignatureFlow) error
	GetByID(ctx context.Context, id string) (*entity.SignatureFlow, error)
	List(ctx context.Context, filter FlowFilter) (*FlowPage, error)

	// UpdateAdvance persists a step transition iff the stored row still has
	// the expected current_step and a non-terminal status.
	UpdateAdvance(ctx context.Context, f *entity.SignatureFlow, expectedStep int) error

	// UpdateCancel persists cancellation iff the stored row is still
	// non-terminal and still at the expected current_step. The step check
	// makes cancel and advance mutually exclusive: a cancel validated
	// against a step an advance has since moved must not commit its stale
	// projection.
	UpdateCancel(ctx context.Context, f *entity.SignatureFlow, expectedStep int) error

	// ListPendingForUser returns non-terminal flows whose current signer is
	// the given identity, derived from current_step at query time.
	ListPendingForUser(ctx context.Context, userID string) ([]*entity.SignatureFlow, error)
}

// DocumentRepository defines the slice of the document store this service
// consumes. GetByID returns flow.ErrDocumentNotFound for a missing id.
type DocumentRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Document, error)
	UpdateSignatureStatus(ctx context.Context, id string, status string) error
}

// UserRepository validates signer identities and resolves display names
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)

	// GetManyByIDs returns the subset of users that exist; callers compare
	// the returned count against the requested count to detect unknown ids.
	GetManyByIDs(ctx context.Context, ids []string) ([]*entity.User, error)
}

// AuditRepository persists audit events
type AuditRepository interface {
	Create(ctx context.Context, event *entity.AuditEvent) error
	GetByEntityID(ctx context.Context, entityID string) ([]*entity.AuditEvent, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
