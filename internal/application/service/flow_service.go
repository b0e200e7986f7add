package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/veridoc/signflow/internal/application/port"
	"github.com/veridoc/signflow/internal/domain/entity"
	"github.com/veridoc/signflow/internal/domain/flow"
	"github.com/veridoc/signflow/pkg/metrics"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SignerInput is one requested signer with the creator-supplied rank.
// Ranks only define the sequence; they need not be contiguous.
type SignerInput struct {
	UserID string
	Order  int
}

// CreateFlowInput carries everything needed to start a flow
type CreateFlowInput struct {
	DocumentID string
	Name       string
	Signers    []SignerInput
	CreatedBy  string
}

// FlowService is the signature flow engine: it owns every lifecycle
// invariant and is the only writer of flow records and of the document's
// signature status projection.
type FlowService interface {
	// Create starts a flow in PENDING at step 0 and notifies the first signer.
	Create(ctx context.Context, input CreateFlowInput) (*entity.SignatureFlow, error)

	// Advance records the current signer's turn, delegating the actual
	// signing of the artifact to the external signing backend first.
	Advance(ctx context.Context, flowID, signerID string, artifact []byte, extension string) (*entity.SignatureFlow, error)

	// RecordSigned records the current signer's turn for a signature that an
	// external component already produced and registered out-of-band. Same
	// turn and state validation as Advance, no delegate call.
	RecordSigned(ctx context.Context, flowID, signerID string) (*entity.SignatureFlow, error)

	// Cancel terminates a non-terminal flow. Creator only.
	Cancel(ctx context.Context, flowID, actorID string) (*entity.SignatureFlow, error)

	GetByID(ctx context.Context, id string) (*entity.SignatureFlow, error)
	List(ctx context.Context, filter port.FlowFilter) (*port.FlowPage, error)

	// GetPendingForUser returns non-terminal flows currently awaiting action
	// from this identity, derived from current_step at query time.
	GetPendingForUser(ctx context.Context, userID string) ([]*entity.SignatureFlow, error)
}

type flowServiceImpl struct {
	flowRepo     port.FlowRepository
	documentRepo port.DocumentRepository
	userRepo     port.UserRepository
	txManager    port.TransactionManager
	delegate     port.SigningDelegate
	notifier     NotificationService
	audit        AuditService
	logger       Logger
}

// NewFlowService creates a new FlowService
func NewFlowService(
	flowRepo port.FlowRepository,
	documentRepo port.DocumentRepository,
	userRepo port.UserRepository,
	txManager port.TransactionManager,
	delegate port.SigningDelegate,
	notifier NotificationService,
	audit AuditService,
	logger Logger,
) FlowService {
	return &flowServiceImpl{
		flowRepo:     flowRepo,
		documentRepo: documentRepo,
		userRepo:     userRepo,
		txManager:    txManager,
		delegate:     delegate,
		notifier:     notifier,
		audit:        audit,
		logger:       logger,
	}
}

// Create starts a new signature flow
func (s *flowServiceImpl) Create(ctx context.Context, input CreateFlowInput) (*entity.SignatureFlow, error) {
	if len(input.Signers) == 0 {
		return nil, flow.ErrNoSigners
	}

	doc, err := s.documentRepo.GetByID(ctx, input.DocumentID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(input.Signers))
	for i, sg := range input.Signers {
		ids[i] = sg.UserID
	}
	users, err := s.userRepo.GetManyByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve signers: %w", err)
	}
	if len(users) != countDistinct(ids) {
		return nil, flow.ErrUnknownSigners
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	// Normalize: sort by caller-supplied rank, ties broken by input order.
	// After this the rank is informational; position is the slice index.
	ordered := make([]SignerInput, len(input.Signers))
	copy(ordered, input.Signers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Order < ordered[j].Order
	})

	now := time.Now().UTC()
	f := &entity.SignatureFlow{
		ID:          uuid.New().String(),
		DocumentID:  doc.ID,
		Name:        input.Name,
		CurrentStep: 0,
		Status:      entity.FlowStatusPending,
		CreatedBy:   input.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, sg := range ordered {
		f.Signers = append(f.Signers, entity.SignerEntry{
			UserID:   sg.UserID,
			UserName: names[sg.UserID],
			Order:    sg.Order,
			Status:   entity.SignerStatusPending,
		})
	}

	if err := s.flowRepo.Create(ctx, f); err != nil {
		metrics.FlowOperations.WithLabelValues("create", "error").Inc()
		return nil, fmt.Errorf("create flow: %w", err)
	}
	metrics.FlowOperations.WithLabelValues("create", "ok").Inc()

	// Side effects past this point never roll back the created flow.
	s.syncDocumentStatus(ctx, f)
	s.audit.Record(ctx, input.CreatedBy, entity.AuditActionFlowCreated, "signature_flow", f.ID, f)
	s.notifier.NotifyTurn(ctx, f, &f.Signers[0])

	s.resolveCreatorName(ctx, f)

	s.logger.Info("Signature flow created",
		"flow_id", f.ID, "document_id", f.DocumentID, "signers", len(f.Signers))
	return f, nil
}

// Advance delegates the signing to the external backend, then commits the
// turn transition
func (s *flowServiceImpl) Advance(ctx context.Context, flowID, signerID string, artifact []byte, extension string) (*entity.SignatureFlow, error) {
	return s.commitAdvance(ctx, flowID, signerID, &port.SignRequest{
		SignerID:  signerID,
		Artifact:  artifact,
		Extension: extension,
	})
}

// RecordSigned commits the turn transition for an externally completed signing
func (s *flowServiceImpl) RecordSigned(ctx context.Context, flowID, signerID string) (*entity.SignatureFlow, error) {
	return s.commitAdvance(ctx, flowID, signerID, nil)
}

// commitAdvance is the single turn transition behind both advance entry
// points; signReq being nil skips the delegate call. The read-validate-
// write sequence is serialized per flow by the conditional update keyed on
// the step the validation observed.
func (s *flowServiceImpl) commitAdvance(ctx context.Context, flowID, signerID string, signReq *port.SignRequest) (*entity.SignatureFlow, error) {
	f, err := s.flowRepo.GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if err := validateTurn(f, signerID); err != nil {
		metrics.FlowOperations.WithLabelValues("advance", "rejected").Inc()
		return nil, err
	}
	expectedStep := f.CurrentStep

	if signReq != nil {
		signReq.DocumentID = f.DocumentID
		if err := s.delegate.Sign(ctx, *signReq); err != nil {
			metrics.FlowOperations.WithLabelValues("advance", "sign_failed").Inc()
			if errors.Is(err, flow.ErrSigningUnavailable) || errors.Is(err, flow.ErrSigningFailed) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", flow.ErrSigningFailed, err)
		}
	}

	machine, err := flow.NewLifecycle(flow.State(f.Status))
	if err != nil {
		return nil, err
	}
	trigger := flow.TriggerAdvance
	if expectedStep+1 == len(f.Signers) {
		trigger = flow.TriggerComplete
	}
	if err := machine.Fire(trigger); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	f.Signers[expectedStep].Status = entity.SignerStatusSigned
	f.Signers[expectedStep].SignedAt = &now
	f.CurrentStep = expectedStep + 1
	f.Status = machine.State().String()
	f.UpdatedAt = now

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.flowRepo.UpdateAdvance(txCtx, f, expectedStep); err != nil {
			return err
		}
		status := flow.DocumentStatusFor(flow.State(f.Status), f.CurrentStep, len(f.Signers))
		return s.documentRepo.UpdateSignatureStatus(txCtx, f.DocumentID, status)
	})
	if err != nil {
		if errors.Is(err, flow.ErrConflict) {
			metrics.FlowOperations.WithLabelValues("advance", "conflict").Inc()
			return nil, s.resolveConflict(ctx, flowID, signerID)
		}
		metrics.FlowOperations.WithLabelValues("advance", "error").Inc()
		return nil, fmt.Errorf("commit advance: %w", err)
	}
	metrics.FlowOperations.WithLabelValues("advance", "ok").Inc()

	action := entity.AuditActionFlowSigned
	if f.Status == entity.FlowStatusCompleted {
		action = entity.AuditActionFlowCompleted
	}
	s.audit.Record(ctx, signerID, action, "signature_flow", f.ID, map[string]interface{}{
		"step":   expectedStep,
		"status": f.Status,
	})

	if f.Status == entity.FlowStatusCompleted {
		s.notifier.NotifyCompleted(ctx, f)
	} else {
		s.notifier.NotifyTurn(ctx, f, &f.Signers[f.CurrentStep])
	}

	s.resolveCreatorName(ctx, f)

	s.logger.Info("Signature flow advanced",
		"flow_id", f.ID, "signer_id", signerID, "step", f.CurrentStep, "status", f.Status)
	return f, nil
}

// cancelAttempts bounds re-validation after a cancel loses the step race
// to a concurrent advance.
const cancelAttempts = 3

// Cancel terminates a live flow without touching its signer entries. The
// commit is keyed on the step the validation observed; losing that race to
// an advance is not terminal for the caller, because cancellation stays
// legal from every live state, so Cancel re-validates against the fresh
// step and commits the projection that matches it.
func (s *flowServiceImpl) Cancel(ctx context.Context, flowID, actorID string) (*entity.SignatureFlow, error) {
	var err error
	for attempt := 0; attempt < cancelAttempts; attempt++ {
		var f *entity.SignatureFlow
		f, err = s.commitCancel(ctx, flowID, actorID)
		if errors.Is(err, flow.ErrConflict) {
			continue
		}
		return f, err
	}
	return nil, fmt.Errorf("commit cancel: %w", err)
}

func (s *flowServiceImpl) commitCancel(ctx context.Context, flowID, actorID string) (*entity.SignatureFlow, error) {
	f, err := s.flowRepo.GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if f.CreatedBy != actorID {
		metrics.FlowOperations.WithLabelValues("cancel", "rejected").Inc()
		return nil, flow.ErrForbidden
	}
	if err := terminalError(f); err != nil {
		metrics.FlowOperations.WithLabelValues("cancel", "rejected").Inc()
		return nil, err
	}
	expectedStep := f.CurrentStep

	machine, err := flow.NewLifecycle(flow.State(f.Status))
	if err != nil {
		return nil, err
	}
	if err := machine.Fire(flow.TriggerCancel); err != nil {
		return nil, err
	}

	f.Status = machine.State().String()
	f.UpdatedAt = time.Now().UTC()

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.flowRepo.UpdateCancel(txCtx, f, expectedStep); err != nil {
			return err
		}
		status := flow.DocumentStatusFor(flow.StateCancelled, f.CurrentStep, len(f.Signers))
		return s.documentRepo.UpdateSignatureStatus(txCtx, f.DocumentID, status)
	})
	if err != nil {
		if errors.Is(err, flow.ErrConflict) {
			metrics.FlowOperations.WithLabelValues("cancel", "conflict").Inc()
			current, rerr := s.flowRepo.GetByID(ctx, flowID)
			if rerr != nil {
				return nil, rerr
			}
			if terr := terminalError(current); terr != nil {
				return nil, terr
			}
			// an advance won the step; the flow is still live and the
			// caller's cancel remains valid against the new state
			return nil, flow.ErrConflict
		}
		metrics.FlowOperations.WithLabelValues("cancel", "error").Inc()
		return nil, fmt.Errorf("commit cancel: %w", err)
	}
	metrics.FlowOperations.WithLabelValues("cancel", "ok").Inc()

	s.audit.Record(ctx, actorID, entity.AuditActionFlowCancelled, "signature_flow", f.ID, map[string]interface{}{
		"step": f.CurrentStep,
	})
	s.notifier.NotifyCancelled(ctx, f)

	s.resolveCreatorName(ctx, f)

	s.logger.Info("Signature flow cancelled",
		"flow_id", f.ID, "actor_id", actorID, "signed_steps", f.CurrentStep)
	return f, nil
}

// GetByID retrieves a flow with its creator resolved to a display name
func (s *flowServiceImpl) GetByID(ctx context.Context, id string) (*entity.SignatureFlow, error) {
	f, err := s.flowRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.resolveCreatorName(ctx, f)
	return f, nil
}

// List retrieves a filtered, paginated page of flows with per-status counts
func (s *flowServiceImpl) List(ctx context.Context, filter port.FlowFilter) (*port.FlowPage, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	return s.flowRepo.List(ctx, filter)
}

// GetPendingForUser returns flows currently awaiting this identity's signature
func (s *flowServiceImpl) GetPendingForUser(ctx context.Context, userID string) ([]*entity.SignatureFlow, error) {
	flows, err := s.flowRepo.ListPendingForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	// Re-evaluate the turn from current_step rather than trusting the query
	// alone; a flow that moved on between query and use is dropped here.
	pending := flows[:0]
	for _, f := range flows {
		if cur := f.CurrentSigner(); cur != nil && cur.UserID == userID {
			pending = append(pending, f)
		}
	}
	return pending, nil
}

// resolveConflict re-reads a flow after a lost conditional update and maps
// the loss to the error the caller would have received had it validated
// against the winner's state.
func (s *flowServiceImpl) resolveConflict(ctx context.Context, flowID, signerID string) error {
	current, err := s.flowRepo.GetByID(ctx, flowID)
	if err != nil {
		return err
	}
	if err := validateTurn(current, signerID); err != nil {
		return err
	}
	// The winner moved the step but it is somehow this signer's turn again;
	// surface the race for the caller to retry against fresh state.
	return flow.ErrWrongTurn
}

// syncDocumentStatus recomputes and writes the document projection,
// best-effort. Flow state is the source of truth, so a failed write is
// repairable by any later transition.
func (s *flowServiceImpl) syncDocumentStatus(ctx context.Context, f *entity.SignatureFlow) {
	status := flow.DocumentStatusFor(flow.State(f.Status), f.CurrentStep, len(f.Signers))
	if err := s.documentRepo.UpdateSignatureStatus(ctx, f.DocumentID, status); err != nil {
		s.logger.Error("Failed to sync document signature status",
			"error", err, "document_id", f.DocumentID, "status", status)
	}
}

func (s *flowServiceImpl) resolveCreatorName(ctx context.Context, f *entity.SignatureFlow) {
	creator, err := s.userRepo.GetByID(ctx, f.CreatedBy)
	if err != nil {
		s.logger.Error("Failed to resolve flow creator", "error", err, "user_id", f.CreatedBy)
		return
	}
	f.CreatorName = creator.Name
}

// validateTurn checks that the flow is live and that the acting identity
// is the signer at current_step. Detected before any mutation.
func validateTurn(f *entity.SignatureFlow, signerID string) error {
	if err := terminalError(f); err != nil {
		return err
	}
	if f.CurrentStep >= len(f.Signers) {
		// defensive: step past the list implies COMPLETED
		return flow.ErrAlreadyCompleted
	}
	if f.Signers[f.CurrentStep].UserID != signerID {
		return flow.ErrWrongTurn
	}
	return nil
}

func terminalError(f *entity.SignatureFlow) error {
	switch f.Status {
	case entity.FlowStatusCompleted:
		return flow.ErrAlreadyCompleted
	case entity.FlowStatusCancelled:
		return flow.ErrAlreadyCancelled
	}
	return nil
}

func countDistinct(ids []string) int {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
