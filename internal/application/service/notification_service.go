package service

import (
	"context"
	"fmt"

	"github.com/veridoc/signflow/internal/application/port"
	"github.com/veridoc/signflow/internal/domain/entity"
)

// NotificationService turns flow transitions into notification requests.
// Dispatch is fire-and-forget: a failed delivery is logged and never fails
// the flow operation that triggered it.
type NotificationService interface {
	// NotifyTurn tells a signer the flow is now waiting on them.
	NotifyTurn(ctx context.Context, f *entity.SignatureFlow, signer *entity.SignerEntry)

	// NotifyCompleted tells the creator and every signer the flow finished.
	NotifyCompleted(ctx context.Context, f *entity.SignatureFlow)

	// NotifyCancelled tells every signer the flow was abandoned.
	NotifyCancelled(ctx context.Context, f *entity.SignatureFlow)
}

type notificationServiceImpl struct {
	notifier port.Notifier
	baseURL  string
	logger   Logger
}

// NewNotificationService creates a new NotificationService. baseURL is the
// records UI origin used to build deep-links; empty disables links.
func NewNotificationService(notifier port.Notifier, baseURL string, logger Logger) NotificationService {
	return &notificationServiceImpl{
		notifier: notifier,
		baseURL:  baseURL,
		logger:   logger,
	}
}

func (s *notificationServiceImpl) NotifyTurn(ctx context.Context, f *entity.SignatureFlow, signer *entity.SignerEntry) {
	s.dispatch(ctx, port.Notification{
		RecipientID: signer.UserID,
		Message:     fmt.Sprintf("Document %q is waiting for your signature (flow %q).", f.DocumentID, f.Name),
		Link:        s.flowLink(f),
	})
}

func (s *notificationServiceImpl) NotifyCompleted(ctx context.Context, f *entity.SignatureFlow) {
	message := fmt.Sprintf("Signature flow %q for document %q is complete.", f.Name, f.DocumentID)
	recipients := append([]string{f.CreatedBy}, signerIDs(f)...)
	s.dispatchAll(ctx, f, recipients, message)
}

func (s *notificationServiceImpl) NotifyCancelled(ctx context.Context, f *entity.SignatureFlow) {
	message := fmt.Sprintf("Signature flow %q for document %q was cancelled.", f.Name, f.DocumentID)
	s.dispatchAll(ctx, f, signerIDs(f), message)
}

// dispatchAll sends one notification per distinct recipient. The creator
// may also be a signer, and one identity may hold several signer slots;
// neither gets the same message twice.
func (s *notificationServiceImpl) dispatchAll(ctx context.Context, f *entity.SignatureFlow, recipients []string, message string) {
	seen := make(map[string]struct{}, len(recipients))
	for _, recipient := range recipients {
		if _, ok := seen[recipient]; ok {
			continue
		}
		seen[recipient] = struct{}{}
		s.dispatch(ctx, port.Notification{
			RecipientID: recipient,
			Message:     message,
			Link:        s.flowLink(f),
		})
	}
}

func signerIDs(f *entity.SignatureFlow) []string {
	ids := make([]string, len(f.Signers))
	for i, signer := range f.Signers {
		ids[i] = signer.UserID
	}
	return ids
}

func (s *notificationServiceImpl) dispatch(ctx context.Context, n port.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error("Failed to dispatch notification",
			"error", err, "recipient_id", n.RecipientID)
	}
}

func (s *notificationServiceImpl) flowLink(f *entity.SignatureFlow) string {
	if s.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/flows/%s", s.baseURL, f.ID)
}
