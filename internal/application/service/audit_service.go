package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/veridoc/signflow/internal/application/port"
	"github.com/veridoc/signflow/internal/domain/entity"
)

// AuditService records engine actions as append-only events. Recording is
// fire-and-forget; a failed write is logged and swallowed because the
// primary state transition is authoritative on its own.
type AuditService interface {
	Record(ctx context.Context, actor, action, entityType, entityID string, payload interface{})
	GetTrail(ctx context.Context, entityID string) ([]*entity.AuditEvent, error)
}

type auditServiceImpl struct {
	auditRepo port.AuditRepository
	logger    Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(auditRepo port.AuditRepository, logger Logger) AuditService {
	return &auditServiceImpl{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

func (s *auditServiceImpl) Record(ctx context.Context, actor, action, entityType, entityID string, payload interface{}) {
	var encoded string
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			s.logger.Error("Failed to encode audit payload", "error", err, "action", action)
		} else {
			encoded = string(data)
		}
	}

	event := &entity.AuditEvent{
		ID:         uuid.New().String(),
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    encoded,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.auditRepo.Create(ctx, event); err != nil {
		s.logger.Error("Failed to record audit event",
			"error", err, "action", action, "entity_id", entityID)
	}
}

func (s *auditServiceImpl) GetTrail(ctx context.Context, entityID string) ([]*entity.AuditEvent, error) {
	return s.auditRepo.GetByEntityID(ctx, entityID)
}
