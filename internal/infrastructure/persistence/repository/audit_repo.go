package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/veridoc/signflow/internal/application/port"
	"github.com/veridoc/signflow/internal/domain/entity"
	"github.com/veridoc/signflow/internal/infrastructure/persistence/sqlite"
)

// AuditRepository implements port.AuditRepository as an append-only table
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit event
func (r *AuditRepository) Create(ctx context.Context, event *entity.AuditEvent) error {
	query := `
		INSERT INTO audit_events (id, actor, action, entity_type, entity_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		event.ID, event.Actor, event.Action, event.EntityType,
		event.EntityID, event.Payload, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// GetByEntityID returns all events for an entity, oldest first
func (r *AuditRepository) GetByEntityID(ctx context.Context, entityID string) ([]*entity.AuditEvent, error) {
	query := `
		SELECT id, actor, action, entity_type, entity_id, payload, created_at
		FROM audit_events WHERE entity_id = ? ORDER BY created_at ASC
	`
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*entity.AuditEvent
	for rows.Next() {
		var e entity.AuditEvent
		err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.EntityType, &e.EntityID, &e.Payload, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *AuditRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.AuditRepository = (*AuditRepository)(nil)
