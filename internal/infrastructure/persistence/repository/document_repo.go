package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veridoc/signflow/internal/application/port"
	"github.com/veridoc/signflow/internal/domain/entity"
	"github.com/veridoc/signflow/internal/domain/flow"
	"github.com/veridoc/signflow/internal/infrastructure/persistence/sqlite"
)

// DocumentRepository implements port.DocumentRepository. The document
// aggregate is owned elsewhere in the platform; this repository only reads
// it and writes the signature status projection.
type DocumentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB, logger *zap.Logger) port.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a document by its ID
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	query := `
		SELECT id, title, type_id, signature_status, created_at, updated_at
		FROM documents WHERE id = ?
	`
	var doc entity.Document
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.Title, &doc.TypeID, &doc.SignatureStatus, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, flow.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// UpdateSignatureStatus writes the projection computed from flow state
func (r *DocumentRepository) UpdateSignatureStatus(ctx context.Context, id string, status string) error {
	query := `UPDATE documents SET signature_status = ?, updated_at = ? WHERE id = ?`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update signature status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return flow.ErrDocumentNotFound
	}
	return nil
}

// getExecutor returns appropriate executor based on context
func (r *DocumentRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.DocumentRepository = (*DocumentRepository)(nil)
