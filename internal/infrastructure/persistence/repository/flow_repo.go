package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/veridoc/signflow/internal/application/port"
	"github.com/veridoc/signflow/internal/domain/entity"
	"github.com/veridoc/signflow/internal/domain/flow"
	"github.com/veridoc/signflow/internal/infrastructure/persistence/sqlite"
)

// FlowRepository implements port.FlowRepository on SQLite. Signers are an
// embedded JSON array persisted atomically with the row, so a conditional
// UPDATE on (id, current_step, status) is all the concurrency control a
// flow needs: the loser of a race matches zero rows.
type FlowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFlowRepository creates a new flow repository
func NewFlowRepository(db *sql.DB, logger *zap.Logger) port.FlowRepository {
	return &FlowRepository{
		db:     db,
		logger: logger,
	}
}

const flowColumns = `id, document_id, name, signers, current_step, status, created_by, created_at, updated_at`

// Create inserts a new flow
func (r *FlowRepository) Create(ctx context.Context, f *entity.SignatureFlow) error {
	signers, err := json.Marshal(f.Signers)
	if err != nil {
		return fmt.Errorf("failed to encode signers: %w", err)
	}

	query := `
		INSERT INTO signature_flows (` + flowColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.getExecutor(ctx).ExecContext(ctx, query,
		f.ID, f.DocumentID, f.Name, string(signers), f.CurrentStep,
		f.Status, f.CreatedBy, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert flow: %w", err)
	}
	return nil
}

// GetByID retrieves a flow by its ID
func (r *FlowRepository) GetByID(ctx context.Context, id string) (*entity.SignatureFlow, error) {
	query := `SELECT ` + flowColumns + ` FROM signature_flows WHERE id = ?`
	row := r.getExecutor(ctx).QueryRowContext(ctx, query, id)

	f, err := scanFlow(row)
	if err == sql.ErrNoRows {
		return nil, flow.ErrFlowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}
	return f, nil
}

// UpdateAdvance persists a step transition, conditional on the row still
// holding the step the caller validated against
func (r *FlowRepository) UpdateAdvance(ctx context.Context, f *entity.SignatureFlow, expectedStep int) error {
	signers, err := json.Marshal(f.Signers)
	if err != nil {
		return fmt.Errorf("failed to encode signers: %w", err)
	}

	query := `
		UPDATE signature_flows
		SET signers = ?, current_step = ?, status = ?, updated_at = ?
		WHERE id = ? AND current_step = ? AND status IN (?, ?)
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		string(signers), f.CurrentStep, f.Status, f.UpdatedAt,
		f.ID, expectedStep, entity.FlowStatusPending, entity.FlowStatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("failed to advance flow: %w", err)
	}
	return r.requireOneRow(result, f.ID)
}

// UpdateCancel persists cancellation, conditional on the row still being
// live at the step the caller validated against. An advance that commits
// in between moves current_step, so the cancel matches zero rows instead
// of freezing a projection computed from the stale step.
func (r *FlowRepository) UpdateCancel(ctx context.Context, f *entity.SignatureFlow, expectedStep int) error {
	query := `
		UPDATE signature_flows
		SET status = ?, updated_at = ?
		WHERE id = ? AND current_step = ? AND status IN (?, ?)
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		f.Status, f.UpdatedAt,
		f.ID, expectedStep, entity.FlowStatusPending, entity.FlowStatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel flow: %w", err)
	}
	return r.requireOneRow(result, f.ID)
}

// ListPendingForUser returns live flows whose signer at current_step is the
// given identity. The turn is derived from current_step inside the query,
// never from a cached assignee column.
func (r *FlowRepository) ListPendingForUser(ctx context.Context, userID string) ([]*entity.SignatureFlow, error) {
	query := `
		SELECT ` + flowColumns + `
		FROM signature_flows
		WHERE status IN (?, ?)
		  AND json_extract(signers, '$[' || current_step || '].user_id') = ?
		ORDER BY created_at ASC
	`
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query,
		entity.FlowStatusPending, entity.FlowStatusInProgress, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending flows: %w", err)
	}
	defer rows.Close()

	return collectFlows(rows)
}

// List returns a filtered page of flows together with aggregate per-status
// counts over the filtered set (status filter excluded from the counts so
// callers can render status tabs).
func (r *FlowRepository) List(ctx context.Context, filter port.FlowFilter) (*port.FlowPage, error) {
	where, args := buildFlowFilter(filter, true)

	countWhere, countArgs := buildFlowFilter(filter, false)
	countQuery := `SELECT status, COUNT(*) FROM signature_flows` + countWhere + ` GROUP BY status`
	countRows, err := r.getExecutor(ctx).QueryContext(ctx, countQuery, countArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to count flows: %w", err)
	}
	defer countRows.Close()

	page := &port.FlowPage{StatusCounts: make(map[string]int64)}
	for countRows.Next() {
		var status string
		var count int64
		if err := countRows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		page.StatusCounts[status] = count
	}
	if err := countRows.Err(); err != nil {
		return nil, err
	}

	if filter.Status != "" {
		page.Total = page.StatusCounts[filter.Status]
	} else {
		for _, c := range page.StatusCounts {
			page.Total += c
		}
	}

	offset := (filter.Page - 1) * filter.Limit
	query := `SELECT ` + flowColumns + ` FROM signature_flows` + where +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, offset)

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	defer rows.Close()

	page.Flows, err = collectFlows(rows)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// buildFlowFilter assembles the WHERE clause; withStatus toggles the
// status constraint so the same filter can drive both the page query and
// the per-status counts
func buildFlowFilter(filter port.FlowFilter, withStatus bool) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filter.DocumentID != "" {
		conds = append(conds, "document_id = ?")
		args = append(args, filter.DocumentID)
	}
	if filter.DocumentTypeID != "" {
		conds = append(conds, "document_id IN (SELECT id FROM documents WHERE type_id = ?)")
		args = append(args, filter.DocumentTypeID)
	}
	if withStatus && filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.SignerID != "" {
		// containment query into the embedded signer list (JSON1)
		conds = append(conds, `EXISTS (
			SELECT 1 FROM json_each(signature_flows.signers)
			WHERE json_extract(json_each.value, '$.user_id') = ?
		)`)
		args = append(args, filter.SignerID)
	}
	if filter.CreatedBy != "" {
		conds = append(conds, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}
	if filter.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, *filter.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// requireOneRow maps a zero-row conditional update to the concurrency
// conflict the engine resolves against fresh state
func (r *FlowRepository) requireOneRow(result sql.Result, flowID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		r.logger.Warn("Conditional flow update matched no rows", zap.String("flow_id", flowID))
		return flow.ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFlow(row rowScanner) (*entity.SignatureFlow, error) {
	var f entity.SignatureFlow
	var signers string
	err := row.Scan(
		&f.ID, &f.DocumentID, &f.Name, &signers, &f.CurrentStep,
		&f.Status, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(signers), &f.Signers); err != nil {
		return nil, fmt.Errorf("failed to decode signers: %w", err)
	}
	return &f, nil
}

func collectFlows(rows *sql.Rows) ([]*entity.SignatureFlow, error) {
	var flows []*entity.SignatureFlow
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *FlowRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.FlowRepository = (*FlowRepository)(nil)
