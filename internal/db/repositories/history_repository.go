// history_repository.go implements HistoryRepository for the append-only
// lifecycle history. Inserts happen only inside a transition's transaction;
// there is no update or delete path.
package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/insureline/insureline/internal/db/models"
)

// HistoryRepository handles database operations for lifecycle history
type HistoryRepository struct {
	db DBTX
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *HistoryRepository) WithTx(tx *sqlx.Tx) *HistoryRepository {
	return &HistoryRepository{db: tx}
}

// Append records one status transition.
func (r *HistoryRepository) Append(ctx context.Context, entry *models.LifecycleHistoryEntry) error {
	query := `
		INSERT INTO lifecycle_history (id, resource_type, resource_id, from_status, to_status, reason, notes, created_by_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	entry.ID = uuid.New().String()
	err := r.db.QueryRowContext(ctx, query,
		entry.ID,
		entry.ResourceType,
		entry.ResourceID,
		entry.FromStatus,
		entry.ToStatus,
		entry.Reason,
		entry.Notes,
		entry.CreatedByID,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	return nil
}

// ListForResource retrieves the transition history of one claim or policy in
// chronological order.
func (r *HistoryRepository) ListForResource(ctx context.Context, resourceType, resourceID string) ([]*models.LifecycleHistoryEntry, error) {
	query := `
		SELECT id, resource_type, resource_id, from_status, to_status, reason, notes, created_by_id, created_at
		FROM lifecycle_history
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.LifecycleHistoryEntry, 0)
	for rows.Next() {
		entry := &models.LifecycleHistoryEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.ResourceType,
			&entry.ResourceID,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.Reason,
			&entry.Notes,
			&entry.CreatedByID,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
