// insurer_repository.go implements InsurerRepository for carrier CRUD.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/insureline/insureline/internal/db/models"
)

// InsurerRepository handles database operations for insurers
type InsurerRepository struct {
	db DBTX
}

// NewInsurerRepository creates a new insurer repository
func NewInsurerRepository(db *sqlx.DB) *InsurerRepository {
	return &InsurerRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *InsurerRepository) WithTx(tx *sqlx.Tx) *InsurerRepository {
	return &InsurerRepository{db: tx}
}

// Create inserts a new insurer.
func (r *InsurerRepository) Create(ctx context.Context, insurer *models.Insurer) error {
	query := `
		INSERT INTO insurers (id, org_id, name, code, contact_email, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	insurer.ID = uuid.New().String()
	err := r.db.QueryRowContext(ctx, query,
		insurer.ID,
		insurer.OrgID,
		insurer.Name,
		insurer.Code,
		insurer.ContactEmail,
		insurer.Active,
	).Scan(&insurer.CreatedAt, &insurer.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create insurer: %w", err)
	}

	return nil
}

// GetByID retrieves an insurer by ID, fenced to the organization.
func (r *InsurerRepository) GetByID(ctx context.Context, orgID, id string) (*models.Insurer, error) {
	query := `
		SELECT id, org_id, name, code, contact_email, active, created_at, updated_at
		FROM insurers
		WHERE id = $1 AND org_id = $2
	`

	insurer := &models.Insurer{}
	err := r.db.QueryRowContext(ctx, query, id, orgID).Scan(
		&insurer.ID,
		&insurer.OrgID,
		&insurer.Name,
		&insurer.Code,
		&insurer.ContactEmail,
		&insurer.Active,
		&insurer.CreatedAt,
		&insurer.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get insurer: %w", err)
	}

	return insurer, nil
}

// List retrieves insurers of an organization ordered by name.
func (r *InsurerRepository) List(ctx context.Context, orgID string, limit, offset int) ([]*models.Insurer, error) {
	query := `
		SELECT id, org_id, name, code, contact_email, active, created_at, updated_at
		FROM insurers
		WHERE org_id = $1
		ORDER BY name
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list insurers: %w", err)
	}
	defer rows.Close()

	insurers := make([]*models.Insurer, 0)
	for rows.Next() {
		insurer := &models.Insurer{}
		err := rows.Scan(
			&insurer.ID,
			&insurer.OrgID,
			&insurer.Name,
			&insurer.Code,
			&insurer.ContactEmail,
			&insurer.Active,
			&insurer.CreatedAt,
			&insurer.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan insurer: %w", err)
		}
		insurers = append(insurers, insurer)
	}

	return insurers, rows.Err()
}

// Update changes the mutable fields of an insurer.
func (r *InsurerRepository) Update(ctx context.Context, insurer *models.Insurer) error {
	query := `
		UPDATE insurers
		SET name = $3, contact_email = $4, active = $5, updated_at = now()
		WHERE id = $1 AND org_id = $2
	`

	_, err := r.db.ExecContext(ctx, query,
		insurer.ID,
		insurer.OrgID,
		insurer.Name,
		insurer.ContactEmail,
		insurer.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to update insurer: %w", err)
	}
	return nil
}

// Deactivate marks an insurer inactive.
func (r *InsurerRepository) Deactivate(ctx context.Context, orgID, id string) (bool, error) {
	query := `
		UPDATE insurers
		SET active = false, updated_at = now()
		WHERE id = $1 AND org_id = $2 AND active = true
	`

	result, err := r.db.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate insurer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}
