// organization_repository.go implements OrganizationRepository for tenant
// roots. Organizations are created by operators, not through the public API,
// so the surface is small.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/insureline/insureline/internal/db/models"
)

// OrganizationRepository handles database operations for organizations
type OrganizationRepository struct {
	db DBTX
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// Create inserts a new organization.
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (id, name, code)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`

	org.ID = uuid.New().String()
	err := r.db.QueryRowContext(ctx, query, org.ID, org.Name, org.Code).
		Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	return nil
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	query := `
		SELECT id, name, code, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByCode retrieves an organization by its short code. Registration uses the
// code to place new accounts in the right tenant.
func (r *OrganizationRepository) GetByCode(ctx context.Context, code string) (*models.Organization, error) {
	query := `
		SELECT id, name, code, created_at, updated_at
		FROM organizations
		WHERE code = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, code))
}

// Update changes the display name of an organization.
func (r *OrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	query := `
		UPDATE organizations
		SET name = $2, updated_at = now()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, org.ID, org.Name)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	return nil
}

func (r *OrganizationRepository) scanOne(row *sql.Row) (*models.Organization, error) {
	org := &models.Organization{}
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.Code,
		&org.CreatedAt,
		&org.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}
