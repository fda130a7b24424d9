// affiliate_repository.go implements AffiliateRepository for covered persons.
// The national_id column only ever holds ciphertext; encryption happens in the
// service layer before the value reaches this package.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/insureline/insureline/internal/db/models"
)

const affiliateColumns = `id, org_id, client_id, user_id, first_name, last_name, email,
		       national_id_encrypted, birth_date, active, created_at, updated_at`

// AffiliateRepository handles database operations for affiliates
type AffiliateRepository struct {
	db DBTX
}

// NewAffiliateRepository creates a new affiliate repository
func NewAffiliateRepository(db *sqlx.DB) *AffiliateRepository {
	return &AffiliateRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *AffiliateRepository) WithTx(tx *sqlx.Tx) *AffiliateRepository {
	return &AffiliateRepository{db: tx}
}

// Create inserts a new affiliate.
func (r *AffiliateRepository) Create(ctx context.Context, affiliate *models.Affiliate) error {
	query := `
		INSERT INTO affiliates (id, org_id, client_id, user_id, first_name, last_name,
		                        email, national_id_encrypted, birth_date, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	affiliate.ID = uuid.New().String()
	err := r.db.QueryRowContext(ctx, query,
		affiliate.ID,
		affiliate.OrgID,
		affiliate.ClientID,
		affiliate.UserID,
		affiliate.FirstName,
		affiliate.LastName,
		affiliate.Email,
		affiliate.NationalIDEncrypted,
		affiliate.BirthDate,
		affiliate.Active,
	).Scan(&affiliate.CreatedAt, &affiliate.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create affiliate: %w", err)
	}

	return nil
}

// GetByID retrieves an affiliate by ID, fenced to the organization.
func (r *AffiliateRepository) GetByID(ctx context.Context, orgID, id string) (*models.Affiliate, error) {
	query := `SELECT ` + affiliateColumns + ` FROM affiliates WHERE id = $1 AND org_id = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id, orgID))
}

// GetByUserID retrieves the affiliate linked to a user account. The scope
// resolver calls this on every request from an affiliate-role user.
func (r *AffiliateRepository) GetByUserID(ctx context.Context, userID string) (*models.Affiliate, error) {
	query := `SELECT ` + affiliateColumns + ` FROM affiliates WHERE user_id = $1 AND active = true`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID))
}

// ListByClient retrieves affiliates of one client, fenced to the organization.
func (r *AffiliateRepository) ListByClient(ctx context.Context, orgID, clientID string, limit, offset int) ([]*models.Affiliate, error) {
	query := `
		SELECT ` + affiliateColumns + `
		FROM affiliates
		WHERE org_id = $1 AND client_id = $2
		ORDER BY last_name, first_name
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.QueryContext(ctx, query, orgID, clientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list affiliates: %w", err)
	}
	defer rows.Close()

	affiliates := make([]*models.Affiliate, 0)
	for rows.Next() {
		affiliate, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		affiliates = append(affiliates, affiliate)
	}

	return affiliates, rows.Err()
}

// Update changes the mutable fields of an affiliate, including the encrypted
// national ID when the caller supplies a new one.
func (r *AffiliateRepository) Update(ctx context.Context, affiliate *models.Affiliate) error {
	query := `
		UPDATE affiliates
		SET first_name = $3, last_name = $4, email = $5, national_id_encrypted = $6,
		    birth_date = $7, user_id = $8, active = $9, updated_at = now()
		WHERE id = $1 AND org_id = $2
	`

	_, err := r.db.ExecContext(ctx, query,
		affiliate.ID,
		affiliate.OrgID,
		affiliate.FirstName,
		affiliate.LastName,
		affiliate.Email,
		affiliate.NationalIDEncrypted,
		affiliate.BirthDate,
		affiliate.UserID,
		affiliate.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to update affiliate: %w", err)
	}
	return nil
}

// Deactivate marks an affiliate inactive.
func (r *AffiliateRepository) Deactivate(ctx context.Context, orgID, id string) (bool, error) {
	query := `
		UPDATE affiliates
		SET active = false, updated_at = now()
		WHERE id = $1 AND org_id = $2 AND active = true
	`

	result, err := r.db.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate affiliate: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *AffiliateRepository) scanOne(row *sql.Row) (*models.Affiliate, error) {
	affiliate := &models.Affiliate{}
	err := row.Scan(
		&affiliate.ID,
		&affiliate.OrgID,
		&affiliate.ClientID,
		&affiliate.UserID,
		&affiliate.FirstName,
		&affiliate.LastName,
		&affiliate.Email,
		&affiliate.NationalIDEncrypted,
		&affiliate.BirthDate,
		&affiliate.Active,
		&affiliate.CreatedAt,
		&affiliate.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get affiliate: %w", err)
	}

	return affiliate, nil
}

func (r *AffiliateRepository) scanRow(rows *sql.Rows) (*models.Affiliate, error) {
	affiliate := &models.Affiliate{}
	err := rows.Scan(
		&affiliate.ID,
		&affiliate.OrgID,
		&affiliate.ClientID,
		&affiliate.UserID,
		&affiliate.FirstName,
		&affiliate.LastName,
		&affiliate.Email,
		&affiliate.NationalIDEncrypted,
		&affiliate.BirthDate,
		&affiliate.Active,
		&affiliate.CreatedAt,
		&affiliate.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan affiliate: %w", err)
	}
	return affiliate, nil
}
