// claim_repository.go implements ClaimRepository over sqlx. Reads are fenced
// to the organization and narrowed by the caller's ScopeFilter; the status
// column only changes through UpdateStatus, which carries the expected current
// status so concurrent transitions cannot both apply.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/insureline/insureline/internal/db/models"
)

// ClaimListFilter narrows claim listings beyond the scope filter.
type ClaimListFilter struct {
	Status   string
	PolicyID string
	Limit    int
	Offset   int
}

// ClaimRepository handles database operations for claims
type ClaimRepository struct {
	db sqlx.ExtContext
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *sqlx.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *ClaimRepository) WithTx(tx *sqlx.Tx) *ClaimRepository {
	return &ClaimRepository{db: tx}
}

// Create inserts a new claim in its initial status.
func (r *ClaimRepository) Create(ctx context.Context, claim *models.Claim) error {
	query := `
		INSERT INTO claims (id, org_id, policy_id, affiliate_id, claim_number, status,
		                    amount_cents, description, incident_date, created_by_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	claim.ID = uuid.New().String()
	err := r.db.QueryRowxContext(ctx, query,
		claim.ID,
		claim.OrgID,
		claim.PolicyID,
		claim.AffiliateID,
		claim.ClaimNumber,
		claim.Status,
		claim.AmountCents,
		claim.Description,
		claim.IncidentDate,
		claim.CreatedByID,
	).Scan(&claim.CreatedAt, &claim.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create claim: %w", err)
	}

	return nil
}

// GetByID retrieves a claim by ID, fenced to the organization.
func (r *ClaimRepository) GetByID(ctx context.Context, orgID, id string) (*models.Claim, error) {
	query := `
		SELECT id, org_id, policy_id, affiliate_id, claim_number, status, amount_cents,
		       description, incident_date::text AS incident_date, created_by_id, created_at, updated_at
		FROM claims
		WHERE id = $1 AND org_id = $2
	`

	claim := &models.Claim{}
	err := sqlx.GetContext(ctx, r.db, claim, query, id, orgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	return claim, nil
}

// List retrieves claims visible through the scope filter, newest first.
func (r *ClaimRepository) List(ctx context.Context, orgID string, scope ScopeFilter, filter ClaimListFilter) ([]*models.Claim, error) {
	if scope.Empty() {
		return []*models.Claim{}, nil
	}

	query := `
		SELECT c.id, c.org_id, c.policy_id, c.affiliate_id, c.claim_number, c.status,
		       c.amount_cents, c.description, c.incident_date::text AS incident_date,
		       c.created_by_id, c.created_at, c.updated_at
		FROM claims c
		WHERE c.org_id = $1
	`
	args := []interface{}{orgID}
	argIdx := 2

	if !scope.All {
		switch {
		case scope.AffiliateID != "":
			query += fmt.Sprintf(" AND c.affiliate_id = $%d", argIdx)
			args = append(args, scope.AffiliateID)
			argIdx++
		default:
			query += fmt.Sprintf(" AND c.policy_id IN (SELECT id FROM policies WHERE client_id = ANY($%d))", argIdx)
			args = append(args, pq.Array(scope.ClientIDs))
			argIdx++
		}
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND c.status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.PolicyID != "" {
		query += fmt.Sprintf(" AND c.policy_id = $%d", argIdx)
		args = append(args, filter.PolicyID)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY c.created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, filter.Limit, filter.Offset)

	claims := make([]*models.Claim, 0)
	if err := sqlx.SelectContext(ctx, r.db, &claims, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}

	return claims, nil
}

// UpdateFields changes the mutable, non-status fields of a claim.
func (r *ClaimRepository) UpdateFields(ctx context.Context, claim *models.Claim) error {
	query := `
		UPDATE claims
		SET amount_cents = $3, description = $4, updated_at = now()
		WHERE id = $1 AND org_id = $2
	`

	_, err := r.db.ExecContext(ctx, query, claim.ID, claim.OrgID, claim.AmountCents, claim.Description)
	if err != nil {
		return fmt.Errorf("failed to update claim: %w", err)
	}
	return nil
}

// UpdateStatus moves a claim from one status to another. The WHERE clause
// carries the expected current status; a zero row count means another
// transition got there first and the caller must re-read and re-validate.
func (r *ClaimRepository) UpdateStatus(ctx context.Context, orgID, id, fromStatus, toStatus string) (bool, error) {
	query := `
		UPDATE claims
		SET status = $4, updated_at = now()
		WHERE id = $1 AND org_id = $2 AND status = $3
	`

	result, err := r.db.ExecContext(ctx, query, id, orgID, fromStatus, toStatus)
	if err != nil {
		return false, fmt.Errorf("failed to update claim status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}
