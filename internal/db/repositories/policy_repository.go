// policy_repository.go implements PolicyRepository over sqlx, mirroring the
// claim repository: org-fenced reads, scope-narrowed listings and a
// compare-and-set status update.
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

// PolicyListFilter narrows policy listings beyond the scope filter.
type PolicyListFilter struct {
	Status    string
	ClientID  string
	InsurerID string
	Limit     int
	Offset    int
}

// PolicyRepository handles database operations for policies
type PolicyRepository struct {
	db sqlx.ExtContext
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *PolicyRepository) WithTx(tx *sqlx.Tx) *PolicyRepository {
	return &PolicyRepository{db: tx}
}

// Create inserts a new policy in its initial status.
func (r *PolicyRepository) Create(ctx context.Context, policy *models.Policy) error {
	query := `
		INSERT INTO policies (id, org_id, client_id, insurer_id, policy_number, status,
		                      start_date, end_date, premium_cents, notes, created_by_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	policy.ID = uuid.New().String()
	err := r.db.QueryRowxContext(ctx, query,
		policy.ID,
		policy.OrgID,
		policy.ClientID,
		policy.InsurerID,
		policy.PolicyNumber,
		policy.Status,
		policy.StartDate,
		policy.EndDate,
		policy.PremiumCents,
		policy.Notes,
		policy.CreatedByID,
	).Scan(&policy.CreatedAt, &policy.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}

	return nil
}

// GetByID retrieves a policy by ID, fenced to the organization.
func (r *PolicyRepository) GetByID(ctx context.Context, orgID, id string) (*models.Policy, error) {
	query := `
		SELECT id, org_id, client_id, insurer_id, policy_number, status,
		       start_date::text AS start_date, end_date::text AS end_date,
		       premium_cents, notes, created_by_id, created_at, updated_at
		FROM policies
		WHERE id = $1 AND org_id = $2
	`

	policy := &models.Policy{}
	err := sqlx.GetContext(ctx, r.db, policy, query, id, orgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	return policy, nil
}

// List retrieves policies visible through the scope filter, newest first. For
// affiliate callers the resolver narrows to their own client, so the same
// client predicate serves both agent and affiliate scopes.
func (r *PolicyRepository) List(ctx context.Context, orgID string, scope ScopeFilter, filter PolicyListFilter) ([]*models.Policy, error) {
	if scope.Empty() {
		return []*models.Policy{}, nil
	}

	query := `
		SELECT id, org_id, client_id, insurer_id, policy_number, status,
		       start_date::text AS start_date, end_date::text AS end_date,
		       premium_cents, notes, created_by_id, created_at, updated_at
		FROM policies
		WHERE org_id = $1
	`
	args := []interface{}{orgID}
	argIdx := 2

	if !scope.All {
		query += fmt.Sprintf(" AND client_id = ANY($%d)", argIdx)
		args = append(args, pq.Array(scope.ClientIDs))
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.ClientID != "" {
		query += fmt.Sprintf(" AND client_id = $%d", argIdx)
		args = append(args, filter.ClientID)
		argIdx++
	}
	if filter.InsurerID != "" {
		query += fmt.Sprintf(" AND insurer_id = $%d", argIdx)
		args = append(args, filter.InsurerID)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, filter.Limit, filter.Offset)

	policies := make([]*models.Policy, 0)
	if err := sqlx.SelectContext(ctx, r.db, &policies, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}

	return policies, nil
}

// UpdateFields changes the mutable, non-status fields of a policy. The policy
// number and start date stay immutable after DRAFT; the service layer enforces
// that before calling here.
func (r *PolicyRepository) UpdateFields(ctx context.Context, policy *models.Policy) error {
	query := `
		UPDATE policies
		SET end_date = $3, premium_cents = $4, notes = $5, updated_at = now()
		WHERE id = $1 AND org_id = $2
	`

	_, err := r.db.ExecContext(ctx, query,
		policy.ID,
		policy.OrgID,
		policy.EndDate,
		policy.PremiumCents,
		policy.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}
	return nil
}

// UpdateDraftFields changes fields that are only writable while the policy is
// still DRAFT. The status predicate makes the restriction atomic with the
// write instead of relying on the earlier read.
func (r *PolicyRepository) UpdateDraftFields(ctx context.Context, policy *models.Policy) (bool, error) {
	query := `
		UPDATE policies
		SET policy_number = $3, start_date = $4, end_date = $5, premium_cents = $6,
		    notes = $7, updated_at = now()
		WHERE id = $1 AND org_id = $2 AND status = 'DRAFT'
	`

	result, err := r.db.ExecContext(ctx, query,
		policy.ID,
		policy.OrgID,
		policy.PolicyNumber,
		policy.StartDate,
		policy.EndDate,
		policy.PremiumCents,
		policy.Notes,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update policy: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateStatus moves a policy from one status to another, compare-and-set on
// the current status.
func (r *PolicyRepository) UpdateStatus(ctx context.Context, orgID, id, fromStatus, toStatus string) (bool, error) {
	query := `
		UPDATE policies
		SET status = $4, updated_at = now()
		WHERE id = $1 AND org_id = $2 AND status = $3
	`

	result, err := r.db.ExecContext(ctx, query, id, orgID, fromStatus, toStatus)
	if err != nil {
		return false, fmt.Errorf("failed to update policy status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListActiveEndedBefore returns ACTIVE policies whose end date has passed,
// across all organizations. Used by the expiry sweep; each returned policy is
// still transitioned with the compare-and-set update, so a concurrent manual
// transition wins harmlessly.
func (r *PolicyRepository) ListActiveEndedBefore(ctx context.Context, asOf string, limit int) ([]*models.Policy, error) {
	query := `
		SELECT id, org_id, client_id, insurer_id, policy_number, status,
		       start_date::text AS start_date, end_date::text AS end_date,
		       premium_cents, notes, created_by_id, created_at, updated_at
		FROM policies
		WHERE status = 'ACTIVE' AND end_date IS NOT NULL AND end_date < $1
		ORDER BY end_date
		LIMIT $2
	`

	policies := make([]*models.Policy, 0)
	if err := sqlx.SelectContext(ctx, r.db, &policies, query, asOf, limit); err != nil {
		return nil, fmt.Errorf("failed to list ended policies: %w", err)
	}

	return policies, nil
}
