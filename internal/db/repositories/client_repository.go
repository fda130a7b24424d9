// client_repository.go implements ClientRepository, providing database queries
// for client CRUD and agent-client membership management. Membership reads back
// the scope resolver, so they hit the database on every request.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/insureline/insureline/internal/db/models"
)

// ClientRepository handles database operations for clients and memberships
type ClientRepository struct {
	db DBTX
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *sqlx.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *ClientRepository) WithTx(tx *sqlx.Tx) *ClientRepository {
	return &ClientRepository{db: tx}
}

// Create inserts a new client.
func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO clients (id, org_id, name, tax_id, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	client.ID = uuid.New().String()
	err := r.db.QueryRowContext(ctx, query,
		client.ID,
		client.OrgID,
		client.Name,
		client.TaxID,
		client.Active,
	).Scan(&client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	return nil
}

// GetByID retrieves a client by ID, fenced to the organization.
func (r *ClientRepository) GetByID(ctx context.Context, orgID, id string) (*models.Client, error) {
	query := `
		SELECT id, org_id, name, tax_id, active, created_at, updated_at
		FROM clients
		WHERE id = $1 AND org_id = $2
	`

	client := &models.Client{}
	err := r.db.QueryRowContext(ctx, query, id, orgID).Scan(
		&client.ID,
		&client.OrgID,
		&client.Name,
		&client.TaxID,
		&client.Active,
		&client.CreatedAt,
		&client.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return client, nil
}

// List retrieves clients of an organization ordered by name.
func (r *ClientRepository) List(ctx context.Context, orgID string, limit, offset int) ([]*models.Client, error) {
	query := `
		SELECT id, org_id, name, tax_id, active, created_at, updated_at
		FROM clients
		WHERE org_id = $1
		ORDER BY name
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	clients := make([]*models.Client, 0)
	for rows.Next() {
		client := &models.Client{}
		err := rows.Scan(
			&client.ID,
			&client.OrgID,
			&client.Name,
			&client.TaxID,
			&client.Active,
			&client.CreatedAt,
			&client.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}

	return clients, rows.Err()
}

// Update changes the mutable fields of a client.
func (r *ClientRepository) Update(ctx context.Context, client *models.Client) error {
	query := `
		UPDATE clients
		SET name = $3, tax_id = $4, active = $5, updated_at = now()
		WHERE id = $1 AND org_id = $2
	`

	_, err := r.db.ExecContext(ctx, query,
		client.ID,
		client.OrgID,
		client.Name,
		client.TaxID,
		client.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	return nil
}

// Deactivate marks a client inactive. Rows are never deleted; policies and
// claims keep their references.
func (r *ClientRepository) Deactivate(ctx context.Context, orgID, id string) (bool, error) {
	query := `
		UPDATE clients
		SET active = false, updated_at = now()
		WHERE id = $1 AND org_id = $2 AND active = true
	`

	result, err := r.db.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate client: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// === Membership Operations ===

// AddMembership grants an agent user access to a client. Re-adding an existing
// membership reactivates it.
func (r *ClientRepository) AddMembership(ctx context.Context, userID, clientID string) error {
	query := `
		INSERT INTO client_memberships (user_id, client_id, active)
		VALUES ($1, $2, true)
		ON CONFLICT (user_id, client_id) DO UPDATE SET active = true
	`

	_, err := r.db.ExecContext(ctx, query, userID, clientID)
	if err != nil {
		return fmt.Errorf("failed to add membership: %w", err)
	}
	return nil
}

// RemoveMembership revokes an agent's access to a client. The row is kept,
// deactivated, so the grant history survives.
func (r *ClientRepository) RemoveMembership(ctx context.Context, userID, clientID string) error {
	query := `
		UPDATE client_memberships
		SET active = false
		WHERE user_id = $1 AND client_id = $2
	`

	_, err := r.db.ExecContext(ctx, query, userID, clientID)
	if err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}
	return nil
}

// ListClientIDsForUser returns the IDs of active clients the user has an
// active membership for. The scope resolver calls this on every agent request.
func (r *ClientRepository) ListClientIDsForUser(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT cm.client_id
		FROM client_memberships cm
		INNER JOIN clients c ON c.id = cm.client_id
		WHERE cm.user_id = $1 AND cm.active = true AND c.active = true
		ORDER BY cm.client_id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ListMemberships retrieves the membership rows for a client.
func (r *ClientRepository) ListMemberships(ctx context.Context, clientID string) ([]*models.ClientMembership, error) {
	query := `
		SELECT user_id, client_id, active, created_at
		FROM client_memberships
		WHERE client_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	memberships := make([]*models.ClientMembership, 0)
	for rows.Next() {
		m := &models.ClientMembership{}
		if err := rows.Scan(&m.UserID, &m.ClientID, &m.Active, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	return memberships, rows.Err()
}
