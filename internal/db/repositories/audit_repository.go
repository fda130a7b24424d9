// audit_repository.go implements AuditRepository, providing database queries
// for writing and retrieving audit log entries with support for filtered
// queries. Writes that belong to a mutation run inside the mutation's
// transaction via WithTx.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/insureline/insureline/internal/db/models"
)

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db DBTX
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *AuditRepository) WithTx(tx *sqlx.Tx) *AuditRepository {
	return &AuditRepository{db: tx}
}

// AuditFilters contains filters for querying audit logs
type AuditFilters struct {
	UserID       *string
	Action       *string
	ResourceType *string
	ResourceID   *string
	StartDate    *time.Time
	EndDate      *time.Time
}

// CreateAuditLog creates a new audit log entry
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	log.ID = uuid.New().String()
	log.CreatedAt = time.Now()

	var metadataJSON []byte
	var err error
	if log.Metadata != nil {
		metadataJSON, err = json.Marshal(log.Metadata)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO audit_logs (id, org_id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		log.ID,
		log.OrgID,
		log.UserID,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		metadataJSON,
		log.IPAddress,
		log.UserAgent,
		log.CreatedAt,
	)

	return err
}

// ListAuditLogs retrieves audit logs for an organization with optional filters
// and pagination. org_id is mandatory; audit reads never cross tenants.
func (r *AuditRepository) ListAuditLogs(ctx context.Context, orgID string, filters AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	countQuery := `SELECT COUNT(*) FROM audit_logs WHERE org_id = $1`
	query := `
		SELECT id, org_id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE org_id = $1
	`

	args := []interface{}{orgID}
	paramIndex := 2

	if filters.UserID != nil {
		countQuery += fmt.Sprintf(` AND user_id = $%d`, paramIndex)
		query += fmt.Sprintf(` AND user_id = $%d`, paramIndex)
		args = append(args, *filters.UserID)
		paramIndex++
	}

	if filters.Action != nil {
		countQuery += fmt.Sprintf(` AND action = $%d`, paramIndex)
		query += fmt.Sprintf(` AND action = $%d`, paramIndex)
		args = append(args, *filters.Action)
		paramIndex++
	}

	if filters.ResourceType != nil {
		countQuery += fmt.Sprintf(` AND resource_type = $%d`, paramIndex)
		query += fmt.Sprintf(` AND resource_type = $%d`, paramIndex)
		args = append(args, *filters.ResourceType)
		paramIndex++
	}

	if filters.ResourceID != nil {
		countQuery += fmt.Sprintf(` AND resource_id = $%d`, paramIndex)
		query += fmt.Sprintf(` AND resource_id = $%d`, paramIndex)
		args = append(args, *filters.ResourceID)
		paramIndex++
	}

	if filters.StartDate != nil {
		countQuery += fmt.Sprintf(` AND created_at >= $%d`, paramIndex)
		query += fmt.Sprintf(` AND created_at >= $%d`, paramIndex)
		args = append(args, *filters.StartDate)
		paramIndex++
	}

	if filters.EndDate != nil {
		countQuery += fmt.Sprintf(` AND created_at <= $%d`, paramIndex)
		query += fmt.Sprintf(` AND created_at <= $%d`, paramIndex)
		args = append(args, *filters.EndDate)
		paramIndex++
	}

	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		log := &models.AuditLog{}
		var metadataJSON []byte

		err := rows.Scan(
			&log.ID,
			&log.OrgID,
			&log.UserID,
			&log.Action,
			&log.ResourceType,
			&log.ResourceID,
			&metadataJSON,
			&log.IPAddress,
			&log.UserAgent,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, 0, err
		}

		if metadataJSON != nil {
			err = json.Unmarshal(metadataJSON, &log.Metadata)
			if err != nil {
				return nil, 0, err
			}
		}

		logs = append(logs, log)
	}

	return logs, total, rows.Err()
}

// GetAuditLog retrieves a single audit log entry by ID, fenced to the
// organization.
func (r *AuditRepository) GetAuditLog(ctx context.Context, orgID, logID string) (*models.AuditLog, error) {
	query := `
		SELECT id, org_id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE id = $1 AND org_id = $2
	`

	log := &models.AuditLog{}
	var metadataJSON []byte

	err := r.db.QueryRowContext(ctx, query, logID, orgID).Scan(
		&log.ID,
		&log.OrgID,
		&log.UserID,
		&log.Action,
		&log.ResourceType,
		&log.ResourceID,
		&metadataJSON,
		&log.IPAddress,
		&log.UserAgent,
		&log.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	if metadataJSON != nil {
		err = json.Unmarshal(metadataJSON, &log.Metadata)
		if err != nil {
			return nil, err
		}
	}

	return log, nil
}
