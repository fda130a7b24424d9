// user_repository.go implements UserRepository, providing database queries for
// account CRUD plus the atomic failed-login counter and lockout updates.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/insureline/insureline/internal/db/models"
)

const userColumns = `id, org_id, email, name, password_hash, role, email_verified_at,
		       failed_login_attempts, locked_until, active, created_at, updated_at`

// UserStore is the account surface the login and account services write
// through. UserRepository is the database implementation.
type UserStore interface {
	WithTx(tx *sqlx.Tx) UserStore
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	MarkEmailVerified(ctx context.Context, userID, email string) (bool, error)
	RecordLoginFailure(ctx context.Context, userID string, threshold int, lockUntil time.Time) (int, *time.Time, error)
	RecordLoginSuccess(ctx context.Context, userID string) error
}

// UserRepository handles database operations for users
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *UserRepository) WithTx(tx *sqlx.Tx) UserStore {
	return &UserRepository{db: tx}
}

// Create inserts a new user. The caller sets everything except the ID and
// timestamps.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, org_id, email, name, password_hash, role, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	user.ID = uuid.New().String()
	err := r.db.QueryRowContext(ctx, query,
		user.ID,
		user.OrgID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Role,
		user.Active,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByIDInOrg retrieves a user by ID, fenced to the caller's organization.
func (r *UserRepository) GetByIDInOrg(ctx context.Context, orgID, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND org_id = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id, orgID))
}

// GetByEmail retrieves a user by email. Emails are unique across the whole
// installation, so login does not need an organization hint.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

// List retrieves users of an organization, newest first.
func (r *UserRepository) List(ctx context.Context, orgID string, limit, offset int) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// Count returns the number of users in an organization.
func (r *UserRepository) Count(ctx context.Context, orgID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM users WHERE org_id = $1`
	if err := r.db.QueryRowContext(ctx, query, orgID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// Update changes the mutable profile fields of a user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET name = $2, role = $3, active = $4, updated_at = now()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, user.ID, user.Name, user.Role, user.Active)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// UpdatePasswordHash replaces the password hash and clears any lockout state,
// since a completed password reset proves control of the account.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, failed_login_attempts = 0, locked_until = NULL, updated_at = now()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// MarkEmailVerified stamps email_verified_at if the account still carries the
// email the token was issued for and is not yet verified. Returns false when
// the row no longer matches, so a token issued before an email change cannot
// verify the new address.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, userID, email string) (bool, error) {
	query := `
		UPDATE users
		SET email_verified_at = now(), updated_at = now()
		WHERE id = $1 AND email = $2 AND email_verified_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, userID, email)
	if err != nil {
		return false, fmt.Errorf("failed to mark email verified: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// RecordLoginFailure increments the failed-login counter and, when the new
// count reaches the threshold, sets locked_until, all in one statement. Two
// concurrent failures serialize on the row lock, so the counter never loses an
// increment and exactly one of them trips the lock.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, userID string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE WHEN failed_login_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
		    updated_at = now()
		WHERE id = $1
		RETURNING failed_login_attempts, locked_until
	`

	var attempts int
	var lockedUntil *time.Time
	err := r.db.QueryRowContext(ctx, query, userID, threshold, lockUntil).Scan(&attempts, &lockedUntil)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil, nil
		}
		return 0, nil, fmt.Errorf("failed to record login failure: %w", err)
	}

	return attempts, lockedUntil, nil
}

// RecordLoginSuccess resets the failed-login counter after a successful
// authentication. The WHERE clause keeps the write out of the hot path for
// accounts that were never failing.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL, updated_at = now()
		WHERE id = $1 AND (failed_login_attempts <> 0 OR locked_until IS NOT NULL)
	`

	_, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to record login success: %w", err)
	}
	return nil
}

func (r *UserRepository) scanOne(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.OrgID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&user.EmailVerifiedAt,
		&user.FailedLoginAttempts,
		&user.LockedUntil,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

func (r *UserRepository) scanRow(rows *sql.Rows) (*models.User, error) {
	user := &models.User{}
	err := rows.Scan(
		&user.ID,
		&user.OrgID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&user.EmailVerifiedAt,
		&user.FailedLoginAttempts,
		&user.LockedUntil,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}
