// token_repository.go implements TokenRepository, the ledger of single-use
// action tokens. Redemption is a conditional UPDATE on the token hash; the row
// count decides the winner, so two concurrent redemptions of the same token
// can never both succeed.
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

// ConsumeOutcome classifies why a redemption attempt did or did not win.
type ConsumeOutcome int

const (
	ConsumeOK ConsumeOutcome = iota
	ConsumeNotFound
	ConsumeExpired
	ConsumeAlreadyUsed
)

// TokenStore is the ledger surface the account flows write through.
// TokenRepository is the database implementation.
type TokenStore interface {
	WithTx(tx *sqlx.Tx) TokenStore
	Issue(ctx context.Context, token *models.ActionToken) error
	Consume(ctx context.Context, tokenHash, kind string) (*models.ActionToken, ConsumeOutcome, error)
}

// TokenRepository handles database operations for action tokens
type TokenRepository struct {
	db DBTX
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *TokenRepository) WithTx(tx *sqlx.Tx) TokenStore {
	return &TokenRepository{db: tx}
}

// Issue stores a new token and invalidates every unconsumed token of the same
// kind for the user, so only the most recently issued token can ever redeem.
func (r *TokenRepository) Issue(ctx context.Context, token *models.ActionToken) error {
	invalidate := `
		UPDATE action_tokens
		SET consumed_at = now()
		WHERE user_id = $1 AND kind = $2 AND consumed_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, invalidate, token.UserID, token.Kind); err != nil {
		return fmt.Errorf("failed to invalidate prior tokens: %w", err)
	}

	query := `
		INSERT INTO action_tokens (id, user_id, kind, token_hash, email, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	token.ID = uuid.New().String()
	err := r.db.QueryRowContext(ctx, query,
		token.ID,
		token.UserID,
		token.Kind,
		token.TokenHash,
		token.Email,
		token.ExpiresAt,
	).Scan(&token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	return nil
}

// Consume attempts to redeem the token with the given hash. On success the
// matched token is returned with ConsumeOK. When the conditional UPDATE
// matches no row, a follow-up read disambiguates between a token that never
// existed, one already spent and one past its expiry; the returned token is
// non-nil for the latter two.
func (r *TokenRepository) Consume(ctx context.Context, tokenHash, kind string) (*models.ActionToken, ConsumeOutcome, error) {
	query := `
		UPDATE action_tokens
		SET consumed_at = now()
		WHERE token_hash = $1 AND kind = $2 AND consumed_at IS NULL AND expires_at > now()
		RETURNING id, user_id, kind, token_hash, email, expires_at, consumed_at, created_at
	`

	token := &models.ActionToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash, kind).Scan(
		&token.ID,
		&token.UserID,
		&token.Kind,
		&token.TokenHash,
		&token.Email,
		&token.ExpiresAt,
		&token.ConsumedAt,
		&token.CreatedAt,
	)
	if err == nil {
		return token, ConsumeOK, nil
	}
	if err != sql.ErrNoRows {
		return nil, ConsumeNotFound, fmt.Errorf("failed to consume token: %w", err)
	}

	// The UPDATE matched nothing. Look the hash up to tell the caller why.
	existing, err := r.GetByHash(ctx, tokenHash, kind)
	if err != nil {
		return nil, ConsumeNotFound, err
	}
	if existing == nil {
		return nil, ConsumeNotFound, nil
	}
	if existing.ConsumedAt != nil {
		return existing, ConsumeAlreadyUsed, nil
	}
	return existing, ConsumeExpired, nil
}

// GetByHash retrieves a token by its hash and kind.
func (r *TokenRepository) GetByHash(ctx context.Context, tokenHash, kind string) (*models.ActionToken, error) {
	query := `
		SELECT id, user_id, kind, token_hash, email, expires_at, consumed_at, created_at
		FROM action_tokens
		WHERE token_hash = $1 AND kind = $2
	`

	token := &models.ActionToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash, kind).Scan(
		&token.ID,
		&token.UserID,
		&token.Kind,
		&token.TokenHash,
		&token.Email,
		&token.ExpiresAt,
		&token.ConsumedAt,
		&token.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return token, nil
}

// DeleteExpired removes tokens whose expiry is older than the cutoff. Run
// periodically; redemption correctness never depends on it.
func (r *TokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM action_tokens WHERE expires_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	return result.RowsAffected()
}
