// login.go implements password authentication with the failed-login counter
// and automatic lockout. The counter increment and the lock decision happen in
// a single atomic update, so a burst of concurrent failures trips the lock
// exactly once and never loses an increment.
package services

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/insureline/insureline/internal/auth"
	"github.com/insureline/insureline/internal/db/models"
	"github.com/insureline/insureline/internal/db/repositories"
	"github.com/insureline/insureline/internal/telemetry"
)

// LockoutPolicy configures the failed-login threshold and lock duration.
type LockoutPolicy struct {
	Threshold    int
	LockDuration time.Duration
}

// LoginService authenticates users and issues session tokens.
type LoginService struct {
	users      repositories.UserStore
	mutator    MutationApplier
	policy     LockoutPolicy
	sessionTTL time.Duration
}

// NewLoginService creates a new login service
func NewLoginService(users repositories.UserStore, mutator MutationApplier, policy LockoutPolicy, sessionTTL time.Duration) *LoginService {
	if policy.Threshold <= 0 {
		policy.Threshold = 5
	}
	if policy.LockDuration <= 0 {
		policy.LockDuration = 15 * time.Minute
	}
	if sessionTTL <= 0 {
		sessionTTL = 1 * time.Hour
	}
	return &LoginService{users: users, mutator: mutator, policy: policy, sessionTTL: sessionTTL}
}

// Login authenticates by email and password and returns the user with a signed
// session token. The lock check runs before the password check: a locked
// account rejects even the correct password, so an attacker gets no oracle
// during the lock window.
func (s *LoginService) Login(ctx context.Context, meta RequestMeta, email, password string) (*models.User, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if user == nil || !user.Active {
		return nil, "", ErrInvalidCredentials
	}

	now := time.Now()
	if user.LockedAt(now) {
		return nil, "", &AccountLockedError{Until: *user.LockedUntil}
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, "", s.recordFailure(ctx, meta, user, now)
	}

	if !user.EmailVerified() {
		return nil, "", ErrEmailNotVerified
	}

	if err := s.users.RecordLoginSuccess(ctx, user.ID); err != nil {
		return nil, "", err
	}

	token, err := auth.GenerateJWT(user.ID, user.OrgID, user.Email, auth.Role(user.Role), s.sessionTTL)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// recordFailure bumps the counter and reports either the lockout or a plain
// credential failure. Tripping the lock writes an audit row.
func (s *LoginService) recordFailure(ctx context.Context, meta RequestMeta, user *models.User, now time.Time) error {
	telemetry.LoginFailuresTotal.Inc()

	attempts, lockedUntil, err := s.users.RecordLoginFailure(ctx, user.ID, s.policy.Threshold, now.Add(s.policy.LockDuration))
	if err != nil {
		return err
	}

	// The lock trips on the attempt that reaches the threshold. Later
	// failures see lockedUntil set but attempts past the threshold.
	if lockedUntil != nil && attempts == s.policy.Threshold {
		telemetry.AccountLockoutsTotal.Inc()
		until := *lockedUntil
		auditErr := s.mutator.Apply(ctx, Actor{UserID: user.ID, OrgID: user.OrgID}, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
			return &MutationRecord{
				Action:       models.ActionUserLocked,
				ResourceType: "user",
				ResourceID:   user.ID,
				Metadata:     map[string]interface{}{"locked_until": until.Format(time.RFC3339)},
			}, nil
		})
		if auditErr != nil {
			return auditErr
		}
		return &AccountLockedError{Until: until}
	}

	return ErrInvalidCredentials
}
