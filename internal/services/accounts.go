// accounts.go implements the self-service account flows: registration, email
// verification, resend, and password reset. The enumeration-sensitive
// operations (resend, forgot-password) succeed identically whether or not the
// email maps to an account, so callers cannot probe for registered addresses.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/insureline/insureline/internal/auth"
	"github.com/insureline/insureline/internal/db/models"
	"github.com/insureline/insureline/internal/db/repositories"
	"github.com/insureline/insureline/internal/telemetry"
	"github.com/insureline/insureline/internal/validation"
)

// Notifier delivers raw action tokens to the account holder. The raw token
// exists only in flight; the database keeps its hash.
type Notifier interface {
	SendVerification(ctx context.Context, email, rawToken string)
	SendPasswordReset(ctx context.Context, email, rawToken string)
}

// LogNotifier writes delivery events to the structured log. It stands in for a
// mail integration in development and test environments; the raw token is not
// logged.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) SendVerification(ctx context.Context, email, rawToken string) {
	n.Logger.InfoContext(ctx, "verification token issued", "email", email)
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, email, rawToken string) {
	n.Logger.InfoContext(ctx, "password reset token issued", "email", email)
}

// TokenTTLs configures the validity window for each action token kind.
type TokenTTLs struct {
	Verification  time.Duration
	PasswordReset time.Duration
}

// RegisterInput carries the fields for self-registration.
type RegisterInput struct {
	OrgCode  string
	Email    string
	Name     string
	Password string
}

// AccountService implements registration, verification, and password reset.
type AccountService struct {
	orgs     *repositories.OrganizationRepository
	users    repositories.UserStore
	tokens   repositories.TokenStore
	mutator  MutationApplier
	notifier Notifier
	ttls     TokenTTLs
}

// NewAccountService creates a new account service
func NewAccountService(
	orgs *repositories.OrganizationRepository,
	users repositories.UserStore,
	tokens repositories.TokenStore,
	mutator MutationApplier,
	notifier Notifier,
	ttls TokenTTLs,
) *AccountService {
	if ttls.Verification == 0 {
		ttls.Verification = 48 * time.Hour
	}
	if ttls.PasswordReset == 0 {
		ttls.PasswordReset = 1 * time.Hour
	}
	return &AccountService{
		orgs:     orgs,
		users:    users,
		tokens:   tokens,
		mutator:  mutator,
		notifier: notifier,
		ttls:     ttls,
	}
}

// Register creates an unverified agent account in the organization named by
// code and issues its verification token, both in one transaction. Higher
// roles are only granted by an admin afterwards.
func (s *AccountService) Register(ctx context.Context, meta RequestMeta, input RegisterInput) (*models.User, error) {
	if err := validation.ValidateEmail("email", input.Email); err != nil {
		return nil, &ValidationError{Field: "email", Message: err.Error()}
	}
	if err := validation.ValidateName("name", input.Name, 120); err != nil {
		return nil, &ValidationError{Field: "name", Message: err.Error()}
	}
	if err := auth.ValidatePasswordPolicy(input.Password); err != nil {
		return nil, &ValidationError{Field: "password", Message: err.Error()}
	}

	org, err := s.orgs.GetByCode(ctx, input.OrgCode)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, &NotFoundError{Resource: "organization"}
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	raw, tokenHash, err := auth.NewActionToken()
	if err != nil {
		return nil, err
	}

	user := &models.User{
		OrgID:        org.ID,
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: hash,
		Role:         string(auth.RoleAgent),
		Active:       true,
	}

	actor := Actor{OrgID: org.ID} // no authenticated user yet
	err = s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		if err := s.users.WithTx(tx).Create(ctx, user); err != nil {
			return nil, err
		}
		token := &models.ActionToken{
			UserID:    user.ID,
			Kind:      string(auth.TokenEmailVerification),
			TokenHash: tokenHash,
			Email:     user.Email,
			ExpiresAt: time.Now().Add(s.ttls.Verification),
		}
		if err := s.tokens.WithTx(tx).Issue(ctx, token); err != nil {
			return nil, err
		}
		return &MutationRecord{
			Action:       models.ActionUserRegistered,
			ResourceType: "user",
			ResourceID:   user.ID,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.SendVerification(ctx, user.Email, raw)
	return user, nil
}

// VerifyEmail redeems a verification token and stamps the account verified.
// Redemption and the user update commit together; a token issued before an
// email change no longer matches the account row and is rejected.
func (s *AccountService) VerifyEmail(ctx context.Context, meta RequestMeta, rawToken string) error {
	tokenHash := auth.HashActionToken(rawToken)
	kind := string(auth.TokenEmailVerification)

	err := s.mutator.Apply(ctx, Actor{}, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		token, outcome, err := s.tokens.WithTx(tx).Consume(ctx, tokenHash, kind)
		if err != nil {
			return nil, err
		}
		if outcome != repositories.ConsumeOK {
			return nil, outcomeError(outcome)
		}

		user, err := s.users.WithTx(tx).GetByID(ctx, token.UserID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrTokenNotFound
		}

		ok, err := s.users.WithTx(tx).MarkEmailVerified(ctx, token.UserID, token.Email)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrTokenNotFound
		}
		return &MutationRecord{
			Action:       models.ActionUserEmailVerified,
			ResourceType: "user",
			ResourceID:   user.ID,
			ActorUserID:  user.ID,
			ActorOrgID:   user.OrgID,
		}, nil
	})

	telemetry.TokenRedemptionsTotal.WithLabelValues(kind, redemptionLabel(err)).Inc()
	return err
}

// reissueToken replaces the user's outstanding tokens of the given kind with a
// fresh one. Invalidation and insert commit together through the mutator, so a
// racing re-issue cannot leave two redeemable tokens, and the replacement is
// audited like every other mutation.
func (s *AccountService) reissueToken(ctx context.Context, meta RequestMeta, user *models.User, kind string, ttl time.Duration) (string, error) {
	raw, tokenHash, err := auth.NewActionToken()
	if err != nil {
		return "", err
	}

	actor := Actor{UserID: user.ID, OrgID: user.OrgID}
	err = s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		token := &models.ActionToken{
			UserID:    user.ID,
			Kind:      kind,
			TokenHash: tokenHash,
			Email:     user.Email,
			ExpiresAt: time.Now().Add(ttl),
		}
		if err := s.tokens.WithTx(tx).Issue(ctx, token); err != nil {
			return nil, err
		}
		return &MutationRecord{
			Action:       models.ActionUserTokenIssued,
			ResourceType: "user",
			ResourceID:   user.ID,
			Metadata:     map[string]interface{}{"kind": kind},
		}, nil
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// ResendVerification issues a fresh verification token. The response is the
// same whether the email is unknown, already verified, or pending; only the
// pending case sends anything.
func (s *AccountService) ResendVerification(ctx context.Context, meta RequestMeta, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || !user.Active || user.EmailVerified() {
		return nil
	}

	raw, err := s.reissueToken(ctx, meta, user, string(auth.TokenEmailVerification), s.ttls.Verification)
	if err != nil {
		return err
	}

	s.notifier.SendVerification(ctx, user.Email, raw)
	return nil
}

// ForgotPassword issues a password reset token. Unknown emails succeed
// silently for the same enumeration reason as ResendVerification.
func (s *AccountService) ForgotPassword(ctx context.Context, meta RequestMeta, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || !user.Active {
		return nil
	}

	raw, err := s.reissueToken(ctx, meta, user, string(auth.TokenPasswordReset), s.ttls.PasswordReset)
	if err != nil {
		return err
	}

	s.notifier.SendPasswordReset(ctx, user.Email, raw)
	return nil
}

// ResetPassword redeems a reset token and replaces the password hash in the
// same transaction. Two concurrent submissions of the same token yield exactly
// one password change; the loser gets ErrTokenAlreadyUsed.
func (s *AccountService) ResetPassword(ctx context.Context, meta RequestMeta, rawToken, newPassword string) error {
	if err := auth.ValidatePasswordPolicy(newPassword); err != nil {
		return &ValidationError{Field: "password", Message: err.Error()}
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	tokenHash := auth.HashActionToken(rawToken)
	kind := string(auth.TokenPasswordReset)

	err = s.mutator.Apply(ctx, Actor{}, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		token, outcome, err := s.tokens.WithTx(tx).Consume(ctx, tokenHash, kind)
		if err != nil {
			return nil, err
		}
		if outcome != repositories.ConsumeOK {
			return nil, outcomeError(outcome)
		}

		user, err := s.users.WithTx(tx).GetByID(ctx, token.UserID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrTokenNotFound
		}
		if err := s.users.WithTx(tx).UpdatePasswordHash(ctx, token.UserID, hash); err != nil {
			return nil, err
		}
		return &MutationRecord{
			Action:       models.ActionUserPasswordReset,
			ResourceType: "user",
			ResourceID:   user.ID,
			ActorUserID:  user.ID,
			ActorOrgID:   user.OrgID,
		}, nil
	})

	telemetry.TokenRedemptionsTotal.WithLabelValues(kind, redemptionLabel(err)).Inc()
	return err
}

// redemptionLabel maps a redemption error to the metric outcome label.
func redemptionLabel(err error) string {
	switch err {
	case nil:
		return "ok"
	case ErrTokenExpired:
		return "expired"
	case ErrTokenAlreadyUsed:
		return "already_used"
	case ErrTokenNotFound:
		return "not_found"
	default:
		return "error"
	}
}

func outcomeError(o repositories.ConsumeOutcome) error {
	switch o {
	case repositories.ConsumeExpired:
		return ErrTokenExpired
	case repositories.ConsumeAlreadyUsed:
		return ErrTokenAlreadyUsed
	default:
		return ErrTokenNotFound
	}
}
