// Package services implements the business logic that coordinates across
// repositories: scope resolution, lifecycle transitions through the mutation
// pipeline, account flows with single-use tokens, and login lockout. Handlers
// stay thin; everything that must hold under concurrency lives here or in the
// SQL the repositories run.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/insureline/insureline/internal/auth"
	"github.com/insureline/insureline/internal/db/models"
	"github.com/insureline/insureline/internal/db/repositories"
	"github.com/insureline/insureline/internal/lifecycle"
	"github.com/insureline/insureline/internal/telemetry"
	"github.com/insureline/insureline/internal/validation"
)

// CreateClaimInput carries the fields for filing a new claim.
type CreateClaimInput struct {
	PolicyID     string
	AffiliateID  string
	ClaimNumber  string
	AmountCents  int64
	Description  string
	IncidentDate string
}

// UpdateClaimInput carries the mutable non-status fields.
type UpdateClaimInput struct {
	AmountCents *int64
	Description *string
}

// TransitionInput carries a lifecycle transition request.
type TransitionInput struct {
	To     string
	Reason string
	Notes  string
}

// ClaimService implements claim operations.
type ClaimService struct {
	claims     *repositories.ClaimRepository
	policies   *repositories.PolicyRepository
	affiliates *repositories.AffiliateRepository
	history    *repositories.HistoryRepository
	resolver   *AccessResolver
	mutator    *Mutator
}

// NewClaimService creates a new claim service
func NewClaimService(
	claims *repositories.ClaimRepository,
	policies *repositories.PolicyRepository,
	affiliates *repositories.AffiliateRepository,
	history *repositories.HistoryRepository,
	resolver *AccessResolver,
	mutator *Mutator,
) *ClaimService {
	return &ClaimService{
		claims:     claims,
		policies:   policies,
		affiliates: affiliates,
		history:    history,
		resolver:   resolver,
		mutator:    mutator,
	}
}

// Create files a new claim in SUBMITTED against an active policy. The
// affiliate must be covered by the policy's client, and the caller's scope
// must reach that client (affiliates may only file for themselves).
func (s *ClaimService) Create(ctx context.Context, actor Actor, meta RequestMeta, input CreateClaimInput) (*models.Claim, error) {
	if err := validation.ValidateReferenceNumber("claim_number", input.ClaimNumber); err != nil {
		return nil, &ValidationError{Field: "claim_number", Message: err.Error()}
	}
	if err := validation.ValidateAmountCents("amount_cents", input.AmountCents); err != nil {
		return nil, &ValidationError{Field: "amount_cents", Message: err.Error()}
	}
	if err := validation.ValidateDateNotFuture("incident_date", input.IncidentDate, time.Now()); err != nil {
		return nil, &ValidationError{Field: "incident_date", Message: err.Error()}
	}

	policy, err := s.policies.GetByID(ctx, actor.OrgID, input.PolicyID)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, &NotFoundError{Resource: "policy"}
	}
	if policy.Status != string(lifecycle.PolicyActive) {
		return nil, &ValidationError{Field: "policy_id", Message: "claims can only be filed against an active policy"}
	}

	affiliate, err := s.affiliates.GetByID(ctx, actor.OrgID, input.AffiliateID)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		return nil, &NotFoundError{Resource: "affiliate"}
	}
	if affiliate.ClientID != policy.ClientID {
		return nil, &ValidationError{Field: "affiliate_id", Message: "affiliate is not covered by the policy's client"}
	}

	scope, err := s.resolver.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if scope.AffiliateID != "" && scope.AffiliateID != affiliate.ID {
		return nil, &ForbiddenError{Reason: "affiliates may only file their own claims"}
	}
	if !scopeAllowsClient(scope, policy.ClientID) {
		return nil, &ForbiddenError{Reason: "client outside the caller's scope"}
	}

	claim := &models.Claim{
		OrgID:        actor.OrgID,
		PolicyID:     policy.ID,
		AffiliateID:  affiliate.ID,
		ClaimNumber:  input.ClaimNumber,
		Status:       string(lifecycle.ClaimSubmitted),
		AmountCents:  input.AmountCents,
		Description:  input.Description,
		IncidentDate: input.IncidentDate,
		CreatedByID:  actor.UserID,
	}

	err = s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		if err := s.claims.WithTx(tx).Create(ctx, claim); err != nil {
			return nil, err
		}
		return &MutationRecord{
			Action:       models.ActionClaimCreated,
			ResourceType: "claim",
			ResourceID:   claim.ID,
			Metadata: map[string]interface{}{
				"claim_number": claim.ClaimNumber,
				"policy_id":    claim.PolicyID,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// Get retrieves a claim the caller is allowed to see.
func (s *ClaimService) Get(ctx context.Context, actor Actor, id string) (*models.Claim, error) {
	claim, _, err := s.loadAuthorized(ctx, actor, id)
	return claim, err
}

// List retrieves claims narrowed to the caller's scope.
func (s *ClaimService) List(ctx context.Context, actor Actor, filter repositories.ClaimListFilter) ([]*models.Claim, error) {
	scope, err := s.resolver.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	return s.claims.List(ctx, actor.OrgID, scope, filter)
}

// Update changes the amount or description of a claim that has not reached a
// terminal status.
func (s *ClaimService) Update(ctx context.Context, actor Actor, meta RequestMeta, id string, input UpdateClaimInput) (*models.Claim, error) {
	claim, _, err := s.loadAuthorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if lifecycle.ClaimMachine.IsTerminal(lifecycle.Status(claim.Status)) {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("claim in terminal status %s cannot be edited", claim.Status)}
	}

	changed := make([]string, 0, 2)
	if input.AmountCents != nil {
		if err := validation.ValidateAmountCents("amount_cents", *input.AmountCents); err != nil {
			return nil, &ValidationError{Field: "amount_cents", Message: err.Error()}
		}
		claim.AmountCents = *input.AmountCents
		changed = append(changed, "amount_cents")
	}
	if input.Description != nil {
		claim.Description = *input.Description
		changed = append(changed, "description")
	}
	if len(changed) == 0 {
		return claim, nil
	}

	err = s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		if err := s.claims.WithTx(tx).UpdateFields(ctx, claim); err != nil {
			return nil, err
		}
		return &MutationRecord{
			Action:       models.ActionClaimUpdated,
			ResourceType: "claim",
			ResourceID:   claim.ID,
			Metadata:     map[string]interface{}{"changed": changed},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// Transition moves a claim to a new status through the lifecycle machine. The
// status write is compare-and-set on the status read here, so of two
// concurrent transitions exactly one commits; the loser gets ErrStale and must
// re-read.
func (s *ClaimService) Transition(ctx context.Context, actor Actor, meta RequestMeta, id string, input TransitionInput) (*models.Claim, error) {
	claim, _, err := s.loadAuthorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if actor.Role == auth.RoleAffiliate && input.To != string(lifecycle.ClaimCancelled) {
		return nil, &ForbiddenError{Reason: "affiliates may only cancel their own claims"}
	}

	from := lifecycle.Status(claim.Status)
	to := lifecycle.Status(input.To)
	if err := checkTransition(lifecycle.ClaimMachine, from, to, input.Reason); err != nil {
		return nil, err
	}

	entry := &models.LifecycleHistoryEntry{
		ResourceType: "claim",
		ResourceID:   claim.ID,
		FromStatus:   string(from),
		ToStatus:     string(to),
	}
	if input.Reason != "" {
		reason := input.Reason
		entry.Reason = &reason
	}
	if input.Notes != "" {
		notes := input.Notes
		entry.Notes = &notes
	}

	err = s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		ok, err := s.claims.WithTx(tx).UpdateStatus(ctx, actor.OrgID, claim.ID, string(from), string(to))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrStale
		}
		return &MutationRecord{
			Action:       models.ActionClaimTransitioned,
			ResourceType: "claim",
			ResourceID:   claim.ID,
			Metadata:     map[string]interface{}{"from": string(from), "to": string(to)},
			Transition:   entry,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.TransitionsTotal.WithLabelValues("claim", string(to)).Inc()
	claim.Status = string(to)
	return claim, nil
}

// History retrieves the transition history of a claim the caller may see.
func (s *ClaimService) History(ctx context.Context, actor Actor, id string) ([]*models.LifecycleHistoryEntry, error) {
	if _, _, err := s.loadAuthorized(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.history.ListForResource(ctx, "claim", id)
}

// loadAuthorized fetches the claim and verifies the caller's scope covers it.
// Cross-tenant IDs surface as not found; in-tenant scope misses as forbidden.
func (s *ClaimService) loadAuthorized(ctx context.Context, actor Actor, id string) (*models.Claim, *models.Policy, error) {
	claim, err := s.claims.GetByID(ctx, actor.OrgID, id)
	if err != nil {
		return nil, nil, err
	}
	if claim == nil {
		return nil, nil, &NotFoundError{Resource: "claim"}
	}

	policy, err := s.policies.GetByID(ctx, actor.OrgID, claim.PolicyID)
	if err != nil {
		return nil, nil, err
	}
	if policy == nil {
		return nil, nil, fmt.Errorf("claim %s references missing policy %s", claim.ID, claim.PolicyID)
	}

	scope, err := s.resolver.ResolveScope(ctx, actor)
	if err != nil {
		return nil, nil, err
	}
	if !scopeAllowsClaim(scope, claim, policy.ClientID) {
		return nil, nil, &ForbiddenError{Reason: "claim outside the caller's scope"}
	}
	return claim, policy, nil
}

// checkTransition validates a requested transition against a machine's tables.
func checkTransition(m *lifecycle.Machine, from, to lifecycle.Status, reason string) error {
	if !m.ValidStatus(to) {
		return &InvalidTransitionError{Machine: m.Name(), From: string(from), To: string(to)}
	}
	if !m.CanTransition(from, to) {
		return &InvalidTransitionError{Machine: m.Name(), From: string(from), To: string(to)}
	}
	if m.ReasonRequired(from, to) && reason == "" {
		return &ReasonRequiredError{From: string(from), To: string(to)}
	}
	return nil
}
