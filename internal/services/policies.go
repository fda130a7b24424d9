// policies.go implements policy operations: issuance as DRAFT, field updates
// with DRAFT-only immutability, and lifecycle transitions mirroring the claim
// flow. Affiliates never mutate policies; they only read the ones covering
// their client.
package services

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/insureline/insureline/internal/auth"
	"github.com/insureline/insureline/internal/db/models"
	"github.com/insureline/insureline/internal/db/repositories"
	"github.com/insureline/insureline/internal/lifecycle"
	"github.com/insureline/insureline/internal/telemetry"
	"github.com/insureline/insureline/internal/validation"
)

// CreatePolicyInput carries the fields for issuing a new policy.
type CreatePolicyInput struct {
	ClientID     string
	InsurerID    string
	PolicyNumber string
	StartDate    string
	EndDate      string
	PremiumCents int64
	Notes        string
}

// UpdatePolicyInput carries the mutable policy fields. PolicyNumber and
// StartDate apply only while the policy is DRAFT.
type UpdatePolicyInput struct {
	PolicyNumber *string
	StartDate    *string
	EndDate      *string
	PremiumCents *int64
	Notes        *string
}

// PolicyService implements policy operations.
type PolicyService struct {
	policies *repositories.PolicyRepository
	clients  *repositories.ClientRepository
	insurers *repositories.InsurerRepository
	history  *repositories.HistoryRepository
	resolver *AccessResolver
	mutator  *Mutator
}

// NewPolicyService creates a new policy service
func NewPolicyService(
	policies *repositories.PolicyRepository,
	clients *repositories.ClientRepository,
	insurers *repositories.InsurerRepository,
	history *repositories.HistoryRepository,
	resolver *AccessResolver,
	mutator *Mutator,
) *PolicyService {
	return &PolicyService{
		policies: policies,
		clients:  clients,
		insurers: insurers,
		history:  history,
		resolver: resolver,
		mutator:  mutator,
	}
}

// Create issues a new policy in DRAFT for a client of the organization.
func (s *PolicyService) Create(ctx context.Context, actor Actor, meta RequestMeta, input CreatePolicyInput) (*models.Policy, error) {
	if actor.Role == auth.RoleAffiliate {
		return nil, &ForbiddenError{Reason: "affiliates may not issue policies"}
	}
	if err := validation.ValidateReferenceNumber("policy_number", input.PolicyNumber); err != nil {
		return nil, &ValidationError{Field: "policy_number", Message: err.Error()}
	}
	if err := validation.ValidateAmountCents("premium_cents", input.PremiumCents); err != nil {
		return nil, &ValidationError{Field: "premium_cents", Message: err.Error()}
	}
	if err := validation.ValidateDateRange("start_date", input.StartDate, "end_date", input.EndDate); err != nil {
		return nil, &ValidationError{Field: "start_date", Message: err.Error()}
	}

	client, err := s.clients.GetByID(ctx, actor.OrgID, input.ClientID)
	if err != nil {
		return nil, err
	}
	if client == nil || !client.Active {
		return nil, &NotFoundError{Resource: "client"}
	}

	insurer, err := s.insurers.GetByID(ctx, actor.OrgID, input.InsurerID)
	if err != nil {
		return nil, err
	}
	if insurer == nil || !insurer.Active {
		return nil, &NotFoundError{Resource: "insurer"}
	}

	scope, err := s.resolver.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !scopeAllowsClient(scope, client.ID) {
		return nil, &ForbiddenError{Reason: "client outside the caller's scope"}
	}

	policy := &models.Policy{
		OrgID:        actor.OrgID,
		ClientID:     client.ID,
		InsurerID:    insurer.ID,
		PolicyNumber: input.PolicyNumber,
		Status:       string(lifecycle.PolicyDraft),
		StartDate:    input.StartDate,
		PremiumCents: input.PremiumCents,
		CreatedByID:  actor.UserID,
	}
	if input.EndDate != "" {
		endDate := input.EndDate
		policy.EndDate = &endDate
	}
	if input.Notes != "" {
		notes := input.Notes
		policy.Notes = &notes
	}

	err = s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		if err := s.policies.WithTx(tx).Create(ctx, policy); err != nil {
			return nil, err
		}
		return &MutationRecord{
			Action:       models.ActionPolicyCreated,
			ResourceType: "policy",
			ResourceID:   policy.ID,
			Metadata: map[string]interface{}{
				"policy_number": policy.PolicyNumber,
				"client_id":     policy.ClientID,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return policy, nil
}

// Get retrieves a policy the caller is allowed to see.
func (s *PolicyService) Get(ctx context.Context, actor Actor, id string) (*models.Policy, error) {
	return s.loadAuthorized(ctx, actor, id)
}

// List retrieves policies narrowed to the caller's scope.
func (s *PolicyService) List(ctx context.Context, actor Actor, filter repositories.PolicyListFilter) ([]*models.Policy, error) {
	scope, err := s.resolver.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	return s.policies.List(ctx, actor.OrgID, scope, filter)
}

// Update changes policy fields. The policy number and start date are only
// writable while the policy is DRAFT; the write re-checks that status
// atomically, so a concurrent activation cannot let an immutable field slip
// through.
func (s *PolicyService) Update(ctx context.Context, actor Actor, meta RequestMeta, id string, input UpdatePolicyInput) (*models.Policy, error) {
	if actor.Role == auth.RoleAffiliate {
		return nil, &ForbiddenError{Reason: "affiliates may not modify policies"}
	}

	policy, err := s.loadAuthorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if lifecycle.PolicyMachine.IsTerminal(lifecycle.Status(policy.Status)) {
		return nil, &ValidationError{Field: "status", Message: "policy in a terminal status cannot be edited"}
	}

	draftOnly := input.PolicyNumber != nil || input.StartDate != nil
	if draftOnly && policy.Status != string(lifecycle.PolicyDraft) {
		return nil, &ValidationError{Field: "policy_number", Message: "policy number and start date are immutable after DRAFT"}
	}

	changed := make([]string, 0, 5)
	if input.PolicyNumber != nil {
		if err := validation.ValidateReferenceNumber("policy_number", *input.PolicyNumber); err != nil {
			return nil, &ValidationError{Field: "policy_number", Message: err.Error()}
		}
		policy.PolicyNumber = *input.PolicyNumber
		changed = append(changed, "policy_number")
	}
	if input.StartDate != nil {
		policy.StartDate = *input.StartDate
		changed = append(changed, "start_date")
	}
	if input.EndDate != nil {
		policy.EndDate = input.EndDate
		changed = append(changed, "end_date")
	}
	if input.PremiumCents != nil {
		if err := validation.ValidateAmountCents("premium_cents", *input.PremiumCents); err != nil {
			return nil, &ValidationError{Field: "premium_cents", Message: err.Error()}
		}
		policy.PremiumCents = *input.PremiumCents
		changed = append(changed, "premium_cents")
	}
	if input.Notes != nil {
		policy.Notes = input.Notes
		changed = append(changed, "notes")
	}
	if len(changed) == 0 {
		return policy, nil
	}

	endDate := ""
	if policy.EndDate != nil {
		endDate = *policy.EndDate
	}
	if err := validation.ValidateDateRange("start_date", policy.StartDate, "end_date", endDate); err != nil {
		return nil, &ValidationError{Field: "end_date", Message: err.Error()}
	}

	err = s.mutator.Apply(ctx, actor, meta, func(tx *sqlx.Tx) (*MutationRecord, error) {
		if draftOnly {
			ok, err := s.policies.WithTx(tx).UpdateDraftFields(ctx, policy)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrStale
			}
		} else {
			if err := s.policies.WithTx(tx).UpdateFields(ctx, policy); err != nil {
				return nil, err
			}
		}
		return &MutationRecord{
			Action:       models.ActionPolicyUpdated,
			ResourceType: "policy",
			ResourceID:   policy.ID,
			Metadata:     map[string]interface{}{"changed": changed},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return policy, nil
}

// Transition moves a policy to a new status through the lifecycle machine.
// Activating a policy requires a start date that has arrived.
func (s *PolicyService) Transition(ctx context.Context, actor Actor, meta RequestMeta, id string, input TransitionInput) (*models.Policy, error) {
	if actor.Role == auth.RoleAffiliate {
		return nil, &ForbiddenError{Reason: "affiliates may not transition policies"}
	}

	policy, err := s.loadAuthorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	from := lifecycle.Status(policy.Status)
	to := lifecycle.Status(input.To)
	if err := checkTransition(lifecycle.PolicyMachine, from, to, input.Reason); err != nil {
		return nil, err
	}
	if to == lifecycle.PolicyActive && from == lifecycle.PolicyDraft {
		start, perr := time.Parse("2006-01-02", policy.StartDate)
		if perr == nil && start.After(time.Now()) {
			return nil, &ValidationError{Field: "start_date", Message: "policy cannot activate before its start date"}
		}
	}

	entry := &models.LifecycleHistoryEntry{
		ResourceType: "policy",
		ResourceID:   policy.ID,
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
		ok, err := s.policies.WithTx(tx).UpdateStatus(ctx, actor.OrgID, policy.ID, string(from), string(to))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrStale
		}
		return &MutationRecord{
			Action:       models.ActionPolicyTransitioned,
			ResourceType: "policy",
			ResourceID:   policy.ID,
			Metadata:     map[string]interface{}{"from": string(from), "to": string(to)},
			Transition:   entry,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.TransitionsTotal.WithLabelValues("policy", string(to)).Inc()
	policy.Status = string(to)
	return policy, nil
}

// History retrieves the transition history of a policy the caller may see.
func (s *PolicyService) History(ctx context.Context, actor Actor, id string) ([]*models.LifecycleHistoryEntry, error) {
	if _, err := s.loadAuthorized(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.history.ListForResource(ctx, "policy", id)
}

func (s *PolicyService) loadAuthorized(ctx context.Context, actor Actor, id string) (*models.Policy, error) {
	policy, err := s.policies.GetByID(ctx, actor.OrgID, id)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, &NotFoundError{Resource: "policy"}
	}

	scope, err := s.resolver.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !scopeAllowsPolicy(scope, policy) {
		return nil, &ForbiddenError{Reason: "policy outside the caller's scope"}
	}
	return policy, nil
}
