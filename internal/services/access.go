// access.go resolves the caller's data scope on every request. The role only
// picks the scope kind; the rows a scope covers come from a fresh membership
// read, so revoking a membership takes effect on the very next request.
package services

import (
	"context"
	"fmt"

	"github.com/insureline/insureline/internal/auth"
	"github.com/insureline/insureline/internal/db/models"
	"github.com/insureline/insureline/internal/db/repositories"
)

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	UserID string
	OrgID  string
	Role   auth.Role
}

// RequestMeta carries request attribution for audit rows.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// AccessResolver turns an actor into a ScopeFilter.
type AccessResolver struct {
	clients    *repositories.ClientRepository
	affiliates *repositories.AffiliateRepository
}

// NewAccessResolver creates a new access resolver
func NewAccessResolver(clients *repositories.ClientRepository, affiliates *repositories.AffiliateRepository) *AccessResolver {
	return &AccessResolver{clients: clients, affiliates: affiliates}
}

// ResolveScope computes the rows the actor may see right now. An agent with no
// memberships, or an affiliate user with no affiliate record, gets a filter
// that matches nothing.
func (r *AccessResolver) ResolveScope(ctx context.Context, actor Actor) (repositories.ScopeFilter, error) {
	kind, err := auth.ScopeForRole(actor.Role)
	if err != nil {
		return repositories.ScopeFilter{}, err
	}

	switch kind {
	case auth.ScopeAll:
		return repositories.ScopeFilter{All: true}, nil

	case auth.ScopeClient:
		clientIDs, err := r.clients.ListClientIDsForUser(ctx, actor.UserID)
		if err != nil {
			return repositories.ScopeFilter{}, fmt.Errorf("failed to resolve client scope: %w", err)
		}
		return repositories.ScopeFilter{ClientIDs: clientIDs}, nil

	case auth.ScopeOwn:
		affiliate, err := r.affiliates.GetByUserID(ctx, actor.UserID)
		if err != nil {
			return repositories.ScopeFilter{}, fmt.Errorf("failed to resolve own scope: %w", err)
		}
		if affiliate == nil || affiliate.OrgID != actor.OrgID {
			return repositories.ScopeFilter{}, nil
		}
		return repositories.ScopeFilter{
			ClientIDs:   []string{affiliate.ClientID},
			AffiliateID: affiliate.ID,
		}, nil

	default:
		return repositories.ScopeFilter{}, fmt.Errorf("unhandled scope kind %v", kind)
	}
}

// scopeAllowsClient reports whether the filter covers the given client.
func scopeAllowsClient(scope repositories.ScopeFilter, clientID string) bool {
	if scope.All {
		return true
	}
	for _, id := range scope.ClientIDs {
		if id == clientID {
			return true
		}
	}
	return false
}

// scopeAllowsClaim reports whether the filter covers a claim. Own scope
// matches on the affiliate; client scope matches through the policy's client.
func scopeAllowsClaim(scope repositories.ScopeFilter, claim *models.Claim, policyClientID string) bool {
	if scope.All {
		return true
	}
	if scope.AffiliateID != "" {
		return scope.AffiliateID == claim.AffiliateID
	}
	return scopeAllowsClient(scope, policyClientID)
}

// scopeAllowsPolicy reports whether the filter covers a policy. Affiliates see
// the policies of their own client.
func scopeAllowsPolicy(scope repositories.ScopeFilter, policy *models.Policy) bool {
	return scope.All || scopeAllowsClient(scope, policy.ClientID)
}
