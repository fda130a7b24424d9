// policy_expirer.go implements the PolicyExpirer background job, which moves
// ACTIVE policies past their end date into EXPIRED. Each transition goes
// through the same audited pipeline as a manual one: a compare-and-set status
// update, a lifecycle history row, and an audit row, committed together. The
// audit row carries no user ID, marking it as a system action.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/insureline/insureline/internal/db/models"
	"github.com/insureline/insureline/internal/db/repositories"
	"github.com/insureline/insureline/internal/lifecycle"
	"github.com/insureline/insureline/internal/services"
	"github.com/insureline/insureline/internal/telemetry"
)

// expireBatchSize bounds one sweep so a large backlog cannot hold the loop
// for long; the next tick picks up the remainder.
const expireBatchSize = 500

// PolicyExpirer sweeps ACTIVE policies whose end date has passed.
type PolicyExpirer struct {
	policies *repositories.PolicyRepository
	mutator  *services.Mutator
	interval time.Duration
	stopCh   chan struct{}
}

// NewPolicyExpirer creates an expirer. Zero interval defaults to 1h.
func NewPolicyExpirer(policies *repositories.PolicyRepository, mutator *services.Mutator, interval time.Duration) *PolicyExpirer {
	if interval <= 0 {
		interval = time.Hour
	}
	return &PolicyExpirer{
		policies: policies,
		mutator:  mutator,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the expiry loop until ctx is cancelled or Stop is called. Run it
// under safego.Go.
func (e *PolicyExpirer) Start(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	slog.Info("policy expirer started", "interval", e.interval)

	e.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			e.sweep(ctx)
		case <-e.stopCh:
			slog.Info("policy expirer stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the loop to exit.
func (e *PolicyExpirer) Stop() {
	close(e.stopCh)
}

func (e *PolicyExpirer) sweep(ctx context.Context) {
	today := time.Now().UTC().Format("2006-01-02")
	ended, err := e.policies.ListActiveEndedBefore(ctx, today, expireBatchSize)
	if err != nil {
		slog.Error("policy expiry sweep failed to list", "error", err)
		return
	}

	for _, policy := range ended {
		if err := e.expire(ctx, policy); err != nil {
			slog.Error("failed to expire policy",
				"policy_id", policy.ID, "org_id", policy.OrgID, "error", err)
		}
	}
}

func (e *PolicyExpirer) expire(ctx context.Context, policy *models.Policy) error {
	entry := &models.LifecycleHistoryEntry{
		ResourceType: "policy",
		ResourceID:   policy.ID,
		FromStatus:   string(lifecycle.PolicyActive),
		ToStatus:     string(lifecycle.PolicyExpired),
	}

	// No user on the actor: the audit row records a system action.
	actor := services.Actor{OrgID: policy.OrgID}

	err := e.mutator.Apply(ctx, actor, services.RequestMeta{}, func(tx *sqlx.Tx) (*services.MutationRecord, error) {
		ok, err := e.policies.WithTx(tx).UpdateStatus(ctx, policy.OrgID, policy.ID,
			string(lifecycle.PolicyActive), string(lifecycle.PolicyExpired))
		if err != nil {
			return nil, err
		}
		if !ok {
			// Someone transitioned it between the listing and here.
			return nil, services.ErrStale
		}
		metadata := map[string]interface{}{
			"from": string(lifecycle.PolicyActive),
			"to":   string(lifecycle.PolicyExpired),
		}
		if policy.EndDate != nil {
			metadata["end_date"] = *policy.EndDate
		}
		return &services.MutationRecord{
			Action:       models.ActionPolicyTransitioned,
			ResourceType: "policy",
			ResourceID:   policy.ID,
			Metadata:     metadata,
			Transition:   entry,
		}, nil
	})
	if err != nil {
		if errors.Is(err, services.ErrStale) {
			return nil
		}
		return err
	}

	telemetry.TransitionsTotal.WithLabelValues("policy", string(lifecycle.PolicyExpired)).Inc()
	return nil
}
