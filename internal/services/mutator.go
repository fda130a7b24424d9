// mutator.go is the single write path for audited mutations. Every state
// change, its lifecycle history row (when it is a transition) and its audit
// row commit in one transaction; a failure anywhere rolls back all of it.
package services

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/insureline/insureline/internal/db/models"
	"github.com/insureline/insureline/internal/db/repositories"
)

// MutationRecord is what a mutation callback reports back for recording. The
// callback fills ResourceID after inserts, and sets Transition only when the
// mutation moved a lifecycle status.
type MutationRecord struct {
	Action       string
	ResourceType string
	ResourceID   string
	Metadata     map[string]interface{}
	Transition   *models.LifecycleHistoryEntry

	// ActorUserID and ActorOrgID override the caller's actor when set. Token
	// flows use this: the acting user is only known after the token row is
	// read inside the transaction.
	ActorUserID string
	ActorOrgID  string
}

// MutationApplier is the write path audited mutations go through. Mutator is
// the transactional implementation.
type MutationApplier interface {
	Apply(ctx context.Context, actor Actor, meta RequestMeta, fn func(tx *sqlx.Tx) (*MutationRecord, error)) error
}

// AuditShipper receives audit rows after their transaction commits. See
// internal/audit for the webhook implementation.
type AuditShipper interface {
	Enqueue(entry *models.AuditLog)
}

// Mutator runs audited mutations.
type Mutator struct {
	txRunner *repositories.TxRunner
	history  *repositories.HistoryRepository
	audit    *repositories.AuditRepository
	shipper  AuditShipper
}

// NewMutator creates a new mutator
func NewMutator(txRunner *repositories.TxRunner, history *repositories.HistoryRepository, audit *repositories.AuditRepository) *Mutator {
	return &Mutator{txRunner: txRunner, history: history, audit: audit}
}

// SetShipper attaches a post-commit shipper for audit rows. Optional; when
// unset, audit rows live only in the database.
func (m *Mutator) SetShipper(s AuditShipper) {
	m.shipper = s
}

// Apply runs fn inside one transaction, then appends the history row (for
// transitions) and the audit row before committing. Unique violations from
// the domain write surface as UniqueConflictError.
func (m *Mutator) Apply(ctx context.Context, actor Actor, meta RequestMeta, fn func(tx *sqlx.Tx) (*MutationRecord, error)) error {
	var committed *models.AuditLog
	err := m.txRunner.WithinTx(ctx, func(tx *sqlx.Tx) error {
		record, err := fn(tx)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("mutation returned no record")
		}

		if record.ActorUserID != "" {
			actor.UserID = record.ActorUserID
		}
		if record.ActorOrgID != "" {
			actor.OrgID = record.ActorOrgID
		}

		if record.Transition != nil {
			record.Transition.CreatedByID = actor.UserID
			if err := m.history.WithTx(tx).Append(ctx, record.Transition); err != nil {
				return err
			}
		}

		log := &models.AuditLog{
			OrgID:        actor.OrgID,
			Action:       record.Action,
			ResourceType: record.ResourceType,
			ResourceID:   record.ResourceID,
			Metadata:     record.Metadata,
		}
		if actor.UserID != "" {
			userID := actor.UserID
			log.UserID = &userID
		}
		if meta.IP != "" {
			ip := meta.IP
			log.IPAddress = &ip
		}
		if meta.UserAgent != "" {
			ua := meta.UserAgent
			log.UserAgent = &ua
		}
		if err := m.audit.WithTx(tx).CreateAuditLog(ctx, log); err != nil {
			return err
		}
		committed = log
		return nil
	})

	// Ship only after the commit; a rolled-back mutation must not leak an
	// audit event to external destinations.
	if err == nil && m.shipper != nil && committed != nil {
		m.shipper.Enqueue(committed)
	}

	return translateUniqueViolation(err)
}
