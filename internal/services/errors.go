// errors.go defines the typed domain errors the service layer returns and the
// translation of Postgres unique violations into field-level conflicts. HTTP
// handlers map these to status codes with errors.As/Is; anything outside this
// set is an internal error.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Sentinel errors for flows where the cause needs no payload.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email address not verified")
	ErrTokenNotFound      = errors.New("token not found")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenAlreadyUsed   = errors.New("token already used")
	// ErrStale means a compare-and-set write matched no row because another
	// request changed the resource first. Callers re-read and retry or give up.
	ErrStale = errors.New("resource was modified concurrently")
)

// NotFoundError covers both genuine absence and cross-tenant reads; callers
// cannot tell the two apart.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// ForbiddenError means the caller's resolved scope does not cover the target.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return e.Reason
}

// InvalidTransitionError reports a transition outside the machine's table.
type InvalidTransitionError struct {
	Machine string
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Machine, e.From, e.To)
}

// ReasonRequiredError reports a transition that is valid but needs a reason.
type ReasonRequiredError struct {
	From string
	To   string
}

func (e *ReasonRequiredError) Error() string {
	return fmt.Sprintf("transition from %s to %s requires a reason", e.From, e.To)
}

// UniqueConflictError reports a duplicate value on a unique field.
type UniqueConflictError struct {
	Field string
}

func (e *UniqueConflictError) Error() string {
	return fmt.Sprintf("%s already in use", e.Field)
}

// AccountLockedError reports a login against a locked account.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.Format(time.RFC3339))
}

// ValidationError reports a request field that failed domain validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// uniqueConstraintFields maps the constraint names from the schema to the
// field reported to API callers. Must stay in sync with the migrations.
var uniqueConstraintFields = map[string]string{
	"organizations_code_key":  "code",
	"users_email_key":         "email",
	"clients_org_name_key":    "name",
	"insurers_org_code_key":   "code",
	"policies_org_number_key": "policy_number",
	"claims_org_number_key":   "claim_number",
	"action_tokens_hash_key":  "token",
}

// translateUniqueViolation converts a lib/pq unique violation (SQLSTATE 23505)
// into a UniqueConflictError naming the offending field. Any other error is
// returned unchanged.
func translateUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		if field, ok := uniqueConstraintFields[pqErr.Constraint]; ok {
			return &UniqueConflictError{Field: field}
		}
		return &UniqueConflictError{Field: "value"}
	}
	return err
}
