package services

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newPolicyService(e *env) *PolicyService {
	return NewPolicyService(e.policies, e.clients, e.insurers, e.history, e.resolver, e.mutator)
}

func expectPolicy(e *env, rows *sqlmock.Rows) {
	e.mock.ExpectQuery("SELECT.*FROM policies.*WHERE id").WillReturnRows(rows)
}

func TestPolicyTransitionSuspendRequiresReason(t *testing.T) {
	e := newEnv(t)
	svc := newPolicyService(e)
	expectPolicy(e, policyRow("pol-1", "client-a", "ACTIVE", "2026-01-01"))

	_, err := svc.Transition(context.Background(), adminActor, testMeta, "pol-1", TransitionInput{To: "SUSPENDED"})

	var reasonErr *ReasonRequiredError
	if !errors.As(err, &reasonErr) {
		t.Fatalf("error = %v, want ReasonRequiredError", err)
	}
	e.done(t)
}

func TestPolicyTransitionSuspendWithReason(t *testing.T) {
	e := newEnv(t)
	svc := newPolicyService(e)
	expectPolicy(e, policyRow("pol-1", "client-a", "ACTIVE", "2026-01-01"))

	e.mock.ExpectBegin()
	e.mock.ExpectExec("UPDATE policies.*SET status").
		WithArgs("pol-1", "org-1", "ACTIVE", "SUSPENDED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	e.expectHistory()
	e.expectAudit()
	e.mock.ExpectCommit()

	policy, err := svc.Transition(context.Background(), adminActor, testMeta, "pol-1",
		TransitionInput{To: "SUSPENDED", Reason: "premium unpaid"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if policy.Status != "SUSPENDED" {
		t.Errorf("Status = %s, want SUSPENDED", policy.Status)
	}
	e.done(t)
}

func TestPolicyTransitionLostRace(t *testing.T) {
	e := newEnv(t)
	svc := newPolicyService(e)
	expectPolicy(e, policyRow("pol-1", "client-a", "ACTIVE", "2026-01-01"))

	e.mock.ExpectBegin()
	e.mock.ExpectExec("UPDATE policies.*SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	e.mock.ExpectRollback()

	_, err := svc.Transition(context.Background(), adminActor, testMeta, "pol-1",
		TransitionInput{To: "EXPIRED"})
	if !errors.Is(err, ErrStale) {
		t.Fatalf("error = %v, want ErrStale", err)
	}
	e.done(t)
}

func TestPolicyTransitionInvalid(t *testing.T) {
	e := newEnv(t)
	svc := newPolicyService(e)
	expectPolicy(e, policyRow("pol-1", "client-a", "EXPIRED", "2026-01-01"))

	_, err := svc.Transition(context.Background(), adminActor, testMeta, "pol-1",
		TransitionInput{To: "ACTIVE"})

	var transErr *InvalidTransitionError
	if !errors.As(err, &transErr) {
		t.Fatalf("error = %v, want InvalidTransitionError", err)
	}
	e.done(t)
}

func TestPolicyActivateBeforeStartDate(t *testing.T) {
	e := newEnv(t)
	svc := newPolicyService(e)
	future := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	expectPolicy(e, policyRow("pol-1", "client-a", "DRAFT", future))

	_, err := svc.Transition(context.Background(), adminActor, testMeta, "pol-1",
		TransitionInput{To: "ACTIVE"})

	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	e.done(t)
}

func TestPolicyUpdateNumberImmutableAfterDraft(t *testing.T) {
	e := newEnv(t)
	svc := newPolicyService(e)
	expectPolicy(e, policyRow("pol-1", "client-a", "ACTIVE", "2026-01-01"))

	number := "POL-2026-999"
	_, err := svc.Update(context.Background(), adminActor, testMeta, "pol-1",
		UpdatePolicyInput{PolicyNumber: &number})

	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	e.done(t)
}

func TestPolicyUpdateDraftLostRace(t *testing.T) {
	e := newEnv(t)
	svc := newPolicyService(e)
	expectPolicy(e, policyRow("pol-1", "client-a", "DRAFT", "2026-01-01"))

	e.mock.ExpectBegin()
	e.mock.ExpectExec("UPDATE policies.*status = 'DRAFT'").
		WillReturnResult(sqlmock.NewResult(0, 0))
	e.mock.ExpectRollback()

	number := "POL-2026-999"
	_, err := svc.Update(context.Background(), adminActor, testMeta, "pol-1",
		UpdatePolicyInput{PolicyNumber: &number})
	if !errors.Is(err, ErrStale) {
		t.Fatalf("error = %v, want ErrStale", err)
	}
	e.done(t)
}

func TestPolicyCreateForbiddenForAffiliate(t *testing.T) {
	e := newEnv(t)
	svc := newPolicyService(e)

	_, err := svc.Create(context.Background(), affiliateActor, testMeta, CreatePolicyInput{})

	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("error = %v, want ForbiddenError", err)
	}
	e.done(t)
}

func TestPolicyGetCrossOrgNotFound(t *testing.T) {
	e := newEnv(t)
	svc := newPolicyService(e)
	expectPolicy(e, sqlmock.NewRows(policyCols))

	_, err := svc.Get(context.Background(), adminActor, "pol-other-org")

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
	e.done(t)
}
