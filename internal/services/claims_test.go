package services

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newClaimService(e *env) *ClaimService {
	return NewClaimService(e.claims, e.policies, e.affiliates, e.history, e.resolver, e.mutator)
}

func expectClaim(e *env, rows *sqlmock.Rows) {
	e.mock.ExpectQuery("SELECT.*FROM claims.*WHERE id").WillReturnRows(rows)
}

// An agent assigned to client-a asks for a claim belonging to client-b. The
// claim exists in the agent's organization, so the answer is forbidden, not
// not-found.
func TestClaimGetOutsideClientScope(t *testing.T) {
	e := newEnv(t)
	svc := newClaimService(e)

	expectClaim(e, claimRow("clm-1", "pol-1", "aff-1", "SUBMITTED"))
	expectPolicy(e, policyRow("pol-1", "client-b", "ACTIVE", "2026-01-01"))
	e.mock.ExpectQuery("SELECT cm.client_id.*FROM client_memberships").
		WithArgs(agentActor.UserID).
		WillReturnRows(sqlmock.NewRows([]string{"client_id"}).AddRow("client-a"))

	_, err := svc.Get(context.Background(), agentActor, "clm-1")

	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("error = %v, want ForbiddenError", err)
	}
	e.done(t)
}

func TestClaimGetCrossOrgNotFound(t *testing.T) {
	e := newEnv(t)
	svc := newClaimService(e)
	expectClaim(e, sqlmock.NewRows(claimCols))

	_, err := svc.Get(context.Background(), adminActor, "clm-other-org")

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
	e.done(t)
}

func TestClaimTransitionCommitsHistoryAndAudit(t *testing.T) {
	e := newEnv(t)
	svc := newClaimService(e)

	expectClaim(e, claimRow("clm-1", "pol-1", "aff-1", "SUBMITTED"))
	expectPolicy(e, policyRow("pol-1", "client-a", "ACTIVE", "2026-01-01"))

	e.mock.ExpectBegin()
	e.mock.ExpectExec("UPDATE claims.*SET status").
		WithArgs("clm-1", "org-1", "SUBMITTED", "UNDER_REVIEW").
		WillReturnResult(sqlmock.NewResult(0, 1))
	e.expectHistory()
	e.expectAudit()
	e.mock.ExpectCommit()

	claim, err := svc.Transition(context.Background(), adminActor, testMeta, "clm-1",
		TransitionInput{To: "UNDER_REVIEW"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claim.Status != "UNDER_REVIEW" {
		t.Errorf("Status = %s, want UNDER_REVIEW", claim.Status)
	}
	e.done(t)
}

func TestClaimTransitionLostRace(t *testing.T) {
	e := newEnv(t)
	svc := newClaimService(e)

	expectClaim(e, claimRow("clm-1", "pol-1", "aff-1", "SUBMITTED"))
	expectPolicy(e, policyRow("pol-1", "client-a", "ACTIVE", "2026-01-01"))

	e.mock.ExpectBegin()
	e.mock.ExpectExec("UPDATE claims.*SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	e.mock.ExpectRollback()

	_, err := svc.Transition(context.Background(), adminActor, testMeta, "clm-1",
		TransitionInput{To: "UNDER_REVIEW"})
	if !errors.Is(err, ErrStale) {
		t.Fatalf("error = %v, want ErrStale", err)
	}
	e.done(t)
}

func TestClaimRejectRequiresReason(t *testing.T) {
	e := newEnv(t)
	svc := newClaimService(e)

	expectClaim(e, claimRow("clm-1", "pol-1", "aff-1", "UNDER_REVIEW"))
	expectPolicy(e, policyRow("pol-1", "client-a", "ACTIVE", "2026-01-01"))

	_, err := svc.Transition(context.Background(), adminActor, testMeta, "clm-1",
		TransitionInput{To: "REJECTED"})

	var reasonErr *ReasonRequiredError
	if !errors.As(err, &reasonErr) {
		t.Fatalf("error = %v, want ReasonRequiredError", err)
	}
	e.done(t)
}

// Affiliates may cancel their own claims but nothing else.
func TestClaimAffiliateMayOnlyCancel(t *testing.T) {
	e := newEnv(t)
	svc := newClaimService(e)

	expectClaim(e, claimRow("clm-1", "pol-1", "aff-1", "SUBMITTED"))
	expectPolicy(e, policyRow("pol-1", "client-a", "ACTIVE", "2026-01-01"))
	e.mock.ExpectQuery("SELECT.*FROM affiliates WHERE user_id").
		WithArgs(affiliateActor.UserID).
		WillReturnRows(affiliateRow("aff-1", "client-a", affiliateActor.UserID))

	_, err := svc.Transition(context.Background(), affiliateActor, testMeta, "clm-1",
		TransitionInput{To: "UNDER_REVIEW"})

	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("error = %v, want ForbiddenError", err)
	}
	e.done(t)
}

func TestClaimAffiliateCancelsOwnClaim(t *testing.T) {
	e := newEnv(t)
	svc := newClaimService(e)

	expectClaim(e, claimRow("clm-1", "pol-1", "aff-1", "SUBMITTED"))
	expectPolicy(e, policyRow("pol-1", "client-a", "ACTIVE", "2026-01-01"))
	e.mock.ExpectQuery("SELECT.*FROM affiliates WHERE user_id").
		WillReturnRows(affiliateRow("aff-1", "client-a", affiliateActor.UserID))

	e.mock.ExpectBegin()
	e.mock.ExpectExec("UPDATE claims.*SET status").
		WithArgs("clm-1", "org-1", "SUBMITTED", "CANCELLED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	e.expectHistory()
	e.expectAudit()
	e.mock.ExpectCommit()

	claim, err := svc.Transition(context.Background(), affiliateActor, testMeta, "clm-1",
		TransitionInput{To: "CANCELLED", Reason: "filed in error"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claim.Status != "CANCELLED" {
		t.Errorf("Status = %s, want CANCELLED", claim.Status)
	}
	e.done(t)
}

func TestClaimCreateAgainstInactivePolicy(t *testing.T) {
	e := newEnv(t)
	svc := newClaimService(e)
	expectPolicy(e, policyRow("pol-1", "client-a", "DRAFT", "2026-01-01"))

	_, err := svc.Create(context.Background(), adminActor, testMeta, CreateClaimInput{
		PolicyID:     "pol-1",
		AffiliateID:  "aff-1",
		ClaimNumber:  "CLM-2026-002",
		AmountCents:  10000,
		IncidentDate: "2026-08-01",
	})

	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	e.done(t)
}

func TestClaimCreateAffiliateNotCovered(t *testing.T) {
	e := newEnv(t)
	svc := newClaimService(e)

	expectPolicy(e, policyRow("pol-1", "client-a", "ACTIVE", "2026-01-01"))
	e.mock.ExpectQuery("SELECT.*FROM affiliates.*WHERE id").
		WillReturnRows(affiliateRow("aff-9", "client-b", "user-aff-9"))

	_, err := svc.Create(context.Background(), adminActor, testMeta, CreateClaimInput{
		PolicyID:     "pol-1",
		AffiliateID:  "aff-9",
		ClaimNumber:  "CLM-2026-002",
		AmountCents:  10000,
		IncidentDate: "2026-08-01",
	})

	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	e.done(t)
}
