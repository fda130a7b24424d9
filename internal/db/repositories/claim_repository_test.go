package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/insureline/insureline/internal/db/models"
)

var claimCols = []string{
	"id", "org_id", "policy_id", "affiliate_id", "claim_number", "status",
	"amount_cents", "description", "incident_date", "created_by_id", "created_at", "updated_at",
}

func sampleClaimRow(status string) *sqlmock.Rows {
	return sqlmock.NewRows(claimCols).AddRow(
		"claim-1", "org-1", "policy-1", "aff-1", "CLM-2026-0001", status,
		125000, "windshield replacement", "2026-08-01", "user-1", time.Now(), time.Now(),
	)
}

func newClaimRepo(t *testing.T) (*ClaimRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return NewClaimRepository(db), mock
}

// ---------------------------------------------------------------------------
// GetByID
// ---------------------------------------------------------------------------

func TestClaimGetByID_Found(t *testing.T) {
	repo, mock := newClaimRepo(t)
	mock.ExpectQuery("SELECT.*FROM claims.*WHERE id").
		WithArgs("claim-1", "org-1").
		WillReturnRows(sampleClaimRow("SUBMITTED"))

	claim, err := repo.GetByID(context.Background(), "org-1", "claim-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claim == nil {
		t.Fatal("expected claim, got nil")
	}
	if claim.Status != "SUBMITTED" {
		t.Errorf("Status = %s, want SUBMITTED", claim.Status)
	}
}

func TestClaimGetByID_CrossOrg(t *testing.T) {
	repo, mock := newClaimRepo(t)
	mock.ExpectQuery("SELECT.*FROM claims.*WHERE id").
		WithArgs("claim-1", "org-other").
		WillReturnRows(sqlmock.NewRows(claimCols))

	claim, err := repo.GetByID(context.Background(), "org-other", "claim-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claim != nil {
		t.Error("cross-org read must resolve to not found")
	}
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestClaimCreate_Success(t *testing.T) {
	repo, mock := newClaimRepo(t)
	mock.ExpectQuery("INSERT INTO claims").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))

	claim := &models.Claim{
		OrgID:        "org-1",
		PolicyID:     "policy-1",
		AffiliateID:  "aff-1",
		ClaimNumber:  "CLM-2026-0002",
		Status:       "SUBMITTED",
		AmountCents:  50000,
		IncidentDate: "2026-08-10",
		CreatedByID:  "user-1",
	}
	if err := repo.Create(context.Background(), claim); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claim.ID == "" {
		t.Error("expected generated ID")
	}
}

// ---------------------------------------------------------------------------
// List with scope narrowing
// ---------------------------------------------------------------------------

func TestClaimList_AllScope(t *testing.T) {
	repo, mock := newClaimRepo(t)
	mock.ExpectQuery("SELECT.*FROM claims c.*WHERE c.org_id").
		WillReturnRows(sampleClaimRow("UNDER_REVIEW"))

	claims, err := repo.List(context.Background(), "org-1",
		ScopeFilter{All: true}, ClaimListFilter{Limit: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(claims) != 1 {
		t.Errorf("len(claims) = %d, want 1", len(claims))
	}
}

func TestClaimList_OwnScope(t *testing.T) {
	repo, mock := newClaimRepo(t)
	mock.ExpectQuery("SELECT.*FROM claims c.*AND c.affiliate_id").
		WillReturnRows(sampleClaimRow("SUBMITTED"))

	claims, err := repo.List(context.Background(), "org-1",
		ScopeFilter{AffiliateID: "aff-1"}, ClaimListFilter{Limit: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(claims) != 1 {
		t.Errorf("len(claims) = %d, want 1", len(claims))
	}
}

func TestClaimList_ClientScope(t *testing.T) {
	repo, mock := newClaimRepo(t)
	mock.ExpectQuery("SELECT.*FROM claims c.*client_id = ANY").
		WillReturnRows(sampleClaimRow("SUBMITTED"))

	claims, err := repo.List(context.Background(), "org-1",
		ScopeFilter{ClientIDs: []string{"client-1", "client-2"}}, ClaimListFilter{Limit: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(claims) != 1 {
		t.Errorf("len(claims) = %d, want 1", len(claims))
	}
}

func TestClaimList_EmptyScopeShortCircuits(t *testing.T) {
	repo, mock := newClaimRepo(t)
	// No query expectation: an unmatchable scope never reaches the database.

	claims, err := repo.List(context.Background(), "org-1",
		ScopeFilter{}, ClaimListFilter{Limit: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(claims) != 0 {
		t.Errorf("len(claims) = %d, want 0", len(claims))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestClaimList_StatusFilter(t *testing.T) {
	repo, mock := newClaimRepo(t)
	mock.ExpectQuery("SELECT.*FROM claims c.*AND c.status").
		WillReturnRows(sampleClaimRow("APPROVED"))

	claims, err := repo.List(context.Background(), "org-1",
		ScopeFilter{All: true}, ClaimListFilter{Status: "APPROVED", Limit: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(claims) != 1 {
		t.Errorf("len(claims) = %d, want 1", len(claims))
	}
}

// ---------------------------------------------------------------------------
// UpdateStatus
// ---------------------------------------------------------------------------

func TestClaimUpdateStatus_Applies(t *testing.T) {
	repo, mock := newClaimRepo(t)
	mock.ExpectExec("UPDATE claims.*SET status").
		WithArgs("claim-1", "org-1", "SUBMITTED", "UNDER_REVIEW").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateStatus(context.Background(), "org-1", "claim-1", "SUBMITTED", "UNDER_REVIEW")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected status update to apply")
	}
}

func TestClaimUpdateStatus_LostRace(t *testing.T) {
	repo, mock := newClaimRepo(t)
	mock.ExpectExec("UPDATE claims.*SET status").
		WithArgs("claim-1", "org-1", "SUBMITTED", "CANCELLED").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateStatus(context.Background(), "org-1", "claim-1", "SUBMITTED", "CANCELLED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("a stale from-status must not apply")
	}
}
