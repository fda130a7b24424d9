package services

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/insureline/insureline/internal/db/repositories"
)

// env wires every repository and the mutation pipeline over one sqlmock
// connection. Service tests drive real repository SQL against the mock, so the
// queries a service runs are part of what the test asserts.
type env struct {
	mock sqlmock.Sqlmock

	orgs       *repositories.OrganizationRepository
	users      *repositories.UserRepository
	tokens     *repositories.TokenRepository
	clients    *repositories.ClientRepository
	affiliates *repositories.AffiliateRepository
	insurers   *repositories.InsurerRepository
	policies   *repositories.PolicyRepository
	claims     *repositories.ClaimRepository
	history    *repositories.HistoryRepository
	audit      *repositories.AuditRepository

	resolver *AccessResolver
	mutator  *Mutator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { rawDB.Close() })
	db := sqlx.NewDb(rawDB, "sqlmock")

	e := &env{
		mock:       mock,
		orgs:       repositories.NewOrganizationRepository(db),
		users:      repositories.NewUserRepository(db),
		tokens:     repositories.NewTokenRepository(db),
		clients:    repositories.NewClientRepository(db),
		affiliates: repositories.NewAffiliateRepository(db),
		insurers:   repositories.NewInsurerRepository(db),
		policies:   repositories.NewPolicyRepository(db),
		claims:     repositories.NewClaimRepository(db),
		history:    repositories.NewHistoryRepository(db),
		audit:      repositories.NewAuditRepository(db),
	}
	e.resolver = NewAccessResolver(e.clients, e.affiliates)
	e.mutator = NewMutator(repositories.NewTxRunner(db), e.history, e.audit)
	return e
}

func (e *env) done(t *testing.T) {
	t.Helper()
	if err := e.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// expectAudit matches the audit insert that closes every mutation.
func (e *env) expectAudit() {
	e.mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
}

// expectHistory matches the lifecycle history insert of a transition.
func (e *env) expectHistory() {
	e.mock.ExpectQuery("INSERT INTO lifecycle_history").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
}

// ---------------------------------------------------------------------------
// Row builders
// ---------------------------------------------------------------------------

var policyCols = []string{
	"id", "org_id", "client_id", "insurer_id", "policy_number", "status",
	"start_date", "end_date", "premium_cents", "notes", "created_by_id",
	"created_at", "updated_at",
}

func policyRow(id, clientID, status, startDate string) *sqlmock.Rows {
	return sqlmock.NewRows(policyCols).AddRow(
		id, "org-1", clientID, "insurer-1", "POL-2026-001", status,
		startDate, nil, 120000, nil, "user-admin", time.Now(), time.Now(),
	)
}

var claimCols = []string{
	"id", "org_id", "policy_id", "affiliate_id", "claim_number", "status",
	"amount_cents", "description", "incident_date", "created_by_id",
	"created_at", "updated_at",
}

func claimRow(id, policyID, affiliateID, status string) *sqlmock.Rows {
	return sqlmock.NewRows(claimCols).AddRow(
		id, "org-1", policyID, affiliateID, "CLM-2026-001", status,
		45000, "windshield replacement", "2026-08-01", "user-agent-1",
		time.Now(), time.Now(),
	)
}

var userCols = []string{
	"id", "org_id", "email", "name", "password_hash", "role", "email_verified_at",
	"failed_login_attempts", "locked_until", "active", "created_at", "updated_at",
}

var affiliateCols = []string{
	"id", "org_id", "client_id", "user_id", "first_name", "last_name", "email",
	"national_id_encrypted", "birth_date", "active", "created_at", "updated_at",
}

func affiliateRow(id, clientID, userID string) *sqlmock.Rows {
	return sqlmock.NewRows(affiliateCols).AddRow(
		id, "org-1", clientID, userID, "Rosa", "Silva", "rosa@acme.test",
		nil, "1990-04-12", true, time.Now(), time.Now(),
	)
}

var tokenCols = []string{
	"id", "user_id", "kind", "token_hash", "email", "expires_at", "consumed_at", "created_at",
}

var adminActor = Actor{UserID: "user-admin", OrgID: "org-1", Role: "admin"}
var agentActor = Actor{UserID: "user-agent-1", OrgID: "org-1", Role: "agent"}
var affiliateActor = Actor{UserID: "user-aff-1", OrgID: "org-1", Role: "affiliate"}

var testMeta = RequestMeta{IP: "203.0.113.9", UserAgent: "test"}
