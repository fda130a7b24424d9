package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/insureline/insureline/internal/auth"
	"github.com/insureline/insureline/internal/db/models"
	"github.com/insureline/insureline/internal/middleware"
)

func newAPIDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "sqlmock"), mock
}

// seedActor stands in for the auth middleware: it injects the caller identity
// directly so handler tests do not need a JWT or a user row lookup.
func seedActor(userID, orgID string, role auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserContextKey, &models.User{ID: userID, OrgID: orgID, Role: string(role), Active: true})
		c.Set(middleware.UserIDContextKey, userID)
		c.Set(middleware.OrgIDContextKey, orgID)
		c.Set(middleware.RoleContextKey, role)
		c.Next()
	}
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return body
}

var userCols = []string{
	"id", "org_id", "email", "name", "password_hash", "role",
	"email_verified_at", "failed_login_attempts", "locked_until", "active",
	"created_at", "updated_at",
}

func userRow(id, orgID, email, passwordHash, role string) *sqlmock.Rows {
	verified := time.Now().Add(-24 * time.Hour)
	return sqlmock.NewRows(userCols).AddRow(
		id, orgID, email, "Test User", passwordHash, role,
		verified, 0, nil, true, time.Now(), time.Now(),
	)
}

var claimCols = []string{
	"id", "org_id", "policy_id", "affiliate_id", "claim_number", "status",
	"amount_cents", "description", "incident_date", "created_by_id",
	"created_at", "updated_at",
}

func claimRow(id, status string) *sqlmock.Rows {
	return sqlmock.NewRows(claimCols).AddRow(
		id, "org-1", "pol-1", "aff-1", "CLM-001", status,
		250000, "windshield damage", "2026-02-10", "user-1",
		time.Now(), time.Now(),
	)
}

var policyCols = []string{
	"id", "org_id", "client_id", "insurer_id", "policy_number", "status",
	"start_date", "end_date", "premium_cents", "notes", "created_by_id",
	"created_at", "updated_at",
}

func policyRow(id, status string) *sqlmock.Rows {
	return sqlmock.NewRows(policyCols).AddRow(
		id, "org-1", "client-a", "ins-1", "POL-001", status,
		"2026-01-01", nil, 120000, nil, "user-1",
		time.Now(), time.Now(),
	)
}
