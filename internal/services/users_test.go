package services

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newUserService(e *env) *UserService {
	return NewUserService(e.users, e.mutator)
}

func TestUserCreateRequiresAdmin(t *testing.T) {
	e := newEnv(t)
	svc := newUserService(e)

	_, err := svc.Create(context.Background(), Actor{UserID: "u", OrgID: "org-1", Role: "manager"}, testMeta, CreateUserInput{})

	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("error = %v, want ForbiddenError", err)
	}
	e.done(t)
}

func TestUserCreateUnknownRole(t *testing.T) {
	e := newEnv(t)
	svc := newUserService(e)

	_, err := svc.Create(context.Background(), adminActor, testMeta, CreateUserInput{
		Email:    "new@acme.test",
		Name:     "New",
		Password: "Sup3rSecretPass",
		Role:     "superuser",
	})

	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	e.done(t)
}

func TestUserUpdateSelfDeactivateRejected(t *testing.T) {
	e := newEnv(t)
	svc := newUserService(e)

	e.mock.ExpectQuery("SELECT.*FROM users WHERE id").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			adminActor.UserID, "org-1", "admin@acme.test", "Admin", "h", "admin", time.Now(),
			0, nil, true, time.Now(), time.Now()))

	inactive := false
	_, err := svc.Update(context.Background(), adminActor, testMeta, adminActor.UserID,
		UpdateUserInput{Active: &inactive})

	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	e.done(t)
}

func TestUserDeactivateOtherAudited(t *testing.T) {
	e := newEnv(t)
	svc := newUserService(e)

	e.mock.ExpectQuery("SELECT.*FROM users WHERE id").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			"user-2", "org-1", "bob@acme.test", "Bob", "h", "agent", time.Now(),
			0, nil, true, time.Now(), time.Now()))

	e.mock.ExpectBegin()
	e.mock.ExpectExec("UPDATE users.*SET name").
		WillReturnResult(sqlmock.NewResult(0, 1))
	e.expectAudit()
	e.mock.ExpectCommit()

	inactive := false
	user, err := svc.Update(context.Background(), adminActor, testMeta, "user-2",
		UpdateUserInput{Active: &inactive})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Active {
		t.Error("expected user to be inactive")
	}
	e.done(t)
}

func TestUserGetCrossOrgNotFound(t *testing.T) {
	e := newEnv(t)
	svc := newUserService(e)

	e.mock.ExpectQuery("SELECT.*FROM users WHERE id").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := svc.Get(context.Background(), adminActor, "user-other-org")

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
	e.done(t)
}
