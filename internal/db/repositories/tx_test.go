package repositories

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	runner := NewTxRunner(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE claims").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := runner.WithinTx(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(context.Background(), "UPDATE claims SET status = $1", "PAID")
		return err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	runner := NewTxRunner(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE claims").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := runner.WithinTx(context.Background(), func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(context.Background(), "UPDATE claims SET status = $1", "PAID"); err != nil {
			return err
		}
		return errDB
	})
	if err != errDB {
		t.Fatalf("err = %v, want errDB", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestWithinTx_BeginError(t *testing.T) {
	db, mock := newMockDB(t)
	runner := NewTxRunner(db)

	mock.ExpectBegin().WillReturnError(errDB)

	err := runner.WithinTx(context.Background(), func(tx *sqlx.Tx) error {
		t.Fatal("callback must not run when begin fails")
		return nil
	})
	if err == nil {
		t.Error("expected error, got nil")
	}
}
