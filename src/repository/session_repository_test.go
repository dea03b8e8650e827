package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open gorm: %v", err)
	}

	return db, mock
}

func TestSessionRepositoryFindActive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&SessionRepository{}).WithDB(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "strategy_name", "symbol", "active"}).
		AddRow(1, 10, "ema-cross", "EUR_USD", true).
		AddRow(2, 11, "fractal-scalper", "GBP_USD", true)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trading_sessions" WHERE active = $1 ORDER BY id ASC`)).
		WithArgs(true).
		WillReturnRows(rows)

	sessions, err := repo.FindActive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 active sessions, got %d", len(sessions))
	}
	if sessions[0].Symbol != "EUR_USD" || sessions[1].Symbol != "GBP_USD" {
		t.Fatalf("sessions not returned in expected order: %+v", sessions)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepositoryFindByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&SessionRepository{}).WithDB(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trading_sessions" WHERE id = $1 ORDER BY "trading_sessions"."id" LIMIT $2`)).
		WithArgs(uint(99), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	session, err := repo.FindByID(context.Background(), 99)
	if err != nil {
		t.Fatalf("not-found must not be an error, got %v", err)
	}
	if session != nil {
		t.Fatalf("expected nil session, got %+v", session)
	}
}

func TestSessionRepositoryUpdateLastExecution(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&SessionRepository{}).WithDB(db)

	ts := time.Date(2025, 3, 4, 10, 5, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "trading_sessions" SET "last_execution"=$1,"updated_at"=$2 WHERE id = $3`)).
		WithArgs(ts, sqlmock.AnyArg(), uint(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateLastExecution(context.Background(), 7, ts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
