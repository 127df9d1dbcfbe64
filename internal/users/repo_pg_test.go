package users

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: sqlx.NewDb(db, "sqlmock")}, mock
}

func TestPGRepoCreateNormalizesEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	user := User{ID: "u1", Email: " Ana@Example.com", DisplayName: "Ana", Provider: ProviderPassword, PasswordHash: "h"}

	mock.ExpectExec("INSERT INTO users").
		WithArgs("u1", "ana@example.com", "Ana", "", ProviderPassword, "h", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateMapsUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	if err := repo.Create(context.Background(), User{ID: "u1", Email: "a@example.com"}); err != ErrEmailTaken {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestPGRepoGetByEmailScansRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, time.May, 2, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "email", "display_name", "photo_url", "provider", "password_hash", "disabled",
		"tokens_valid_after", "reset_token_hash", "reset_expires_at", "last_login_at", "created_at", "updated_at",
	}).AddRow("u1", "ana@example.com", "Ana", "", "password", "h", false, now, "", nil, now, now, now)
	mock.ExpectQuery("SELECT .+ FROM users WHERE email = \\$1").
		WithArgs("ana@example.com").
		WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "ANA@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if user.ID != "u1" || user.LastLoginAt == nil || !user.LastLoginAt.Equal(now) {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.ResetExpiresAt != nil {
		t.Fatalf("expected nil reset expiry")
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT .+ FROM users WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoUpdateNoRows(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE users SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Update(context.Background(), User{ID: "missing"}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
