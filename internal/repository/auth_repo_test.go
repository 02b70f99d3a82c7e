package repository

import (
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestUserCreate_ReturnsInsertID(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (username, password_hash) VALUES (?, ?)")).
		WithArgs("alice", "hash").
		WillReturnResult(sqlmock.NewResult(42, 1))

	id, err := repo.Create("alice", "hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != 42 {
		t.Fatalf("id = %d, want 42", id)
	}
	expectMet(t, mock)
}

func TestUserCreate_WrapsDBError(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("locked"))

	if _, err := repo.Create("alice", "hash"); err == nil {
		t.Fatalf("expected error")
	}
	expectMet(t, mock)
}

func TestUserGetByUsername(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id", "username", "password_hash"}).
		AddRow(7, "alice", "hash")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, password_hash FROM users WHERE username = ?")).
		WithArgs("alice").
		WillReturnRows(rows)

	u, err := repo.GetByUsername("alice")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if u == nil || u.ID != 7 || u.PasswordHash != "hash" {
		t.Fatalf("unexpected user: %+v", u)
	}
	expectMet(t, mock)
}

func TestUserGetByUsername_NotFoundIsNilNil(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT id, username, password_hash FROM users").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	u, err := repo.GetByUsername("ghost")
	if err != nil || u != nil {
		t.Fatalf("want (nil, nil), got (%+v, %v)", u, err)
	}
	expectMet(t, mock)
}
