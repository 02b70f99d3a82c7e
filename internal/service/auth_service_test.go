package service

import (
	"errors"
	"testing"
)

func TestAuthSignUpHashesPassword(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewAuthService(repo, "test-key")

	id, err := svc.SignUp("alice", "s3cret")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if id != 1 {
		t.Fatalf("id = %d", id)
	}
	u, _ := repo.GetByUsername("alice")
	if u.PasswordHash == "s3cret" || u.PasswordHash == "" {
		t.Fatalf("password stored without hashing: %q", u.PasswordHash)
	}
}

func TestAuthSignUpRejectsEmptyPassword(t *testing.T) {
	svc := NewAuthService(newFakeAuthRepo(), "test-key")
	if _, err := svc.SignUp("alice", "   "); err == nil {
		t.Fatalf("expected error for blank password")
	}
}

func TestAuthTokenRoundTrip(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewAuthService(repo, "test-key")

	id, err := svc.SignUp("alice", "s3cret")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	token, err := svc.GenerateToken("alice", "s3cret")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	got, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if got != id {
		t.Fatalf("parsed id = %d, want %d", got, id)
	}
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewAuthService(repo, "test-key")
	if _, err := svc.SignUp("alice", "s3cret"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	if _, err := svc.GenerateToken("alice", "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if _, err := svc.GenerateToken("bob", "s3cret"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthRejectsForeignKeyToken(t *testing.T) {
	repo := newFakeAuthRepo()
	if _, err := NewAuthService(repo, "key-a").SignUp("alice", "s3cret"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	token, err := NewAuthService(repo, "key-a").GenerateToken("alice", "s3cret")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := NewAuthService(repo, "key-b").ParseToken(token); err == nil {
		t.Fatalf("token signed with another key must be rejected")
	}
}
