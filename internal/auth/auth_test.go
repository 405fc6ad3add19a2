package auth

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(hash)
}

func TestStaticProvider_Authenticate(t *testing.T) {
	provider := NewStaticProvider(map[string]string{
		"ravi@example.com": hashFor(t, "password123"),
	})

	id, err := provider.Authenticate("ravi@example.com", "password123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.Email != "ravi@example.com" {
		t.Errorf("identity = %+v", id)
	}

	if _, err := provider.Authenticate("ravi@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := provider.Authenticate("nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSessionManager_Lifecycle(t *testing.T) {
	m := NewSessionManager(time.Hour)
	id := Identity{Email: "ravi@example.com"}

	token := m.Create(id)
	if token == "" {
		t.Fatal("empty token")
	}

	got, ok := m.Lookup(token)
	if !ok || got != id {
		t.Fatalf("Lookup = %+v, %v", got, ok)
	}

	m.Revoke(token)
	if _, ok := m.Lookup(token); ok {
		t.Error("revoked token still valid")
	}
}

func TestSessionManager_Expiry(t *testing.T) {
	m := NewSessionManager(time.Minute)
	current := time.Now()
	m.now = func() time.Time { return current }

	token := m.Create(Identity{Email: "ravi@example.com"})

	current = current.Add(2 * time.Minute)
	if _, ok := m.Lookup(token); ok {
		t.Error("expired token still valid")
	}
}
