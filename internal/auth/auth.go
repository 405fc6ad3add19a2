// Package auth provides the thin login layer gating the dashboard:
// credential verification against configured users and bearer-token sessions.
package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown user or wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Identity is a verified session identity.
type Identity struct {
	Email string
}

// Provider verifies credentials and yields an identity.
type Provider interface {
	Authenticate(email, password string) (Identity, error)
}

// StaticProvider authenticates against a configured email -> bcrypt-hash map.
type StaticProvider struct {
	users map[string]string
}

// NewStaticProvider creates a provider over the configured users.
func NewStaticProvider(users map[string]string) *StaticProvider {
	return &StaticProvider{users: users}
}

// Authenticate compares the password against the stored bcrypt hash.
func (p *StaticProvider) Authenticate(email, password string) (Identity, error) {
	hash, ok := p.users[email]
	if !ok {
		return Identity{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{Email: email}, nil
}

type session struct {
	identity Identity
	expires  time.Time
}

// SessionManager issues and validates bearer tokens with a fixed TTL.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionManager creates a session manager.
func NewSessionManager(ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionManager{
		sessions: make(map[string]session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create issues a new token for the identity.
func (m *SessionManager) Create(id Identity) string {
	token := uuid.New().String()
	m.mu.Lock()
	m.sessions[token] = session{identity: id, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return token
}

// Lookup resolves a token to its identity. Expired sessions are evicted and
// reported as absent.
func (m *SessionManager) Lookup(token string) (Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return Identity{}, false
	}
	if m.now().After(s.expires) {
		delete(m.sessions, token)
		return Identity{}, false
	}
	return s.identity, true
}

// Revoke invalidates a token.
func (m *SessionManager) Revoke(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}
