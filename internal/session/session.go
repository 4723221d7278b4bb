// Package session drives transport identity bootstrap and holds the
// application identity. The two are independent: the transport identity
// gates store access readiness, the application identity (a directory
// entry or the fixed admin) drives authorship and role decisions.
package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/truongminh/classboard/internal/identity"
	"github.com/truongminh/classboard/internal/models"
)

// TransportState tracks identity bootstrap progress.
type TransportState string

const (
	StateUninitialized  TransportState = "uninitialized"
	StateAuthenticating TransportState = "authenticating"
	StateReady          TransportState = "ready"
)

// ErrInvalidCredentials is returned by Login when no directory entry
// matches. It is a transient display condition, not persisted state.
var ErrInvalidCredentials = errors.New("session: invalid username or password")

// Directory supplies the locally cached user roster for credential
// matching. Login never goes to the remote store.
type Directory interface {
	Users() []models.UserProfile
}

// Manager owns the session state machine. Readiness flips true on the
// first identity-change callback from the provider, whether or not the
// sign-in call itself succeeded.
type Manager struct {
	provider  identity.Provider
	token     string
	directory Directory

	mu          sync.RWMutex
	state       TransportState
	transportID string
	ready       bool
	readyFns    []func()
	current     *models.UserProfile
}

func NewManager(provider identity.Provider, token string, directory Directory) *Manager {
	return &Manager{
		provider:  provider,
		token:     token,
		directory: directory,
		state:     StateUninitialized,
	}
}

// Bootstrap attaches the identity listener and signs in: with the
// configured token when present, falling back to anonymous on any token
// failure. A failed anonymous sign-in is logged and swallowed; readiness
// still flips through the listener, the application identity just never
// resolves.
func (m *Manager) Bootstrap(ctx context.Context) {
	m.provider.OnIdentityChange(m.handleIdentity)

	m.mu.Lock()
	m.state = StateAuthenticating
	m.mu.Unlock()

	if m.token != "" {
		if _, err := m.provider.SignInWithToken(ctx, m.token); err == nil {
			return
		} else {
			log.Printf("session: token sign-in failed, falling back to anonymous: %v", err)
		}
	}
	if _, err := m.provider.SignInAnonymous(ctx); err != nil {
		log.Printf("session: anonymous sign-in failed: %v", err)
	}
}

func (m *Manager) handleIdentity(id string) {
	m.mu.Lock()
	m.transportID = id
	m.state = StateReady
	first := !m.ready
	m.ready = true
	var fns []func()
	if first {
		fns = m.readyFns
		m.readyFns = nil
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// OnReady registers fn to run once readiness is first reached. When the
// session is already ready, fn runs immediately.
func (m *Manager) OnReady(fn func()) {
	m.mu.Lock()
	if m.ready {
		m.mu.Unlock()
		fn()
		return
	}
	m.readyFns = append(m.readyFns, fn)
	m.mu.Unlock()
}

func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

func (m *Manager) State() TransportState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// TransportID returns the identity issued by the provider, or "" when
// sign-in has not resolved (or failed).
func (m *Manager) TransportID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transportID
}

// Login resolves the application identity. admin/admin short-circuits to
// the fixed admin profile without touching the directory; anything else
// is an exact case-sensitive match against the cached roster.
func (m *Manager) Login(username, password string) (models.UserProfile, error) {
	if username == "admin" && password == "admin" {
		profile := models.AdminProfile()
		m.setCurrent(profile)
		return profile, nil
	}

	for _, u := range m.directory.Users() {
		if u.Username == username && u.Password == password {
			m.setCurrent(u)
			return u, nil
		}
	}
	return models.UserProfile{}, ErrInvalidCredentials
}

func (m *Manager) setCurrent(p models.UserProfile) {
	m.mu.Lock()
	m.current = &p
	m.mu.Unlock()
}

// Logout clears the application identity only; the transport identity
// persists.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

// Current returns the application identity, if logged in.
func (m *Manager) Current() (models.UserProfile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return models.UserProfile{}, false
	}
	return *m.current, true
}
