package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truongminh/classboard/internal/models"
	"github.com/truongminh/classboard/internal/session"
)

// fakeProvider resolves identities locally and notifies listeners the
// way the Redis provider does, including the empty-id failure callback.
type fakeProvider struct {
	anonID   string
	anonErr  error
	tokenID  string
	tokenErr error

	listeners  []func(string)
	anonCalls  int
	tokenCalls int
}

func (p *fakeProvider) SignInAnonymous(ctx context.Context) (string, error) {
	p.anonCalls++
	if p.anonErr != nil {
		p.notify("")
		return "", p.anonErr
	}
	p.notify(p.anonID)
	return p.anonID, nil
}

func (p *fakeProvider) SignInWithToken(ctx context.Context, token string) (string, error) {
	p.tokenCalls++
	if p.tokenErr != nil {
		p.notify("")
		return "", p.tokenErr
	}
	p.notify(p.tokenID)
	return p.tokenID, nil
}

func (p *fakeProvider) OnIdentityChange(fn func(string)) {
	p.listeners = append(p.listeners, fn)
}

func (p *fakeProvider) notify(id string) {
	for _, fn := range p.listeners {
		fn(id)
	}
}

type staticDirectory []models.UserProfile

func (d staticDirectory) Users() []models.UserProfile { return d }

func roster() staticDirectory {
	return staticDirectory{
		{ID: "u1", Username: "linh", Password: "meo123", DisplayName: "Linh", Role: models.RoleStudent, AvatarColor: "bg-pink-400"},
		{ID: "u2", Username: "Nam", Password: "cho456", DisplayName: "Nam", Role: models.RoleStudent, AvatarColor: "bg-blue-400"},
	}
}

func TestBootstrap_AnonymousSignIn(t *testing.T) {
	p := &fakeProvider{anonID: "anon-1"}
	m := session.NewManager(p, "", roster())

	assert.Equal(t, session.StateUninitialized, m.State())
	assert.False(t, m.Ready())

	m.Bootstrap(context.Background())

	assert.True(t, m.Ready())
	assert.Equal(t, session.StateReady, m.State())
	assert.Equal(t, "anon-1", m.TransportID())
	assert.Equal(t, 1, p.anonCalls)
	assert.Equal(t, 0, p.tokenCalls)
}

func TestBootstrap_TokenFallsBackToAnonymous(t *testing.T) {
	p := &fakeProvider{anonID: "anon-1", tokenErr: errors.New("expired")}
	m := session.NewManager(p, "tok", roster())

	m.Bootstrap(context.Background())

	assert.Equal(t, 1, p.tokenCalls)
	assert.Equal(t, 1, p.anonCalls)
	assert.True(t, m.Ready())
	assert.Equal(t, "anon-1", m.TransportID())
}

func TestBootstrap_ReadyEvenWhenEverySignInFails(t *testing.T) {
	// Readiness tracks "listener attached", not sign-in success: the
	// provider still fires the identity callback with an empty identity.
	p := &fakeProvider{anonErr: errors.New("backend down"), tokenErr: errors.New("expired")}
	m := session.NewManager(p, "tok", roster())

	m.Bootstrap(context.Background())

	assert.True(t, m.Ready())
	assert.Equal(t, "", m.TransportID())
}

func TestOnReady_FiresOnceOnFirstCallback(t *testing.T) {
	p := &fakeProvider{anonID: "anon-1"}
	m := session.NewManager(p, "", roster())

	fired := 0
	m.OnReady(func() { fired++ })

	m.Bootstrap(context.Background())
	assert.Equal(t, 1, fired)

	// Later identity callbacks must not re-fire the readiness gate.
	p.notify("anon-2")
	assert.Equal(t, 1, fired)
	assert.Equal(t, "anon-2", m.TransportID())
}

func TestOnReady_ImmediateWhenAlreadyReady(t *testing.T) {
	p := &fakeProvider{anonID: "anon-1"}
	m := session.NewManager(p, "", roster())
	m.Bootstrap(context.Background())

	fired := false
	m.OnReady(func() { fired = true })
	assert.True(t, fired)
}

func TestLogin_AdminShortcutBypassesDirectory(t *testing.T) {
	m := session.NewManager(&fakeProvider{}, "", staticDirectory{})

	profile, err := m.Login("admin", "admin")
	require.NoError(t, err)

	assert.Equal(t, models.AdminID, profile.ID)
	assert.Equal(t, models.RoleAdmin, profile.Role)

	current, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, models.AdminID, current.ID)
}

func TestLogin_ExactDirectoryMatch(t *testing.T) {
	m := session.NewManager(&fakeProvider{}, "", roster())

	profile, err := m.Login("linh", "meo123")
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.ID)
	assert.Equal(t, models.RoleStudent, profile.Role)
}

func TestLogin_IsCaseSensitive(t *testing.T) {
	m := session.NewManager(&fakeProvider{}, "", roster())

	_, err := m.Login("nam", "cho456")
	assert.ErrorIs(t, err, session.ErrInvalidCredentials)

	_, ok := m.Current()
	assert.False(t, ok, "failed login must leave the application identity unset")
}

func TestLogin_WrongPassword(t *testing.T) {
	m := session.NewManager(&fakeProvider{}, "", roster())

	_, err := m.Login("linh", "wrong")
	assert.ErrorIs(t, err, session.ErrInvalidCredentials)
}

func TestLogout_ClearsApplicationIdentityOnly(t *testing.T) {
	p := &fakeProvider{anonID: "anon-1"}
	m := session.NewManager(p, "", roster())
	m.Bootstrap(context.Background())

	_, err := m.Login("linh", "meo123")
	require.NoError(t, err)

	m.Logout()

	_, ok := m.Current()
	assert.False(t, ok)
	assert.True(t, m.Ready(), "transport readiness survives logout")
	assert.Equal(t, "anon-1", m.TransportID(), "transport identity survives logout")
}

func TestLogin_AdminWinsOverDirectoryEntry(t *testing.T) {
	// Even if someone creates a directory user named admin, the shortcut
	// resolves the fixed admin identity first.
	dir := staticDirectory{
		{ID: "impostor", Username: "admin", Password: "admin", DisplayName: "Impostor", Role: models.RoleStudent},
	}
	m := session.NewManager(&fakeProvider{}, "", dir)

	profile, err := m.Login("admin", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.AdminID, profile.ID)
	assert.Equal(t, models.RoleAdmin, profile.Role)
}
