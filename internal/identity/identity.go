// Package identity issues transport identities for store access. The
// transport identity is unrelated to the application identity resolved
// at login; it only gates the session readiness of the sync core.
package identity

import "context"

// Provider is the identity provider consumed by the session manager.
// Listeners registered via OnIdentityChange are invoked on every
// resolution attempt, with an empty id when sign-in failed.
type Provider interface {
	SignInAnonymous(ctx context.Context) (string, error)
	SignInWithToken(ctx context.Context, token string) (string, error)
	OnIdentityChange(fn func(identity string))
}
