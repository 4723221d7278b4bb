package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// TransportKeyPrefix is the Redis key prefix for live transport identities.
	TransportKeyPrefix = "transport:"
	// TokenKeyPrefix is the Redis key prefix mapping pre-issued tokens to
	// transport identities. Tokens are provisioned out of band.
	TokenKeyPrefix = "transport_token:"
	// TransportTTL bounds how long an idle transport identity survives.
	TransportTTL = 7 * 24 * time.Hour
)

// ErrInvalidToken is returned when a pre-issued token is unknown or expired.
var ErrInvalidToken = errors.New("identity: invalid or expired token")

// RedisProvider keeps transport identities in Redis with a sliding TTL.
type RedisProvider struct {
	rdb *redis.Client

	mu        sync.Mutex
	listeners []func(string)
}

func NewRedisProvider(rdb *redis.Client) *RedisProvider {
	return &RedisProvider{rdb: rdb}
}

// SignInAnonymous mints a fresh transport identity.
func (p *RedisProvider) SignInAnonymous(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := p.rdb.Set(ctx, TransportKeyPrefix+id, "anonymous", TransportTTL).Err(); err != nil {
		p.notify("")
		return "", err
	}
	p.notify(id)
	return id, nil
}

// SignInWithToken resolves a pre-issued token to its transport identity
// and refreshes the identity's TTL.
func (p *RedisProvider) SignInWithToken(ctx context.Context, token string) (string, error) {
	id, err := p.rdb.Get(ctx, TokenKeyPrefix+token).Result()
	if err == redis.Nil {
		p.notify("")
		return "", ErrInvalidToken
	}
	if err != nil {
		p.notify("")
		return "", err
	}
	if err := p.rdb.Set(ctx, TransportKeyPrefix+id, "token", TransportTTL).Err(); err != nil {
		p.notify("")
		return "", err
	}
	p.notify(id)
	return id, nil
}

// OnIdentityChange registers a listener for identity resolutions.
func (p *RedisProvider) OnIdentityChange(fn func(identity string)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

func (p *RedisProvider) notify(id string) {
	p.mu.Lock()
	fns := append(([]func(string))(nil), p.listeners...)
	p.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}
