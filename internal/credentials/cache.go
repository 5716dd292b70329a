// Package credentials caches a bearer token for the service identity used
// by the spreadsheet provider.
//
// The cache stores the token with an expiry that sits below the provider's
// real one (55 of 60 minutes by default) and treats a token within the
// safety margin of that expiry as already expired, so a token handed out
// here stays valid for at least one more in-flight request.
package credentials

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"

	"github.com/HendryAvila/workboard-mcp/internal/metrics"
)

// Default cache tuning.
const (
	DefaultSafetyMargin   = 5 * time.Minute
	DefaultCachedLifetime = 55 * time.Minute
)

// SigningClient produces access tokens for an authorized identity.
type SigningClient interface {
	// Token exchanges a signed assertion for an access token. expiryHint is
	// the provider's stated expiry and may be zero.
	Token(ctx context.Context) (token string, expiryHint time.Time, err error)
}

// Provider performs the authorization handshake for an identity.
type Provider interface {
	Authorize(ctx context.Context, identity, privateKey string) (SigningClient, error)
}

// Config holds the identity and cache tuning.
type Config struct {
	Identity       string
	PrivateKey     string
	SafetyMargin   time.Duration
	CachedLifetime time.Duration
}

// Token is a cached access token.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// usableAt reports whether the token can still be handed out at now.
func (t *Token) usableAt(now time.Time, margin time.Duration) bool {
	return t != nil && t.Value != "" && !now.Add(margin).After(t.ExpiresAt)
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the wall clock.
func WithClock(c clock.PassiveClock) Option {
	return func(cc *Cache) { cc.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(cc *Cache) { cc.logger = l }
}

// WithMetrics records refreshes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(cc *Cache) { cc.metrics = m }
}

// Cache holds at most one signing client and one token. Both are replaced
// wholesale; Invalidate drops both.
type Cache struct {
	cfg      Config
	provider Provider
	clock    clock.PassiveClock
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics

	mu     sync.Mutex
	client SigningClient
	token  *Token
	// generation is bumped by Invalidate so results of a handshake or
	// refresh that started earlier are not stored.
	generation uint64

	flight singleflight.Group
}

// New creates a Cache. Zero durations in cfg fall back to the defaults.
func New(cfg Config, provider Provider, opts ...Option) *Cache {
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = DefaultSafetyMargin
	}
	if cfg.CachedLifetime <= 0 {
		cfg.CachedLifetime = DefaultCachedLifetime
	}
	c := &Cache{
		cfg:      cfg,
		provider: provider,
		clock:    clock.RealClock{},
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SigningClient returns the cached signing client, performing the provider
// handshake on first use. A missing identity or key yields
// *ConfigurationError; a failed handshake yields *AuthorizationError.
func (c *Cache) SigningClient(ctx context.Context) (SigningClient, error) {
	c.mu.Lock()
	client, gen := c.client, c.generation
	c.mu.Unlock()
	if client != nil {
		return client, nil
	}

	v, err, _ := c.flight.Do("signing-client", func() (any, error) {
		c.mu.Lock()
		if c.client != nil {
			client := c.client
			c.mu.Unlock()
			return client, nil
		}
		c.mu.Unlock()

		var missing []string
		if c.cfg.Identity == "" {
			missing = append(missing, "service identity")
		}
		if c.cfg.PrivateKey == "" {
			missing = append(missing, "private key")
		}
		if len(missing) > 0 {
			return nil, &ConfigurationError{Missing: missing}
		}
		if c.provider == nil {
			return nil, &AuthorizationError{Identity: c.cfg.Identity, Err: errNoProvider}
		}

		// Joined callers share this handshake, so the first caller's
		// cancellation must not fail it for the rest.
		client, err := c.provider.Authorize(context.WithoutCancel(ctx), c.cfg.Identity, c.cfg.PrivateKey)
		if err != nil {
			return nil, &AuthorizationError{Identity: c.cfg.Identity, Err: err}
		}

		c.mu.Lock()
		if c.generation == gen {
			c.client = client
		}
		c.mu.Unlock()
		c.logger.Debugw("signing client authorized", "identity", c.cfg.Identity)
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(SigningClient), nil
}

// AccessToken returns a usable bearer token, refreshing it when the cached
// one is missing or within the safety margin of its expiry.
func (c *Cache) AccessToken(ctx context.Context) (string, error) {
	tok, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

func (c *Cache) accessToken(ctx context.Context) (*Token, error) {
	c.mu.Lock()
	tok, gen := c.token, c.generation
	c.mu.Unlock()
	if tok.usableAt(c.clock.Now(), c.cfg.SafetyMargin) {
		return tok, nil
	}

	v, err, _ := c.flight.Do("access-token", func() (any, error) {
		c.mu.Lock()
		if cached := c.token; cached.usableAt(c.clock.Now(), c.cfg.SafetyMargin) {
			c.mu.Unlock()
			return cached, nil
		}
		c.mu.Unlock()

		fresh, err := c.refresh(context.WithoutCancel(ctx))
		c.metrics.TokenRefreshed(err)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generation == gen {
			c.token = fresh
		}
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Token), nil
}

func (c *Cache) refresh(ctx context.Context) (*Token, error) {
	client, err := c.SigningClient(ctx)
	if err != nil {
		return nil, err
	}

	value, hint, err := client.Token(ctx)
	if err != nil {
		return nil, &TokenFetchError{Err: err}
	}
	if value == "" {
		return nil, &TokenFetchError{}
	}

	now := c.clock.Now()
	expiresAt := now.Add(c.cfg.CachedLifetime)
	if !hint.IsZero() && hint.Before(expiresAt) {
		expiresAt = hint
	}
	c.logger.Debugw("access token refreshed", "expires_at", expiresAt)
	return &Token{Value: value, ExpiresAt: expiresAt}, nil
}

// Invalidate drops the cached token and signing client. The next call to
// either getter performs a full handshake.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.client = nil
	c.token = nil
	c.generation++
	c.mu.Unlock()
	c.logger.Debug("credential cache invalidated")
}

// TokenSource adapts the cache to oauth2.TokenSource so it can back an
// oauth2.Transport. ctx is used for every refresh.
func (c *Cache) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, cache: c}
}

type tokenSource struct {
	ctx   context.Context
	cache *Cache
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.cache.accessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok.Value, TokenType: "Bearer", Expiry: tok.ExpiresAt}, nil
}
