package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

type fakeClient struct {
	calls atomic.Int32
	hint  time.Time
	err   error
	// block, when set, is received from before returning.
	block chan struct{}
}

func (c *fakeClient) Token(ctx context.Context) (string, time.Time, error) {
	n := c.calls.Add(1)
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return "", time.Time{}, ctx.Err()
		}
	}
	if c.err != nil {
		return "", time.Time{}, c.err
	}
	return fmt.Sprintf("token-%d", n), c.hint, nil
}

type fakeProvider struct {
	calls  atomic.Int32
	client *fakeClient
	err    error
}

func (p *fakeProvider) Authorize(context.Context, string, string) (SigningClient, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return p.client, nil
}

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func newTestCache(p Provider) (*Cache, *testingclock.FakeClock) {
	clk := testingclock.NewFakeClock(epoch)
	c := New(Config{Identity: "svc@example.iam", PrivateKey: "pem"}, p, WithClock(clk))
	return c, clk
}

func TestAccessToken_CachedWithinLifetime(t *testing.T) {
	client := &fakeClient{}
	c, clk := newTestCache(&fakeProvider{client: client})

	first, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", first)

	// Token expires at T+55m; with a 5m margin it is served until T+50m.
	clk.Step(50 * time.Minute)
	again, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestAccessToken_RefreshesInsideSafetyMargin(t *testing.T) {
	client := &fakeClient{}
	c, clk := newTestCache(&fakeProvider{client: client})

	_, err := c.AccessToken(context.Background())
	require.NoError(t, err)

	clk.Step(56 * time.Minute)
	tok, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok)
	assert.Equal(t, int32(2), client.calls.Load())
}

func TestAccessToken_ProviderHintShortensExpiry(t *testing.T) {
	client := &fakeClient{hint: epoch.Add(20 * time.Minute)}
	c, clk := newTestCache(&fakeProvider{client: client})

	_, err := c.AccessToken(context.Background())
	require.NoError(t, err)

	clk.Step(16 * time.Minute)
	_, err = c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), client.calls.Load())
}

func TestSigningClient_ReusedAcrossRefreshes(t *testing.T) {
	p := &fakeProvider{client: &fakeClient{}}
	c, clk := newTestCache(p)

	for i := 0; i < 3; i++ {
		_, err := c.AccessToken(context.Background())
		require.NoError(t, err)
		clk.Step(time.Hour)
	}
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestSigningClient_MissingConfiguration(t *testing.T) {
	p := &fakeProvider{client: &fakeClient{}}
	c := New(Config{}, p)

	_, err := c.AccessToken(context.Background())
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, []string{"service identity", "private key"}, cfgErr.Missing)
	assert.Zero(t, p.calls.Load(), "provider must not be contacted")
}

func TestSigningClient_AuthorizationFailure(t *testing.T) {
	c, _ := newTestCache(&fakeProvider{err: errors.New("bad key")})

	_, err := c.SigningClient(context.Background())
	var authErr *AuthorizationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "svc@example.iam", authErr.Identity)
	assert.EqualError(t, authErr.Unwrap(), "bad key")
}

func TestAccessToken_FetchFailureLeavesCacheEmpty(t *testing.T) {
	client := &fakeClient{err: errors.New("boom")}
	c, _ := newTestCache(&fakeProvider{client: client})

	_, err := c.AccessToken(context.Background())
	var fetchErr *TokenFetchError
	require.True(t, errors.As(err, &fetchErr))

	client.err = nil
	tok, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok)
}

func TestInvalidate_ForcesFullHandshake(t *testing.T) {
	p := &fakeProvider{client: &fakeClient{}}
	c, _ := newTestCache(p)

	_, err := c.AccessToken(context.Background())
	require.NoError(t, err)

	c.Invalidate()
	tok, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestAccessToken_ConcurrentCallersShareRefresh(t *testing.T) {
	client := &fakeClient{block: make(chan struct{})}
	c, _ := newTestCache(&fakeProvider{client: client})

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := c.AccessToken(context.Background())
			assert.NoError(t, err)
			results[i] = tok
		}(i)
	}

	require.Eventually(t, func() bool { return client.calls.Load() == 1 }, time.Second, time.Millisecond)
	// Give the other callers time to join the in-flight refresh.
	time.Sleep(20 * time.Millisecond)
	close(client.block)
	wg.Wait()

	for _, tok := range results {
		assert.Equal(t, "token-1", tok)
	}
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestAccessToken_CanceledCallerDoesNotFailJoinedCallers(t *testing.T) {
	client := &fakeClient{block: make(chan struct{})}
	c, _ := newTestCache(&fakeProvider{client: client})

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := c.AccessToken(ctxA)
		errA <- err
	}()
	require.Eventually(t, func() bool { return client.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		token string
		err   error
	}
	resB := make(chan result, 1)
	go func() {
		tok, err := c.AccessToken(context.Background())
		resB <- result{tok, err}
	}()
	// Give the second caller time to join the in-flight refresh.
	time.Sleep(20 * time.Millisecond)

	cancelA()
	time.Sleep(10 * time.Millisecond)
	close(client.block)

	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, "token-1", b.token)
	require.NoError(t, <-errA)
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestSigningClient_HandshakeIgnoresCallerCancellation(t *testing.T) {
	p := &ctxProvider{client: &fakeClient{}}
	c, _ := newTestCache(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.SigningClient(ctx)
	require.NoError(t, err)
	assert.NoError(t, p.sawErr)
}

// ctxProvider records the context error seen by Authorize.
type ctxProvider struct {
	client *fakeClient
	sawErr error
}

func (p *ctxProvider) Authorize(ctx context.Context, _, _ string) (SigningClient, error) {
	p.sawErr = ctx.Err()
	return p.client, nil
}

func TestTokenSource(t *testing.T) {
	c, _ := newTestCache(&fakeProvider{client: &fakeClient{}})

	tok, err := c.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, epoch.Add(DefaultCachedLifetime), tok.Expiry)
}
