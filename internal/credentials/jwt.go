package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"
)

// DefaultTokenURL is the token endpoint for service account assertions.
const DefaultTokenURL = "https://oauth2.googleapis.com/token"

var errNoProvider = errors.New("no authorization provider configured")

// JWTProvider authorizes a service identity with a signed JWT assertion.
type JWTProvider struct {
	TokenURL string
	Scopes   []string
	// HTTPClient is used for the token exchange. Nil uses http.DefaultClient.
	HTTPClient *http.Client
}

// Authorize checks that privateKey is a PEM encoded RSA key and returns a
// client that exchanges assertions for access tokens.
func (p *JWTProvider) Authorize(_ context.Context, identity, privateKey string) (SigningClient, error) {
	if _, err := jwtv5.ParseRSAPrivateKeyFromPEM([]byte(privateKey)); err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	tokenURL := p.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &jwtClient{
		conf: &jwt.Config{
			Email:      identity,
			PrivateKey: []byte(privateKey),
			Scopes:     p.Scopes,
			TokenURL:   tokenURL,
		},
		httpClient: p.HTTPClient,
	}, nil
}

type jwtClient struct {
	conf       *jwt.Config
	httpClient *http.Client
}

func (c *jwtClient) Token(ctx context.Context) (string, time.Time, error) {
	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	tok, err := c.conf.TokenSource(ctx).Token()
	if err != nil {
		return "", time.Time{}, err
	}
	return tok.AccessToken, tok.Expiry, nil
}
