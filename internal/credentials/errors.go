package credentials

import (
	"fmt"
	"strings"
)

// ConfigurationError means a required secret is missing. It is fatal for
// the credential cache and never retried.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("credentials: missing configuration: %s", strings.Join(e.Missing, ", "))
}

// AuthorizationError wraps a failed provider handshake.
type AuthorizationError struct {
	Identity string
	Err      error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("credentials: authorizing %s: %v", e.Identity, e.Err)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// TokenFetchError means the provider did not hand out a usable token.
type TokenFetchError struct {
	Err error
}

func (e *TokenFetchError) Error() string {
	if e.Err == nil {
		return "credentials: provider returned no access token"
	}
	return fmt.Sprintf("credentials: fetching access token: %v", e.Err)
}

func (e *TokenFetchError) Unwrap() error { return e.Err }
