// Package auth provides the credential capability the sync layer consumes:
// something that can produce a usable bearer token on demand.
package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/collabdesk/collabdesk/internal/shared"
)

// CredentialProvider supplies a bearer credential and a readiness signal.
// AwaitReady blocks until a token is available or ctx is done.
type CredentialProvider interface {
	AwaitReady(ctx context.Context) (string, error)
}

// TokenSource fetches a fresh token from the session backend.
type TokenSource func(ctx context.Context) (string, error)

// expiryLeeway refreshes tokens slightly before they actually lapse.
const expiryLeeway = 30 * time.Second

// JWTProvider caches the token from a TokenSource and refreshes it when the
// JWT expiry claim says it is about to lapse. The token is not verified
// here, the client holds no signing secret; only the expiry claim is read.
type JWTProvider struct {
	source TokenSource

	mu    sync.Mutex
	token string
	now   func() time.Time
}

// NewJWTProvider wraps source.
func NewJWTProvider(source TokenSource) *JWTProvider {
	return &JWTProvider{source: source, now: time.Now}
}

// WithClock overrides the provider's notion of "now". Intended for tests.
func (p *JWTProvider) WithClock(now func() time.Time) *JWTProvider {
	p.now = now
	return p
}

// AwaitReady returns the cached token while it is still fresh, otherwise
// fetches a new one.
func (p *JWTProvider) AwaitReady(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && !p.expired(p.token) {
		return p.token, nil
	}

	token, err := p.source(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to obtain token: %w", err)
	}
	if token == "" {
		return "", shared.ErrorInvalidToken
	}
	if p.expired(token) {
		return "", fmt.Errorf("%w: source returned a stale token", shared.ErrorTokenExpired)
	}
	p.token = token
	return token, nil
}

// expired reads the exp claim without verifying the signature. A token that
// cannot be parsed, or carries no expiry, is treated as non-expiring: the
// backend remains the authority on rejecting it.
func (p *JWTProvider) expired(token string) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !p.now().Add(expiryLeeway).Before(claims.ExpiresAt.Time)
}

// HTTPTokenSource returns a TokenSource that fetches the token from a
// session endpoint. The endpoint answers a GET with the bare token in the
// response body. A nil client falls back to http.DefaultClient.
func HTTPTokenSource(endpoint string, client *http.Client) TokenSource {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return "", err
		}

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("failed to fetch token: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("failed to fetch token: %s", resp.Status)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read token response: %w", err)
		}
		return strings.TrimSpace(string(body)), nil
	}
}

// Static returns a provider that always yields the same token. Useful for
// tests and long-lived service credentials.
func Static(token string) CredentialProvider {
	return staticProvider(token)
}

type staticProvider string

func (s staticProvider) AwaitReady(context.Context) (string, error) {
	if s == "" {
		return "", shared.ErrorInvalidToken
	}
	return string(s), nil
}
