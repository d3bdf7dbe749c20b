// Package token supplies bearer tokens for the inference backend using the
// OAuth2 client-credentials grant.
//
// Tokens are cached and refreshed a configurable buffer before they expire.
// Concurrent callers share one refresh: oauth2's reuse token source holds
// its lock across the fetch, so only one token request is in flight at a
// time and the others receive its result.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"mercator-hq/conduit/pkg/providers"
)

// Config contains token manager configuration.
type Config struct {
	// AuthURL is the token endpoint base. "/oauth/token" is appended unless
	// the URL already ends with it.
	AuthURL string

	// ClientID is the OAuth2 client ID.
	ClientID string

	// ClientSecret is the OAuth2 client secret.
	ClientSecret string

	// ExpiryBuffer refreshes the token this long before it expires.
	ExpiryBuffer time.Duration

	// MaxTries bounds token fetch attempts (default 3).
	MaxTries uint

	// Timeout bounds one token request (default 15s).
	Timeout time.Duration

	// HTTPClient overrides the client used for token requests.
	HTTPClient *http.Client
}

// Manager implements the backend TokenManager collaborator.
type Manager struct {
	source oauth2.TokenSource

	mu        sync.RWMutex
	expiresAt time.Time
	fetches   int
}

// New creates a token manager. No request is made until the first call to
// AccessToken.
func New(cfg Config) (*Manager, error) {
	if cfg.AuthURL == "" || cfg.ClientID == "" {
		return nil, &providers.ConfigurationError{
			Vendor:  "backend",
			Field:   "auth_url",
			Message: "auth URL and client ID are required for backend tokens",
		}
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     TokenURL(cfg.AuthURL),
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	m := &Manager{}
	// The fetch context only carries the HTTP client; per-call cancellation
	// is bounded by the client timeout.
	fetchCtx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
	base := &retryingSource{
		base:     cc.TokenSource(fetchCtx),
		maxTries: cfg.MaxTries,
		onFetch:  m.recordFetch,
	}
	m.source = oauth2.ReuseTokenSourceWithExpiry(nil, base, cfg.ExpiryBuffer)
	return m, nil
}

// TokenURL returns the token endpoint for an auth base URL.
func TokenURL(authURL string) string {
	u := strings.TrimRight(authURL, "/")
	if strings.HasSuffix(u, "/oauth/token") {
		return u
	}
	return u + "/oauth/token"
}

// AccessToken returns a valid bearer token, fetching a new one when the
// cached token is within the expiry buffer.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", providers.AsCancellation(err)
	}
	tok, err := m.source.Token()
	if err != nil {
		return "", &providers.UpstreamTransportError{
			Target:  "backend-auth",
			Message: "failed to obtain access token",
			Cause:   &providers.AuthError{Target: "backend-auth", Message: err.Error()},
		}
	}
	return tok.AccessToken, nil
}

// ExpiresAt returns the expiry of the most recently fetched token.
func (m *Manager) ExpiresAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expiresAt
}

// Fetches returns how many tokens have been fetched from the endpoint.
func (m *Manager) Fetches() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetches
}

func (m *Manager) recordFetch(tok *oauth2.Token) {
	m.mu.Lock()
	m.expiresAt = tok.Expiry
	m.fetches++
	m.mu.Unlock()
}

// retryingSource retries transient token endpoint failures with exponential
// backoff. 4xx answers other than 429 are permanent.
type retryingSource struct {
	base     oauth2.TokenSource
	maxTries uint
	onFetch  func(*oauth2.Token)
}

func (s *retryingSource) Token() (*oauth2.Token, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	tok, err := backoff.Retry(context.Background(), func() (*oauth2.Token, error) {
		tok, err := s.base.Token()
		if err == nil {
			return tok, nil
		}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			code := re.Response.StatusCode
			if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
				return nil, backoff.Permanent(err)
			}
		}
		slog.Warn("token request failed, retrying", "error", err)
		return nil, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.maxTries))
	if err != nil {
		return nil, fmt.Errorf("token endpoint: %w", err)
	}

	slog.Debug("fetched backend access token", "expires_at", tok.Expiry)
	if s.onFetch != nil {
		s.onFetch(tok)
	}
	return tok, nil
}
