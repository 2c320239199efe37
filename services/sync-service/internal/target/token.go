package target

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/stoik/contactsync/services/sync-service/internal/logging"
	"github.com/stoik/contactsync/services/sync-service/internal/metrics"
	"github.com/stoik/contactsync/services/sync-service/internal/syncerr"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenExpirySkew is how long before expiry a cached token stops being reused.
const TokenExpirySkew = 60 * time.Second

// TokenFetcher performs one token request against the authorization server.
type TokenFetcher func(ctx context.Context) (*oauth2.Token, error)

// ClientCredentials returns a fetcher performing the OAuth2 client-credentials
// grant with the credentials sent in the request body.
func ClientCredentials(tokenURL, clientID, clientSecret string, httpClient *http.Client) TokenFetcher {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	return func(ctx context.Context) (*oauth2.Token, error) {
		if httpClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		}
		// Config.Token always hits the endpoint; caching is TokenCache's job.
		return cfg.Token(ctx)
	}
}

// TokenCache holds the single access token shared by every worker.
// Refreshes are serialized: concurrent callers block on the mutex and reuse
// whatever the first caller fetched.
type TokenCache struct {
	fetch TokenFetcher
	now   func() time.Time

	mu    sync.Mutex
	token *oauth2.Token
}

// NewTokenCache creates an empty cache backed by fetch.
func NewTokenCache(fetch TokenFetcher) *TokenCache {
	return &TokenCache{fetch: fetch, now: time.Now}
}

// SetClock replaces the clock used for expiry checks.
func (c *TokenCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Token returns a cached access token, fetching a new one when the cached
// token expires within TokenExpirySkew.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != nil && c.token.Expiry.After(now.Add(TokenExpirySkew)) {
		return c.token.AccessToken, nil
	}

	tok, err := c.fetch(ctx)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		return "", syncerr.E(syncerr.KindAuth, "fetch access token", fmt.Errorf("failed to get token: %w", err))
	}
	if err := validateToken(tok, now); err != nil {
		metrics.TokenRefreshes.WithLabelValues("invalid").Inc()
		return "", syncerr.E(syncerr.KindAuth, "fetch access token", err)
	}

	metrics.TokenRefreshes.WithLabelValues("ok").Inc()
	logging.Debug().Time("expires_at", tok.Expiry).Msg("obtained marketing API access token")

	c.token = tok
	return tok.AccessToken, nil
}

// Invalidate drops the cached token if it is still stale. A token that was
// already replaced by another worker's refresh is kept.
func (c *TokenCache) Invalidate(stale string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != nil && c.token.AccessToken == stale {
		c.token = nil
	}
}

func validateToken(tok *oauth2.Token, now time.Time) error {
	if tok == nil || tok.AccessToken == "" {
		return errors.New("invalid token response: missing access_token")
	}
	if tok.Expiry.IsZero() || !tok.Expiry.After(now) {
		return errors.New("invalid token response: missing or non-positive expires_in")
	}
	return nil
}
