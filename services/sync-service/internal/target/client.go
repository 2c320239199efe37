package target

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/spf13/viper"
	"github.com/stoik/contactsync/internal/models"
	"github.com/stoik/contactsync/services/sync-service/internal/logging"
	"github.com/stoik/contactsync/services/sync-service/internal/metrics"
	"golang.org/x/time/rate"
)

const breakerName = "marketing-api"

// errServerStatus marks 5xx responses as failures for the circuit breaker.
var errServerStatus = errors.New("server error status")

// Config configures the marketing API client.
type Config struct {
	BaseURL string
	// TokenURL defaults to BaseURL + /oauth/v2/token, the path Mautic serves
	// its OAuth2 token endpoint on. Set it for APIs that use /oauth/token.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	// RateLimit is the maximum requests per second; 0 disables limiting.
	RateLimit float64
	// BreakerFailures is the number of consecutive transport or 5xx failures
	// that opens the circuit; 0 disables the breaker.
	BreakerFailures uint32
}

// ConfigFromViper reads the target.* configuration keys.
func ConfigFromViper() Config {
	baseURL := viper.GetString("target.url")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	timeout := viper.GetDuration("target.timeout")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return Config{
		BaseURL:         baseURL,
		TokenURL:        viper.GetString("target.token_url"),
		ClientID:        viper.GetString("target.client_id"),
		ClientSecret:    viper.GetString("target.client_secret"),
		Timeout:         timeout,
		RateLimit:       viper.GetFloat64("target.rate_limit"),
		BreakerFailures: viper.GetUint32("target.breaker_failures"),
	}
}

// Client talks to the marketing API using a shared TokenCache.
type Client struct {
	baseURL string
	client  *http.Client
	tokens  *TokenCache
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*response]
}

type response struct {
	status int
	body   []byte
}

// NewClient creates a client that obtains tokens with the client-credentials
// grant.
func NewClient(cfg Config) *Client {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = strings.TrimRight(cfg.BaseURL, "/") + "/oauth/v2/token"
	}
	tokens := NewTokenCache(ClientCredentials(tokenURL, cfg.ClientID, cfg.ClientSecret, httpClient))
	return NewClientWithTokens(cfg, tokens)
}

// NewClientWithTokens creates a client around an existing token cache.
func NewClientWithTokens(cfg Config, tokens *TokenCache) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + "/api",
		client:  &http.Client{Timeout: timeout},
		tokens:  tokens,
	}

	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	if cfg.BreakerFailures > 0 {
		threshold := cfg.BreakerFailures
		metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
		c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
			Name:        breakerName,
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			},
		})
	}

	return c
}

// ListSegments implements API.ListSegments.
func (c *Client) ListSegments(ctx context.Context) ([]models.Segment, error) {
	var out struct {
		Lists json.RawMessage `json:"lists"`
	}
	if err := c.do(ctx, http.MethodGet, "/segments?limit=1000", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}

	segments, err := decodeCollection[models.Segment](out.Lists)
	if err != nil {
		return nil, fmt.Errorf("failed to decode segments: %w", err)
	}
	return segments, nil
}

// CreateSegment implements API.CreateSegment.
func (c *Client) CreateSegment(ctx context.Context, name, alias string) (models.Segment, error) {
	body := map[string]any{"name": name, "alias": alias, "isPublished": true}

	var out struct {
		List models.Segment `json:"list"`
	}
	if err := c.do(ctx, http.MethodPost, "/segments/new", body, &out); err != nil {
		return models.Segment{}, fmt.Errorf("failed to create segment %q: %w", name, err)
	}
	if out.List.ID == 0 {
		return models.Segment{}, fmt.Errorf("failed to create segment %q: response has no id", name)
	}
	return out.List, nil
}

// SearchContactsByEmail implements API.SearchContactsByEmail.
func (c *Client) SearchContactsByEmail(ctx context.Context, email string) ([]int64, error) {
	q := url.Values{}
	q.Set("search", "email:"+email)
	q.Set("minimal", "true")

	var out struct {
		Contacts json.RawMessage `json:"contacts"`
	}
	if err := c.do(ctx, http.MethodGet, "/contacts?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to search contacts: %w", err)
	}

	type contactRef struct {
		ID int64 `json:"id"`
	}
	refs, err := decodeCollection[contactRef](out.Contacts)
	if err != nil {
		return nil, fmt.Errorf("failed to decode contacts: %w", err)
	}

	ids := make([]int64, 0, len(refs))
	for _, r := range refs {
		if r.ID > 0 {
			ids = append(ids, r.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// CreateContact implements API.CreateContact.
func (c *Client) CreateContact(ctx context.Context, fields map[string]any) (int64, error) {
	var out struct {
		Contact struct {
			ID int64 `json:"id"`
		} `json:"contact"`
	}
	if err := c.do(ctx, http.MethodPost, "/contacts/new", fields, &out); err != nil {
		return 0, fmt.Errorf("failed to create contact: %w", err)
	}
	if out.Contact.ID == 0 {
		return 0, errors.New("failed to create contact: response has no id")
	}
	return out.Contact.ID, nil
}

// UpdateContact implements API.UpdateContact.
func (c *Client) UpdateContact(ctx context.Context, id int64, fields map[string]any) error {
	path := "/contacts/" + strconv.FormatInt(id, 10) + "/edit"
	if err := c.do(ctx, http.MethodPatch, path, fields, nil); err != nil {
		return fmt.Errorf("failed to update contact %d: %w", id, err)
	}
	return nil
}

// AddToSegment implements API.AddToSegment.
func (c *Client) AddToSegment(ctx context.Context, segmentID, contactID int64) error {
	path := fmt.Sprintf("/segments/%d/contact/%d/add", segmentID, contactID)
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("failed to add contact %d to segment %d: %w", contactID, segmentID, err)
	}
	return nil
}

// RemoveFromSegment implements API.RemoveFromSegment.
func (c *Client) RemoveFromSegment(ctx context.Context, segmentID, contactID int64) error {
	path := fmt.Sprintf("/segments/%d/contact/%d/remove", segmentID, contactID)
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("failed to remove contact %d from segment %d: %w", contactID, segmentID, err)
	}
	return nil
}

// do sends one authenticated request. A 401 invalidates the token and the
// request is re-issued exactly once with a fresh token.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return err
	}

	if resp.status == http.StatusUnauthorized {
		logging.Debug().Str("path", path).Msg("access token rejected, refreshing")
		c.tokens.Invalidate(token)
		token, err = c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		resp, err = c.send(ctx, method, path, payload, token)
		if err != nil {
			return err
		}
	}

	if resp.status < 200 || resp.status > 299 {
		return &StatusError{Method: method, Path: path, Status: resp.status, Body: resp.body}
	}

	if out != nil && len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (*response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	roundTrip := func() (*response, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		res, err := c.client.Do(req)
		if err != nil {
			metrics.TargetRequests.WithLabelValues(method, "error").Inc()
			return nil, fmt.Errorf("failed to call %s %s: %w", method, path, err)
		}
		defer res.Body.Close()

		data, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		metrics.TargetRequests.WithLabelValues(method, strconv.Itoa(res.StatusCode)).Inc()
		resp := &response{status: res.StatusCode, body: data}
		if res.StatusCode >= 500 {
			return resp, errServerStatus
		}
		return resp, nil
	}

	var (
		resp *response
		err  error
	)
	if c.breaker != nil {
		resp, err = c.breaker.Execute(roundTrip)
	} else {
		resp, err = roundTrip()
	}

	if errors.Is(err, errServerStatus) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// decodeCollection accepts either a JSON object keyed by id or an array.
// The API returns [] instead of {} when a collection is empty.
func decodeCollection[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var keyed map[string]T
	if err := json.Unmarshal(trimmed, &keyed); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(keyed))
	for k := range keyed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]T, 0, len(keyed))
	for _, k := range keys {
		items = append(items, keyed[k])
	}
	return items, nil
}
