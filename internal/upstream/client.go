// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package upstream fetches metadata API payloads through a token-bucket rate
// limiter and a persistent cache. Only payloads that pass validation are
// cached; concurrent fetches of the same request share one network call.
package upstream

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/pdiddy/findit/internal/httputil"
	"github.com/pdiddy/findit/internal/kvstore"
	"github.com/pdiddy/findit/internal/observability"
)

// maxPayloadBytes bounds how much of a response body is read.
const maxPayloadBytes = 10 << 20

// ErrInvalidPayload marks a response that failed validation. Such payloads
// are returned to the caller but never cached.
var ErrInvalidPayload = errors.New("invalid upstream payload")

// StatusError reports a non-200 response from the metadata API.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned HTTP %d", e.URL, e.Code)
}

// Validator checks that a payload is well-formed before it is cached.
type Validator func(body []byte) error

// Config configures one rate-limited client.
type Config struct {
	// RateLimit is the sustained requests per second.
	RateLimit float64

	// Burst is the bucket size. Zero means one token per whole request per
	// second, with a minimum of one.
	Burst int

	Timeout   time.Duration
	UserAgent string

	// Credentials are query parameters added at request time. They are not
	// part of the cache key, so rotating a key keeps cached payloads valid.
	Credentials map[string]string

	// MaxRetries bounds HTTP 429 retries; zero selects the default.
	MaxRetries int
}

// Client is safe for concurrent use.
type Client struct {
	http        *http.Client
	store       *kvstore.Store
	limiter     *rate.Limiter
	group       singleflight.Group
	userAgent   string
	credentials map[string]string
	maxRetries  int
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// New creates a client backed by store. A nil store disables caching.
func New(store *kvstore.Store, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	burst := cfg.Burst
	if burst <= 0 {
		burst = max(1, int(cfg.RateLimit))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:        &http.Client{Timeout: timeout},
		store:       store,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		userAgent:   cfg.UserAgent,
		credentials: cfg.Credentials,
		maxRetries:  cfg.MaxRetries,
		logger:      logger,
		metrics:     metrics,
	}
}

// Limit returns the configured requests per second.
func (c *Client) Limit() rate.Limit {
	return c.limiter.Limit()
}

// CacheKey hashes the endpoint and its parameters sorted by name.
func CacheKey(endpoint string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(endpoint)
	for i, k := range names {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Fetch returns the payload for endpoint with params. A cached payload is
// returned without touching the network. On a miss one request is sent
// after a rate-limit token is acquired; the body is cached only when
// validate accepts it.
func (c *Client) Fetch(ctx context.Context, endpoint string, params map[string]string, validate Validator) ([]byte, error) {
	key := CacheKey(endpoint, params)

	if body, ok := c.cached(ctx, key); ok {
		return body, nil
	}

	// The flight outlives any single caller: joiners must not inherit the
	// first caller's deadline. The HTTP client timeout still bounds it.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// A flight that finished just before this one may have stored it.
		if body, ok := c.cached(flightCtx, key); ok {
			return body, nil
		}
		return c.fetch(flightCtx, key, endpoint, params, validate)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.logger.Debug().Str("endpoint", endpoint).Msg("joined in-flight upstream request")
		}
		body, _ := res.Val.([]byte)
		return body, res.Err
	}
}

func (c *Client) cached(ctx context.Context, key string) ([]byte, bool) {
	if c.store == nil {
		return nil, false
	}
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			c.logger.Warn().Err(err).Msg("reading upstream cache")
		}
		c.metrics.ObserveCache("upstream", false)
		return nil, false
	}
	c.metrics.ObserveCache("upstream", true)
	return entry.Value, true
}

func (c *Client) fetch(ctx context.Context, key, endpoint string, params map[string]string, validate Validator) ([]byte, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	for k, v := range c.credentials {
		if v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	host := u.Host
	resp, err := httputil.DoWithRetry(c.logger.WithContext(ctx), c.http, req, c.maxRetries, c.limiter.Wait)
	if err != nil {
		c.metrics.ObserveUpstream(host, "error")
		return nil, fmt.Errorf("requesting %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		c.metrics.ObserveUpstream(host, "error")
		return nil, fmt.Errorf("reading %s: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.metrics.ObserveUpstream(host, "http_error")
		return body, &StatusError{URL: endpoint, Code: resp.StatusCode}
	}
	if validate != nil {
		if err := validate(body); err != nil {
			c.metrics.ObserveUpstream(host, "invalid")
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("rejected upstream payload, not caching")
			return body, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	c.metrics.ObserveUpstream(host, "ok")

	if c.store != nil {
		if err := c.store.Put(ctx, key, body); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("writing upstream cache")
		}
	}
	return body, nil
}
