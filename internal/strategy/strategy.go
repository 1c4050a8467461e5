// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package strategy holds the URL-construction strategies the dispatcher
// selects through the registry. Each strategy is a function of the
// bibliographic record and its descriptor config; it performs at most one
// network fetch and never retries or tries alternative URL shapes.
package strategy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/findit/internal/httputil"
	"github.com/pdiddy/findit/pkg/types"
)

// Strategy builds candidate document URLs for a record.
type Strategy interface {
	// ID is the name registry entries refer to.
	ID() string

	// Required returns the record fields the strategy needs under cfg.
	Required(cfg map[string]string) types.FieldSet

	// Invoke builds zero to two candidate URLs. Operational failures are
	// reported in the attempt's Failure; a returned error means the
	// strategy itself is broken (bad config, programming error).
	Invoke(ctx context.Context, rec types.BibliographicRecord, cfg map[string]string) (types.ResolutionAttempt, error)
}

// Catalog maps strategy ids to implementations.
type Catalog struct {
	byID map[string]Strategy
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]Strategy)}
}

// Register adds s, rejecting a second strategy with the same id.
func (c *Catalog) Register(s Strategy) error {
	if _, exists := c.byID[s.ID()]; exists {
		return fmt.Errorf("strategy %q already registered", s.ID())
	}
	c.byID[s.ID()] = s
	return nil
}

// Get returns the strategy registered under id.
func (c *Catalog) Get(id string) (Strategy, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// IDs returns the registered ids in lexical order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Builtin returns the catalog of built-in strategies. Fetching strategies
// share one bounded client built from cfg; mailto identifies the caller to
// OpenAlex.
func Builtin(cfg types.HTTPConfig, mailto string) *Catalog {
	f := fetcher{
		client:       httputil.NewBoundedClient(cfg.Timeout, cfg.MaxRedirects),
		userAgent:    cfg.UserAgent,
		timeout:      cfg.Timeout,
		maxRedirects: cfg.MaxRedirects,
	}
	c := NewCatalog()
	for _, s := range []Strategy{
		NewTemplate("template", "template", "backup_template"),
		NewTemplate("fallback-template", "fallback_template", "fallback_backup_template"),
		&PMC{},
		&DOILanding{fetcher: f},
		&OpenAlex{fetcher: f, mailto: mailto},
	} {
		// Ids above are distinct literals.
		_ = c.Register(s)
	}
	return c
}

// escapePath escapes each slash-separated segment of s, so a '?' or '#'
// inside an identifier stays part of the URL path.
func escapePath(s string) string {
	segments := strings.Split(s, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// fetcher performs the single permitted fetch of a strategy.
type fetcher struct {
	client       *http.Client
	userAgent    string
	timeout      time.Duration
	maxRedirects int
}

// maxFetchBody bounds how much of a landing page or API response is read.
const maxFetchBody = 2 << 20

func (f fetcher) get(ctx context.Context, rawURL, accept string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", accept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return resp, nil, err
	}
	return resp, body, nil
}

// transportFailure classifies a failed fetch as TXERROR.
func (f fetcher) transportFailure(err error, attempted string) *types.Failure {
	return &types.Failure{
		Kind:         types.KindTxError,
		Description:  httputil.DescribeTransportError(err, f.timeout, f.maxRedirects),
		AttemptedURL: attempted,
	}
}
