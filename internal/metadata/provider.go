// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metadata looks up bibliographic records. PubMed E-utilities is
// the primary source; DOIs that PubMed does not index are looked up in
// CrossRef. All requests go through rate-limited cached upstream clients.
package metadata

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/findit/internal/kvstore"
	"github.com/pdiddy/findit/internal/observability"
	"github.com/pdiddy/findit/internal/upstream"
	"github.com/pdiddy/findit/pkg/types"
)

const (
	// DefaultEutilsBaseURL is the NCBI E-utilities root.
	DefaultEutilsBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultCrossRefBaseURL is the CrossRef works endpoint.
	DefaultCrossRefBaseURL = "https://api.crossref.org/works/"
)

// ErrNotFound is returned when no source knows the identifier.
var ErrNotFound = errors.New("identifier not found in metadata provider")

// IDType names the kind of identifier being looked up.
type IDType string

const (
	PMID  IDType = "pmid"
	DOI   IDType = "doi"
	PMCID IDType = "pmc"
)

// Provider resolves identifiers to records.
type Provider struct {
	eutils       *upstream.Client
	crossref     *upstream.Client
	eutilsBase   string
	crossrefBase string
	logger       zerolog.Logger
}

// New creates a provider whose upstream clients share store. The NCBI
// limiter runs at cfg.Upstream.EffectiveRateLimit; CrossRef at
// types.DefaultCrossRefLimit.
func New(store *kvstore.Store, cfg types.Config, logger zerolog.Logger, metrics *observability.Metrics) *Provider {
	eutilsBase := strings.TrimRight(cfg.Upstream.EutilsBaseURL, "/")
	if eutilsBase == "" {
		eutilsBase = DefaultEutilsBaseURL
	}
	crossrefBase := cfg.Upstream.CrossRefBaseURL
	if crossrefBase == "" {
		crossrefBase = DefaultCrossRefBaseURL
	}
	if !strings.HasSuffix(crossrefBase, "/") {
		crossrefBase += "/"
	}

	return &Provider{
		eutils: upstream.New(store, upstream.Config{
			RateLimit:   cfg.Upstream.EffectiveRateLimit(),
			Timeout:     cfg.HTTP.Timeout,
			UserAgent:   cfg.HTTP.UserAgent,
			Credentials: map[string]string{"api_key": cfg.Upstream.APIKey},
		}, logger, metrics),
		crossref: upstream.New(store, upstream.Config{
			RateLimit:   types.DefaultCrossRefLimit,
			Timeout:     cfg.HTTP.Timeout,
			UserAgent:   cfg.HTTP.UserAgent,
			Credentials: map[string]string{"mailto": cfg.Upstream.Mailto},
		}, logger, metrics),
		eutilsBase:   eutilsBase,
		crossrefBase: crossrefBase,
		logger:       logger,
	}
}

// GetRecord returns the record for id. It fails with ErrNotFound when
// neither PubMed nor, for DOIs, CrossRef knows the identifier.
func (p *Provider) GetRecord(ctx context.Context, idType IDType, id string) (types.BibliographicRecord, error) {
	switch idType {
	case PMID:
		return p.fetchPubMed(ctx, id)
	case PMCID:
		pmid, err := p.search(ctx, id+"[pmcid]")
		if err != nil {
			return types.BibliographicRecord{}, err
		}
		rec, err := p.fetchPubMed(ctx, pmid)
		if err != nil {
			return rec, err
		}
		rec.PMCID = firstNonEmpty(rec.PMCID, id)
		return rec, nil
	case DOI:
		pmid, err := p.search(ctx, fmt.Sprintf("%q[doi]", id))
		if errors.Is(err, ErrNotFound) {
			p.logger.Debug().Str("doi", id).Msg("DOI not in PubMed, trying CrossRef")
			return p.fetchCrossRef(ctx, id)
		}
		if err != nil {
			return types.BibliographicRecord{}, err
		}
		rec, err := p.fetchPubMed(ctx, pmid)
		if err != nil {
			return rec, err
		}
		rec.DOI = firstNonEmpty(rec.DOI, id)
		return rec, nil
	default:
		return types.BibliographicRecord{}, fmt.Errorf("unsupported identifier type %q", idType)
	}
}

// search runs esearch and returns the first PMID.
func (p *Provider) search(ctx context.Context, term string) (string, error) {
	body, err := p.eutils.Fetch(ctx, p.eutilsBase+"/esearch.fcgi", map[string]string{
		"db":      "pubmed",
		"term":    term,
		"retmode": "xml",
	}, upstream.XMLRoot("eSearchResult"))
	if err != nil {
		return "", fmt.Errorf("esearch: %w", err)
	}

	var res eSearchResult
	if err := xml.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("parsing esearch response: %w", err)
	}
	if len(res.IDList.IDs) == 0 {
		return "", ErrNotFound
	}
	return strings.TrimSpace(res.IDList.IDs[0]), nil
}

func (p *Provider) fetchPubMed(ctx context.Context, pmid string) (types.BibliographicRecord, error) {
	body, err := p.eutils.Fetch(ctx, p.eutilsBase+"/efetch.fcgi", map[string]string{
		"db":      "pubmed",
		"id":      pmid,
		"retmode": "xml",
	}, upstream.XMLRoot("PubmedArticleSet"))
	if err != nil {
		return types.BibliographicRecord{}, fmt.Errorf("efetch: %w", err)
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return types.BibliographicRecord{}, fmt.Errorf("parsing efetch response: %w", err)
	}
	if len(set.Articles) == 0 {
		return types.BibliographicRecord{}, ErrNotFound
	}
	rec := set.Articles[0].record()
	rec.PMID = firstNonEmpty(rec.PMID, pmid)
	return rec, nil
}

func (p *Provider) fetchCrossRef(ctx context.Context, doi string) (types.BibliographicRecord, error) {
	body, err := p.crossref.Fetch(ctx, p.crossrefBase+url.PathEscape(doi), nil, upstream.JSONObject("message"))
	var se *upstream.StatusError
	if errors.As(err, &se) && se.Code == 404 {
		return types.BibliographicRecord{}, ErrNotFound
	}
	if err != nil {
		return types.BibliographicRecord{}, fmt.Errorf("crossref: %w", err)
	}

	var res crossRefResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return types.BibliographicRecord{}, fmt.Errorf("parsing crossref response: %w", err)
	}
	rec := res.Message.record()
	rec.DOI = firstNonEmpty(rec.DOI, doi)
	return rec, nil
}
