// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package strategy

import (
	"bytes"
	"context"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/findit/pkg/types"
)

// doiBase is the DOI resolver. Declared as a var so tests can substitute
// an httptest server.
var doiBase = "https://doi.org/"

// DOILanding follows the DOI to the publisher landing page and reads the
// citation_pdf_url meta tag that Highwire-style platforms publish. The
// landing fetch is the strategy's only network request.
type DOILanding struct {
	fetcher fetcher
}

// ID returns "doi-landing".
func (*DOILanding) ID() string { return "doi-landing" }

// Required returns doi.
func (*DOILanding) Required(map[string]string) types.FieldSet {
	return types.NewFieldSet(types.FieldDOI)
}

// Invoke fetches the landing page once.
func (d *DOILanding) Invoke(ctx context.Context, rec types.BibliographicRecord, _ map[string]string) (types.ResolutionAttempt, error) {
	attempt := types.ResolutionAttempt{StrategyID: d.ID()}
	doi := rec.Field(types.FieldDOI)
	if doi == "" {
		attempt.MissingFields = d.Required(nil)
		attempt.Failure = types.Failuref(types.KindMissing, "", "%s required", types.FieldDOI)
		return attempt, nil
	}

	landing := doiBase + escapePath(doi)
	resp, body, err := d.fetcher.get(ctx, landing, "text/html,application/xhtml+xml")
	if err != nil {
		attempt.Failure = d.fetcher.transportFailure(err, landing)
		return attempt, nil
	}
	final := resp.Request.URL

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		attempt.Failure = types.Failuref(types.KindNotFound, final.String(), "landing page not found (HTTP %d)", resp.StatusCode)
		return attempt, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		attempt.Failure = types.Failuref(types.KindDenied, final.String(), "landing page access forbidden (HTTP %d)", resp.StatusCode)
		return attempt, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		attempt.Failure = types.Failuref(types.KindTxError, final.String(), "unexpected HTTP status %d", resp.StatusCode)
		return attempt, nil
	}

	// The DOI may resolve straight to the document.
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt == "application/pdf" {
		attempt.Candidates = []string{final.String()}
		return attempt, nil
	}

	pdfURL := citationPDFURL(body, final)
	if pdfURL == "" {
		attempt.Failure = types.Failuref(types.KindNoFormat, final.String(), "no citation_pdf_url on landing page")
		return attempt, nil
	}
	attempt.Candidates = []string{pdfURL}
	return attempt, nil
}

// citationPDFURL returns the first citation_pdf_url meta content,
// resolved against base, or "".
func citationPDFURL(page []byte, base *url.URL) string {
	z := html.NewTokenizer(bytes.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) == "body" {
				return ""
			}
			if string(name) != "meta" || !hasAttr {
				continue
			}
			var metaName, content string
			for more := true; more; {
				var key, val []byte
				key, val, more = z.TagAttr()
				switch string(key) {
				case "name", "property":
					metaName = strings.ToLower(string(val))
				case "content":
					content = strings.TrimSpace(string(val))
				}
			}
			if metaName != "citation_pdf_url" || content == "" {
				continue
			}
			ref, err := url.Parse(content)
			if err != nil {
				return ""
			}
			return base.ResolveReference(ref).String()
		}
	}
}
