// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package strategy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pdiddy/findit/pkg/types"
)

// openAlexAPIBase is the OpenAlex works endpoint. Declared as a var so tests
// can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works/"

// openAlexResponse captures the fields we need from an OpenAlex work record.
type openAlexResponse struct {
	BestOALocation *openAlexLocation  `json:"best_oa_location"`
	Locations      []openAlexLocation `json:"locations"`
}

// openAlexLocation represents an open-access location in the OpenAlex response.
type openAlexLocation struct {
	PDFURL     string `json:"pdf_url"`
	LandingURL string `json:"landing_page_url"`
	IsOA       bool   `json:"is_oa"`
}

// OpenAlex asks OpenAlex for the best open-access PDF of a DOI. The API
// call is its only network request; the listed URLs are not fetched.
type OpenAlex struct {
	fetcher fetcher
	mailto  string
}

// ID returns "openalex".
func (*OpenAlex) ID() string { return "openalex" }

// Required returns doi.
func (*OpenAlex) Required(map[string]string) types.FieldSet {
	return types.NewFieldSet(types.FieldDOI)
}

// Invoke queries the works API once. The best OA PDF is the primary
// candidate; another open-access location's PDF, if listed, is the backup.
func (o *OpenAlex) Invoke(ctx context.Context, rec types.BibliographicRecord, _ map[string]string) (types.ResolutionAttempt, error) {
	attempt := types.ResolutionAttempt{StrategyID: o.ID()}
	doi := rec.Field(types.FieldDOI)
	if doi == "" {
		attempt.MissingFields = o.Required(nil)
		attempt.Failure = types.Failuref(types.KindMissing, "", "%s required", types.FieldDOI)
		return attempt, nil
	}

	apiURL := openAlexAPIBase + "https://doi.org/" + escapePath(doi)
	if o.mailto != "" {
		apiURL += "?mailto=" + url.QueryEscape(o.mailto)
	}

	resp, body, err := o.fetcher.get(ctx, apiURL, "application/json")
	if err != nil {
		attempt.Failure = o.fetcher.transportFailure(err, "")
		return attempt, nil
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		attempt.Failure = types.Failuref(types.KindNotFound, "", "DOI not known to OpenAlex")
		return attempt, nil
	case resp.StatusCode != http.StatusOK:
		attempt.Failure = types.Failuref(types.KindTxError, "", "OpenAlex API returned HTTP %d", resp.StatusCode)
		return attempt, nil
	}

	var oa openAlexResponse
	if err := json.Unmarshal(body, &oa); err != nil {
		attempt.Failure = types.Failuref(types.KindTxError, "", "parsing OpenAlex response: %v", err)
		return attempt, nil
	}

	if oa.BestOALocation == nil || oa.BestOALocation.PDFURL == "" {
		attempt.Failure = types.Failuref(types.KindNoFormat, "", "no open-access PDF listed by OpenAlex")
		return attempt, nil
	}
	primary := oa.BestOALocation.PDFURL
	attempt.Candidates = []string{primary}
	for _, loc := range oa.Locations {
		if loc.IsOA && loc.PDFURL != "" && loc.PDFURL != primary {
			attempt.Candidates = append(attempt.Candidates, loc.PDFURL)
			break
		}
	}
	return attempt, nil
}
