// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/findit/internal/kvstore"
	"github.com/pdiddy/findit/pkg/types"
)

const efetchJBC = `<?xml version="1.0" ?>
<!DOCTYPE PubmedArticleSet PUBLIC "-//NLM//DTD PubMedArticle, 1st January 2024//EN" "https://dtd.nlm.nih.gov/ncbi/pubmed/out/pubmed_240101.dtd">
<PubmedArticleSet>
<PubmedArticle>
  <MedlineCitation Status="MEDLINE" Owner="NLM">
    <PMID Version="1">9632709</PMID>
    <Article PubModel="Print">
      <Journal>
        <JournalIssue CitedMedium="Print">
          <Volume>273</Volume>
          <Issue>26</Issue>
        </JournalIssue>
        <Title>The Journal of biological chemistry</Title>
        <ISOAbbreviation>J Biol Chem</ISOAbbreviation>
      </Journal>
      <Pagination><MedlinePgn>16025-31</MedlinePgn></Pagination>
      <ELocationID EIdType="doi" ValidYN="Y">10.1074/JBC.273.26.16025</ELocationID>
    </Article>
    <MedlineJournalInfo><MedlineTA>J Biol Chem</MedlineTA></MedlineJournalInfo>
  </MedlineCitation>
  <PubmedData>
    <ArticleIdList>
      <ArticleId IdType="pubmed">9632709</ArticleId>
      <ArticleId IdType="pii">S0021-9258(19)59384-6</ArticleId>
      <ArticleId IdType="pmc">PMC1234567</ArticleId>
    </ArticleIdList>
  </PubmedData>
</PubmedArticle>
</PubmedArticleSet>`

const emptySet = `<?xml version="1.0" ?><PubmedArticleSet></PubmedArticleSet>`

func esearch(ids ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<eSearchResult><Count>%d</Count><IdList>", len(ids))
	for _, id := range ids {
		fmt.Fprintf(&b, "<Id>%s</Id>", id)
	}
	b.WriteString("</IdList></eSearchResult>")
	return b.String()
}

type fakeAPIs struct {
	eutils   *httptest.Server
	crossref *httptest.Server
	requests atomic.Int32
	lastTerm atomic.Value
}

func newFakeAPIs(t *testing.T) *fakeAPIs {
	t.Helper()
	f := &fakeAPIs{}
	f.eutils = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		q := r.URL.Query()
		switch r.URL.Path {
		case "/esearch.fcgi":
			f.lastTerm.Store(q.Get("term"))
			switch q.Get("term") {
			case `"10.1074/jbc.273.26.16025"[doi]`, "PMC1234567[pmcid]":
				fmt.Fprint(w, esearch("9632709"))
			default:
				fmt.Fprint(w, esearch())
			}
		case "/efetch.fcgi":
			if q.Get("id") == "9632709" {
				fmt.Fprint(w, efetchJBC)
				return
			}
			fmt.Fprint(w, emptySet)
		default:
			http.NotFound(w, r)
		}
	}))
	f.crossref = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		if r.URL.Path == "/works/10.1000/example" {
			assert.Equal(t, "me@example.org", r.URL.Query().Get("mailto"))
			fmt.Fprint(w, `{"status":"ok","message":{"DOI":"10.1000/EXAMPLE","publisher":"Example Press",`+
				`"container-title":["Journal of Examples"],"volume":"4","issue":"2","page":"101-110"}}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "Resource not found.")
	}))
	t.Cleanup(func() {
		f.eutils.Close()
		f.crossref.Close()
	})
	return f
}

func newProvider(t *testing.T, f *fakeAPIs) *Provider {
	t.Helper()
	store, err := kvstore.Open(filepath.Join(t.TempDir(), "upstream.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := types.Config{Upstream: types.UpstreamConfig{
		EutilsBaseURL:   f.eutils.URL,
		CrossRefBaseURL: f.crossref.URL + "/works",
		Mailto:          "me@example.org",
		RateLimit:       100,
	}}
	return New(store, cfg, zerolog.Nop(), nil)
}

func TestGetRecordPMID(t *testing.T) {
	f := newFakeAPIs(t)
	p := newProvider(t, f)

	rec, err := p.GetRecord(context.Background(), PMID, "9632709")
	require.NoError(t, err)
	assert.Equal(t, types.BibliographicRecord{
		PMID:        "9632709",
		DOI:         "10.1074/jbc.273.26.16025",
		PII:         "S0021-9258(19)59384-6",
		JournalName: "J Biol Chem",
		Volume:      "273",
		Issue:       "26",
		FirstPage:   "16025",
		PMCID:       "PMC1234567",
	}, rec)
}

func TestGetRecordPMIDNotFound(t *testing.T) {
	p := newProvider(t, newFakeAPIs(t))
	_, err := p.GetRecord(context.Background(), PMID, "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRecordDOIInPubMed(t *testing.T) {
	f := newFakeAPIs(t)
	p := newProvider(t, f)

	rec, err := p.GetRecord(context.Background(), DOI, "10.1074/jbc.273.26.16025")
	require.NoError(t, err)
	assert.Equal(t, "9632709", rec.PMID)
	assert.Equal(t, "J Biol Chem", rec.JournalName)
	assert.Equal(t, `"10.1074/jbc.273.26.16025"[doi]`, f.lastTerm.Load())
}

func TestGetRecordDOIFallsBackToCrossRef(t *testing.T) {
	f := newFakeAPIs(t)
	p := newProvider(t, f)

	rec, err := p.GetRecord(context.Background(), DOI, "10.1000/example")
	require.NoError(t, err)
	assert.Equal(t, types.BibliographicRecord{
		DOI:           "10.1000/example",
		JournalName:   "Journal of Examples",
		PublisherName: "Example Press",
		Volume:        "4",
		Issue:         "2",
		FirstPage:     "101",
	}, rec)
}

func TestGetRecordDOIUnknownEverywhere(t *testing.T) {
	p := newProvider(t, newFakeAPIs(t))
	_, err := p.GetRecord(context.Background(), DOI, "10.9999/nothing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRecordPMC(t *testing.T) {
	p := newProvider(t, newFakeAPIs(t))
	rec, err := p.GetRecord(context.Background(), PMCID, "PMC1234567")
	require.NoError(t, err)
	assert.Equal(t, "9632709", rec.PMID)
	assert.Equal(t, "PMC1234567", rec.PMCID)
}

func TestGetRecordIsCached(t *testing.T) {
	f := newFakeAPIs(t)
	p := newProvider(t, f)

	_, err := p.GetRecord(context.Background(), DOI, "10.1074/jbc.273.26.16025")
	require.NoError(t, err)
	before := f.requests.Load()
	_, err = p.GetRecord(context.Background(), DOI, "10.1074/jbc.273.26.16025")
	require.NoError(t, err)
	assert.Equal(t, before, f.requests.Load())
}

func TestGetRecordUpstreamOutage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	p := New(nil, types.Config{Upstream: types.UpstreamConfig{EutilsBaseURL: ts.URL, RateLimit: 100}}, zerolog.Nop(), nil)
	_, err := p.GetRecord(context.Background(), PMID, "9632709")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestGetRecordUnsupportedType(t *testing.T) {
	p := New(nil, types.Config{}, zerolog.Nop(), nil)
	_, err := p.GetRecord(context.Background(), IDType("isbn"), "x")
	assert.ErrorContains(t, err, "unsupported identifier type")
}
