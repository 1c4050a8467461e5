// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/findit/internal/observability"
	"github.com/pdiddy/findit/pkg/types"
)

const fakePDFContent = "%PDF-1.4 fake"

func newPublisherServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/pdf":
			w.Header().Set("Content-Type", "application/pdf")
			fmt.Fprint(w, fakePDFContent)
		case r.URL.Path == "/octet":
			w.Header().Set("Content-Type", "application/octet-stream")
			fmt.Fprint(w, fakePDFContent)
		case r.URL.Path == "/octet-zip":
			w.Header().Set("Content-Type", "application/octet-stream")
			fmt.Fprint(w, "PK\x03\x04 not a pdf")
		case r.URL.Path == "/paywall":
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, "<html><body><h1>Subscribe now</h1> to read this article.</body></html>")
		case r.URL.Path == "/forbidden":
			w.WriteHeader(http.StatusForbidden)
		case r.URL.Path == "/login":
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, "<html><body>Please log in with your institution.</body></html>")
		case r.URL.Path == "/landing":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, "<html><head><title>Article</title></head><body><a>Sign in</a> <a>Subscribe</a> Abstract...</body></html>")
		case r.URL.Path == "/wall":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html><body>Purchase this article for $39.95</body></html>")
		case r.URL.Path == "/soft404":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html><body>Sorry, page not found.</body></html>")
		case r.URL.Path == "/post-only":
			w.WriteHeader(http.StatusMethodNotAllowed)
		case r.URL.Path == "/unavailable":
			w.WriteHeader(http.StatusServiceUnavailable)
		case strings.HasPrefix(r.URL.Path, "/hop/"):
			n, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/hop/"))
			if n == 0 {
				w.Header().Set("Content-Type", "application/pdf")
				fmt.Fprint(w, fakePDFContent)
				return
			}
			http.Redirect(w, r, fmt.Sprintf("/hop/%d", n-1), http.StatusFound)
		case r.URL.Path == "/slow":
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestVerify(t *testing.T) {
	ts := newPublisherServer(t)
	defer ts.Close()

	e := New("findit-test", zerolog.Nop(), nil)

	tests := []struct {
		path     string
		wantKind types.ErrorKind
		wantDesc string
		status   int
	}{
		{"/pdf", types.KindSuccess, "", 200},
		{"/octet", types.KindSuccess, "", 200},
		{"/octet-zip", types.KindNoFormat, "expected PDF, got application/zip", 200},
		{"/paywall", types.KindPaywall, "subscription required", 403},
		{"/forbidden", types.KindDenied, "access forbidden (HTTP 403)", 403},
		{"/login", types.KindDenied, "login required", 401},
		{"/missing", types.KindNotFound, "document not found (HTTP 404)", 404},
		{"/landing", types.KindNoFormat, "expected PDF, got text/html", 200},
		{"/wall", types.KindPaywall, "subscription required", 200},
		{"/soft404", types.KindNotFound, "document not found (soft 404 page)", 200},
		{"/post-only", types.KindNoFormat, "server requires POST, no GET URL available", 405},
		{"/unavailable", types.KindTxError, "server error (HTTP 503)", 503},
		{"/hop/3", types.KindSuccess, "", 200},
		{"/hop/5", types.KindTxError, "too many redirects (>3)", 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			out := e.Verify(context.Background(), ts.URL+tt.path, 5*time.Second, 3)
			assert.Equal(t, tt.wantKind, out.Classification)
			assert.Equal(t, tt.wantDesc, out.Description)
			assert.Equal(t, tt.status, out.HTTPStatus)
			assert.Equal(t, ts.URL+tt.path, out.AttemptedURL)
			assert.Equal(t, tt.wantKind == types.KindSuccess, out.OK())
		})
	}
}

func TestVerifyFailureReasons(t *testing.T) {
	ts := newPublisherServer(t)
	defer ts.Close()
	e := New("", zerolog.Nop(), nil)

	out := e.Verify(context.Background(), ts.URL+"/paywall", 5*time.Second, 3)
	require.NotNil(t, out.Failure())
	assert.Equal(t, "PAYWALL: subscription required - attempted: "+ts.URL+"/paywall", out.Failure().Reason())

	out = e.Verify(context.Background(), ts.URL+"/hop/5", 5*time.Second, 3)
	assert.Equal(t, "TXERROR: too many redirects (>3) - attempted: "+ts.URL+"/hop/5", out.Failure().Reason())

	out = e.Verify(context.Background(), ts.URL+"/pdf", 5*time.Second, 3)
	assert.Nil(t, out.Failure())
}

func TestVerifyTimeout(t *testing.T) {
	ts := newPublisherServer(t)
	defer ts.Close()
	e := New("", zerolog.Nop(), nil)

	start := time.Now()
	out := e.Verify(context.Background(), ts.URL+"/slow", 100*time.Millisecond, 3)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, types.KindTxError, out.Classification)
	assert.Equal(t, "request timed out after 100ms", out.Description)
}

func TestVerifyConnectionRefused(t *testing.T) {
	ts := newPublisherServer(t)
	addr := ts.URL
	ts.Close()

	out := New("", zerolog.Nop(), nil).Verify(context.Background(), addr+"/pdf", time.Second, 3)
	assert.Equal(t, types.KindTxError, out.Classification)
	assert.True(t, strings.HasPrefix(out.Description, "network error:"), out.Description)
}

func TestVerifyInvalidURL(t *testing.T) {
	out := New("", zerolog.Nop(), nil).Verify(context.Background(), "://bad", time.Second, 3)
	assert.Equal(t, types.KindTxError, out.Classification)
}

func TestVerifySendsOneRequest(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "findit-test", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	m := observability.NewMetrics(prometheus.NewRegistry())
	e := New("findit-test", zerolog.Nop(), m)
	out := e.Verify(context.Background(), ts.URL, time.Second, 3)
	assert.Equal(t, types.KindTxError, out.Classification)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Probes.WithLabelValues("TXERROR")))
}
