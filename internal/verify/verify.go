// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package verify probes a candidate document URL once, under a hard
// timeout and redirect cap, and classifies what came back.
package verify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/pdiddy/findit/internal/httputil"
	"github.com/pdiddy/findit/internal/observability"
	"github.com/pdiddy/findit/pkg/types"
)

// sniffLimit bounds how much of the response body is read.
const sniffLimit = 64 << 10

// Body phrases, matched case-insensitively. On a 401/403 any hint of a
// purchase or login decides between PAYWALL and DENIED. A 2xx HTML page
// usually carries "subscribe" and "sign in" in its navigation, so only
// explicit wall wording counts there.
var (
	paywallHints = [][]byte{
		[]byte("subscribe"), []byte("subscription"), []byte("purchase"),
		[]byte("buy this article"), []byte("rent this article"), []byte("pay per view"),
	}
	loginHints = [][]byte{
		[]byte("login"), []byte("log in"), []byte("sign in"), []byte("institutional access"),
	}
	paywallWalls = [][]byte{
		[]byte("subscription required"), []byte("subscribe to view"), []byte("purchase this article"),
		[]byte("buy this article"), []byte("rent this article"), []byte("pay per view"),
	}
	loginWalls = [][]byte{
		[]byte("login required"), []byte("please log in to"), []byte("sign in to access"),
		[]byte("institutional login required"),
	}
	notFoundPages = [][]byte{
		[]byte("page not found"), []byte("article not found"), []byte("404 not found"),
		[]byte("doi not found"), []byte("the requested url was not found"),
	}
)

// pdfTypes are the media types accepted as the expected document.
var pdfTypes = map[string]bool{
	"application/pdf":   true,
	"application/x-pdf": true,
}

// genericTypes carry no information; the body decides.
var genericTypes = map[string]bool{
	"":                           true,
	"application/octet-stream":   true,
	"binary/octet-stream":        true,
	"application/download":       true,
	"application/force-download": true,
}

// Engine sends verification probes.
type Engine struct {
	userAgent string
	logger    zerolog.Logger
	metrics   *observability.Metrics
	newClient func(timeout time.Duration, maxRedirects int) *http.Client
}

// New returns an Engine that identifies itself with userAgent.
func New(userAgent string, logger zerolog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		userAgent: userAgent,
		logger:    logger,
		metrics:   metrics,
		newClient: httputil.NewBoundedClient,
	}
}

// Verify sends one GET to candidate and classifies the response. It never
// retries; a deadline or redirect-cap breach is reported as TXERROR.
func (e *Engine) Verify(ctx context.Context, candidate string, timeout time.Duration, maxRedirects int) types.VerificationOutcome {
	out := e.probe(ctx, candidate, timeout, maxRedirects)
	e.metrics.ObserveProbe(string(out.Classification))
	e.logger.Debug().
		Str("url", candidate).
		Str("classification", string(out.Classification)).
		Int("status", out.HTTPStatus).
		Str("content_type", out.ContentType).
		Msg("verification probe")
	return out
}

func (e *Engine) probe(ctx context.Context, candidate string, timeout time.Duration, maxRedirects int) types.VerificationOutcome {
	out := types.VerificationOutcome{AttemptedURL: candidate}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		out.Classification = types.KindTxError
		out.Description = "invalid URL: " + err.Error()
		return out
	}
	req.Header.Set("Accept", "application/pdf,*/*;q=0.8")
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.newClient(timeout, maxRedirects).Do(req)
	if err != nil {
		out.Classification = types.KindTxError
		out.Description = httputil.DescribeTransportError(err, timeout, maxRedirects)
		return out
	}
	defer resp.Body.Close()

	head, _ := io.ReadAll(io.LimitReader(resp.Body, sniffLimit))
	out.HTTPStatus = resp.StatusCode
	out.ContentType = resp.Header.Get("Content-Type")
	out.Classification, out.Description = classify(resp.StatusCode, out.ContentType, head)
	return out
}

// classify applies the status and content rules in order.
func classify(status int, contentType string, head []byte) (types.ErrorKind, string) {
	lower := bytes.ToLower(head)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		switch {
		case containsAny(lower, paywallHints):
			return types.KindPaywall, "subscription required"
		case containsAny(lower, loginHints):
			return types.KindDenied, "login required"
		default:
			return types.KindDenied, fmt.Sprintf("access forbidden (HTTP %d)", status)
		}
	case status == http.StatusPaymentRequired:
		return types.KindPaywall, "subscription required"
	case status == http.StatusNotFound || status == http.StatusGone:
		return types.KindNotFound, fmt.Sprintf("document not found (HTTP %d)", status)
	case status == http.StatusMethodNotAllowed:
		return types.KindNoFormat, "server requires POST, no GET URL available"
	case status == http.StatusTooManyRequests:
		return types.KindTxError, "rate limited by publisher (HTTP 429)"
	case status >= 500:
		return types.KindTxError, fmt.Sprintf("server error (HTTP %d)", status)
	case status < 200 || status > 299:
		return types.KindTxError, fmt.Sprintf("unexpected HTTP status %d", status)
	}

	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = ""
	}
	if pdfTypes[mt] {
		return types.KindSuccess, ""
	}
	if genericTypes[mt] {
		detected := mimetype.Detect(head)
		if detected.Is("application/pdf") {
			return types.KindSuccess, ""
		}
		mt = detected.String()
		if parsed, _, err := mime.ParseMediaType(mt); err == nil {
			mt = parsed
		}
	}

	if mt == "text/html" || mt == "application/xhtml+xml" {
		switch {
		case containsAny(lower, paywallWalls):
			return types.KindPaywall, "subscription required"
		case containsAny(lower, loginWalls):
			return types.KindDenied, "login required"
		case containsAny(lower, notFoundPages):
			return types.KindNotFound, "document not found (soft 404 page)"
		}
	}
	return types.KindNoFormat, "expected PDF, got " + mt
}

func containsAny(body []byte, needles [][]byte) bool {
	for _, n := range needles {
		if bytes.Contains(body, n) {
			return true
		}
	}
	return false
}
