// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// ErrTooManyRedirects is returned by a bounded client when a response
// would take it past its redirect cap.
var ErrTooManyRedirects = errors.New("too many redirects")

// NewBoundedClient returns a client with a hard wall-clock timeout that
// follows at most maxRedirects redirect hops. A negative maxRedirects
// disables following entirely.
func NewBoundedClient(timeout time.Duration, maxRedirects int) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// via holds every request already sent, so len(via) is the
			// number of the hop about to be taken.
			if len(via) > maxRedirects {
				return fmt.Errorf("%w (>%d)", ErrTooManyRedirects, maxRedirects)
			}
			return nil
		},
	}
}

// DescribeTransportError renders a transport-level failure for a Reason.
func DescribeTransportError(err error, timeout time.Duration, maxRedirects int) string {
	var netErr net.Error
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, ErrTooManyRedirects):
		return fmt.Sprintf("too many redirects (>%d)", maxRedirects)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Sprintf("request timed out after %s", timeout)
	case errors.As(err, &dnsErr):
		return fmt.Sprintf("DNS lookup failed for %s", dnsErr.Name)
	case errors.Is(err, context.Canceled):
		return "request canceled"
	default:
		return fmt.Sprintf("network error: %v", unwrapURLError(err))
	}
}

// unwrapURLError drops the "Get \"url\":" prefix that *url.Error adds,
// since the attempted URL is reported separately.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}
