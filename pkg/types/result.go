// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// ErrorKind is the closed set of reasons a resolution can fail.
type ErrorKind string

const (
	KindMissing  ErrorKind = "MISSING"
	KindNoFormat ErrorKind = "NOFORMAT"
	KindPaywall  ErrorKind = "PAYWALL"
	KindDenied   ErrorKind = "DENIED"
	KindNotFound ErrorKind = "NOTFOUND"
	KindTxError  ErrorKind = "TXERROR"

	// KindSuccess marks a verified document. It is not an error kind and
	// never appears in a Reason.
	KindSuccess ErrorKind = "SUCCESS"
)

// ErrorKinds lists the six failure kinds.
var ErrorKinds = []ErrorKind{KindMissing, KindNoFormat, KindPaywall, KindDenied, KindNotFound, KindTxError}

// Retryable reports whether a failure of this kind may clear on its own.
// Only transport failures qualify.
func (k ErrorKind) Retryable() bool {
	return k == KindTxError
}

// NoURL is written in place of the attempted URL when none was built.
const NoURL = "none"

// Failure is one classified operational failure.
type Failure struct {
	Kind         ErrorKind `json:"kind" yaml:"kind"`
	Description  string    `json:"description" yaml:"description"`
	AttemptedURL string    `json:"attempted_url,omitempty" yaml:"attempted_url,omitempty"`
}

// Reason renders the failure as "KIND: description - attempted: url".
func (f Failure) Reason() string {
	attempted := f.AttemptedURL
	if attempted == "" {
		attempted = NoURL
	}
	return fmt.Sprintf("%s: %s - attempted: %s", f.Kind, f.Description, attempted)
}

// Failuref builds a Failure with a formatted description.
func Failuref(kind ErrorKind, attempted, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Description: fmt.Sprintf(format, args...), AttemptedURL: attempted}
}

// ResolutionAttempt is the transient output of one strategy invocation.
// Candidates are ordered best first and hold at most two URLs.
type ResolutionAttempt struct {
	StrategyID    string
	Candidates    []string
	MissingFields FieldSet
	Failure       *Failure
}

// VerificationOutcome is the classified result of one network probe.
type VerificationOutcome struct {
	Classification ErrorKind `json:"classification"`
	Description    string    `json:"description,omitempty"`
	HTTPStatus     int       `json:"http_status,omitempty"`
	ContentType    string    `json:"content_type,omitempty"`
	AttemptedURL   string    `json:"attempted_url"`
}

// OK reports whether the probe confirmed the document.
func (o VerificationOutcome) OK() bool {
	return o.Classification == KindSuccess
}

// Failure converts a non-success outcome into a Failure. It returns nil
// for a successful outcome.
func (o VerificationOutcome) Failure() *Failure {
	if o.OK() {
		return nil
	}
	return &Failure{Kind: o.Classification, Description: o.Description, AttemptedURL: o.AttemptedURL}
}

// ResolutionResult is the cached, caller-visible outcome for one identifier.
// After a completed resolution exactly one of URL and Reason is set.
type ResolutionResult struct {
	Identifier string    `json:"identifier" yaml:"identifier"`
	URL        string    `json:"url,omitempty" yaml:"url,omitempty"`
	BackupURL  string    `json:"backup_url,omitempty" yaml:"backup_url,omitempty"`
	Reason     string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	Kind       ErrorKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	StrategyID string    `json:"strategy_id,omitempty" yaml:"strategy_id,omitempty"`
	Verified   bool      `json:"verified" yaml:"verified"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}

// Failed reports whether the result carries a failure reason.
func (r ResolutionResult) Failed() bool {
	return r.URL == ""
}

// Options tune a single ResolveDocument call. The zero value is not the
// default; use DefaultOptions.
type Options struct {
	Verify       bool
	RetryErrors  bool
	Timeout      time.Duration
	MaxRedirects int
}

// DefaultOptions returns verify=true, retry_errors=false, 10s, 3 redirects.
func DefaultOptions() Options {
	return Options{
		Verify:       true,
		Timeout:      DefaultTimeout,
		MaxRedirects: DefaultMaxRedirects,
	}
}
