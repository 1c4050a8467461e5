// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolver turns an identifier into a verified document URL or a
// classified reason. Results are cached per identifier; concurrent first
// calls for the same identifier share one resolution and one probe.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/findit/internal/metadata"
	"github.com/pdiddy/findit/internal/observability"
	"github.com/pdiddy/findit/internal/resultcache"
	"github.com/pdiddy/findit/pkg/types"
)

// MetadataProvider looks up the bibliographic record for an identifier and
// fails with metadata.ErrNotFound when no source knows it.
type MetadataProvider interface {
	GetRecord(ctx context.Context, idType metadata.IDType, id string) (types.BibliographicRecord, error)
}

// Dispatcher turns a record into candidate URLs.
type Dispatcher interface {
	Resolve(ctx context.Context, rec types.BibliographicRecord) (types.ResolutionAttempt, error)
}

// Verifier probes a candidate URL.
type Verifier interface {
	Verify(ctx context.Context, candidate string, timeout time.Duration, maxRedirects int) types.VerificationOutcome
}

// Resolver is safe for concurrent use.
type Resolver struct {
	metadata   MetadataProvider
	dispatcher Dispatcher
	verifier   Verifier
	cache      *resultcache.Cache
	group      singleflight.Group
	logger     zerolog.Logger
}

// New assembles a Resolver.
func New(md MetadataProvider, d Dispatcher, v Verifier, cache *resultcache.Cache, logger zerolog.Logger) *Resolver {
	return &Resolver{metadata: md, dispatcher: d, verifier: v, cache: cache, logger: logger}
}

// ResolveDocument resolves identifier under opts.
//
// A cached result is returned as is unless opts.RetryErrors is set and the
// cached result is a failure. Cached successes are never re-verified. With
// opts.Verify unset the constructed candidate is returned unconfirmed and
// nothing is written to the cache.
//
// Operational failures are reported in the result's Reason. A returned
// error means the identifier was not recognized, the cache failed, or a
// strategy misbehaved.
func (r *Resolver) ResolveDocument(ctx context.Context, identifier string, opts types.Options) (types.ResolutionResult, error) {
	id, err := Classify(identifier)
	if err != nil {
		return types.ResolutionResult{}, err
	}
	key := id.Key()
	logger := observability.WithIdentifier(r.logger, key)

	retrying := false
	cached, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		if !opts.RetryErrors || !cached.Failed() {
			logger.Debug().Msg("result cache hit")
			return cached, nil
		}
		retrying = true
		logger.Debug().Str("reason", cached.Reason).Msg("retrying cached failure")
	case !errors.Is(err, resultcache.ErrNotFound):
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.ResolutionResult{}, ctxErr
		}
		return types.ResolutionResult{}, fmt.Errorf("reading result cache: %w", err)
	}

	if !opts.Verify {
		result, err := r.resolve(ctx, id, opts)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.ResolutionResult{}, ctxErr
		}
		return result, err
	}

	// First-time callers share one flight whatever their RetryErrors
	// setting; only a retry of a cached failure gets its own.
	flight := key
	if retrying {
		flight = "retry:" + key
	}
	// The flight runs detached so a caller giving up does not abort the
	// resolution for the callers sharing it. The probe carries its own
	// timeout.
	flightCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(flight, func() (any, error) {
		// A flight for the same key may have finished between the cache
		// read above and this one starting.
		if c, err := r.cache.Get(flightCtx, key); err == nil && (!retrying || !c.Failed()) {
			return c, nil
		}

		result, err := r.resolve(flightCtx, id, opts)
		if err != nil {
			return nil, err
		}
		stored, err := r.cache.Put(flightCtx, key, result)
		if err != nil {
			return nil, fmt.Errorf("writing result cache: %w", err)
		}
		ev := logger.Info()
		if stored.Failed() {
			ev = ev.Str("reason", stored.Reason)
		} else {
			ev = ev.Str("url", stored.URL)
		}
		ev.Str("strategy", stored.StrategyID).Msg("resolved")
		return stored, nil
	})

	select {
	case <-ctx.Done():
		return types.ResolutionResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return types.ResolutionResult{}, res.Err
		}
		if res.Shared {
			logger.Debug().Msg("shared in-flight resolution")
		}
		return res.Val.(types.ResolutionResult), nil
	}
}

// resolve runs metadata lookup, dispatch and, when requested, the probe.
func (r *Resolver) resolve(ctx context.Context, id Identifier, opts types.Options) (types.ResolutionResult, error) {
	result := types.ResolutionResult{Identifier: id.Key()}

	rec, err := r.metadata.GetRecord(ctx, id.Type, id.Value)
	if errors.Is(err, metadata.ErrNotFound) {
		return withFailure(result, types.Failuref(types.KindNotFound, "", "identifier not found in metadata provider")), nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.ResolutionResult{}, ctxErr
		}
		return withFailure(result, types.Failuref(types.KindTxError, "", "metadata lookup failed: %v", err)), nil
	}

	attempt, err := r.dispatcher.Resolve(ctx, rec)
	if err != nil {
		return types.ResolutionResult{}, err
	}
	result.StrategyID = attempt.StrategyID
	if attempt.Failure != nil {
		return withFailure(result, attempt.Failure), nil
	}

	primary := attempt.Candidates[0]
	if len(attempt.Candidates) > 1 {
		result.BackupURL = attempt.Candidates[1]
	}
	if !opts.Verify {
		result.URL = primary
		return result, nil
	}

	timeout, maxRedirects := opts.Timeout, opts.MaxRedirects
	if timeout <= 0 {
		timeout = types.DefaultTimeout
	}
	if maxRedirects < 0 {
		maxRedirects = types.DefaultMaxRedirects
	}
	out := r.verifier.Verify(ctx, primary, timeout, maxRedirects)
	result.Verified = true
	if !out.OK() {
		return withFailure(result, out.Failure()), nil
	}
	result.URL = primary
	result.Kind = types.KindSuccess
	return result, nil
}

func withFailure(r types.ResolutionResult, f *types.Failure) types.ResolutionResult {
	r.URL = ""
	r.BackupURL = ""
	r.Kind = f.Kind
	r.Reason = f.Reason()
	return r
}
