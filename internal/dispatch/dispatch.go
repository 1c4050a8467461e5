// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dispatch selects and runs the strategy for a bibliographic
// record: registry lookup by publisher then journal, the primary strategy
// when its fields are present, otherwise the fallback, otherwise MISSING.
// At most one strategy is invoked per call.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pdiddy/findit/internal/observability"
	"github.com/pdiddy/findit/internal/registry"
	"github.com/pdiddy/findit/internal/strategy"
	"github.com/pdiddy/findit/pkg/types"
)

// maxCandidates is the most URLs a strategy may return.
const maxCandidates = 2

// Dispatcher routes records to strategies.
type Dispatcher struct {
	registry *registry.Registry
	catalog  *strategy.Catalog
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// New returns a Dispatcher after checking that every strategy the
// registry names exists in the catalog.
func New(reg *registry.Registry, cat *strategy.Catalog, logger zerolog.Logger, metrics *observability.Metrics) (*Dispatcher, error) {
	for _, id := range reg.StrategyIDs() {
		if _, ok := cat.Get(id); !ok {
			return nil, fmt.Errorf("registry references unknown strategy %q", id)
		}
	}
	return &Dispatcher{registry: reg, catalog: cat, logger: logger, metrics: metrics}, nil
}

// Lookup finds the descriptor for rec, trying the publisher name before
// the journal name.
func (d *Dispatcher) Lookup(rec types.BibliographicRecord) (registry.Descriptor, error) {
	var lastErr error = registry.ErrNotFound
	for _, name := range []string{rec.Field(types.FieldPublisherName), rec.Field(types.FieldJournalName)} {
		if name == "" {
			continue
		}
		desc, err := d.registry.Lookup(name)
		if err == nil {
			return desc, nil
		}
		lastErr = err
	}
	return registry.Descriptor{}, lastErr
}

// Resolve returns the attempt for rec. MISSING and NOFORMAT, as well as
// failures reported by the invoked strategy, are carried in the attempt;
// a non-nil error comes from a broken strategy and is returned unchanged.
func (d *Dispatcher) Resolve(ctx context.Context, rec types.BibliographicRecord) (types.ResolutionAttempt, error) {
	desc, err := d.Lookup(rec)
	if errors.Is(err, registry.ErrNotFound) {
		return types.ResolutionAttempt{Failure: noStrategy(rec)}, nil
	}
	if err != nil {
		return types.ResolutionAttempt{}, err
	}

	primary := d.mustGet(desc.StrategyID)
	required := desc.RequiredFields.Union(primary.Required(desc.Config))
	missing := rec.Missing(required)
	if len(missing) == 0 {
		return d.invoke(ctx, primary, rec, desc.Config)
	}

	if !desc.HasFallback() {
		return types.ResolutionAttempt{
			StrategyID:    desc.StrategyID,
			MissingFields: missing,
			Failure:       types.Failuref(types.KindMissing, "", "%s required", missing),
		}, nil
	}

	fallback := d.mustGet(desc.FallbackStrategyID)
	fbMissing := rec.Missing(fallback.Required(desc.Config))
	if len(fbMissing) == 0 {
		d.logger.Debug().
			Str("strategy", desc.StrategyID).
			Str("fallback", desc.FallbackStrategyID).
			Str("missing", missing.String()).
			Msg("primary strategy unsatisfied, using fallback")
		return d.invoke(ctx, fallback, rec, desc.Config)
	}

	return types.ResolutionAttempt{
		StrategyID:    desc.StrategyID,
		MissingFields: missing.Union(fbMissing),
		Failure: types.Failuref(types.KindMissing, "", "%s required (fallback %s needs %s)",
			missing, desc.FallbackStrategyID, fbMissing),
	}, nil
}

func (d *Dispatcher) invoke(ctx context.Context, s strategy.Strategy, rec types.BibliographicRecord, cfg map[string]string) (types.ResolutionAttempt, error) {
	d.metrics.ObserveStrategy(s.ID())
	attempt, err := s.Invoke(ctx, rec, cfg)
	if err != nil {
		return types.ResolutionAttempt{}, err
	}
	attempt.StrategyID = s.ID()
	if len(attempt.Candidates) > maxCandidates {
		return types.ResolutionAttempt{}, fmt.Errorf("strategy %s returned %d candidates, at most %d allowed",
			s.ID(), len(attempt.Candidates), maxCandidates)
	}
	if len(attempt.Candidates) == 0 && attempt.Failure == nil {
		return types.ResolutionAttempt{}, fmt.Errorf("strategy %s returned neither a candidate nor a failure", s.ID())
	}
	return attempt, nil
}

// mustGet returns a catalog strategy. New has already checked every id
// the registry can yield.
func (d *Dispatcher) mustGet(id string) strategy.Strategy {
	s, ok := d.catalog.Get(id)
	if !ok {
		panic(fmt.Sprintf("dispatch: strategy %q vanished from catalog", id))
	}
	return s
}

func noStrategy(rec types.BibliographicRecord) *types.Failure {
	pub, journal := rec.Field(types.FieldPublisherName), rec.Field(types.FieldJournalName)
	switch {
	case pub != "" && journal != "":
		return types.Failuref(types.KindNoFormat, "", "no known strategy for publisher %q or journal %q", pub, journal)
	case pub != "":
		return types.Failuref(types.KindNoFormat, "", "no known strategy for publisher %q", pub)
	case journal != "":
		return types.Failuref(types.KindNoFormat, "", "no known strategy for journal %q", journal)
	default:
		return types.Failuref(types.KindNoFormat, "", "no known strategy: record names no publisher or journal")
	}
}
