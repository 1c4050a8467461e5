// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/findit/internal/config"
	"github.com/pdiddy/findit/internal/dispatch"
	"github.com/pdiddy/findit/internal/kvstore"
	"github.com/pdiddy/findit/internal/metadata"
	"github.com/pdiddy/findit/internal/observability"
	"github.com/pdiddy/findit/internal/registry"
	"github.com/pdiddy/findit/internal/resolver"
	"github.com/pdiddy/findit/internal/resultcache"
	"github.com/pdiddy/findit/internal/strategy"
	"github.com/pdiddy/findit/internal/verify"
)

// app is the wired resolution engine for one CLI invocation.
type app struct {
	resolver *resolver.Resolver
	results  *resultcache.Cache
	upstream *kvstore.Store
	metrics  *prometheus.Registry
}

func newApp() (*app, error) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	table, err := registry.Default()
	if err != nil {
		return nil, fmt.Errorf("loading strategy registry: %w", err)
	}
	disp, err := dispatch.New(table, strategy.Builtin(cfg.HTTP, cfg.Upstream.Mailto), logger, metrics)
	if err != nil {
		return nil, err
	}

	results, err := resultcache.Open(config.ResultsDB(cfg), metrics)
	if err != nil {
		return nil, err
	}
	store, err := kvstore.Open(config.UpstreamDB(cfg))
	if err != nil {
		results.Close()
		return nil, fmt.Errorf("opening upstream cache: %w", err)
	}

	provider := metadata.New(store, cfg, logger, metrics)
	engine := verify.New(cfg.HTTP.UserAgent, logger, metrics)

	return &app{
		resolver: resolver.New(provider, disp, engine, results, logger),
		results:  results,
		upstream: store,
		metrics:  reg,
	}, nil
}

func (a *app) Close() error {
	return errors.Join(a.results.Close(), a.upstream.Close())
}

// writeMetrics dumps the counters in Prometheus text format when a
// metrics file is configured.
func (a *app) writeMetrics() error {
	if cfg.MetricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(cfg.MetricsFile, a.metrics); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
