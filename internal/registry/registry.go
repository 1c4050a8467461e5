// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry maps normalized publisher and journal names to the
// strategy that builds their document URLs. A Registry is built once at
// startup and is read-only afterwards, so lookups need no locking.
package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"
	"golang.org/x/text/cases"

	"github.com/pdiddy/findit/pkg/types"
)

var (
	// ErrNotFound signals that no strategy is registered for a key.
	ErrNotFound = errors.New("no strategy known")

	// ErrDuplicateKey is returned when two entries normalize to one key.
	ErrDuplicateKey = errors.New("duplicate registry key")
)

//go:embed registry.yaml
var defaultTable []byte

// Descriptor selects a strategy and carries its configuration.
type Descriptor struct {
	StrategyID         string
	RequiredFields     types.FieldSet
	FallbackStrategyID string
	Config             map[string]string
}

// HasFallback reports whether a fallback strategy is named.
func (d Descriptor) HasFallback() bool {
	return d.FallbackStrategyID != ""
}

// Entry is one row of the YAML registry table.
type Entry struct {
	Keys     []string          `yaml:"keys"`
	Strategy string            `yaml:"strategy"`
	Requires []string          `yaml:"requires,omitempty"`
	Fallback string            `yaml:"fallback,omitempty"`
	Config   map[string]string `yaml:"config,omitempty"`
}

// Table is the top-level YAML document.
type Table struct {
	Entries []Entry `yaml:"entries"`
}

// Registry is an immutable key to Descriptor map.
type Registry struct {
	byKey map[string]Descriptor
}

// Normalize folds case and collapses runs of whitespace. No other
// rewriting is done: lookups are exact on the normalized form.
func Normalize(name string) string {
	// A Caser holds state, so each call gets its own.
	return strings.Join(strings.Fields(cases.Fold().String(name)), " ")
}

// New builds a Registry from entries, failing on the first key that
// normalizes to one already registered.
func New(entries []Entry) (*Registry, error) {
	r := &Registry{byKey: make(map[string]Descriptor)}
	for i, e := range entries {
		if strings.TrimSpace(e.Strategy) == "" {
			return nil, fmt.Errorf("entry %d: strategy is required", i)
		}
		if len(e.Keys) == 0 {
			return nil, fmt.Errorf("entry %d (%s): at least one key is required", i, e.Strategy)
		}

		required := types.FieldSet{}
		for _, f := range e.Requires {
			name := types.FieldName(strings.TrimSpace(f))
			if !name.IsKnown() {
				return nil, fmt.Errorf("entry %d (%s): unknown field %q", i, e.Strategy, f)
			}
			required[name] = struct{}{}
		}

		cfg := make(map[string]string, len(e.Config))
		for k, v := range e.Config {
			cfg[k] = v
		}

		d := Descriptor{
			StrategyID:         e.Strategy,
			RequiredFields:     required,
			FallbackStrategyID: e.Fallback,
			Config:             cfg,
		}

		for _, raw := range e.Keys {
			key := Normalize(raw)
			if key == "" {
				return nil, fmt.Errorf("entry %d (%s): empty key", i, e.Strategy)
			}
			if _, exists := r.byKey[key]; exists {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
			}
			r.byKey[key] = d
		}
	}
	return r, nil
}

// Parse decodes a YAML table and builds a Registry from it.
func Parse(data []byte) (*Registry, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing registry table: %w", err)
	}
	return New(t.Entries)
}

// Default returns the Registry built from the embedded table.
func Default() (*Registry, error) {
	return Parse(defaultTable)
}

// Lookup returns the descriptor registered for name after normalization.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	key := Normalize(name)
	if key == "" {
		return Descriptor{}, ErrNotFound
	}
	d, ok := r.byKey[key]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w for %q", ErrNotFound, key)
	}
	return d, nil
}

// Keys returns every registered key in lexical order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered keys.
func (r *Registry) Len() int {
	return len(r.byKey)
}

// StrategyIDs returns the distinct primary and fallback strategy ids that
// the registry references.
func (r *Registry) StrategyIDs() []string {
	seen := map[string]struct{}{}
	for _, d := range r.byKey {
		seen[d.StrategyID] = struct{}{}
		if d.HasFallback() {
			seen[d.FallbackStrategyID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
