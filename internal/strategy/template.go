// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package strategy

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/findit/pkg/types"
)

// placeholderPattern matches "{name}" in a URL template.
var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// derived placeholders map to the record field they are computed from.
var derived = map[string]types.FieldName{
	"doi_suffix": types.FieldDOI,
}

// Template formats URLs from config templates with record fields. It
// never touches the network.
type Template struct {
	id        string
	key       string
	backupKey string
}

// NewTemplate returns a template strategy reading its primary template
// from cfg[key] and an optional second template from cfg[backupKey].
func NewTemplate(id, key, backupKey string) *Template {
	return &Template{id: id, key: key, backupKey: backupKey}
}

// ID returns the strategy id.
func (t *Template) ID() string { return t.id }

// Required returns the fields referenced by the primary template.
func (t *Template) Required(cfg map[string]string) types.FieldSet {
	fields, _ := placeholders(cfg[t.key])
	return fields
}

// Invoke renders the primary and, when configured and satisfiable, the
// backup template.
func (t *Template) Invoke(_ context.Context, rec types.BibliographicRecord, cfg map[string]string) (types.ResolutionAttempt, error) {
	tmpl := cfg[t.key]
	if tmpl == "" {
		return types.ResolutionAttempt{}, fmt.Errorf("strategy %s: config key %q is empty", t.id, t.key)
	}

	attempt := types.ResolutionAttempt{StrategyID: t.id}
	primary, missing, err := render(tmpl, rec)
	if err != nil {
		return types.ResolutionAttempt{}, fmt.Errorf("strategy %s: %w", t.id, err)
	}
	if len(missing) > 0 {
		attempt.MissingFields = missing
		attempt.Failure = types.Failuref(types.KindMissing, "", "%s required", missing)
		return attempt, nil
	}
	attempt.Candidates = append(attempt.Candidates, primary)

	if backup := cfg[t.backupKey]; backup != "" {
		u, missing, err := render(backup, rec)
		if err != nil {
			return types.ResolutionAttempt{}, fmt.Errorf("strategy %s: %w", t.id, err)
		}
		if len(missing) == 0 && u != primary {
			attempt.Candidates = append(attempt.Candidates, u)
		}
	}
	return attempt, nil
}

// placeholders returns the record fields a template references.
func placeholders(tmpl string) (types.FieldSet, error) {
	fields := types.FieldSet{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		name := m[1]
		if f, ok := derived[name]; ok {
			fields[f] = struct{}{}
			continue
		}
		f := types.FieldName(name)
		if !f.IsKnown() {
			return nil, fmt.Errorf("unknown placeholder {%s}", name)
		}
		fields[f] = struct{}{}
	}
	return fields, nil
}

// render substitutes path-escaped record fields into tmpl. Empty fields
// are reported as missing rather than rendered as empty strings.
func render(tmpl string, rec types.BibliographicRecord) (string, types.FieldSet, error) {
	fields, err := placeholders(tmpl)
	if err != nil {
		return "", nil, err
	}
	if missing := rec.Missing(fields); len(missing) > 0 {
		return "", missing, nil
	}
	out := placeholderPattern.ReplaceAllStringFunc(tmpl, func(ph string) string {
		name := ph[1 : len(ph)-1]
		if name == "doi_suffix" {
			doi := rec.Field(types.FieldDOI)
			if i := strings.Index(doi, "/"); i >= 0 {
				doi = doi[i+1:]
			}
			return escapePath(doi)
		}
		return escapePath(rec.Field(types.FieldName(name)))
	})
	return out, nil, nil
}
