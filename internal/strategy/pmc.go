// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package strategy

import (
	"context"
	"strings"

	"github.com/pdiddy/findit/pkg/types"
)

// Base URLs for PubMed Central renditions. Declared as vars so tests can
// substitute httptest servers.
var (
	europePMCBase = "https://europepmc.org/articles/"
	ncbiPMCBase   = "https://www.ncbi.nlm.nih.gov/pmc/articles/"
)

// PMC builds the Europe PMC render URL for records deposited in PubMed
// Central, with the NCBI PMC PDF directory as backup.
type PMC struct{}

// ID returns "pmc".
func (*PMC) ID() string { return "pmc" }

// Required returns pmc_id.
func (*PMC) Required(map[string]string) types.FieldSet {
	return types.NewFieldSet(types.FieldPMCID)
}

// Invoke builds both PMC URLs.
func (p *PMC) Invoke(_ context.Context, rec types.BibliographicRecord, _ map[string]string) (types.ResolutionAttempt, error) {
	attempt := types.ResolutionAttempt{StrategyID: p.ID()}
	id := strings.ToUpper(rec.Field(types.FieldPMCID))
	if id == "" {
		attempt.MissingFields = p.Required(nil)
		attempt.Failure = types.Failuref(types.KindMissing, "", "%s required", types.FieldPMCID)
		return attempt, nil
	}
	if !strings.HasPrefix(id, "PMC") {
		id = "PMC" + id
	}
	attempt.Candidates = []string{
		europePMCBase + id + "?pdf=render",
		ncbiPMCBase + id + "/pdf/",
	}
	return attempt, nil
}
