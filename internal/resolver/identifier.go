// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolver

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/findit/internal/metadata"
)

// ErrUnrecognized is returned for input that is not a PMID, DOI or PMC id.
var ErrUnrecognized = errors.New("unrecognized identifier")

var (
	pmidPattern = regexp.MustCompile(`^\d{1,9}$`)
	pmcPattern  = regexp.MustCompile(`^(?i)pmc\d+$`)
	doiPattern  = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)
)

// doiPrefixes are stripped, case-insensitively, before matching a DOI.
var doiPrefixes = []string{
	"https://doi.org/", "http://doi.org/",
	"https://dx.doi.org/", "http://dx.doi.org/",
	"doi:",
}

// Identifier is a classified, normalized identifier.
type Identifier struct {
	Type  metadata.IDType
	Value string
}

// Key is the result cache key, e.g. "pmid:12345" or "doi:10.1000/x".
func (id Identifier) Key() string {
	return string(id.Type) + ":" + id.Value
}

func (id Identifier) String() string { return id.Key() }

// Classify determines the identifier type and returns the normalized form.
// DOIs are lowercased since they compare case-insensitively; PMC ids are
// upper-cased.
func Classify(raw string) (Identifier, error) {
	s := strings.TrimSpace(raw)

	rest, pmidPrefixed := cutPrefixFold(s, "pmid:")
	if pmidPrefixed {
		s = strings.TrimSpace(rest)
	}
	if pmidPattern.MatchString(s) {
		if v := strings.TrimLeft(s, "0"); v != "" {
			return Identifier{Type: metadata.PMID, Value: v}, nil
		}
	}
	if pmidPrefixed {
		return Identifier{}, fmt.Errorf("%w: %q", ErrUnrecognized, raw)
	}
	if pmcPattern.MatchString(s) {
		return Identifier{Type: metadata.PMCID, Value: strings.ToUpper(s)}, nil
	}

	for _, p := range doiPrefixes {
		if rest, ok := cutPrefixFold(s, p); ok {
			s = strings.TrimSpace(rest)
			break
		}
	}
	if doiPattern.MatchString(s) {
		return Identifier{Type: metadata.DOI, Value: strings.ToLower(s)}, nil
	}
	return Identifier{}, fmt.Errorf("%w: %q", ErrUnrecognized, raw)
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}
