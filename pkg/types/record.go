// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"sort"
	"strings"
)

// FieldName names one field of a BibliographicRecord.
type FieldName string

const (
	FieldDOI           FieldName = "doi"
	FieldPII           FieldName = "pii"
	FieldJournalName   FieldName = "journal_name"
	FieldPublisherName FieldName = "publisher_name"
	FieldVolume        FieldName = "volume"
	FieldIssue         FieldName = "issue"
	FieldFirstPage     FieldName = "first_page"
	FieldPMCID         FieldName = "pmc_id"
)

// KnownFields lists every field a strategy may require.
var KnownFields = []FieldName{
	FieldDOI, FieldPII, FieldJournalName, FieldPublisherName,
	FieldVolume, FieldIssue, FieldFirstPage, FieldPMCID,
}

// IsKnown reports whether f is one of KnownFields.
func (f FieldName) IsKnown() bool {
	for _, k := range KnownFields {
		if k == f {
			return true
		}
	}
	return false
}

// FieldSet is an unordered set of field names.
type FieldSet map[FieldName]struct{}

// NewFieldSet builds a set from the given names.
func NewFieldSet(names ...FieldName) FieldSet {
	s := make(FieldSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Union returns a new set holding the members of s and o.
func (s FieldSet) Union(o FieldSet) FieldSet {
	out := make(FieldSet, len(s)+len(o))
	for n := range s {
		out[n] = struct{}{}
	}
	for n := range o {
		out[n] = struct{}{}
	}
	return out
}

// Sorted returns the members in KnownFields order, unknown names last
// in lexical order.
func (s FieldSet) Sorted() []FieldName {
	out := make([]FieldName, 0, len(s))
	for _, k := range KnownFields {
		if _, ok := s[k]; ok {
			out = append(out, k)
		}
	}
	var extra []FieldName
	for n := range s {
		if !n.IsKnown() {
			extra = append(extra, n)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// String joins the sorted members with ", ".
func (s FieldSet) String() string {
	names := s.Sorted()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}

// BibliographicRecord holds the fields strategies consume. It is produced by
// the metadata provider and treated as read-only everywhere else.
type BibliographicRecord struct {
	PMID          string `json:"pmid,omitempty" yaml:"pmid,omitempty"`
	DOI           string `json:"doi,omitempty" yaml:"doi,omitempty"`
	PII           string `json:"pii,omitempty" yaml:"pii,omitempty"`
	JournalName   string `json:"journal_name,omitempty" yaml:"journal_name,omitempty"`
	PublisherName string `json:"publisher_name,omitempty" yaml:"publisher_name,omitempty"`
	Volume        string `json:"volume,omitempty" yaml:"volume,omitempty"`
	Issue         string `json:"issue,omitempty" yaml:"issue,omitempty"`
	FirstPage     string `json:"first_page,omitempty" yaml:"first_page,omitempty"`
	PMCID         string `json:"pmc_id,omitempty" yaml:"pmc_id,omitempty"`
}

// Field returns the trimmed value of the named field, or "" when the name
// is not a record field.
func (r BibliographicRecord) Field(name FieldName) string {
	var v string
	switch name {
	case FieldDOI:
		v = r.DOI
	case FieldPII:
		v = r.PII
	case FieldJournalName:
		v = r.JournalName
	case FieldPublisherName:
		v = r.PublisherName
	case FieldVolume:
		v = r.Volume
	case FieldIssue:
		v = r.Issue
	case FieldFirstPage:
		v = r.FirstPage
	case FieldPMCID:
		v = r.PMCID
	}
	return strings.TrimSpace(v)
}

// Missing returns the members of required that r leaves empty.
func (r BibliographicRecord) Missing(required FieldSet) FieldSet {
	missing := FieldSet{}
	for name := range required {
		if r.Field(name) == "" {
			missing[name] = struct{}{}
		}
	}
	return missing
}
