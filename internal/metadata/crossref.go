// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metadata

import (
	"strings"

	"github.com/pdiddy/findit/pkg/types"
)

// crossRefResponse is the CrossRef works envelope.
type crossRefResponse struct {
	Status  string       `json:"status"`
	Message crossRefWork `json:"message"`
}

type crossRefWork struct {
	DOI                 string   `json:"DOI"`
	Publisher           string   `json:"publisher"`
	ContainerTitle      []string `json:"container-title"`
	ShortContainerTitle []string `json:"short-container-title"`
	Volume              string   `json:"volume"`
	Issue               string   `json:"issue"`
	Page                string   `json:"page"`
}

func (w crossRefWork) record() types.BibliographicRecord {
	journal := ""
	if len(w.ShortContainerTitle) > 0 {
		journal = w.ShortContainerTitle[0]
	} else if len(w.ContainerTitle) > 0 {
		journal = w.ContainerTitle[0]
	}
	return types.BibliographicRecord{
		DOI:           strings.ToLower(strings.TrimSpace(w.DOI)),
		JournalName:   strings.TrimSpace(journal),
		PublisherName: strings.TrimSpace(w.Publisher),
		Volume:        strings.TrimSpace(w.Volume),
		Issue:         strings.TrimSpace(w.Issue),
		FirstPage:     firstPage("", w.Page),
	}
}
