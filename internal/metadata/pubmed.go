// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metadata

import (
	"encoding/xml"
	"strings"

	"github.com/pdiddy/findit/pkg/types"
)

// eSearchResult is the esearch.fcgi response.
type eSearchResult struct {
	XMLName xml.Name `xml:"eSearchResult"`
	Count   int      `xml:"Count"`
	IDList  struct {
		IDs []string `xml:"Id"`
	} `xml:"IdList"`
}

// pubmedArticleSet is the efetch.fcgi response for db=pubmed.
type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	MedlineCitation struct {
		PMID        string `xml:"PMID"`
		JournalInfo struct {
			MedlineTA string `xml:"MedlineTA"`
		} `xml:"MedlineJournalInfo"`
		Article struct {
			Journal struct {
				Title           string `xml:"Title"`
				ISOAbbreviation string `xml:"ISOAbbreviation"`
				JournalIssue    struct {
					Volume string `xml:"Volume"`
					Issue  string `xml:"Issue"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
			Pagination struct {
				StartPage  string `xml:"StartPage"`
				MedlinePgn string `xml:"MedlinePgn"`
			} `xml:"Pagination"`
			ELocationIDs []eLocationID `xml:"ELocationID"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
	PubmedData struct {
		ArticleIDs []articleID `xml:"ArticleIdList>ArticleId"`
	} `xml:"PubmedData"`
}

// eLocationID is an electronic location (doi or pii) on the article.
type eLocationID struct {
	Type  string `xml:"EIdType,attr"`
	Value string `xml:",chardata"`
}

// articleID is one entry of PubmedData/ArticleIdList.
type articleID struct {
	Type  string `xml:"IdType,attr"`
	Value string `xml:",chardata"`
}

// record maps the article onto the fields strategies consume. The journal
// name prefers the MEDLINE abbreviation, which is what registry keys use.
func (a pubmedArticle) record() types.BibliographicRecord {
	mc := a.MedlineCitation
	art := mc.Article
	rec := types.BibliographicRecord{
		PMID:        strings.TrimSpace(mc.PMID),
		JournalName: firstNonEmpty(mc.JournalInfo.MedlineTA, art.Journal.ISOAbbreviation, art.Journal.Title),
		Volume:      strings.TrimSpace(art.Journal.JournalIssue.Volume),
		Issue:       strings.TrimSpace(art.Journal.JournalIssue.Issue),
		FirstPage:   firstPage(art.Pagination.StartPage, art.Pagination.MedlinePgn),
	}

	for _, id := range a.PubmedData.ArticleIDs {
		v := strings.TrimSpace(id.Value)
		switch id.Type {
		case "doi":
			rec.DOI = firstNonEmpty(rec.DOI, v)
		case "pii":
			rec.PII = firstNonEmpty(rec.PII, v)
		case "pmc":
			rec.PMCID = firstNonEmpty(rec.PMCID, v)
		}
	}
	for _, loc := range art.ELocationIDs {
		v := strings.TrimSpace(loc.Value)
		switch loc.Type {
		case "doi":
			rec.DOI = firstNonEmpty(rec.DOI, v)
		case "pii":
			rec.PII = firstNonEmpty(rec.PII, v)
		}
	}
	rec.DOI = strings.ToLower(rec.DOI)
	return rec
}

func firstPage(start, medlinePgn string) string {
	if s := strings.TrimSpace(start); s != "" {
		return s
	}
	p, _, _ := strings.Cut(strings.TrimSpace(medlinePgn), "-")
	return strings.TrimSpace(p)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
