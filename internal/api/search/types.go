// Package search provides the wire types and HTTP client for an Azure AI
// Search compatible document index.
package search

import "strings"

// Query describes one retrieval call against the index.
type Query struct {
	// Top is the number of results to return.
	Top int

	// Text is the full-text search query. Ignored when UseTextSearch is false.
	Text string

	// Filter is an OData filter expression restricting the result set.
	// Empty means no filter.
	Filter string

	// Vectors holds the embedding vectors for vector search, one query each.
	Vectors [][]float32

	UseTextSearch       bool
	UseVectorSearch     bool
	UseSemanticRanker   bool
	UseSemanticCaptions bool

	// MinimumSearchScore drops results below this full-text relevance score.
	MinimumSearchScore float64

	// MinimumRerankerScore drops results below this semantic reranker score.
	MinimumRerankerScore float64
}

// Caption is a semantic caption attached to a result, a short excerpt the
// ranker picked as the reason the document matched.
type Caption struct {
	Text       string `json:"text"`
	Highlights string `json:"highlights,omitempty"`
}

// Document is one ranked result from the index.
type Document struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	Category      string    `json:"category,omitempty"`
	SourcePage    string    `json:"sourcepage,omitempty"`
	SourceFile    string    `json:"sourcefile,omitempty"`
	Score         float64   `json:"@search.score,omitempty"`
	RerankerScore float64   `json:"@search.rerankerScore,omitempty"`
	Captions      []Caption `json:"@search.captions,omitempty"`
}

// Serialize flattens a document into a plain map for diagnostic traces.
func (d *Document) Serialize() map[string]any {
	m := map[string]any{
		"id":      d.ID,
		"content": d.Content,
		"score":   d.Score,
	}
	if d.Category != "" {
		m["category"] = d.Category
	}
	if d.SourcePage != "" {
		m["sourcepage"] = d.SourcePage
	}
	if d.SourceFile != "" {
		m["sourcefile"] = d.SourceFile
	}
	if d.RerankerScore != 0 {
		m["reranker_score"] = d.RerankerScore
	}
	if len(d.Captions) > 0 {
		captions := make([]map[string]any, 0, len(d.Captions))
		for _, c := range d.Captions {
			captions = append(captions, map[string]any{"text": c.Text, "highlights": c.Highlights})
		}
		m["captions"] = captions
	}
	return m
}

// SourcesContent flattens results into "sourcepage: text" strings for the
// answer prompt. Semantic captions are preferred over the full content when
// enabled and present. Newlines are collapsed so each source stays on one line.
func SourcesContent(results []Document, useSemanticCaptions bool) []string {
	sources := make([]string, 0, len(results))
	for _, doc := range results {
		text := doc.Content
		if useSemanticCaptions && len(doc.Captions) > 0 {
			parts := make([]string, 0, len(doc.Captions))
			for _, c := range doc.Captions {
				parts = append(parts, c.Text)
			}
			text = strings.Join(parts, " . ")
		}
		sources = append(sources, doc.SourcePage+": "+collapseNewlines(text))
	}
	return sources
}

func collapseNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return s
}

// wire request/response shapes

type searchRequest struct {
	Search                string        `json:"search,omitempty"`
	Top                   int           `json:"top"`
	Filter                string        `json:"filter,omitempty"`
	QueryType             string        `json:"queryType,omitempty"`
	SemanticConfiguration string        `json:"semanticConfiguration,omitempty"`
	Captions              string        `json:"captions,omitempty"`
	QueryLanguage         string        `json:"queryLanguage,omitempty"`
	QuerySpeller          string        `json:"querySpeller,omitempty"`
	VectorQueries         []vectorQuery `json:"vectorQueries,omitempty"`
}

type vectorQuery struct {
	Kind       string    `json:"kind"`
	Vector     []float32 `json:"vector"`
	Fields     string    `json:"fields"`
	K          int       `json:"k"`
	Exhaustive bool      `json:"exhaustive"`
}

type searchResponse struct {
	Value []Document `json:"value"`
}

type errorResponse struct {
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
