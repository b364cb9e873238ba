// Package models holds the small, immutable value types shared between the
// crawler and estimator layers.
package models

import "fmt"

// Data is one document projection returned by a CrawlerApi. Either field may
// be nil depending on the caller's projection request (want_id / want_content).
type Data struct {
	Identifier *string `json:"identifier,omitempty"`
	Content    *string `json:"content,omitempty"`
}

// NewData builds a Data from optional identifier/content strings. Passing nil
// for either omits that field from the projection.
func NewData(identifier, content *string) Data {
	return Data{Identifier: identifier, Content: content}
}

// HasIdentifier reports whether this Data carries an identifier.
func (d Data) HasIdentifier() bool { return d.Identifier != nil }

// HasContent reports whether this Data carries content.
func (d Data) HasContent() bool { return d.Content != nil }

// IdentifierOrEmpty returns the identifier, or "" if absent.
func (d Data) IdentifierOrEmpty() string {
	if d.Identifier == nil {
		return ""
	}
	return *d.Identifier
}

// ContentOrEmpty returns the content, or "" if absent.
func (d Data) ContentOrEmpty() string {
	if d.Content == nil {
		return ""
	}
	return *d.Content
}

// Project returns a copy of d with Identifier and/or Content nulled out
// according to the caller's wishes. Identity of the underlying Data is not
// preserved — a fresh value is always returned.
func (d Data) Project(wantID, wantContent bool) Data {
	out := Data{}
	if wantID {
		out.Identifier = d.Identifier
	}
	if wantContent {
		out.Content = d.Content
	}
	return out
}

// SearchResult is the outcome of a query against a search engine:
// NumberResults is the engine's claimed total match count, while Results
// holds however many documents were actually retrieved — always
// len(Results) <= NumberResults.
type SearchResult struct {
	NumberResults int    `json:"number_results"`
	Results       []Data `json:"results"`
}

// NewSearchResult constructs a SearchResult and validates its invariant.
func NewSearchResult(numberResults int, results []Data) (SearchResult, error) {
	sr := SearchResult{NumberResults: numberResults, Results: results}
	if err := sr.Validate(); err != nil {
		return SearchResult{}, err
	}
	return sr, nil
}

// Validate checks the core SearchResult invariant: len(Results) <= NumberResults.
func (sr SearchResult) Validate() error {
	if sr.NumberResults < 0 {
		return fmt.Errorf("models: number_results must be >= 0, got %d", sr.NumberResults)
	}
	if len(sr.Results) > sr.NumberResults {
		return fmt.Errorf("models: len(results)=%d exceeds number_results=%d", len(sr.Results), sr.NumberResults)
	}
	return nil
}

// Project returns a new SearchResult with every Data element projected
// through wantID/wantContent. NumberResults is preserved verbatim.
func (sr SearchResult) Project(wantID, wantContent bool) SearchResult {
	projected := make([]Data, len(sr.Results))
	for i, d := range sr.Results {
		projected[i] = d.Project(wantID, wantContent)
	}
	return SearchResult{NumberResults: sr.NumberResults, Results: projected}
}

// Equal reports deep value equality between two SearchResults, comparing
// identifiers/content by pointed-to value rather than pointer identity.
func (sr SearchResult) Equal(other SearchResult) bool {
	if sr.NumberResults != other.NumberResults {
		return false
	}
	if len(sr.Results) != len(other.Results) {
		return false
	}
	for i := range sr.Results {
		a, b := sr.Results[i], other.Results[i]
		if a.HasIdentifier() != b.HasIdentifier() || a.IdentifierOrEmpty() != b.IdentifierOrEmpty() {
			return false
		}
		if a.HasContent() != b.HasContent() || a.ContentOrEmpty() != b.ContentOrEmpty() {
			return false
		}
	}
	return true
}

// Empty is the canonical zero-match SearchResult.
func Empty() SearchResult {
	return SearchResult{NumberResults: 0, Results: nil}
}
