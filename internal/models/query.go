package models

import "fmt"

// SearchQuery is a keyword search over stored products.
type SearchQuery struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
	Fuzzy  bool   `json:"fuzzy,omitempty"` // typo tolerance
	// Fuzziness is the maximum edit distance for fuzzy terms, 1 or 2. Zero means 2.
	Fuzziness int `json:"fuzziness,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Fuzziness < 0 || q.Fuzziness > 2 {
		return fmt.Errorf("fuzziness must be 0, 1 or 2, got %d", q.Fuzziness)
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return nil
}
