// Package keyword provides full-text search over stored product records.
package keyword

import (
	"context"

	"github.com/hyperjump/shohin/internal/models"
)

// SearchOptions tune a keyword search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies matches in the product title. Use 1.0 for no boost.
	TitleBoost float64
	// FuzzyEnabled enables typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance for fuzzy matching (1 or 2).
	Fuzziness int
}

// Index is a keyword index of product records.
type Index interface {
	Index(ctx context.Context, id string, record *models.ProductRecord) error
	Search(ctx context.Context, query string, limit, offset int, opts *SearchOptions) ([]*Result, uint64, error)
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword search hit.
type Result struct {
	ID         string
	Score      float64
	Highlights map[string][]string
}
