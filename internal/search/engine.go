// Package search runs keyword search over stored products.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/shohin/internal/keyword"
	"github.com/hyperjump/shohin/internal/models"
	"github.com/hyperjump/shohin/internal/storage"
	"go.uber.org/zap"
)

// DefaultTitleBoost weights title matches above description and tag matches.
const DefaultTitleBoost = 10.0

// Engine answers search queries from the keyword index and loads the matching
// documents from the store.
type Engine struct {
	store      storage.Store
	index      keyword.Index
	titleBoost float64
	logger     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTitleBoost overrides DefaultTitleBoost.
func WithTitleBoost(boost float64) Option {
	return func(e *Engine) { e.titleBoost = boost }
}

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine.
func NewEngine(store storage.Store, index keyword.Index, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		index:      index,
		titleBoost: DefaultTitleBoost,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Search validates query and returns one page of ranked documents. When an
// exact search finds nothing, it is retried once with typo tolerance.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := query.Validate(); err != nil {
		return nil, err
	}

	hits, total, err := e.index.Search(ctx, query.Query, query.Limit, query.Offset, e.options(query.Fuzzy, query.Fuzziness))
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	autoFuzzy := false
	if total == 0 && !query.Fuzzy {
		fuzzyHits, fuzzyTotal, err := e.index.Search(ctx, query.Query, query.Limit, query.Offset, e.options(true, query.Fuzziness))
		if err == nil && fuzzyTotal > 0 {
			hits, total, autoFuzzy = fuzzyHits, fuzzyTotal, true
		}
	}

	response := &models.SearchResponse{
		Results:   make([]*models.SearchResult, 0, len(hits)),
		Total:     int(total),
		Query:     query.Query,
		AutoFuzzy: autoFuzzy,
	}
	for i, hit := range hits {
		doc, err := e.store.Get(ctx, hit.ID)
		if err != nil {
			// The index can briefly run ahead of a store on another connection.
			if !errors.Is(err, storage.ErrNotFound) {
				e.logger.Warn("search: load document failed", zap.String("doc_id", hit.ID), zap.Error(err))
			}
			continue
		}
		response.Results = append(response.Results, &models.SearchResult{
			Document:   doc,
			Score:      hit.Score,
			Highlights: hit.Highlights,
			Rank:       query.Offset + i + 1,
		})
	}
	response.QueryTime = time.Since(start).Milliseconds()
	return response, nil
}

func (e *Engine) options(fuzzy bool, fuzziness int) *keyword.SearchOptions {
	return &keyword.SearchOptions{TitleBoost: e.titleBoost, FuzzyEnabled: fuzzy, Fuzziness: fuzziness}
}

// IndexSize returns the number of documents in the keyword index.
func (e *Engine) IndexSize() uint64 {
	n, err := e.index.DocCount()
	if err != nil {
		return 0
	}
	return n
}

// Reindex rebuilds the keyword index from every stored document and returns
// how many were indexed.
func (e *Engine) Reindex(ctx context.Context) (int, error) {
	const page = 200
	n := 0
	for offset := 0; ; offset += page {
		docs, err := e.store.List(ctx, offset, page)
		if err != nil {
			return n, fmt.Errorf("failed to list documents: %w", err)
		}
		for _, doc := range docs {
			if doc.Record == nil {
				continue
			}
			if err := e.index.Index(ctx, doc.ID, doc.Record); err != nil {
				return n, fmt.Errorf("failed to index %s: %w", doc.ID, err)
			}
			n++
		}
		if len(docs) < page {
			return n, nil
		}
	}
}
