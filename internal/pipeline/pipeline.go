// Package pipeline drives URLs through fetch, extract, and persist, one at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/shohin/internal/metrics"
	"github.com/hyperjump/shohin/internal/models"
	"go.uber.org/zap"
)

// ErrEmptyContent marks a URL whose page rendered to no text. It is skipped.
var ErrEmptyContent = errors.New("page has no content")

// Fetcher renders a URL into raw page content.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*models.RawContent, error)
}

// Extractor turns raw content into a product record.
type Extractor interface {
	Extract(ctx context.Context, content *models.RawContent, rawURL string) (*models.ProductRecord, error)
}

// Persister writes a record keyed by its URL.
type Persister interface {
	Upsert(ctx context.Context, record *models.ProductRecord, rawURL string) (*models.StoredDocument, error)
	DocumentID(rawURL string) string
}

// Pipeline runs URLs through its stages. RunOne calls are serialized, so one
// Pipeline may be shared by the CLI, the watcher, and the HTTP server.
type Pipeline struct {
	fetcher   Fetcher
	extractor Extractor
	persister Persister
	logger    *zap.Logger
	metrics   *metrics.Metrics
	progress  io.Writer

	mu sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics records per-URL and per-stage metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithProgress writes one human-readable line per URL (and one per failure) to w.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) { p.progress = w }
}

// New creates a Pipeline.
func New(fetcher Fetcher, extractor Extractor, persister Persister, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:   fetcher,
		extractor: extractor,
		persister: persister,
		logger:    zap.NewNop(),
		progress:  io.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.progress == nil {
		p.progress = io.Discard
	}
	return p
}

// RunOne processes a single URL: fetch, then extract when the page has
// content, then persist when a record was extracted. It never panics on a
// stage failure; the failure is reported in the Outcome.
func (p *Pipeline) RunOne(ctx context.Context, rawURL string) models.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runOne(ctx, rawURL, p.logger)
}

// Run processes urls in order, one at a time, and returns one Outcome per
// processed URL. A failing URL never stops the batch; a cancelled context
// stops it before the next URL.
func (p *Pipeline) Run(ctx context.Context, urls []string) []models.Outcome {
	runID := uuid.New().String()
	logger := p.logger.With(zap.String("run_id", runID))
	logger.Info("batch started", zap.Int("urls", len(urls)))
	p.metrics.ObserveBatch(len(urls))

	start := time.Now()
	outcomes := make([]models.Outcome, 0, len(urls))
	for i, rawURL := range urls {
		if err := ctx.Err(); err != nil {
			logger.Warn("batch cancelled", zap.Int("remaining", len(urls)-i), zap.Error(err))
			break
		}
		fmt.Fprintf(p.progress, "[%d/%d] Processing %s\n", i+1, len(urls), rawURL)

		p.mu.Lock()
		outcome := p.runOne(ctx, rawURL, logger)
		p.mu.Unlock()
		outcomes = append(outcomes, outcome)
	}

	summary := models.Summarize(outcomes)
	logger.Info("batch finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("took", time.Since(start)),
	)
	return outcomes
}

func (p *Pipeline) runOne(ctx context.Context, rawURL string, logger *zap.Logger) models.Outcome {
	start := time.Now()
	out := models.Outcome{URL: rawURL}
	if p.persister != nil {
		out.DocumentID = p.persister.DocumentID(rawURL)
	}
	logger = logger.With(zap.String("url", rawURL))

	finish := func(stage models.Stage, err error) models.Outcome {
		out.Stage = stage
		out.Err = err
		out.Duration = time.Since(start)
		result := metrics.ResultOK
		switch {
		case errors.Is(err, ErrEmptyContent):
			result = metrics.ResultEmpty
		case err != nil:
			result = metrics.ResultError
		}
		p.metrics.ObserveURL(string(stage), result)
		if err != nil {
			logger.Error("url failed", zap.String("stage", string(stage)), zap.Error(err))
			fmt.Fprintf(p.progress, "  ✗ %s failed for %s: %v\n", stage, rawURL, err)
		} else {
			logger.Info("url stored", zap.String("doc_id", out.DocumentID), zap.Duration("took", out.Duration))
			fmt.Fprintf(p.progress, "  ✓ Stored %s as %s\n", rawURL, out.DocumentID)
		}
		return out
	}

	stageStart := time.Now()
	content, err := p.fetcher.Fetch(ctx, rawURL)
	p.metrics.ObserveStage(string(models.StageFetch), time.Since(stageStart))
	if err != nil {
		return finish(models.StageFetch, err)
	}
	if content.Empty() {
		return finish(models.StageFetch, ErrEmptyContent)
	}
	logger.Debug("fetched", zap.Int("content_len", len(content.Content)))

	stageStart = time.Now()
	record, err := p.extractor.Extract(ctx, content, rawURL)
	p.metrics.ObserveStage(string(models.StageExtract), time.Since(stageStart))
	if err != nil {
		return finish(models.StageExtract, err)
	}
	out.Record = record

	if p.persister == nil {
		return finish(models.StagePersist, errors.New("no persister configured"))
	}
	stageStart = time.Now()
	doc, err := p.persister.Upsert(ctx, record, rawURL)
	p.metrics.ObserveStage(string(models.StagePersist), time.Since(stageStart))
	if err != nil {
		return finish(models.StagePersist, err)
	}
	out.DocumentID = doc.ID
	return finish(models.StageDone, nil)
}

// Records returns every extracted record in outcome order, including records
// whose write failed.
func Records(outcomes []models.Outcome) []*models.ProductRecord {
	records := make([]*models.ProductRecord, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Record != nil {
			records = append(records, o.Record)
		}
	}
	return records
}
