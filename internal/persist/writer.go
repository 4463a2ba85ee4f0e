// Package persist stamps product records and writes them idempotently to a store.
package persist

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/shohin/internal/docid"
	"github.com/hyperjump/shohin/internal/keyword"
	"github.com/hyperjump/shohin/internal/models"
	"github.com/hyperjump/shohin/internal/storage"
	"go.uber.org/zap"
)

// ErrNoStore is returned when the writer has no store.
var ErrNoStore = errors.New("no document store configured")

// Writer upserts records keyed by the identity of their URL and keeps the
// keyword index in step.
type Writer struct {
	store  storage.Store
	index  keyword.Index
	idFunc docid.Func
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithIndex adds written records to a keyword index.
func WithIndex(idx keyword.Index) Option {
	return func(w *Writer) { w.index = idx }
}

// WithIDFunc sets how URLs map to document IDs. Default is docid.URLDocID.
func WithIDFunc(f docid.Func) Option {
	return func(w *Writer) {
		if f != nil {
			w.idFunc = f
		}
	}
}

// WithClock sets the time source for scrape timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// NewWriter creates a Writer on store.
func NewWriter(store storage.Store, opts ...Option) *Writer {
	w := &Writer{
		store:  store,
		idFunc: docid.URLDocID,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// DocumentID returns the ID rawURL is stored under.
func (w *Writer) DocumentID(rawURL string) string {
	return w.idFunc(rawURL)
}

// Stamp overwrites the record's metadata with the exact URL, the current
// time, and the document ID.
func (w *Writer) Stamp(record *models.ProductRecord, rawURL string) string {
	id := w.idFunc(rawURL)
	record.Normalize()
	record.Metadata.SourceURL = rawURL
	record.Metadata.ScrapeTimestamp = w.now().UTC().Format(time.RFC3339Nano)
	record.Metadata.DocumentID = id
	return id
}

// Upsert stamps record (in place) and writes it, replacing any earlier
// document for the same URL. Failures are returned as *Error. An indexing
// failure after a successful write is only logged.
func (w *Writer) Upsert(ctx context.Context, record *models.ProductRecord, rawURL string) (*models.StoredDocument, error) {
	if record == nil {
		record = models.NewProductRecord()
	}
	id := w.Stamp(record, rawURL)
	if w.store == nil {
		return nil, &Error{URL: rawURL, DocumentID: id, Cause: ErrNoStore}
	}

	doc := &models.StoredDocument{
		ID:        id,
		SourceURL: rawURL,
		Title:     record.ProductDetails.Title.String(),
		Record:    record,
	}
	if err := w.store.Upsert(ctx, doc); err != nil {
		return nil, &Error{URL: rawURL, DocumentID: id, Cause: err}
	}

	if w.index != nil {
		if err := w.index.Index(ctx, id, record); err != nil {
			w.logger.Warn("keyword index failed", zap.String("url", rawURL), zap.String("doc_id", id), zap.Error(err))
		}
	}
	w.logger.Debug("document stored", zap.String("url", rawURL), zap.String("doc_id", id))
	return doc, nil
}
