// Package storage defines the persistence interface for product documents.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/shohin/internal/models"
)

// ErrNotFound is returned when no document has the requested ID.
var ErrNotFound = errors.New("document not found")

// Store persists product documents keyed by their URL identity.
type Store interface {
	// Upsert inserts doc or fully replaces the document with the same ID.
	// CreatedAt survives replacement; UpdatedAt is refreshed. Both are set on doc.
	Upsert(ctx context.Context, doc *models.StoredDocument) error
	Get(ctx context.Context, id string) (*models.StoredDocument, error)
	// List returns documents, most recently updated first.
	List(ctx context.Context, offset, limit int) ([]*models.StoredDocument, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}
