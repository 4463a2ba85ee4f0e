package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/shohin/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		source_url TEXT NOT NULL,
		title TEXT,
		record TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_products_updated_at ON products(updated_at);
	CREATE INDEX IF NOT EXISTS idx_products_source_url ON products(source_url);
	`
	_, err := db.Exec(schema)
	return err
}

// Upsert inserts or replaces a document in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, doc *models.StoredDocument) error {
	if doc.ID == "" {
		return errors.New("document id is required")
	}
	recordJSON, err := json.Marshal(doc.Record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	now := s.now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO products (id, source_url, title, record, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			source_url = excluded.source_url,
			title = excluded.title,
			record = excluded.record,
			updated_at = excluded.updated_at`,
		doc.ID, doc.SourceURL, doc.Title, string(recordJSON), now, now,
	)
	if err != nil {
		return err
	}

	var createdAt time.Time
	if err := tx.QueryRowContext(ctx, `SELECT created_at FROM products WHERE id = ?`, doc.ID).Scan(&createdAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	doc.CreatedAt = createdAt
	doc.UpdatedAt = now
	return nil
}

// Get returns a document by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.StoredDocument, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_url, title, record, created_at, updated_at
		 FROM products WHERE id = ?`, id,
	)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, err
}

// List returns documents with offset and limit.
func (s *SQLiteStore) List(ctx context.Context, offset, limit int) ([]*models.StoredDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_url, title, record, created_at, updated_at
		 FROM products ORDER BY updated_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.StoredDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count returns the total number of documents.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.StoredDocument, error) {
	var doc models.StoredDocument
	var title sql.NullString
	var recordJSON string
	if err := row.Scan(&doc.ID, &doc.SourceURL, &title, &recordJSON, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Title = title.String
	var record models.ProductRecord
	if err := json.Unmarshal([]byte(recordJSON), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %s: %w", doc.ID, err)
	}
	record.Normalize()
	doc.Record = &record
	return &doc, nil
}
