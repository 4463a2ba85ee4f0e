package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hyperjump/shohin/internal/models"
)

func sampleDoc(id, url, title string) *models.StoredDocument {
	rec := models.NewProductRecord()
	rec.ProductDetails.Title = models.NewText(title)
	rec.Metadata.SourceURL = url
	rec.Metadata.DocumentID = id
	rec.Metadata.ScrapeTimestamp = time.Now().UTC().Format(time.RFC3339Nano)
	return &models.StoredDocument{ID: id, SourceURL: url, Title: title, Record: rec}
}

// testStoreContract runs the behaviour every Store must share.
func testStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	doc := sampleDoc("id1", "https://a.test/p1", "First")
	if err := store.Upsert(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt.IsZero() || doc.UpdatedAt.IsZero() {
		t.Fatalf("timestamps should be set: %+v", doc)
	}
	firstCreated := doc.CreatedAt

	got, err := store.Get(ctx, "id1")
	if err != nil {
		t.Fatal(err)
	}
	if got.SourceURL != "https://a.test/p1" || got.Record.ProductDetails.Title.String() != "First" {
		t.Errorf("got %+v", got)
	}
	if got.Record.ProductContent.KeyFeatures == nil {
		t.Error("lists should come back as empty slices")
	}
	if got.Record.ProductDetails.Brand.Valid {
		t.Error("null scalar should stay null")
	}

	// Re-upserting the same ID replaces the record and keeps one document.
	time.Sleep(5 * time.Millisecond)
	again := sampleDoc("id1", "https://a.test/p1", "Second")
	if err := store.Upsert(ctx, again); err != nil {
		t.Fatal(err)
	}
	n, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 document after re-upsert, got %d", n)
	}
	got, err = store.Get(ctx, "id1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Record.ProductDetails.Title.String() != "Second" {
		t.Errorf("expected last write to win, got %q", got.Record.ProductDetails.Title.String())
	}
	if got.Record.Metadata.ScrapeTimestamp != again.Record.Metadata.ScrapeTimestamp {
		t.Errorf("expected latest scrape_timestamp %q, got %q", again.Record.Metadata.ScrapeTimestamp, got.Record.Metadata.ScrapeTimestamp)
	}
	if !got.CreatedAt.Equal(firstCreated) {
		t.Errorf("created_at should survive overwrite: %v vs %v", got.CreatedAt, firstCreated)
	}
	if !again.CreatedAt.Equal(firstCreated) {
		t.Errorf("Upsert should report original created_at: %v vs %v", again.CreatedAt, firstCreated)
	}
	if got.UpdatedAt.Before(firstCreated) {
		t.Errorf("updated_at should be refreshed: %v", got.UpdatedAt)
	}

	for i := 2; i <= 3; i++ {
		time.Sleep(2 * time.Millisecond)
		d := sampleDoc(fmt.Sprintf("id%d", i), fmt.Sprintf("https://a.test/p%d", i), "T")
		if err := store.Upsert(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	list, err := store.List(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 docs, got %d", len(list))
	}
	if list[0].ID != "id3" {
		t.Errorf("expected most recently updated first, got %s", list[0].ID)
	}
	page, err := store.List(ctx, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != "id2" {
		t.Errorf("expected id2 on second page, got %+v", page)
	}

	_, err = store.Get(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.Upsert(ctx, &models.StoredDocument{}); err == nil {
		t.Error("expected error for empty id")
	}
}
