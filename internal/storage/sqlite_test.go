package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteStore_Contract(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "products.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	testStoreContract(t, store)
}

func TestSQLiteStore_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "products.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected empty store, got %d", n)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(ctx, sampleDoc("id1", "https://a.test/p1", "Kept")); err != nil {
		t.Fatal(err)
	}
	store.Close()

	store, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	got, err := store.Get(ctx, "id1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Kept" {
		t.Errorf("got title %q", got.Title)
	}
}
