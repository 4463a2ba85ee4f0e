// Package export writes extracted product records to a JSON array file.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hyperjump/shohin/internal/models"
)

// Encode writes records as one indented JSON array without HTML escaping.
// A nil or empty slice encodes as [].
func Encode(w io.Writer, records []*models.ProductRecord) error {
	if records == nil {
		records = []*models.ProductRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return nil
}

// WriteFile writes records to path, creating parent directories. The file is
// written to a temporary sibling first and renamed into place.
func WriteFile(path string, records []*models.ProductRecord) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, records); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("set output file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

// ReadFile reads a JSON array of records written by WriteFile.
func ReadFile(path string) ([]*models.ProductRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []*models.ProductRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}
