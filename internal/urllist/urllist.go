// Package urllist reads URL lists from CSV, XLSX, and plain text files.
package urllist

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Extensions lists the file extensions Read understands.
var Extensions = []string{".csv", ".xlsx", ".txt"}

// Read returns the URLs listed in the file at path, in file order.
// CSV and XLSX files contribute the first column of each row, text files one
// URL per line. Cells are trimmed and blank rows are skipped.
func Read(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return Parse(content, ext)
}

// Parse reads URLs from content based on the given extension.
// ext should include the leading dot (e.g. ".csv").
func Parse(content []byte, ext string) ([]string, error) {
	switch ext {
	case ".csv":
		return parseCSV(bytes.NewReader(content))
	case ".xlsx":
		return parseExcel(content)
	case ".txt", ".list", "":
		return parseLines(content), nil
	default:
		return nil, fmt.Errorf("unsupported url list format %q", ext)
	}
}

// Supported reports whether path has an extension Read understands.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func parseCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var urls []string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		if u := firstCell(row); u != "" {
			urls = append(urls, u)
		}
	}
	return urls, nil
}

func parseExcel(content []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	var urls []string
	for _, row := range rows {
		if u := firstCell(row); u != "" {
			urls = append(urls, u)
		}
	}
	return urls, nil
}

// parseLines reads one URL per line; lines starting with # are comments.
func parseLines(content []byte) []string {
	var urls []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls
}

func firstCell(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(row[0], "\ufeff"))
}
