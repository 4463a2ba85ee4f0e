package models

import "time"

// StoredDocument is a product record persisted under its URL identity.
type StoredDocument struct {
	ID        string         `json:"id" db:"id"`
	SourceURL string         `json:"source_url" db:"source_url"`
	Title     string         `json:"title" db:"title"`
	Record    *ProductRecord `json:"record" db:"record"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// RawContent is the rendered page returned by the reader service. It lives only
// in memory for the duration of one URL.
type RawContent struct {
	URL     string            `json:"url"`
	Title   string            `json:"title"`
	Content string            `json:"content"`
	Links   map[string]string `json:"links,omitempty"`
	Images  map[string]string `json:"images,omitempty"`
}

// Empty reports whether the page has no usable text.
func (c *RawContent) Empty() bool {
	if c == nil {
		return true
	}
	for _, r := range c.Content {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}
