// Package docid derives the deterministic document ID of a product page from its URL.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/PuerkitoBio/purell"
)

// normalizeFlags lowercases scheme and host, drops the default port, removes
// dot segments, the fragment, and a trailing slash, and sorts the query.
const normalizeFlags = purell.FlagsSafe |
	purell.FlagsUsuallySafeNonGreedy |
	purell.FlagRemoveFragment |
	purell.FlagSortQuery

// URLDocID returns the hex SHA-256 of the exact URL bytes.
// Same URL always yields the same ID; no normalization is applied, so
// "https://a.test/p" and "https://a.test/p/" are different documents.
func URLDocID(rawURL string) string {
	hash := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(hash[:])
}

// NormalizeURL returns the canonical form of rawURL used by NormalizedURLDocID.
func NormalizeURL(rawURL string) (string, error) {
	normalized, err := purell.NormalizeURLString(rawURL, normalizeFlags)
	if err != nil {
		return "", fmt.Errorf("normalize url %q: %w", rawURL, err)
	}
	return normalized, nil
}

// NormalizedURLDocID hashes the normalized URL. URLs that fail to parse fall
// back to their exact bytes.
func NormalizedURLDocID(rawURL string) string {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return URLDocID(rawURL)
	}
	return URLDocID(normalized)
}

// Func maps a URL to its document ID.
type Func func(rawURL string) string

// New returns the ID function for the given normalization setting.
func New(normalize bool) Func {
	if normalize {
		return NormalizedURLDocID
	}
	return URLDocID
}
