package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Text is a nullable scalar field of a product record. It decodes JSON strings,
// numbers and booleans (language models are loose about quoting) and always
// encodes as a JSON string, or null when unset.
type Text struct {
	Value string
	Valid bool
}

// NewText returns a set Text holding s.
func NewText(s string) Text {
	return Text{Value: s, Valid: true}
}

// Null returns an unset Text.
func Null() Text {
	return Text{}
}

// String returns the value, or "" when unset.
func (t Text) String() string {
	return t.Value
}

// MarshalJSON implements json.Marshaler.
func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(t.Value); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*t = Text{}
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = NewText(s)
	case '{', '[':
		return fmt.Errorf("expected a scalar value, got %s", jsonKind(trimmed[0]))
	default:
		// numbers and booleans keep their literal spelling
		*t = NewText(string(trimmed))
	}
	return nil
}

// Texts returns the set values of list, skipping nulls.
func Texts(list []Text) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		if t.Valid {
			out = append(out, t.Value)
		}
	}
	return out
}

func jsonKind(first byte) string {
	if first == '{' {
		return "object"
	}
	return "array"
}
