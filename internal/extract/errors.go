package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyReply is returned when the model answers with no content.
	ErrEmptyReply = errors.New("model returned an empty reply")
	// ErrNotConfigured is returned when no chat client was configured.
	ErrNotConfigured = errors.New("language model is not configured")
)

// Error is a failed extraction for one URL. No record is produced.
type Error struct {
	URL   string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
