package persist

import "fmt"

// Error is a failed write of one record. It never aborts a batch.
type Error struct {
	URL        string
	DocumentID string
	Cause      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("persist %s (%s): %v", e.URL, e.DocumentID, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
