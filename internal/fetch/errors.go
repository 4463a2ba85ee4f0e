package fetch

import (
	"fmt"

	"github.com/hyperjump/shohin/pkg/utils"
)

// maxErrorBody bounds the response body kept on an Error.
const maxErrorBody = 2048

// Error is a failed fetch of one URL. Status and Body are set when the reader
// answered with a non-2xx status; Cause is set for transport and decoding
// failures.
type Error struct {
	URL    string
	Status int
	Body   string
	Cause  error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Cause != nil:
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Cause)
	case e.Status != 0:
		return fmt.Sprintf("fetch %s: status %d: %s", e.URL, e.Status, utils.Truncate(e.Body, 200))
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}
