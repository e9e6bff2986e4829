package pagination

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPageSize is returned when a request's page size is not a positive integer.
	ErrInvalidPageSize = errors.New("page size must be a positive integer")

	// ErrInvalidRequest is returned for a request that cannot be rendered.
	ErrInvalidRequest = errors.New("invalid page request")

	// ErrNoPageCount is returned when the first page carries rows but neither a page nor a row count.
	ErrNoPageCount = errors.New("response carries neither total pages nor total count")

	// ErrUnexpectedStatus is returned for a non-2xx page response.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrNoResponse is returned when a decoder yields neither a response nor an error.
	ErrNoResponse = errors.New("decoder returned no response")
)

// PageError wraps a failure to fetch or decode one page.
type PageError struct {
	// Page is the logical, 1-based page number.
	Page int

	// Value is the page parameter value sent upstream.
	Value int

	Err error
}

// Error implements the error interface.
func (e *PageError) Error() string {
	return fmt.Sprintf("page %d (param %d): %v", e.Page, e.Value, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PageError) Unwrap() error {
	return e.Err
}
