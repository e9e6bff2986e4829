package pagination

import (
	"github.com/Sternrassler/pagetable/pkg/table"
)

// Unknown marks a total the response did not carry.
const Unknown = -1

// PageResponse is one decoded page.
type PageResponse struct {
	// Page is the logical, 1-based page number.
	Page int

	// TotalCount is the total row count reported upstream, or Unknown.
	TotalCount int

	// TotalPages is the total page count reported upstream, or Unknown.
	TotalPages int

	// Records are the page's raw rows in source order.
	Records []table.Record
}

// Decoder parses a page body.
type Decoder interface {
	Decode(body []byte) (*PageResponse, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(body []byte) (*PageResponse, error)

// Decode calls f(body).
func (f DecoderFunc) Decode(body []byte) (*PageResponse, error) {
	return f(body)
}

// totalPages derives the page count from the first page.
func totalPages(resp *PageResponse, pageSize int) (int, error) {
	switch {
	case resp.TotalPages >= 0:
		return resp.TotalPages, nil
	case resp.TotalCount >= 0:
		return (resp.TotalCount + pageSize - 1) / pageSize, nil
	case len(resp.Records) == 0:
		return 0, nil
	default:
		return 0, ErrNoPageCount
	}
}
