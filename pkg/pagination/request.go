package pagination

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Placeholders substituted in the URL and body of a PageRequest.
const (
	PagePlaceholder     = "{page}"
	PageSizePlaceholder = "{page_size}"
)

// PageRequest describes a paginated endpoint. Only the page index varies between pages.
type PageRequest struct {
	// URL is the endpoint. It may carry {page} and {page_size} placeholders
	// for endpoints that encode the page in the path.
	URL string

	// Method is GET (default) or POST.
	Method string

	// Params are fixed query parameters.
	Params url.Values

	// Headers are sent with every page request.
	Headers http.Header

	// Body is sent with every page request; placeholders are substituted.
	Body []byte

	// PageParam is the query parameter holding the page index.
	PageParam string

	// SizeParam is the query parameter holding the page size.
	SizeParam string

	// PageSize is the number of rows requested per page.
	PageSize int

	// FirstPage is the index the endpoint uses for its first page (0 or 1).
	FirstPage int
}

// Paged reports whether the endpoint takes a page index at all.
// Unpaged endpoints are fetched with a single request.
func (r PageRequest) Paged() bool {
	return r.PageParam != "" ||
		strings.Contains(r.URL, PagePlaceholder) ||
		bytes.Contains(r.Body, []byte(PagePlaceholder))
}

// Validate checks that the request can be rendered for any page.
func (r PageRequest) Validate() error {
	if r.PageSize <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidPageSize, r.PageSize)
	}
	if r.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidRequest)
	}
	if r.FirstPage < 0 {
		return fmt.Errorf("%w: first page must be >= 0 (got %d)", ErrInvalidRequest, r.FirstPage)
	}
	switch strings.ToUpper(r.Method) {
	case "", http.MethodGet, http.MethodPost:
	default:
		return fmt.Errorf("%w: unsupported method %q", ErrInvalidRequest, r.Method)
	}
	return nil
}

// PageValue maps a logical 1-based page number to the endpoint's page index.
func (r PageRequest) PageValue(page int) int {
	return r.FirstPage + page - 1
}

// Build renders the HTTP request for a logical 1-based page number.
func (r PageRequest) Build(ctx context.Context, page int) (*http.Request, error) {
	value := strconv.Itoa(r.PageValue(page))
	size := strconv.Itoa(r.PageSize)
	replacer := strings.NewReplacer(PagePlaceholder, value, PageSizePlaceholder, size)

	u, err := url.Parse(replacer.Replace(r.URL))
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %v", ErrInvalidRequest, err)
	}

	q := u.Query()
	for key, values := range r.Params {
		q.Del(key)
		for _, v := range values {
			q.Add(key, v)
		}
	}
	if r.PageParam != "" {
		q.Set(r.PageParam, value)
	}
	if r.SizeParam != "" {
		q.Set(r.SizeParam, size)
	}
	u.RawQuery = q.Encode()

	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(r.Body) > 0 {
		body = strings.NewReader(replacer.Replace(string(r.Body)))
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range r.Headers {
		req.Header[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}
	return req, nil
}
