package model

import "fmt"

// MaxPageSize is the largest page a single request may ask for.
const MaxPageSize = 1000

// PageRequest describes the page a caller wants.
type PageRequest struct {
	Offset int     `json:"offset"`
	Size   int     `json:"size"`
	Filter *Filter `json:"filter,omitempty"`
	Order  *Order  `json:"order,omitempty"`
}

// Validate returns an error wrapping ErrInvalidRequest if the request is malformed.
func (r PageRequest) Validate() error {
	if r.Offset < 0 {
		return fmt.Errorf("%w: offset must be >= 0, got %d", ErrInvalidRequest, r.Offset)
	}
	if r.Size <= 0 || r.Size > MaxPageSize {
		return fmt.Errorf("%w: size must be in 1..%d, got %d", ErrInvalidRequest, MaxPageSize, r.Size)
	}
	if r.Filter != nil && !r.Filter.Validate() {
		return fmt.Errorf("%w: filter needs a field and one of %v", ErrInvalidRequest, ValidOps())
	}
	if r.Order != nil && !r.Order.Validate() {
		return fmt.Errorf("%w: order needs a field and direction asc or desc", ErrInvalidRequest)
	}
	return nil
}

// Page is one slice of a listing.
type Page struct {
	Offset    int        `json:"offset"`
	Size      int        `json:"size"`
	Documents []Document `json:"documents"`
	// Total is the number of documents matching the request across all pages.
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
	// Skipped counts documents inside the page window that could not be decoded.
	Skipped int `json:"skipped"`
}

// NewPage builds a page from the documents of the window [offset, offset+size).
func NewPage(req PageRequest, docs []Document, total int, skipped int) *Page {
	if docs == nil {
		docs = []Document{}
	}
	return &Page{
		Offset:    req.Offset,
		Size:      req.Size,
		Documents: docs,
		Total:     total,
		HasMore:   req.Offset < total-req.Size,
		Skipped:   skipped,
	}
}

// Window returns the [start, end) bounds of the request over n items.
func (r PageRequest) Window(n int) (int, int) {
	start := r.Offset
	if start > n {
		start = n
	}
	end := start + r.Size
	if end > n {
		end = n
	}
	return start, end
}
