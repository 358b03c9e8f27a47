package view

import "call-inbox/internal/calls"

// DefaultPageSize is used when a caller passes a non-positive page size.
const DefaultPageSize = 10

// Page is one slice of a filtered sequence.
type Page struct {
	Visible         []calls.Call `json:"calls"`
	PageCount       int          `json:"page_count"`
	CorrectedOffset int          `json:"offset"`
	Total           int          `json:"total"`
}

// Paginate slices filtered[offset:offset+pageSize].
//
// An offset past the end (or negative) is reset to 0 before slicing, so a
// shrunken result set never strands the reader on an empty page.
func Paginate(filtered []calls.Call, pageSize, offset int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if filtered == nil {
		filtered = []calls.Call{}
	}
	total := len(filtered)
	if offset < 0 || offset >= total {
		offset = 0
	}

	end := offset + pageSize
	if end > total {
		end = total
	}

	return Page{
		Visible:         filtered[offset:end],
		PageCount:       pageCount(total, pageSize),
		CorrectedOffset: offset,
		Total:           total,
	}
}

// PageOffset converts a zero-based page pick into an item offset.
// Picks past the data wrap around instead of failing.
func PageOffset(page, pageSize, total int) int {
	if total <= 0 {
		return 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 0 {
		page = 0
	}
	return (page * pageSize) % total
}

func pageCount(total, pageSize int) int {
	if total == 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
