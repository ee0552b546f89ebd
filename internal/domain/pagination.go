package domain

// PaginationParams selects one page of a list. Page is 1-based.
type PaginationParams struct {
	Page     int
	PageSize int
}

// Offset is the number of items preceding the page.
func (p PaginationParams) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Window returns the [lo, hi) bounds of the page within n items. A
// non-positive PageSize selects everything from the offset on.
func (p PaginationParams) Window(n int) (lo, hi int) {
	lo = min(p.Offset(), n)
	if p.PageSize <= 0 {
		return lo, n
	}
	return lo, min(lo+p.PageSize, n)
}
