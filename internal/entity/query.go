package entity

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// SortOrder selects ascending or descending order. Anything but SortDesc is ascending.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Query describes a list request.
type Query struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder SortOrder
	Search    string
}

// Normalize clamps paging values: page < 1 becomes 1, limit <= 0 becomes
// DefaultLimit and limit above MaxLimit becomes MaxLimit.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.SortOrder != SortDesc {
		q.SortOrder = SortAsc
	}
	return q
}

// Offset returns the index of the first item on the page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Page is one slice of a filtered, sorted listing.
type Page[E any] struct {
	Items      []E
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

func totalPages(total, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

func paginate[E any](items []E, q Query) Page[E] {
	total := len(items)
	start := total
	if q.Page-1 <= total/q.Limit {
		start = min(q.Offset(), total)
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	out := make([]E, end-start)
	copy(out, items[start:end])
	return Page[E]{
		Items:      out,
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      total,
		TotalPages: totalPages(total, q.Limit),
	}
}
