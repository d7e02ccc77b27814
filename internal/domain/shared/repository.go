package shared

// Filter holds common list-query options shared by all repositories
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string // asc, desc
	Filters  map[string]interface{}
}

// NewFilter creates a filter with sensible defaults
func NewFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: 20,
		Filters:  make(map[string]interface{}),
	}
}

// Offset returns the row offset implied by the pagination settings
func (f Filter) Offset() int {
	if f.Page <= 0 || f.PageSize <= 0 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}
