package apiclient

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ListInput is the query shape shared by every list endpoint. Nil fields are left out.
type ListInput struct {
	Page     *int
	PerPage  *int
	Sort     *string
	SortDir  *SortDirection
	Filter   *string
	IsActive *bool
}

func (in ListInput) Params() Params {
	return Params{
		"page":     in.Page,
		"perPage":  in.PerPage,
		"sort":     in.Sort,
		"sortDir":  in.SortDir,
		"filter":   in.Filter,
		"isActive": in.IsActive,
	}
}
