package apiclient

// Response wraps a single entity
type Response[T any] struct {
	Data T `json:"data"`
}

// Meta describes the page a list response holds
type Meta struct {
	CurrentPage int `json:"currentPage"`
	PerPage     int `json:"perPage"`
	LastPage    int `json:"lastPage"`
	Total       int `json:"total"`
}

// ListResponse wraps one page of entities
type ListResponse[T any] struct {
	Data []T `json:"data"`
	Meta Meta `json:"meta"`
}
