package pagination

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/jrsteele09/reconfile-dashboard/apiclient"
	"github.com/jrsteele09/reconfile-dashboard/internal/utils"
)

const (
	pageParam   = "page"
	filterParam = "filter"
	windowSize  = 3
)

// Links returns the page numbers shown around current: at most three, clamped to 1..last.
func Links(current, last int) []int {
	if last <= windowSize {
		links := make([]int, 0, last)
		for p := 1; p <= last; p++ {
			links = append(links, p)
		}
		return links
	}
	switch {
	case current <= 1:
		return []int{1, 2, 3}
	case current >= last:
		return []int{last - 2, last - 1, last}
	default:
		return []int{current - 1, current, current + 1}
	}
}

func HasPrev(current int) bool {
	return current > 1
}

func HasNext(current, last int) bool {
	return current < last
}

// PageURL returns path with query, where page is replaced and every other parameter kept
func PageURL(path string, query url.Values, page int) string {
	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	q.Set(pageParam, strconv.Itoa(page))
	return path + "?" + q.Encode()
}

// SearchState is the list state carried in the page URL
type SearchState struct {
	Page   *int
	Filter *string
}

// ParseSearchState reads page and filter from a query string. A page that is not a
// positive integer and a blank filter are treated as absent.
func ParseSearchState(query url.Values) SearchState {
	var s SearchState
	if n, err := strconv.Atoi(strings.TrimSpace(query.Get(pageParam))); err == nil && n > 0 {
		s.Page = &n
	}
	s.Filter = utils.NonEmpty(query.Get(filterParam))
	return s
}

// ListInput turns the state into the query of a list call
func (s SearchState) ListInput() apiclient.ListInput {
	return apiclient.ListInput{Page: s.Page, Filter: s.Filter}
}

// FilterValue is the filter as typed, or "" when absent
func (s SearchState) FilterValue() string {
	return utils.Value(s.Filter)
}

type Link struct {
	Page   int
	URL    string
	Active bool
}

// View is everything a template needs to render a pager
type View struct {
	Current int
	Last    int
	Total   int
	Links   []Link
	HasPrev bool
	HasNext bool
	PrevURL string
	NextURL string
}

func NewView(path string, query url.Values, meta apiclient.Meta) View {
	current := meta.CurrentPage
	if current < 1 {
		current = 1
	}
	last := meta.LastPage
	if last < 1 {
		last = 1
	}

	v := View{
		Current: current,
		Last:    last,
		Total:   meta.Total,
		HasPrev: HasPrev(current),
		HasNext: HasNext(current, last),
	}
	for _, p := range Links(current, last) {
		v.Links = append(v.Links, Link{Page: p, URL: PageURL(path, query, p), Active: p == current})
	}
	if v.HasPrev {
		v.PrevURL = PageURL(path, query, current-1)
	}
	if v.HasNext {
		v.NextURL = PageURL(path, query, current+1)
	}
	return v
}
