package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// SortBy selects the arXiv result ordering.
type SortBy string

const (
	SortByRelevance   SortBy = "relevance"
	SortByLastUpdated SortBy = "lastUpdatedDate"
	SortBySubmitted   SortBy = "submittedDate"
)

// SortOrder selects the direction of SortBy.
type SortOrder string

const (
	SortAscending  SortOrder = "ascending"
	SortDescending SortOrder = "descending"
)

// MaxResultsCap is the largest page the arXiv API serves in one call.
const MaxResultsCap = 2000

// Request is a fully parameterised search against the feed.
type Request struct {
	Spec       Spec
	Start      int
	MaxResults int
	SortBy     SortBy
	SortOrder  SortOrder
}

// Validate checks the paging and sorting parameters.
func (r Request) Validate() error {
	switch r.SortBy {
	case SortByRelevance, SortByLastUpdated, SortBySubmitted:
	default:
		return fmt.Errorf("%w: unknown sorting type %q", ErrInvalidParameter, r.SortBy)
	}
	switch r.SortOrder {
	case SortAscending, SortDescending:
	default:
		return fmt.Errorf("%w: unknown ordering %q", ErrInvalidParameter, r.SortOrder)
	}
	if r.Start < 0 {
		return fmt.Errorf("%w: start %d is negative", ErrInvalidParameter, r.Start)
	}
	if r.MaxResults <= 0 || r.MaxResults > MaxResultsCap {
		return fmt.Errorf("%w: max_results %d outside 1..%d", ErrInvalidParameter, r.MaxResults, MaxResultsCap)
	}
	return nil
}

// Encode validates the request and serializes it as a query string. Every
// field is written, empty or not, in a fixed order.
func (r Request) Encode() (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	fields := [][2]string{
		{"search_query", r.Spec.SearchQuery},
		{"id_list", r.Spec.IDList},
		{"start", strconv.Itoa(r.Start)},
		{"max_results", strconv.Itoa(r.MaxResults)},
		{"sortBy", string(r.SortBy)},
		{"sortOrder", string(r.SortOrder)},
	}

	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(f[0])
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(f[1]))
	}
	return sb.String(), nil
}

// Finalize is shorthand for building a Request and encoding it.
func Finalize(spec Spec, start, maxResults int, sortBy SortBy, sortOrder SortOrder) (string, error) {
	return Request{
		Spec:       spec,
		Start:      start,
		MaxResults: maxResults,
		SortBy:     sortBy,
		SortOrder:  sortOrder,
	}.Encode()
}
