// Package query builds arXiv search requests from categories, paper
// identifiers and raw query expressions.
package query

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidInput is returned when search tokens cannot be turned into a spec.
	ErrInvalidInput = errors.New("invalid search input")
	// ErrInvalidParameter is returned when request parameters are out of range.
	ErrInvalidParameter = errors.New("invalid search parameter")
)

// Spec holds either a search query or a comma-separated identifier list.
// Specs built from tokens never populate both.
type Spec struct {
	SearchQuery string
	IDList      string
}

// Empty reports whether the spec selects nothing.
func (s Spec) Empty() bool {
	return s.SearchQuery == "" && s.IDList == ""
}

func (s Spec) String() string {
	if s.IDList != "" {
		return "id_list=" + s.IDList
	}
	return s.SearchQuery
}

// BuildSpec turns one or more tokens into a Spec:
//
//	"cs.CV"                  -> cat:cs.CV
//	"cs.CV", "cs.AI"         -> cat:cs.CV OR cat:cs.AI
//	"2101.00001"             -> id_list=2101.00001
//	"2101.00001", "2102.2"   -> id_list=2101.00001,2102.2
//	"ti:foo AND au:bar"      -> verbatim query
func BuildSpec(tokens ...string) (Spec, error) {
	kind, err := ClassifyBatch(tokens)
	if err != nil {
		return Spec{}, err
	}

	switch kind {
	case BatchCategories:
		parts := make([]string, len(tokens))
		for i, c := range tokens {
			parts[i] = "cat:" + c
		}
		return Spec{SearchQuery: strings.Join(parts, " OR ")}, nil
	case BatchIdentifiers:
		return Spec{IDList: strings.Join(tokens, ",")}, nil
	default:
		return Spec{SearchQuery: tokens[0]}, nil
	}
}

// FromSubject searches all fields for every word of subject.
func FromSubject(subject string) Spec {
	words := strings.Fields(subject)
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = "all:" + w
	}
	return Spec{SearchQuery: strings.Join(parts, " AND ")}
}

// FromPaperTitle searches by title, narrowed to an author when one is given.
func FromPaperTitle(title, author string) Spec {
	q := "ti:" + strings.TrimSpace(title)
	if author = strings.TrimSpace(author); author != "" {
		q += " AND au:" + author
	}
	return Spec{SearchQuery: q}
}
