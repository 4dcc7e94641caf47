package query

import "fmt"

// Kind is the classification of a single search token.
type Kind int

const (
	KindFreeText Kind = iota
	KindCategory
	KindIdentifier
)

func (k Kind) String() string {
	switch k {
	case KindCategory:
		return "category"
	case KindIdentifier:
		return "identifier"
	default:
		return "free text"
	}
}

// BatchKind is the classification of a list of tokens.
type BatchKind int

const (
	BatchMixed BatchKind = iota
	BatchCategories
	BatchIdentifiers
)

// minCategoryLen is the shortest leading run accepted as a category ("cs.CV").
const minCategoryLen = 5

// IsCategory reports whether token starts with a run of letters, dots and
// hyphens longer than four characters, e.g. "cs.CV" or "hep-th".
func IsCategory(token string) bool {
	n := 0
	for n < len(token) && isCategoryByte(token[n]) {
		n++
	}
	return n >= minCategoryLen
}

// IsPaperID reports whether token contains a digits.digits substring,
// e.g. "2101.01234" or "arXiv:2101.01234v2". Classify still returns
// KindCategory for the latter since its leading run "arXiv" is long enough.
func IsPaperID(token string) bool {
	for i := 0; i < len(token); i++ {
		if token[i] != '.' || i == 0 || i == len(token)-1 {
			continue
		}
		if isDigit(token[i-1]) && isDigit(token[i+1]) {
			return true
		}
	}
	return false
}

// Classify returns the kind of a single token. Categories win over
// identifiers when both predicates match.
func Classify(token string) Kind {
	switch {
	case IsCategory(token):
		return KindCategory
	case IsPaperID(token):
		return KindIdentifier
	default:
		return KindFreeText
	}
}

// ClassifyBatch classifies a list of tokens. Lists of more than one token
// must be uniformly categories or uniformly identifiers.
func ClassifyBatch(tokens []string) (BatchKind, error) {
	if len(tokens) == 0 {
		return BatchMixed, fmt.Errorf("%w: no search terms", ErrInvalidInput)
	}

	allCategories, allIDs := true, true
	for _, t := range tokens {
		allCategories = allCategories && IsCategory(t)
		allIDs = allIDs && IsPaperID(t)
	}

	switch {
	case allCategories:
		return BatchCategories, nil
	case allIDs:
		return BatchIdentifiers, nil
	case len(tokens) == 1:
		return BatchMixed, nil
	default:
		return BatchMixed, fmt.Errorf("%w: unrecognized list %q", ErrInvalidInput, tokens)
	}
}

func isCategoryByte(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '.' || c == '-'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
