package fetcher

import "strings"

// Article is the user-facing view of a feed entry.
type Article struct {
	Title   string
	Authors []string
	Summary string
	Date    string
	Link    string
}

// NewArticle promotes an entry, collapsing line breaks and repeated spaces
// in the title and summary.
func NewArticle(e FeedEntry) Article {
	authors := make([]string, len(e.Authors))
	copy(authors, e.Authors)

	return Article{
		Title:   collapseSpace(e.Title),
		Authors: authors,
		Summary: collapseSpace(e.Summary),
		Date:    e.Published,
		Link:    e.Link,
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
