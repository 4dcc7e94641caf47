package publisher

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/ryosukesatoh/paperbot/internal/fetcher"
)

// Digest is the outcome of one daily search.
type Digest struct {
	Date       time.Time
	Categories []string
	Keywords   []string
	Articles   []fetcher.Article
}

// CategoriesString returns a comma-separated list of the searched categories.
func (d *Digest) CategoriesString() string {
	return strings.Join(d.Categories, ", ")
}

// Header is the first line posted for a digest.
func (d *Digest) Header() string {
	return fmt.Sprintf("Found **%d papers** on arXiv, %s", len(d.Articles), d.Date.Format("2006-01-02"))
}

// ArticleMarkdown renders the k-th (0-based) article as a Markdown block.
func (d *Digest) ArticleMarkdown(k int) string {
	a := d.Articles[k]
	return fmt.Sprintf("[%d/%d] **[%s](%s)**\n\n_Author(s):_ %s\n\n_%s_",
		k+1, len(d.Articles), escapeBrackets(a.Title), a.Link, strings.Join(a.Authors, ", "), a.Summary)
}

// Markdown renders the whole digest.
func (d *Digest) Markdown() string {
	var sb strings.Builder
	sb.WriteString(d.Header())
	if len(d.Categories) > 0 {
		sb.WriteString("\n\nCategories: ")
		sb.WriteString(d.CategoriesString())
	}
	if len(d.Keywords) > 0 {
		sb.WriteString("\n\nKeywords: ")
		sb.WriteString(strings.Join(d.Keywords, ", "))
	}
	for k := range d.Articles {
		sb.WriteString("\n\n---\n\n")
		sb.WriteString(d.ArticleMarkdown(k))
	}
	sb.WriteString("\n")
	return sb.String()
}

// renderHTML converts Markdown to an HTML fragment.
func renderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

func escapeBrackets(s string) string {
	return strings.NewReplacer("[", "\\[", "]", "\\]").Replace(s)
}
