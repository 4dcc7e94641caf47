package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ryosukesatoh/paperbot/internal/query"
)

// DefaultBaseURL is the arXiv API query endpoint.
const DefaultBaseURL = "http://export.arxiv.org/api/query"

// ArxivFetcher fetches Atom result pages from the arXiv API.
type ArxivFetcher struct {
	client  *http.Client
	parser  *gofeed.Parser
	baseURL string
}

func NewArxivFetcher() *ArxivFetcher {
	return &ArxivFetcher{
		client:  &http.Client{Timeout: 30 * time.Second},
		parser:  gofeed.NewParser(),
		baseURL: DefaultBaseURL,
	}
}

// Fetch issues one GET for rawQuery. A non-2xx answer is not an error: the
// result carries the status and no entries. Transport and parse failures
// are returned as errors.
func (f *ArxivFetcher) Fetch(ctx context.Context, rawQuery string) (*FetchResult, error) {
	reqURL := f.baseURL + "?" + rawQuery

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("arxiv: failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv: request failed: %w", err)
	}
	defer resp.Body.Close()

	result := &FetchResult{StatusCode: resp.StatusCode}
	if !result.OK() {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return result, nil
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("arxiv: failed to parse feed: %w", err)
	}

	result.Entries = make([]FeedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		result.Entries = append(result.Entries, entryFromItem(item))
	}
	return result, nil
}

// Search runs a single-page query and returns the results as articles.
func (f *ArxivFetcher) Search(ctx context.Context, spec query.Spec, maxResults int, sortBy query.SortBy) ([]Article, error) {
	raw, err := query.Finalize(spec, 0, maxResults, sortBy, query.SortDescending)
	if err != nil {
		return nil, err
	}

	res, err := f.Fetch(ctx, raw)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("arxiv: unexpected status %d", res.StatusCode)
	}

	articles := make([]Article, len(res.Entries))
	for i, e := range res.Entries {
		articles[i] = NewArticle(e)
	}
	return articles, nil
}

func entryFromItem(item *gofeed.Item) FeedEntry {
	authors := make([]string, 0, len(item.Authors))
	for _, a := range item.Authors {
		if a == nil {
			continue
		}
		authors = append(authors, strings.TrimSpace(a.Name))
	}

	published := item.Published
	if published == "" {
		published = item.Updated
	}

	link := item.Link
	if link == "" && len(item.Links) > 0 {
		link = item.Links[0]
	}

	summary := item.Description
	if summary == "" {
		summary = item.Content
	}

	return FeedEntry{
		Title:     item.Title,
		Authors:   authors,
		Summary:   summary,
		Published: published,
		Link:      link,
	}
}
