package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/ryosukesatoh/paperbot/internal/config"
)

// FeedEntry is one record of a search feed page.
type FeedEntry struct {
	Title     string
	Authors   []string
	Summary   string
	Published string
	Link      string
}

// FetchResult is a single feed page. A failed request carries its status
// and no entries.
type FetchResult struct {
	StatusCode int
	Entries    []FeedEntry
}

// OK reports whether the upstream answered with a success status.
func (r *FetchResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher retrieves one page of search results for an encoded query string.
type Fetcher interface {
	Fetch(ctx context.Context, rawQuery string) (*FetchResult, error)
}

// New creates a new fetcher based on the configuration
func New(cfg *config.Config) (Fetcher, error) {
	switch cfg.Fetcher.Type {
	case "arxiv":
		f := NewArxivFetcher()
		if cfg.Fetcher.BaseURL != "" {
			f.baseURL = cfg.Fetcher.BaseURL
		}
		if cfg.Fetcher.Timeout > 0 {
			f.client.Timeout = time.Duration(cfg.Fetcher.Timeout * float64(time.Second))
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFetcherType, cfg.Fetcher.Type)
	}
}

// ErrUnsupportedFetcherType is returned when an unsupported fetcher type is specified
var ErrUnsupportedFetcherType = fmt.Errorf("unsupported fetcher type")
