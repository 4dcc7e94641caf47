package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// pageFetcher replays canned pages and records the queries it received.
type pageFetcher struct {
	pages   []*FetchResult
	errs    []error
	queries []url.Values
	onFetch func(call int)
}

func (p *pageFetcher) Fetch(ctx context.Context, rawQuery string) (*FetchResult, error) {
	call := len(p.queries)
	v, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, err
	}
	p.queries = append(p.queries, v)
	if p.onFetch != nil {
		p.onFetch(call)
	}
	if call < len(p.errs) && p.errs[call] != nil {
		return nil, p.errs[call]
	}
	if call >= len(p.pages) {
		return &FetchResult{StatusCode: http.StatusOK}, nil
	}
	return p.pages[call], nil
}

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func okPage(n int, published string) *FetchResult {
	entries := make([]FeedEntry, n)
	for i := range entries {
		entries[i] = FeedEntry{Title: fmt.Sprintf("paper %d", i), Published: published}
	}
	return &FetchResult{StatusCode: http.StatusOK, Entries: entries}
}

func newTestDaily(f Fetcher, s *recordingSleeper) *DailyFetcher {
	return NewDailyFetcher(f, zap.NewNop(),
		WithSleeper(s.sleep),
		WithJitter(func() time.Duration { return time.Second }),
	)
}

var target = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

const onTarget = "2026-10-16T10:00:00Z"

func TestFetchDailyStopsOnEmptyPage(t *testing.T) {
	f := &pageFetcher{pages: []*FetchResult{okPage(100, onTarget), okPage(0, onTarget)}}
	s := &recordingSleeper{}

	got, err := newTestDaily(f, s).FetchDaily(context.Background(), []string{"cs.CV"}, DailyOptions{
		MaxResults: 300, PageSize: 100, TargetDate: target, Delay: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Len(t, got, 100)
	require.Len(t, f.queries, 2)
	assert.Equal(t, "0", f.queries[0].Get("start"))
	assert.Equal(t, "100", f.queries[1].Get("start"))
	assert.Equal(t, "cat:cs.CV", f.queries[0].Get("search_query"))
	assert.Equal(t, "submittedDate", f.queries[0].Get("sortBy"))
	assert.Equal(t, "descending", f.queries[0].Get("sortOrder"))
	// 200 remained after page one, more than a page, so one wait.
	assert.Equal(t, []time.Duration{6 * time.Second}, s.waits)
}

func TestFetchDailyDefaultBudget(t *testing.T) {
	f := &pageFetcher{pages: []*FetchResult{okPage(100, onTarget), okPage(0, onTarget)}}
	s := &recordingSleeper{}

	got, err := newTestDaily(f, s).FetchDaily(context.Background(), []string{"cs.CV"}, DailyOptions{
		MaxResults: 200, PageSize: 100, TargetDate: target,
	})
	require.NoError(t, err)
	assert.Len(t, got, 100)
	assert.Len(t, f.queries, 2)
	// Exactly one page left after the first: no wait.
	assert.Empty(t, s.waits)
}

func TestFetchDailyAdvancesByReturnedCount(t *testing.T) {
	f := &pageFetcher{pages: []*FetchResult{
		okPage(40, onTarget),
		okPage(60, onTarget),
		okPage(100, onTarget),
	}}
	s := &recordingSleeper{}

	got, err := newTestDaily(f, s).FetchDaily(context.Background(), []string{"cs.CV", "cs.AI"}, DailyOptions{
		MaxResults: 200, PageSize: 100, TargetDate: target,
	})
	require.NoError(t, err)
	assert.Len(t, got, 200)
	require.Len(t, f.queries, 3)
	assert.Equal(t, "40", f.queries[1].Get("start"))
	assert.Equal(t, "100", f.queries[2].Get("start"))
	assert.Equal(t, "cat:cs.CV OR cat:cs.AI", f.queries[0].Get("search_query"))
	// remaining 160 > 100 after page one only.
	assert.Len(t, s.waits, 1)
}

func TestFetchDailyBoundaryEndsLoop(t *testing.T) {
	page := okPage(100, onTarget)
	page.Entries[30].Published = "2026-10-15T23:59:59Z"
	f := &pageFetcher{pages: []*FetchResult{page, okPage(100, onTarget)}}
	s := &recordingSleeper{}

	got, err := newTestDaily(f, s).FetchDaily(context.Background(), []string{"cs.CV"}, DailyOptions{
		MaxResults: 1000, PageSize: 100, TargetDate: target,
	})
	require.NoError(t, err)
	assert.Len(t, got, 30)
	assert.Len(t, f.queries, 1)
	assert.Empty(t, s.waits)
}

func TestFetchDailyStatusErrorKeepsPartialResults(t *testing.T) {
	f := &pageFetcher{pages: []*FetchResult{
		okPage(100, onTarget),
		{StatusCode: http.StatusServiceUnavailable},
		okPage(100, onTarget),
	}}
	s := &recordingSleeper{}

	got, err := newTestDaily(f, s).FetchDaily(context.Background(), []string{"cs.CV"}, DailyOptions{
		MaxResults: 500, PageSize: 100, TargetDate: target,
	})
	require.NoError(t, err)
	assert.Len(t, got, 100)
	assert.Len(t, f.queries, 2)
}

func TestFetchDailyTransportErrorKeepsPartialResults(t *testing.T) {
	f := &pageFetcher{
		pages: []*FetchResult{okPage(100, onTarget)},
		errs:  []error{nil, errors.New("connection reset")},
	}
	s := &recordingSleeper{}

	got, err := newTestDaily(f, s).FetchDaily(context.Background(), []string{"cs.CV"}, DailyOptions{
		MaxResults: 500, PageSize: 100, TargetDate: target,
	})
	require.NoError(t, err)
	assert.Len(t, got, 100)
}

func TestFetchDailyCancelledBeforeNextPage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &pageFetcher{
		pages:   []*FetchResult{okPage(100, onTarget), okPage(100, onTarget)},
		onFetch: func(call int) { cancel() },
	}
	s := &recordingSleeper{}

	got, err := newTestDaily(f, s).FetchDaily(ctx, []string{"cs.CV"}, DailyOptions{
		MaxResults: 500, PageSize: 100, TargetDate: target,
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, got, 100)
	assert.Len(t, f.queries, 1)
	assert.Empty(t, s.waits)
}

func TestFetchDailyRejectsMixedCategories(t *testing.T) {
	f := &pageFetcher{}
	_, err := newTestDaily(f, &recordingSleeper{}).FetchDaily(context.Background(), []string{"cs.CV", "2101.00001"}, DailyOptions{TargetDate: target})
	require.Error(t, err)
	assert.Empty(t, f.queries)
}

func TestUniformJitterRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		j := UniformJitter()
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, 3*time.Second)
	}
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
