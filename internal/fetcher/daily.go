package fetcher

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/paperbot/internal/query"
)

const (
	DefaultDailyMaxResults = 200
	DefaultDailyPageSize   = 100

	// maxJitter bounds the random extra wait added to every delay.
	maxJitter = 3 * time.Second
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Jitter returns the random part of a rate-limit delay.
type Jitter func() time.Duration

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// UniformJitter returns a uniformly random duration in [0, 3s).
func UniformJitter() time.Duration {
	return time.Duration(rand.Int63n(int64(maxJitter)))
}

// DailyOptions bounds one daily fetch.
type DailyOptions struct {
	MaxResults int
	PageSize   int
	TargetDate time.Time
	// Delay is the fixed part of the wait between two page requests.
	Delay time.Duration
}

// pageState is owned by a single FetchDaily call.
type pageState struct {
	remaining int
	cursor    int
	perPage   int
}

// DailyFetcher pages through the newest submissions of a category set and
// collects the entries submitted on the target date.
type DailyFetcher struct {
	fetcher Fetcher
	sleep   Sleeper
	jitter  Jitter
	log     *zap.Logger
}

// DailyOption customises a DailyFetcher.
type DailyOption func(*DailyFetcher)

// WithSleeper replaces the wait used between pages.
func WithSleeper(s Sleeper) DailyOption {
	return func(d *DailyFetcher) { d.sleep = s }
}

// WithJitter replaces the random part of the wait between pages.
func WithJitter(j Jitter) DailyOption {
	return func(d *DailyFetcher) { d.jitter = j }
}

func NewDailyFetcher(f Fetcher, log *zap.Logger, opts ...DailyOption) *DailyFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &DailyFetcher{
		fetcher: f,
		sleep:   SleepContext,
		jitter:  UniformJitter,
		log:     log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FetchDaily returns the entries of categories submitted on
// opts.TargetDate. Upstream failures end the loop early and keep what was
// collected; only invalid input and cancellation produce an error, the
// latter alongside the partial result.
func (d *DailyFetcher) FetchDaily(ctx context.Context, categories []string, opts DailyOptions) ([]FeedEntry, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultDailyMaxResults
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultDailyPageSize
	}

	spec, err := query.BuildSpec(categories...)
	if err != nil {
		return nil, err
	}

	log := d.log.With(
		zap.String("query", spec.String()),
		zap.String("target_date", opts.TargetDate.Format(dateLayout)),
	)

	var matched []FeedEntry
	st := pageState{remaining: opts.MaxResults, perPage: opts.PageSize}

	for st.remaining > 0 {
		if err := ctx.Err(); err != nil {
			return matched, err
		}

		raw, err := query.Finalize(spec, st.cursor, st.perPage, query.SortBySubmitted, query.SortDescending)
		if err != nil {
			return matched, err
		}

		res, err := d.fetcher.Fetch(ctx, raw)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return matched, ctxErr
			}
			log.Warn("Feed request failed", zap.Int("start", st.cursor), zap.Error(err))
			break
		}
		if !res.OK() {
			log.Warn("HTTP error in query", zap.Int("status", res.StatusCode), zap.Int("start", st.cursor))
			break
		}

		n := len(res.Entries)
		st.remaining -= n
		st.cursor += n
		if n == 0 {
			log.Info("No more entries upstream", zap.Int("start", st.cursor))
			break
		}

		kept, crossed := ApplyWindow(res.Entries, opts.TargetDate)
		matched = append(matched, kept...)
		log.Debug("Fetched page",
			zap.Int("entries", n),
			zap.Int("matched", len(kept)),
			zap.Int("remaining", st.remaining),
		)
		if crossed {
			st.remaining = 0
			break
		}

		// Throttle only when more than one page is still wanted.
		if st.remaining > st.perPage {
			if err := ctx.Err(); err != nil {
				return matched, err
			}
			if err := d.sleep(ctx, opts.Delay+d.jitter()); err != nil {
				return matched, err
			}
		}
	}

	log.Info("Daily fetch complete", zap.Int("matched", len(matched)), zap.Int("fetched", st.cursor))
	return matched, nil
}
