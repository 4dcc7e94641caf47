package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/paperbot/internal/fetcher"
	"github.com/ryosukesatoh/paperbot/internal/publisher"
)

const (
	DefaultCategory = "cs.CV"
	DefaultWaitTime = 5 * time.Second
)

// KeywordSource supplies the keywords the daily digest is filtered with.
type KeywordSource interface {
	Keywords() []string
}

// Options configures a Runner. Zero values fall back to the defaults.
type Options struct {
	Categories []string
	WaitTime   time.Duration
	MaxResults int
	PageSize   int
	// Now overrides the clock used to pick the target date.
	Now func() time.Time
}

// Runner orchestrates the daily search -> filter -> publish pipeline.
type Runner struct {
	opts       Options
	daily      *fetcher.DailyFetcher
	keywords   KeywordSource
	publishers []publisher.Publisher
	log        *zap.Logger

	// mu keeps concurrent triggers from hitting the upstream in parallel.
	mu sync.Mutex
}

func New(opts Options, daily *fetcher.DailyFetcher, keywords KeywordSource, pubs []publisher.Publisher, log *zap.Logger) *Runner {
	if len(opts.Categories) == 0 {
		opts.Categories = []string{DefaultCategory}
	}
	if opts.WaitTime < 0 {
		opts.WaitTime = 0
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = fetcher.DefaultDailyMaxResults
	}
	if opts.PageSize <= 0 {
		opts.PageSize = fetcher.DefaultDailyPageSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		opts:       opts,
		daily:      daily,
		keywords:   keywords,
		publishers: pubs,
		log:        log,
	}
}

// Categories returns the categories searched every day.
func (r *Runner) Categories() []string {
	return append([]string(nil), r.opts.Categories...)
}

// RunDailySearch returns the articles submitted on the last publishing day
// whose title contains any of keywords, ignoring case. With no keywords
// every article is returned.
func (r *Runner) RunDailySearch(ctx context.Context, keywords []string) ([]fetcher.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.search(ctx, keywords)
}

func (r *Runner) search(ctx context.Context, keywords []string) ([]fetcher.Article, error) {
	target := fetcher.TargetDate(r.opts.Now())
	entries, err := r.daily.FetchDaily(ctx, r.opts.Categories, fetcher.DailyOptions{
		MaxResults: r.opts.MaxResults,
		PageSize:   r.opts.PageSize,
		TargetDate: target,
		Delay:      r.opts.WaitTime,
	})
	if err != nil {
		return nil, fmt.Errorf("runner: daily fetch failed: %w", err)
	}

	articles := make([]fetcher.Article, 0, len(entries))
	for _, e := range entries {
		a := fetcher.NewArticle(e)
		if MatchesKeywords(a.Title, keywords) {
			articles = append(articles, a)
		}
	}
	return articles, nil
}

// MatchesKeywords reports whether title contains any keyword, ignoring
// case. An empty keyword list matches everything.
func MatchesKeywords(title string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	title = strings.ToLower(title)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Run executes the full pipeline once.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var keywords []string
	if r.keywords != nil {
		keywords = r.keywords.Keywords()
	}

	log := r.log.With(
		zap.Strings("categories", r.opts.Categories),
		zap.Strings("keywords", keywords),
	)
	log.Info("Starting daily search")

	articles, err := r.search(ctx, keywords)
	if err != nil {
		return err
	}
	log.Info("Daily search finished", zap.Int("articles", len(articles)))

	digest := &publisher.Digest{
		Date:       r.opts.Now(),
		Categories: r.opts.Categories,
		Keywords:   keywords,
		Articles:   articles,
	}

	// Continue with other publishers even if one fails
	var publishErrors []error
	for _, pub := range r.publishers {
		if err := pub.Publish(ctx, digest); err != nil {
			publishError := fmt.Errorf("publish via %T failed: %w", pub, err)
			publishErrors = append(publishErrors, publishError)
			log.Warn("Publisher failed", zap.Error(publishError))
		} else {
			log.Debug("Published digest", zap.String("publisher", fmt.Sprintf("%T", pub)))
		}
	}

	if len(publishErrors) == len(r.publishers) && len(r.publishers) > 0 {
		return fmt.Errorf("runner: all publishers failed: %v", publishErrors)
	}

	if len(publishErrors) > 0 {
		log.Warn("Pipeline completed with publisher failures",
			zap.Int("failed", len(publishErrors)),
			zap.Int("publishers", len(r.publishers)),
		)
	} else {
		log.Info("Pipeline completed successfully")
	}
	return nil
}
