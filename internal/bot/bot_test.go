package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ryosukesatoh/paperbot/internal/fetcher"
	"github.com/ryosukesatoh/paperbot/internal/publisher"
	"github.com/ryosukesatoh/paperbot/internal/query"
)

type fakeNotifier struct {
	mu      sync.Mutex
	notices []string
	err     error
}

func (f *fakeNotifier) Publish(context.Context, *publisher.Digest) error { return nil }

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, text)
	return f.err
}

func (f *fakeNotifier) last(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.notices)
	return f.notices[len(f.notices)-1]
}

type fakeStore struct {
	keywords []string
	err      error
}

func (s *fakeStore) Keywords() []string { return s.keywords }

func (s *fakeStore) Add(words ...string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	var added []string
	for _, w := range words {
		w = strings.ToLower(w)
		if !contains(s.keywords, w) {
			s.keywords = append(s.keywords, w)
			added = append(added, w)
		}
	}
	return added, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeRunner struct{ runs int }

func (r *fakeRunner) Run(context.Context) error {
	r.runs++
	return nil
}

type fakeSearcher struct {
	specs    []query.Spec
	articles []fetcher.Article
	err      error
}

func (s *fakeSearcher) Search(_ context.Context, spec query.Spec, maxResults int, sortBy query.SortBy) ([]fetcher.Article, error) {
	s.specs = append(s.specs, spec)
	return s.articles, s.err
}

type fixture struct {
	d        *Dispatcher
	notifier *fakeNotifier
	store    *fakeStore
	runner   *fakeRunner
	searcher *fakeSearcher
}

func newFixture() *fixture {
	f := &fixture{
		notifier: &fakeNotifier{},
		store:    &fakeStore{},
		runner:   &fakeRunner{},
		searcher: &fakeSearcher{},
	}
	f.d = NewDispatcher("U42", f.runner, f.store, f.searcher, []publisher.Publisher{f.notifier}, zap.NewNop())
	return f
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		botID  string
		want   Command
		wantOK bool
	}{
		{"with args", "<@U42> add_keywords gan nerf", "U42", Command{Name: "add_keywords", Args: "gan nerf"}, true},
		{"no args", "<@U42> help", "U42", Command{Name: "help"}, true},
		{"any bot", "<@U7> list_keywords", "", Command{Name: "list_keywords"}, true},
		{"multiline args", "<@U42> search diffusion\nmodels", "U42", Command{Name: "search", Args: "diffusion\nmodels"}, true},
		{"other bot", "<@U7> help", "U42", Command{}, false},
		{"mention not leading", "hey <@U42> help", "U42", Command{}, false},
		{"mention only", "<@U42>", "U42", Command{}, false},
		{"plain text", "help", "", Command{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCommand(tt.text, tt.botID)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHelpListsCommands(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.d.HandleMessage(context.Background(), "<@U42> help", "alice"))

	msg := f.notifier.last(t)
	assert.True(t, strings.HasPrefix(msg, "Hi <@alice>, here is a list"))
	for _, name := range f.d.Commands() {
		assert.Contains(t, msg, "• "+name)
	}
	assert.Contains(t, msg, "add_keywords    List of space separated keywords to add")
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.d.Execute(context.Background(), Command{Name: "dance"}))

	msg := f.notifier.last(t)
	assert.True(t, strings.HasPrefix(msg, "Unrecognized command, "))
	assert.Contains(t, msg, "• run_daily_arxiv_search")
}

func TestIgnoresMessagesForOthers(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.d.HandleMessage(context.Background(), "good morning", "bob"))
	assert.Empty(t, f.notifier.notices)
}

func TestKeywordCommands(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.d.Execute(ctx, Command{Name: "list_keywords"}))
	assert.Contains(t, f.notifier.last(t), "No _keywords_ registered yet")

	require.NoError(t, f.d.Execute(ctx, Command{Name: "add_keywords", Args: "Diffusion  GAN"}))
	assert.Equal(t, "Added following keywords: diffusion, gan", f.notifier.last(t))

	require.NoError(t, f.d.Execute(ctx, Command{Name: "add_keywords", Args: "gan"}))
	assert.Equal(t, "All keywords were already registered.", f.notifier.last(t))

	require.NoError(t, f.d.Execute(ctx, Command{Name: "add_keywords"}))
	assert.Contains(t, f.notifier.last(t), "Usage: add_keywords")

	require.NoError(t, f.d.Execute(ctx, Command{Name: "list_keywords"}))
	assert.Equal(t, "List of _keywords_ of interest:\n• diffusion\n• gan\n", f.notifier.last(t))
}

func TestAddKeywordsStoreError(t *testing.T) {
	f := newFixture()
	f.store.err = errors.New("disk full")

	err := f.d.Execute(context.Background(), Command{Name: "add_keywords", Args: "gan"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRunDailySearch(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.d.HandleMessage(context.Background(), "<@U42> run_daily_arxiv_search", ""))
	assert.Equal(t, 1, f.runner.runs)
}

func TestSearchBuildsSpec(t *testing.T) {
	tests := []struct {
		args string
		want query.Spec
	}{
		{"cs.CV cs.AI", query.Spec{SearchQuery: "cat:cs.CV OR cat:cs.AI"}},
		{"2101.00001 2101.00002", query.Spec{IDList: "2101.00001,2101.00002"}},
		{"ti:transformers", query.Spec{SearchQuery: "ti:transformers"}},
		{"ti:gan AND au:smith", query.Spec{SearchQuery: "ti:gan AND au:smith"}},
		{"ti:gan  AND\tau:smith", query.Spec{SearchQuery: "ti:gan AND au:smith"}},
	}

	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			f := newFixture()
			require.NoError(t, f.d.Execute(context.Background(), Command{Name: "search", Args: tt.args}))
			require.Len(t, f.searcher.specs, 1)
			assert.Equal(t, tt.want, f.searcher.specs[0])
			assert.Contains(t, f.notifier.last(t), "No papers found")
		})
	}
}

func TestSearchRejectsMixedList(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.d.Execute(context.Background(), Command{Name: "search", Args: "cs.CV 2101.00001"}))
	assert.Empty(t, f.searcher.specs)
	assert.Contains(t, f.notifier.last(t), "Cannot search for that")

	f = newFixture()
	require.NoError(t, f.d.Execute(context.Background(), Command{Name: "search", Args: "cs.CV ti:gan"}))
	assert.Empty(t, f.searcher.specs, "a category in front is not a raw query")
	assert.Contains(t, f.notifier.last(t), "Cannot search for that")
}

func TestAnnounce(t *testing.T) {
	first := &fakeNotifier{}
	second := &fakeNotifier{}
	d := NewDispatcher("U42", &fakeRunner{}, &fakeStore{}, &fakeSearcher{}, []publisher.Publisher{first, second}, nil)

	require.NoError(t, d.Announce(context.Background(), "PaperBot is now online."))
	assert.Equal(t, []string{"PaperBot is now online."}, first.notices)
	assert.Equal(t, []string{"PaperBot is now online."}, second.notices)
}

func TestSubject(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.d.Execute(context.Background(), Command{Name: "subject", Args: "diffusion models"}))
	require.Len(t, f.searcher.specs, 1)
	assert.Equal(t, query.Spec{SearchQuery: "all:diffusion AND all:models"}, f.searcher.specs[0])

	require.NoError(t, f.d.Execute(context.Background(), Command{Name: "subject"}))
	assert.Contains(t, f.notifier.last(t), "Usage: subject")
}

func TestSearchPostsResults(t *testing.T) {
	f := newFixture()
	f.searcher.articles = []fetcher.Article{
		{Title: "Diffusion Paper", Authors: []string{"Alice"}, Summary: "s1", Link: "http://arxiv.org/abs/1"},
		{Title: "Second", Authors: []string{"Bob"}, Summary: "s2", Link: "http://arxiv.org/abs/2"},
	}

	require.NoError(t, f.d.Execute(context.Background(), Command{Name: "search", Args: "diffusion"}))
	msg := f.notifier.last(t)
	assert.Contains(t, msg, "Top **2** results for `diffusion`:")
	assert.Contains(t, msg, "[1/2] **[Diffusion Paper](http://arxiv.org/abs/1)**")
	assert.Contains(t, msg, "[2/2] **[Second](http://arxiv.org/abs/2)**")
}

func TestSearchFailure(t *testing.T) {
	f := newFixture()
	f.searcher.err = errors.New("arxiv: unexpected status 503")

	err := f.d.Execute(context.Background(), Command{Name: "search", Args: "cs.CV"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, "Search failed, please try again later.", f.notifier.last(t))
}

func TestFindPaper(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.d.Execute(ctx, Command{Name: "find_paper", Args: "GPT-3.5 Technical Report | OpenAI"}))
	require.NoError(t, f.d.Execute(ctx, Command{Name: "find_paper", Args: "Attention Is All You Need"}))
	require.Len(t, f.searcher.specs, 2)
	assert.Equal(t, query.FromPaperTitle("GPT-3.5 Technical Report", "OpenAI"), f.searcher.specs[0])
	assert.Equal(t, query.FromPaperTitle("Attention Is All You Need", ""), f.searcher.specs[1])

	require.NoError(t, f.d.Execute(ctx, Command{Name: "find_paper", Args: " | someone"}))
	assert.Contains(t, f.notifier.last(t), "Usage: find_paper")
	assert.Len(t, f.searcher.specs, 2)
}

func TestReplyFailsOnlyWhenAllPublishersFail(t *testing.T) {
	good := &fakeNotifier{}
	bad := &fakeNotifier{err: errors.New("webhook down")}

	d := NewDispatcher("", &fakeRunner{}, &fakeStore{}, &fakeSearcher{}, []publisher.Publisher{bad, good}, nil)
	require.NoError(t, d.Execute(context.Background(), Command{Name: "help"}))
	assert.Len(t, good.notices, 1)

	d = NewDispatcher("", &fakeRunner{}, &fakeStore{}, &fakeSearcher{}, []publisher.Publisher{bad}, nil)
	err := d.Execute(context.Background(), Command{Name: "help"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook down")
}
