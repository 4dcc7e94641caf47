package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/paperbot/internal/fetcher"
	"github.com/ryosukesatoh/paperbot/internal/publisher"
	"github.com/ryosukesatoh/paperbot/internal/query"
)

// DefaultSearchLimit is how many results the search commands post.
const DefaultSearchLimit = 5

// DailyRunner runs the daily search and publishes its digest.
type DailyRunner interface {
	Run(ctx context.Context) error
}

// KeywordStore holds the keywords the daily digest is filtered with.
type KeywordStore interface {
	Keywords() []string
	Add(words ...string) ([]string, error)
}

// Searcher runs a one-off query against the feed.
type Searcher interface {
	Search(ctx context.Context, spec query.Spec, maxResults int, sortBy query.SortBy) ([]fetcher.Article, error)
}

type handler struct {
	run  func(ctx context.Context, cmd Command) error
	hint string
}

// Dispatcher routes commands to their handlers and replies through the
// publishers.
type Dispatcher struct {
	botID       string
	daily       DailyRunner
	store       KeywordStore
	searcher    Searcher
	publishers  []publisher.Publisher
	log         *zap.Logger
	searchLimit int

	order    []string
	handlers map[string]handler
}

func NewDispatcher(botID string, daily DailyRunner, store KeywordStore, searcher Searcher, pubs []publisher.Publisher, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		botID:       botID,
		daily:       daily,
		store:       store,
		searcher:    searcher,
		publishers:  pubs,
		log:         log,
		searchLimit: DefaultSearchLimit,
		handlers:    make(map[string]handler),
	}
	d.register("help", "", d.help)
	d.register("list_keywords", "", d.listKeywords)
	d.register("add_keywords", "List of space separated keywords to add", d.addKeywords)
	d.register("run_daily_arxiv_search", "", d.runDaily)
	d.register("search", "Categories, paper ids or a raw query such as ti:gan AND au:smith", d.search)
	d.register("subject", "Words that must all appear in the paper", d.subject)
	d.register("find_paper", "Paper title, optionally followed by | author", d.findPaper)
	return d
}

func (d *Dispatcher) register(name, hint string, run func(context.Context, Command) error) {
	d.order = append(d.order, name)
	d.handlers[name] = handler{run: run, hint: hint}
}

// Commands returns the known command names in registration order.
func (d *Dispatcher) Commands() []string {
	return append([]string(nil), d.order...)
}

// HandleMessage executes text when it is addressed to the bot and ignores
// it otherwise.
func (d *Dispatcher) HandleMessage(ctx context.Context, text, user string) error {
	cmd, ok := ParseCommand(text, d.botID)
	if !ok {
		d.log.Debug("Ignoring message not addressed to the bot", zap.String("user", user))
		return nil
	}
	cmd.User = user
	return d.Execute(ctx, cmd)
}

// Execute runs a single command.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) error {
	log := d.log.With(zap.String("command", cmd.Name), zap.String("user", cmd.User))
	h, ok := d.handlers[cmd.Name]
	if !ok {
		log.Info("Unrecognized command")
		return d.unknown(ctx, cmd)
	}

	log.Info("Executing command")
	if err := h.run(ctx, cmd); err != nil {
		log.Warn("Command failed", zap.Error(err))
		return err
	}
	return nil
}

func (d *Dispatcher) help(ctx context.Context, cmd Command) error {
	var sb strings.Builder
	if cmd.User == "" {
		sb.WriteString("Here is a list of all recognized commands:\n")
	} else {
		fmt.Fprintf(&sb, "Hi <@%s>, here is a list of all recognized commands:\n", cmd.User)
	}
	for _, name := range d.order {
		if hint := d.handlers[name].hint; hint != "" {
			fmt.Fprintf(&sb, "• %s    %s\n", name, hint)
		} else {
			fmt.Fprintf(&sb, "• %s\n", name)
		}
	}
	return d.reply(ctx, sb.String())
}

func (d *Dispatcher) unknown(ctx context.Context, cmd Command) error {
	var sb strings.Builder
	if cmd.User == "" {
		sb.WriteString("Unrecognized command, ")
	} else {
		fmt.Fprintf(&sb, "Sorry <@%s>, the command is **unrecognized**, ", cmd.User)
	}
	sb.WriteString("here is a list of all _known_ commands:\n")
	for _, name := range d.order {
		fmt.Fprintf(&sb, "• %s\n", name)
	}
	return d.reply(ctx, sb.String())
}

func (d *Dispatcher) listKeywords(ctx context.Context, _ Command) error {
	kws := d.store.Keywords()
	if len(kws) == 0 {
		return d.reply(ctx, "No _keywords_ registered yet, every paper is posted.")
	}
	var sb strings.Builder
	sb.WriteString("List of _keywords_ of interest:\n")
	for _, kw := range kws {
		fmt.Fprintf(&sb, "• %s\n", kw)
	}
	return d.reply(ctx, sb.String())
}

func (d *Dispatcher) addKeywords(ctx context.Context, cmd Command) error {
	words := strings.Fields(cmd.Args)
	if len(words) == 0 {
		return d.reply(ctx, "Usage: add_keywords <keyword> [keyword ...]")
	}
	added, err := d.store.Add(words...)
	if err != nil {
		return fmt.Errorf("add keywords: %w", err)
	}
	if len(added) == 0 {
		return d.reply(ctx, "All keywords were already registered.")
	}
	return d.reply(ctx, "Added following keywords: "+strings.Join(added, ", "))
}

func (d *Dispatcher) runDaily(ctx context.Context, _ Command) error {
	return d.daily.Run(ctx)
}

// Announce posts text to every publisher outside of any command.
func (d *Dispatcher) Announce(ctx context.Context, text string) error {
	return d.reply(ctx, text)
}

func (d *Dispatcher) search(ctx context.Context, cmd Command) error {
	tokens := strings.Fields(cmd.Args)
	if len(tokens) == 0 {
		return d.reply(ctx, "Usage: search <categories | paper ids | raw query>")
	}

	spec, err := query.BuildSpec(tokens...)
	if errors.Is(err, query.ErrInvalidInput) && strings.Contains(cmd.Args, ":") {
		// A raw query with field prefixes such as "ti:gan AND au:smith".
		if raw := strings.Join(tokens, " "); query.Classify(raw) == query.KindFreeText {
			spec, err = query.BuildSpec(raw)
		}
	}
	if errors.Is(err, query.ErrInvalidInput) {
		return d.reply(ctx, "Cannot search for that: "+err.Error()+". Use subject for plain words.")
	}
	if err != nil {
		return err
	}
	return d.postResults(ctx, spec, cmd.Args)
}

func (d *Dispatcher) subject(ctx context.Context, cmd Command) error {
	if strings.TrimSpace(cmd.Args) == "" {
		return d.reply(ctx, "Usage: subject <word> [word ...]")
	}
	return d.postResults(ctx, query.FromSubject(cmd.Args), cmd.Args)
}

func (d *Dispatcher) findPaper(ctx context.Context, cmd Command) error {
	title, author, _ := strings.Cut(cmd.Args, "|")
	title = strings.TrimSpace(title)
	if title == "" {
		return d.reply(ctx, "Usage: find_paper <title> [| author]")
	}
	return d.postResults(ctx, query.FromPaperTitle(title, strings.TrimSpace(author)), cmd.Args)
}

func (d *Dispatcher) postResults(ctx context.Context, spec query.Spec, asked string) error {
	articles, err := d.searcher.Search(ctx, spec, d.searchLimit, query.SortByRelevance)
	if err != nil {
		if replyErr := d.reply(ctx, "Search failed, please try again later."); replyErr != nil {
			d.log.Warn("Failed to report search failure", zap.Error(replyErr))
		}
		return fmt.Errorf("search %q: %w", spec.String(), err)
	}
	if len(articles) == 0 {
		return d.reply(ctx, fmt.Sprintf("No papers found for `%s`.", asked))
	}

	results := &publisher.Digest{Articles: articles}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Top **%d** results for `%s`:", len(articles), asked)
	for k := range articles {
		sb.WriteString("\n\n---\n\n")
		sb.WriteString(results.ArticleMarkdown(k))
	}
	return d.reply(ctx, sb.String())
}

// reply notifies every publisher and fails only if all of them fail.
func (d *Dispatcher) reply(ctx context.Context, text string) error {
	var errs []error
	for _, pub := range d.publishers {
		if err := pub.Notify(ctx, text); err != nil {
			errs = append(errs, fmt.Errorf("notify via %T failed: %w", pub, err))
		}
	}
	if len(errs) > 0 && len(errs) == len(d.publishers) {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		d.log.Warn("Publisher failed", zap.Error(err))
	}
	return nil
}
