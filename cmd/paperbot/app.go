package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/paperbot/internal/bot"
	"github.com/ryosukesatoh/paperbot/internal/config"
	"github.com/ryosukesatoh/paperbot/internal/fetcher"
	"github.com/ryosukesatoh/paperbot/internal/keywords"
	"github.com/ryosukesatoh/paperbot/internal/publisher"
	"github.com/ryosukesatoh/paperbot/internal/runner"
)

// app holds the components wired from one configuration.
type app struct {
	cfg        *config.Config
	log        *zap.Logger
	store      *keywords.Store
	runner     *runner.Runner
	dispatcher *bot.Dispatcher
	web        *publisher.WebPublisher
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	f, err := fetcher.New(cfg)
	if err != nil {
		return nil, err
	}
	searcher, ok := f.(bot.Searcher)
	if !ok {
		return nil, fmt.Errorf("fetcher %q does not support one-off searches", cfg.Fetcher.Type)
	}

	store, err := keywords.Open(cfg.KeywordsFile)
	if err != nil {
		return nil, err
	}

	pubs, web, err := buildPublishers(cfg, log)
	if err != nil {
		return nil, err
	}

	daily := fetcher.NewDailyFetcher(f, log.Named("fetcher"))
	r := runner.New(runner.Options{
		Categories: cfg.GetCategories(),
		WaitTime:   cfg.WaitDuration(),
		MaxResults: cfg.MaxResults,
		PageSize:   cfg.PageSize,
	}, daily, store, pubs, log.Named("runner"))

	return &app{
		cfg:        cfg,
		log:        log,
		store:      store,
		runner:     r,
		dispatcher: bot.NewDispatcher(cfg.BotID, r, store, searcher, pubs, log.Named("bot")),
		web:        web,
	}, nil
}

// buildPublishers returns the configured publishers. The web publisher is
// also returned on its own since it has to be started.
func buildPublishers(cfg *config.Config, log *zap.Logger) ([]publisher.Publisher, *publisher.WebPublisher, error) {
	var pubs []publisher.Publisher
	var webPub *publisher.WebPublisher

	switch cfg.Publisher.Type {
	case "stdout":
		pubs = append(pubs, publisher.NewStdoutPublisher())
	case "email":
		pubs = append(pubs, publisher.NewEmailPublisher(
			cfg.Publisher.Email.SMTPHost,
			cfg.Publisher.Email.SMTPPort,
			cfg.Publisher.Email.Username,
			cfg.Publisher.Email.Password,
			cfg.Publisher.Email.From,
			cfg.Publisher.Email.To,
		))
	case "web":
		webPub = publisher.NewWebPublisher(cfg.Publisher.Web.Addr, log.Named("web"))
		pubs = append(pubs, webPub)
	case "discord":
		pubs = append(pubs, publisher.NewDiscordPublisher(cfg.Publisher.Discord.WebhookURL))
	default:
		return nil, nil, fmt.Errorf("unknown publisher type: %s", cfg.Publisher.Type)
	}
	return pubs, webPub, nil
}

func (a *app) close() {
	_ = a.log.Sync()
}
