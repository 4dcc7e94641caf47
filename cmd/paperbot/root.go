package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ryosukesatoh/paperbot/internal/bot"
	"github.com/ryosukesatoh/paperbot/internal/config"
	"github.com/ryosukesatoh/paperbot/internal/logger"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "paperbot",
		Short:        "Daily arXiv digest bot",
		Long:         "paperbot searches arXiv for papers submitted on the last publishing day, filters them by keyword and posts a digest.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default $XDG_CONFIG_HOME/paperbot/config.yaml)")

	// setup loads the configuration and builds the application for a subcommand.
	setup := func() (*app, error) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return nil, err
		}
		log, err := logger.New(cfg.Log)
		if err != nil {
			return nil, err
		}
		a, err := newApp(cfg, log)
		if err != nil {
			_ = log.Sync()
			return nil, err
		}
		return a, nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the scheduler and answer chat commands",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := setup()
				if err != nil {
					return err
				}
				defer a.close()
				return serve(cmd.Context(), a)
			},
		},
		&cobra.Command{
			Use:   "run",
			Short: "Run the daily search once, publish the digest and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := setup()
				if err != nil {
					return err
				}
				defer a.close()
				return a.runner.Run(cmd.Context())
			},
		},
		&cobra.Command{
			Use:     "command <name> [args...]",
			Short:   "Execute a single chat command locally",
			Example: "  paperbot command add_keywords diffusion nerf\n  paperbot command search cs.CV cs.AI",
			Args:    cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := setup()
				if err != nil {
					return err
				}
				defer a.close()
				return a.dispatcher.Execute(cmd.Context(), bot.Command{
					Name: args[0],
					Args: strings.Join(args[1:], " "),
				})
			},
		},
	)
	return root
}

// loadConfig reads path, falling back to the XDG config file and then to
// the built-in defaults when no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	found, err := xdg.SearchConfigFile("paperbot/config.yaml")
	if err != nil {
		return config.Default(), nil
	}
	return config.Load(found)
}

// onlineMessage is posted once the scheduler is running.
const onlineMessage = "PaperBot is now online."

func serve(parent context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.web != nil {
		a.web.HandleCommands(a.dispatcher.HandleMessage)
		if err := a.web.Start(); err != nil {
			return err
		}
	}

	daily := func() {
		a.log.Info("Running daily search")
		if err := a.dispatcher.Execute(ctx, bot.Command{Name: "run_daily_arxiv_search"}); err != nil {
			a.log.Error("Scheduled run failed", zap.Error(err))
		}
	}

	c := cron.New(cron.WithLogger(cronLogger{a.log.Sugar().Named("cron")}))
	if _, err := c.AddFunc(a.cfg.Schedule, daily); err != nil {
		return fmt.Errorf("failed to set up cron schedule %q: %w", a.cfg.Schedule, err)
	}

	if a.cfg.RunOnStart {
		daily()
	}

	c.Start()
	a.log.Info("Scheduled daily search", zap.String("schedule", a.cfg.Schedule))
	if err := a.dispatcher.Announce(ctx, onlineMessage); err != nil {
		a.log.Warn("Failed to announce startup", zap.Error(err))
	}

	<-ctx.Done()
	a.log.Info("Shutting down")

	// Wait for a running search to notice the cancellation.
	<-c.Stop().Done()

	if a.web != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.web.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			a.log.Warn("Web server shutdown error", zap.Error(err))
		}
	}

	a.log.Info("Shutdown complete")
	return nil
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
