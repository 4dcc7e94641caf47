package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/ryosukesatoh/paperbot/internal/query"
)

type Config struct {
	Category     StringList      `yaml:"category"`
	WaitTime     float64         `yaml:"wait_time"`
	MaxResults   int             `yaml:"max_results"`
	PageSize     int             `yaml:"page_size"`
	Schedule     string          `yaml:"schedule"`
	RunOnStart   bool            `yaml:"run_on_start"`
	KeywordsFile string          `yaml:"keywords_file"`
	BotID        string          `yaml:"bot_id"`
	Log          LogConfig       `yaml:"log"`
	Fetcher      FetcherConfig   `yaml:"fetcher"`
	Publisher    PublisherConfig `yaml:"publisher"`
}

// StringList accepts either a single YAML scalar or a sequence of scalars.
type StringList []string

func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := value.Decode(&ss); err != nil {
			return err
		}
		*l = ss
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

type LogConfig struct {
	Level  string        `yaml:"level"`  // debug, info, warn, error
	Format string        `yaml:"format"` // json, console
	Output string        `yaml:"output"` // console, file, both
	File   LogFileConfig `yaml:"file"`
}

type LogFileConfig struct {
	Filename   string `yaml:"filename"`
	MaxSize    int    `yaml:"maxsize"` // megabytes
	MaxAge     int    `yaml:"maxage"`  // days
	MaxBackups int    `yaml:"maxbackups"`
	Compress   bool   `yaml:"compress"`
}

type FetcherConfig struct {
	Type    string  `yaml:"type"`
	BaseURL string  `yaml:"base_url"`
	Timeout float64 `yaml:"timeout"` // seconds
}

type PublisherConfig struct {
	Type    string        `yaml:"type"`
	Email   EmailConfig   `yaml:"email"`
	Web     WebConfig     `yaml:"web"`
	Discord DiscordConfig `yaml:"discord"`
}

type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

type EmailConfig struct {
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

type WebConfig struct {
	Addr string `yaml:"addr"`
}

// GetCategories returns the configured categories with blanks removed.
func (c *Config) GetCategories() []string {
	var out []string
	for _, cat := range c.Category {
		if cat = strings.TrimSpace(cat); cat != "" {
			out = append(out, cat)
		}
	}
	return out
}

// WaitDuration is the configured delay between feed pages.
func (c *Config) WaitDuration() time.Duration {
	return time.Duration(c.WaitTime * float64(time.Second))
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func setDefaults(cfg *Config) {
	if len(cfg.GetCategories()) == 0 {
		cfg.Category = StringList{"cs.CV"}
	}
	if cfg.WaitTime == 0 {
		cfg.WaitTime = 5.0
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = 200
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 100
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 9 * * *"
	}
	if cfg.KeywordsFile == "" {
		cfg.KeywordsFile = filepath.Join(xdg.DataHome, "paperbot", "bot.yaml")
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "console"
	}
	if cfg.Log.File.Filename == "" {
		cfg.Log.File.Filename = filepath.Join(xdg.StateHome, "paperbot", "paperbot.log")
	}
	if cfg.Log.File.MaxSize == 0 {
		cfg.Log.File.MaxSize = 100
	}
	if cfg.Log.File.MaxAge == 0 {
		cfg.Log.File.MaxAge = 30
	}
	if cfg.Log.File.MaxBackups == 0 {
		cfg.Log.File.MaxBackups = 5
	}
	if cfg.Fetcher.Type == "" {
		cfg.Fetcher.Type = "arxiv"
	}
	if cfg.Fetcher.Timeout == 0 {
		cfg.Fetcher.Timeout = 30
	}
	if cfg.Publisher.Type == "" {
		cfg.Publisher.Type = "stdout"
	}
	if cfg.Publisher.Web.Addr == "" {
		cfg.Publisher.Web.Addr = ":8080"
	}
	if cfg.Publisher.Email.SMTPPort == 0 {
		cfg.Publisher.Email.SMTPPort = 587
	}
}

func validate(cfg *Config) error {
	if kind, err := query.ClassifyBatch(cfg.GetCategories()); err != nil {
		return fmt.Errorf("config: category: %w", err)
	} else if kind != query.BatchCategories {
		return fmt.Errorf("config: category: %q is not an arXiv category", strings.Join(cfg.GetCategories(), " "))
	}
	if cfg.WaitTime < 0 {
		return fmt.Errorf("config: wait_time must not be negative")
	}
	if cfg.MaxResults < 1 || cfg.MaxResults > 2000 {
		return fmt.Errorf("config: max_results must be between 1 and 2000, got %d", cfg.MaxResults)
	}
	if cfg.PageSize < 1 || cfg.PageSize > 2000 {
		return fmt.Errorf("config: page_size must be between 1 and 2000, got %d", cfg.PageSize)
	}
	if cfg.Fetcher.Type != "arxiv" {
		return fmt.Errorf("config: unsupported fetcher type %q (supported: arxiv)", cfg.Fetcher.Type)
	}
	switch cfg.Log.Output {
	case "console", "file", "both":
	default:
		return fmt.Errorf("config: unsupported log output %q (supported: console, file, both)", cfg.Log.Output)
	}
	switch cfg.Publisher.Type {
	case "stdout", "email", "web", "discord":
	default:
		return fmt.Errorf("config: unsupported publisher type %q (supported: stdout, email, web, discord)", cfg.Publisher.Type)
	}
	if cfg.Publisher.Type == "discord" {
		if cfg.Publisher.Discord.WebhookURL == "" {
			return fmt.Errorf("config: publisher.discord.webhook_url is required for discord publisher")
		}
	}
	if cfg.Publisher.Type == "email" {
		if cfg.Publisher.Email.SMTPHost == "" {
			return fmt.Errorf("config: publisher.email.smtp_host is required for email publisher")
		}
		if len(cfg.Publisher.Email.To) == 0 {
			return fmt.Errorf("config: publisher.email.to is required for email publisher")
		}
		if cfg.Publisher.Email.From == "" {
			return fmt.Errorf("config: publisher.email.from is required for email publisher")
		}
	}
	return nil
}

// Default returns a valid configuration for running without a config file.
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

// Load reads the config file, expands environment variables, applies defaults,
// and validates the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
