package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/mixelka/mailtriage/internal/nlp"
	"github.com/mixelka/mailtriage/internal/triage"
	"github.com/mixelka/mailtriage/pkg/models"
)

// Config application configuration
type Config struct {
	// Triage rules
	Keywords         []string `env:"TRIAGE_KEYWORDS" envSeparator:"," envDefault:"university,student,canvas,Cobalt Strike"`
	ReferenceText    string   `env:"TRIAGE_REFERENCE_TEXT"`
	RedThreshold     float64  `env:"TRIAGE_RED_THRESHOLD" envDefault:"0.9"`
	OrangeThreshold  float64  `env:"TRIAGE_ORANGE_THRESHOLD" envDefault:"0.6"`
	SummarySentences int      `env:"SUMMARY_SENTENCES" envDefault:"3"`
	SummaryStrategy  string   `env:"SUMMARY_STRATEGY" envDefault:"lead"` // "lead" or "textrank"
	RulesPath        string   `env:"RULES_PATH"`                          // optional TOML file, overrides the above

	// NLP
	VectorsPath  string        `env:"WORD_VECTORS_PATH"` // GloVe/word2vec text file
	ModelTimeout time.Duration `env:"MODEL_TIMEOUT" envDefault:"30s"`

	// Batch
	EmailDir     string        `env:"EMAIL_DIR" envDefault:"./emails"`
	Workers      int           `env:"BATCH_WORKERS" envDefault:"1"`
	ScanCacheTTL time.Duration `env:"SCAN_CACHE_TTL" envDefault:"60s"`

	// Reports
	ReportDir    string `env:"REPORT_DIR" envDefault:"./reports"`
	ReportFormat string `env:"REPORT_FORMAT" envDefault:"html"` // "html" or "json"

	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/mailtriage.db"`

	// HTTP
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// IMAP (optional)
	IMAPServer       string        `env:"IMAP_SERVER"` // host:port
	IMAPEmail        string        `env:"IMAP_EMAIL"`
	IMAPPassword     string        `env:"IMAP_PASSWORD"`
	IMAPDialTimeout  time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`
	IMAPPollInterval time.Duration `env:"IMAP_POLL_INTERVAL" envDefault:"1m"`

	// Telegram alerts (optional)
	TelegramToken   string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID  int64         `env:"TELEGRAM_CHAT_ID"`
	TelegramTopicID int           `env:"TELEGRAM_TOPIC_ID"`
	AlertMinUrgency string        `env:"ALERT_MIN_URGENCY" envDefault:"Orange"`
	AlertInterval   time.Duration `env:"ALERT_INTERVAL" envDefault:"3s"`
	DashboardURL    string        `env:"DASHBOARD_URL"` // e.g., https://triage.example.edu

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// Rules is the TOML triage rules file
type Rules struct {
	Reference  string             `toml:"reference"`
	Keywords   []string           `toml:"keywords"`
	Thresholds *struct {
		Red    *float64 `toml:"red"`
		Orange *float64 `toml:"orange"`
	} `toml:"thresholds"`
	Summary    *struct {
		Sentences int    `toml:"sentences"`
		Strategy  string `toml:"strategy"`
	} `toml:"summary"`
}

// IMAPEnabled returns true if IMAP polling is configured. The server is
// resolved from the address when IMAP_SERVER is unset.
func (c *Config) IMAPEnabled() bool {
	return c.IMAPEmail != "" && c.IMAPPassword != ""
}

// TelegramEnabled returns true if Telegram alerts are configured
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// Thresholds returns the similarity thresholds
func (c *Config) Thresholds() triage.Thresholds {
	return triage.Thresholds{Red: c.RedThreshold, Orange: c.OrangeThreshold}
}

// Load loads configuration from environment variables and the optional
// rules file
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.RulesPath != "" {
		if err := cfg.ApplyRulesFile(cfg.RulesPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyRulesFile overrides triage settings with the values present in a
// TOML rules file
func (c *Config) ApplyRulesFile(path string) error {
	var rules Rules
	if _, err := toml.DecodeFile(path, &rules); err != nil {
		return fmt.Errorf("failed to load rules %s: %w", path, err)
	}

	if rules.Reference != "" {
		c.ReferenceText = rules.Reference
	}
	if rules.Keywords != nil {
		c.Keywords = rules.Keywords
	}
	if rules.Thresholds != nil {
		if rules.Thresholds.Red != nil {
			c.RedThreshold = *rules.Thresholds.Red
		}
		if rules.Thresholds.Orange != nil {
			c.OrangeThreshold = *rules.Thresholds.Orange
		}
	}
	if rules.Summary != nil {
		if rules.Summary.Sentences != 0 {
			c.SummarySentences = rules.Summary.Sentences
		}
		if rules.Summary.Strategy != "" {
			c.SummaryStrategy = rules.Summary.Strategy
		}
	}
	return nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.SummarySentences <= 0 {
		return fmt.Errorf("SUMMARY_SENTENCES must be positive, got %d", c.SummarySentences)
	}
	if _, err := nlp.ParseStrategy(c.SummaryStrategy); err != nil {
		return err
	}
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	if c.Workers <= 0 {
		return fmt.Errorf("BATCH_WORKERS must be positive, got %d", c.Workers)
	}
	if _, err := models.ParseUrgency(c.AlertMinUrgency); err != nil {
		return fmt.Errorf("ALERT_MIN_URGENCY: %w", err)
	}
	switch c.ReportFormat {
	case "html", "json":
	default:
		return fmt.Errorf("REPORT_FORMAT must be html or json, got %q", c.ReportFormat)
	}
	return nil
}
