package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/mixelka/mailtriage/internal/config"
	"github.com/mixelka/mailtriage/internal/database"
	"github.com/mixelka/mailtriage/internal/metrics"
	"github.com/mixelka/mailtriage/internal/nlp"
	"github.com/mixelka/mailtriage/internal/pipeline"
	"github.com/mixelka/mailtriage/internal/report"
	"github.com/mixelka/mailtriage/internal/triage"
)

var (
	rulesPath string
	logLevel  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mailtriage",
		Short: "Email triage for security teams",
		Long: "mailtriage parses .eml files, extracts named entities, similarity to a\n" +
			"reference threat description and a summary, and labels each email\n" +
			"Red, Orange or Yellow.",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Path to TOML triage rules (overrides RULES_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(analyzeCmd(), batchCmd(), mboxCmd(), serveCmd(), watchCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds the components shared by all commands
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	pipeline *pipeline.Pipeline
}

// newApp loads configuration, applies command line overrides and builds
// the pipeline
func newApp(overrides ...func(*config.Config)) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return nil, err
	}

	if rulesPath != "" {
		if err := cfg.ApplyRulesFile(rulesPath); err != nil {
			slog.Error("failed to load rules", "error", err)
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	for _, override := range overrides {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return nil, err
	}

	// Logs go to stderr so command output on stdout stays parseable
	logger := setupLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	strategy, err := nlp.ParseStrategy(cfg.SummaryStrategy)
	if err != nil {
		return nil, err
	}

	opts := nlp.Options{
		ReferenceText: cfg.ReferenceText,
		Strategy:      strategy,
		Timeout:       cfg.ModelTimeout,
	}
	if cfg.VectorsPath != "" {
		vectors, err := nlp.LoadWordVectorsFile(cfg.VectorsPath)
		if err != nil {
			logger.Error("failed to load word vectors", "path", cfg.VectorsPath, "error", err)
			return nil, err
		}
		logger.Info("word vectors loaded", "words", vectors.Len(), "dim", vectors.Dim())
		opts.Embedder = vectors
	}

	model, err := nlp.NewModel(opts, logger)
	if err != nil {
		logger.Error("failed to load NLP model", "error", err)
		return nil, err
	}

	m := metrics.New()
	classifier := triage.NewClassifier(cfg.Keywords, cfg.Thresholds())
	p := pipeline.New(model, classifier, pipeline.Options{
		Sentences: cfg.SummarySentences,
		Workers:   cfg.Workers,
	}, m, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		pipeline: p,
	}, nil
}

// openStore connects to the database and runs migrations
func (a *app) openStore(ctx context.Context) (*database.DB, error) {
	db, err := database.New(a.cfg.DatabasePath)
	if err != nil {
		a.logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		a.logger.Error("failed to run migrations", "error", err)
		return nil, err
	}
	return db, nil
}

func (a *app) emitter() (*report.Emitter, error) {
	format, err := report.ParseFormat(a.cfg.ReportFormat)
	if err != nil {
		return nil, err
	}
	return report.NewEmitter(format, a.logger)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func setupLogger(w io.Writer, level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(w, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
			NoColor:    false,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
