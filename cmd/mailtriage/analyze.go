package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mixelka/mailtriage/internal/config"
	"github.com/mixelka/mailtriage/internal/database"
	"github.com/mixelka/mailtriage/internal/pipeline"
	"github.com/mixelka/mailtriage/pkg/models"
)

type failureOutput struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

type batchOutput struct {
	Records  []*models.Analysis `json:"records"`
	Failures []failureOutput    `json:"failures"`
	Reports  []string           `json:"reports,omitempty"`
}

func analyzeCmd() *cobra.Command {
	var (
		reportDir string
		store     bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [eml file]",
		Short: "Analyze a single .eml file and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			analysis, err := a.pipeline.ProcessFile(ctx, args[0])
			if err != nil {
				a.logger.Error("failed to analyze email", "file", args[0], "error", err)
				return err
			}

			if store {
				db, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := db.CreateAnalysis(ctx, analysis); err != nil && !errors.Is(err, database.ErrAlreadyExists) {
					return err
				}
			}

			if reportDir != "" {
				emitter, err := a.emitter()
				if err != nil {
					return err
				}
				path, err := emitter.Emit(analysis, reportDir)
				if err != nil {
					a.logger.Error("failed to write report", "file", analysis.Source, "error", err)
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "report:", path)
			}

			return writeJSON(cmd.OutOrStdout(), analysis)
		},
	}

	cmd.Flags().StringVar(&reportDir, "report", "", "Write a threat report into this directory")
	cmd.Flags().BoolVar(&store, "store", false, "Save the analysis to the database")
	return cmd
}

func batchCmd() *cobra.Command {
	var (
		workers   int
		reportDir string
		store     bool
	)

	cmd := &cobra.Command{
		Use:   "batch [directory]",
		Short: "Analyze every .eml file in a directory",
		Long: "Analyze every .eml file in a directory. Files that cannot be parsed\n" +
			"are logged and listed under failures; they never stop the batch.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(func(cfg *config.Config) {
				if workers > 0 {
					cfg.Workers = workers
				}
			})
			if err != nil {
				return err
			}

			dir := a.cfg.EmailDir
			if len(args) == 1 {
				dir = args[0]
			}

			batch, err := a.pipeline.ProcessDir(cmd.Context(), dir)
			if err != nil {
				a.logger.Error("failed to process directory", "dir", dir, "error", err)
				return err
			}
			return a.finishBatch(cmd, batch, store, reportDir)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel workers (overrides BATCH_WORKERS)")
	cmd.Flags().StringVar(&reportDir, "report", "", "Write a threat report per record into this directory")
	cmd.Flags().BoolVar(&store, "store", false, "Save the analyses to the database")
	return cmd
}

func mboxCmd() *cobra.Command {
	var (
		reportDir string
		store     bool
	)

	cmd := &cobra.Command{
		Use:   "mbox [mbox file]",
		Short: "Analyze every message of an mbox archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			batch, err := a.pipeline.ProcessMbox(cmd.Context(), args[0])
			if err != nil {
				a.logger.Error("failed to process mbox", "file", args[0], "error", err)
				return err
			}
			return a.finishBatch(cmd, batch, store, reportDir)
		},
	}

	cmd.Flags().StringVar(&reportDir, "report", "", "Write a threat report per record into this directory")
	cmd.Flags().BoolVar(&store, "store", false, "Save the analyses to the database")
	return cmd
}

// finishBatch stores, reports and prints a batch
func (a *app) finishBatch(cmd *cobra.Command, batch *pipeline.Batch, store bool, reportDir string) error {
	ctx := cmd.Context()

	if store {
		db, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		saved := 0
		for _, analysis := range batch.Records {
			err := db.CreateAnalysis(ctx, analysis)
			switch {
			case err == nil:
				saved++
			case errors.Is(err, database.ErrAlreadyExists):
			default:
				return err
			}
		}
		a.logger.Info("analyses stored", "new", saved, "total", len(batch.Records))
	}

	out := batchOutput{
		Records:  batch.Records,
		Failures: []failureOutput{},
	}
	for _, f := range batch.Failures {
		out.Failures = append(out.Failures, failureOutput{Source: f.Source, Error: f.Err.Error()})
	}

	if reportDir != "" {
		emitter, err := a.emitter()
		if err != nil {
			return err
		}
		for _, analysis := range batch.Records {
			path, err := emitter.Emit(analysis, reportDir)
			if err != nil {
				a.metrics.RecordReport("error")
				a.logger.Error("failed to write report", "file", analysis.Source, "error", err)
				continue
			}
			a.metrics.RecordReport("written")
			out.Reports = append(out.Reports, path)
		}
	}

	return writeJSON(cmd.OutOrStdout(), out)
}
