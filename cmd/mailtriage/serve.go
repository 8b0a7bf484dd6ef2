package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mixelka/mailtriage/internal/config"
	"github.com/mixelka/mailtriage/internal/database"
	"github.com/mixelka/mailtriage/internal/pipeline"
	"github.com/mixelka/mailtriage/internal/server"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API",
		Long: "Serve the dashboard JSON API over stored analyses and the EMAIL_DIR\n" +
			"directory, plus /healthz and /metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(func(cfg *config.Config) {
				if addr != "" {
					cfg.ListenAddr = addr
				}
			})
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			srv, err := a.newServer(db)
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Listen(a.cfg.ListenAddr)
			})
			g.Go(func() error {
				<-ctx.Done()
				return a.shutdown(srv)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides LISTEN_ADDR)")
	return cmd
}

func (a *app) newServer(db *database.DB) (*server.Server, error) {
	emitter, err := a.emitter()
	if err != nil {
		return nil, err
	}

	return server.New(server.Deps{
		Store:      db,
		Processor:  a.pipeline,
		Scanner:    pipeline.NewScanner(a.pipeline, a.cfg.EmailDir, a.cfg.ScanCacheTTL),
		Reports:    emitter,
		ReportDir:  a.cfg.ReportDir,
		Metrics:    a.metrics,
		Logger:     a.logger,
		UploadRate: 30,
	}), nil
}

func (a *app) shutdown(srv *server.Server) error {
	a.logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
