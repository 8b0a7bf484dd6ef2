package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mixelka/mailtriage/internal/email"
	"github.com/mixelka/mailtriage/internal/formatter"
	"github.com/mixelka/mailtriage/internal/telegram"
	"github.com/mixelka/mailtriage/pkg/models"
)

func watchCmd() *cobra.Command {
	var serve bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll an IMAP inbox, classify new mail and send Telegram alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			cfg := a.cfg
			ctx := cmd.Context()

			if !cfg.IMAPEnabled() {
				return errors.New("IMAP_EMAIL and IMAP_PASSWORD are required")
			}

			server := cfg.IMAPServer
			if server == "" {
				server, err = email.NewResolver().Resolve(ctx, cfg.IMAPEmail)
				if err != nil {
					return err
				}
				a.logger.Info("resolved IMAP server", "server", server)
			}

			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			g, ctx := errgroup.WithContext(ctx)

			var notifier email.Notifier
			if cfg.TelegramEnabled() {
				tgFormatter := formatter.NewTelegramFormatter()
				bot, err := telegram.NewBot(telegram.BotDeps{
					Token:     cfg.TelegramToken,
					ChatID:    cfg.TelegramChatID,
					Store:     db,
					Formatter: tgFormatter,
					Logger:    a.logger,
				})
				if err != nil {
					a.logger.Error("failed to create bot", "error", err)
					return err
				}

				minUrgency, _ := models.ParseUrgency(cfg.AlertMinUrgency)
				notifier = telegram.NewNotifier(bot.Sender(), telegram.NotifierConfig{
					ChatID:       cfg.TelegramChatID,
					TopicID:      cfg.TelegramTopicID,
					MinUrgency:   minUrgency,
					Interval:     cfg.AlertInterval,
					DashboardURL: cfg.DashboardURL,
				}, tgFormatter, a.metrics, a.logger)

				g.Go(func() error {
					bot.Start(ctx)
					return nil
				})
			} else {
				a.logger.Warn("telegram is not configured, alerts are disabled")
			}

			watcher := email.NewWatcher(email.WatcherDeps{
				Mailbox: email.NewClient(email.ClientConfig{
					Email:       cfg.IMAPEmail,
					Password:    cfg.IMAPPassword,
					Server:      server,
					DialTimeout: cfg.IMAPDialTimeout,
				}, a.logger),
				Processor: a.pipeline,
				Store:     db,
				Notifier:  notifier,
				Email:     cfg.IMAPEmail,
				Server:    server,
				Interval:  cfg.IMAPPollInterval,
				Logger:    a.logger,
			})
			g.Go(func() error {
				if err := watcher.Run(ctx); err != nil {
					return fmt.Errorf("watcher: %w", err)
				}
				return nil
			})

			if serve {
				srv, err := a.newServer(db)
				if err != nil {
					return err
				}
				g.Go(func() error {
					return srv.Listen(cfg.ListenAddr)
				})
				g.Go(func() error {
					<-ctx.Done()
					return a.shutdown(srv)
				})
			}

			a.logger.Info("watching, press Ctrl+C to stop")
			err = g.Wait()
			a.logger.Info("stopped")
			return err
		},
	}

	cmd.Flags().BoolVar(&serve, "serve", false, "Also serve the dashboard API")
	return cmd
}
