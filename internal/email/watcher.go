package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/emersion/go-imap"

	"github.com/mixelka/mailtriage/internal/database"
	"github.com/mixelka/mailtriage/pkg/models"
)

// Mailbox is an IMAP inbox the watcher polls
type Mailbox interface {
	Connect(ctx context.Context) error
	SelectINBOX(ctx context.Context) (*imap.MailboxStatus, error)
	FetchSince(ctx context.Context, sinceUID uint32) ([]*RawEmail, error)
	Close()
}

// Processor turns raw messages into analyses
type Processor interface {
	Process(ctx context.Context, source string, raw []byte) (*models.Analysis, error)
}

// Store persists analyses and polling progress
type Store interface {
	GetMailboxState(ctx context.Context, email, server string) (*models.MailboxState, error)
	EnsureMailboxState(ctx context.Context, email, server string, lastUID uint32) (*models.MailboxState, error)
	UpdateMailboxLastUID(ctx context.Context, id int64, uid uint32) error
	CreateAnalysis(ctx context.Context, a *models.Analysis) error
}

// Notifier alerts on new analyses
type Notifier interface {
	Notify(ctx context.Context, a *models.Analysis) error
}

// WatcherDeps dependencies for creating a watcher
type WatcherDeps struct {
	Mailbox   Mailbox
	Processor Processor
	Store     Store
	Notifier  Notifier // optional
	Email     string
	Server    string
	Interval  time.Duration
	Logger    *slog.Logger
}

// Watcher polls an INBOX and runs every new message through the pipeline
type Watcher struct {
	mailbox    Mailbox
	processor  Processor
	store      Store
	notifier   Notifier
	email      string
	server     string
	interval   time.Duration
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
}

// NewWatcher creates a watcher
func NewWatcher(deps WatcherDeps) *Watcher {
	interval := deps.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Watcher{
		mailbox:   deps.Mailbox,
		processor: deps.Processor,
		store:     deps.Store,
		notifier:  deps.Notifier,
		email:     deps.Email,
		server:    deps.Server,
		interval:  interval,
		logger:    deps.Logger.With("component", "watcher", "email", deps.Email),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 5 * time.Second
			b.MaxInterval = 5 * time.Minute
			b.MaxElapsedTime = 0 // retry until cancelled
			return b
		},
	}
}

// Run polls until ctx is cancelled. Connection failures are retried with
// exponential backoff. On the first run for a mailbox only mail arriving
// after startup is processed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.mailbox.Close()

	state, err := w.loadState(ctx)
	if err != nil {
		return err
	}
	w.logger.Info("watching INBOX", "last_uid", state.LastUID, "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		op := func() error {
			return w.Poll(ctx, state)
		}
		notify := func(err error, wait time.Duration) {
			w.logger.Warn("poll failed, reconnecting", "error", err, "retry_in", wait)
			w.mailbox.Close()
		}
		if err := backoff.RetryNotify(op, backoff.WithContext(w.newBackOff(), ctx), notify); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// loadState returns the stored polling state, starting from the current
// end of the mailbox when there is none
func (w *Watcher) loadState(ctx context.Context) (*models.MailboxState, error) {
	state, err := w.store.GetMailboxState(ctx, w.email, w.server)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	var start uint32
	op := func() error {
		if err := w.mailbox.Connect(ctx); err != nil {
			return err
		}
		status, err := w.mailbox.SelectINBOX(ctx)
		if err != nil {
			w.mailbox.Close()
			return err
		}
		if status.UidNext > 0 {
			start = status.UidNext - 1
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		w.logger.Warn("initial connect failed", "error", err, "retry_in", wait)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(w.newBackOff(), ctx), notify); err != nil {
		return nil, fmt.Errorf("failed to open mailbox: %w", err)
	}

	return w.store.EnsureMailboxState(ctx, w.email, w.server, start)
}

// Poll fetches and processes everything after state.LastUID. A message
// that fails to process is logged and skipped. Only mailbox and store
// errors are returned.
func (w *Watcher) Poll(ctx context.Context, state *models.MailboxState) error {
	if err := w.mailbox.Connect(ctx); err != nil {
		return err
	}
	if _, err := w.mailbox.SelectINBOX(ctx); err != nil {
		return err
	}

	messages, err := w.mailbox.FetchSince(ctx, state.LastUID)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		w.handle(ctx, msg)

		if msg.UID > state.LastUID {
			if err := w.store.UpdateMailboxLastUID(ctx, state.ID, msg.UID); err != nil {
				return backoff.Permanent(err)
			}
			state.LastUID = msg.UID
		}
	}

	if len(messages) > 0 {
		w.logger.Info("processed new mail", "count", len(messages), "last_uid", state.LastUID)
	}
	return nil
}

func (w *Watcher) handle(ctx context.Context, msg *RawEmail) {
	source := fmt.Sprintf("imap:%d", msg.UID)

	analysis, err := w.processor.Process(ctx, source, msg.Raw)
	if err != nil {
		w.logger.Error("failed to process email", "file", source, "error", err)
		return
	}
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = analysis.AnalyzedAt
	}

	if err := w.store.CreateAnalysis(ctx, analysis); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			w.logger.Debug("email already analyzed", "file", source, "hash", analysis.ContentHash)
			return
		}
		w.logger.Error("failed to store analysis", "file", source, "error", err)
		return
	}

	if w.notifier == nil {
		return
	}
	if err := w.notifier.Notify(ctx, analysis); err != nil {
		w.logger.Error("failed to send alert", "file", source, "error", err)
	}
}
