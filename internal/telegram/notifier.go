package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/mixelka/mailtriage/internal/formatter"
	"github.com/mixelka/mailtriage/internal/metrics"
	appmodels "github.com/mixelka/mailtriage/pkg/models"
)

// NotifierConfig configures alert delivery
type NotifierConfig struct {
	ChatID       int64
	TopicID      int
	MinUrgency   appmodels.Urgency // alerts below this are skipped
	Interval     time.Duration     // minimum spacing between alerts
	DashboardURL string
}

// Notifier sends alerts for urgent analyses
type Notifier struct {
	sender    Sender
	config    NotifierConfig
	limiter   *rate.Limiter
	formatter *formatter.TelegramFormatter
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewNotifier creates a notifier. m may be nil.
func NewNotifier(sender Sender, cfg NotifierConfig, f *formatter.TelegramFormatter, m *metrics.Metrics, logger *slog.Logger) *Notifier {
	if cfg.MinUrgency == "" {
		cfg.MinUrgency = appmodels.UrgencyOrange
	}

	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}

	return &Notifier{
		sender:    sender,
		config:    cfg,
		limiter:   rate.NewLimiter(limit, 1),
		formatter: f,
		metrics:   m,
		logger:    logger.With("component", "notifier"),
	}
}

// ShouldNotify reports whether an analysis is urgent enough to alert on
func (n *Notifier) ShouldNotify(a *appmodels.Analysis) bool {
	return a.Record.Urgency.Rank() >= n.config.MinUrgency.Rank()
}

// Notify sends an alert for a, waiting for the rate limiter. Analyses
// below the minimum urgency are skipped without error.
func (n *Notifier) Notify(ctx context.Context, a *appmodels.Analysis) error {
	if !n.ShouldNotify(a) {
		n.metrics.RecordAlert("skipped")
		return nil
	}

	if err := n.limiter.Wait(ctx); err != nil {
		n.metrics.RecordAlert("dropped")
		return fmt.Errorf("alert for %s not sent: %w", a.Source, err)
	}

	text := n.formatter.FormatAlert(a)
	keyboard := formatter.BuildAlertKeyboard(n.config.DashboardURL, a.ID)

	if _, err := sendMessage(ctx, n.sender, n.config.ChatID, n.config.TopicID, text, keyboard); err != nil {
		n.metrics.RecordAlert("error")
		return fmt.Errorf("failed to send alert for %s: %w", a.Source, err)
	}

	n.metrics.RecordAlert("sent")
	n.logger.Info("alert sent",
		"source", a.Source,
		"urgency", a.Record.Urgency,
		"chat_id", n.config.ChatID,
	)
	return nil
}
