package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixelka/mailtriage/internal/database"
	"github.com/mixelka/mailtriage/internal/formatter"
	"github.com/mixelka/mailtriage/internal/metrics"
	appmodels "github.com/mixelka/mailtriage/pkg/models"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*bot.SendMessageParams
	err  error
}

func (f *fakeSender) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, params)
	return &models.Message{ID: len(f.sent)}, nil
}

type fakeStore struct {
	counts   map[appmodels.Urgency]int
	analyses []*appmodels.Analysis
	filter   database.ListFilter
	err      error
}

func (f *fakeStore) CountByUrgency(ctx context.Context) (map[appmodels.Urgency]int, error) {
	return f.counts, f.err
}

func (f *fakeStore) ListAnalyses(ctx context.Context, filter database.ListFilter) ([]*appmodels.Analysis, error) {
	f.filter = filter
	return f.analyses, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func analysisWith(urgency appmodels.Urgency) *appmodels.Analysis {
	return &appmodels.Analysis{
		ID:     "a1",
		Source: "outage.eml",
		Record: appmodels.EmailRecord{Subject: "Canvas outage", Urgency: urgency},
	}
}

func TestNotifier_MinUrgency(t *testing.T) {
	tests := []struct {
		name    string
		min     appmodels.Urgency
		urgency appmodels.Urgency
		want    bool
	}{
		{name: "red over orange", min: appmodels.UrgencyOrange, urgency: appmodels.UrgencyRed, want: true},
		{name: "orange at orange", min: appmodels.UrgencyOrange, urgency: appmodels.UrgencyOrange, want: true},
		{name: "yellow under orange", min: appmodels.UrgencyOrange, urgency: appmodels.UrgencyYellow, want: false},
		{name: "orange under red", min: appmodels.UrgencyRed, urgency: appmodels.UrgencyOrange, want: false},
		{name: "yellow at yellow", min: appmodels.UrgencyYellow, urgency: appmodels.UrgencyYellow, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			n := NewNotifier(sender, NotifierConfig{ChatID: 42, MinUrgency: tt.min}, formatter.NewTelegramFormatter(), nil, testLogger())

			require.NoError(t, n.Notify(context.Background(), analysisWith(tt.urgency)))
			assert.Equal(t, tt.want, len(sender.sent) == 1)
		})
	}
}

func TestNotifier_SendsFormattedAlert(t *testing.T) {
	sender := &fakeSender{}
	m := metrics.New()
	n := NewNotifier(sender, NotifierConfig{
		ChatID:       42,
		TopicID:      7,
		DashboardURL: "https://triage.example.edu",
	}, formatter.NewTelegramFormatter(), m, testLogger())

	require.NoError(t, n.Notify(context.Background(), analysisWith(appmodels.UrgencyRed)))
	require.Len(t, sender.sent, 1)

	params := sender.sent[0]
	assert.Equal(t, int64(42), params.ChatID)
	assert.Equal(t, 7, params.MessageThreadID)
	assert.Equal(t, models.ParseModeHTML, params.ParseMode)
	assert.Contains(t, params.Text, "Canvas outage")
	assert.NotNil(t, params.ReplyMarkup)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsSent.WithLabelValues("sent")))
}

func TestNotifier_SendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("forbidden")}
	m := metrics.New()
	n := NewNotifier(sender, NotifierConfig{ChatID: 42}, formatter.NewTelegramFormatter(), m, testLogger())

	err := n.Notify(context.Background(), analysisWith(appmodels.UrgencyRed))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outage.eml")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsSent.WithLabelValues("error")))
}

func TestNotifier_RateLimited(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, NotifierConfig{ChatID: 42, Interval: time.Hour}, formatter.NewTelegramFormatter(), nil, testLogger())

	require.NoError(t, n.Notify(context.Background(), analysisWith(appmodels.UrgencyRed)))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := n.Notify(ctx, analysisWith(appmodels.UrgencyRed))
	assert.Error(t, err)
	assert.Len(t, sender.sent, 1)
}

func newTestBot(store Store, sender Sender) *Bot {
	return &Bot{
		sender:    sender,
		store:     store,
		formatter: formatter.NewTelegramFormatter(),
		chatID:    42,
		logger:    testLogger(),
	}
}

func command(chatID int64, text string) *models.Update {
	return &models.Update{Message: &models.Message{
		Chat:            models.Chat{ID: chatID},
		MessageThreadID: 3,
		Text:            text,
	}}
}

func TestBot_Stats(t *testing.T) {
	sender := &fakeSender{}
	store := &fakeStore{counts: map[appmodels.Urgency]int{appmodels.UrgencyRed: 2}}
	b := newTestBot(store, sender)

	b.handleStats(context.Background(), nil, command(42, "/stats"))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "CRITICAL: 2")
	assert.Equal(t, 3, sender.sent[0].MessageThreadID)

	store.err = errors.New("db closed")
	b.handleStats(context.Background(), nil, command(42, "/stats"))
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "Failed to load statistics", sender.sent[1].Text)
}

func TestBot_IgnoresForeignChat(t *testing.T) {
	sender := &fakeSender{}
	b := newTestBot(&fakeStore{}, sender)

	b.handleStats(context.Background(), nil, command(99, "/stats"))
	b.handleHelp(context.Background(), nil, command(99, "/help"))
	assert.Empty(t, sender.sent)
}

func TestBot_Recent(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantLimit   int
		wantUrgency appmodels.Urgency
		wantReply   string
	}{
		{name: "defaults", text: "/recent", wantLimit: defaultRecent},
		{name: "count and urgency", text: "/recent 5 red", wantLimit: 5, wantUrgency: appmodels.UrgencyRed},
		{name: "count too large", text: "/recent 100", wantReply: "Count must be between 1 and 30"},
		{name: "bad urgency", text: "/recent purple", wantReply: "Usage:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			store := &fakeStore{analyses: []*appmodels.Analysis{analysisWith(appmodels.UrgencyRed)}}
			b := newTestBot(store, sender)

			b.handleRecent(context.Background(), nil, command(42, tt.text))
			require.Len(t, sender.sent, 1)

			if tt.wantReply != "" {
				assert.Contains(t, sender.sent[0].Text, tt.wantReply)
				return
			}
			assert.Equal(t, tt.wantLimit, store.filter.Limit)
			assert.Equal(t, tt.wantUrgency, store.filter.Urgency)
			assert.Contains(t, sender.sent[0].Text, "Canvas outage")
		})
	}
}
