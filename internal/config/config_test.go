package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"university", "student", "canvas", "Cobalt Strike"}, cfg.Keywords)
	assert.Equal(t, 0.9, cfg.RedThreshold)
	assert.Equal(t, 0.6, cfg.OrangeThreshold)
	assert.Equal(t, 3, cfg.SummarySentences)
	assert.Equal(t, "lead", cfg.SummaryStrategy)
	assert.Equal(t, 30*time.Second, cfg.ModelTimeout)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "html", cfg.ReportFormat)
	assert.False(t, cfg.IMAPEnabled())
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("TRIAGE_KEYWORDS", "vpn,ransomware")
	t.Setenv("TRIAGE_RED_THRESHOLD", "0.8")
	t.Setenv("SUMMARY_STRATEGY", "textrank")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"vpn", "ransomware"}, cfg.Keywords)
	assert.Equal(t, 0.8, cfg.Thresholds().Red)
	assert.Equal(t, "textrank", cfg.SummaryStrategy)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero sentences", key: "SUMMARY_SENTENCES", value: "0"},
		{name: "bad strategy", key: "SUMMARY_STRATEGY", value: "abstractive"},
		{name: "orange above red", key: "TRIAGE_ORANGE_THRESHOLD", value: "0.95"},
		{name: "bad report format", key: "REPORT_FORMAT", value: "docx"},
		{name: "bad urgency", key: "ALERT_MIN_URGENCY", value: "Purple"},
		{name: "no workers", key: "BATCH_WORKERS", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_RulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	rules := `
reference = "Ransomware attack on hospital systems"
keywords = ["ransomware", "Emotet"]

[thresholds]
red = 0.85
orange = 0.5

[summary]
sentences = 2
strategy = "textrank"
`
	require.NoError(t, os.WriteFile(path, []byte(rules), 0o644))
	t.Setenv("RULES_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Ransomware attack on hospital systems", cfg.ReferenceText)
	assert.Equal(t, []string{"ransomware", "Emotet"}, cfg.Keywords)
	assert.Equal(t, 0.85, cfg.RedThreshold)
	assert.Equal(t, 0.5, cfg.OrangeThreshold)
	assert.Equal(t, 2, cfg.SummarySentences)
	assert.Equal(t, "textrank", cfg.SummaryStrategy)
}

func TestApplyRulesFile_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	require.NoError(t, os.WriteFile(path, []byte(`keywords = ["phishing"]`), 0o644))

	cfg := &Config{SummarySentences: 3, RedThreshold: 0.9, OrangeThreshold: 0.6}
	require.NoError(t, cfg.ApplyRulesFile(path))
	assert.Equal(t, []string{"phishing"}, cfg.Keywords)
	assert.Equal(t, 3, cfg.SummarySentences)
	assert.Equal(t, 0.9, cfg.RedThreshold)
}

func TestApplyRulesFile_PartialThresholds(t *testing.T) {
	tests := []struct {
		name       string
		rules      string
		wantRed    float64
		wantOrange float64
	}{
		{name: "red only", rules: "[thresholds]\nred = 0.95\n", wantRed: 0.95, wantOrange: 0.6},
		{name: "orange only", rules: "[thresholds]\norange = 0.4\n", wantRed: 0.9, wantOrange: 0.4},
		{name: "empty table", rules: "[thresholds]\n", wantRed: 0.9, wantOrange: 0.6},
		{name: "explicit zero", rules: "[thresholds]\norange = 0.0\n", wantRed: 0.9, wantOrange: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rules.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.rules), 0o644))

			cfg := &Config{SummarySentences: 3, RedThreshold: 0.9, OrangeThreshold: 0.6}
			require.NoError(t, cfg.ApplyRulesFile(path))
			assert.Equal(t, tt.wantRed, cfg.RedThreshold)
			assert.Equal(t, tt.wantOrange, cfg.OrangeThreshold)
		})
	}
}

func TestApplyRulesFile_Missing(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ApplyRulesFile(filepath.Join(t.TempDir(), "missing.toml")))
}
