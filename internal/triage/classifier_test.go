package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixelka/mailtriage/pkg/models"
)

var universityKeywords = []string{"university", "callista", "canvas", "student", "Cobalt Strike"}

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(universityKeywords, DefaultThresholds())

	tests := []struct {
		name       string
		body       string
		similarity float64
		want       models.Urgency
	}{
		{name: "keyword with zero similarity", body: "Canvas is down", similarity: 0, want: models.UrgencyRed},
		{name: "keyword with negative similarity", body: "STUDENT portal", similarity: -0.4, want: models.UrgencyRed},
		{name: "mixed case multiword keyword", body: "beacon from cobalt strike observed", similarity: 0.1, want: models.UrgencyRed},
		{name: "keyword as substring", body: "universityportal login", similarity: 0, want: models.UrgencyRed},
		{name: "above red", body: "ransomware", similarity: 0.91, want: models.UrgencyRed},
		{name: "exactly red is orange", body: "ransomware", similarity: 0.9, want: models.UrgencyOrange},
		{name: "above orange", body: "ransomware", similarity: 0.61, want: models.UrgencyOrange},
		{name: "exactly orange is yellow", body: "ransomware", similarity: 0.6, want: models.UrgencyYellow},
		{name: "low", body: "newsletter", similarity: 0.2, want: models.UrgencyYellow},
		{name: "empty body", body: "", similarity: 0, want: models.UrgencyYellow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.body, tt.similarity))
		})
	}
}

func TestClassifier_CustomThresholds(t *testing.T) {
	c := NewClassifier(nil, Thresholds{Red: 0.5, Orange: 0.2})

	assert.Equal(t, models.UrgencyRed, c.Classify("x", 0.51))
	assert.Equal(t, models.UrgencyOrange, c.Classify("x", 0.5))
	assert.Equal(t, models.UrgencyYellow, c.Classify("x", 0.2))
}

func TestClassifier_IgnoresBlankKeywords(t *testing.T) {
	c := NewClassifier([]string{"", "  ", "vpn"}, DefaultThresholds())

	assert.Equal(t, []string{"vpn"}, c.Keywords())
	assert.Equal(t, models.UrgencyYellow, c.Classify("nothing here", 0))
}

func TestClassifier_MatchKeywords(t *testing.T) {
	c := NewClassifier([]string{"Student", "canvas", "student", "vpn"}, DefaultThresholds())

	matched := c.MatchKeywords("All students lost Canvas access. Students are upset.")
	assert.Equal(t, []string{"Student", "canvas"}, matched)

	assert.Empty(t, c.MatchKeywords("quarterly newsletter"))
	assert.NotNil(t, c.MatchKeywords(""))
}

func TestThresholds_Validate(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())
	assert.Error(t, Thresholds{Red: 0.5, Orange: 0.6}.Validate())
	assert.Error(t, Thresholds{Red: 0.5, Orange: -0.1}.Validate())
}

func TestRiskScore(t *testing.T) {
	assert.Equal(t, 10, RiskScore(0.95, models.UrgencyRed))
	assert.Equal(t, 3, RiskScore(0, models.UrgencyRed))
	assert.Equal(t, 7, RiskScore(0.65, models.UrgencyOrange))
	assert.Equal(t, 2, RiskScore(0.25, models.UrgencyYellow))
	assert.Equal(t, 0, RiskScore(-0.5, models.UrgencyYellow))
}
