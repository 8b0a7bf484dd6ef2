package triage

import (
	"fmt"
	"strings"

	"github.com/mixelka/mailtriage/pkg/models"
)

// Default similarity thresholds. Both comparisons are strict.
const (
	DefaultRedThreshold    = 0.9
	DefaultOrangeThreshold = 0.6
)

// Thresholds are the similarity cut-offs for Red and Orange
type Thresholds struct {
	Red    float64 `toml:"red"`
	Orange float64 `toml:"orange"`
}

// DefaultThresholds returns 0.9 / 0.6
func DefaultThresholds() Thresholds {
	return Thresholds{Red: DefaultRedThreshold, Orange: DefaultOrangeThreshold}
}

// Validate checks 0 <= orange <= red
func (t Thresholds) Validate() error {
	if t.Orange < 0 || t.Red < t.Orange {
		return fmt.Errorf("thresholds must satisfy 0 <= orange <= red, got orange=%v red=%v", t.Orange, t.Red)
	}
	return nil
}

// Classifier assigns urgency labels from keywords and similarity
type Classifier struct {
	keywords   []string // as configured
	normalized []string // lower-cased, same order
	thresholds Thresholds
}

// NewClassifier creates a classifier. Empty keywords are ignored.
func NewClassifier(keywords []string, thresholds Thresholds) *Classifier {
	c := &Classifier{thresholds: thresholds}
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		c.keywords = append(c.keywords, kw)
		c.normalized = append(c.normalized, strings.ToLower(kw))
	}
	return c
}

// Keywords returns the configured keywords
func (c *Classifier) Keywords() []string {
	return append([]string(nil), c.keywords...)
}

// Thresholds returns the configured thresholds
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Classify maps body text and similarity to an urgency label. A keyword hit
// is Red whatever the similarity.
func (c *Classifier) Classify(body string, similarity float64) models.Urgency {
	if c.hasKeyword(strings.ToLower(body)) {
		return models.UrgencyRed
	}
	switch {
	case similarity > c.thresholds.Red:
		return models.UrgencyRed
	case similarity > c.thresholds.Orange:
		return models.UrgencyOrange
	default:
		return models.UrgencyYellow
	}
}

func (c *Classifier) hasKeyword(lowerBody string) bool {
	for _, kw := range c.normalized {
		if strings.Contains(lowerBody, kw) {
			return true
		}
	}
	return false
}

// MatchKeywords returns the keywords found in body, in configuration order
// and without duplicates
func (c *Classifier) MatchKeywords(body string) []string {
	lowerBody := strings.ToLower(body)
	matched := []string{}
	seen := make(map[string]bool)

	for i, kw := range c.normalized {
		if seen[kw] || !strings.Contains(lowerBody, kw) {
			continue
		}
		seen[kw] = true
		matched = append(matched, c.keywords[i])
	}
	return matched
}

// RiskScore converts similarity and urgency into a 0-10 dashboard score
func RiskScore(similarity float64, urgency models.Urgency) int {
	bonus := 0.0
	switch urgency {
	case models.UrgencyRed:
		bonus = 3
	case models.UrgencyOrange:
		bonus = 1
	}

	score := int(similarity*10 + bonus)
	if score > 10 {
		return 10
	}
	if score < 0 {
		return 0
	}
	return score
}
