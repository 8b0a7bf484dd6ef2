package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mixelka/mailtriage/internal/metrics"
	"github.com/mixelka/mailtriage/internal/nlp"
	"github.com/mixelka/mailtriage/internal/parser"
	"github.com/mixelka/mailtriage/internal/triage"
	"github.com/mixelka/mailtriage/pkg/models"
)

// analysisNamespace seeds deterministic analysis IDs
var analysisNamespace = uuid.MustParse("6f1c3a52-8d0e-4b7a-9a51-2f4e7c9d1b30")

// Extractor computes NLP features for a body text
type Extractor interface {
	Extract(ctx context.Context, text string, sentences int) (nlp.Features, error)
}

// Options configures a Pipeline
type Options struct {
	Sentences int // summary length, default 3
	Workers   int // batch parallelism, default 1
}

// Pipeline runs raw emails through parse, feature extraction and
// classification
type Pipeline struct {
	extractor  Extractor
	classifier *triage.Classifier
	html       *parser.HTMLParser
	sentences  int
	workers    int
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a pipeline. m may be nil.
func New(extractor Extractor, classifier *triage.Classifier, opts Options, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if opts.Sentences <= 0 {
		opts.Sentences = 3
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Pipeline{
		extractor:  extractor,
		classifier: classifier,
		html:       parser.NewHTMLParser(),
		sentences:  opts.Sentences,
		workers:    opts.Workers,
		metrics:    m,
		logger:     logger.With("component", "pipeline"),
		now:        time.Now,
	}
}

// Process turns one raw message into an Analysis. source names the message
// in errors and logs. Degraded NLP features are reported as warnings, not
// errors.
func (p *Pipeline) Process(ctx context.Context, source string, raw []byte) (*models.Analysis, error) {
	start := time.Now()

	msg, err := parser.ParseEmail(bytes.NewReader(raw))
	if err != nil {
		p.metrics.RecordFailure("parse")
		return nil, withSource(err, source)
	}

	parts, err := parser.ExtractParts(msg, p.html)
	if err != nil {
		p.metrics.RecordFailure("parse")
		return nil, withSource(err, source)
	}

	warnings := append([]string{}, msg.Warnings...)

	features, err := p.extractor.Extract(ctx, parts.BodyText, p.sentences)
	degraded := false
	if err != nil {
		var extErr *nlp.ExtractionError
		if !errors.As(err, &extErr) {
			p.metrics.RecordFailure("extract")
			return nil, fmt.Errorf("extract features %s: %w", source, err)
		}
		degraded = true
		p.logger.Warn("degraded features", "source", source, "error", err)
	}
	warnings = append(warnings, features.Warnings...)

	entities := features.Entities
	if entities == nil {
		entities = []string{}
	}

	urgency := p.classifier.Classify(parts.BodyText, features.Similarity)

	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])

	analysis := &models.Analysis{
		ID:              uuid.NewSHA1(analysisNamespace, []byte(source+"\x00"+hash)).String(),
		Source:          source,
		ContentHash:     hash,
		MessageID:       msg.MessageID,
		EmailDate:       msg.Date,
		FileSize:        int64(len(raw)),
		CreatedAt:       msg.Date,
		Attachments:     msg.Attachments(),
		MatchedKeywords: p.classifier.MatchKeywords(parts.BodyText),
		RiskScore:       triage.RiskScore(features.Similarity, urgency),
		Warnings:        warnings,
		AnalyzedAt:      p.now(),
		Record: models.EmailRecord{
			Subject:    parts.Subject,
			From:       parts.From,
			BodyText:   parts.BodyText,
			Entities:   entities,
			Similarity: features.Similarity,
			Summary:    features.Summary,
			Urgency:    urgency,
		},
	}

	p.metrics.RecordEmail(urgency, time.Since(start), degraded)
	p.logger.Debug("email classified",
		"source", source,
		"urgency", urgency,
		"similarity", features.Similarity,
		"entities", len(entities),
	)

	return analysis, nil
}

// ProcessFile reads and processes a single .eml file. CreatedAt is the
// file's creation time where the platform records one.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*models.Analysis, error) {
	info, err := os.Stat(path)
	if err != nil {
		p.metrics.RecordFailure("read")
		return nil, &parser.ParseError{Source: filepath.Base(path), Err: err}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		p.metrics.RecordFailure("read")
		return nil, &parser.ParseError{Source: filepath.Base(path), Err: err}
	}

	analysis, err := p.Process(ctx, filepath.Base(path), raw)
	if err != nil {
		return nil, err
	}
	analysis.CreatedAt = createdAt(info)
	return analysis, nil
}

func withSource(err error, source string) error {
	var perr *parser.ParseError
	if errors.As(err, &perr) && perr.Source == "" {
		perr.Source = source
	}
	return err
}
