package nlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
)

// DefaultReferenceText describes what a critical email looks like
const DefaultReferenceText = "Critical, cybersecurity, threat, affecting university systems, students, and campus infrastructure."

// Options configures a Model
type Options struct {
	ReferenceText string
	Strategy      Strategy
	Timeout       time.Duration // per-document limit on annotation, 0 disables
	Annotator     Annotator     // defaults to NewProseAnnotator()
	Embedder      Embedder      // defaults to a HashingEmbedder
}

// Features are the NLP outputs for one body text
type Features struct {
	Entities   []string
	Similarity float64
	Summary    string
	Warnings   []string
}

// Model is the shared, read-only NLP handle. Build it once and pass it to
// every pipeline.
type Model struct {
	annotator     Annotator
	embedder      Embedder
	referenceText string
	reference     Vector
	strategy      Strategy
	timeout       time.Duration
	logger        *slog.Logger
}

// NewModel creates a model and embeds the reference text
func NewModel(opts Options, logger *slog.Logger) (*Model, error) {
	m := &Model{
		annotator:     opts.Annotator,
		embedder:      opts.Embedder,
		referenceText: strings.TrimSpace(opts.ReferenceText),
		strategy:      opts.Strategy,
		timeout:       opts.Timeout,
		logger:        logger.With("component", "nlp"),
	}
	if m.annotator == nil {
		annotator, err := NewProseAnnotator()
		if err != nil {
			return nil, fmt.Errorf("load prose models: %w", err)
		}
		m.annotator = annotator
	}
	if m.embedder == nil {
		m.embedder = NewHashingEmbedder(1024)
	}
	if m.referenceText == "" {
		m.referenceText = DefaultReferenceText
	}
	if m.strategy == "" {
		m.strategy = StrategyLead
	}

	doc, err := m.annotator.Annotate(m.referenceText)
	if err != nil {
		return nil, fmt.Errorf("annotate reference text: %w", err)
	}
	ref, ok := m.embedder.Embed(doc.Tokens)
	if !ok {
		return nil, fmt.Errorf("reference text: %w", ErrDegenerateEmbedding)
	}
	m.reference = ref

	return m, nil
}

// ReferenceText returns the text similarity is measured against
func (m *Model) ReferenceText() string {
	return m.referenceText
}

// Extract computes entities, similarity and a summary of at most sentences
// sentences. On *ExtractionError the returned features are degraded but
// usable: no entities, zero similarity and a lead summary over
// punctuation-split sentences.
func (m *Model) Extract(ctx context.Context, text string, sentences int) (Features, error) {
	features := Features{Entities: []string{}}

	if strings.TrimSpace(text) == "" {
		features.Warnings = append(features.Warnings, ErrDegenerateEmbedding.Error())
		m.logger.Warn("empty body text, similarity set to 0")
		return features, nil
	}

	doc, err := m.annotate(ctx, text)
	if err != nil {
		m.logger.Warn("annotation failed, using degraded features", "error", err)
		features.Warnings = append(features.Warnings, err.Error())
		features.Summary = lead(splitSentences(text), sentences)
		return features, err
	}

	features.Entities = append(features.Entities, doc.Entities...)

	v, ok := m.embedder.Embed(doc.Tokens)
	if ok {
		features.Similarity = Cosine(v, m.reference)
	} else {
		features.Warnings = append(features.Warnings, ErrDegenerateEmbedding.Error())
		m.logger.Warn("no embeddable tokens, similarity set to 0", "tokens", len(doc.Tokens))
	}

	features.Summary = m.summarize(doc.Sentences, sentences)
	return features, nil
}

// Entities returns every entity surface text in document order
func (m *Model) Entities(ctx context.Context, text string) ([]string, error) {
	f, err := m.Extract(ctx, text, 1)
	return f.Entities, err
}

// Similarity returns the similarity of text to the reference text
func (m *Model) Similarity(ctx context.Context, text string) (float64, error) {
	f, err := m.Extract(ctx, text, 1)
	return f.Similarity, err
}

// Summarize returns at most n sentences of text
func (m *Model) Summarize(ctx context.Context, text string, n int) (string, error) {
	f, err := m.Extract(ctx, text, n)
	return f.Summary, err
}

func (m *Model) summarize(sentences []string, n int) string {
	if n <= 0 || len(sentences) == 0 {
		return ""
	}
	if m.strategy == StrategyTextRank {
		return textRank(sentences, n, m.embedSentence)
	}
	return lead(sentences, n)
}

func (m *Model) embedSentence(s string) Vector {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	v, _ := m.embedder.Embed(words)
	return v
}

type annotation struct {
	doc Document
	err error
}

// annotate runs the annotator, giving up when ctx or the model timeout
// expires. The annotator goroutine is left to finish on its own.
func (m *Model) annotate(ctx context.Context, text string) (Document, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	done := make(chan annotation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- annotation{err: fmt.Errorf("annotator panic: %v", r)}
			}
		}()
		doc, err := m.annotator.Annotate(text)
		done <- annotation{doc: doc, err: err}
	}()

	select {
	case <-ctx.Done():
		return Document{}, &ExtractionError{Op: "annotate", Err: ctx.Err()}
	case res := <-done:
		if res.err != nil {
			var extErr *ExtractionError
			if errors.As(res.err, &extErr) {
				return Document{}, res.err
			}
			return Document{}, &ExtractionError{Op: "annotate", Err: res.err}
		}
		return res.doc, nil
	}
}
