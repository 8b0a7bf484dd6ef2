package nlp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sentenceRegex = regexp.MustCompile(`[^.!?]+[.!?]*`)

// splitAnnotator is a deterministic stand-in for the prose models:
// punctuation-delimited sentences, capitalised words as entities.
type splitAnnotator struct {
	slowText string
	release  chan struct{}
	failText string
}

func (a *splitAnnotator) Annotate(text string) (Document, error) {
	if a.slowText != "" && text == a.slowText {
		<-a.release
	}
	if a.failText != "" && text == a.failText {
		return Document{}, errors.New("model unavailable")
	}

	doc := Document{Sentences: []string{}, Tokens: []string{}, Entities: []string{}}
	for _, s := range sentenceRegex.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			doc.Sentences = append(doc.Sentences, s)
		}
	}
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		doc.Tokens = append(doc.Tokens, w)
		if unicode.IsUpper([]rune(w)[0]) {
			doc.Entities = append(doc.Entities, w)
		}
	}
	return doc, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestModel(t *testing.T, opts Options) *Model {
	t.Helper()
	if opts.Annotator == nil {
		opts.Annotator = &splitAnnotator{}
	}
	if opts.ReferenceText == "" {
		opts.ReferenceText = "phishing attack targets students"
	}
	m, err := NewModel(opts, discardLogger())
	require.NoError(t, err)
	return m
}

func TestModel_EmptyBody(t *testing.T) {
	m := newTestModel(t, Options{})

	for _, body := range []string{"", "   \n\t"} {
		f, err := m.Extract(context.Background(), body, 3)
		require.NoError(t, err)
		assert.NotNil(t, f.Entities)
		assert.Empty(t, f.Entities)
		assert.Zero(t, f.Similarity)
		assert.Empty(t, f.Summary)
		assert.NotEmpty(t, f.Warnings)
	}
}

func TestModel_NoEmbeddableTokens(t *testing.T) {
	m := newTestModel(t, Options{})

	f, err := m.Extract(context.Background(), "... !!! ???", 3)
	require.NoError(t, err)
	assert.Zero(t, f.Similarity)
	assert.Contains(t, f.Warnings, ErrDegenerateEmbedding.Error())
}

func TestModel_Similarity(t *testing.T) {
	m := newTestModel(t, Options{})
	ctx := context.Background()

	same, err := m.Similarity(ctx, "phishing attack targets students")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, same, 1e-9)

	related, err := m.Similarity(ctx, "A phishing attack was reported today")
	require.NoError(t, err)
	assert.Greater(t, related, 0.3)

	unrelated, err := m.Similarity(ctx, "Lunch menu pizza tomorrow")
	require.NoError(t, err)
	assert.Less(t, unrelated, 0.5)
	assert.GreaterOrEqual(t, unrelated, -1.0)
}

func TestModel_EntitiesKeepDuplicatesAndOrder(t *testing.T) {
	m := newTestModel(t, Options{})

	entities, err := m.Entities(context.Background(), "Alice met Bob. Alice left.")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", "Alice"}, entities)
}

func TestModel_SummaryIsSubsetOfSentences(t *testing.T) {
	body := "The VPN gateway is compromised. Attackers used stolen credentials. " +
		"Student records may be exposed. Reset all admin passwords today. Lunch is at noon."
	sentences := sentenceRegex.FindAllString(body, -1)
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}

	for _, strategy := range []Strategy{StrategyLead, StrategyTextRank} {
		m := newTestModel(t, Options{Strategy: strategy})
		for n := 1; n <= 6; n++ {
			summary, err := m.Summarize(context.Background(), body, n)
			require.NoError(t, err)

			picked := sentenceRegex.FindAllString(summary, -1)
			assert.LessOrEqual(t, len(picked), n, "strategy %s n %d", strategy, n)

			last := -1
			for _, p := range picked {
				idx := indexOf(sentences, strings.TrimSpace(p))
				require.GreaterOrEqual(t, idx, 0, "sentence %q not in body", p)
				assert.Greater(t, idx, last, "sentences out of order")
				last = idx
			}
		}
	}
}

func TestModel_LeadSummary(t *testing.T) {
	m := newTestModel(t, Options{})

	summary, err := m.Summarize(context.Background(), "One. Two. Three. Four.", 3)
	require.NoError(t, err)
	assert.Equal(t, "One. Two. Three.", summary)
}

func TestModel_TextRankPrefersCentralSentences(t *testing.T) {
	m := newTestModel(t, Options{Strategy: StrategyTextRank})

	body := "Ransomware hit the campus network. " +
		"The cafeteria opens late on Friday. " +
		"Ransomware encrypted the campus network servers. " +
		"Campus network ransomware recovery is underway."

	summary, err := m.Summarize(context.Background(), body, 2)
	require.NoError(t, err)
	assert.NotContains(t, summary, "cafeteria")
}

func TestModel_Timeout(t *testing.T) {
	annotator := &splitAnnotator{slowText: "slow body.", release: make(chan struct{})}
	t.Cleanup(func() { close(annotator.release) })

	m := newTestModel(t, Options{Annotator: annotator, Timeout: 20 * time.Millisecond})

	f, err := m.Extract(context.Background(), "slow body.", 3)
	require.Error(t, err)

	var extErr *ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Empty(t, f.Entities)
	assert.Zero(t, f.Similarity)
	assert.NotEmpty(t, f.Warnings)
	assert.Equal(t, "slow body.", f.Summary)
}

func TestModel_AnnotatorFailureDegrades(t *testing.T) {
	body := "One. Two. Three. Four."
	m := newTestModel(t, Options{Annotator: &splitAnnotator{failText: body}})

	f, err := m.Extract(context.Background(), body, 3)
	var extErr *ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, "annotate", extErr.Op)
	assert.NotNil(t, f.Entities)
	assert.Empty(t, f.Entities)
	assert.Zero(t, f.Similarity)
	assert.Equal(t, "One. Two. Three.", f.Summary)
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "  ", want: []string{}},
		{name: "no terminal punctuation", text: "VPN is down", want: []string{"VPN is down"}},
		{name: "mixed", text: "Is the VPN down? Yes!  Reset it now.\nThanks", want: []string{"Is the VPN down?", "Yes!", "Reset it now.", "Thanks"}},
		{name: "closing quote", text: `He said "stop." Then left.`, want: []string{`He said "stop."`, "Then left."}},
		{name: "decimal stays", text: "Version 2.5 is affected.", want: []string{"Version 2.5 is affected."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitSentences(tt.text))
		})
	}
}

func TestModel_Deterministic(t *testing.T) {
	m := newTestModel(t, Options{Strategy: StrategyTextRank})
	body := "Alice reported a phishing attack. Bob confirmed it. Students were targeted."

	first, err := m.Extract(context.Background(), body, 2)
	require.NoError(t, err)
	second, err := m.Extract(context.Background(), body, 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNewModel_DegenerateReference(t *testing.T) {
	_, err := NewModel(Options{Annotator: &splitAnnotator{}, ReferenceText: "... ---"}, discardLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegenerateEmbedding))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyLead, s)

	s, err = ParseStrategy("TextRank")
	require.NoError(t, err)
	assert.Equal(t, StrategyTextRank, s)

	_, err = ParseStrategy("abstractive")
	assert.Error(t, err)
}

func TestProseAnnotator(t *testing.T) {
	a, err := NewProseAnnotator()
	require.NoError(t, err)
	require.NotNil(t, a.model)

	text := "Jane Doe from Microsoft reported an outage in Melbourne. The VPN is down."
	doc, err := a.Annotate(text)
	require.NoError(t, err)

	assert.NotEmpty(t, doc.Sentences)
	assert.NotEmpty(t, doc.Tokens)
	for _, s := range doc.Sentences {
		assert.Contains(t, text, s)
	}
	for _, e := range doc.Entities {
		assert.Contains(t, text, e)
	}
	for _, tok := range doc.Tokens {
		assert.True(t, isWord(tok), "token %q", tok)
	}
}

func TestProseAnnotator_SharedAcrossCalls(t *testing.T) {
	a, err := NewProseAnnotator()
	require.NoError(t, err)
	model := a.model

	const text = "The university Canvas system is down for all students."
	first, err := a.Annotate(text)
	require.NoError(t, err)

	var wg sync.WaitGroup
	docs := make([]Document, 4)
	errs := make([]error, 4)
	for i := range docs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			docs[i], errs[i] = a.Annotate(text)
		}()
	}
	wg.Wait()

	for i := range docs {
		require.NoError(t, errs[i])
		assert.Equal(t, first, docs[i])
	}
	assert.Same(t, model, a.model)
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
