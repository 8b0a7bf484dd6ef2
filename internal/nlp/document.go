package nlp

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/jdkato/prose/v2"
)

// Document is the annotated form of a text
type Document struct {
	Sentences []string
	Tokens    []string // word tokens, punctuation removed
	Entities  []string // entity surface texts in document order
}

// Annotator segments, tokenizes and tags text
type Annotator interface {
	Annotate(text string) (Document, error)
}

// ProseAnnotator annotates text with prose's pretrained English models.
// The tagger and NER models are loaded on first use and reused for every
// later document. Calls are serialised.
type ProseAnnotator struct {
	mu    sync.Mutex
	model *prose.Model
}

// NewProseAnnotator loads the prose models
func NewProseAnnotator() (*ProseAnnotator, error) {
	a := &ProseAnnotator{}
	if _, err := a.Annotate("Models loaded."); err != nil {
		return nil, err
	}
	return a, nil
}

// Annotate runs segmentation, tokenization, tagging and NER
func (a *ProseAnnotator) Annotate(text string) (Document, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var opts []prose.DocOpt
	if a.model != nil {
		opts = append(opts, prose.UsingModel(a.model))
	}
	doc, err := prose.NewDocument(text, opts...)
	if err != nil {
		return Document{}, fmt.Errorf("prose: %w", err)
	}
	if a.model == nil {
		a.model = doc.Model
	}

	out := Document{
		Sentences: []string{},
		Tokens:    []string{},
		Entities:  []string{},
	}
	for _, s := range doc.Sentences() {
		if sent := strings.TrimSpace(s.Text); sent != "" {
			out.Sentences = append(out.Sentences, sent)
		}
	}
	for _, tok := range doc.Tokens() {
		if isWord(tok.Text) {
			out.Tokens = append(out.Tokens, tok.Text)
		}
	}
	for _, ent := range doc.Entities() {
		out.Entities = append(out.Entities, ent.Text)
	}
	return out, nil
}

// isWord reports whether a token has at least one letter or digit
func isWord(tok string) bool {
	for _, r := range tok {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
