package nlp

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Strategy selects how summaries are built
type Strategy string

const (
	// StrategyLead keeps the first n sentences verbatim
	StrategyLead Strategy = "lead"
	// StrategyTextRank keeps the n most central sentences in their
	// original order
	StrategyTextRank Strategy = "textrank"
)

// ParseStrategy validates a strategy name
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(s)) {
	case "", StrategyLead:
		return StrategyLead, nil
	case StrategyTextRank:
		return StrategyTextRank, nil
	default:
		return "", fmt.Errorf("unknown summary strategy %q", s)
	}
}

const (
	damping       = 0.85
	maxIterations = 100
	tolerance     = 1e-6
)

// sentenceEnd matches terminal punctuation, closing quotes or brackets and
// the whitespace after them
var sentenceEnd = regexp.MustCompile(`[.!?]+["')\]]*\s+`)

// splitSentences is the segmenter used when the annotator is unavailable
func splitSentences(text string) []string {
	sentences := []string{}
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// lead returns up to n leading sentences
func lead(sentences []string, n int) string {
	if n <= 0 {
		return ""
	}
	if n < len(sentences) {
		sentences = sentences[:n]
	}
	return strings.Join(sentences, " ")
}

// textRank ranks sentences by PageRank over their cosine similarity graph
func textRank(sentences []string, n int, embed func(string) Vector) string {
	if len(sentences) <= n {
		return strings.Join(sentences, " ")
	}

	size := len(sentences)
	vecs := make([]Vector, size)
	for i, s := range sentences {
		vecs[i] = embed(s)
	}

	weights := make([][]float64, size)
	outSum := make([]float64, size)
	for i := range weights {
		weights[i] = make([]float64, size)
		for j := range weights[i] {
			if i == j {
				continue
			}
			w := Cosine(vecs[i], vecs[j])
			if w < 0 {
				w = 0
			}
			weights[i][j] = w
			outSum[i] += w
		}
	}

	scores := make([]float64, size)
	for i := range scores {
		scores[i] = 1 / float64(size)
	}
	// row-normalise so each sentence spreads its score over its neighbours
	for i := range weights {
		if outSum[i] > 0 {
			floats.Scale(1/outSum[i], weights[i])
		}
	}

	next := make([]float64, size)
	column := make([]float64, size)
	for iter := 0; iter < maxIterations; iter++ {
		for i := range next {
			for j := range column {
				column[j] = weights[j][i]
			}
			next[i] = (1-damping)/float64(size) + damping*floats.Dot(column, scores)
		}
		delta := floats.Distance(next, scores, 1)
		scores, next = next, scores
		if delta < tolerance {
			break
		}
	}

	order := make([]int, size)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	picked := order[:n]
	sort.Ints(picked)

	out := make([]string, len(picked))
	for i, idx := range picked {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " ")
}
