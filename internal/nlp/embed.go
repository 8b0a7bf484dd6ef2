package nlp

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Vector is a dense embedding
type Vector []float64

// Embedder maps tokens to a single document vector. ok is false when none of
// the tokens could be embedded.
type Embedder interface {
	Embed(tokens []string) (v Vector, ok bool)
}

// Cosine returns the cosine similarity of two vectors, or 0 if either has
// zero length or norm
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	sim := floats.Dot(a, b) / (na * nb)
	// rounding can push identical vectors just past 1
	return math.Max(-1, math.Min(1, sim))
}

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a an and are as at be been but by for from has have he her his i if in into is it its
		me my no not of on or our she so that the their them there these they this to too us was we were what when which
		who will with would you your`) {
		stopwords[w] = struct{}{}
	}
}

// HashingEmbedder embeds a bag of lower-cased content words into a fixed
// number of buckets
type HashingEmbedder struct {
	Dim int
}

// NewHashingEmbedder creates an embedder with dim buckets
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = 1024
	}
	return &HashingEmbedder{Dim: dim}
}

// Embed implements Embedder
func (h *HashingEmbedder) Embed(tokens []string) (Vector, bool) {
	v := make(Vector, h.Dim)
	found := false
	for _, tok := range tokens {
		word := strings.ToLower(strings.Trim(tok, `'"-.,`))
		if word == "" {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		hash := fnv.New32a()
		hash.Write([]byte(word))
		v[hash.Sum32()%uint32(h.Dim)]++
		found = true
	}
	return v, found
}

// WordVectors holds pretrained word embeddings and averages them per
// document
type WordVectors struct {
	dim     int
	vectors map[string][]float32
}

// LoadWordVectorsFile reads GloVe or word2vec text format from disk
func LoadWordVectorsFile(path string) (*WordVectors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word vectors: %w", err)
	}
	defer f.Close()
	return LoadWordVectors(f)
}

// LoadWordVectors reads "word f1 f2 ... fn" lines. A leading word2vec
// "count dim" header line is skipped.
func LoadWordVectors(r io.Reader) (*WordVectors, error) {
	wv := &WordVectors{vectors: make(map[string][]float32)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if lineNo == 1 && len(fields) == 2 {
			if _, err := strconv.Atoi(fields[0]); err == nil {
				continue
			}
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: missing vector", lineNo)
		}

		vec := make([]float32, len(fields)-1)
		for i, f := range fields[1:] {
			x, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			vec[i] = float32(x)
		}
		if wv.dim == 0 {
			wv.dim = len(vec)
		} else if len(vec) != wv.dim {
			return nil, fmt.Errorf("line %d: dimension %d, expected %d", lineNo, len(vec), wv.dim)
		}
		wv.vectors[fields[0]] = vec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read word vectors: %w", err)
	}
	if len(wv.vectors) == 0 {
		return nil, fmt.Errorf("no word vectors found")
	}
	return wv, nil
}

// Dim returns the vector dimension
func (wv *WordVectors) Dim() int { return wv.dim }

// Len returns the vocabulary size
func (wv *WordVectors) Len() int { return len(wv.vectors) }

// Embed implements Embedder
func (wv *WordVectors) Embed(tokens []string) (Vector, bool) {
	sum := make(Vector, wv.dim)
	n := 0
	for _, tok := range tokens {
		vec, ok := wv.vectors[tok]
		if !ok {
			vec, ok = wv.vectors[strings.ToLower(tok)]
		}
		if !ok {
			continue
		}
		for i, x := range vec {
			sum[i] += float64(x)
		}
		n++
	}
	if n == 0 {
		return sum, false
	}
	floats.Scale(1/float64(n), sum)
	return sum, true
}
