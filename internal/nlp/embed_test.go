package nlp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b Vector
		want float64
	}{
		{name: "identical", a: Vector{1, 2, 3}, b: Vector{1, 2, 3}, want: 1},
		{name: "orthogonal", a: Vector{1, 0}, b: Vector{0, 1}, want: 0},
		{name: "opposite", a: Vector{1, 1}, b: Vector{-1, -1}, want: -1},
		{name: "zero vector", a: Vector{0, 0}, b: Vector{1, 1}, want: 0},
		{name: "length mismatch", a: Vector{1}, b: Vector{1, 1}, want: 0},
		{name: "empty", a: nil, b: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestHashingEmbedder(t *testing.T) {
	h := NewHashingEmbedder(0)
	assert.Equal(t, 1024, h.Dim)

	_, ok := h.Embed([]string{"the", "and", "of"})
	assert.False(t, ok, "stopwords only")

	a, ok := h.Embed([]string{"Ransomware", "campus"})
	require.True(t, ok)
	b, ok := h.Embed([]string{"ransomware", "CAMPUS"})
	require.True(t, ok)
	assert.InDelta(t, 1.0, Cosine(a, b), 1e-9)
}

func TestLoadWordVectors(t *testing.T) {
	data := `4 2
threat 1.0 0.1
attack 0.9 0.2
picnic 0.0 1.0
sunny 0.1 0.9
`
	wv, err := LoadWordVectors(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, wv.Dim())
	assert.Equal(t, 4, wv.Len())

	threat, ok := wv.Embed([]string{"Threat"})
	require.True(t, ok)
	attack, _ := wv.Embed([]string{"attack"})
	picnic, _ := wv.Embed([]string{"picnic", "sunny"})
	assert.Greater(t, Cosine(threat, attack), Cosine(threat, picnic))

	_, ok = wv.Embed([]string{"unknown", "words"})
	assert.False(t, ok)
}

func TestLoadWordVectors_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "bad float", data: "word 1.0 abc\n"},
		{name: "dimension mismatch", data: "a 1 2\nb 1 2 3\n"},
		{name: "missing vector", data: "lonely\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWordVectors(strings.NewReader(tt.data))
			assert.Error(t, err)
		})
	}
}
