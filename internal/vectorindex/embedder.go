package vectorindex

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalEmbedder produces deterministic bag-of-tokens embeddings without any
// external model. Each token is hashed into a fixed number of buckets, so
// texts sharing vocabulary land near each other under cosine distance. Good
// enough for local/dev semantic search and for tests.
type LocalEmbedder struct {
	dimensions int
}

func NewLocalEmbedder() *LocalEmbedder {
	return &LocalEmbedder{dimensions: 384}
}

func (e *LocalEmbedder) Dimensions() int { return e.dimensions }

func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	embedding := make([]float32, e.dimensions)
	for _, tok := range tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		hash := h.Sum64()
		bucket := int(hash % uint64(e.dimensions))
		embedding[bucket]++
		// A second rotated bucket reduces collisions between short vocabularies.
		second := int((hash >> 17) % uint64(e.dimensions))
		embedding[second] += 0.5
	}
	return normalize(embedding), nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
