package llm

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalDims is the vector size produced by LocalEmbedder.
const LocalDims = 256

// LocalModel is the embedding model name reported by LocalEmbedder.
const LocalModel = "local-fnv256"

var localStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "is": true, "are": true, "was": true,
	"it": true, "that": true, "this": true, "for": true, "with": true, "as": true,
	"by": true, "be": true, "at": true, "from": true, "into": true,
}

// LocalEmbedder is an offline bag-of-words embedder. Each token is hashed
// into one of LocalDims buckets and the vector is L2-normalized, so texts
// sharing vocabulary have a high cosine similarity. It is used when no
// embedding model is configured.
type LocalEmbedder struct{}

// EmbeddingModel returns LocalModel.
func (LocalEmbedder) EmbeddingModel() string { return LocalModel }

// Embed returns the hashed term vector of text. Text without any content
// words yields a zero vector.
func (LocalEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, LocalDims)
	for _, tok := range localTokens(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%LocalDims]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

func localTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if localStopwords[f] {
			continue
		}
		out = append(out, stem(f))
	}
	return out
}

// stem drops common English suffixes so "plants" and "plant" share a bucket.
func stem(w string) string {
	for _, suf := range []string{"ing", "ed", "es", "s"} {
		if len(w) > len(suf)+2 && strings.HasSuffix(w, suf) {
			return strings.TrimSuffix(w, suf)
		}
	}
	return w
}
