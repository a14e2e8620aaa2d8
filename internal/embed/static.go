package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/nicosuave/memex/internal/merrors"
)

// weights for the two token families folded into a static vector.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// StaticEmbedder generates deterministic, hash-based embeddings with no
// network dependency and no model download, generalized from the
// teacher's internal/embed/static.go. Unlike the teacher's code-aware
// tokenizer it does not split camelCase/snake_case identifiers or
// filter programming keywords — conversational text is not source
// code — and instead splits words with its own wordTokens, which
// applies the same rule as store.Tokens so the static embedder's
// notion of a "word" matches the full-text index's.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
	dims   int
	model  string
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder of the given width,
// labeled with modelName for cache-key and ModelMismatch purposes.
func NewStaticEmbedder(dims int, modelName string) *StaticEmbedder {
	return &StaticEmbedder{dims: dims, model: modelName}
}

func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, merrors.New(merrors.BackendUnavailable, "static embedder is closed", nil)
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, e.dims), nil
	}
	return normalizeVector(e.generateVector(trimmed)), nil
}

func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *StaticEmbedder) generateVector(text string) []float32 {
	vec := make([]float32, e.dims)

	for _, tok := range wordTokens(text) {
		vec[hashToIndex(tok, e.dims)] += tokenWeight
	}

	alnum := foldAlnum(text)
	for _, gram := range ngrams(alnum, ngramSize) {
		vec[hashToIndex(gram, e.dims)] += ngramWeight
	}
	return vec
}

func (e *StaticEmbedder) Dimensions() int { return e.dims }
func (e *StaticEmbedder) ModelName() string { return e.model }

func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func wordTokens(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func foldAlnum(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func ngrams(text string, n int) []string {
	if len(text) < n {
		return nil
	}
	out := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		out = append(out, text[i:i+n])
	}
	return out
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	mag := math.Sqrt(sumSquares)
	if mag == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / mag)
	}
	return out
}
