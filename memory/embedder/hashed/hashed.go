// Package hashed implements the default local embedder: deterministic
// feature hashing over word tokens.
//
// The scheme is deliberately cheap and fully reproducible. Tokens are
// hashed into a fixed number of signed buckets and the accumulator is
// L2-normalized. There is no vocabulary, no model file, and no training
// state; two calls with identical text and dimension yield bit-identical
// vectors. It is not as semantically strong as transformer embeddings,
// but it keeps vector retrieval local and deterministic with no model to
// download or serve.
package hashed

import (
	"context"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto"
)

// DefaultDimensions is the embedding size used when none is configured.
const DefaultDimensions = 256

// Embedder converts text to fixed-dimension, L2-normalized vectors via
// signed feature hashing. It implements memory.Embedder.
type Embedder struct {
	dim   int
	cache *ristretto.Cache
}

// Option configures the embedder.
type Option func(*options)

type options struct {
	cacheEntries int64
}

// WithCache enables a lossy embedding cache of roughly maxEntries texts.
// Embeddings are deterministic, so cached entries never go stale; the
// cache only saves re-hashing frequently repeated situations.
func WithCache(maxEntries int64) Option {
	return func(o *options) {
		o.cacheEntries = maxEntries
	}
}

// New creates an embedder with the given dimension. Non-positive dim
// falls back to DefaultDimensions.
func New(dim int, opts ...Option) (*Embedder, error) {
	if dim <= 0 {
		dim = DefaultDimensions
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	e := &Embedder{dim: dim}
	if o.cacheEntries > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: o.cacheEntries * 10,
			MaxCost:     o.cacheEntries,
			BufferItems: 64,
		})
		if err != nil {
			return nil, err
		}
		e.cache = cache
	}
	return e, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int { return e.dim }

// Embed returns the L2-normalized feature-hash vector for text. Text with
// no tokens yields an all-zero vector. The error is always nil; the
// signature exists to satisfy memory.Embedder alongside fallible backends.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(text); ok {
			return v.([]float32), nil
		}
	}

	vec := e.embed(text)

	if e.cache != nil {
		e.cache.Set(text, vec, 1)
	}
	return vec, nil
}

func (e *Embedder) embed(text string) []float32 {
	acc := make([]float64, e.dim)
	for _, tok := range Tokenize(text) {
		h := xxhash.Sum64String(tok)
		idx := h % uint64(e.dim)
		if h>>63 == 0 {
			acc[idx]++
		} else {
			acc[idx]--
		}
	}

	var sumsq float64
	for _, v := range acc {
		sumsq += v * v
	}
	norm := math.Sqrt(sumsq)

	vec := make([]float32, e.dim)
	if norm == 0 {
		return vec
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

// Tokenize lower-cases text and extracts maximal runs of ASCII letters,
// digits, and underscore; every other byte separates tokens. Empty input
// yields nil. Pure and locale-independent (ASCII case folding only).
func Tokenize(text string) []string {
	var tokens []string
	start := -1
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, lowerASCII(text[start:i]))
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, lowerASCII(text[start:]))
	}
	return tokens
}

func lowerASCII(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
