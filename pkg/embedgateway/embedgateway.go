// Package embedgateway implements C5: an adapter to an embedding
// provider with a deterministic hash-based fallback so storage and dedup
// keep working when the remote embedder is unavailable (spec §4.4).
package embedgateway

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"log"
	"math"
)

// Provider is the remote half of the gateway: a real embedding service.
// The teacher's pkg/embedder.Provider interface is the model for this.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Gateway embeds text via Provider, falling back to a deterministic
// pseudo-embedding on any provider failure.
type Gateway struct {
	provider   Provider
	dimensions int
}

// New constructs a Gateway. provider may be nil, in which case every
// call uses the hash fallback (useful for tests and for degraded-mode
// operation).
func New(provider Provider, dimensions int) *Gateway {
	return &Gateway{provider: provider, dimensions: dimensions}
}

// Embed tries the configured provider first; on any failure it logs and
// falls back to HashEmbed. The fallback is diagnostic, not semantic: it
// preserves the shape of the pipeline, not meaning-bearing similarity.
func (g *Gateway) Embed(ctx context.Context, text string) []float32 {
	if g.provider != nil {
		if vec, err := g.provider.Embed(ctx, text); err == nil {
			return vec
		} else {
			log.Printf("[embedgateway] remote embed failed, using hash fallback: %v", err)
		}
	}
	return HashEmbed(text, g.dimensions)
}

// Dimensions returns the vector size this gateway produces.
func (g *Gateway) Dimensions() int {
	if g.provider != nil {
		if d := g.provider.Dimensions(); d > 0 {
			return d
		}
	}
	return g.dimensions
}

// HashEmbed derives a deterministic pseudo-embedding of the given
// dimensionality from text's SHA-256 digest, expanded by re-hashing with
// an incrementing counter, then L2-normalized. Same text always yields
// the same vector; different text yields uncorrelated vectors, which is
// enough to keep exact-duplicate detection working without a live
// embedder.
func HashEmbed(text string, dimensions int) []float32 {
	if dimensions <= 0 {
		dimensions = 384
	}
	vec := make([]float32, dimensions)
	seed := sha256.Sum256([]byte(text))

	block := seed
	idx := 0
	for idx < dimensions {
		for i := 0; i < len(block) && idx < dimensions; i += 4 {
			bits := binary.BigEndian.Uint32(block[i : i+4])
			// Map to [-1, 1].
			vec[idx] = float32(bits)/float32(math.MaxUint32)*2 - 1
			idx++
		}
		block = sha256.Sum256(block[:])
	}

	normalize(vec)
	return vec
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

// CosineSimilarity returns the cosine similarity of a and b in [-1, 1],
// or 0 if either is empty or their lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
