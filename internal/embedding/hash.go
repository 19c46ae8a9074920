package embedding

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"unicode"
)

// Provider names understood by NewRegistry.
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// DefaultHashDimensions is used when a hash embedder is built without a size.
const DefaultHashDimensions = 384

// Hash is an offline embedder using signed feature hashing of lowercased
// word tokens and adjacent word pairs. It needs no model and is deterministic,
// which makes it suitable for tests and air-gapped installs.
type Hash struct {
	dim int
}

// NewHash creates a hash embedder producing vectors of dim floats.
func NewHash(dim int) *Hash {
	if dim <= 0 {
		dim = DefaultHashDimensions
	}
	return &Hash{dim: dim}
}

// Embed hashes the tokens of text into a unit-length vector.
func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
	})

	for i, tok := range tokens {
		h.add(vec, tok, 1)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	Normalize(vec)
	return vec, nil
}

func (h *Hash) add(vec []float32, feature string, weight float32) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()

	idx := int(sum % uint64(h.dim))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

// Dimensions returns the vector size.
func (h *Hash) Dimensions() int { return h.dim }

// Model returns "hash/<dim>".
func (h *Hash) Model() string { return ProviderHash + "/" + strconv.Itoa(h.dim) }
