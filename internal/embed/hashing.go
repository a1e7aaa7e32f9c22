package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"gwi.com/chat-memory/internal/utils"
)

// DefaultDimensions matches all-MiniLM-L6-v2.
const DefaultDimensions = 384

// wordPattern matches runs of letters, digits and underscores in any script.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Hashing is a model-free embedder. Every lowercase word is hashed with
// FNV-64a into one of Dimensions() buckets with a sign taken from the top bit
// of the hash, so texts sharing vocabulary land close to each other.
type Hashing struct {
	dimensions int
}

func NewHashing(dimensions int) *Hashing {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Hashing{dimensions: dimensions}
}

func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return nil, ErrEmptyInput
	}

	vec := make([]float32, h.dimensions)
	for _, word := range words {
		hasher := fnv.New64a()
		hasher.Write([]byte(word))
		sum := hasher.Sum64()

		idx := sum % uint64(h.dimensions)
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	if err := utils.Normalize(vec); err != nil {
		// Every word cancelled out against a colliding one.
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}
	return vec, nil
}

func (h *Hashing) Dimensions() int {
	return h.dimensions
}
