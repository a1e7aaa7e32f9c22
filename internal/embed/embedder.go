package embed

import (
	"context"
	"errors"
)

var (
	// ErrEmbeddingFailure marks a model call that did not produce a vector.
	ErrEmbeddingFailure = errors.New("embedding failure")
	// ErrEmptyInput is returned for text that has nothing to embed. Callers
	// treat it as "no vector" rather than as a fault.
	ErrEmptyInput = errors.New("nothing to embed")
)

// Embedder maps a chunk of text to a unit-length vector of Dimensions()
// floats. The same text always yields the same vector for a given instance.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
