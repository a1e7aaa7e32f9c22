package embed

import (
	"context"
	"errors"
	"fmt"

	"gwi.com/chat-memory/internal/chunker"
)

// Pipeline chunks text and embeds every chunk. Turns and questions go through
// the same Pipeline so their vectors are comparable.
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder Embedder
}

func NewPipeline(c *chunker.Chunker, e Embedder) *Pipeline {
	return &Pipeline{chunker: c, embedder: e}
}

func (p *Pipeline) Dimensions() int {
	return p.embedder.Dimensions()
}

// Embed returns one vector per chunk of text, in chunk order. Text without
// chunks yields nil and no error. If any chunk fails, no vectors are returned.
func (p *Pipeline) Embed(ctx context.Context, text string) ([][]float32, error) {
	var vectors [][]float32
	i := 0
	for chunk := range p.chunker.Windows(text) {
		vec, err := p.embedder.Embed(ctx, chunk)
		if err != nil {
			if errors.Is(err, ErrEmbeddingFailure) || errors.Is(err, ErrEmptyInput) {
				return nil, fmt.Errorf("chunk %d: %w", i, err)
			}
			return nil, fmt.Errorf("%w: chunk %d: %w", ErrEmbeddingFailure, i, err)
		}
		if len(vec) != p.embedder.Dimensions() {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, expected %d", ErrEmbeddingFailure, i, len(vec), p.embedder.Dimensions())
		}
		vectors = append(vectors, vec)
		i++
	}
	return vectors, nil
}
