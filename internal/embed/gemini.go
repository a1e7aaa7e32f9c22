package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"gwi.com/chat-memory/internal/utils"
)

const (
	DefaultGeminiEmbeddingModel = "text-embedding-004"
	GeminiEmbeddingDimensions   = 768
)

// Gemini embeds text with a Gemini embedding model. Requests are throttled to
// stay under the per-minute quota.
type Gemini struct {
	model      *genai.EmbeddingModel
	limiter    *rate.Limiter
	dimensions int
}

func NewGemini(client *genai.Client, modelName string, dimensions int, perSecond float64) *Gemini {
	if modelName == "" {
		modelName = DefaultGeminiEmbeddingModel
	}
	if dimensions <= 0 {
		dimensions = GeminiEmbeddingDimensions
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Gemini{
		model:      client.EmbeddingModel(modelName),
		limiter:    rate.NewLimiter(limit, 1),
		dimensions: dimensions,
	}
}

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", ErrEmbeddingFailure, err)
	}

	res, err := g.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: gemini embedding request failed: %w", ErrEmbeddingFailure, err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: no embedding data received from gemini", ErrEmbeddingFailure)
	}
	if len(res.Embedding.Values) != g.dimensions {
		return nil, fmt.Errorf("%w: gemini returned %d dimensions, expected %d", ErrEmbeddingFailure, len(res.Embedding.Values), g.dimensions)
	}

	vec := clone(res.Embedding.Values)
	if err := utils.Normalize(vec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}
	return vec, nil
}

func (g *Gemini) Dimensions() int {
	return g.dimensions
}
