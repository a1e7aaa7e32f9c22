package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/generative-ai-go/genai"

	"gwi.com/chat-memory/internal/chunker"
	"gwi.com/chat-memory/internal/config"
	"gwi.com/chat-memory/internal/embed"
	"gwi.com/chat-memory/internal/llm"
)

// services are the long-lived collaborators built from configuration.
type services struct {
	pipeline *embed.Pipeline
	provider llm.Provider
	closers  []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newServices(ctx context.Context, cfg config.Config) (*services, error) {
	s := &services{}

	var geminiClient *genai.Client
	if cfg.GeminiAPIKey != "" && (cfg.LLMProvider == "gemini" || cfg.Embedder == "gemini") {
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		geminiClient = client
		s.closers = append(s.closers, func() { client.Close() })
	}

	tokenizer, err := chunker.NewTiktokenTokenizer(cfg.TokenizerEncoding)
	if err != nil {
		s.Close()
		return nil, err
	}
	c, err := chunker.New(tokenizer, cfg.ChunkMaxTokens, cfg.ChunkOverlap)
	if err != nil {
		s.Close()
		return nil, err
	}

	embedder, err := s.newEmbedder(cfg, geminiClient)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.pipeline = embed.NewPipeline(c, embedder)
	log.Printf("Using %s embedder with %d dimensions over %d-token windows with %d overlap",
		cfg.Embedder, embedder.Dimensions(), c.MaxTokens(), c.Overlap())

	provider, err := newProvider(ctx, cfg, geminiClient)
	if errors.Is(err, llm.ErrNoCredential) {
		log.Printf("No API key configured for %s, answers will report it", cfg.LLMProvider)
	} else if err != nil {
		s.Close()
		return nil, err
	} else {
		s.provider = provider
		log.Printf("Using %s completion provider", provider.Name())
	}
	return s, nil
}

func (s *services) newEmbedder(cfg config.Config, geminiClient *genai.Client) (embed.Embedder, error) {
	var embedder embed.Embedder
	switch cfg.Embedder {
	case "gemini":
		if geminiClient == nil {
			return nil, fmt.Errorf("gemini embedder: %w", llm.ErrNoCredential)
		}
		embedder = embed.NewGemini(geminiClient, cfg.GeminiEmbeddingModel, 0, cfg.EmbeddingsPerSecond)
	case "onnx":
		onnx, err := embed.NewONNX(embed.ONNXConfig{
			ModelPath:     cfg.ONNXModelPath,
			TokenizerPath: cfg.ONNXTokenizerPath,
			LibraryPath:   cfg.ONNXLibraryPath,
			Dimensions:    cfg.EmbeddingDimensions,
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { onnx.Close() })
		embedder = onnx
	default:
		embedder = embed.NewHashing(cfg.EmbeddingDimensions)
	}

	if cfg.EmbeddingCacheEntries <= 0 {
		return embedder, nil
	}
	cached, err := embed.NewCached(embedder, int64(cfg.EmbeddingCacheEntries))
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, cached.Close)
	return cached, nil
}

func newProvider(ctx context.Context, cfg config.Config, geminiClient *genai.Client) (llm.Provider, error) {
	params := llm.Params{
		Temperature:         float32(cfg.Temperature),
		TopP:                float32(cfg.TopP),
		MaxCompletionTokens: cfg.MaxCompletionTokens,
	}

	switch cfg.LLMProvider {
	case "anthropic":
		provider, err := llm.NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel, params)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case "ark":
		provider, err := llm.NewArk(ctx, cfg.ArkAPIKey, cfg.ArkModel, cfg.ArkBaseURL, params)
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		if geminiClient == nil {
			return nil, llm.ErrNoCredential
		}
		return llm.NewGemini(geminiClient, cfg.GeminiChatModel, params), nil
	}
}
