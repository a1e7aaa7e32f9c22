package llm

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	DefaultGeminiChatModel = "gemini-1.5-flash-latest"

	geminiSystemInstruction = "You are a helpful assistant with a long-term memory of earlier conversations. " +
		"When a Context section is provided, use it to answer. " +
		"If the context does not contain the answer, say so instead of making something up."
)

// NewGeminiClient creates the client shared by the Gemini provider and
// embedder.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, ErrNoCredential
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return client, nil
}

// Gemini streams chat completions from a Gemini model.
type Gemini struct {
	client    *genai.Client
	modelName string
	params    Params
}

func NewGemini(client *genai.Client, modelName string, params Params) *Gemini {
	if modelName == "" {
		modelName = DefaultGeminiChatModel
	}
	return &Gemini{client: client, modelName: modelName, params: params}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Stream(ctx context.Context, messages []Message) <-chan Event {
	if len(messages) == 0 {
		return failed(g.Name(), errors.New("prompt history is empty"))
	}
	last := messages[len(messages)-1]
	if last.Role != RoleUser {
		return failed(g.Name(), fmt.Errorf("last message has role %q, expected %q", last.Role, RoleUser))
	}

	model := g.client.GenerativeModel(g.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(geminiSystemInstruction)},
	}
	temp := g.params.Temperature
	topP := g.params.TopP
	maxTokens := int32(g.params.MaxCompletionTokens)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: &maxTokens,
	}

	chat := model.StartChat()
	for _, m := range messages[:len(messages)-1] {
		chat.History = append(chat.History, &genai.Content{
			Role:  geminiRole(m.Role),
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	return stream(ctx, g.Name(), func(emit func(string) bool) error {
		it := chat.SendMessageStream(ctx, genai.Text(last.Content))
		for {
			resp, err := it.Next()
			if err == iterator.Done {
				return nil
			}
			if err != nil {
				return fmt.Errorf("gemini chat stream failed: %w", err)
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				txt, ok := part.(genai.Text)
				if !ok {
					log.Printf("Gemini response part was not text: %T", part)
					continue
				}
				if !emit(string(txt)) {
					return ctx.Err()
				}
			}
		}
	})
}

func geminiRole(role string) string {
	if role == RoleAssistant {
		return "model"
	}
	return "user"
}
