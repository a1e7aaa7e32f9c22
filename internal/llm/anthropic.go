package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// Anthropic streams completions from the Messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
	params Params
}

func NewAnthropic(apiKey, model string, params Params) (*Anthropic, error) {
	if apiKey == "" {
		return nil, ErrNoCredential
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &Anthropic{
		client: anthropic.NewClient(anthropicoption.WithAPIKey(apiKey)),
		model:  model,
		params: params,
	}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Stream(ctx context.Context, messages []Message) <-chan Event {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(a.params.MaxCompletionTokens),
		Messages:  make([]anthropic.MessageParam, 0, len(messages)),
	}
	// top_p is left at the API default.
	params.Temperature = anthropic.Float(float64(a.params.Temperature))

	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	return stream(ctx, a.Name(), func(emit func(string) bool) error {
		s := a.client.Messages.NewStreaming(ctx, params)
		defer s.Close()

		for s.Next() {
			event := s.Current()
			switch evt := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := evt.Delta.AsAny().(anthropic.TextDelta); ok {
					if !emit(delta.Text) {
						return ctx.Err()
					}
				}
			case anthropic.MessageStopEvent:
				return nil
			}
		}
		if err := s.Err(); err != nil {
			return fmt.Errorf("anthropic stream failed: %w", err)
		}
		return nil
	})
}
