package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const DefaultArkBaseURL = "https://ark.cn-beijing.volces.com/api/v3"

// Eino streams completions from any eino chat model.
type Eino struct {
	name      string
	chatModel model.BaseChatModel
}

func NewEino(name string, chatModel model.BaseChatModel) *Eino {
	return &Eino{name: name, chatModel: chatModel}
}

// NewArk builds an eino provider backed by a Volcengine Ark model.
func NewArk(ctx context.Context, apiKey, modelName, baseURL string, params Params) (*Eino, error) {
	if apiKey == "" {
		return nil, ErrNoCredential
	}
	if baseURL == "" {
		baseURL = DefaultArkBaseURL
	}
	temp := params.Temperature
	topP := params.TopP
	maxTokens := params.MaxCompletionTokens
	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		Model:       modelName,
		Temperature: &temp,
		TopP:        &topP,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ark chat model: %w", err)
	}
	return NewEino("ark", chatModel), nil
}

func (e *Eino) Name() string { return e.name }

func (e *Eino) Stream(ctx context.Context, messages []Message) <-chan Event {
	history := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleAssistant {
			history = append(history, schema.AssistantMessage(m.Content, nil))
		} else {
			history = append(history, schema.UserMessage(m.Content))
		}
	}

	return stream(ctx, e.name, func(emit func(string) bool) error {
		reader, err := e.chatModel.Stream(ctx, history)
		if err != nil {
			return fmt.Errorf("failed to start stream: %w", err)
		}
		defer reader.Close()

		for {
			chunk, err := reader.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if chunk == nil {
				continue
			}
			if !emit(chunk.Content) {
				return ctx.Err()
			}
		}
	})
}
