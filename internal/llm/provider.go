package llm

import (
	"context"
	"errors"
	"fmt"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrCompletionProvider covers auth, network and timeout failures of a
	// completion call.
	ErrCompletionProvider = errors.New("completion provider failure")
	// ErrNoCredential means no API key was configured for the provider.
	ErrNoCredential = errors.New("no API key configured")
)

// Message is one role-tagged turn sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are the sampling settings passed to every provider.
type Params struct {
	Temperature         float32
	TopP                float32
	MaxCompletionTokens int
}

func DefaultParams() Params {
	return Params{Temperature: 1, TopP: 1, MaxCompletionTokens: 4096}
}

type EventType int

const (
	EventFragment EventType = iota
	EventDone
	EventError
)

// Event is one item of a completion stream. A stream carries any number of
// fragments followed by exactly one Done or Error event.
type Event struct {
	Type EventType
	Text string
	Err  error
}

// Provider streams a completion for messages. The returned channel is closed
// after the terminal event. Implementations write from a single goroutine.
type Provider interface {
	Name() string
	Stream(ctx context.Context, messages []Message) <-chan Event
}

// stream runs produce on its own goroutine and turns its emitted fragments
// and final error into events. A nil error from produce ends the stream with
// Done, anything else with Error wrapping ErrCompletionProvider.
func stream(ctx context.Context, provider string, produce func(emit func(string) bool) error) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		send := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		err := produce(func(text string) bool {
			if text == "" {
				return true
			}
			return send(Event{Type: EventFragment, Text: text})
		})
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil {
			send(Event{Type: EventError, Err: fmt.Errorf("%w: %s: %w", ErrCompletionProvider, provider, err)})
			return
		}
		send(Event{Type: EventDone})
	}()
	return events
}

// failed returns a stream holding a single error event.
func failed(provider string, err error) <-chan Event {
	events := make(chan Event, 1)
	events <- Event{Type: EventError, Err: fmt.Errorf("%w: %s: %w", ErrCompletionProvider, provider, err)}
	close(events)
	return events
}
