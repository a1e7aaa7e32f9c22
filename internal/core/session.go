package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gwi.com/chat-memory/internal/llm"
	"gwi.com/chat-memory/internal/store"
)

// ContextWindowTurns is how many trailing turns are sent to the provider.
const ContextWindowTurns = 3

const (
	NoCredentialReply    = "Error: No API key configured"
	ProviderFailureReply = "Error connecting to API"
)

var ErrSessionClosed = errors.New("session is not open")

type EventKind string

const (
	EventUser              EventKind = "user"
	EventAssistantChunk    EventKind = "assistant_chunk"
	EventAssistantComplete EventKind = "assistant_complete"
	EventAssistantError    EventKind = "assistant_error"
)

// Event is what a Session reports to its observer while answering.
type Event struct {
	Kind EventKind `json:"kind"`
	Text string    `json:"text"`
}

// Observer receives session events in order on the goroutine calling Send.
type Observer func(Event)

// Session holds the turns of one open conversation. It is not safe for
// concurrent use.
type Session struct {
	provider  llm.Provider
	retriever *Retriever
	observer  Observer

	turns     []llm.Message
	open      bool
	persisted int
}

// NewSession returns a closed session. A nil provider makes every question
// answer with NoCredentialReply.
func NewSession(provider llm.Provider, retriever *Retriever) *Session {
	return &Session{provider: provider, retriever: retriever}
}

func (s *Session) Open(observer Observer) {
	s.observer = observer
	s.open = true
}

func (s *Session) IsOpen() bool { return s.open }

// Turns returns a copy of the turn list.
func (s *Session) Turns() []llm.Message {
	out := make([]llm.Message, len(s.turns))
	copy(out, s.turns)
	return out
}

// Close discards the turns. Storage and in-flight calls are left alone.
func (s *Session) Close() {
	s.turns = nil
	s.persisted = 0
	s.open = false
}

func (s *Session) emit(kind EventKind, text string) {
	if s.observer != nil {
		s.observer(Event{Kind: kind, Text: text})
	}
}

// Send asks question with optional file text and retrieved context from st,
// and returns the full reply. Provider failures are recorded as an assistant
// turn and returned as an error; the session stays open.
func (s *Session) Send(ctx context.Context, question, fileText string, st *store.SQLiteStore) (string, error) {
	if !s.open {
		return "", ErrSessionClosed
	}

	var retrieved string
	if s.retriever != nil {
		retrieved = s.retriever.Retrieve(ctx, question, st)
	}
	prompt := BuildPrompt(question, retrieved, fileText)
	s.turns = append(s.turns, llm.Message{Role: llm.RoleUser, Content: prompt})

	if s.provider == nil {
		s.fail(NoCredentialReply)
		return "", llm.ErrNoCredential
	}

	s.emit(EventUser, question)

	window := s.turns
	if len(window) > ContextWindowTurns {
		window = window[len(window)-ContextWindowTurns:]
	}
	request := make([]llm.Message, len(window))
	copy(request, window)

	var reply strings.Builder
	for ev := range s.provider.Stream(ctx, request) {
		switch ev.Type {
		case llm.EventFragment:
			reply.WriteString(ev.Text)
			s.emit(EventAssistantChunk, ev.Text)
		case llm.EventDone:
			text := reply.String()
			s.turns = append(s.turns, llm.Message{Role: llm.RoleAssistant, Content: text})
			s.emit(EventAssistantComplete, text)
			return text, nil
		case llm.EventError:
			log.Printf("Completion stream from %s failed: %v", s.provider.Name(), ev.Err)
			s.fail(ProviderFailureReply)
			return "", ev.Err
		}
	}

	// Closed without a terminal event, usually a cancelled context.
	err := fmt.Errorf("%w: %s: stream ended without completion", llm.ErrCompletionProvider, s.provider.Name())
	if ctx.Err() != nil {
		err = fmt.Errorf("%w: %s: %w", llm.ErrCompletionProvider, s.provider.Name(), ctx.Err())
	}
	s.fail(ProviderFailureReply)
	return "", err
}

func (s *Session) fail(message string) {
	s.turns = append(s.turns, llm.Message{Role: llm.RoleAssistant, Content: message})
	s.emit(EventAssistantError, message)
}

// Persist saves the turns appended since the previous Persist.
func (s *Session) Persist(ctx context.Context, st *store.SQLiteStore, persister *HistoryPersister) (SaveReport, error) {
	pending := s.turns[s.persisted:]
	if len(pending) == 0 {
		return SaveReport{}, nil
	}
	report, err := persister.Save(ctx, st, pending)
	s.persisted += report.Turns
	return report, err
}
