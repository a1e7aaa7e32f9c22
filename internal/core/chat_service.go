package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"gwi.com/chat-memory/internal/llm"
	"gwi.com/chat-memory/internal/store"
)

var ErrSessionNotFound = errors.New("session not found")

const DefaultHistoryLimit = 50

type sessionEntry struct {
	mu      sync.Mutex
	session *Session
	sink    Observer
}

func (e *sessionEntry) dispatch(ev Event) {
	if e.sink != nil {
		e.sink(ev)
	}
}

// ChatService owns the open sessions of one store. Calls on the same
// session are serialised; different sessions proceed independently.
type ChatService struct {
	dbStore   *store.SQLiteStore
	provider  llm.Provider
	retriever *Retriever
	persister *HistoryPersister

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

func NewChatService(db *store.SQLiteStore, provider llm.Provider, retriever *Retriever, persister *HistoryPersister) *ChatService {
	return &ChatService{
		dbStore:   db,
		provider:  provider,
		retriever: retriever,
		persister: persister,
		sessions:  make(map[string]*sessionEntry),
	}
}

// OpenSession starts a new session and returns its id.
func (s *ChatService) OpenSession() string {
	id := uuid.NewString()
	entry := &sessionEntry{session: NewSession(s.provider, s.retriever)}
	entry.session.Open(entry.dispatch)

	s.mu.Lock()
	s.sessions[id] = entry
	s.mu.Unlock()

	log.Printf("Opened session %s", id)
	return id
}

func (s *ChatService) entry(id string) (*sessionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return entry, nil
}

// CloseSession discards a session without persisting it.
func (s *ChatService) CloseSession(id string) error {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	entry.mu.Lock()
	entry.session.Close()
	entry.mu.Unlock()
	log.Printf("Closed session %s", id)
	return nil
}

// Send asks a question in session id. Events go to sink for the duration of
// the call only.
func (s *ChatService) Send(ctx context.Context, id, question, fileText string, sink Observer) (string, error) {
	entry, err := s.entry(id)
	if err != nil {
		return "", err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.sink = sink
	defer func() { entry.sink = nil }()

	return entry.session.Send(ctx, question, fileText, s.dbStore)
}

// SaveSession persists the turns of session id not saved before.
func (s *ChatService) SaveSession(ctx context.Context, id string) (SaveReport, error) {
	entry, err := s.entry(id)
	if err != nil {
		return SaveReport{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Persist(ctx, s.dbStore, s.persister)
}

func (s *ChatService) Turns(id string) ([]llm.Message, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Turns(), nil
}

// History lists previews of stored user turns, newest first.
func (s *ChatService) History(ctx context.Context, limit int) ([]store.TurnPreview, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.dbStore.UserTurnPreviews(ctx, limit)
}

// Ingest stores text as a user turn and indexes it for retrieval.
func (s *ChatService) Ingest(ctx context.Context, text string) (SaveReport, error) {
	if text == "" {
		return SaveReport{}, nil
	}
	return s.persister.Save(ctx, s.dbStore, []llm.Message{{Role: llm.RoleUser, Content: text}})
}

// CloseAll discards every open session.
func (s *ChatService) CloseAll() {
	s.mu.Lock()
	entries := s.sessions
	s.sessions = make(map[string]*sessionEntry)
	s.mu.Unlock()

	for _, entry := range entries {
		entry.mu.Lock()
		entry.session.Close()
		entry.mu.Unlock()
	}
	if len(entries) > 0 {
		log.Printf("Closed %d open sessions", len(entries))
	}
}
