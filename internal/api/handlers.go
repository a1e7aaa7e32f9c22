package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"gwi.com/chat-memory/internal/core"
	"gwi.com/chat-memory/internal/llm"
)

type APIHandler struct {
	chatService *core.ChatService
	upgrader    websocket.Upgrader

	// Websocket keepalive: a connection with no frame or pong within
	// wsReadTimeout is dropped; pings go out every wsPingInterval.
	wsReadTimeout  time.Duration
	wsPingInterval time.Duration
}

func NewAPIHandler(cs *core.ChatService) *APIHandler {
	return &APIHandler{
		chatService: cs,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		wsReadTimeout:  defaultWSReadTimeout,
		wsPingInterval: defaultWSPingInterval,
	}
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := h.chatService.OpenSession()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateSessionResponse{SessionID: id})
}

func (h *APIHandler) CloseSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.chatService.CloseSession(sessionID); err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type TurnsResponse struct {
	SessionID string        `json:"session_id"`
	Turns     []llm.Message `json:"turns"`
}

func (h *APIHandler) GetTurnsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	turns, err := h.chatService.Turns(sessionID)
	if err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TurnsResponse{SessionID: sessionID, Turns: turns})
}

type PostMessageRequest struct {
	Content  string `json:"content"`
	FileText string `json:"file_text,omitempty"`
}

// PostMessageHandler answers a question as a stream of server-sent events,
// one per session event, named after its kind.
func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		http.Error(w, "Message content cannot be empty", http.StatusBadRequest)
		return
	}

	sse, err := newEventStream(w)
	if err != nil {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	_, err = h.chatService.Send(r.Context(), sessionID, req.Content, req.FileText, sse.send)
	if errors.Is(err, core.ErrSessionNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		// Already delivered to the client as an assistant_error event.
		log.Printf("Message in session %s failed: %v", sessionID, err)
	}
}

func (h *APIHandler) SaveSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	report, err := h.chatService.SaveSession(r.Context(), sessionID)
	if errors.Is(err, core.ErrSessionNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Error saving session %s: %v", sessionID, err)
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit := core.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	previews, err := h.chatService.History(r.Context(), limit)
	if err != nil {
		log.Printf("Error listing history: %v", err)
		http.Error(w, "Failed to list history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(previews)
}
