package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"gwi.com/chat-memory/internal/core"
)

const (
	defaultWSReadTimeout  = 60 * time.Second
	defaultWSPingInterval = 30 * time.Second
	wsWriteTimeout        = 10 * time.Second
)

type inboundMessage struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	FileText string `json:"file_text,omitempty"`
}

type outgoingMessage struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Report *core.SaveReport `json:"report,omitempty"`
}

// WebSocketHandler carries one session over a websocket. Clients send
// {"type":"message"} and {"type":"save"} frames and receive every session
// event as a frame typed by its kind.
func (h *APIHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.chatService.Turns(sessionID); err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(h.wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.wsReadTimeout))
		return nil
	})

	go pingLoop(ctx, conn, h.wsPingInterval)

	// Frames are read on their own goroutine so pongs keep the read deadline
	// moving while a reply is streaming.
	frames := make(chan inboundMessage)
	go h.readFrames(ctx, cancel, conn, frames)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-frames:
			if !ok {
				return
			}
			if !h.handleMessage(ctx, conn, sessionID, msg) {
				return
			}
		}
	}
}

// readFrames owns the read side of conn. It closes frames and cancels the
// connection context once the peer is gone.
func (h *APIHandler) readFrames(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, frames chan<- inboundMessage) {
	defer close(frames)
	defer cancel()
	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(h.wsReadTimeout))

		select {
		case frames <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// handleMessage reports false once the session is gone.
func (h *APIHandler) handleMessage(ctx context.Context, conn *websocket.Conn, sessionID string, msg inboundMessage) bool {
	switch msg.Type {
	case "message":
		if strings.TrimSpace(msg.Content) == "" {
			writeFrame(conn, outgoingMessage{Type: "error", Text: "message content cannot be empty"})
			return true
		}
		_, err := h.chatService.Send(ctx, sessionID, msg.Content, msg.FileText, func(ev core.Event) {
			writeFrame(conn, outgoingMessage{Type: string(ev.Kind), Text: ev.Text})
		})
		if errors.Is(err, core.ErrSessionNotFound) {
			writeFrame(conn, outgoingMessage{Type: "error", Text: "session not found"})
			return false
		}
	case "save":
		report, err := h.chatService.SaveSession(ctx, sessionID)
		if errors.Is(err, core.ErrSessionNotFound) {
			writeFrame(conn, outgoingMessage{Type: "error", Text: "session not found"})
			return false
		}
		if err != nil {
			log.Printf("[websocket] save failed for session %s: %v", sessionID, err)
			writeFrame(conn, outgoingMessage{Type: "error", Text: "failed to save session"})
			return true
		}
		writeFrame(conn, outgoingMessage{Type: "saved", Report: &report})
	default:
		writeFrame(conn, outgoingMessage{Type: "error", Text: "unsupported message type: " + msg.Type})
	}
	return true
}

func writeFrame(conn *websocket.Conn, msg outgoingMessage) {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write failed: %v", err)
	}
}

// pingLoop uses WriteControl, which may run alongside the frame writer.
func pingLoop(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}
