package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
		r.Get("/history", apiHandler.HistoryHandler)

		r.Post("/sessions", apiHandler.CreateSessionHandler)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Delete("/", apiHandler.CloseSessionHandler)
			r.Get("/turns", apiHandler.GetTurnsHandler)
			r.Post("/messages", apiHandler.PostMessageHandler)
			r.Post("/save", apiHandler.SaveSessionHandler)
			r.Get("/ws", apiHandler.WebSocketHandler)
		})
	})

	return r
}
