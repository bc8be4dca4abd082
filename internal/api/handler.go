// Package api exposes the HTTP surface: the toolbar websocket, a session
// snapshot endpoint and a health probe.
package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Xiaobei-QuQ/stagewise/internal/agent"
	"github.com/Xiaobei-QuQ/stagewise/internal/realtime"
)

// Handler routes HTTP requests to the agent orchestrator.
type Handler struct {
	agent  *agent.Agent
	hub    *realtime.Hub
	logger *slog.Logger
}

// NewHandler creates a Handler backed by the given orchestrator and hub.
func NewHandler(a *agent.Agent, hub *realtime.Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{agent: a, hub: hub, logger: logger}
}

// Mount registers all routes on the provided router.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/ws", h.realtimeWebSocket)
	r.Get("/api/session", h.getSession)
	r.Get("/api/health", h.health)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.agent.Session().Snapshot())
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func generateID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
