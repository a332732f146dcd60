package hub

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// StatusServer exposes a small read-only HTTP API over the hub state.
type StatusServer struct {
	coordinator *Coordinator
	server      *http.Server
}

func NewStatusServer(addr string, coordinator *Coordinator) *StatusServer {
	s := &StatusServer{coordinator: coordinator}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/api/sessions", s.handleSessions)
	r.Get("/api/topics", s.handleTopics)
	r.Get("/api/transports", s.handleTransports)

	s.server = &http.Server{Addr: addr, Handler: r}
	return s
}

func (s *StatusServer) Start() error {
	slog.Info("Starting status server", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *StatusServer) Shutdown() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *StatusServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.coordinator.Registry.List()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, *session.Info())
	}
	writeJSON(w, infos)
}

func (s *StatusServer) handleTopics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.coordinator.Broker.Topics())
}

func (s *StatusServer) handleTransports(w http.ResponseWriter, r *http.Request) {
	metas := make([]TransportMetadata, 0, len(s.coordinator.Transports))
	for _, t := range s.coordinator.Transports {
		metas = append(metas, t.Meta())
	}
	writeJSON(w, metas)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode status response", "error", err.Error())
	}
}
