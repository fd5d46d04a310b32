package in

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	hostin "cuckoohost/internal/modules/host/port/in"
)

// StatusServer exposes health, Prometheus metrics and the snapshot of the
// attached session.
type StatusServer struct {
	gatherer prometheus.Gatherer

	mu      sync.RWMutex
	session hostin.Session
}

func NewStatusServer(gatherer prometheus.Gatherer) *StatusServer {
	return &StatusServer{gatherer: gatherer}
}

// Attach sets the session reported by /session. A nil session detaches.
func (s *StatusServer) Attach(session hostin.Session) {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
}

func (s *StatusServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/session", s.handleSession)
	return r
}

func (s *StatusServer) handleSession(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()
	if session == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no session attached"})
		return
	}
	snap, err := session.Snapshot(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
