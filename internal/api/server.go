// Package api exposes the frontends, tuners and discovery over HTTP and a
// WebSocket push channel.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mythtv_control/internal/backend"
	"mythtv_control/internal/command"
	"mythtv_control/internal/frontend"
	"mythtv_control/internal/notify"
	"mythtv_control/internal/websocket"
)

const notifyTimeout = 5 * time.Second

// quietPaths are endpoints that get polled frequently and shouldn't spam logs
var quietPaths = map[string]bool{
	"/api/frontends": true,
	"/api/tuners":    true,
	"/ws":            true,
}

// quietPrefixes are path prefixes that shouldn't spam logs
var quietPrefixes = []string{
	"/api/frontends/",
}

// ConditionalLogger skips request logging for polled GET endpoints
func ConditionalLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			for _, prefix := range quietPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}
		}
		logged.ServeHTTP(w, r)
	})
}

// Server holds the HTTP handlers. Backend and hub may be nil.
type Server struct {
	frontends    *frontend.Manager
	backend      *backend.Backend
	hub          *websocket.Hub
	notifyOrigin string
	router       chi.Router
}

// NewServer builds the router
func NewServer(frontends *frontend.Manager, be *backend.Backend, hub *websocket.Hub, notifyOrigin string) *Server {
	s := &Server{
		frontends:    frontends,
		backend:      be,
		hub:          hub,
		notifyOrigin: notifyOrigin,
	}

	r := chi.NewRouter()
	r.Use(ConditionalLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/api/frontends", s.handleListFrontends)
	r.Get("/api/frontends/{name}", s.handleGetFrontend)
	r.Post("/api/frontends/{name}/notify", s.handleNotify)
	r.Post("/api/frontends/{name}/{command}", s.handleCommand)
	r.Get("/api/commands", s.handleListCommands)

	r.Get("/api/tuners", s.handleTuners)
	r.Get("/api/discovery", s.handleDiscovery)
	r.Post("/api/discovery/refresh", s.handleDiscoveryRefresh)

	if hub != nil {
		r.Get("/ws", hub.ServeWS)
	}

	s.router = r
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*frontend.Frontend, bool) {
	name := chi.URLParam(r, "name")
	f, ok := s.frontends.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown frontend "+name)
		return nil, false
	}
	return f, true
}

func (s *Server) handleListFrontends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.frontends.Snapshots())
}

func (s *Server) handleGetFrontend(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, f.Snapshot())
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, command.Names())
}

type commandRequest struct {
	Value float64 `json:"value"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := chi.URLParam(r, "command")
	if err := command.Dispatch(r.Context(), f, name, req.Value); err != nil {
		if errors.Is(err, command.ErrUnknownCommand) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("API: Command %s on %s failed: %v", name, f.Name(), err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, f.Snapshot())
}

type notifyRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	sender := notify.NewSender(f.API(), s.notifyOrigin)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		sender.Send(ctx, req.Message, req.Title)
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleTuners(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		writeError(w, http.StatusServiceUnavailable, "backend not configured")
		return
	}
	tuners, err := s.backend.Tuners(r.Context())
	if err != nil {
		if errors.Is(err, backend.ErrNoData) {
			writeError(w, http.StatusNotFound, "no data")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if tuners == nil {
		tuners = []backend.Tuner{}
	}
	writeJSON(w, http.StatusOK, tuners)
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		writeError(w, http.StatusServiceUnavailable, "backend not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.backend.Frontends())
}

func (s *Server) handleDiscoveryRefresh(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		writeError(w, http.StatusServiceUnavailable, "backend not configured")
		return
	}
	s.backend.RequestRefresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}
