package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/perflens/perflens/internal/report"
	"github.com/perflens/perflens/internal/store"
	"github.com/perflens/perflens/pkg/ports"
)

// Server exposes stored sessions over HTTP for dashboards and ad-hoc
// inspection. It serves the structured JSON contract plus the markdown
// rendering; it adds no analysis semantics of its own.
type Server struct {
	store  *store.Store
	server *http.Server
	port   int
}

func NewServer(st *store.Store, port int) *Server {
	return &Server{store: st, port: port}
}

// Start binds the listener, probing for a free port near the requested
// one, and serves in the background.
func (s *Server) Start() error {
	port, err := ports.FindAvailable(s.port)
	if err != nil {
		return fmt.Errorf("no port for report server: %w", err)
	}
	s.port = port

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("report server: %v", err)
		}
	}()
	log.Printf("report server listening on :%d", port)
	return nil
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/api/sessions", s.handleSessions).Methods("GET")
	r.HandleFunc("/api/sessions/{id}", s.handleSession).Methods("GET")
	r.HandleFunc("/api/sessions/{id}/markdown", s.handleMarkdown).Methods("GET")
	return r
}

// Port returns the bound port.
func (s *Server) Port() int { return s.port }

// Stop shuts the server down.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	return s.server.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	sessions, err := s.store.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []store.SessionInfo{}
	}
	writeJSON(w, sessions)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, rep)
}

func (s *Server) handleMarkdown(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	fmt.Fprint(w, report.RenderMarkdown(rep))
}

func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*report.Report, bool) {
	id := mux.Vars(r)["id"]
	rep, err := s.store.Load(id)
	if err != nil {
		http.Error(w, fmt.Sprintf("session %s not found", id), http.StatusNotFound)
		return nil, false
	}
	return rep, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("report server: encoding response: %v", err)
	}
}
