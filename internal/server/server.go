package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/abramin/cmodel/internal/diag"
	"github.com/abramin/cmodel/internal/store"
)

// Server is the read-only cmodel HTTP API.
type Server struct {
	store      *store.Store
	httpServer *http.Server
	port       int
	logger     *log.Logger
}

// Config holds server configuration.
type Config struct {
	Port int
	// Dir is the output directory holding index.db.
	Dir    string
	Logger *log.Logger
}

// New opens the index in cfg.Dir and builds the server.
func New(cfg Config) (*Server, error) {
	st, err := store.Open(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	s := newServer(st, cfg.Port, cfg.Logger)
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func newServer(st *store.Store, port int, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{store: st, port: port, logger: logger}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.corsMiddleware(s.handleHealth))
	mux.HandleFunc("/api/stats", s.corsMiddleware(s.handleStats))
	mux.HandleFunc("/api/files", s.corsMiddleware(s.handleFiles))
	mux.HandleFunc("/api/files/", s.corsMiddleware(s.handleFile))
	mux.HandleFunc("/api/entities", s.corsMiddleware(s.handleEntities))
	mux.HandleFunc("/api/entity/", s.corsMiddleware(s.handleEntity))
	mux.HandleFunc("/api/graph/", s.corsMiddleware(s.handleGraph))
	mux.HandleFunc("/api/spine/", s.corsMiddleware(s.handleSpine))
	mux.HandleFunc("/api/diagnostics", s.corsMiddleware(s.handleDiagnostics))

	mux.HandleFunc("/", s.handleIndex)
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Infof("Server starting on http://localhost:%d", s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			s.store.Close()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	s.logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// corsMiddleware adds CORS headers for local development and rejects
// anything but GET.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		next(w, r)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("encoding JSON: %v", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeLookupError maps a store lookup failure to 404 or 500.
func (s *Server) writeLookupError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	s.logger.Error("lookup failed", "what", what, "err", err)
	writeError(w, http.StatusInternalServerError, "failed to get "+what)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats returns index statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleFiles handles GET /api/files
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListFiles()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// handleFile handles GET /api/files/{path}, where path may contain slashes.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/files/")
	if path == "" {
		writeError(w, http.StatusBadRequest, "file path required")
		return
	}

	f, err := s.store.GetFile(path)
	if err != nil {
		s.writeLookupError(w, "file", err)
		return
	}
	includes, err := s.store.GetIncludes(path)
	if err != nil {
		includes = []store.Include{}
	}

	response := struct {
		File     any             `json:"file"`
		Includes []store.Include `json:"includes"`
	}{
		File:     f,
		Includes: includes,
	}
	writeJSON(w, http.StatusOK, response)
}

// handleEntities handles GET /api/entities?kind=&query=&file=&limit=
func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.EntityFilter{
		Kind:  q.Get("kind"),
		Query: q.Get("query"),
		File:  q.Get("file"),
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	entities, err := s.store.ListEntities(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list entities")
		return
	}
	writeJSON(w, http.StatusOK, entities)
}

// handleEntity handles GET /api/entity/{id}
func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/entity/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "entity id required")
		return
	}

	e, err := s.store.GetEntity(id)
	if err != nil {
		s.writeLookupError(w, "entity", err)
		return
	}
	fields, err := s.store.GetFields(id)
	if err != nil {
		fields = []store.Field{}
	}
	incoming, err := s.store.Incoming(id)
	if err != nil {
		incoming = []store.Relation{}
	}

	response := struct {
		Entity   any              `json:"entity"`
		Fields   []store.Field    `json:"fields"`
		Incoming []store.Relation `json:"incoming"`
	}{
		Entity:   e,
		Fields:   fields,
		Incoming: incoming,
	}
	writeJSON(w, http.StatusOK, response)
}

// handleGraph handles GET /api/graph/{id}?depth=&hide_primitives=
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/graph/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "entity id required")
		return
	}

	filter := DefaultGraphFilter()
	depth := 2
	if d := r.URL.Query().Get("depth"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid depth")
			return
		}
		depth = n
	}
	if r.URL.Query().Get("hide_primitives") == "true" {
		filter.HidePrimitives = true
	}

	graph, err := NewGraphBuilder(s.store, filter, s.logger).BuildFromRoot(id, depth)
	if err != nil {
		s.writeLookupError(w, "entity", err)
		return
	}
	writeJSON(w, http.StatusOK, graph)
}

// handleSpine handles GET /api/spine/{id}
func (s *Server) handleSpine(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/spine/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "entity id required")
		return
	}

	spine, err := NewSpineBuilder(s.store).Build(id)
	if err != nil {
		s.writeLookupError(w, "entity", err)
		return
	}
	writeJSON(w, http.StatusOK, spine)
}

// handleDiagnostics handles GET /api/diagnostics?kind=
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	diags, err := s.store.ListDiagnostics(kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list diagnostics")
		return
	}

	response := struct {
		Summary     diag.Summary      `json:"summary"`
		Diagnostics []diag.Diagnostic `json:"diagnostics"`
	}{
		Summary:     diag.Summarize(diags),
		Diagnostics: diags,
	}
	writeJSON(w, http.StatusOK, response)
}
