package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"doclink/internal/adapter/cache"
	"doclink/internal/domain"
	"doclink/internal/usecase"
)

// Source loads the current source units for a rebuild.
type Source func(ctx context.Context) ([]domain.SourceUnit, error)

// Server serves the latest build and rebuilds on request.
type Server struct {
	router    chi.Router
	builder   *usecase.Builder
	source    Source
	fragments *cache.FragmentCache
	log       *slog.Logger

	mu      sync.RWMutex
	result  *usecase.BuildResult
	builtAt time.Time
}

func NewServer(builder *usecase.Builder, source Source, log *slog.Logger) *Server {
	s := &Server{
		builder:   builder,
		source:    source,
		fragments: cache.NewFragmentCache(256, 10*time.Minute),
		log:       log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handlePage)

	r.Route("/api", func(r chi.Router) {
		r.Get("/diagnostics", s.handleDiagnostics)
		r.Get("/symbols", s.handleSymbols)
		r.Get("/symbols/{name}", s.handleSymbol)
		r.Post("/rebuild", s.handleRebuild)
	})

	s.router = r
}

// Rebuild loads the sources, runs a build and swaps it in. The previous
// result keeps being served if the build fails.
func (s *Server) Rebuild(ctx context.Context) (*usecase.BuildResult, error) {
	units, err := s.source(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.builder.Build(ctx, units, nil)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.result = res
	s.builtAt = time.Now()
	s.fragments.Invalidate()
	s.mu.Unlock()

	for _, d := range res.Report.Diagnostics {
		s.log.Warn(d.Message, "kind", d.Kind, "location", d.Location.String())
	}
	return res, nil
}

func (s *Server) current() (*usecase.BuildResult, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.builtAt
}

// snapshot returns the current result with the fragment generation that
// belongs to it.
func (s *Server) snapshot() (*usecase.BuildResult, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.fragments.Generation()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	res, builtAt := s.current()
	body := map[string]any{"status": "ok"}
	if res != nil {
		body["stats"] = res.Stats
		body["built_at"] = builtAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	res, _ := s.current()
	if res == nil {
		http.Error(w, "no build yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(res.HTML))
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	res, _ := s.current()
	if res == nil {
		jsonError(w, "no build yet", http.StatusServiceUnavailable)
		return
	}
	diags := res.Report.Diagnostics
	if diags == nil {
		diags = []domain.Diagnostic{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":       len(diags),
		"diagnostics": diags,
	})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	res, _ := s.current()
	if res == nil {
		jsonError(w, "no build yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbols": res.Table.Symbols(),
	})
}

func (s *Server) handleSymbol(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if f, ok := s.fragments.Get(name); ok {
		writeJSON(w, http.StatusOK, f)
		return
	}

	res, gen := s.snapshot()
	if res == nil {
		jsonError(w, "no build yet", http.StatusServiceUnavailable)
		return
	}
	idx, ok := res.Table.Lookup(name)
	if !ok {
		jsonError(w, "symbol not found", http.StatusNotFound)
		return
	}

	out, err := s.builder.Renderer().Fragment(res.Tree, res.Table, idx)
	if err != nil {
		s.log.Error("render fragment", "name", name, "error", err)
		jsonError(w, "render failed", http.StatusInternalServerError)
		return
	}

	var f cache.Fragment
	for _, sym := range res.Table.Symbols() {
		if sym.Name == name {
			f.Symbol = sym
			break
		}
	}
	f.HTML = string(out.HTML)
	if !s.fragments.PutAt(name, f, gen) {
		s.log.Debug("fragment outdated by rebuild, not cached", "name", name)
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	res, err := s.Rebuild(r.Context())
	if err != nil {
		s.log.Error("rebuild failed", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":       res.Stats,
		"diagnostics": len(res.Report.Diagnostics),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
