// Package server exposes the ranking query over HTTP.
//
// Reads execute concurrently with the ingestion loop: the store is
// append-only, so a request sees at worst a slightly stale ranking, never a
// partial row.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oddsflow/scanner/internal/logger"
	"github.com/oddsflow/scanner/internal/ranker"
)

// Server serves the scanner HTTP API.
type Server struct {
	ranker   *ranker.Ranker
	defaults ranker.Options
	httpSrv  *http.Server
}

// New creates a Server with the given ranking defaults; query parameters
// override them per request.
func New(addr string, rk *ranker.Ranker, defaults ranker.Options) *Server {
	s := &Server{ranker: rk, defaults: defaults}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/top", s.handleTop)
	r.Get("/healthz", s.handleHealth)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed: %v", err)
		}
	}()
	logger.Info("HTTP API listening on %s", s.httpSrv.Addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// handleTop implements GET /top?limit=&max_p=&min_score=&min_hist=.
func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	opts := s.defaults

	q := r.URL.Query()
	if v, ok := intParam(q.Get("limit")); ok {
		opts.Limit = v
	}
	if v, ok := floatParam(q.Get("max_p")); ok {
		opts.MaxP = v
	}
	if v, ok := floatParam(q.Get("min_score")); ok {
		opts.MinScore = v
	}
	if v, ok := intParam(q.Get("min_hist")); ok {
		opts.MinHistory = v
	}

	results, err := s.ranker.Top(opts)
	if err != nil {
		logger.Error("Ranking query failed: %v", err)
		http.Error(w, "ranking query failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"results": results}); err != nil {
		logger.Warn("Failed to encode /top response: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func intParam(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func floatParam(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
