// Copyright 2022-2026 aquova et al.

// Package admin serves the bot's ops HTTP API: a health endpoint and a
// string-catalog hot reload, so templates can be tweaked without a restart.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/aquova/leah/pkg/catalog"
)

// Server wraps the ops HTTP server.
type Server struct {
	http    *http.Server
	log     zerolog.Logger
	catalog *catalog.Catalog
	// stringsPath is the catalog override file re-read on reload; empty
	// means there is nothing to reload from.
	stringsPath string
	started     time.Time
	version     string
}

// New builds the ops server.
func New(addr string, log zerolog.Logger, cat *catalog.Catalog, stringsPath, version string) *Server {
	s := &Server{
		log:         log.With().Str("component", "admin").Logger(),
		catalog:     cat,
		stringsPath: stringsPath,
		started:     time.Now(),
		version:     version,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))
	r.Get("/healthz", s.handleHealthz)
	r.Post("/api/reload-strings", s.handleReloadStrings)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start runs the server until error or shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("Ops API listening")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info().Msg("Ops API shutting down")
	return s.http.Shutdown(ctx)
}

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(healthzResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(s.started).Seconds(),
		Version:       s.version,
		GoVersion:     runtime.Version(),
	})
}

func (s *Server) handleReloadStrings(w http.ResponseWriter, r *http.Request) {
	if s.stringsPath == "" {
		http.Error(w, "no strings_path configured", http.StatusConflict)
		return
	}
	if err := s.catalog.LoadFile(s.stringsPath); err != nil {
		s.log.Error().Err(err).Msg("String reload failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info().Str("remote_addr", r.RemoteAddr).Str("path", s.stringsPath).Msg("Strings reloaded")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "reloaded"})
}
