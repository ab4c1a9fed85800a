// Package server exposes the bot's operational HTTP endpoints: health and
// usage statistics.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/cantorbot/cantor/internal/db"
	"github.com/cantorbot/cantor/internal/session"
)

// statsWindowDays is the lookback window for the stats endpoint.
const statsWindowDays = 7

// Server serves the ops endpoints. It is deliberately separate from the
// chat transport; it carries no user-facing behavior.
type Server struct {
	store    *db.Store
	songs    *db.SongStore
	messages *db.MessageLogStore
	sessions *session.Manager
	router   chi.Router
	version  string
}

// New builds the ops server and its routes.
func New(store *db.Store, songs *db.SongStore, messages *db.MessageLogStore, sessions *session.Manager, version string) *Server {
	s := &Server{
		store:    store,
		songs:    songs,
		messages: messages,
		sessions: sessions,
		version:  version,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/stats", s.handleStats)

	s.router = r
}

// Router returns the HTTP handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Ops server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	var songCount, themeCount int64

	if err := s.store.Ping(); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	} else {
		var err error
		if songCount, err = s.songs.CountActive(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else if themes, err := s.songs.AllThemes(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			themeCount = int64(len(themes))
		}
		// An empty catalog is reachable but useless.
		if status == "ok" && songCount == 0 {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"songs":   songCount,
		"themes":  themeCount,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	songCount, err := s.songs.CountActive(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	typeStats, err := s.messages.TypeStats(ctx, statsWindowDays)
	if err != nil {
		writeError(w, err)
		return
	}
	activeUsers, err := s.messages.ActiveUsers(ctx, statsWindowDays)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"songs":            songCount,
		"active_users_7d":  activeUsers,
		"messages_7d":      typeStats,
		"live_sessions":    s.sessions.Count(),
		"window_days":      statsWindowDays,
		"generated_at_utc": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("Stats query failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
