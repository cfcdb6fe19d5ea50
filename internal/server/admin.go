package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/OrlandoBitencourt/pennant/internal/cache"
)

// CacheInterface defines what the admin and webhook servers need from cache
type CacheInterface interface {
	Stats() cache.Stats
	Debug(flagKey, targetID string) cache.DebugInfo
	InvalidateFlag(flagKey string) int
	Clear()
	PreloadFlags(ctx context.Context)
	Refresh(ctx context.Context) (cache.CycleResult, error)
}

// AdminServer provides admin HTTP endpoints
type AdminServer struct {
	cache  CacheInterface
	addr   string
	logger *slog.Logger
	server *http.Server
}

// NewAdminServer creates a new admin server listening on addr
func NewAdminServer(c CacheInterface, addr string, logger *slog.Logger) *AdminServer {
	if logger == nil {
		logger = slog.Default()
	}
	a := &AdminServer{
		cache:  c,
		addr:   addr,
		logger: logger,
	}
	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a
}

// Handler returns the admin router
func (a *AdminServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", a.handleHealth)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/stats", a.handleStats)
		r.Get("/flags/{flagKey}", a.handleDebugFlag)
		r.Post("/flags/{flagKey}/invalidate", a.handleInvalidate)
		r.Post("/cache/clear", a.handleClear)
		r.Post("/preload", a.handlePreload)
		r.Post("/refresh", a.handleRefresh)
	})

	return r
}

// Start serves until Shutdown is called
func (a *AdminServer) Start() error {
	a.logger.Info("admin server listening", slog.String("addr", a.addr))
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (a *AdminServer) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

func (a *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (a *AdminServer) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStatsResponse(a.cache.Stats()))
}

func (a *AdminServer) handleDebugFlag(w http.ResponseWriter, r *http.Request) {
	flagKey := chi.URLParam(r, "flagKey")
	info := a.cache.Debug(flagKey, r.URL.Query().Get("targetId"))
	writeJSON(w, http.StatusOK, newDebugResponse(flagKey, info))
}

func (a *AdminServer) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	flagKey := chi.URLParam(r, "flagKey")
	removed := a.cache.InvalidateFlag(flagKey)
	a.logger.Info("flag invalidated via admin API", slog.String("flag", flagKey), slog.Int("entries", removed))

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"flag":    flagKey,
		"removed": removed,
	})
}

func (a *AdminServer) handleClear(w http.ResponseWriter, r *http.Request) {
	a.cache.Clear()
	a.logger.Info("cache cleared via admin API")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *AdminServer) handlePreload(w http.ResponseWriter, r *http.Request) {
	a.cache.PreloadFlags(r.Context())
	bulk := a.cache.Stats().Bulk
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"cached": bulk.Cached,
		"flags":  bulk.FlagCount,
	})
}

func (a *AdminServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := a.cache.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, cache.ErrRefreshInFlight) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"candidates":  result.Candidates,
		"refreshed":   result.Refreshed,
		"failed":      result.Failed,
		"duration_ms": result.Duration.Milliseconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
