package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pulsewatch-backend/internal/alerts"
	"pulsewatch-backend/internal/health"
	"pulsewatch-backend/internal/scheduler"
	"pulsewatch-backend/internal/storage"
)

type indicatorView struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	FrequencyMinutes int       `json:"frequencyMinutes"`
	LastRun          time.Time `json:"lastRun"`
	LastRunResult    string    `json:"lastRunResult"`
	NextRun          time.Time `json:"nextRun"`
	Running          bool      `json:"running"`
}

func buildIndicatorView(ind scheduler.Indicator, locks *scheduler.LockTable) indicatorView {
	view := indicatorView{
		ID:               ind.ID,
		Name:             ind.Name,
		FrequencyMinutes: ind.FrequencyMinutes,
		LastRun:          ind.LastRun,
		LastRunResult:    ind.LastRunResult,
		Running:          locks.Held(ind.ID),
	}
	last := ind.LastRun
	if last.IsZero() {
		last = time.Now().UTC()
	}
	if next, err := scheduler.NextRun(ind.FrequencyMinutes, last); err == nil {
		view.NextRun = next
	}
	return view
}

func startAdminServer(port string, repo *storage.Repository, locks *scheduler.LockTable, monitor *health.Monitor, manager *alerts.Manager, logger *slog.Logger) {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		statuses := monitor.Check()
		w.Header().Set("Content-Type", "application/json")
		if !monitor.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"loops": statuses})
	})

	r.Get("/locks", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(locks.Snapshot())
	})

	r.Get("/indicators", func(w http.ResponseWriter, req *http.Request) {
		indicators, err := repo.LoadActiveIndicators(req.Context())
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
			return
		}
		views := make([]indicatorView, 0, len(indicators))
		for _, ind := range indicators {
			views = append(views, buildIndicatorView(ind, locks))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(views)
	})

	r.Get("/indicators/{indicatorID}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "indicatorID")
		ind, err := repo.GetIndicator(req.Context(), id)
		w.Header().Set("Content-Type", "application/json")
		if errors.Is(err, storage.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "indicator not found"})
			return
		}
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(buildIndicatorView(ind, locks))
	})

	r.Post("/alerts/{alertID}/resolve", func(w http.ResponseWriter, req *http.Request) {
		alertID := chi.URLParam(req, "alertID")
		by := req.URL.Query().Get("by")
		if by == "" {
			by = "operator"
		}
		err := manager.Resolve(req.Context(), alertID, by)
		w.Header().Set("Content-Type", "application/json")
		if errors.Is(err, alerts.ErrNotTransitionable) {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	logger.Info("admin server listening", slog.String("port", port))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("admin server error", slog.String("error", err.Error()))
	}
}
