package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"effectlab/internal/effects"
	"effectlab/internal/jobs"
	"effectlab/internal/store"
)

// App is the handler container. It performs translation only; all business
// logic lives in the store, registry and job manager it wraps.
type App struct {
	Store    *store.ImageStore
	Registry *effects.Registry
	Jobs     *jobs.Manager
	Logger   zerolog.Logger
}

func NewApp(st *store.ImageStore, reg *effects.Registry, mgr *jobs.Manager, logger zerolog.Logger) *App {
	return &App{Store: st, Registry: reg, Jobs: mgr, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
