package handlers

import "net/http"

// ListEffects returns the public effect catalog. Directives never leave the
// server.
func (a *App) ListEffects(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"items": a.Registry.List()})
}
