package handlers

import "net/http"

// Health reports liveness plus whether optional subsystems are wired.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"records": a.Generations != nil,
	})
}
