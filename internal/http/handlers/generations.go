package handlers

import (
	"net/http"
	"strconv"
)

// GenerationsList returns the most recent recorded runs.
func (a *App) GenerationsList(w http.ResponseWriter, r *http.Request) {
	if a.Generations == nil {
		a.error(w, r, http.StatusNotImplemented, "not_configured", "generation records are not persisted")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := a.Generations.ListRecent(r.Context(), limit)
	if err != nil {
		a.error(w, r, http.StatusInternalServerError, "internal", "failed to list generations")
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, gen := range items {
		out = append(out, map[string]any{
			"id":            gen.ID,
			"provider":      gen.Provider,
			"job_id":        gen.JobID,
			"status":        gen.Status,
			"prompt":        gen.Prompt,
			"result_url":    gen.ResultURL,
			"storage_key":   gen.StorageKey,
			"error_message": gen.ErrorMessage,
			"created_at":    gen.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": out})
}
