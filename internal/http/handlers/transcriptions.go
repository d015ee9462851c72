package handlers

import (
	"encoding/json"
	"net/http"

	"mediagen/internal/credential"
	"mediagen/internal/domain"
)

type transcriptionRequest struct {
	AudioURL string         `json:"audio_url"`
	APIKey   string         `json:"api_key"`
	Options  map[string]any `json:"options"`
}

// TranscriptionCreate runs an audio transcription job to completion and
// stores the transcript under a stable public URL.
func (a *App) TranscriptionCreate(w http.ResponseWriter, r *http.Request) {
	var req transcriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	creds, err := credential.NewStatic(req.APIKey)
	if err != nil {
		a.error(w, r, http.StatusBadRequest, "credential_error", err.Error())
		return
	}
	a.runAndRespond(w, r, a.Scribe, creds, domain.GenerationRequest{
		ReferenceURL: req.AudioURL,
		Options:      req.Options,
	})
}
