package handlers

import (
	"encoding/json"
	"net/http"

	"mediagen/internal/credential"
	"mediagen/internal/domain"
)

type videoGenerateRequest struct {
	Prompt    string         `json:"prompt"`
	ImageURL  string         `json:"image_url"`
	AccessKey string         `json:"access_key"`
	SecretKey string         `json:"secret_key"`
	Options   map[string]any `json:"options"`
}

// VideoGenerate runs a Kling text-to-video or image-to-video job to
// completion and returns the stored artifact's public URL.
func (a *App) VideoGenerate(w http.ResponseWriter, r *http.Request) {
	var req videoGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	creds, err := credential.NewSigned(req.AccessKey, req.SecretKey)
	if err != nil {
		a.error(w, r, http.StatusBadRequest, "credential_error", err.Error())
		return
	}
	a.runAndRespond(w, r, a.Kling, creds, domain.GenerationRequest{
		Prompt:       req.Prompt,
		ReferenceURL: req.ImageURL,
		Options:      req.Options,
	})
}

type avatarGenerateRequest struct {
	Prompt        string         `json:"prompt"`
	BackgroundURL string         `json:"background_url"`
	APIKey        string         `json:"api_key"`
	Options       map[string]any `json:"options"`
}

// AvatarGenerate runs a HeyGen avatar video job. Avatar and voice ids left
// unset by the caller are resolved from the provider catalog, falling back to
// the configured defaults when discovery fails.
func (a *App) AvatarGenerate(w http.ResponseWriter, r *http.Request) {
	var req avatarGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	creds, err := credential.NewStatic(req.APIKey)
	if err != nil {
		a.error(w, r, http.StatusBadRequest, "credential_error", err.Error())
		return
	}
	options := req.Options
	if options == nil {
		options = map[string]any{}
	}
	if needsCatalogDefaults(options) && a.Catalog != nil {
		defaults := a.Catalog.Resolve(r.Context(), req.APIKey)
		if _, ok := options["avatar_id"]; !ok {
			options["avatar_id"] = defaults.AvatarID
		}
		if _, ok := options["voice_id"]; !ok {
			options["voice_id"] = defaults.VoiceID
		}
	}
	a.runAndRespond(w, r, a.Heygen, creds, domain.GenerationRequest{
		Prompt:       req.Prompt,
		ReferenceURL: req.BackgroundURL,
		Options:      options,
	})
}

func needsCatalogDefaults(options map[string]any) bool {
	_, hasAvatar := options["avatar_id"]
	_, hasVoice := options["voice_id"]
	return !hasAvatar || !hasVoice
}

type speechGenerateRequest struct {
	Text    string         `json:"text"`
	APIKey  string         `json:"api_key"`
	Options map[string]any `json:"options"`
}

// SpeechGenerate runs a MiniMax asynchronous text-to-speech job.
func (a *App) SpeechGenerate(w http.ResponseWriter, r *http.Request) {
	var req speechGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	creds, err := credential.NewStatic(req.APIKey)
	if err != nil {
		a.error(w, r, http.StatusBadRequest, "credential_error", err.Error())
		return
	}
	a.runAndRespond(w, r, a.Minimax, creds, domain.GenerationRequest{
		Prompt:  req.Text,
		Options: req.Options,
	})
}
