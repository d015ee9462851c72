// Package handlers exposes the HTTP boundary of the orchestrator. Handlers
// are thin: they decode the request, build per-request credentials, delegate
// to the pipeline, and shape the response.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mediagen/internal/catalog"
	"mediagen/internal/credential"
	"mediagen/internal/domain"
	"mediagen/internal/middleware"
	"mediagen/internal/pipeline"
	"mediagen/internal/providers/heygen"
	"mediagen/internal/providers/kling"
	"mediagen/internal/providers/minimax"
	"mediagen/internal/providers/scribe"
)

type App struct {
	Pipeline *pipeline.Pipeline

	Kling   *kling.Client
	Heygen  *heygen.Client
	Minimax *minimax.Client
	Scribe  *scribe.Client

	Catalog *catalog.Resolver

	// Optional; when nil, run outcomes are not recorded.
	Generations domain.GenerationRepository

	Logger zerolog.Logger
}

type runResponse struct {
	Success   bool   `json:"success"`
	Provider  string `json:"provider"`
	JobID     string `json:"job_id"`
	ResultURL string `json:"result_url"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

var localizedMessages = map[string]map[string]string{
	"id": {
		"bad_request":      "permintaan tidak valid",
		"validation_error": "permintaan gagal divalidasi",
		"credential_error": "kredensial tidak valid",
	},
	"ja": {
		"bad_request":      "不正なリクエストです",
		"validation_error": "リクエストの検証に失敗しました",
		"credential_error": "認証情報が無効です",
	},
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	body := map[string]any{"error": code, "message": message}
	locale := middleware.LocaleFromContext(r.Context())
	if translations, ok := localizedMessages[locale]; ok {
		if localized, ok := translations[code]; ok {
			body["localized_message"] = localized
		}
	}
	a.json(w, status, body)
}

// runAndRespond executes one orchestration run and writes the HTTP outcome.
func (a *App) runAndRespond(w http.ResponseWriter, r *http.Request, prov pipeline.Provider, creds credential.Provider, req domain.GenerationRequest) {
	result, err := a.Pipeline.Run(r.Context(), prov, creds, req)
	if err != nil {
		a.record(r.Context(), prov.Name(), req, nil, err)
		a.error(w, r, statusForError(err), codeForError(err), err.Error())
		return
	}
	a.record(r.Context(), prov.Name(), req, result, nil)
	a.json(w, http.StatusOK, runResponse{
		Success:   true,
		Provider:  result.Handle.Provider,
		JobID:     result.Handle.ID,
		ResultURL: result.Object.URL,
		Bucket:    result.Object.Bucket,
		Key:       result.Object.Key,
		ElapsedMS: result.Elapsed.Milliseconds(),
	})
}

// record persists the run outcome when a repository is configured. Recording
// failures are logged, never surfaced.
func (a *App) record(ctx context.Context, provider string, req domain.GenerationRequest, result *pipeline.Result, runErr error) {
	if a.Generations == nil {
		return
	}
	gen := &domain.Generation{
		ID:       uuid.NewString(),
		Provider: provider,
		Prompt:   req.Prompt,
	}
	if result != nil {
		gen.JobID = result.Handle.ID
		gen.Status = domain.JobStatusSucceeded
		gen.ResultURL = result.Object.URL
		gen.StorageKey = result.Object.Key
	} else {
		gen.Status = domain.JobStatusFailed
		if errors.Is(runErr, domain.ErrTimeout) {
			gen.Status = domain.JobStatusTimedOut
		}
		gen.ErrorMessage = runErr.Error()
		var stage *domain.StageError
		if errors.As(runErr, &stage) {
			gen.JobID = stage.JobID
		}
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.Generations.Create(writeCtx, gen); err != nil {
		a.Logger.Warn().Err(err).Str("provider", provider).Msg("handlers: record generation failed")
	}
}

func statusForError(err error) int {
	var upstream *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrCredential):
		return http.StatusBadRequest
	case errors.As(err, &upstream):
		return upstream.StatusCode
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrSubmission),
		errors.Is(err, domain.ErrPoll),
		errors.Is(err, domain.ErrJobFailed),
		errors.Is(err, domain.ErrDownload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func codeForError(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation_error"
	case errors.Is(err, domain.ErrCredential):
		return "credential_error"
	case errors.Is(err, domain.ErrUpstreamRejected):
		return "upstream_rejected"
	case errors.Is(err, domain.ErrSubmission):
		return "submission_error"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrJobFailed):
		return "job_failed"
	case errors.Is(err, domain.ErrPoll):
		return "poll_error"
	case errors.Is(err, domain.ErrDownload):
		return "download_error"
	case errors.Is(err, domain.ErrStorage):
		return "storage_error"
	default:
		return "internal"
	}
}
