package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mediagen/internal/pipeline"
	"mediagen/internal/providers/kling"
	"mediagen/internal/providers/minimax"
	"mediagen/internal/storage"
)

func newTestApp(t *testing.T, upstream string) *App {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir(), "media", "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	p := pipeline.New(pipeline.Options{
		Materializer: storage.NewMaterializer(store),
		Logger:       zerolog.Nop(),
	})
	return &App{
		Pipeline: p,
		Kling: kling.New(kling.Options{
			BaseURL:      upstream,
			PollInterval: time.Millisecond,
			MaxWait:      2 * time.Second,
		}),
		Minimax: minimax.New(minimax.Options{
			BaseURL:      upstream,
			PollInterval: time.Millisecond,
			MaxWait:      2 * time.Second,
		}),
		Logger: zerolog.Nop(),
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestVideoGenerateEndToEnd(t *testing.T) {
	var statusCalls int
	var mux http.ServeMux
	ts := httptest.NewServer(&mux)
	defer ts.Close()

	mux.HandleFunc("/v1/videos/text2video", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{"task_id": "task-1", "task_status": "submitted"},
		})
	})
	mux.HandleFunc("/v1/videos/tasks/task-1", func(w http.ResponseWriter, r *http.Request) {
		statusCalls++
		data := map[string]any{"task_id": "task-1", "task_status": "processing"}
		if statusCalls >= 3 {
			data["task_status"] = "succeed"
			data["task_result"] = map[string]any{"videos": []map[string]any{{"url": ts.URL + "/files/out.mp4"}}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": data})
	})
	mux.HandleFunc("/files/out.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("video-bytes"))
	})

	app := newTestApp(t, ts.URL)
	rec := postJSON(t, app.VideoGenerate, map[string]any{
		"prompt":     "a sunrise over rice fields",
		"access_key": "ak",
		"secret_key": "sk",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true || body["provider"] != "kling" || body["job_id"] != "task-1" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["result_url"] != "http://localhost:8080/static/media/generated/kling/task-1.mp4" {
		t.Fatalf("unexpected result_url %v", body["result_url"])
	}
}

func TestVideoGenerateValidationRejectedBeforeSubmit(t *testing.T) {
	var upstreamCalls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls++
	}))
	defer ts.Close()

	app := newTestApp(t, ts.URL)
	rec := postJSON(t, app.VideoGenerate, map[string]any{
		"prompt":     "   ",
		"access_key": "ak",
		"secret_key": "sk",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "validation_error" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
	if upstreamCalls != 0 {
		t.Fatalf("invalid request must not reach the provider, saw %d calls", upstreamCalls)
	}
}

func TestVideoGenerateMissingCredentials(t *testing.T) {
	app := newTestApp(t, "http://127.0.0.1:1")
	rec := postJSON(t, app.VideoGenerate, map[string]any{"prompt": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "credential_error" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestVideoGenerateUpstreamStatusEchoed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 1200, "message": "capacity"})
	}))
	defer ts.Close()

	app := newTestApp(t, ts.URL)
	rec := postJSON(t, app.VideoGenerate, map[string]any{
		"prompt":     "x",
		"access_key": "ak",
		"secret_key": "sk",
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want the provider's 503", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "upstream_rejected" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestVideoGenerateJobFailure(t *testing.T) {
	var mux http.ServeMux
	ts := httptest.NewServer(&mux)
	defer ts.Close()

	mux.HandleFunc("/v1/videos/text2video", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{"task_id": "task-2", "task_status": "submitted"},
		})
	})
	mux.HandleFunc("/v1/videos/tasks/task-2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{"task_id": "task-2", "task_status": "failed", "task_status_msg": "nsfw content"},
		})
	})

	app := newTestApp(t, ts.URL)
	rec := postJSON(t, app.VideoGenerate, map[string]any{
		"prompt":     "x",
		"access_key": "ak",
		"secret_key": "sk",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "job_failed" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestSpeechGenerateEndToEnd(t *testing.T) {
	var mux http.ServeMux
	ts := httptest.NewServer(&mux)
	defer ts.Close()

	mux.HandleFunc("/v1/t2a_async", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"task_id":   "tts-1",
			"base_resp": map[string]any{"status_code": 0},
		})
	})
	mux.HandleFunc("/v1/query/t2a_async", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    "Success",
			"file_id":   "file-1",
			"base_resp": map[string]any{"status_code": 0},
		})
	})
	mux.HandleFunc("/v1/files/retrieve", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"file":      map[string]any{"download_url": ts.URL + "/download/file-1"},
			"base_resp": map[string]any{"status_code": 0},
		})
	})
	mux.HandleFunc("/download/file-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	})

	app := newTestApp(t, ts.URL)
	rec := postJSON(t, app.SpeechGenerate, map[string]any{
		"text":    "halo dunia",
		"api_key": "mm-key",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["provider"] != "minimax" || body["job_id"] != "tts-1" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["key"] != "generated/minimax/tts-1.mp3" {
		t.Fatalf("unexpected storage key %v", body["key"])
	}
}

func TestBadJSONPayload(t *testing.T) {
	app := newTestApp(t, "http://127.0.0.1:1")
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	app.VideoGenerate(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "bad_request" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}
