package minimax

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mediagen/internal/credential"
	"mediagen/internal/domain"
)

func TestNormalizeDefaults(t *testing.T) {
	c := New(Options{})
	payload, err := c.Normalize(domain.GenerationRequest{Prompt: "Selamat pagi"})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	body := payload.(speechRequest)
	if body.Model != "speech-01" || body.Text != "Selamat pagi" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.VoiceSetting.VoiceID != "male-qn-qingse" || body.VoiceSetting.Speed != 1.0 {
		t.Fatalf("unexpected voice setting %+v", body.VoiceSetting)
	}
	if body.AudioSetting.Format != "mp3" {
		t.Fatalf("unexpected format %q", body.AudioSetting.Format)
	}
}

func TestNormalizeRejections(t *testing.T) {
	c := New(Options{})
	cases := []struct {
		name string
		req  domain.GenerationRequest
	}{
		{"empty text", domain.GenerationRequest{Prompt: "  "}},
		{"text too long", domain.GenerationRequest{Prompt: strings.Repeat("a", maxTextLength+1)}},
		{"bad model", domain.GenerationRequest{Prompt: "hi", Options: map[string]any{"model": "speech-99"}}},
		{"blank voice", domain.GenerationRequest{Prompt: "hi", Options: map[string]any{"voice_id": "  "}}},
		{"speed too fast", domain.GenerationRequest{Prompt: "hi", Options: map[string]any{"speed": 2.5}}},
		{"bad format", domain.GenerationRequest{Prompt: "hi", Options: map[string]any{"format": "flac"}}},
		{"turbo with wav", domain.GenerationRequest{Prompt: "hi", Options: map[string]any{"model": "speech-01-turbo", "format": "wav"}}},
	}
	for _, tc := range cases {
		if _, err := c.Normalize(tc.req); err == nil {
			t.Fatalf("%s: expected rejection", tc.name)
		}
	}
}

func TestSubmitAndBaseRespRejection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/t2a_async" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer mm-key" {
			t.Fatalf("unexpected auth %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"task_id":   "task-7",
			"base_resp": map[string]any{"status_code": 0},
		})
	}))
	defer ts.Close()

	c := New(Options{BaseURL: ts.URL})
	payload, err := c.Normalize(domain.GenerationRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	handle, err := c.Submit(context.Background(), payload, credential.Token{Value: "mm-key"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if handle.ID != "task-7" || handle.Provider != "minimax" {
		t.Fatalf("unexpected handle %+v", handle)
	}

	// A 200 with a non-zero base_resp is still a rejection.
	rejected := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"base_resp": map[string]any{"status_code": 1004, "status_msg": "invalid api key"},
		})
	}))
	defer rejected.Close()

	c = New(Options{BaseURL: rejected.URL})
	_, err = c.Submit(context.Background(), payload, credential.Token{Value: "bad"})
	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if upstream.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 for an in-band rejection", upstream.StatusCode)
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		raw  string
		want domain.JobStatus
	}{
		{"Queueing", domain.JobStatusQueued},
		{"Processing", domain.JobStatusRunning},
		{"Success", domain.JobStatusSucceeded},
		{"Failed", domain.JobStatusFailed},
	}
	for _, tc := range cases {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("task_id"); got != "task-7" {
				t.Fatalf("unexpected task_id %q", got)
			}
			body := map[string]any{"status": tc.raw, "base_resp": map[string]any{"status_code": 0}}
			if tc.raw == "Success" {
				body["file_id"] = "file-31"
			}
			_ = json.NewEncoder(w).Encode(body)
		}))
		c := New(Options{BaseURL: ts.URL})
		update, err := c.Status(context.Background(), domain.JobHandle{Provider: "minimax", ID: "task-7"}, credential.Token{Value: "k"})
		ts.Close()
		if err != nil {
			t.Fatalf("%s: Status error: %v", tc.raw, err)
		}
		if update.Status != tc.want {
			t.Fatalf("%s mapped to %s, want %s", tc.raw, update.Status, tc.want)
		}
		if tc.raw == "Success" && update.ResultLocator != "file-31" {
			t.Fatalf("file id not surfaced as locator: %+v", update)
		}
	}
}

func TestFetchTwoStep(t *testing.T) {
	var mux http.ServeMux
	ts := httptest.NewServer(&mux)
	defer ts.Close()

	mux.HandleFunc("/v1/files/retrieve", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("file_id"); got != "file-31" {
			t.Fatalf("unexpected file_id %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer mm-key" {
			t.Fatalf("retrieve must be authenticated, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"file":      map[string]any{"download_url": ts.URL + "/download/file-31.mp3"},
			"base_resp": map[string]any{"status_code": 0},
		})
	})
	mux.HandleFunc("/download/file-31.mp3", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer mm-key" {
			t.Fatalf("download must be authenticated, got %q", got)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	})

	c := New(Options{BaseURL: ts.URL})
	artifact, err := c.Fetch(context.Background(), "file-31", credential.Token{Value: "mm-key"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if string(artifact.Data) != "mp3-bytes" || artifact.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected artifact %+v", artifact)
	}
}

func TestFetchMissingDownloadURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"file":      map[string]any{},
			"base_resp": map[string]any{"status_code": 0},
		})
	}))
	defer ts.Close()

	c := New(Options{BaseURL: ts.URL})
	if _, err := c.Fetch(context.Background(), "file-31", credential.Token{Value: "k"}); err == nil {
		t.Fatalf("expected error for missing download url")
	}
}
