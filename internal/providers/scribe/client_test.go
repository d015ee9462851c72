package scribe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mediagen/internal/credential"
	"mediagen/internal/domain"
)

func TestNormalizeDefaults(t *testing.T) {
	c := New(Options{})
	payload, err := c.Normalize(domain.GenerationRequest{ReferenceURL: "https://example.com/call.wav"})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	body := payload.(transcriptRequest)
	if body.AudioURL != "https://example.com/call.wav" {
		t.Fatalf("unexpected audio url %q", body.AudioURL)
	}
	if body.LanguageCode != "auto" || body.SpeakerLabels || !body.Punctuate {
		t.Fatalf("unexpected defaults %+v", body)
	}
}

func TestNormalizeRejections(t *testing.T) {
	c := New(Options{})
	cases := []struct {
		name string
		req  domain.GenerationRequest
	}{
		{"missing audio url", domain.GenerationRequest{}},
		{"non http url", domain.GenerationRequest{ReferenceURL: "ftp://example.com/a.wav"}},
		{"bad language", domain.GenerationRequest{
			ReferenceURL: "https://example.com/a.wav",
			Options:      map[string]any{"language_code": "tlh"},
		}},
		{"diarization with auto detect", domain.GenerationRequest{
			ReferenceURL: "https://example.com/a.wav",
			Options:      map[string]any{"speaker_labels": true},
		}},
	}
	for _, tc := range cases {
		if _, err := c.Normalize(tc.req); err == nil {
			t.Fatalf("%s: expected rejection", tc.name)
		}
	}
}

func TestNormalizeDiarizationWithLanguage(t *testing.T) {
	c := New(Options{})
	payload, err := c.Normalize(domain.GenerationRequest{
		ReferenceURL: "https://example.com/a.wav",
		Options:      map[string]any{"speaker_labels": true, "language_code": "en"},
	})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	body := payload.(transcriptRequest)
	if !body.SpeakerLabels || body.LanguageCode != "en" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestSubmitAndStatusLifecycle(t *testing.T) {
	status := "queued"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sc-key" {
			t.Fatalf("unexpected auth %q", got)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/transcripts":
			var body transcriptRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if body.AudioURL != "https://example.com/call.wav" {
				t.Fatalf("unexpected submission %+v", body)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "tr-5", "status": "queued"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/transcripts/tr-5":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "tr-5", "status": status})
		default:
			t.Fatalf("unexpected call %s %s", r.Method, r.URL.Path)
		}
	}))
	defer ts.Close()

	c := New(Options{BaseURL: ts.URL})
	payload, err := c.Normalize(domain.GenerationRequest{ReferenceURL: "https://example.com/call.wav"})
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	handle, err := c.Submit(context.Background(), payload, credential.Token{Value: "sc-key"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if handle.ID != "tr-5" || handle.Provider != "scribe" {
		t.Fatalf("unexpected handle %+v", handle)
	}

	for raw, want := range map[string]domain.JobStatus{
		"queued":      domain.JobStatusQueued,
		"processing":  domain.JobStatusRunning,
		"in_progress": domain.JobStatusRunning,
	} {
		status = raw
		update, err := c.Status(context.Background(), handle, credential.Token{Value: "sc-key"})
		if err != nil {
			t.Fatalf("%s: Status error: %v", raw, err)
		}
		if update.Status != want {
			t.Fatalf("%s mapped to %s, want %s", raw, update.Status, want)
		}
	}

	status = "completed"
	update, err := c.Status(context.Background(), handle, credential.Token{Value: "sc-key"})
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	wantLocator := ts.URL + "/v1/transcripts/tr-5/text"
	if update.Status != domain.JobStatusSucceeded || update.ResultLocator != wantLocator {
		t.Fatalf("completed update = %+v, want locator %q", update, wantLocator)
	}
}

func TestStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "tr-5", "status": "error", "error": "audio unreadable"})
	}))
	defer ts.Close()

	c := New(Options{BaseURL: ts.URL})
	update, err := c.Status(context.Background(), domain.JobHandle{Provider: "scribe", ID: "tr-5"}, credential.Token{Value: "k"})
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if update.Status != domain.JobStatusFailed || update.FailureReason != "audio unreadable" {
		t.Fatalf("unexpected update %+v", update)
	}
}

func TestSubmitUpstreamRejection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "bad token"})
	}))
	defer ts.Close()

	c := New(Options{BaseURL: ts.URL})
	payload, _ := c.Normalize(domain.GenerationRequest{ReferenceURL: "https://example.com/a.wav"})
	_, err := c.Submit(context.Background(), payload, credential.Token{Value: "k"})
	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 upstream error, got %v", err)
	}
}

func TestFetchTranscriptText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sc-key" {
			t.Fatalf("transcript download must be authenticated, got %q", got)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("hello world"))
	}))
	defer ts.Close()

	c := New(Options{})
	artifact, err := c.Fetch(context.Background(), ts.URL+"/v1/transcripts/tr-5/text", credential.Token{Value: "sc-key"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if string(artifact.Data) != "hello world" {
		t.Fatalf("unexpected transcript %q", artifact.Data)
	}
}
