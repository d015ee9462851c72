// Package scribe adapts an asynchronous audio transcription API. Jobs are
// submitted by audio URL; the finished transcript is fetched as plain text
// from a per-job sub-resource.
package scribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediagen/internal/credential"
	"mediagen/internal/domain"
	"mediagen/internal/pipeline"
	"mediagen/internal/providers"
)

type Options struct {
	BaseURL      string
	HTTPClient   *http.Client
	Timeout      time.Duration
	PollInterval time.Duration
	MaxWait      time.Duration
}

type Client struct {
	httpClient   *http.Client
	baseURL      string
	pollInterval time.Duration
	maxWait      time.Duration
}

func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.scribe.dev"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 6 * time.Second
	}
	maxWait := opts.MaxWait
	if maxWait <= 0 {
		maxWait = 10 * time.Minute
	}
	return &Client{httpClient: client, baseURL: base, pollInterval: interval, maxWait: maxWait}
}

func (c *Client) Name() string { return "scribe" }

func (c *Client) Profile() pipeline.Profile {
	return pipeline.Profile{PollInterval: c.pollInterval, MaxWait: c.maxWait, AuthenticatedFetch: true}
}

type transcriptRequest struct {
	AudioURL      string `json:"audio_url"`
	LanguageCode  string `json:"language_code"`
	SpeakerLabels bool   `json:"speaker_labels"`
	Punctuate     bool   `json:"punctuate"`
}

var validLanguages = map[string]bool{
	"auto": true, "en": true, "id": true, "ja": true, "ko": true,
	"zh": true, "es": true, "fr": true, "de": true, "pt": true,
}

func (c *Client) Normalize(req domain.GenerationRequest) (pipeline.Payload, error) {
	audioURL := strings.TrimSpace(req.ReferenceURL)
	if audioURL == "" {
		return nil, errors.New("audio_url is required")
	}
	if !strings.HasPrefix(audioURL, "http://") && !strings.HasPrefix(audioURL, "https://") {
		return nil, fmt.Errorf("audio_url %q is not an http(s) locator", audioURL)
	}
	language, err := providers.StringOption(req.Options, "language_code", "auto")
	if err != nil {
		return nil, err
	}
	if !validLanguages[language] {
		return nil, fmt.Errorf("unsupported language_code %q", language)
	}
	speakerLabels, err := providers.BoolOption(req.Options, "speaker_labels", false)
	if err != nil {
		return nil, err
	}
	// Diarization models are language specific and cannot run on top of
	// automatic language detection.
	if speakerLabels && language == "auto" {
		return nil, errors.New("speaker_labels requires an explicit language_code")
	}
	punctuate, err := providers.BoolOption(req.Options, "punctuate", true)
	if err != nil {
		return nil, err
	}
	return transcriptRequest{
		AudioURL:      audioURL,
		LanguageCode:  language,
		SpeakerLabels: speakerLabels,
		Punctuate:     punctuate,
	}, nil
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

func (c *Client) Submit(ctx context.Context, payload pipeline.Payload, tok credential.Token) (domain.JobHandle, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.JobHandle{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transcripts", bytes.NewReader(body))
	if err != nil {
		return domain.JobHandle{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.JobHandle{}, err
	}
	defer resp.Body.Close()
	var out transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return domain.JobHandle{}, &domain.UpstreamError{StatusCode: resp.StatusCode, Message: "undecodable error body"}
		}
		return domain.JobHandle{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		msg := out.Error
		if msg == "" {
			msg = "submission refused"
		}
		return domain.JobHandle{}, &domain.UpstreamError{StatusCode: resp.StatusCode, Message: msg}
	}
	if strings.TrimSpace(out.ID) == "" {
		return domain.JobHandle{}, domain.ErrMalformedAcceptance
	}
	return domain.JobHandle{Provider: c.Name(), ID: out.ID}, nil
}

func (c *Client) Status(ctx context.Context, handle domain.JobHandle, tok credential.Token) (domain.PollUpdate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/transcripts/"+handle.ID, nil)
	if err != nil {
		return domain.PollUpdate{}, err
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PollUpdate{}, err
	}
	defer resp.Body.Close()
	var out transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.PollUpdate{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return domain.PollUpdate{}, fmt.Errorf("status query: http %d: %s", resp.StatusCode, out.Error)
	}
	switch out.Status {
	case "queued":
		return domain.PollUpdate{Status: domain.JobStatusQueued}, nil
	case "processing", "in_progress":
		return domain.PollUpdate{Status: domain.JobStatusRunning}, nil
	case "completed":
		return domain.PollUpdate{
			Status:        domain.JobStatusSucceeded,
			ResultLocator: c.baseURL + "/v1/transcripts/" + handle.ID + "/text",
		}, nil
	case "error":
		return domain.PollUpdate{Status: domain.JobStatusFailed, FailureReason: out.Error}, nil
	default:
		return domain.PollUpdate{}, fmt.Errorf("unexpected transcript status %q", out.Status)
	}
}

func (c *Client) Fetch(ctx context.Context, locator string, tok credential.Token) (domain.Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return domain.Artifact{}, err
	}
	if tok.Value != "" {
		req.Header.Set("Authorization", "Bearer "+tok.Value)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Artifact{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return domain.Artifact{}, fmt.Errorf("download: http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Artifact{}, err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	return domain.Artifact{Data: data, ContentType: contentType}, nil
}

var _ pipeline.Provider = (*Client)(nil)
