// Package minimax adapts the MiniMax asynchronous speech synthesis API. The
// terminal status yields a file id which must be resolved to a download URL
// in a second call before the audio can be fetched.
package minimax

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
		base = "https://api.minimax.chat"
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

func (c *Client) Name() string { return "minimax" }

func (c *Client) Profile() pipeline.Profile {
	return pipeline.Profile{PollInterval: c.pollInterval, MaxWait: c.maxWait, AuthenticatedFetch: true}
}

type speechRequest struct {
	Model        string `json:"model"`
	Text         string `json:"text"`
	VoiceSetting struct {
		VoiceID string  `json:"voice_id"`
		Speed   float64 `json:"speed"`
	} `json:"voice_setting"`
	AudioSetting struct {
		Format string `json:"format"`
	} `json:"audio_setting"`
}

var (
	validModels  = map[string]bool{"speech-01": true, "speech-01-turbo": true, "speech-02": true}
	validFormats = map[string]bool{"mp3": true, "wav": true}
)

const maxTextLength = 5000

func (c *Client) Normalize(req domain.GenerationRequest) (pipeline.Payload, error) {
	text := strings.TrimSpace(req.Prompt)
	if text == "" {
		return nil, errors.New("prompt is required")
	}
	if len(text) > maxTextLength {
		return nil, fmt.Errorf("prompt exceeds %d characters", maxTextLength)
	}
	model, err := providers.StringOption(req.Options, "model", "speech-01")
	if err != nil {
		return nil, err
	}
	if !validModels[model] {
		return nil, fmt.Errorf("unsupported model %q", model)
	}
	voiceID, err := providers.StringOption(req.Options, "voice_id", "male-qn-qingse")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(voiceID) == "" {
		return nil, errors.New("voice_id must not be blank")
	}
	speed, err := providers.FloatOption(req.Options, "speed", 1.0)
	if err != nil {
		return nil, err
	}
	if speed < 0.5 || speed > 2.0 {
		return nil, fmt.Errorf("speed %v outside [0.5,2.0]", speed)
	}
	format, err := providers.StringOption(req.Options, "format", "mp3")
	if err != nil {
		return nil, err
	}
	if !validFormats[format] {
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	// The turbo model streams compressed audio only.
	if model == "speech-01-turbo" && format != "mp3" {
		return nil, errors.New("model \"speech-01-turbo\" only supports format \"mp3\"")
	}

	var payload speechRequest
	payload.Model = model
	payload.Text = text
	payload.VoiceSetting.VoiceID = voiceID
	payload.VoiceSetting.Speed = speed
	payload.AudioSetting.Format = format
	return payload, nil
}

type baseResp struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

type submitResponse struct {
	TaskID string   `json:"task_id"`
	Base   baseResp `json:"base_resp"`
}

func (c *Client) Submit(ctx context.Context, payload pipeline.Payload, tok credential.Token) (domain.JobHandle, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.JobHandle{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/t2a_async", bytes.NewReader(body))
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
	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return domain.JobHandle{}, &domain.UpstreamError{StatusCode: resp.StatusCode, Message: "undecodable error body"}
		}
		return domain.JobHandle{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest || out.Base.StatusCode != 0 {
		status := resp.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		return domain.JobHandle{}, &domain.UpstreamError{StatusCode: status, Message: fmt.Sprintf("code %d: %s", out.Base.StatusCode, out.Base.StatusMsg)}
	}
	if strings.TrimSpace(out.TaskID) == "" {
		return domain.JobHandle{}, domain.ErrMalformedAcceptance
	}
	return domain.JobHandle{Provider: c.Name(), ID: out.TaskID}, nil
}

type statusResponse struct {
	Status string   `json:"status"`
	FileID string   `json:"file_id"`
	Base   baseResp `json:"base_resp"`
}

func (c *Client) Status(ctx context.Context, handle domain.JobHandle, tok credential.Token) (domain.PollUpdate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/query/t2a_async?task_id="+handle.ID, nil)
	if err != nil {
		return domain.PollUpdate{}, err
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PollUpdate{}, err
	}
	defer resp.Body.Close()
	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.PollUpdate{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest || out.Base.StatusCode != 0 {
		return domain.PollUpdate{}, fmt.Errorf("status query: http %d code %d: %s", resp.StatusCode, out.Base.StatusCode, out.Base.StatusMsg)
	}
	switch out.Status {
	case "Queueing":
		return domain.PollUpdate{Status: domain.JobStatusQueued}, nil
	case "Processing":
		return domain.PollUpdate{Status: domain.JobStatusRunning}, nil
	case "Success":
		return domain.PollUpdate{Status: domain.JobStatusSucceeded, ResultLocator: out.FileID}, nil
	case "Failed":
		return domain.PollUpdate{Status: domain.JobStatusFailed, FailureReason: out.Base.StatusMsg}, nil
	default:
		return domain.PollUpdate{}, fmt.Errorf("unexpected task status %q", out.Status)
	}
}

type fileResponse struct {
	File struct {
		DownloadURL string `json:"download_url"`
	} `json:"file"`
	Base baseResp `json:"base_resp"`
}

// Fetch resolves the file id surfaced by the poll loop into a download URL,
// then reads the audio bytes. Both calls are authenticated.
func (c *Client) Fetch(ctx context.Context, locator string, tok credential.Token) (domain.Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/files/retrieve?file_id="+locator, nil)
	if err != nil {
		return domain.Artifact{}, err
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Artifact{}, err
	}
	defer resp.Body.Close()
	var out fileResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Artifact{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest || out.Base.StatusCode != 0 {
		return domain.Artifact{}, fmt.Errorf("file retrieve: http %d code %d: %s", resp.StatusCode, out.Base.StatusCode, out.Base.StatusMsg)
	}
	if strings.TrimSpace(out.File.DownloadURL) == "" {
		return domain.Artifact{}, errors.New("file retrieve: missing download url")
	}

	dl, err := http.NewRequestWithContext(ctx, http.MethodGet, out.File.DownloadURL, nil)
	if err != nil {
		return domain.Artifact{}, err
	}
	dl.Header.Set("Authorization", "Bearer "+tok.Value)
	dlResp, err := c.httpClient.Do(dl)
	if err != nil {
		return domain.Artifact{}, err
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode >= http.StatusBadRequest {
		return domain.Artifact{}, fmt.Errorf("download: http %d", dlResp.StatusCode)
	}
	data, err := io.ReadAll(dlResp.Body)
	if err != nil {
		return domain.Artifact{}, err
	}
	contentType := dlResp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return domain.Artifact{Data: data, ContentType: contentType}, nil
}

var _ pipeline.Provider = (*Client)(nil)
