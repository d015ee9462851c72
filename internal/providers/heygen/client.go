// Package heygen adapts the HeyGen avatar video API. Authentication is a
// static API key; finished videos require the same key to download.
package heygen

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
		base = "https://api.heygen.com"
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
		interval = 10 * time.Second
	}
	maxWait := opts.MaxWait
	if maxWait <= 0 {
		maxWait = 15 * time.Minute
	}
	return &Client{httpClient: client, baseURL: base, pollInterval: interval, maxWait: maxWait}
}

func (c *Client) Name() string { return "heygen" }

func (c *Client) Profile() pipeline.Profile {
	return pipeline.Profile{PollInterval: c.pollInterval, MaxWait: c.maxWait, AuthenticatedFetch: true}
}

type generateRequest struct {
	VideoInputs []videoInput `json:"video_inputs"`
	Ratio       string       `json:"ratio"`
	Quality     string       `json:"quality"`
	Test        bool         `json:"test"`
	Background  string       `json:"background_url,omitempty"`
}

type videoInput struct {
	Character struct {
		Type        string `json:"type"`
		AvatarID    string `json:"avatar_id"`
		AvatarStyle string `json:"avatar_style"`
	} `json:"character"`
	Voice struct {
		Type      string  `json:"type"`
		InputText string  `json:"input_text"`
		VoiceID   string  `json:"voice_id"`
		Speed     float64 `json:"speed"`
	} `json:"voice"`
}

var (
	validRatios  = map[string]bool{"16:9": true, "9:16": true, "1:1": true}
	validQuality = map[string]bool{"low": true, "medium": true, "high": true}
	validStyles  = map[string]bool{"normal": true, "circle": true, "closeUp": true}
)

// Normalize shapes the avatar video submission. avatar_id and voice_id must
// already be resolved; the handler layer fills them from catalog defaults
// when the caller omits them.
func (c *Client) Normalize(req domain.GenerationRequest) (pipeline.Payload, error) {
	script := strings.TrimSpace(req.Prompt)
	if script == "" {
		return nil, errors.New("prompt is required")
	}
	avatarID, err := providers.StringOption(req.Options, "avatar_id", "")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(avatarID) == "" {
		return nil, errors.New("avatar_id is required")
	}
	voiceID, err := providers.StringOption(req.Options, "voice_id", "")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(voiceID) == "" {
		return nil, errors.New("voice_id is required")
	}
	style, err := providers.StringOption(req.Options, "avatar_style", "normal")
	if err != nil {
		return nil, err
	}
	if !validStyles[style] {
		return nil, fmt.Errorf("unsupported avatar_style %q", style)
	}
	ratio, err := providers.StringOption(req.Options, "ratio", "16:9")
	if err != nil {
		return nil, err
	}
	if !validRatios[ratio] {
		return nil, fmt.Errorf("unsupported ratio %q", ratio)
	}
	quality, err := providers.StringOption(req.Options, "quality", "medium")
	if err != nil {
		return nil, err
	}
	if !validQuality[quality] {
		return nil, fmt.Errorf("unsupported quality %q", quality)
	}
	// High quality renders are produced at landscape resolution only.
	if quality == "high" && ratio != "16:9" {
		return nil, errors.New("quality \"high\" only supports ratio \"16:9\"")
	}
	speed, err := providers.FloatOption(req.Options, "speed", 1.0)
	if err != nil {
		return nil, err
	}
	if speed < 0.5 || speed > 1.5 {
		return nil, fmt.Errorf("speed %v outside [0.5,1.5]", speed)
	}
	test, err := providers.BoolOption(req.Options, "test", false)
	if err != nil {
		return nil, err
	}

	var input videoInput
	input.Character.Type = "avatar"
	input.Character.AvatarID = avatarID
	input.Character.AvatarStyle = style
	input.Voice.Type = "text"
	input.Voice.InputText = script
	input.Voice.VoiceID = voiceID
	input.Voice.Speed = speed

	return generateRequest{
		VideoInputs: []videoInput{input},
		Ratio:       ratio,
		Quality:     quality,
		Test:        test,
		Background:  strings.TrimSpace(req.ReferenceURL),
	}, nil
}

type submitResponse struct {
	Data struct {
		VideoID string `json:"video_id"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Submit(ctx context.Context, payload pipeline.Payload, tok credential.Token) (domain.JobHandle, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.JobHandle{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/video/generate", bytes.NewReader(body))
	if err != nil {
		return domain.JobHandle{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", tok.Value)
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
	if resp.StatusCode >= http.StatusBadRequest || out.Error != nil {
		msg := "submission refused"
		if out.Error != nil {
			msg = fmt.Sprintf("%s (%s)", out.Error.Message, out.Error.Code)
		}
		status := resp.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		return domain.JobHandle{}, &domain.UpstreamError{StatusCode: status, Message: msg}
	}
	if strings.TrimSpace(out.Data.VideoID) == "" {
		return domain.JobHandle{}, domain.ErrMalformedAcceptance
	}
	return domain.JobHandle{Provider: c.Name(), ID: out.Data.VideoID}, nil
}

type statusResponse struct {
	Code int `json:"code"`
	Data struct {
		Status   string `json:"status"`
		VideoURL string `json:"video_url"`
		Error    *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"data"`
	Message string `json:"message"`
}

func (c *Client) Status(ctx context.Context, handle domain.JobHandle, tok credential.Token) (domain.PollUpdate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/video_status.get?video_id="+handle.ID, nil)
	if err != nil {
		return domain.PollUpdate{}, err
	}
	req.Header.Set("X-Api-Key", tok.Value)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PollUpdate{}, err
	}
	defer resp.Body.Close()
	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.PollUpdate{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return domain.PollUpdate{}, fmt.Errorf("status query: http %d: %s", resp.StatusCode, out.Message)
	}
	switch out.Data.Status {
	case "pending", "waiting":
		return domain.PollUpdate{Status: domain.JobStatusQueued}, nil
	case "processing":
		return domain.PollUpdate{Status: domain.JobStatusRunning}, nil
	case "completed":
		return domain.PollUpdate{Status: domain.JobStatusSucceeded, ResultLocator: out.Data.VideoURL}, nil
	case "failed":
		reason := ""
		if out.Data.Error != nil {
			reason = out.Data.Error.Message
		}
		return domain.PollUpdate{Status: domain.JobStatusFailed, FailureReason: reason}, nil
	default:
		return domain.PollUpdate{}, fmt.Errorf("unexpected video status %q", out.Data.Status)
	}
}

func (c *Client) Fetch(ctx context.Context, locator string, tok credential.Token) (domain.Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return domain.Artifact{}, err
	}
	if tok.Value != "" {
		req.Header.Set("X-Api-Key", tok.Value)
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
		contentType = "video/mp4"
	}
	return domain.Artifact{Data: data, ContentType: contentType}, nil
}

var _ pipeline.Provider = (*Client)(nil)
