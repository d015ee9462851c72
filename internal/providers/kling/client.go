// Package kling adapts the Kling video generation API. Kling authenticates
// with short-lived self-signed JWTs and exposes separate submission paths for
// text-to-video and image-to-video.
package kling

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
		base = "https://api.klingai.com"
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
		interval = 8 * time.Second
	}
	maxWait := opts.MaxWait
	if maxWait <= 0 {
		maxWait = 12 * time.Minute
	}
	return &Client{httpClient: client, baseURL: base, pollInterval: interval, maxWait: maxWait}
}

func (c *Client) Name() string { return "kling" }

func (c *Client) Profile() pipeline.Profile {
	// Finished videos are served from a public CDN; no credential needed.
	return pipeline.Profile{PollInterval: c.pollInterval, MaxWait: c.maxWait, AuthenticatedFetch: false}
}

const (
	pathText2Video  = "/v1/videos/text2video"
	pathImage2Video = "/v1/videos/image2video"
	pathTaskStatus  = "/v1/videos/tasks/"
)

type submission struct {
	path string
	body klingRequest
}

type klingRequest struct {
	Model          string         `json:"model_name"`
	Prompt         string         `json:"prompt"`
	NegativePrompt string         `json:"negative_prompt,omitempty"`
	Image          string         `json:"image,omitempty"`
	Mode           string         `json:"mode"`
	Duration       string         `json:"duration"`
	AspectRatio    string         `json:"aspect_ratio"`
	CFGScale       float64        `json:"cfg_scale"`
	CameraControl  map[string]any `json:"camera_control,omitempty"`
}

var (
	validModels    = map[string]bool{"kling-v1": true, "kling-v1-5": true, "kling-v1-6": true}
	validModes     = map[string]bool{"std": true, "pro": true}
	validDurations = map[int]bool{5: true, 10: true}
	validAspects   = map[string]bool{"16:9": true, "9:16": true, "1:1": true}
)

// Normalize validates the generic request against Kling's documented domain
// and shapes the submission body, applying defaults for every optional field.
func (c *Client) Normalize(req domain.GenerationRequest) (pipeline.Payload, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("prompt is required")
	}

	model, err := providers.StringOption(req.Options, "model_name", "kling-v1")
	if err != nil {
		return nil, err
	}
	if !validModels[model] {
		return nil, fmt.Errorf("unsupported model_name %q", model)
	}
	mode, err := providers.StringOption(req.Options, "mode", "std")
	if err != nil {
		return nil, err
	}
	if !validModes[mode] {
		return nil, fmt.Errorf("unsupported mode %q", mode)
	}
	duration, err := providers.IntOption(req.Options, "duration", 5)
	if err != nil {
		return nil, err
	}
	if !validDurations[duration] {
		return nil, fmt.Errorf("unsupported duration %d", duration)
	}
	aspect, err := providers.StringOption(req.Options, "aspect_ratio", "16:9")
	if err != nil {
		return nil, err
	}
	if !validAspects[aspect] {
		return nil, fmt.Errorf("unsupported aspect_ratio %q", aspect)
	}
	cfgScale, err := providers.FloatOption(req.Options, "cfg_scale", 0.5)
	if err != nil {
		return nil, err
	}
	if cfgScale < 0 || cfgScale > 1 {
		return nil, fmt.Errorf("cfg_scale %v outside [0,1]", cfgScale)
	}
	negative, err := providers.StringOption(req.Options, "negative_prompt", "")
	if err != nil {
		return nil, err
	}
	camera, hasCamera := req.Options["camera_control"].(map[string]any)

	image := strings.TrimSpace(req.ReferenceURL)

	// Cross-field rules. Professional renders are fixed at five seconds, the
	// v1-5 model only runs image-to-video in standard mode, and camera moves
	// exist only on the text-to-video path.
	if mode == "pro" && duration != 5 {
		return nil, errors.New("mode \"pro\" only supports duration 5")
	}
	if image != "" && model == "kling-v1-5" && mode != "std" {
		return nil, errors.New("model \"kling-v1-5\" with a reference image only supports mode \"std\"")
	}
	if image != "" && hasCamera {
		return nil, errors.New("camera_control is not available with a reference image")
	}

	body := klingRequest{
		Model:          model,
		Prompt:         prompt,
		NegativePrompt: negative,
		Mode:           mode,
		Duration:       fmt.Sprintf("%d", duration),
		AspectRatio:    aspect,
		CFGScale:       cfgScale,
	}
	path := pathText2Video
	if image != "" {
		path = pathImage2Video
		body.Image = image
	} else if hasCamera {
		body.CameraControl = camera
	}
	return submission{path: path, body: body}, nil
}

type klingEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID        string `json:"task_id"`
		TaskStatus    string `json:"task_status"`
		TaskStatusMsg string `json:"task_status_msg"`
		TaskResult    struct {
			Videos []struct {
				URL      string `json:"url"`
				Duration string `json:"duration"`
			} `json:"videos"`
		} `json:"task_result"`
	} `json:"data"`
}

func (c *Client) Submit(ctx context.Context, payload pipeline.Payload, tok credential.Token) (domain.JobHandle, error) {
	sub, ok := payload.(submission)
	if !ok {
		return domain.JobHandle{}, fmt.Errorf("unexpected payload type %T", payload)
	}
	out, status, err := c.do(ctx, http.MethodPost, sub.path, sub.body, tok)
	if err != nil {
		return domain.JobHandle{}, err
	}
	if status >= http.StatusBadRequest || out.Code != 0 {
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		return domain.JobHandle{}, &domain.UpstreamError{StatusCode: status, Message: fmt.Sprintf("code %d: %s", out.Code, out.Message)}
	}
	if strings.TrimSpace(out.Data.TaskID) == "" {
		return domain.JobHandle{}, domain.ErrMalformedAcceptance
	}
	return domain.JobHandle{Provider: c.Name(), ID: out.Data.TaskID}, nil
}

func (c *Client) Status(ctx context.Context, handle domain.JobHandle, tok credential.Token) (domain.PollUpdate, error) {
	out, status, err := c.do(ctx, http.MethodGet, pathTaskStatus+handle.ID, nil, tok)
	if err != nil {
		return domain.PollUpdate{}, err
	}
	if status >= http.StatusBadRequest || out.Code != 0 {
		return domain.PollUpdate{}, fmt.Errorf("status query: http %d code %d: %s", status, out.Code, out.Message)
	}
	switch out.Data.TaskStatus {
	case "submitted":
		return domain.PollUpdate{Status: domain.JobStatusQueued}, nil
	case "processing":
		return domain.PollUpdate{Status: domain.JobStatusRunning}, nil
	case "succeed":
		update := domain.PollUpdate{Status: domain.JobStatusSucceeded}
		if videos := out.Data.TaskResult.Videos; len(videos) > 0 {
			update.ResultLocator = videos[0].URL
		}
		return update, nil
	case "failed":
		return domain.PollUpdate{Status: domain.JobStatusFailed, FailureReason: out.Data.TaskStatusMsg}, nil
	default:
		return domain.PollUpdate{}, fmt.Errorf("unexpected task status %q", out.Data.TaskStatus)
	}
}

func (c *Client) Fetch(ctx context.Context, locator string, _ credential.Token) (domain.Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return domain.Artifact{}, err
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

func (c *Client) do(ctx context.Context, method, path string, body any, tok credential.Token) (*klingEnvelope, int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	var out klingEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, resp.StatusCode, &domain.UpstreamError{StatusCode: resp.StatusCode, Message: "undecodable error body"}
		}
		return nil, resp.StatusCode, err
	}
	return &out, resp.StatusCode, nil
}

var _ pipeline.Provider = (*Client)(nil)
