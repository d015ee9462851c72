// Package pipeline orchestrates one long-running provider job from request
// validation through artifact materialization. Every provider endpoint shares
// this sequence; only the Provider implementation differs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediagen/internal/credential"
	"mediagen/internal/domain"
	"mediagen/internal/storage"

	"github.com/rs/zerolog"
)

// Payload is a provider-shaped submission body produced by Normalize.
type Payload any

// Profile carries the per-provider polling and fetch capabilities.
type Profile struct {
	PollInterval time.Duration
	MaxWait      time.Duration
	// AuthenticatedFetch marks providers whose artifact URLs require the
	// run's credential; others serve from a public CDN.
	AuthenticatedFetch bool
}

// Provider adapts one upstream generation or transcription API to the
// canonical pipeline stages.
type Provider interface {
	Name() string
	Normalize(req domain.GenerationRequest) (Payload, error)
	Submit(ctx context.Context, payload Payload, tok credential.Token) (domain.JobHandle, error)
	Status(ctx context.Context, handle domain.JobHandle, tok credential.Token) (domain.PollUpdate, error)
	Fetch(ctx context.Context, locator string, tok credential.Token) (domain.Artifact, error)
	Profile() Profile
}

// ErrNoResultLocator marks a terminal succeeded status that carried no
// artifact pointer, a provider contract violation rather than a transport
// failure.
var ErrNoResultLocator = errors.New("succeeded status carried no result locator")

// Result is the outcome of a completed run.
type Result struct {
	Handle  domain.JobHandle
	Object  domain.StorageObject
	Elapsed time.Duration
}

// Pipeline executes orchestration runs. Runs are independent; a single
// Pipeline is shared safely across concurrent requests.
type Pipeline struct {
	materializer  *storage.Materializer
	logger        zerolog.Logger
	clock         Clock
	refreshMargin time.Duration
}

// Options configures a Pipeline.
type Options struct {
	Materializer *storage.Materializer
	Logger       zerolog.Logger
	Clock        Clock
	// RefreshMargin is the minimum remaining credential lifetime tolerated
	// before a poll call; below it the credential is reissued.
	RefreshMargin time.Duration
}

// New constructs a Pipeline.
func New(opts Options) *Pipeline {
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	margin := opts.RefreshMargin
	if margin <= 0 {
		margin = 5 * time.Minute
	}
	return &Pipeline{
		materializer:  opts.Materializer,
		logger:        opts.Logger,
		clock:         clock,
		refreshMargin: margin,
	}
}

// Run drives one job end to end: normalize, obtain a credential, submit,
// poll to a terminal state, fetch the artifact and materialize it. The first
// failing stage short-circuits the rest.
func (p *Pipeline) Run(ctx context.Context, prov Provider, creds credential.Provider, req domain.GenerationRequest) (*Result, error) {
	payload, err := prov.Normalize(req)
	if err != nil {
		return nil, domain.NewStageError("normalize", "", domain.ErrValidation, err)
	}

	tok, err := creds.Obtain()
	if err != nil {
		return nil, domain.NewStageError("credential", "", domain.ErrCredential, err)
	}

	started := p.clock.Now()
	handle, err := prov.Submit(ctx, payload, tok)
	if err != nil {
		return nil, domain.NewStageError("submit", "", domain.ErrSubmission, err)
	}
	p.logger.Info().
		Str("provider", prov.Name()).
		Str("job_id", handle.ID).
		Msg("pipeline: job submitted")

	update, tok, err := p.poll(ctx, prov, creds, tok, handle, started)
	if err != nil {
		return nil, err
	}
	if update.ResultLocator == "" {
		return nil, domain.NewStageError("fetch", handle.ID, domain.ErrDownload, ErrNoResultLocator)
	}

	fetchTok := credential.Token{}
	if prov.Profile().AuthenticatedFetch {
		fetchTok = tok
	}
	artifact, err := prov.Fetch(ctx, update.ResultLocator, fetchTok)
	if err != nil {
		return nil, domain.NewStageError("fetch", handle.ID, domain.ErrDownload, err)
	}

	object, err := p.materializer.Store(ctx, artifact, handle)
	if err != nil {
		return nil, domain.NewStageError("store", handle.ID, domain.ErrStorage, err)
	}

	elapsed := p.clock.Now().Sub(started)
	p.logger.Info().
		Str("provider", prov.Name()).
		Str("job_id", handle.ID).
		Str("url", object.URL).
		Dur("elapsed", elapsed).
		Msg("pipeline: run complete")
	return &Result{Handle: handle, Object: object, Elapsed: elapsed}, nil
}

// poll waits for a terminal status under the provider's deadline. The
// credential refresh checkpoint runs before every status query so a poll
// sequence outlasting a token's lifetime does not fail mid-flight. The
// interval is constant; provider latency is bounded, so no backoff.
func (p *Pipeline) poll(ctx context.Context, prov Provider, creds credential.Provider, tok credential.Token, handle domain.JobHandle, started time.Time) (domain.PollUpdate, credential.Token, error) {
	profile := prov.Profile()
	deadline := started.Add(profile.MaxWait)
	for {
		select {
		case <-ctx.Done():
			return domain.PollUpdate{}, tok, domain.NewStageError("poll", handle.ID, domain.ErrPoll, ctx.Err())
		case <-p.clock.After(profile.PollInterval):
		}
		if p.clock.Now().After(deadline) {
			return domain.PollUpdate{}, tok, domain.NewStageError("poll", handle.ID, domain.ErrTimeout,
				fmt.Errorf("no terminal status after %s", profile.MaxWait))
		}

		refreshed, err := creds.RefreshIfExpiring(tok, p.refreshMargin)
		if err != nil {
			return domain.PollUpdate{}, tok, domain.NewStageError("poll", handle.ID, domain.ErrCredential, err)
		}
		tok = refreshed

		update, err := prov.Status(ctx, handle, tok)
		if err != nil {
			// A single failed status query aborts the run; only healthy
			// queued/running responses keep the cadence going.
			return domain.PollUpdate{}, tok, domain.NewStageError("poll", handle.ID, domain.ErrPoll, err)
		}
		p.logger.Info().
			Str("provider", prov.Name()).
			Str("job_id", handle.ID).
			Dur("elapsed", p.clock.Now().Sub(started)).
			Str("status", string(update.Status)).
			Int("progress", update.Progress).
			Msg("pipeline: poll")

		switch update.Status {
		case domain.JobStatusSucceeded:
			return update, tok, nil
		case domain.JobStatusFailed:
			reason := update.FailureReason
			if reason == "" {
				reason = "provider reported failure without a reason"
			}
			return domain.PollUpdate{}, tok, domain.NewStageError("poll", handle.ID, domain.ErrJobFailed, errors.New(reason))
		}
	}
}
