package domain

import (
	"errors"
	"fmt"
)

// Error kinds for the orchestration pipeline. Each stage wraps its failure in
// a StageError carrying exactly one of these, so callers can classify with
// errors.Is without inspecting messages.
var (
	ErrValidation = errors.New("invalid request")
	ErrCredential = errors.New("credential failure")
	ErrSubmission = errors.New("submission failure")
	ErrPoll       = errors.New("status poll failure")
	ErrJobFailed  = errors.New("job failed upstream")
	ErrTimeout    = errors.New("job timed out")
	ErrDownload   = errors.New("artifact download failure")
	ErrStorage    = errors.New("storage failure")
)

// Submission failures subdivide further: the provider refused the request
// outright, or it accepted but the acceptance carried no job identifier.
var (
	ErrUpstreamRejected    = errors.New("upstream rejected submission")
	ErrMalformedAcceptance = errors.New("acceptance missing job identifier")
)

// UpstreamError preserves the provider's own HTTP status for rejections so
// the boundary can echo it to the caller.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s (http %d)", e.Message, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstreamRejected }

// StageError annotates a pipeline failure with the stage it occurred in and,
// once known, the upstream job id.
type StageError struct {
	Stage string
	JobID string
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("%s (job %s): %v", e.Stage, e.JobID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause so that
// errors.Is matches either.
func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// NewStageError wraps err as a failure of the named stage.
func NewStageError(stage, jobID string, kind, err error) *StageError {
	return &StageError{Stage: stage, JobID: jobID, Kind: kind, Err: err}
}
