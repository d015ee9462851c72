package domain

// JobStatus enumerates the canonical lifecycle states a provider job moves
// through. Provider-specific vocabularies are mapped onto the canonical
// values at the provider boundary.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	// JobStatusTimedOut is declared by the orchestrator when the poll deadline
	// passes; providers never report it themselves.
	JobStatusTimedOut JobStatus = "timed_out"
)

// IsTerminal reports whether no further status transition can occur.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusTimedOut:
		return true
	default:
		return false
	}
}

// GenerationRequest is the provider-agnostic description of one generation or
// transcription job. Options carries provider-specific knobs as decoded JSON;
// each provider validates and defaults the subset it understands.
type GenerationRequest struct {
	Prompt       string
	ReferenceURL string
	Options      map[string]any
}

// JobHandle identifies a submitted job for the rest of one orchestration run.
// It is created at submission time and never mutated.
type JobHandle struct {
	Provider string
	ID       string
}

// PollUpdate is one status observation, already mapped onto the canonical
// vocabulary. ResultLocator is set only when Status is succeeded;
// FailureReason only when Status is failed.
type PollUpdate struct {
	Status        JobStatus
	Progress      int
	ResultLocator string
	FailureReason string
}

// Artifact holds the finished job output.
type Artifact struct {
	Data        []byte
	ContentType string
}

// StorageObject locates a materialized artifact in durable storage.
type StorageObject struct {
	Bucket string
	Key    string
	URL    string
}
