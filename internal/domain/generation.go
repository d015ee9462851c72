package domain

import (
	"context"
	"time"
)

// Generation is the durable record of one orchestration run. It is written
// once the run reaches a terminal outcome; nothing in the system resumes work
// from these rows.
type Generation struct {
	ID           string
	Provider     string
	JobID        string
	Status       JobStatus
	Prompt       string
	ResultURL    string
	StorageKey   string
	ErrorMessage string
	CreatedAt    time.Time
}

// GenerationRepository persists run outcomes.
type GenerationRepository interface {
	Create(ctx context.Context, gen *Generation) error
	ListRecent(ctx context.Context, limit int) ([]Generation, error)
}
