// Package repo provides PostgreSQL-backed persistence for generation records.
package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"mediagen/internal/domain"
)

// GenerationRepositoryPG records orchestration outcomes in PostgreSQL.
type GenerationRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewGenerationRepository creates a repository backed by the given pool.
func NewGenerationRepository(pool *pgxpool.Pool) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{pool: pool}
}

// EnsureSchema creates the generations table when it does not exist yet. The
// schema is small enough that in-process bootstrap beats a migration tool.
func (r *GenerationRepositoryPG) EnsureSchema(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS generations (
    id            UUID PRIMARY KEY,
    provider      TEXT NOT NULL,
    job_id        TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL,
    prompt        TEXT NOT NULL DEFAULT '',
    result_url    TEXT NOT NULL DEFAULT '',
    storage_key   TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_generations_created_at ON generations (created_at DESC);
`
	_, err := r.pool.Exec(ctx, query)
	return err
}

// Create inserts a generation record.
func (r *GenerationRepositoryPG) Create(ctx context.Context, gen *domain.Generation) error {
	query := `
INSERT INTO generations (id, provider, job_id, status, prompt, result_url, storage_key, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := r.pool.Exec(ctx, query,
		gen.ID,
		gen.Provider,
		gen.JobID,
		gen.Status,
		gen.Prompt,
		gen.ResultURL,
		gen.StorageKey,
		gen.ErrorMessage,
	)
	return err
}

// ListRecent returns the most recent generation records, newest first.
func (r *GenerationRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.Generation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := `
SELECT id, provider, job_id, status, prompt, result_url, storage_key, error_message, created_at
FROM generations
ORDER BY created_at DESC
LIMIT $1;
`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Generation
	for rows.Next() {
		var gen domain.Generation
		if err := rows.Scan(
			&gen.ID,
			&gen.Provider,
			&gen.JobID,
			&gen.Status,
			&gen.Prompt,
			&gen.ResultURL,
			&gen.StorageKey,
			&gen.ErrorMessage,
			&gen.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, gen)
	}
	return out, rows.Err()
}
