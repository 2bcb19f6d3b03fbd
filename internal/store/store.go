package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS counsel_runs (
	id                 UUID PRIMARY KEY,
	user_id            TEXT NOT NULL DEFAULT '',
	workspace_id       TEXT NOT NULL DEFAULT '',
	question           TEXT NOT NULL,
	question_type      TEXT NOT NULL,
	domains            TEXT[] NOT NULL DEFAULT '{}',
	urgency            TEXT NOT NULL,
	complexity         TEXT NOT NULL,
	emotional_state    TEXT NOT NULL,
	narrative          TEXT NOT NULL,
	synthesis_model    TEXT NOT NULL,
	success            BOOLEAN NOT NULL,
	degraded           BOOLEAN NOT NULL,
	quality_passed     BOOLEAN NOT NULL,
	failure_reasons    TEXT[] NOT NULL DEFAULT '{}',
	confidence_level   TEXT NOT NULL,
	confidence_pct     INT NOT NULL,
	pipeline_score     DOUBLE PRECISION NOT NULL,
	prompt_tokens      INT NOT NULL,
	completion_tokens  INT NOT NULL,
	total_cost         DOUBLE PRECISION NOT NULL,
	total_time_seconds DOUBLE PRECISION NOT NULL,
	started_at         TIMESTAMPTZ NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS counsel_runs_user_idx ON counsel_runs (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS specialist_results (
	id               UUID PRIMARY KEY,
	run_id           UUID NOT NULL REFERENCES counsel_runs(id) ON DELETE CASCADE,
	agent            TEXT NOT NULL,
	success          BOOLEAN NOT NULL,
	sub_type         TEXT NOT NULL DEFAULT '',
	model            TEXT NOT NULL DEFAULT '',
	confidence_text  TEXT NOT NULL DEFAULT '',
	structured       JSONB,
	error            TEXT NOT NULL DEFAULT '',
	from_cache       BOOLEAN NOT NULL DEFAULT false,
	cost             DOUBLE PRECISION NOT NULL DEFAULT 0,
	elapsed_seconds  DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS user_profiles (
	user_id        TEXT PRIMARY KEY,
	role           TEXT NOT NULL DEFAULT '',
	company        TEXT NOT NULL DEFAULT '',
	industry       TEXT NOT NULL DEFAULT '',
	expertise      TEXT[] NOT NULL DEFAULT '{}',
	decision_style TEXT NOT NULL DEFAULT '',
	recent_topics  TEXT[] NOT NULL DEFAULT '{}',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the tables the store writes to if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
