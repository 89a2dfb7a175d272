package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/rs/zerolog"
)

const schema = `CREATE TABLE IF NOT EXISTS guardrail_audit (
	id           BIGSERIAL PRIMARY KEY,
	request_id   TEXT NOT NULL,
	source       TEXT NOT NULL,
	decision     TEXT NOT NULL,
	final_state  TEXT NOT NULL,
	llm_invoked  BOOLEAN NOT NULL,
	triggered    JSONB NOT NULL,
	warnings     JSONB NOT NULL,
	error        TEXT,
	duration_ms  BIGINT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertQuery = `INSERT INTO guardrail_audit
	(request_id, source, decision, final_state, llm_invoked, triggered, warnings, error, duration_ms)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store writes one row per guardrail decision. Prompt and completion text
// are never stored.
type Store struct {
	db     execer
	pool   *pgxpool.Pool
	logger *zerolog.Logger
}

func NewStore(db execer, logger *zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// Open connects to Postgres and creates the audit table if needed.
func Open(ctx context.Context, databaseURL string, logger *zerolog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewStore(pool, logger)
	s.pool = pool

	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info().Msg("audit store connected")
	return s, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create guardrail_audit table: %w", err)
	}
	return nil
}

// Record stores the decision. source names the surface that served the
// request, e.g. "api" or "stream".
func (s *Store) Record(ctx context.Context, source string, result models.GuardrailResult) error {
	triggered := result.Triggered
	if triggered == nil {
		triggered = []models.TriggeredRail{}
	}
	triggeredJSON, err := json.Marshal(triggered)
	if err != nil {
		return fmt.Errorf("failed to marshal triggered rails: %w", err)
	}

	warnings := result.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	var errText *string
	if result.Error != "" {
		errText = &result.Error
	}

	_, err = s.db.Exec(ctx, insertQuery,
		result.RequestID,
		source,
		string(result.Decision),
		string(result.FinalState()),
		result.LLMInvoked,
		triggeredJSON,
		warningsJSON,
		errText,
		result.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record %s: %w", result.RequestID, err)
	}

	s.logger.Debug().
		Str("request_id", result.RequestID).
		Str("source", source).
		Msg("audit record stored")

	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
