package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/rs/zerolog"
)

type fakeExecer struct {
	sql  []string
	args [][]any
	err  error
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func TestStore_Record(t *testing.T) {
	db := &fakeExecer{}
	store := NewStore(db, newTestLogger())

	result := models.GuardrailResult{
		RequestID: "req-1",
		Decision:  models.DecisionBlocked,
		Triggered: []models.TriggeredRail{{Name: "pii", Stage: models.StageInput, Outcome: models.OutcomeBlock, Score: 1}},
		States:    []models.State{models.StateIdle, models.StateRunningInputRails, models.StateBlocked},
		Duration:  1500 * time.Millisecond,
	}

	if err := store.Record(context.Background(), "api", result); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}

	if len(db.sql) != 1 || !strings.Contains(db.sql[0], "INSERT INTO guardrail_audit") {
		t.Fatalf("unexpected statements %v", db.sql)
	}

	args := db.args[0]
	if args[0] != "req-1" || args[1] != "api" || args[2] != "blocked" || args[3] != "blocked" {
		t.Errorf("unexpected args %v", args[:4])
	}
	if got := string(args[5].([]byte)); !strings.Contains(got, `"name":"pii"`) {
		t.Errorf("triggered json %s", got)
	}
	if got := string(args[6].([]byte)); got != "[]" {
		t.Errorf("warnings json %s, want []", got)
	}
	if args[7].(*string) != nil {
		t.Errorf("expected NULL error column")
	}
	if args[8] != int64(1500) {
		t.Errorf("duration_ms %v, want 1500", args[8])
	}
}

func TestStore_RecordError(t *testing.T) {
	db := &fakeExecer{err: errors.New("connection reset")}
	store := NewStore(db, newTestLogger())

	err := store.Record(context.Background(), "stream", models.GuardrailResult{RequestID: "req-2", Error: "llm unavailable"})
	if err == nil || !strings.Contains(err.Error(), "req-2") {
		t.Errorf("expected wrapped insert error, got %v", err)
	}
	if got := *db.args[0][7].(*string); got != "llm unavailable" {
		t.Errorf("error column %q", got)
	}
}

func TestStore_EnsureSchema(t *testing.T) {
	db := &fakeExecer{}
	store := NewStore(db, newTestLogger())

	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() failed: %v", err)
	}
	if !strings.Contains(db.sql[0], "CREATE TABLE IF NOT EXISTS guardrail_audit") {
		t.Errorf("unexpected statement %q", db.sql[0])
	}
}
