package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/mirel/lanes/internal/logger"
	"github.com/mirel/lanes/pkg/dispatch"
)

const defaultMaxErrorBytes = 10 * 1024

// Journal is a SQLite-backed record of executed batches. It implements
// dispatch.Recorder.
type Journal struct {
	db            *sql.DB
	logger        zerolog.Logger
	redactor      *logger.Redactor
	maxErrorBytes int
}

// Config holds journal configuration
type Config struct {
	// Path is the SQLite database file.
	Path string

	Logger zerolog.Logger

	// Redactor masks secret-shaped error text and argument values before
	// they are stored. Optional.
	Redactor *logger.Redactor

	// MaxErrorBytes truncates stored error and argument text. Defaults
	// to 10KB.
	MaxErrorBytes int
}

// Open opens (or creates) the journal database and initializes its schema
func Open(cfg Config) (*Journal, error) {
	if cfg.Path == "" {
		return nil, errors.New("journal path is required")
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	j := &Journal{
		db:            db,
		logger:        cfg.Logger,
		redactor:      cfg.Redactor,
		maxErrorBytes: cfg.MaxErrorBytes,
	}
	if j.maxErrorBytes <= 0 {
		j.maxErrorBytes = defaultMaxErrorBytes
	}

	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	j.logger.Info().Str("path", cfg.Path).Msg("Execution journal opened")

	return j, nil
}

// initSchema creates database tables
func (j *Journal) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS batches (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			status TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_batches_started ON batches(started_at);

		CREATE TABLE IF NOT EXISTS calls (
			batch_id TEXT NOT NULL,
			call_id TEXT NOT NULL,
			tool TEXT NOT NULL,
			lane TEXT NOT NULL,
			state TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			arguments TEXT,
			error TEXT,
			PRIMARY KEY (batch_id, call_id),
			FOREIGN KEY (batch_id) REFERENCES batches(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_calls_tool ON calls(tool);
	`

	_, err := j.db.Exec(schema)
	return err
}

// RecordBatch implements dispatch.Recorder. The batch and all its calls are
// written in one transaction.
func (j *Journal) RecordBatch(ctx context.Context, rec dispatch.BatchRecord) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO batches (id, started_at, duration_ms, status) VALUES (?, ?, ?, ?)`,
		rec.BatchID, rec.StartedAt.UnixMilli(), rec.Duration.Milliseconds(), rec.Status,
	); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	for _, call := range rec.Calls {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO calls (batch_id, call_id, tool, lane, state, duration_ms, arguments, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.BatchID, call.CallID, call.Tool, string(call.Lane), string(call.State),
			call.Duration.Milliseconds(), j.encodeArgs(call.Arguments), j.sanitize(call.Error),
		); err != nil {
			return fmt.Errorf("failed to insert call %s: %w", call.CallID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	j.logger.Debug().
		Str("batch_id", rec.BatchID).
		Int("calls", len(rec.Calls)).
		Str("status", rec.Status).
		Msg("Batch journaled")

	return nil
}

// encodeArgs redacts secret-shaped argument values and serializes the map
// for storage. Arguments never reach the database unredacted.
func (j *Journal) encodeArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return ""
	}
	if j.redactor != nil {
		args = j.redactor.RedactArgs(args)
	}

	data, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	if len(data) > j.maxErrorBytes {
		data = data[:j.maxErrorBytes]
	}

	return string(data)
}

// sanitize redacts and truncates text before it is persisted
func (j *Journal) sanitize(s string) string {
	if j.redactor != nil {
		s = j.redactor.Redact(s)
	}
	if len(s) > j.maxErrorBytes {
		s = s[:j.maxErrorBytes] + "... [truncated]"
	}
	return s
}

// BatchSummary is one journaled batch
type BatchSummary struct {
	BatchID    string
	StartedAt  int64
	DurationMS int64
	Status     string
}

// Batches returns the most recent batches, newest first
func (j *Journal) Batches(ctx context.Context, limit int) ([]BatchSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, status FROM batches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var out []BatchSummary
	for rows.Next() {
		var b BatchSummary
		if err := rows.Scan(&b.BatchID, &b.StartedAt, &b.DurationMS, &b.Status); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		out = append(out, b)
	}

	return out, rows.Err()
}

// Calls returns the journaled calls of one batch, in insertion order
func (j *Journal) Calls(ctx context.Context, batchID string) ([]dispatch.CallRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT call_id, tool, lane, state, duration_ms, arguments, error FROM calls WHERE batch_id = ? ORDER BY rowid`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query calls: %w", err)
	}
	defer rows.Close()

	var out []dispatch.CallRecord
	for rows.Next() {
		var (
			call       dispatch.CallRecord
			lane       string
			state      string
			durationMS int64
			argsText   sql.NullString
			errText    sql.NullString
		)
		if err := rows.Scan(&call.CallID, &call.Tool, &lane, &state, &durationMS, &argsText, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		call.Lane = dispatch.Lane(lane)
		call.State = dispatch.State(state)
		call.Duration = time.Duration(durationMS) * time.Millisecond
		call.Error = errText.String
		if argsText.String != "" {
			// Stored arguments may be truncated; best-effort decode.
			_ = json.Unmarshal([]byte(argsText.String), &call.Arguments)
		}
		out = append(out, call)
	}

	return out, rows.Err()
}

// Close closes the journal database
func (j *Journal) Close() error {
	return j.db.Close()
}
