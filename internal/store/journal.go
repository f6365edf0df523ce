// Package store keeps an optional SQLite journal of incremental runs: the run
// parameters, every step's status, injected delays and the extracted plan.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"incplan/internal/delay"
	"incplan/internal/incremental"
	"incplan/internal/types"

	_ "modernc.org/sqlite"
)

// Journal records runs in a SQLite database.
type Journal struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
	logger *zap.Logger
}

// RunInfo is the configuration a run was started with.
type RunInfo struct {
	Sources   []string
	IMin      int
	IMax      *int
	IStop     string
	DelayRate float64
	Seed      uint64
}

// Run is a journaled run.
type Run struct {
	ID        string
	Sources   []string
	IMin      int
	IMax      *int
	IStop     string
	DelayRate float64
	Seed      uint64
	Steps     int
	Found     bool
	Status    string
	StartedAt time.Time
	EndedAt   *time.Time
}

// Step is a journaled step.
type Step struct {
	Step      int
	Status    string
	ModelSize int
	Elapsed   time.Duration
}

// Open initializes the journal database at path.
func Open(path string, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	j := &Journal{db: db, dbPath: path, logger: logger}
	if err := j.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("Journal opened", zap.String("path", path))
	return j, nil
}

func (j *Journal) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		sources TEXT NOT NULL,
		imin INTEGER NOT NULL,
		imax INTEGER,
		istop TEXT NOT NULL,
		delay_rate REAL NOT NULL,
		seed INTEGER NOT NULL,
		steps INTEGER NOT NULL DEFAULT 0,
		found INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS steps (
		run_id TEXT NOT NULL REFERENCES runs(id),
		step INTEGER NOT NULL,
		status TEXT NOT NULL,
		model_size INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE TABLE IF NOT EXISTS delays (
		run_id TEXT NOT NULL REFERENCES runs(id),
		step INTEGER NOT NULL,
		agent INTEGER NOT NULL,
		duration INTEGER NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE TABLE IF NOT EXISTS plan_facts (
		run_id TEXT NOT NULL REFERENCES runs(id),
		position INTEGER NOT NULL,
		fact TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create journal schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// BeginRun records a new run and returns its id.
func (j *Journal) BeginRun(ctx context.Context, info RunInfo) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	id := uuid.New().String()
	var imax sql.NullInt64
	if info.IMax != nil {
		imax = sql.NullInt64{Int64: int64(*info.IMax), Valid: true}
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, sources, imin, imax, istop, delay_rate, seed, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, strings.Join(info.Sources, "\n"), info.IMin, imax, info.IStop, info.DelayRate,
		int64(info.Seed), time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	j.logger.Debug("Run started", zap.String("run_id", id))
	return id, nil
}

// FinishRun stores the outcome of a run and the facts written to its plan file.
func (j *Journal) FinishRun(ctx context.Context, runID string, res *incremental.Result, planFacts []types.Atom) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	status := ""
	if res.Last != nil {
		status = res.Last.Status.String()
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE runs SET steps = ?, found = ?, status = ?, ended_at = ? WHERE id = ?`,
		res.Steps, res.Found, status, time.Now().UTC(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown run %s", runID)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO plan_facts (run_id, position, fact) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare plan insert: %w", err)
	}
	defer stmt.Close()
	for i, atom := range planFacts {
		if _, err := stmt.ExecContext(ctx, runID, i, atom.String()); err != nil {
			return fmt.Errorf("failed to record plan fact: %w", err)
		}
	}
	return tx.Commit()
}

func (j *Journal) recordStep(ctx context.Context, runID string, rec incremental.StepRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO steps (run_id, step, status, model_size, elapsed_ms) VALUES (?, ?, ?, ?, ?)`,
		runID, rec.Step, rec.Result.Status.String(), len(rec.Result.Model), rec.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record step %d: %w", rec.Step, err)
	}
	return nil
}

func (j *Journal) recordDelay(ctx context.Context, runID string, ev delay.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO delays (run_id, step, agent, duration) VALUES (?, ?, ?, ?)`,
		runID, ev.Step, ev.Agent, ev.Duration,
	)
	if err != nil {
		return fmt.Errorf("failed to record delay at step %d: %w", ev.Step, err)
	}
	return nil
}

// Recorder returns an observer that journals steps and delays under runID.
func (j *Journal) Recorder(runID string) incremental.Observer {
	return &recorder{journal: j, runID: runID}
}

type recorder struct {
	journal *Journal
	runID   string
}

func (r *recorder) DelayInjected(ctx context.Context, ev delay.Event) error {
	return r.journal.recordDelay(ctx, r.runID, ev)
}

func (r *recorder) StepCompleted(ctx context.Context, rec incremental.StepRecord) error {
	return r.journal.recordStep(ctx, r.runID, rec)
}
