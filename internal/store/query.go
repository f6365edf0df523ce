package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"incplan/internal/delay"
)

// Runs lists journaled runs, newest first.
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, sources, imin, imax, istop, delay_rate, seed, steps, found, status, started_at, ended_at
		 FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			sources string
			imax    sql.NullInt64
			seed    int64
			ended   sql.NullTime
		)
		if err := rows.Scan(&r.ID, &sources, &r.IMin, &imax, &r.IStop, &r.DelayRate, &seed,
			&r.Steps, &r.Found, &r.Status, &r.StartedAt, &ended); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if sources != "" {
			r.Sources = strings.Split(sources, "\n")
		}
		if imax.Valid {
			n := int(imax.Int64)
			r.IMax = &n
		}
		r.Seed = uint64(seed)
		if ended.Valid {
			t := ended.Time
			r.EndedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Steps returns the steps of a run in order.
func (j *Journal) Steps(ctx context.Context, runID string) ([]Step, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		`SELECT step, status, model_size, elapsed_ms FROM steps WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var (
			s  Step
			ms int64
		)
		if err := rows.Scan(&s.Step, &s.Status, &s.ModelSize, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		s.Elapsed = time.Duration(ms) * time.Millisecond
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// Delays returns the delay events of a run in step order.
func (j *Journal) Delays(ctx context.Context, runID string) ([]delay.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		`SELECT agent, step, duration FROM delays WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query delays: %w", err)
	}
	defer rows.Close()

	var events []delay.Event
	for rows.Next() {
		var ev delay.Event
		if err := rows.Scan(&ev.Agent, &ev.Step, &ev.Duration); err != nil {
			return nil, fmt.Errorf("failed to scan delay: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// PlanFacts returns the rendered plan facts of a run in file order.
func (j *Journal) PlanFacts(ctx context.Context, runID string) ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		`SELECT fact FROM plan_facts WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan facts: %w", err)
	}
	defer rows.Close()

	var facts []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("failed to scan plan fact: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
