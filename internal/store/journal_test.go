package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incplan/internal/delay"
	"incplan/internal/incremental"
	"incplan/internal/types"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal", "runs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRecordsRun(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	imax := 5
	runID, err := j.BeginRun(ctx, RunInfo{
		Sources:   []string{"instance.lp", "encoding.lp"},
		IMin:      1,
		IMax:      &imax,
		IStop:     "SAT",
		DelayRate: 0.5,
		Seed:      10,
	})
	require.NoError(t, err)
	_, err = uuid.Parse(runID)
	require.NoError(t, err, "run ids are uuids")

	obs := j.Recorder(runID)
	ev := delay.Event{Agent: 1, Step: 1, Duration: 2}
	require.NoError(t, obs.StepCompleted(ctx, incremental.StepRecord{
		Step: 0, Result: types.SolveResult{Status: types.StatusUnsatisfiable}, Elapsed: 3 * time.Millisecond,
	}))
	require.NoError(t, obs.DelayInjected(ctx, ev))
	model := []types.Atom{types.NewAtom("orig", types.Name("a1"), types.Name("c0_0"), types.Int(0), types.Int(1))}
	require.NoError(t, obs.StepCompleted(ctx, incremental.StepRecord{
		Step: 1, Delay: &ev, Result: types.SolveResult{Status: types.StatusSatisfiable, Model: model},
	}))

	last := types.SolveResult{Status: types.StatusSatisfiable, Model: model}
	res := &incremental.Result{Steps: 2, Last: &last, Model: model, ModelStep: 1, Found: true}
	require.NoError(t, j.FinishRun(ctx, runID, res, model))

	runs, err := j.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	r := runs[0]
	assert.Equal(t, runID, r.ID)
	assert.Equal(t, []string{"instance.lp", "encoding.lp"}, r.Sources)
	require.NotNil(t, r.IMax)
	assert.Equal(t, 5, *r.IMax)
	assert.Equal(t, uint64(10), r.Seed)
	assert.Equal(t, 2, r.Steps)
	assert.True(t, r.Found)
	assert.Equal(t, "SAT", r.Status)
	assert.NotNil(t, r.EndedAt)

	steps, err := j.Steps(ctx, runID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "UNSAT", steps[0].Status)
	assert.Equal(t, 3*time.Millisecond, steps[0].Elapsed)
	assert.Equal(t, 1, steps[1].ModelSize)

	delays, err := j.Delays(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, []delay.Event{ev}, delays)

	facts, err := j.PlanFacts(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, []string{"orig(/a1,/c0_0,0,1)"}, facts)
}

func TestJournalUnboundedRunWithoutPlan(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	runID, err := j.BeginRun(ctx, RunInfo{IMin: 1, IStop: "SAT"})
	require.NoError(t, err)
	require.NoError(t, j.FinishRun(ctx, runID, &incremental.Result{}, nil))

	runs, err := j.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].IMax)
	assert.Nil(t, runs[0].Sources)
	assert.False(t, runs[0].Found)
	assert.Equal(t, "", runs[0].Status)

	facts, err := j.PlanFacts(ctx, runID)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestJournalFinishUnknownRun(t *testing.T) {
	j := openTestJournal(t)
	err := j.FinishRun(context.Background(), "missing", &incremental.Result{}, nil)
	assert.Error(t, err)
}

func TestJournalDuplicateStep(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)
	runID, err := j.BeginRun(ctx, RunInfo{IStop: "SAT"})
	require.NoError(t, err)

	rec := incremental.StepRecord{Step: 0, Result: types.SolveResult{Status: types.StatusUnknown}}
	obs := j.Recorder(runID)
	require.NoError(t, obs.StepCompleted(ctx, rec))
	assert.Error(t, obs.StepCompleted(ctx, rec))
}

func TestJournalInMemory(t *testing.T) {
	j, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer j.Close()

	_, err = j.BeginRun(context.Background(), RunInfo{IStop: "SAT"})
	require.NoError(t, err)
	runs, err := j.Runs(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
