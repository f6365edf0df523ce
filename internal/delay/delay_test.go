package delay

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource replays fixed samples and records the IntN bounds it was asked for.
type scriptedSource struct {
	floats []float64
	ints   []int
	bounds []int
}

func (s *scriptedSource) Float64() float64 {
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedSource) IntN(n int) int {
	s.bounds = append(s.bounds, n)
	v := s.ints[0]
	s.ints = s.ints[1:]
	if v >= n {
		panic("scripted value out of range")
	}
	return v
}

func TestProbability(t *testing.T) {
	assert.Equal(t, 0.0, Probability(0))
	assert.Equal(t, 0.0, Probability(-3))
	assert.InDelta(t, 1-math.Exp(-0.5), Probability(0.5), 1e-12)
	assert.Less(t, Probability(50), 1.0+1e-12)
}

func TestRandomPolicy_ZeroRateNeverDelays(t *testing.T) {
	policy, err := NewRandomPolicy(Params{Rate: 0, MinDuration: 1, MaxDuration: 5, Agents: 3}, NewSeededSource(1))
	require.NoError(t, err)

	for step := 1; step <= 10000; step++ {
		if ev, ok := policy.MaybeDelay(step); ok {
			t.Fatalf("rate 0 produced a delay at step %d: %+v", step, ev)
		}
	}
}

func TestRandomPolicy_NegativeRateNeverDelays(t *testing.T) {
	policy, err := NewRandomPolicy(Params{Rate: -1, MinDuration: 1, MaxDuration: 1, Agents: 1}, NewSeededSource(7))
	require.NoError(t, err)
	for step := 1; step <= 1000; step++ {
		_, ok := policy.MaybeDelay(step)
		require.False(t, ok)
	}
}

func TestRandomPolicy_SeededReplay(t *testing.T) {
	params := Params{Rate: 1.2, MinDuration: 1, MaxDuration: 4, Agents: 5}
	run := func() []Event {
		policy, err := NewRandomPolicy(params, NewSeededSource(10))
		require.NoError(t, err)
		var events []Event
		for step := 1; step <= 200; step++ {
			if ev, ok := policy.MaybeDelay(step); ok {
				events = append(events, ev)
			}
		}
		return events
	}

	first, second := run(), run()
	require.NotEmpty(t, first, "rate 1.2 over 200 steps should delay at least once")
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("seeded runs diverged (-first +second):\n%s", diff)
	}
}

func TestRandomPolicy_DurationRangeIsInclusive(t *testing.T) {
	params := Params{Rate: 10, MinDuration: 2, MaxDuration: 4, Agents: 3}

	// Lowest index maps to MinDuration.
	src := &scriptedSource{floats: []float64{0}, ints: []int{0, 1}}
	policy, err := NewRandomPolicy(params, src)
	require.NoError(t, err)
	ev, ok := policy.MaybeDelay(3)
	require.True(t, ok)
	assert.Equal(t, Event{Agent: 1, Step: 3, Duration: 2}, ev)
	assert.Equal(t, []int{3, 3}, src.bounds, "duration draws over max-min+1 values, agent over the population")

	// Highest index maps to MaxDuration, with no extra offset.
	src = &scriptedSource{floats: []float64{0}, ints: []int{2, 2}}
	policy, err = NewRandomPolicy(params, src)
	require.NoError(t, err)
	ev, ok = policy.MaybeDelay(9)
	require.True(t, ok)
	assert.Equal(t, Event{Agent: 2, Step: 9, Duration: 4}, ev)
}

func TestRandomPolicy_SeededDurationsStayInBounds(t *testing.T) {
	params := Params{Rate: 5, MinDuration: 2, MaxDuration: 4, Agents: 2}
	policy, err := NewRandomPolicy(params, NewSeededSource(42))
	require.NoError(t, err)

	seen := map[int]bool{}
	for step := 1; step <= 5000; step++ {
		ev, ok := policy.MaybeDelay(step)
		if !ok {
			continue
		}
		require.GreaterOrEqual(t, ev.Duration, 2)
		require.LessOrEqual(t, ev.Duration, 4)
		require.GreaterOrEqual(t, ev.Agent, 0)
		require.Less(t, ev.Agent, 2)
		seen[ev.Duration] = true
	}
	assert.Equal(t, map[int]bool{2: true, 3: true, 4: true}, seen, "both range ends must be reachable")
}

func TestRandomPolicy_ZeroDurationIsNoDelay(t *testing.T) {
	src := &scriptedSource{floats: []float64{0}, ints: []int{0}}
	policy, err := NewRandomPolicy(Params{Rate: 3, MinDuration: 0, MaxDuration: 2, Agents: 4}, src)
	require.NoError(t, err)

	_, ok := policy.MaybeDelay(1)
	assert.False(t, ok)
	assert.Empty(t, src.ints)
}

func TestRandomPolicy_MissConsumesOneSample(t *testing.T) {
	src := &scriptedSource{floats: []float64{0.99}}
	policy, err := NewRandomPolicy(Params{Rate: 0.1, MinDuration: 1, MaxDuration: 2, Agents: 1}, src)
	require.NoError(t, err)

	_, ok := policy.MaybeDelay(1)
	assert.False(t, ok)
	assert.Empty(t, src.bounds)
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr string
	}{
		{"ok", Params{Rate: 0.3, MinDuration: 1, MaxDuration: 3, Agents: 2}, ""},
		{"min above max", Params{Rate: 1, MinDuration: 4, MaxDuration: 3, Agents: 2}, "exceeds"},
		{"negative min", Params{Rate: 1, MinDuration: -1, MaxDuration: 3, Agents: 2}, ">= 0"},
		{"no agents", Params{Rate: 1, MinDuration: 1, MaxDuration: 3}, "agent population"},
		{"nan", Params{Rate: math.NaN(), MinDuration: 1, MaxDuration: 1, Agents: 1}, "finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEventRendering(t *testing.T) {
	ev := Event{Agent: 2, Step: 7, Duration: 3}
	assert.Equal(t, "delay(2,7,3)", ev.Atom().String())
	assert.Equal(t, "delay(2,3,7).", ev.LogLine())
}

func TestReadAgentCount(t *testing.T) {
	n, err := ReadAgentCount(strings.NewReader("% flatland instance\n% agents: 4\nrest\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = ReadAgentCount(strings.NewReader("only one line\n"))
	assert.Error(t, err)

	_, err = ReadAgentCount(strings.NewReader("x\nagents none\n"))
	assert.Error(t, err)
}

func TestAgentCountFromFiles(t *testing.T) {
	dir := t.TempDir()
	enc := filepath.Join(dir, "encoding.lp")
	inst := filepath.Join(dir, "instance.lp")
	require.NoError(t, os.WriteFile(enc, []byte("step(T) :- time(T).\n"), 0644))
	require.NoError(t, os.WriteFile(inst, []byte("% instance\n% number of agents 3\n"), 0644))

	n, path, err := AgentCountFromFiles([]string{"-", enc, inst})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, inst, path)

	// First qualifying file wins, instance or not.
	numbered := filepath.Join(dir, "numbered.lp")
	require.NoError(t, os.WriteFile(numbered, []byte("% encoding\n% horizon 12\nmax_step(12).\n"), 0644))
	n, path, err = AgentCountFromFiles([]string{numbered, inst})
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, numbered, path)

	_, _, err = AgentCountFromFiles([]string{"-"})
	assert.Error(t, err)
}
