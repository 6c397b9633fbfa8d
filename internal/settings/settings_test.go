package settings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skinarb/skinarb/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(&Config{Initial: Defaults(), Logger: zap.NewNop()})
	require.NoError(t, err)
	return s
}

func f(v float64) *float64 { return &v }

func TestDefaultsAreValid(t *testing.T) {
	s := newTestStore(t)

	snap := s.Current()
	assert.InDelta(t, 3.0, snap.MinDiff, 1e-9)
	assert.InDelta(t, 5.0, snap.MaxDiff, 1e-9)
	assert.Equal(t, 300, snap.MaxOutput)
}

func TestApplyPartialUpdate(t *testing.T) {
	s := newTestStore(t)

	applied, err := s.Apply(Update{MaxDiff: f(8)})
	require.NoError(t, err)

	assert.InDelta(t, 8.0, applied.MaxDiff, 1e-9)
	// Untouched fields keep their values
	assert.InDelta(t, 3.0, applied.MinDiff, 1e-9)
	assert.Equal(t, applied, s.Current())
}

func TestApplyRejectsInvertedBand(t *testing.T) {
	s := newTestStore(t)
	before := s.Current()

	_, err := s.Apply(Update{MinDiff: f(10), MaxDiff: f(2)})
	require.Error(t, err)

	// Nothing changed
	assert.Equal(t, before, s.Current())
}

func TestApplyRejectsNonPositiveMaxOutput(t *testing.T) {
	s := newTestStore(t)
	zero := 0
	_, err := s.Apply(Update{MaxOutput: &zero})
	assert.Error(t, err)
}

func TestApplyEnforcesBounds(t *testing.T) {
	s := newTestStore(t)
	before := s.Current()

	i := func(v int) *int { return &v }
	d := func(v time.Duration) *time.Duration { return &v }

	tests := []struct {
		name   string
		update Update
	}{
		{"negative min diff", Update{MinDiff: f(-1)}},
		{"max output over ceiling", Update{MaxOutput: i(20000)}},
		{"full interval too short", Update{FullInterval: d(29 * time.Second)}},
		{"incremental interval too short", Update{IncrementalInterval: d(time.Nanosecond)}},
		{"zero page cap", Update{BuffMaxPages: i(0)}},
		{"page size over ceiling", Update{YoupinPageSize: i(250)}},
		{"negative delay", Update{BuffMinDelay: d(-time.Second)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Apply(tt.update)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrValidationFailed)
			assert.Equal(t, before, s.Current())
		})
	}
}

func TestMinimumCadenceIsAccepted(t *testing.T) {
	s := newTestStore(t)

	interval := 30 * time.Second
	applied, err := s.Apply(Update{IncrementalInterval: &interval})
	require.NoError(t, err)
	assert.Equal(t, interval, applied.IncrementalInterval)
}

func TestFilterChangeInvokesHook(t *testing.T) {
	s := newTestStore(t)

	calls := 0
	s.OnFilterChange(func() { calls++ })

	_, err := s.Apply(Update{MinDiff: f(2)})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = s.Apply(Update{MaxBuyPrice: f(2000)})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCadenceChangeDoesNotInvokeHook(t *testing.T) {
	s := newTestStore(t)

	calls := 0
	s.OnFilterChange(func() { calls++ })

	interval := 30 * time.Minute
	_, err := s.Apply(Update{IncrementalInterval: &interval})
	require.NoError(t, err)

	assert.Equal(t, 0, calls)
	assert.Equal(t, interval, s.Current().IncrementalInterval)
}

func TestPacingChangeInvokesPacingHook(t *testing.T) {
	s := newTestStore(t)

	filterCalls := 0
	s.OnFilterChange(func() { filterCalls++ })

	var got []Snapshot
	s.OnPacingChange(func(snap Snapshot) { got = append(got, snap) })

	delay := 5 * time.Second
	_, err := s.Apply(Update{BuffMinDelay: &delay})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, delay, got[0].BuffMinDelay)
	// Pacing knobs do not invalidate the interesting-key cache
	assert.Equal(t, 0, filterCalls)

	pages := 200
	_, err = s.Apply(Update{YoupinMaxPages: &pages})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, pages, got[1].YoupinMaxPages)
}

func TestFailedUpdateDoesNotInvokeHook(t *testing.T) {
	s := newTestStore(t)

	calls := 0
	s.OnFilterChange(func() { calls++ })

	_, err := s.Apply(Update{MinBuyPrice: f(-1)})
	require.Error(t, err)
	assert.Equal(t, 0, calls)
}
