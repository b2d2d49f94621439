package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gobotctl/internal/config"
	"github.com/jonesrussell/gobotctl/internal/dispatch"
	"github.com/jonesrussell/gobotctl/internal/testhelpers"
)

type fakeSweeper struct {
	swept int64
	err   error
	calls int
}

func (f *fakeSweeper) CleanupStale(_ context.Context) (int64, error) {
	f.calls++
	return f.swept, f.err
}

type fakeDispatcher struct {
	result *dispatch.Result
	err    error
	calls  int
}

func (f *fakeDispatcher) Dispatch(_ context.Context) (*dispatch.Result, error) {
	f.calls++
	return f.result, f.err
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	cfg := config.SchedulerConfig{StaleSweepSpec: "not a cron spec"}

	_, err := New(cfg, &fakeSweeper{}, &fakeDispatcher{}, testhelpers.NewTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register stale sweep")
}

func TestNewAllowsEmptySpecs(t *testing.T) {
	_, err := New(config.SchedulerConfig{}, &fakeSweeper{}, &fakeDispatcher{}, testhelpers.NewTestLogger())
	require.NoError(t, err)
}

func TestSweepStaleRunsCleanup(t *testing.T) {
	sweeper := &fakeSweeper{swept: 3}
	s, err := New(config.SchedulerConfig{}, sweeper, &fakeDispatcher{}, testhelpers.NewTestLogger())
	require.NoError(t, err)

	s.sweepStale()

	assert.Equal(t, 1, sweeper.calls)
}

func TestSweepStaleSurvivesStoreError(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("db down")}
	s, err := New(config.SchedulerConfig{}, sweeper, &fakeDispatcher{}, testhelpers.NewTestLogger())
	require.NoError(t, err)

	// Must not panic; the failure is logged and the next tick retries.
	s.sweepStale()

	assert.Equal(t, 1, sweeper.calls)
}

func TestAutoDispatchRunsDispatcher(t *testing.T) {
	dispatcher := &fakeDispatcher{result: &dispatch.Result{Dispatched: 5, Batches: 1}}
	s, err := New(config.SchedulerConfig{}, &fakeSweeper{}, dispatcher, testhelpers.NewTestLogger())
	require.NoError(t, err)

	s.autoDispatch()

	assert.Equal(t, 1, dispatcher.calls)
}
