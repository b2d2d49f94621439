package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gobotctl/internal/engine"
	"github.com/jonesrussell/gobotctl/internal/models"
	"github.com/jonesrussell/gobotctl/internal/testhelpers"
)

type fakeEngine struct {
	mu sync.Mutex

	workerExists    bool
	workerExistsErr error
	createErr       error
	resumeErr       error
	pauseSiteErr    error
	stopErr         error

	created      []string
	resumed      []string
	pausedSites  []string
	removed      []string
	stopped      bool
	paused       bool
	resumedAll   bool
	started      bool
	cleared      map[string]int
	clearedAll   int
	status       *engine.EngineStatus
	statusErr    error
	blockCreate  chan struct{}
	reloadResult *engine.ReloadResult
}

func (f *fakeEngine) Health(context.Context) error { return nil }

func (f *fakeEngine) Status(context.Context) (*engine.EngineStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if f.status != nil {
		return f.status, nil
	}
	return &engine.EngineStatus{Worker: engine.WorkerState{IsRunning: true}}, nil
}

func (f *fakeEngine) Start(context.Context) error {
	f.started = true
	return nil
}

func (f *fakeEngine) Stop(context.Context) error {
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stopped = true
	return nil
}

func (f *fakeEngine) Pause(context.Context) error {
	f.paused = true
	return nil
}

func (f *fakeEngine) Resume(context.Context) error {
	f.resumedAll = true
	return nil
}

func (f *fakeEngine) Reload(context.Context) (*engine.ReloadResult, error) {
	if f.reloadResult != nil {
		return f.reloadResult, nil
	}
	return &engine.ReloadResult{}, nil
}

func (f *fakeEngine) ForceReload(context.Context) (*engine.SyncResult, error) {
	return &engine.SyncResult{WorkerCount: 1}, nil
}

func (f *fakeEngine) Sync(context.Context) (*engine.SyncResult, error) {
	return &engine.SyncResult{WorkerCount: 1}, nil
}

func (f *fakeEngine) WorkerExists(_ context.Context, slug string) (bool, error) {
	if f.workerExistsErr != nil {
		return false, f.workerExistsErr
	}
	return f.workerExists, nil
}

func (f *fakeEngine) CreateWorker(_ context.Context, slug string, req engine.CreateWorkerRequest) error {
	if f.blockCreate != nil {
		<-f.blockCreate
	}
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, fmt.Sprintf("%s/%d", slug, req.Concurrency))
	return nil
}

func (f *fakeEngine) RemoveWorker(_ context.Context, slug string) error {
	f.removed = append(f.removed, slug)
	return nil
}

func (f *fakeEngine) PauseWebsite(_ context.Context, slug string) error {
	if f.pauseSiteErr != nil {
		return f.pauseSiteErr
	}
	f.pausedSites = append(f.pausedSites, slug)
	return nil
}

func (f *fakeEngine) ResumeWebsite(_ context.Context, slug string) error {
	if f.resumeErr != nil {
		return f.resumeErr
	}
	f.resumed = append(f.resumed, slug)
	return nil
}

func (f *fakeEngine) ClearQueue(_ context.Context, slug string) (int, error) {
	if f.cleared == nil {
		f.cleared = map[string]int{}
	}
	f.cleared[slug] = 7
	return 7, nil
}

func (f *fakeEngine) ClearAllQueues(context.Context) (int, error) {
	f.clearedAll = 20
	return 20, nil
}

type fakeWebsites struct {
	sites  map[int64]*models.Website
	active map[int64]bool
}

func newFakeWebsites(sites ...*models.Website) *fakeWebsites {
	f := &fakeWebsites{sites: map[int64]*models.Website{}, active: map[int64]bool{}}
	for _, s := range sites {
		f.sites[s.ID] = s
		f.active[s.ID] = s.IsActive
	}
	return f
}

func (f *fakeWebsites) GetByID(_ context.Context, id int64) (*models.Website, error) {
	s, ok := f.sites[id]
	if !ok {
		return nil, fmt.Errorf("website %d not found", id)
	}
	copied := *s
	copied.IsActive = f.active[id]
	return &copied, nil
}

func (f *fakeWebsites) ListAll(_ context.Context) ([]*models.Website, error) {
	var all []*models.Website
	for id, s := range f.sites {
		copied := *s
		copied.IsActive = f.active[id]
		all = append(all, &copied)
	}
	return all, nil
}

func (f *fakeWebsites) SetActive(_ context.Context, id int64, activeFlag bool) error {
	f.active[id] = activeFlag
	return nil
}

type fakeSessions struct {
	transitions []string
	affected    int64
	activeList  []*models.BotSession
}

func (f *fakeSessions) TransitionActive(_ context.Context, from []string, to string) (int64, error) {
	f.transitions = append(f.transitions, fmt.Sprintf("%v->%s", from, to))
	return f.affected, nil
}

func (f *fakeSessions) ListActive(_ context.Context) ([]*models.BotSession, error) {
	return f.activeList, nil
}

type fakeEntries struct {
	resetWebsite *int64
	resetGlobal  bool
	resetCount   int64
}

func (f *fakeEntries) ResetQueued(_ context.Context, websiteID *int64) (int64, error) {
	if websiteID == nil {
		f.resetGlobal = true
	} else {
		f.resetWebsite = websiteID
	}
	return f.resetCount, nil
}

func (f *fakeEntries) Stats(_ context.Context, _ *int64) (*models.EntryStats, error) {
	return &models.EntryStats{Total: 5, Pending: 5}, nil
}

func testWebsite(id int64, slug string, active bool, concurrency int) *models.Website {
	return &models.Website{
		ID:               id,
		Name:             slug,
		Slug:             slug,
		IsActive:         active,
		ConcurrencyLimit: concurrency,
	}
}

func newTestGateway(eng *fakeEngine, sites *fakeWebsites) (*Gateway, *fakeSessions, *fakeEntries) {
	sessions := &fakeSessions{}
	entries := &fakeEntries{}
	g := NewGateway(eng, sites, sessions, entries, nil, testhelpers.NewTestLogger())
	return g, sessions, entries
}

func TestEnableWebsiteCreatesWorkerWhenMissing(t *testing.T) {
	eng := &fakeEngine{workerExists: false}
	sites := newFakeWebsites(testWebsite(1, "example", false, 2))
	g, _, _ := newTestGateway(eng, sites)

	status, err := g.EnableWebsite(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, status.IsActive)
	assert.True(t, sites.active[1])
	assert.Equal(t, []string{"example/2"}, eng.created)
	assert.Empty(t, eng.resumed)
}

func TestEnableWebsiteResumesExistingWorker(t *testing.T) {
	eng := &fakeEngine{workerExists: true}
	sites := newFakeWebsites(testWebsite(1, "example", false, 2))
	g, _, _ := newTestGateway(eng, sites)

	_, err := g.EnableWebsite(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"example"}, eng.resumed)
	assert.Empty(t, eng.created)
}

func TestEnableWebsiteRollsBackOnCreateFailure(t *testing.T) {
	eng := &fakeEngine{workerExists: false, createErr: fmt.Errorf("browser pool exhausted")}
	sites := newFakeWebsites(testWebsite(1, "example", false, 2))
	g, _, _ := newTestGateway(eng, sites)

	_, err := g.EnableWebsite(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, sites.active[1], "activation must be rolled back")
}

func TestEnableWebsiteRollsBackOnConnectionFailure(t *testing.T) {
	eng := &fakeEngine{workerExistsErr: fmt.Errorf("probe: %w", engine.ErrUnreachable)}
	sites := newFakeWebsites(testWebsite(1, "example", false, 2))
	g, _, _ := newTestGateway(eng, sites)

	_, err := g.EnableWebsite(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, sites.active[1])
	assert.Contains(t, err.Error(), "unreachable")
}

func TestEnableWebsiteTimeoutMentionsInFlightWork(t *testing.T) {
	eng := &fakeEngine{workerExists: false, createErr: fmt.Errorf("create: %w", engine.ErrTimeout)}
	sites := newFakeWebsites(testWebsite(1, "example", false, 2))
	g, _, _ := newTestGateway(eng, sites)

	_, err := g.EnableWebsite(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, sites.active[1])
	assert.Contains(t, err.Error(), "may still be processing")
}

func TestEnableWebsiteClampsConcurrency(t *testing.T) {
	eng := &fakeEngine{workerExists: false}
	sites := newFakeWebsites(testWebsite(1, "example", false, 8))
	g, _, _ := newTestGateway(eng, sites)

	_, err := g.EnableWebsite(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"example/2"}, eng.created)
}

func TestDisableWebsiteSurvivesEnginePauseFailure(t *testing.T) {
	eng := &fakeEngine{pauseSiteErr: fmt.Errorf("pause: %w", engine.ErrUnreachable)}
	sites := newFakeWebsites(testWebsite(1, "example", true, 2))
	g, _, _ := newTestGateway(eng, sites)

	status, err := g.DisableWebsite(context.Background(), 1)
	require.NoError(t, err, "disable never fails on engine errors")
	assert.False(t, sites.active[1])
	assert.Equal(t, WorkerStatusDisabled, status.Status)
}

func TestPauseAndResumeWebsiteTargetEngineWorker(t *testing.T) {
	eng := &fakeEngine{}
	sites := newFakeWebsites(testWebsite(1, "example", true, 2))
	g, _, _ := newTestGateway(eng, sites)

	require.NoError(t, g.PauseWebsite(context.Background(), 1))
	require.NoError(t, g.ResumeWebsite(context.Background(), 1))
	assert.Equal(t, []string{"example"}, eng.pausedSites)
	assert.Equal(t, []string{"example"}, eng.resumed)
	// Activation flag is untouched; pause is an engine-side state only
	assert.True(t, sites.active[1])
}

func TestPauseWebsiteEngineFailureSurfaces(t *testing.T) {
	eng := &fakeEngine{pauseSiteErr: fmt.Errorf("pause: %w", engine.ErrUnreachable)}
	sites := newFakeWebsites(testWebsite(1, "example", true, 2))
	g, _, _ := newTestGateway(eng, sites)

	err := g.PauseWebsite(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestStopAllForcesSessionsStopped(t *testing.T) {
	eng := &fakeEngine{}
	sites := newFakeWebsites()
	g, sessions, _ := newTestGateway(eng, sites)
	sessions.affected = 4

	stopped, err := g.StopAll(context.Background())
	require.NoError(t, err)
	assert.True(t, eng.stopped)
	assert.Equal(t, int64(4), stopped)
	require.Len(t, sessions.transitions, 1)
	assert.Contains(t, sessions.transitions[0], "stopped")
}

func TestStopAllEngineFailureSkipsSessionTransition(t *testing.T) {
	eng := &fakeEngine{stopErr: fmt.Errorf("stop: %w", engine.ErrUnreachable)}
	sites := newFakeWebsites()
	g, sessions, _ := newTestGateway(eng, sites)

	_, err := g.StopAll(context.Background())
	require.Error(t, err)
	assert.Empty(t, sessions.transitions)
}

func TestPauseAndResumeTransitionSessions(t *testing.T) {
	eng := &fakeEngine{}
	g, sessions, _ := newTestGateway(eng, newFakeWebsites())

	_, err := g.PauseAll(context.Background())
	require.NoError(t, err)
	assert.True(t, eng.paused)

	_, err = g.ResumeAll(context.Background())
	require.NoError(t, err)
	assert.True(t, eng.resumedAll)

	require.Len(t, sessions.transitions, 2)
	assert.Contains(t, sessions.transitions[0], "paused")
	assert.Contains(t, sessions.transitions[1], "running")
}

func TestClearWebsiteQueueResetsEntries(t *testing.T) {
	eng := &fakeEngine{}
	sites := newFakeWebsites(testWebsite(3, "example", true, 2))
	g, _, entries := newTestGateway(eng, sites)
	entries.resetCount = 5

	result, err := g.ClearWebsiteQueue(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 7, result.EngineCleared)
	assert.Equal(t, int64(5), result.EntriesReset)
	require.NotNil(t, entries.resetWebsite)
	assert.Equal(t, int64(3), *entries.resetWebsite)
}

func TestClearAllQueuesResetsGlobally(t *testing.T) {
	g, _, entries := newTestGateway(&fakeEngine{}, newFakeWebsites())

	result, err := g.ClearAllQueues(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, result.EngineCleared)
	assert.True(t, entries.resetGlobal)
}

func TestGatewayRejectsConcurrentActions(t *testing.T) {
	block := make(chan struct{})
	eng := &fakeEngine{workerExists: false, blockCreate: block}
	sites := newFakeWebsites(testWebsite(1, "example", false, 2))
	g, _, _ := newTestGateway(eng, sites)

	done := make(chan error, 1)
	go func() {
		_, err := g.EnableWebsite(context.Background(), 1)
		done <- err
	}()

	// Wait for the first action to hold the slot
	require.Eventually(t, func() bool {
		_, err := g.PauseAll(context.Background())
		return errors.Is(err, ErrBusy)
	}, time.Second, 5*time.Millisecond)

	close(block)
	require.NoError(t, <-done)

	// Slot is free again
	_, err := g.ClearAllQueues(context.Background())
	require.NoError(t, err)
}

func TestStatusAggregatesWebsitesAndSessions(t *testing.T) {
	eng := &fakeEngine{status: &engine.EngineStatus{
		Worker: engine.WorkerState{
			IsRunning:   true,
			WorkerCount: 2,
			Workers: map[string]engine.WorkerInfo{
				"running-site": {Status: "running", Concurrency: 2, ActiveJobs: 1},
				"paused-site":  {Status: "paused"},
			},
		},
	}}
	sites := newFakeWebsites(
		testWebsite(1, "running-site", true, 2),
		testWebsite(2, "paused-site", true, 2),
		testWebsite(3, "no-worker-site", true, 2),
		testWebsite(4, "disabled-site", false, 2),
	)
	g, sessions, _ := newTestGateway(eng, sites)
	sessions.activeList = []*models.BotSession{{SessionID: "a"}, {SessionID: "b"}}

	overview, err := g.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, overview.EngineConnected)
	assert.True(t, overview.EngineRunning)
	assert.Equal(t, 2, overview.ActiveSessions)
	require.NotNil(t, overview.Entries)

	byStatus := map[string]string{}
	for _, site := range overview.Websites {
		byStatus[site.Slug] = site.Status
	}
	assert.Equal(t, WorkerStatusRunning, byStatus["running-site"])
	assert.Equal(t, WorkerStatusPaused, byStatus["paused-site"])
	assert.Equal(t, WorkerStatusNotStarted, byStatus["no-worker-site"])
	assert.Equal(t, WorkerStatusDisabled, byStatus["disabled-site"])
}

func TestStatusDegradesWhenEngineDown(t *testing.T) {
	eng := &fakeEngine{statusErr: fmt.Errorf("status: %w", engine.ErrUnreachable)}
	sites := newFakeWebsites(testWebsite(1, "example", true, 2))
	g, _, _ := newTestGateway(eng, sites)

	overview, err := g.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, overview.EngineConnected)
	require.Len(t, overview.Websites, 1)
	assert.Equal(t, WorkerStatusNotStarted, overview.Websites[0].Status)
}
