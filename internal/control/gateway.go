// Package control is the gateway for worker engine control actions. It keeps
// database state and engine state consistent: activation flags are rolled
// back when the engine cannot follow, and fleet-wide session state mirrors
// global start/stop/pause/resume.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonesrussell/gobotctl/internal/engine"
	"github.com/jonesrussell/gobotctl/internal/events"
	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/models"
)

// MaxWorkerConcurrency caps per-worker concurrency. Higher values overload
// the engine's browser pool; requests above the cap are clamped with a
// warning instead of rejected.
const MaxWorkerConcurrency = 2

// ErrBusy is returned when a control action is requested while another one
// is still in flight. Control actions never queue.
var ErrBusy = errors.New("another control action is in progress")

type engineAPI interface {
	Health(ctx context.Context) error
	Status(ctx context.Context) (*engine.EngineStatus, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Reload(ctx context.Context) (*engine.ReloadResult, error)
	ForceReload(ctx context.Context) (*engine.SyncResult, error)
	Sync(ctx context.Context) (*engine.SyncResult, error)
	WorkerExists(ctx context.Context, slug string) (bool, error)
	CreateWorker(ctx context.Context, slug string, req engine.CreateWorkerRequest) error
	RemoveWorker(ctx context.Context, slug string) error
	PauseWebsite(ctx context.Context, slug string) error
	ResumeWebsite(ctx context.Context, slug string) error
	ClearQueue(ctx context.Context, slug string) (int, error)
	ClearAllQueues(ctx context.Context) (int, error)
}

type websiteStore interface {
	GetByID(ctx context.Context, id int64) (*models.Website, error)
	ListAll(ctx context.Context) ([]*models.Website, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type sessionControl interface {
	TransitionActive(ctx context.Context, fromStatuses []string, toStatus string) (int64, error)
	ListActive(ctx context.Context) ([]*models.BotSession, error)
}

type entryControl interface {
	ResetQueued(ctx context.Context, websiteID *int64) (int64, error)
	Stats(ctx context.Context, websiteID *int64) (*models.EntryStats, error)
}

// Gateway coordinates control actions against the worker engine.
type Gateway struct {
	engine    engineAPI
	websites  websiteStore
	sessions  sessionControl
	entries   entryControl
	publisher *events.Publisher
	logger    logger.Logger

	mu sync.Mutex
}

func NewGateway(
	engineClient engineAPI,
	websites websiteStore,
	sessions sessionControl,
	entries entryControl,
	publisher *events.Publisher,
	log logger.Logger,
) *Gateway {
	return &Gateway{
		engine:    engineClient,
		websites:  websites,
		sessions:  sessions,
		entries:   entries,
		publisher: publisher,
		logger:    log,
	}
}

// acquire claims the single control action slot.
func (g *Gateway) acquire() error {
	if !g.mu.TryLock() {
		return ErrBusy
	}
	return nil
}

// engineError turns a transport failure into an operator-facing message. A
// timeout is called out separately because the engine may still complete the
// operation after we gave up waiting.
func engineError(op string, err error) error {
	switch {
	case engine.IsTimeout(err):
		return fmt.Errorf("%s timed out, the engine may still be processing it: %w", op, err)
	case engine.IsUnreachable(err):
		return fmt.Errorf("%s failed, worker engine is unreachable: %w", op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// WebsiteStatus is one website's effective worker state.
type WebsiteStatus struct {
	WebsiteID   int64  `json:"website_id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	IsActive    bool   `json:"is_active"`
	Status      string `json:"status"`
	Concurrency int    `json:"concurrency,omitempty"`
	ActiveJobs  int    `json:"active_jobs,omitempty"`
}

// Overview is the aggregated control plane status.
type Overview struct {
	EngineConnected bool               `json:"engine_connected"`
	EngineRunning   bool               `json:"engine_running"`
	EnginePaused    bool               `json:"engine_paused"`
	Websites        []WebsiteStatus    `json:"websites"`
	ActiveSessions  int                `json:"active_sessions"`
	Entries         *models.EntryStats `json:"entries"`
}

// Status aggregates engine, website and session state into one snapshot. An
// unreachable engine degrades the snapshot instead of failing it: every
// active website is reported not_started.
func (g *Gateway) Status(ctx context.Context) (*Overview, error) {
	websites, err := g.websites.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list websites: %w", err)
	}

	overview := &Overview{}

	workers := map[string]*engine.WorkerInfo{}
	status, statusErr := g.engine.Status(ctx)
	if statusErr != nil {
		g.logger.Warn("Engine status unavailable", logger.Error(statusErr))
	} else {
		overview.EngineConnected = true
		overview.EngineRunning = status.Worker.IsRunning
		overview.EnginePaused = status.Worker.IsPaused
		for slug, info := range status.Worker.Workers {
			worker := info
			workers[slug] = &worker
		}
	}

	for _, site := range websites {
		worker := workers[site.Slug]
		siteStatus := WebsiteStatus{
			WebsiteID: site.ID,
			Slug:      site.Slug,
			Name:      site.Name,
			IsActive:  site.IsActive,
			Status:    ClassifyWorkerStatus(site.IsActive, worker),
		}
		if worker != nil {
			siteStatus.Concurrency = worker.Concurrency
			siteStatus.ActiveJobs = worker.ActiveJobs
		}
		overview.Websites = append(overview.Websites, siteStatus)
	}

	if active, sessErr := g.sessions.ListActive(ctx); sessErr == nil {
		overview.ActiveSessions = len(active)
	}
	if stats, statsErr := g.entries.Stats(ctx, nil); statsErr == nil {
		overview.Entries = stats
	}

	return overview, nil
}

// EnableWebsite activates a website and brings its worker up. The activation
// flag is written first so worker-side config fetches already see the site
// active; if the engine cannot deliver a worker the flag is rolled back.
func (g *Gateway) EnableWebsite(ctx context.Context, id int64) (*WebsiteStatus, error) {
	if err := g.acquire(); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()

	site, err := g.websites.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := g.websites.SetActive(ctx, id, true); err != nil {
		return nil, fmt.Errorf("activate website: %w", err)
	}

	exists, err := g.engine.WorkerExists(ctx, site.Slug)
	if err != nil {
		g.rollbackActivation(ctx, id, site.Slug)
		return nil, engineError("enable website", err)
	}

	if exists {
		if resumeErr := g.engine.ResumeWebsite(ctx, site.Slug); resumeErr != nil {
			g.rollbackActivation(ctx, id, site.Slug)
			return nil, engineError("resume worker", resumeErr)
		}
	} else {
		req := engine.CreateWorkerRequest{
			Config:      site.FullConfig(),
			Concurrency: clampConcurrency(site.ConcurrencyLimit, g.logger),
		}
		if createErr := g.engine.CreateWorker(ctx, site.Slug, req); createErr != nil {
			g.rollbackActivation(ctx, id, site.Slug)
			return nil, engineError("create worker", createErr)
		}
	}

	g.logger.Info("Website enabled", logger.String("website", site.Slug))
	g.publisher.PublishAsync(events.NewWebsiteToggledEvent(site.Slug, true))

	return &WebsiteStatus{
		WebsiteID: site.ID,
		Slug:      site.Slug,
		Name:      site.Name,
		IsActive:  true,
		Status:    WorkerStatusRunning,
	}, nil
}

func (g *Gateway) rollbackActivation(ctx context.Context, id int64, slug string) {
	if err := g.websites.SetActive(ctx, id, false); err != nil {
		g.logger.Error("Activation rollback failed, website left active without worker",
			logger.String("website", slug),
			logger.Error(err),
		)
		return
	}
	g.logger.Warn("Website activation rolled back", logger.String("website", slug))
}

// DisableWebsite deactivates a website. The flag write is the operation;
// pausing the engine-side worker is best-effort and a dead engine never
// blocks a disable.
func (g *Gateway) DisableWebsite(ctx context.Context, id int64) (*WebsiteStatus, error) {
	if err := g.acquire(); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()

	site, err := g.websites.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := g.websites.SetActive(ctx, id, false); err != nil {
		return nil, fmt.Errorf("deactivate website: %w", err)
	}

	if pauseErr := g.engine.PauseWebsite(ctx, site.Slug); pauseErr != nil {
		g.logger.Warn("Worker pause failed during disable, worker will idle",
			logger.String("website", site.Slug),
			logger.Error(pauseErr),
		)
	}

	g.logger.Info("Website disabled", logger.String("website", site.Slug))
	g.publisher.PublishAsync(events.NewWebsiteToggledEvent(site.Slug, false))

	return &WebsiteStatus{
		WebsiteID: site.ID,
		Slug:      site.Slug,
		Name:      site.Name,
		IsActive:  false,
		Status:    WorkerStatusDisabled,
	}, nil
}

func clampConcurrency(requested int, log logger.Logger) int {
	if requested <= 0 {
		return 1
	}
	if requested > MaxWorkerConcurrency {
		log.Warn("Worker concurrency clamped",
			logger.Int("requested", requested),
			logger.Int("max", MaxWorkerConcurrency),
		)
		return MaxWorkerConcurrency
	}
	return requested
}

// AddWorker creates a worker for an already-active website.
func (g *Gateway) AddWorker(ctx context.Context, id int64, concurrency int) error {
	if err := g.acquire(); err != nil {
		return err
	}
	defer g.mu.Unlock()

	site, err := g.websites.GetByID(ctx, id)
	if err != nil {
		return err
	}

	req := engine.CreateWorkerRequest{
		Config:      site.FullConfig(),
		Concurrency: clampConcurrency(concurrency, g.logger),
	}
	if createErr := g.engine.CreateWorker(ctx, site.Slug, req); createErr != nil {
		return engineError("create worker", createErr)
	}

	g.logger.Info("Worker created",
		logger.String("website", site.Slug),
		logger.Int("concurrency", req.Concurrency),
	)

	return nil
}

// PauseWebsite suspends one website's worker without touching activation.
func (g *Gateway) PauseWebsite(ctx context.Context, id int64) error {
	if err := g.acquire(); err != nil {
		return err
	}
	defer g.mu.Unlock()

	site, err := g.websites.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if pauseErr := g.engine.PauseWebsite(ctx, site.Slug); pauseErr != nil {
		return engineError("pause website", pauseErr)
	}

	g.logger.Info("Website worker paused", logger.String("website", site.Slug))

	return nil
}

// ResumeWebsite resumes one website's paused worker.
func (g *Gateway) ResumeWebsite(ctx context.Context, id int64) error {
	if err := g.acquire(); err != nil {
		return err
	}
	defer g.mu.Unlock()

	site, err := g.websites.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if resumeErr := g.engine.ResumeWebsite(ctx, site.Slug); resumeErr != nil {
		return engineError("resume website", resumeErr)
	}

	g.logger.Info("Website worker resumed", logger.String("website", site.Slug))

	return nil
}

// RemoveWorker tears down a website's worker without touching activation.
func (g *Gateway) RemoveWorker(ctx context.Context, id int64) error {
	if err := g.acquire(); err != nil {
		return err
	}
	defer g.mu.Unlock()

	site, err := g.websites.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if removeErr := g.engine.RemoveWorker(ctx, site.Slug); removeErr != nil {
		return engineError("remove worker", removeErr)
	}

	g.logger.Info("Worker removed", logger.String("website", site.Slug))

	return nil
}

// StartAll starts engine processing.
func (g *Gateway) StartAll(ctx context.Context) error {
	if err := g.acquire(); err != nil {
		return err
	}
	defer g.mu.Unlock()

	if startErr := g.engine.Start(ctx); startErr != nil {
		return engineError("start engine", startErr)
	}

	g.publisher.PublishAsync(events.NewControlActionEvent("start", nil))

	return nil
}

// StopAll halts the engine and forces every active session to stopped, so
// heartbeating workers are told to shut down even if the engine push never
// reaches them.
func (g *Gateway) StopAll(ctx context.Context) (int64, error) {
	if err := g.acquire(); err != nil {
		return 0, err
	}
	defer g.mu.Unlock()

	if stopErr := g.engine.Stop(ctx); stopErr != nil {
		return 0, engineError("stop engine", stopErr)
	}

	stopped, err := g.sessions.TransitionActive(ctx,
		[]string{models.SessionStatusIdle, models.SessionStatusRunning, models.SessionStatusPaused},
		models.SessionStatusStopped)
	if err != nil {
		return 0, fmt.Errorf("mark sessions stopped: %w", err)
	}

	g.logger.Info("Global stop issued", logger.Int64("sessions_stopped", stopped))
	g.publisher.PublishAsync(events.NewControlActionEvent("stop", models.JSONMap{"sessions": stopped}))

	return stopped, nil
}

// PauseAll pauses engine pickup and flips running sessions to paused.
func (g *Gateway) PauseAll(ctx context.Context) (int64, error) {
	if err := g.acquire(); err != nil {
		return 0, err
	}
	defer g.mu.Unlock()

	if pauseErr := g.engine.Pause(ctx); pauseErr != nil {
		return 0, engineError("pause engine", pauseErr)
	}

	paused, err := g.sessions.TransitionActive(ctx,
		[]string{models.SessionStatusRunning}, models.SessionStatusPaused)
	if err != nil {
		return 0, fmt.Errorf("mark sessions paused: %w", err)
	}

	g.publisher.PublishAsync(events.NewControlActionEvent("pause", models.JSONMap{"sessions": paused}))

	return paused, nil
}

// ResumeAll resumes engine pickup and flips paused sessions back to running.
func (g *Gateway) ResumeAll(ctx context.Context) (int64, error) {
	if err := g.acquire(); err != nil {
		return 0, err
	}
	defer g.mu.Unlock()

	if resumeErr := g.engine.Resume(ctx); resumeErr != nil {
		return 0, engineError("resume engine", resumeErr)
	}

	resumed, err := g.sessions.TransitionActive(ctx,
		[]string{models.SessionStatusPaused}, models.SessionStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("mark sessions running: %w", err)
	}

	g.publisher.PublishAsync(events.NewControlActionEvent("resume", models.JSONMap{"sessions": resumed}))

	return resumed, nil
}

// ClearQueueResult reports a queue clear on both sides.
type ClearQueueResult struct {
	EngineCleared int   `json:"engine_cleared"`
	EntriesReset  int64 `json:"entries_reset"`
}

// ClearWebsiteQueue empties one website's engine queue and returns its queued
// entries to pending so they can be dispatched again.
func (g *Gateway) ClearWebsiteQueue(ctx context.Context, id int64) (*ClearQueueResult, error) {
	if err := g.acquire(); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()

	site, err := g.websites.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	cleared, clearErr := g.engine.ClearQueue(ctx, site.Slug)
	if clearErr != nil {
		return nil, engineError("clear queue", clearErr)
	}

	reset, resetErr := g.entries.ResetQueued(ctx, &id)
	if resetErr != nil {
		return nil, fmt.Errorf("reset queued entries: %w", resetErr)
	}

	return &ClearQueueResult{EngineCleared: cleared, EntriesReset: reset}, nil
}

// ClearAllQueues empties every engine queue and resets all queued entries.
func (g *Gateway) ClearAllQueues(ctx context.Context) (*ClearQueueResult, error) {
	if err := g.acquire(); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()

	cleared, clearErr := g.engine.ClearAllQueues(ctx)
	if clearErr != nil {
		return nil, engineError("clear all queues", clearErr)
	}

	reset, resetErr := g.entries.ResetQueued(ctx, nil)
	if resetErr != nil {
		return nil, fmt.Errorf("reset queued entries: %w", resetErr)
	}

	g.publisher.PublishAsync(events.NewControlActionEvent("clear_queues", models.JSONMap{
		"engine_cleared": cleared,
		"entries_reset":  reset,
	}))

	return &ClearQueueResult{EngineCleared: cleared, EntriesReset: reset}, nil
}

// Reload asks the engine to reconcile workers with current configuration.
func (g *Gateway) Reload(ctx context.Context) (*engine.ReloadResult, error) {
	if err := g.acquire(); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()

	result, reloadErr := g.engine.Reload(ctx)
	if reloadErr != nil {
		return nil, engineError("reload", reloadErr)
	}

	g.publisher.PublishAsync(events.NewControlActionEvent("reload", models.JSONMap{
		"added":   len(result.Added),
		"updated": len(result.Updated),
		"removed": len(result.Removed),
	}))

	return result, nil
}

// ForceReload rebuilds every worker from scratch.
func (g *Gateway) ForceReload(ctx context.Context) (*engine.SyncResult, error) {
	if err := g.acquire(); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()

	result, reloadErr := g.engine.ForceReload(ctx)
	if reloadErr != nil {
		return nil, engineError("force reload", reloadErr)
	}

	g.publisher.PublishAsync(events.NewControlActionEvent("force_reload", models.JSONMap{
		"worker_count": result.WorkerCount,
	}))

	return result, nil
}

// Sync reconciles engine workers without a teardown.
func (g *Gateway) Sync(ctx context.Context) (*engine.SyncResult, error) {
	if err := g.acquire(); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()

	result, syncErr := g.engine.Sync(ctx)
	if syncErr != nil {
		return nil, engineError("sync workers", syncErr)
	}

	return result, nil
}

// Health reports whether the engine answers its health probe.
func (g *Gateway) Health(ctx context.Context) error {
	if healthErr := g.engine.Health(ctx); healthErr != nil {
		return engineError("engine health check", healthErr)
	}
	return nil
}
