// Package engine is the HTTP client for the worker engine's control API.
// Every operation carries its own timeout matched to how long the engine
// realistically needs: health probes are cut off quickly, worker creation is
// given minutes.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/models"
)

// Per-operation timeouts.
const (
	healthTimeout   = 5 * time.Second
	statusTimeout   = 10 * time.Second
	lightTimeout    = 30 * time.Second
	heavyTimeout    = 60 * time.Second
	criticalTimeout = 120 * time.Second
)

// Client talks to the worker engine. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.Logger
}

// NewClient creates an engine client. connectTimeout bounds the TCP dial
// only; per-operation deadlines are layered on top via request contexts.
func NewClient(baseURL string, connectTimeout time.Duration, log logger.Logger) *Client {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Transport: transport},
		logger:     log,
	}
}

// BaseURL returns the configured engine address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type engineResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		encoded, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return fmt.Errorf("marshal request body: %w", marshalErr)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope engineResponse
		if jsonErr := json.Unmarshal(respBody, &envelope); jsonErr == nil && envelope.Message != "" {
			apiErr.Message = envelope.Message
		}
		return apiErr
	}

	if out != nil && len(respBody) > 0 {
		if jsonErr := json.Unmarshal(respBody, out); jsonErr != nil {
			return fmt.Errorf("decode response: %w", jsonErr)
		}
	}

	return nil
}

// Health probes the engine. A nil error means the engine is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, healthTimeout, nil)
}

// EngineStatus is the engine's self-reported state snapshot, split into the
// worker-manager view and the queue view.
type EngineStatus struct {
	Worker WorkerState `json:"worker"`
	Queue  QueueState  `json:"queue"`
}

// WorkerState is the worker-manager half of the status payload. Workers are
// keyed by website slug.
type WorkerState struct {
	IsRunning   bool                  `json:"isRunning"`
	IsPaused    bool                  `json:"isPaused"`
	WorkerCount int                   `json:"workerCount"`
	SessionID   string                `json:"sessionId"`
	Workers     map[string]WorkerInfo `json:"workers"`
}

// WorkerInfo describes one per-website worker inside the engine.
type WorkerInfo struct {
	Status      string `json:"status"`
	Concurrency int    `json:"concurrency"`
	ActiveJobs  int    `json:"activeJobs"`
}

// QueueState is the queue half of the status payload, with per-website
// depths keyed by slug.
type QueueState struct {
	Total    int                    `json:"total"`
	Websites map[string]QueueCounts `json:"websites"`
}

// QueueCounts holds the engine-side queue depth per state.
type QueueCounts struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Delayed   int `json:"delayed"`
}

// Status fetches the engine state snapshot.
func (c *Client) Status(ctx context.Context) (*EngineStatus, error) {
	var status EngineStatus
	if err := c.do(ctx, http.MethodGet, "/status", nil, statusTimeout, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Start begins processing on the engine.
func (c *Client) Start(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/start", nil, lightTimeout, nil)
}

// Stop halts all processing on the engine.
func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/stop", nil, lightTimeout, nil)
}

// Pause suspends job pickup without tearing workers down.
func (c *Client) Pause(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/pause", nil, lightTimeout, nil)
}

// Resume lifts a pause.
func (c *Client) Resume(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/resume", nil, lightTimeout, nil)
}

// ReloadResult reports what a configuration reload changed engine-side.
type ReloadResult struct {
	Added   []string `json:"added"`
	Updated []string `json:"updated"`
	Removed []string `json:"removed"`
}

// Reload asks the engine to re-read website configurations and reconcile its
// workers, reporting the per-website delta.
func (c *Client) Reload(ctx context.Context) (*ReloadResult, error) {
	var result ReloadResult
	if err := c.do(ctx, http.MethodPost, "/reload", nil, heavyTimeout, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SyncResult reports the engine's worker set after a sync or force reload.
type SyncResult struct {
	WorkerCount int      `json:"workerCount"`
	Websites    []string `json:"websites"`
}

// ForceReload tears down every worker and rebuilds from current
// configuration. Heaviest engine operation.
func (c *Client) ForceReload(ctx context.Context) (*SyncResult, error) {
	var result SyncResult
	if err := c.do(ctx, http.MethodPost, "/force-reload", nil, criticalTimeout, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Sync reconciles engine workers against current configuration without a
// full teardown.
func (c *Client) Sync(ctx context.Context) (*SyncResult, error) {
	var result SyncResult
	if err := c.do(ctx, http.MethodPost, "/sync", nil, heavyTimeout, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WorkerExists asks the engine whether it has a worker for the website. The
// engine answers {exists: bool}; a 404 is also taken as no worker.
func (c *Client) WorkerExists(ctx context.Context, slug string) (bool, error) {
	var result struct {
		Exists bool `json:"exists"`
	}
	err := c.do(ctx, http.MethodGet, "/website/"+slug+"/worker", nil, statusTimeout, &result)
	if err == nil {
		return result.Exists, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return false, nil
	}

	return false, err
}

// CreateWorkerRequest configures a new per-website worker.
type CreateWorkerRequest struct {
	Config      models.JSONMap `json:"config"`
	Concurrency int            `json:"concurrency"`
}

// CreateWorker spins up a worker for the website. Worker creation involves
// browser startup engine-side, so it gets the longest timeout.
func (c *Client) CreateWorker(ctx context.Context, slug string, req CreateWorkerRequest) error {
	return c.do(ctx, http.MethodPost, "/website/"+slug+"/worker", req, criticalTimeout, nil)
}

// RemoveWorker tears down the website's worker.
func (c *Client) RemoveWorker(ctx context.Context, slug string) error {
	return c.do(ctx, http.MethodDelete, "/website/"+slug+"/worker", nil, lightTimeout, nil)
}

// PauseWebsite suspends the website's worker.
func (c *Client) PauseWebsite(ctx context.Context, slug string) error {
	return c.do(ctx, http.MethodPost, "/website/"+slug+"/pause", nil, lightTimeout, nil)
}

// ResumeWebsite resumes the website's worker.
func (c *Client) ResumeWebsite(ctx context.Context, slug string) error {
	return c.do(ctx, http.MethodPost, "/website/"+slug+"/resume", nil, lightTimeout, nil)
}

type clearQueueResult struct {
	Cleared int `json:"cleared"`
}

// ClearQueue drops all waiting jobs from the website's queue and returns how
// many were removed.
func (c *Client) ClearQueue(ctx context.Context, slug string) (int, error) {
	var result clearQueueResult
	if err := c.do(ctx, http.MethodDelete, "/website/"+slug+"/queue", nil, heavyTimeout, &result); err != nil {
		return 0, err
	}
	return result.Cleared, nil
}

// ClearAllQueues drops waiting jobs from every queue.
func (c *Client) ClearAllQueues(ctx context.Context) (int, error) {
	var result clearQueueResult
	if err := c.do(ctx, http.MethodDelete, "/queue", nil, heavyTimeout, &result); err != nil {
		return 0, err
	}
	return result.Cleared, nil
}

// BatchEntry is one job inside a batch submission.
type BatchEntry struct {
	ID          int64          `json:"id"`
	Identifier  string         `json:"identifier"`
	Data        models.JSONMap `json:"data"`
	Priority    int            `json:"priority"`
	MaxAttempts int            `json:"max_attempts"`
}

type batchRequest struct {
	Entries     []BatchEntry `json:"entries"`
	WebsiteSlug string       `json:"websiteSlug"`
}

// SubmitBatch hands a group of entries for one website to the engine. The
// engine enqueues all of them or rejects the whole batch.
func (c *Client) SubmitBatch(ctx context.Context, slug string, entries []BatchEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/jobs/batch", batchRequest{
		Entries:     entries,
		WebsiteSlug: slug,
	}, heavyTimeout, nil)
}
