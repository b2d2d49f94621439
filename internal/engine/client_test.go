package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gobotctl/internal/models"
	"github.com/jonesrussell/gobotctl/internal/testhelpers"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, time.Second, testhelpers.NewTestLogger()), srv
}

func TestClientHealth(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))

	assert.NoError(t, client.Health(context.Background()))
}

func TestClientHealthUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second, testhelpers.NewTestLogger())

	err := client.Health(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnreachable(err))
	assert.True(t, IsConnectionFailure(err))
}

func TestClientStatus(t *testing.T) {
	// Raw payload pins the wire shape: worker and queue halves, camelCase
	// keys, workers keyed by slug
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"worker": {
				"isRunning": true,
				"isPaused": false,
				"workerCount": 1,
				"sessionId": "abc-123",
				"workers": {"example": {"status": "running", "concurrency": 2, "activeJobs": 1}}
			},
			"queue": {
				"total": 4,
				"websites": {"example": {"waiting": 3, "active": 1, "completed": 0, "failed": 0, "delayed": 0}}
			}
		}`))
	}))

	status, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Worker.IsRunning)
	assert.Equal(t, "abc-123", status.Worker.SessionID)
	require.Contains(t, status.Worker.Workers, "example")
	assert.Equal(t, 2, status.Worker.Workers["example"].Concurrency)
	assert.Equal(t, 1, status.Worker.Workers["example"].ActiveJobs)
	assert.Equal(t, 4, status.Queue.Total)
	assert.Equal(t, 3, status.Queue.Websites["example"].Waiting)
}

func TestClientWorkerExists(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/website/present/worker":
			_ = json.NewEncoder(w).Encode(map[string]bool{"exists": true})
		case "/website/torn-down/worker":
			_ = json.NewEncoder(w).Encode(map[string]bool{"exists": false})
		case "/website/absent/worker":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))

	exists, err := client.WorkerExists(context.Background(), "present")
	require.NoError(t, err)
	assert.True(t, exists)

	// The engine answers the existence check in the body, not the status code
	exists, err = client.WorkerExists(context.Background(), "torn-down")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = client.WorkerExists(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestClientAPIErrorCarriesMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "duplicate jobs in batch",
		})
	}))

	err := client.SubmitBatch(context.Background(), "example", []BatchEntry{{ID: 1, Identifier: "a"}})
	require.Error(t, err)
	assert.False(t, IsConnectionFailure(err))
	assert.Contains(t, err.Error(), "duplicate jobs in batch")
}

func TestClientSubmitBatchPayload(t *testing.T) {
	var received struct {
		Entries     []BatchEntry `json:"entries"`
		WebsiteSlug string       `json:"websiteSlug"`
	}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/batch", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))

	entries := []BatchEntry{
		{ID: 1, Identifier: "a", Data: models.JSONMap{"k": "v"}, Priority: 5, MaxAttempts: 3},
		{ID: 2, Identifier: "b", Priority: 1, MaxAttempts: 3},
	}
	require.NoError(t, client.SubmitBatch(context.Background(), "example", entries))

	assert.Equal(t, "example", received.WebsiteSlug)
	require.Len(t, received.Entries, 2)
	assert.Equal(t, int64(1), received.Entries[0].ID)
}

func TestClientSubmitBatchEmptyIsNoop(t *testing.T) {
	called := false
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	require.NoError(t, client.SubmitBatch(context.Background(), "example", nil))
	assert.False(t, called)
}

func TestClientTimeoutClassification(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow timeout test")
	}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := client.Health(ctx)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestClientReload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reload", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(ReloadResult{
			Added:   []string{"new-site"},
			Updated: []string{"example"},
		})
	}))

	result, err := client.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"new-site"}, result.Added)
	assert.Equal(t, []string{"example"}, result.Updated)
	assert.Empty(t, result.Removed)
}

func TestClientClearQueue(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/website/example/queue", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]int{"cleared": 12})
	}))

	cleared, err := client.ClearQueue(context.Background(), "example")
	require.NoError(t, err)
	assert.Equal(t, 12, cleared)
}

func TestClientClearAllQueues(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/queue", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]int{"cleared": 30})
	}))

	cleared, err := client.ClearAllQueues(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30, cleared)
}
