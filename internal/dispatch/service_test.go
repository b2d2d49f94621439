package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gobotctl/internal/engine"
	"github.com/jonesrussell/gobotctl/internal/models"
	"github.com/jonesrussell/gobotctl/internal/testhelpers"
)

type fakeEntryStore struct {
	ready    []*models.DataEntry
	queued   [][]int64
	readyErr error
}

func (f *fakeEntryStore) NextReady(_ context.Context, limit int) ([]*models.DataEntry, error) {
	if f.readyErr != nil {
		return nil, f.readyErr
	}
	if len(f.ready) > limit {
		return f.ready[:limit], nil
	}
	return f.ready, nil
}

func (f *fakeEntryStore) NextReadyForWebsite(_ context.Context, websiteID int64, limit int) ([]*models.DataEntry, error) {
	if f.readyErr != nil {
		return nil, f.readyErr
	}
	var scoped []*models.DataEntry
	for _, e := range f.ready {
		if e.WebsiteID == websiteID && len(scoped) < limit {
			scoped = append(scoped, e)
		}
	}
	return scoped, nil
}

func (f *fakeEntryStore) MarkQueued(_ context.Context, ids []int64) error {
	f.queued = append(f.queued, ids)
	return nil
}

type fakeWebsiteStore struct {
	websites map[int64]*models.Website
}

func (f *fakeWebsiteStore) GetByID(_ context.Context, id int64) (*models.Website, error) {
	w, ok := f.websites[id]
	if !ok {
		return nil, errors.New("website not found")
	}
	return w, nil
}

type fakeEngine struct {
	batches  map[string][]engine.BatchEntry
	rejected map[string]error
}

func (f *fakeEngine) SubmitBatch(_ context.Context, slug string, entries []engine.BatchEntry) error {
	if err, ok := f.rejected[slug]; ok {
		return err
	}
	if f.batches == nil {
		f.batches = map[string][]engine.BatchEntry{}
	}
	f.batches[slug] = entries
	return nil
}

func pendingEntry(id, websiteID int64) *models.DataEntry {
	return &models.DataEntry{
		ID:          id,
		WebsiteID:   websiteID,
		Identifier:  fmt.Sprintf("entry-%d", id),
		Status:      models.EntryStatusPending,
		MaxAttempts: 3,
	}
}

func newTestService(entries *fakeEntryStore, websites *fakeWebsiteStore, eng *fakeEngine) *Service {
	return NewService(entries, websites, eng, nil, testhelpers.NewTestLogger(), 100, 50)
}

func TestDispatchGroupsPerWebsite(t *testing.T) {
	entries := &fakeEntryStore{ready: []*models.DataEntry{
		pendingEntry(1, 10),
		pendingEntry(2, 20),
		pendingEntry(3, 10),
	}}
	websites := &fakeWebsiteStore{websites: map[int64]*models.Website{
		10: {ID: 10, Slug: "site-a", IsActive: true},
		20: {ID: 20, Slug: "site-b", IsActive: true},
	}}
	eng := &fakeEngine{}

	result, err := newTestService(entries, websites, eng).Dispatch(context.Background())
	require.NoError(t, err)

	// One batch per website, not per entry
	assert.Equal(t, 2, result.Batches)
	assert.Equal(t, 3, result.Dispatched)
	assert.Len(t, eng.batches["site-a"], 2)
	assert.Len(t, eng.batches["site-b"], 1)
	assert.Equal(t, 2, result.PerWebsite["site-a"])
	assert.Equal(t, 1, result.PerWebsite["site-b"])
	assert.Len(t, entries.queued, 2)
}

func TestDispatchCapsPerWebsite(t *testing.T) {
	store := &fakeEntryStore{}
	for i := int64(1); i <= 80; i++ {
		store.ready = append(store.ready, pendingEntry(i, 10))
	}
	websites := &fakeWebsiteStore{websites: map[int64]*models.Website{
		10: {ID: 10, Slug: "site-a", IsActive: true},
	}}
	eng := &fakeEngine{}

	result, err := newTestService(store, websites, eng).Dispatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 50, result.Dispatched)
	assert.Len(t, eng.batches["site-a"], 50)
}

func TestDispatchRejectedBatchStaysPending(t *testing.T) {
	entries := &fakeEntryStore{ready: []*models.DataEntry{
		pendingEntry(1, 10),
		pendingEntry(2, 20),
	}}
	websites := &fakeWebsiteStore{websites: map[int64]*models.Website{
		10: {ID: 10, Slug: "site-a", IsActive: true},
		20: {ID: 20, Slug: "site-b", IsActive: true},
	}}
	eng := &fakeEngine{rejected: map[string]error{"site-a": errors.New("queue full")}}

	result, err := newTestService(entries, websites, eng).Dispatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Dispatched)
	assert.Equal(t, []string{"site-a"}, result.Failed)
	// Only the accepted batch got marked queued
	require.Len(t, entries.queued, 1)
	assert.Equal(t, []int64{2}, entries.queued[0])
}

func TestDispatchWebsiteScopesToOneSite(t *testing.T) {
	entries := &fakeEntryStore{ready: []*models.DataEntry{
		pendingEntry(1, 10),
		pendingEntry(2, 20),
		pendingEntry(3, 10),
	}}
	websites := &fakeWebsiteStore{websites: map[int64]*models.Website{
		10: {ID: 10, Slug: "site-a", IsActive: true},
		20: {ID: 20, Slug: "site-b", IsActive: true},
	}}
	eng := &fakeEngine{}

	result, err := newTestService(entries, websites, eng).DispatchWebsite(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Dispatched)
	assert.Equal(t, 1, result.Batches)
	assert.Len(t, eng.batches["site-a"], 2)
	assert.Empty(t, eng.batches["site-b"])
}

func TestDispatchWebsiteRejectedBatchFails(t *testing.T) {
	entries := &fakeEntryStore{ready: []*models.DataEntry{pendingEntry(1, 10)}}
	websites := &fakeWebsiteStore{websites: map[int64]*models.Website{
		10: {ID: 10, Slug: "site-a", IsActive: true},
	}}
	eng := &fakeEngine{rejected: map[string]error{"site-a": errors.New("queue full")}}

	_, err := newTestService(entries, websites, eng).DispatchWebsite(context.Background(), 10)
	require.Error(t, err)
	assert.Empty(t, entries.queued)
}

func TestDispatchNothingReady(t *testing.T) {
	result, err := newTestService(&fakeEntryStore{}, &fakeWebsiteStore{}, &fakeEngine{}).Dispatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Dispatched)
	assert.Zero(t, result.Batches)
}
