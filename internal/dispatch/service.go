// Package dispatch moves ready data entries from the database into the
// worker engine's queues.
package dispatch

import (
	"context"
	"fmt"

	"github.com/jonesrussell/gobotctl/internal/engine"
	"github.com/jonesrussell/gobotctl/internal/events"
	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/models"
)

type entryStore interface {
	NextReady(ctx context.Context, limit int) ([]*models.DataEntry, error)
	NextReadyForWebsite(ctx context.Context, websiteID int64, limit int) ([]*models.DataEntry, error)
	MarkQueued(ctx context.Context, ids []int64) error
}

type websiteStore interface {
	GetByID(ctx context.Context, id int64) (*models.Website, error)
}

type engineClient interface {
	SubmitBatch(ctx context.Context, slug string, entries []engine.BatchEntry) error
}

// Service selects ready entries, groups them per website and submits each
// group as one batch. A group is marked queued only after the engine accepts
// it; rejected groups stay pending for the next cycle.
type Service struct {
	entries      entryStore
	websites     websiteStore
	engine       engineClient
	publisher    *events.Publisher
	logger       logger.Logger
	batchLimit   int
	websiteLimit int
}

func NewService(
	entries entryStore,
	websites websiteStore,
	engineClient engineClient,
	publisher *events.Publisher,
	log logger.Logger,
	batchLimit, websiteLimit int,
) *Service {
	if batchLimit <= 0 {
		batchLimit = 100
	}
	if websiteLimit <= 0 {
		websiteLimit = 50
	}
	return &Service{
		entries:      entries,
		websites:     websites,
		engine:       engineClient,
		publisher:    publisher,
		logger:       log,
		batchLimit:   batchLimit,
		websiteLimit: websiteLimit,
	}
}

// Result summarizes one dispatch cycle.
type Result struct {
	Dispatched int            `json:"dispatched"`
	Batches    int            `json:"batches"`
	PerWebsite map[string]int `json:"per_website"`
	Failed     []string       `json:"failed,omitempty"`
}

// Dispatch runs one cycle. Batches are independent: a website whose batch the
// engine rejects is reported in Failed while the other batches go through.
func (s *Service) Dispatch(ctx context.Context) (*Result, error) {
	ready, err := s.entries.NextReady(ctx, s.batchLimit)
	if err != nil {
		return nil, fmt.Errorf("select ready entries: %w", err)
	}

	result := &Result{PerWebsite: map[string]int{}}
	if len(ready) == 0 {
		return result, nil
	}

	// Group per website preserving selection order, capped per site
	groups := map[int64][]*models.DataEntry{}
	var order []int64
	for _, entry := range ready {
		if len(groups[entry.WebsiteID]) >= s.websiteLimit {
			continue
		}
		if _, seen := groups[entry.WebsiteID]; !seen {
			order = append(order, entry.WebsiteID)
		}
		groups[entry.WebsiteID] = append(groups[entry.WebsiteID], entry)
	}

	for _, websiteID := range order {
		group := groups[websiteID]
		website, siteErr := s.websites.GetByID(ctx, websiteID)
		if siteErr != nil {
			s.logger.Error("Skipping batch, website lookup failed",
				logger.Int64("website_id", websiteID),
				logger.Error(siteErr),
			)
			result.Failed = append(result.Failed, fmt.Sprintf("website %d", websiteID))
			continue
		}

		if submitErr := s.submitGroup(ctx, website, group); submitErr != nil {
			s.logger.Error("Batch submission failed",
				logger.String("website", website.Slug),
				logger.Int("entries", len(group)),
				logger.Error(submitErr),
			)
			result.Failed = append(result.Failed, website.Slug)
			continue
		}

		result.Batches++
		result.Dispatched += len(group)
		result.PerWebsite[website.Slug] = len(group)
	}

	if result.Dispatched > 0 {
		s.logger.Info("Dispatch cycle complete",
			logger.Int("dispatched", result.Dispatched),
			logger.Int("batches", result.Batches),
		)
	}

	return result, nil
}

// DispatchWebsite runs one cycle for a single website, up to the per-website
// cap. The website must be active; inactive sites simply have no ready
// entries.
func (s *Service) DispatchWebsite(ctx context.Context, websiteID int64) (*Result, error) {
	website, err := s.websites.GetByID(ctx, websiteID)
	if err != nil {
		return nil, err
	}

	ready, err := s.entries.NextReadyForWebsite(ctx, websiteID, s.websiteLimit)
	if err != nil {
		return nil, fmt.Errorf("select ready entries: %w", err)
	}

	result := &Result{PerWebsite: map[string]int{}}
	if len(ready) == 0 {
		return result, nil
	}

	if err := s.submitGroup(ctx, website, ready); err != nil {
		return nil, fmt.Errorf("submit batch for %s: %w", website.Slug, err)
	}

	result.Batches = 1
	result.Dispatched = len(ready)
	result.PerWebsite[website.Slug] = len(ready)

	s.logger.Info("Website dispatch complete",
		logger.String("website", website.Slug),
		logger.Int("dispatched", result.Dispatched),
	)

	return result, nil
}

func (s *Service) submitGroup(ctx context.Context, website *models.Website, group []*models.DataEntry) error {
	batch := make([]engine.BatchEntry, 0, len(group))
	ids := make([]int64, 0, len(group))
	for _, entry := range group {
		batch = append(batch, engine.BatchEntry{
			ID:          entry.ID,
			Identifier:  entry.Identifier,
			Data:        entry.Data,
			Priority:    entry.Priority,
			MaxAttempts: entry.MaxAttempts,
		})
		ids = append(ids, entry.ID)
	}

	if err := s.engine.SubmitBatch(ctx, website.Slug, batch); err != nil {
		return err
	}

	// Engine accepted the whole batch; mirror that in entry state
	if err := s.entries.MarkQueued(ctx, ids); err != nil {
		return fmt.Errorf("mark queued after submit: %w", err)
	}

	s.publisher.PublishAsync(events.NewBatchDispatchedEvent(website.Slug, len(ids)))

	return nil
}
