// Package pool selects proxies and CAPTCHA services for workers and tracks
// their outcomes.
package pool

import (
	"context"

	"github.com/jonesrussell/gobotctl/internal/events"
	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/models"
)

type proxyStore interface {
	ListActive(ctx context.Context) ([]*models.Proxy, error)
	NextActive(ctx context.Context, excludeIDs []int64) (*models.Proxy, error)
	RecordSuccess(ctx context.Context, id int64) (*models.Proxy, error)
	RecordFailure(ctx context.Context, id int64) (*models.Proxy, error)
}

type captchaStore interface {
	ListActive(ctx context.Context) ([]*models.CaptchaService, error)
	GetDefault(ctx context.Context) (*models.CaptchaService, error)
	RecordSuccess(ctx context.Context, id int64, solveTime float64) (*models.CaptchaService, error)
	RecordFailure(ctx context.Context, id int64) (*models.CaptchaService, error)
}

// Selector hands out proxies and CAPTCHA services. Selection policy lives in
// the repositories; the selector adds outcome bookkeeping and the
// auto-disable event.
type Selector struct {
	proxies   proxyStore
	captchas  captchaStore
	publisher *events.Publisher
	logger    logger.Logger
}

func NewSelector(proxies proxyStore, captchas captchaStore, publisher *events.Publisher, log logger.Logger) *Selector {
	return &Selector{
		proxies:   proxies,
		captchas:  captchas,
		publisher: publisher,
		logger:    log,
	}
}

// NextProxy returns the healthiest least recently used active proxy outside
// the exclusion set. Workers pass the ids they already tried and failed with
// so a bad proxy is not handed straight back.
func (s *Selector) NextProxy(ctx context.Context, excludeIDs []int64) (*models.Proxy, error) {
	return s.proxies.NextActive(ctx, excludeIDs)
}

// ActiveProxies lists the current rotation, healthiest first.
func (s *Selector) ActiveProxies(ctx context.Context) ([]*models.Proxy, error) {
	return s.proxies.ListActive(ctx)
}

// RecordProxySuccess counts a successful proxy use.
func (s *Selector) RecordProxySuccess(ctx context.Context, id int64) (*models.Proxy, error) {
	return s.proxies.RecordSuccess(ctx, id)
}

// RecordProxyFailure counts a failed proxy use. The repository disables the
// proxy when it crosses the failure thresholds; that transition is surfaced
// as an event.
func (s *Selector) RecordProxyFailure(ctx context.Context, id int64) (*models.Proxy, error) {
	proxy, err := s.proxies.RecordFailure(ctx, id)
	if err != nil {
		return nil, err
	}

	if !proxy.IsActive {
		s.logger.Warn("Proxy pulled from rotation",
			logger.Int64("proxy_id", proxy.ID),
			logger.Int("failures", proxy.FailureCount),
		)
		s.publisher.PublishAsync(events.NewProxyDisabledEvent(proxy.ID, proxy.SuccessRate()))
	}

	return proxy, nil
}

// DefaultCaptchaService returns the service workers should solve with.
func (s *Selector) DefaultCaptchaService(ctx context.Context) (*models.CaptchaService, error) {
	return s.captchas.GetDefault(ctx)
}

// ActiveCaptchaServices lists configured active services.
func (s *Selector) ActiveCaptchaServices(ctx context.Context) ([]*models.CaptchaService, error) {
	return s.captchas.ListActive(ctx)
}

// RecordCaptchaSuccess counts a solve and its duration.
func (s *Selector) RecordCaptchaSuccess(ctx context.Context, id int64, solveTime float64) (*models.CaptchaService, error) {
	return s.captchas.RecordSuccess(ctx, id, solveTime)
}

// RecordCaptchaFailure counts a failed solve.
func (s *Selector) RecordCaptchaFailure(ctx context.Context, id int64) (*models.CaptchaService, error) {
	return s.captchas.RecordFailure(ctx, id)
}
