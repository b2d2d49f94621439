package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/jonesrussell/gobotctl/internal/logger"
	"github.com/jonesrussell/gobotctl/internal/models"
)

const proxyColumns = `
	id, host, port, username, password, protocol, is_active,
	country, success_count, failure_count, last_used_at, created_at, updated_at`

type ProxyRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewProxyRepository(db *sql.DB, log logger.Logger) *ProxyRepository {
	return &ProxyRepository{
		db:     db,
		logger: log,
	}
}

func scanProxy(row interface{ Scan(...any) error }) (*models.Proxy, error) {
	var p models.Proxy
	err := row.Scan(
		&p.ID,
		&p.Host,
		&p.Port,
		&p.Username,
		&p.Password,
		&p.Protocol,
		&p.IsActive,
		&p.Country,
		&p.SuccessCount,
		&p.FailureCount,
		&p.LastUsedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListActive returns all active proxies ordered by health. Proxies with no
// recorded outcomes sort last; an unproven proxy never outranks one with
// history.
func (r *ProxyRepository) ListActive(ctx context.Context) ([]*models.Proxy, error) {
	query := `SELECT` + proxyColumns + `
		FROM proxies
		WHERE is_active = true
		ORDER BY success_count::float / NULLIF(success_count + failure_count, 0) DESC NULLS LAST,
		         last_used_at ASC NULLS FIRST`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active proxies: %w", err)
	}
	defer rows.Close()

	var proxies []*models.Proxy
	for rows.Next() {
		p, scanErr := scanProxy(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan proxy: %w", scanErr)
		}
		proxies = append(proxies, p)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate proxies: %w", rowsErr)
	}

	return proxies, nil
}

// NextActive picks the healthiest, least recently used active proxy outside
// the exclusion set and stamps its last_used_at so repeated calls rotate
// through the pool. Proxies with no recorded outcomes are still eligible but
// rank behind every proxy with history.
func (r *ProxyRepository) NextActive(ctx context.Context, excludeIDs []int64) (*models.Proxy, error) {
	now := time.Now()
	query := `
		UPDATE proxies
		SET last_used_at = $1, updated_at = $1
		WHERE id = (
			SELECT id FROM proxies
			WHERE is_active = true AND id <> ALL($2)
			ORDER BY success_count::float / NULLIF(success_count + failure_count, 0) DESC NULLS LAST,
			         last_used_at ASC NULLS FIRST
			LIMIT 1
		)
		RETURNING` + proxyColumns

	p, err := scanProxy(r.db.QueryRowContext(ctx, query, now, pq.Array(excludeIDs)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no active proxy: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select next proxy: %w", err)
	}

	return p, nil
}

// RecordSuccess counts a successful use of the proxy.
func (r *ProxyRepository) RecordSuccess(ctx context.Context, id int64) (*models.Proxy, error) {
	now := time.Now()
	query := `
		UPDATE proxies
		SET success_count = success_count + 1, last_used_at = $1, updated_at = $1
		WHERE id = $2
		RETURNING` + proxyColumns

	p, err := scanProxy(r.db.QueryRowContext(ctx, query, now, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("proxy %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("record proxy success: %w", err)
	}

	return p, nil
}

// RecordFailure counts a failed use of the proxy and disables it in the same
// statement once it has enough outcomes with a success rate below the floor.
func (r *ProxyRepository) RecordFailure(ctx context.Context, id int64) (*models.Proxy, error) {
	now := time.Now()
	query := `
		UPDATE proxies
		SET failure_count = failure_count + 1,
		    is_active = CASE
		        WHEN success_count + failure_count + 1 >= $1
		             AND success_count::float / (success_count + failure_count + 1) * 100 < $2
		        THEN false
		        ELSE is_active
		    END,
		    updated_at = $3
		WHERE id = $4
		RETURNING` + proxyColumns

	p, err := scanProxy(r.db.QueryRowContext(ctx, query,
		models.ProxyMinOutcomes, models.ProxyMinSuccessRate, now, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("proxy %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("record proxy failure: %w", err)
	}

	return p, nil
}
