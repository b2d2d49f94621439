package repository

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gobotctl/internal/testhelpers"
)

var websiteRows = []string{
	"id", "name", "slug", "base_url", "description", "is_active",
	"headers", "cookies", "timeout", "retry_attempts", "retry_delay",
	"concurrency_limit", "max_jobs_per_minute", "priority",
	"user_agent", "use_stealth", "use_proxy", "created_at", "updated_at",
}

func newWebsiteRow(id int64, slug string, active bool) []driver.Value {
	now := time.Now()
	return []driver.Value{
		id, "Example", slug, "https://example.com", nil, active,
		[]byte(`{}`), []byte(`{}`), 30, 3, 5,
		2, 60, 0,
		nil, false, false, now, now,
	}
}

func TestWebsiteRepositoryGetBySlug(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM websites").
		WithArgs("example").
		WillReturnRows(sqlmock.NewRows(websiteRows).AddRow(newWebsiteRow(1, "example", true)...))

	repo := NewWebsiteRepository(db, testhelpers.NewTestLogger())
	site, err := repo.GetBySlug(context.Background(), "example")
	require.NoError(t, err)
	assert.Equal(t, "example", site.Slug)
	assert.True(t, site.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebsiteRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM websites").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(websiteRows))

	repo := NewWebsiteRepository(db, testhelpers.NewTestLogger())
	_, err = repo.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebsiteRepositorySetActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE websites SET is_active").
		WithArgs(true, sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewWebsiteRepository(db, testhelpers.NewTestLogger())
	require.NoError(t, repo.SetActive(context.Background(), 1, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebsiteRepositorySetActiveNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE websites SET is_active").
		WithArgs(false, sqlmock.AnyArg(), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewWebsiteRepository(db, testhelpers.NewTestLogger())
	err = repo.SetActive(context.Background(), 9, false)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
