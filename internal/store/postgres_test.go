package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobscout/jobscout/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit
// testing without a live database.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s := &PostgresStore{pool: mock, opts: defaultOptions()}
	return s, mock
}

func TestPostgres_GetSearch_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT fingerprint, params, listing_ids, total_count, total_pages, created_at`).
		WithArgs("fp-missing").
		WillReturnRows(pgxmock.NewRows([]string{"fingerprint", "params", "listing_ids", "total_count", "total_pages", "created_at"}))

	got, err := s.GetSearch(context.Background(), "fp-missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetSearch_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	params := model.SearchParams{Title: "backend engineer", Page: 1}
	fp := params.Fingerprint()

	mock.ExpectQuery(`SELECT fingerprint, params, listing_ids, total_count, total_pages, created_at`).
		WithArgs(fp).
		WillReturnRows(pgxmock.NewRows([]string{"fingerprint", "params", "listing_ids", "total_count", "total_pages", "created_at"}).
			AddRow(fp, []byte(`{"title":"backend engineer","location":"","page":1}`), []byte(`["a","b"]`), 2, 1, time.Now().UTC()))

	got, err := s.GetSearch(context.Background(), fp)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"a", "b"}, got.ListingIDs)
	assert.Equal(t, "backend engineer", got.Params.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetSearch_ExpiredReadsAbsent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM search_results WHERE fingerprint`).
		WithArgs("fp-old").
		WillReturnRows(pgxmock.NewRows([]string{"fingerprint", "params", "listing_ids", "total_count", "total_pages", "created_at"}).
			AddRow("fp-old", []byte(`{}`), []byte(`[]`), 0, 0, time.Now().UTC().Add(-DefaultRetention-time.Hour)))

	got, err := s.GetSearch(context.Background(), "fp-old")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PutSearch_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO search_results`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), []byte(`["a"]`), 1, 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	params := model.SearchParams{Title: "backend engineer", Page: 1}
	err := s.PutSearch(context.Background(), params, []string{"a"}, 1, 1)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetListing_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload, validity, verified_at, attempts, cached_at FROM listings`).
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"payload", "validity", "verified_at", "attempts", "cached_at"}))

	got, err := s.GetListing(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetListing_VerificationColumnsOverridePayload(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	verifiedAt := time.Now().UTC().Add(-time.Hour)
	mock.ExpectQuery(`SELECT payload, validity, verified_at, attempts, cached_at FROM listings`).
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"payload", "validity", "verified_at", "attempts", "cached_at"}).
			AddRow([]byte(`{"id":"job-1","title":"backend engineer","validity":"unverified"}`),
				"invalid", &verifiedAt, 3, time.Now().UTC()))

	got, err := s.GetListing(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ValidityInvalid, got.Validity, "column wins over stale payload copy")
	assert.Equal(t, 3, got.Attempts)
	require.NotNil(t, got.VerifiedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PutListing_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO listings`).
		WithArgs("job-1", pgxmock.AnyArg(), "unverified", 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.PutListing(context.Background(), model.Listing{ID: "job-1", Title: "backend engineer"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PutListings_Transactional(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO listings`).
		WithArgs("a", pgxmock.AnyArg(), "unverified", 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO listings`).
		WithArgs("b", pgxmock.AnyArg(), "unverified", 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.PutListings(context.Background(), []model.Listing{
		{ID: "a", Title: "one"},
		{ID: "b", Title: "two"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetListingValidity(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE listings SET validity`).
		WithArgs("valid", pgxmock.AnyArg(), "job-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	updated, err := s.SetListingValidity(context.Background(), "job-1", true)
	require.NoError(t, err)
	assert.True(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetListingValidity_MissingRow(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE listings SET validity`).
		WithArgs("invalid", pgxmock.AnyArg(), "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	updated, err := s.SetListingValidity(context.Background(), "gone", false)
	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteExpiredListings(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM listings WHERE id IN`).
		WithArgs(pgxmock.AnyArg(), 100).
		WillReturnResult(pgxmock.NewResult("DELETE", 37))
	mock.ExpectExec(`DELETE FROM search_results WHERE created_at`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := s.DeleteExpiredListings(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 37, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
