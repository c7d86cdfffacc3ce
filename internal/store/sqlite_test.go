package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobscout/jobscout/internal/model"
)

// testClock is a mutable clock for driving expiry without sleeping.
type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T) (*SQLiteStore, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath, WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st, clock
}

func testListing(id string, cachedAt time.Time) model.Listing {
	return model.Listing{
		ID:          id,
		Title:       "backend engineer",
		Company:     "Initech",
		Location:    "London",
		RedirectURL: "https://example.com/jobs/" + id,
		CachedAt:    cachedAt,
	}
}

// --- Search cache ---

func TestSQLite_Search_PutAndGet(t *testing.T) {
	st, clock := newTestStore(t)
	ctx := context.Background()

	params := model.SearchParams{Title: "Backend Engineer", Location: "London", Page: 1}
	require.NoError(t, st.PutSearch(ctx, params, []string{"a", "b"}, 42, 5))

	got, err := st.GetSearch(ctx, params.Fingerprint())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, params.Fingerprint(), got.Fingerprint)
	assert.Equal(t, []string{"a", "b"}, got.ListingIDs)
	assert.Equal(t, 42, got.TotalCount)
	assert.Equal(t, 5, got.TotalPages)
	assert.Equal(t, "backend engineer", got.Params.Title)
	assert.WithinDuration(t, clock.Now(), got.CreatedAt, time.Second)
}

func TestSQLite_Search_Missing(t *testing.T) {
	st, _ := newTestStore(t)

	got, err := st.GetSearch(context.Background(), "no-such-fingerprint")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Search_OverwriteLastWins(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	params := model.SearchParams{Title: "backend engineer", Page: 1}
	require.NoError(t, st.PutSearch(ctx, params, []string{"a"}, 1, 1))
	require.NoError(t, st.PutSearch(ctx, params, []string{"b", "c"}, 2, 1))

	got, err := st.GetSearch(ctx, params.Fingerprint())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"b", "c"}, got.ListingIDs)
	assert.Equal(t, 2, got.TotalCount)
}

func TestSQLite_Search_ExpiryBoundary(t *testing.T) {
	st, clock := newTestStore(t)
	ctx := context.Background()

	params := model.SearchParams{Title: "backend engineer", Page: 1}
	require.NoError(t, st.PutSearch(ctx, params, []string{"a"}, 1, 1))

	// One second short of the window: still served.
	clock.Advance(DefaultRetention - time.Second)
	got, err := st.GetSearch(ctx, params.Fingerprint())
	require.NoError(t, err)
	assert.NotNil(t, got)

	// Just past it: reads as absent even though the row still exists.
	clock.Advance(2 * time.Second)
	got, err = st.GetSearch(ctx, params.Fingerprint())
	require.NoError(t, err)
	assert.Nil(t, got)
}

// --- Listings ---

func TestSQLite_Listing_PutAndGet(t *testing.T) {
	st, clock := newTestStore(t)
	ctx := context.Background()

	l := testListing("job-1", clock.Now())
	l.Raw = map[string]any{"salary_is_predicted": "0"}
	require.NoError(t, st.PutListing(ctx, l))

	got, err := st.GetListing(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "backend engineer", got.Title)
	assert.Equal(t, model.ValidityUnverified, got.Validity)
	assert.Equal(t, 0, got.Attempts)
	assert.Nil(t, got.VerifiedAt)
	assert.Equal(t, "0", got.Raw["salary_is_predicted"])
}

func TestSQLite_Listing_Missing(t *testing.T) {
	st, _ := newTestStore(t)

	got, err := st.GetListing(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Listing_OverwritePreservesVerification(t *testing.T) {
	st, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutListing(ctx, testListing("job-1", clock.Now())))

	updated, err := st.SetListingValidity(ctx, "job-1", false)
	require.NoError(t, err)
	assert.True(t, updated)

	// The listing reappears in a fresh search result.
	fresh := testListing("job-1", clock.Now())
	fresh.Title = "senior backend engineer"
	require.NoError(t, st.PutListing(ctx, fresh))

	got, err := st.GetListing(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "senior backend engineer", got.Title, "payload replaced")
	assert.Equal(t, model.ValidityInvalid, got.Validity, "verification state preserved")
	assert.Equal(t, 1, got.Attempts)
	assert.NotNil(t, got.VerifiedAt)
}

func TestSQLite_Listing_ExpiredReadsAbsent(t *testing.T) {
	st, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutListing(ctx, testListing("job-1", clock.Now())))
	clock.Advance(DefaultRetention + time.Hour)

	got, err := st.GetListing(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_GetListings_OrderAndFiltering(t *testing.T) {
	st, clock := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, st.PutListing(ctx, testListing(id, clock.Now())))
	}
	// Confirmed-dead listings are soft-filtered out of search results.
	_, err := st.SetListingValidity(ctx, "b", false)
	require.NoError(t, err)

	got, err := st.GetListings(ctx, []string{"c", "missing", "b", "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID, "cached order preserved")
	assert.Equal(t, "a", got[1].ID)
}

func TestSQLite_GetListings_Empty(t *testing.T) {
	st, _ := newTestStore(t)

	got, err := st.GetListings(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_PutListings_Batch(t *testing.T) {
	st, clock := newTestStore(t)
	ctx := context.Background()

	batch := []model.Listing{
		testListing("a", clock.Now()),
		testListing("b", clock.Now()),
		testListing("c", clock.Now()),
	}
	require.NoError(t, st.PutListings(ctx, batch))

	got, err := st.GetListings(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

// --- Verification state ---

func TestSQLite_SetListingValidity_IncrementsAttempts(t *testing.T) {
	st, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutListing(ctx, testListing("job-1", clock.Now())))

	_, err := st.SetListingValidity(ctx, "job-1", true)
	require.NoError(t, err)
	_, err = st.SetListingValidity(ctx, "job-1", true)
	require.NoError(t, err)

	got, err := st.GetListing(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ValidityValid, got.Validity)
	assert.Equal(t, 2, got.Attempts)
}

func TestSQLite_SetListingValidity_MissingNotAnError(t *testing.T) {
	st, _ := newTestStore(t)

	updated, err := st.SetListingValidity(context.Background(), "swept-away", true)
	require.NoError(t, err)
	assert.False(t, updated)
}

// --- Expiry sweep ---

func TestSQLite_DeleteExpiredListings_BoundedBatches(t *testing.T) {
	st, clock := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		require.NoError(t, st.PutListing(ctx, testListing(fmt.Sprintf("job-%03d", i), clock.Now())))
	}
	clock.Advance(DefaultRetention + time.Hour)

	n, err := st.DeleteExpiredListings(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	n, err = st.DeleteExpiredListings(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	n, err = st.DeleteExpiredListings(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLite_DeleteExpiredListings_SparesFresh(t *testing.T) {
	st, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutListing(ctx, testListing("old", clock.Now())))
	clock.Advance(DefaultRetention + time.Hour)
	require.NoError(t, st.PutListing(ctx, testListing("fresh", clock.Now())))

	n, err := st.DeleteExpiredListings(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.GetListing(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestSQLite_DeleteExpiredListings_InvalidBatchSize(t *testing.T) {
	st, _ := newTestStore(t)

	_, err := st.DeleteExpiredListings(context.Background(), 0)
	assert.Error(t, err)
}

// --- Payload sanitization ---

func TestSQLite_PutListing_StripsDunderKeys(t *testing.T) {
	st, clock := newTestStore(t)
	ctx := context.Background()

	l := testListing("job-1", clock.Now())
	l.Raw = map[string]any{
		"__CLASS__":           "Adzuna::API::Response::Job",
		"adref":               "abc123",
		"salary_is_predicted": "0",
		"company": map[string]any{
			"__CLASS__":    "Adzuna::API::Response::Company",
			"display_name": "Initech",
		},
		"tags": []any{
			map[string]any{"__CLASS__": "Tag", "label": "go"},
		},
	}
	require.NoError(t, st.PutListing(ctx, l))

	got, err := st.GetListing(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.NotContains(t, got.Raw, "__CLASS__")
	assert.Equal(t, "abc123", got.Raw["adref"])

	company, ok := got.Raw["company"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, company, "__CLASS__")
	assert.Equal(t, "Initech", company["display_name"])

	tags, ok := got.Raw["tags"].([]any)
	require.True(t, ok)
	tag, ok := tags[0].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, tag, "__CLASS__")
	assert.Equal(t, "go", tag["label"])
}

func TestAllowedKey(t *testing.T) {
	assert.False(t, allowedKey("__CLASS__"))
	assert.False(t, allowedKey("____"))
	assert.True(t, allowedKey("__partial"))
	assert.True(t, allowedKey("partial__"))
	assert.True(t, allowedKey("_single_"))
	assert.True(t, allowedKey("plain"))
}
