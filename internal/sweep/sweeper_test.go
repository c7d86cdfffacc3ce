package sweep

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobscout/jobscout/internal/model"
	"github.com/jobscout/jobscout/internal/store"
)

func newSweepFixture(t *testing.T, listings int) (*Sweeper, store.Store) {
	t.Helper()

	cached := time.Now().Add(-store.DefaultRetention - time.Hour)
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	for i := 0; i < listings; i++ {
		require.NoError(t, st.PutListing(context.Background(), model.Listing{
			ID:       fmt.Sprintf("job-%03d", i),
			Title:    "backend engineer",
			CachedAt: cached,
		}))
	}
	return New(st, 100), st
}

func TestSweep_DrainsInBatches(t *testing.T) {
	s, st := newSweepFixture(t, 150)

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 150, n)

	// Second pass finds nothing.
	n, err = s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := st.GetListing(context.Background(), "job-000")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSweep_EmptyStore(t *testing.T) {
	s, _ := newSweepFixture(t, 0)

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSweep_CancelledContext(t *testing.T) {
	s, _ := newSweepFixture(t, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Sweep(ctx)
	assert.Error(t, err)
}

func TestNew_DefaultsBatchSize(t *testing.T) {
	s := New(nil, 0)
	assert.Equal(t, 100, s.batchSize)
}

// deadlineStore records whether the sweep context carried a deadline.
type deadlineStore struct {
	store.Store
	sawDeadline chan bool
}

func (d *deadlineStore) DeleteExpiredListings(ctx context.Context, batchSize int) (int, error) {
	_, ok := ctx.Deadline()
	d.sawDeadline <- ok
	return 0, nil
}

func TestBackground_BoundsSweepWithTimeout(t *testing.T) {
	ds := &deadlineStore{sawDeadline: make(chan bool, 1)}
	s := New(ds, 100)

	s.Background(context.Background())

	select {
	case ok := <-ds.sawDeadline:
		assert.True(t, ok, "background sweep must not run unbounded")
	case <-time.After(5 * time.Second):
		t.Fatal("background sweep never reached the store")
	}
}
