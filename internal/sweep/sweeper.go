// Package sweep removes expired listings from the cache in bounded batches.
package sweep

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jobscout/jobscout/internal/store"
)

// Sweeper drains expired listings from the backing store. Each pass deletes
// at most batchSize rows so a large backlog never holds a long transaction.
type Sweeper struct {
	store     store.Store
	batchSize int
}

func New(st store.Store, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{store: st, batchSize: batchSize}
}

// Sweep deletes expired listings batch by batch until none remain or the
// context is cancelled. It returns the total number of rows removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, eris.Wrap(err, "sweep: cancelled")
		}
		n, err := s.store.DeleteExpiredListings(ctx, s.batchSize)
		if err != nil {
			return total, eris.Wrap(err, "sweep: delete batch")
		}
		total += n
		if n < s.batchSize {
			return total, nil
		}
	}
}

// backgroundTimeout bounds an opportunistic sweep so a slow store cannot
// leak a goroutine past the request that triggered it.
const backgroundTimeout = time.Minute

// Background runs a sweep on a goroutine and logs the outcome. Callers that
// trigger opportunistic cleanup after a cache write use this so a slow or
// failing sweep never delays the response.
func (s *Sweeper) Background(ctx context.Context) {
	go func() {
		ctx, cancel := context.WithTimeout(ctx, backgroundTimeout)
		defer cancel()
		n, err := s.Sweep(ctx)
		if err != nil {
			zap.L().Warn("background sweep failed", zap.Int("removed", n), zap.Error(err))
			return
		}
		if n > 0 {
			zap.L().Info("background sweep completed", zap.Int("removed", n))
		}
	}()
}

// Schedule registers periodic sweeps on a cron runner. The returned cron is
// already started; callers stop it on shutdown.
func (s *Sweeper) Schedule(ctx context.Context, schedule string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		n, err := s.Sweep(ctx)
		if err != nil {
			zap.L().Error("scheduled sweep failed", zap.Error(err))
			return
		}
		zap.L().Info("scheduled sweep completed", zap.Int("removed", n))
	})
	if err != nil {
		return nil, eris.Wrap(err, "sweep: schedule")
	}
	c.Start()
	return c, nil
}
