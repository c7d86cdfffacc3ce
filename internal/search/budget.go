package search

import (
	"sync"
	"time"
)

// Budget is the daily outbound-request ceiling for the provider. It exists
// to protect the provider quota, not performance: once the day's allowance
// is spent, searches fail with ErrBudgetExhausted until local midnight.
//
// The counter is process-scoped and clock-injected so tests can roll the day
// over without touching the wall clock.
type Budget struct {
	mu sync.Mutex

	limit int
	used  int
	day   time.Time // local midnight of the day the counter belongs to
	now   func() time.Time
}

// NewBudget returns a Budget allowing limit provider calls per local day.
// A non-positive limit disables the ceiling.
func NewBudget(limit int, now func() time.Time) *Budget {
	if now == nil {
		now = time.Now
	}
	return &Budget{limit: limit, now: now}
}

// Allow consumes one unit of budget. It returns false once the daily limit
// is exhausted.
func (b *Budget) Allow() bool {
	if b.limit <= 0 {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover()
	if b.used >= b.limit {
		return false
	}
	b.used++
	return true
}

// Remaining reports how much of today's budget is left.
func (b *Budget) Remaining() int {
	if b.limit <= 0 {
		return -1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover()
	return b.limit - b.used
}

// rollover resets the counter when the local calendar day has changed.
// Callers must hold b.mu.
func (b *Budget) rollover() {
	today := localMidnight(b.now())
	if !today.Equal(b.day) {
		b.day = today
		b.used = 0
	}
}

func localMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
