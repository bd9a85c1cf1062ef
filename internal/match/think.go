package match

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// thinker draws human-looking pauses from [min, max).
type thinker struct {
	min, max time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func newThinker(lo, hi time.Duration, seed int64) *thinker {
	if hi < lo {
		hi = lo
	}
	return &thinker{min: lo, max: hi, rng: rand.New(rand.NewSource(seed))}
}

func (t *thinker) next() time.Duration {
	span := t.max - t.min
	if span <= 0 {
		return t.min
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.min + time.Duration(t.rng.Int63n(int64(span)))
}

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
