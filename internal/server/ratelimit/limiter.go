// Package ratelimit admits at most a fixed number of calls per (owner,
// endpoint) pair within a sliding time window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/juju/clock"
)

// Limiter keeps one sliding log per key. Keys are independent: each has its
// own mutex and no lock is shared on the admission path.
type Limiter struct {
	calls  int
	window time.Duration
	clock  clock.Clock

	windows sync.Map // key -> *slidingLog
}

type slidingLog struct {
	mu     sync.Mutex
	stamps []time.Time
	// dead is set by the sweeper once the log has been dropped from the map.
	dead bool
}

// New returns a limiter admitting calls per window. A nil clk means wall time.
func New(calls int, window time.Duration, clk clock.Clock) *Limiter {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Limiter{calls: calls, window: window, clock: clk}
}

// Admit records a call for (ownerID, endpoint) and returns
// common.ErrRateLimited if the window already holds the maximum.
// Rejected calls are not recorded.
func (l *Limiter) Admit(ownerID, endpoint string) error {
	if l.calls <= 0 || l.window <= 0 {
		return nil
	}
	key := ownerID + "\x00" + endpoint
	for {
		v, _ := l.windows.LoadOrStore(key, &slidingLog{})
		w := v.(*slidingLog)

		w.mu.Lock()
		if w.dead {
			w.mu.Unlock()
			continue
		}
		now := l.clock.Now()
		w.prune(now, l.window)
		if len(w.stamps) >= l.calls {
			w.mu.Unlock()
			return common.ErrRateLimited
		}
		w.stamps = append(w.stamps, now)
		w.mu.Unlock()
		return nil
	}
}

// prune drops stamps that are a full window old.
func (w *slidingLog) prune(now time.Time, window time.Duration) {
	i := 0
	for i < len(w.stamps) && now.Sub(w.stamps[i]) >= window {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// Sweep removes keys whose logs hold no live stamps.
func (l *Limiter) Sweep() int {
	now := l.clock.Now()
	removed := 0
	l.windows.Range(func(k, v any) bool {
		w := v.(*slidingLog)
		w.mu.Lock()
		w.prune(now, l.window)
		if len(w.stamps) == 0 {
			w.dead = true
			l.windows.Delete(k)
			removed++
		}
		w.mu.Unlock()
		return true
	})
	return removed
}

// Run sweeps idle keys once per window until ctx is done.
func (l *Limiter) Run(ctx context.Context) error {
	if l.window <= 0 {
		<-ctx.Done()
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.clock.After(l.window):
			l.Sweep()
		}
	}
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	n := 0
	l.windows.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
