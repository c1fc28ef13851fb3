package signal

import (
	"errors"
	"sync"
	"time"
)

var ErrTooManyJoins = errors.New("too many join attempts, slow down")

// RoomRateLimiter is a sliding-window limiter keyed by client identity.
type RoomRateLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewRoomRateLimiter(limit int, interval time.Duration) *RoomRateLimiter {
	return &RoomRateLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RoomRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[key]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[key] = fresh
		return false
	}

	rl.history[key] = append(fresh, now)
	rl.prune(windowStart)
	return true
}

// prune forgets keys with no attempts inside the window.
func (rl *RoomRateLimiter) prune(windowStart time.Time) {
	if len(rl.history) < 1024 {
		return
	}
	for k, ts := range rl.history {
		if len(ts) == 0 || !ts[len(ts)-1].After(windowStart) {
			delete(rl.history, k)
		}
	}
}
