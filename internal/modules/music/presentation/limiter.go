package presentation

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

const (
	rateLimitCalls  = 5
	rateLimitWindow = time.Minute
)

// rateLimiter bounds how often a single user can request playback.
type rateLimiter struct {
	mu    sync.Mutex
	calls map[snowflake.ID][]time.Time
	now   func() time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		calls: make(map[snowflake.ID][]time.Time),
		now:   time.Now,
	}
}

// allow records one call for userID and reports whether it stayed within
// rateLimitCalls per rateLimitWindow.
func (r *rateLimiter) allow(userID snowflake.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-rateLimitWindow)
	kept := r.calls[userID][:0]
	for _, t := range r.calls[userID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= rateLimitCalls {
		r.calls[userID] = kept
		return false
	}
	r.calls[userID] = append(kept, now)
	return true
}
