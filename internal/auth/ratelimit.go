package auth

import (
	"sync"
	"time"
)

// AttemptLimiter is a sliding-window rate limiter keyed by account.
//
// It throttles credential verification (login passwords, vault PINs) to a
// few attempts per window. Defence is throughput limiting, not permanent
// lockout: once the window slides past old attempts the account may try
// again without operator intervention.
type AttemptLimiter struct {
	max    int
	window time.Duration

	mu       sync.Mutex
	attempts map[string][]time.Time

	now func() time.Time // injectable for tests
}

// NewAttemptLimiter creates a limiter allowing max attempts per window per key.
func NewAttemptLimiter(max int, window time.Duration) *AttemptLimiter {
	if max <= 0 {
		max = 5 //nolint:mnd // default attempt budget
	}
	if window <= 0 {
		window = time.Minute
	}
	return &AttemptLimiter{
		max:      max,
		window:   window,
		attempts: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow records an attempt for key and reports whether it is within budget.
// The attempt is counted even when denied, so hammering extends the wait.
func (l *AttemptLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.attempts[key][:0]
	for _, t := range l.attempts[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	allowed := len(recent) < l.max
	recent = append(recent, now)
	l.attempts[key] = recent

	return allowed
}

// Reset clears the attempt history for key, typically after a successful
// verification.
func (l *AttemptLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}

// Prune drops keys whose attempts have all aged out of the window.
// Call periodically from a background loop to bound memory.
func (l *AttemptLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for key, times := range l.attempts {
		live := false
		for _, t := range times {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.attempts, key)
		}
	}
}
