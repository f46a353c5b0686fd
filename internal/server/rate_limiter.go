package server

import (
	"sync"
	"time"
)

// writeLimiter applies a fixed-window cap to mutating requests, one
// window per org scope. Unscoped callers are bucketed by client IP and
// share the same cap.
type writeLimiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*writeWindow
}

type writeWindow struct {
	openedAt time.Time
	used     int
}

func newWriteLimiter(max int, window time.Duration) *writeLimiter {
	return &writeLimiter{
		max:     max,
		window:  window,
		windows: make(map[string]*writeWindow),
	}
}

// AllowScope consumes one slot from the scope's current window, opening
// a fresh window when the previous one has lapsed.
func (l *writeLimiter) AllowScope(scope string) bool {
	if scope == "" {
		return false
	}

	now := time.Now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[scope]
	if w == nil || now.Sub(w.openedAt) > l.window {
		w = &writeWindow{openedAt: now}
		l.windows[scope] = w
	}
	if w.used >= l.max {
		return false
	}
	w.used++
	return true
}
