// Package ratelimit throttles write endpoints per workspace.
package ratelimit

import (
	"sync"
	"time"
)

// Message is returned to throttled callers.
const Message = "Too Many Requests: Please wait 5 seconds before retrying."

// Limiter decides whether a call for key may proceed now.
type Limiter interface {
	Allow(key string) bool
}

// Window admits one call per key per window.
type Window struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func NewWindow(window time.Duration) *Window {
	return &Window{window: window, now: time.Now, last: make(map[string]time.Time)}
}

// Allow records the call when it is admitted. Rejected calls do not extend
// the window.
func (w *Window) Allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	if last, ok := w.last[key]; ok && now.Sub(last) < w.window {
		return false
	}
	w.last[key] = now
	return true
}

// Unlimited admits every call.
type Unlimited struct{}

func (Unlimited) Allow(string) bool { return true }
