// Package task provides cooperative cancellation for long-running plugin
// jobs. The host creates a token per job, hands the token to the worker, and
// cancels by id when the user aborts. Workers observe cancellation by polling
// the token between units of work; nothing is ever interrupted forcibly.
package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPollInterval is how often WaitOrCancel re-checks the token while
// waiting out a delay.
const DefaultPollInterval = 50 * time.Millisecond

// MaxPollInterval caps the poll interval so cancellation latency stays
// bounded even with a misconfigured interval.
const MaxPollInterval = 100 * time.Millisecond

// Token is a one-way cancellation flag shared between the host and a worker.
// Once cancelled it never reverts. Safe for concurrent use.
type Token struct {
	cancelled atomic.Bool
}

// NewToken returns a fresh, un-cancelled token.
func NewToken() *Token {
	return &Token{}
}

// Cancel sets the flag. Calling it more than once is harmless.
func (t *Token) Cancel() {
	t.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	return t.cancelled.Load()
}

// Registry maps job ids to cancellation tokens. The zero value is not usable;
// use NewRegistry.
type Registry struct {
	mu     sync.Mutex
	tokens map[string]*Token
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]*Token)}
}

// CreateToken registers a new token under id and returns it. If a token
// already exists for id it is replaced; the old token is left un-cancelled
// for any worker still holding it.
func (r *Registry) CreateToken(id string) *Token {
	t := NewToken()
	r.mu.Lock()
	r.tokens[id] = t
	r.mu.Unlock()
	return t
}

// Cancel flags the token registered under id and reports whether a token was
// found. The token stays registered after cancellation so late Cancel calls
// for the same id remain answerable; Remove or ClearAll reclaim entries.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	t, ok := r.tokens[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	t.Cancel()
	return true
}

// Token returns the token registered under id, if any.
func (r *Registry) Token(id string) (*Token, bool) {
	r.mu.Lock()
	t, ok := r.tokens[id]
	r.mu.Unlock()
	return t, ok
}

// Remove drops the token registered under id without cancelling it.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.tokens, id)
	r.mu.Unlock()
}

// ClearAll cancels every registered token and empties the registry. Used at
// shutdown so in-flight workers wind down.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	tokens := r.tokens
	r.tokens = make(map[string]*Token)
	r.mu.Unlock()

	for _, t := range tokens {
		t.Cancel()
	}
}

// Len reports the number of registered tokens.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

// WaitOrCancel sleeps for d, waking every interval to check the token. It
// returns nil after the full delay, or context.Canceled as soon as the token
// is cancelled. A zero or negative interval uses DefaultPollInterval;
// intervals above MaxPollInterval are clamped down to it.
func WaitOrCancel(t *Token, d, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if interval > MaxPollInterval {
		interval = MaxPollInterval
	}
	deadline := time.Now().Add(d)
	for {
		if t.Cancelled() {
			return context.Canceled
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		if remaining < interval {
			time.Sleep(remaining)
		} else {
			time.Sleep(interval)
		}
	}
}
