// ABOUTME: Thread-safe TTL-based request throttle keyed by string.
// ABOUTME: Used to limit how often a single email can request a reset code.

package ratelimit

import (
	"container/list"
	"sync"
	"time"
)

// entry stores the timestamp and list element for a throttled key.
type entry struct {
	timestamp time.Time
	element   *list.Element
}

// Limiter allows at most one request per key within a fixed window. It is
// size-limited so a flood of distinct keys cannot grow memory without bound.
// Uses a doubly-linked list to maintain insertion order for O(1) eviction.
type Limiter struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // keys in insertion order, oldest at front
	window  time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a limiter that permits one request per key per window.
// A background goroutine periodically removes expired entries.
func New(window time.Duration, maxSize int) *Limiter {
	l := &Limiter{
		seen:    make(map[string]*entry),
		order:   list.New(),
		window:  window,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow reports whether a request for key may proceed. The first call for a
// key returns true and starts its window; calls inside the window return
// false. Check and mark happen under one lock so concurrent callers cannot
// both pass.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if e, ok := l.seen[key]; ok && now.Sub(e.timestamp) < l.window {
		return false
	}

	l.markLocked(key, now)
	return true
}

// markLocked records a request for key. Must be called with mu held.
func (l *Limiter) markLocked(key string, now time.Time) {
	if e, exists := l.seen[key]; exists {
		e.timestamp = now
		l.order.MoveToBack(e.element)
		return
	}

	if len(l.seen) >= l.maxSize {
		l.evictOldest()
	}

	elem := l.order.PushBack(key)
	l.seen[key] = &entry{timestamp: now, element: elem}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (l *Limiter) evictOldest() {
	front := l.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	l.order.Remove(front)
	delete(l.seen, key)
}

// cleanup runs in a background goroutine, removing expired entries.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.runCleanup()
		case <-l.done:
			return
		}
	}
}

// runCleanup removes all expired entries.
func (l *Limiter) runCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, e := range l.seen {
		if now.Sub(e.timestamp) > l.window {
			l.order.Remove(e.element)
			delete(l.seen, key)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		close(l.done)
		l.closed = true
	}
}
