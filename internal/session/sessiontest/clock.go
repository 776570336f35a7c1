// Package sessiontest provides a manually driven clock for countdown tests.
package sessiontest

import (
	"sync"
	"time"

	"github.com/stemsi/classpulse-backend/internal/session"
)

// Clock is a session.Clock whose time only moves on Advance.
type Clock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*ticker
	added   chan struct{}
}

// NewClock creates a Clock reading now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now, added: make(chan struct{}, 64)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) NewTicker(d time.Duration) session.Ticker {
	c.mu.Lock()
	t := &ticker{c: make(chan time.Time, 1), period: d, next: c.now.Add(d)}
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()

	select {
	case c.added <- struct{}{}:
	default:
	}
	return t
}

// Advance moves the clock forward and fires every live ticker whose next
// deadline has passed. Like time.Ticker, a ticker holds at most one pending
// value.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	tickers := append([]*ticker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		t.fire(now)
	}
}

// Set jumps the clock to now without firing tickers.
func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// WaitForTicker blocks until a ticker has been created since the last call,
// or timeout elapses. It reports whether one was created.
func (c *Clock) WaitForTicker(timeout time.Duration) bool {
	select {
	case <-c.added:
		return true
	case <-time.After(timeout):
		return false
	}
}

type ticker struct {
	mu      sync.Mutex
	c       chan time.Time
	period  time.Duration
	next    time.Time
	stopped bool
}

func (t *ticker) C() <-chan time.Time { return t.c }

func (t *ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *ticker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || now.Before(t.next) {
		return
	}
	for !now.Before(t.next) {
		t.next = t.next.Add(t.period)
	}
	select {
	case t.c <- now:
	default:
	}
}
