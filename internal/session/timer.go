package session

import (
	"context"
	"sync"
	"time"
)

// TickInterval is how often a running countdown recomputes remaining time.
const TickInterval = time.Second

// Remaining returns the whole seconds left until endTime, never negative.
func Remaining(endTime, now time.Time) int {
	d := endTime.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// TimerController starts countdowns against an absolute end time.
type TimerController struct {
	clock    Clock
	interval time.Duration
}

// NewTimerController creates a TimerController ticking once per second.
func NewTimerController(clock Clock) *TimerController {
	if clock == nil {
		clock = SystemClock()
	}
	return &TimerController{clock: clock, interval: TickInterval}
}

// Start begins a countdown to endTime. Remaining time is recomputed from the
// clock on every tick, so a suspended process catches up on resume instead of
// drifting.
func (c *TimerController) Start(ctx context.Context, endTime time.Time) *Countdown {
	cd := &Countdown{
		ticks:   make(chan int, 1),
		expired: make(chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go cd.run(ctx, c.clock, c.interval, endTime)
	return cd
}

// Countdown is one running timer. Ticks carries remaining seconds and is
// closed when the countdown finishes for any reason. Expired is closed exactly
// once, and only if zero was reached before Stop or context cancellation.
type Countdown struct {
	ticks    chan int
	expired  chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Ticks delivers remaining seconds. A slow reader sees the latest value only.
func (cd *Countdown) Ticks() <-chan int { return cd.ticks }

// Expired is closed when the countdown reaches zero.
func (cd *Countdown) Expired() <-chan struct{} { return cd.expired }

// Done is closed once the countdown goroutine has exited.
func (cd *Countdown) Done() <-chan struct{} { return cd.done }

// Stop cancels the countdown. Safe to call more than once.
func (cd *Countdown) Stop() {
	cd.stopOnce.Do(func() { close(cd.stop) })
}

func (cd *Countdown) run(ctx context.Context, clock Clock, interval time.Duration, endTime time.Time) {
	defer close(cd.done)
	defer close(cd.ticks)

	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	remaining := Remaining(endTime, clock.Now())
	cd.emit(remaining)

	for remaining > 0 {
		select {
		case <-ctx.Done():
			return
		case <-cd.stop:
			return
		case <-ticker.C():
		}
		if cd.stopped(ctx) {
			return
		}
		remaining = Remaining(endTime, clock.Now())
		cd.emit(remaining)
	}

	if cd.stopped(ctx) {
		return
	}
	close(cd.expired)
}

func (cd *Countdown) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-cd.stop:
		return true
	default:
		return false
	}
}

// emit never blocks: an unread tick is replaced by the newer value.
func (cd *Countdown) emit(remaining int) {
	select {
	case cd.ticks <- remaining:
		return
	default:
	}
	select {
	case <-cd.ticks:
	default:
	}
	select {
	case cd.ticks <- remaining:
	default:
	}
}
