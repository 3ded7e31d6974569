package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at initial. Time moves only when
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// FakeClock is a deterministic Clock. AfterFunc callbacks run
// synchronously inside Advance, in deadline order. It is safe for
// concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	seq     int
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	seq      int
	callback func()
	stopped  bool
	fired    bool
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc schedules f at Now()+d. If d <= 0, f is called before
// AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stopFunc: func() bool { return false }}
	}

	c.mu.Lock()
	c.seq++
	waiter := &fakeWaiter{deadline: c.current.Add(d), seq: c.seq, callback: f}
	c.waiters = append(c.waiters, waiter)
	c.mu.Unlock()

	return &Timer{stopFunc: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if waiter.stopped || waiter.fired {
			return false
		}
		waiter.stopped = true
		return true
	}}
}

// Advance moves the clock forward by d and fires every waiter whose
// deadline falls inside the new time, including ones scheduled by
// callbacks fired during this call. Do not call Advance from inside a
// callback.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		next := c.popExpired(target)
		if next == nil {
			break
		}
		next.callback()
	}

	c.mu.Lock()
	c.current = target
	c.mu.Unlock()
}

// popExpired removes and returns the earliest waiter due at or before
// target, moving the clock to its deadline so callbacks observe it.
func (c *FakeClock) popExpired(target time.Time) *fakeWaiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.stopped {
			live = append(live, w)
		}
	}
	c.waiters = live

	sort.SliceStable(c.waiters, func(i, j int) bool {
		if c.waiters[i].deadline.Equal(c.waiters[j].deadline) {
			return c.waiters[i].seq < c.waiters[j].seq
		}
		return c.waiters[i].deadline.Before(c.waiters[j].deadline)
	})
	if len(c.waiters) == 0 || c.waiters[0].deadline.After(target) {
		return nil
	}

	next := c.waiters[0]
	c.waiters = c.waiters[1:]
	next.fired = true
	if next.deadline.After(c.current) {
		c.current = next.deadline
	}
	return next
}

func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.waiters {
		if !w.stopped {
			n++
		}
	}
	return n
}
