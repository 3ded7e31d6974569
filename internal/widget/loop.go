package widget

import (
	"sync"
	"time"

	"github.com/pelusa-v/pelusa-widget/internal/clock"
)

// eventLoop serializes every widget state change onto one goroutine.
// Page clicks, frame messages, timers and network completions all
// arrive as tasks; once stopped, new and pending tasks are dropped.
type eventLoop struct {
	clock clock.Clock

	mu      sync.Mutex
	tasks   []func()
	stopped bool

	wake chan struct{}
	quit chan struct{}
}

func newEventLoop(c clock.Clock) *eventLoop {
	return &eventLoop{
		clock: c,
		wake:  make(chan struct{}, 1),
		quit:  make(chan struct{}),
	}
}

func (l *eventLoop) Start() {
	for {
		select {
		case <-l.quit:
			return
		case <-l.wake:
			for {
				task, ok := l.next()
				if !ok {
					break
				}
				task()
			}
		}
	}
}

func (l *eventLoop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || len(l.tasks) == 0 {
		return nil, false
	}
	task := l.tasks[0]
	l.tasks[0] = nil
	l.tasks = l.tasks[1:]
	return task, true
}

// Post queues fn without waiting. It never blocks.
func (l *eventLoop) Post(fn func()) { l.post(fn) }

func (l *eventLoop) post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// After posts fn once d has elapsed on the loop's clock.
func (l *eventLoop) After(d time.Duration, fn func()) {
	l.clock.AfterFunc(d, func() { l.post(fn) })
}

// call runs fn on the loop and waits for it. It reports false if the
// loop stopped before fn ran. Never call it from a loop task.
func (l *eventLoop) call(fn func()) bool {
	done := make(chan struct{})
	if !l.post(func() { fn(); close(done) }) {
		return false
	}
	select {
	case <-done:
		return true
	case <-l.quit:
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

func (l *eventLoop) pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

func (l *eventLoop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	l.tasks = nil
	close(l.quit)
}
