package usecase

import (
	"context"
	"sync"

	apperrors "tabtrail/internal/platform/errors"
)

// Loop is the engine's single control flow. Every mutation, timer callback
// and I/O completion runs as a task on its goroutine, one at a time.
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	backlog []func()
}

func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{tasks: make(chan func(), buffer), done: make(chan struct{})}
}

// Run drains tasks until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.done:
			return
		case task := <-l.tasks:
			task()
			l.drain()
		}
	}
}

func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Post enqueues fn without waiting for it. It never blocks, so loop tasks
// may post follow-ups: when the queue is full fn waits in a backlog that is
// fed back in order as tasks complete. It reports false once stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.backlog) == 0 {
		select {
		case l.tasks <- fn:
			return true
		default:
		}
	}
	l.backlog = append(l.backlog, fn)
	return true
}

// drain moves backlogged tasks into the queue while it has room.
func (l *Loop) drain() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.backlog) > 0 {
		select {
		case l.tasks <- l.backlog[0]:
			l.backlog[0] = nil
			l.backlog = l.backlog[1:]
		default:
			return
		}
	}
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	select {
	case l.tasks <- task:
	case <-l.done:
		return apperrors.ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return apperrors.ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
