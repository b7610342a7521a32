// Package dispatch runs remote operations off the caller's goroutine and delivers
// their completions on a caller-chosen executor.
package dispatch

import (
	"context"
	"sync"
)

// Executor runs completion callbacks.
type Executor interface {
	Submit(fn func())
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(fn func())

// Submit calls f(fn).
func (f ExecutorFunc) Submit(fn func()) { f(fn) }

// Inline runs callbacks on the goroutine that completed the operation.
var Inline Executor = ExecutorFunc(func(fn func()) { fn() })

// Loop is a serial executor: callbacks run one at a time, in submission order,
// on the goroutine that calls Run. It plays the role of a UI or main thread.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
}

// NewLoop returns an idle loop.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Submit enqueues fn. Callbacks submitted after Stop are dropped.
func (l *Loop) Submit(fn func()) { l.TrySubmit(fn) }

// TrySubmit enqueues fn and reports whether it was accepted. It returns false
// once Stop has been called.
func (l *Loop) TrySubmit(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run drains the queue until ctx is done or Stop is called, then runs what is
// already queued and returns.
func (l *Loop) Run(ctx context.Context) {
	for {
		for _, fn := range l.take() {
			fn()
		}
		if l.isStopped() {
			return
		}
		select {
		case <-ctx.Done():
			l.Stop()
		case <-l.wake:
		}
	}
}

// Stop makes Run return after draining.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.queue
	l.queue = nil
	return q
}

func (l *Loop) isStopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped && len(l.queue) == 0
}

// trySubmitter is an Executor that can refuse work, such as a stopped Loop.
type trySubmitter interface {
	TrySubmit(fn func()) bool
}

// Go runs op on a new goroutine and hands its result to done via exec.
// done is called exactly once: if exec refuses the callback (a stopped Loop),
// done runs on the goroutine that completed op. A nil exec means Inline.
func Go[T any](ctx context.Context, exec Executor, op func(context.Context) (T, error), done func(T, error)) {
	if exec == nil {
		exec = Inline
	}
	go func() {
		v, err := op(ctx)
		deliver := func() { done(v, err) }
		if ts, ok := exec.(trySubmitter); ok {
			if !ts.TrySubmit(deliver) {
				deliver()
			}
			return
		}
		exec.Submit(deliver)
	}()
}
