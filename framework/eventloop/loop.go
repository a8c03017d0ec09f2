// Package eventloop provides the single-threaded UI context editor state lives
// on, a blocking cross-context call, and the worker pool heavy passes run in.
package eventloop

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrStopped is returned when work is handed to a loop that no longer runs.
var ErrStopped = errors.New("event loop stopped")

// Dispatcher schedules fn to run on a single-threaded context. Post returns
// false when fn will never run.
type Dispatcher interface {
	Post(fn func()) bool
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(fn func()) bool

// Post calls f.
func (f DispatcherFunc) Post(fn func()) bool { return f(fn) }

// Loop runs posted functions one at a time, in posting order, on the
// goroutine that called Run.
type Loop struct {
	tasks  chan func()
	done   chan struct{}
	once   sync.Once
	logger *log.Logger
}

// NewLoop builds a loop whose queue holds buffer pending functions before Post
// starts blocking.
func NewLoop(buffer int, logger *log.Logger) *Loop {
	if logger == nil {
		logger = log.Default()
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		tasks:  make(chan func(), buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Post enqueues fn. It blocks while the queue is full and gives up once the
// loop stops.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Run executes posted functions until ctx is cancelled or Stop is called.
// Functions still queued at that point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

// Stop ends Run. Safe to call more than once.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
}

// Done is closed once the loop stops.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Printf("event loop task panicked: %v", r)
		}
	}()
	fn()
}
