package eventloop

import (
	"context"
	"errors"
	"log"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrPoolClosed is returned by Submit after Close.
	ErrPoolClosed = errors.New("worker pool closed")
	// ErrPoolBusy is returned by TrySubmit when the queue is full.
	ErrPoolBusy = errors.New("worker pool busy")
)

// Task is a unit of background work. ctx is cancelled when the pool closes.
type Task func(ctx context.Context)

// Pool runs tasks on a fixed set of worker goroutines. A panicking task is
// logged and the worker keeps serving.
type Pool struct {
	tasks  chan Task
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	logger *log.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines. The queue holds as many pending tasks as
// there are workers times four before Submit blocks.
func NewPool(ctx context.Context, workers int, logger *log.Logger) *Pool {
	if logger == nil {
		logger = log.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	p := &Pool{
		tasks:  make(chan Task, workers*4),
		group:  group,
		ctx:    gctx,
		cancel: cancel,
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		group.Go(p.work)
	}
	return p
}

// Submit queues task.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// TrySubmit queues task without blocking. The UI context uses it so a full
// queue never stalls workers waiting on a Call.
func (p *Pool) TrySubmit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || p.ctx.Err() != nil {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolBusy
	}
}

// Close stops accepting tasks, lets queued ones drain and waits for the
// workers to exit.
func (p *Pool) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()
	err := p.group.Wait()
	p.cancel()
	return err
}

func (p *Pool) work() error {
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return nil
			}
			p.run(task)
		case <-p.ctx.Done():
			return nil
		}
	}
}

func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("worker task panicked: %v\n%s", r, debug.Stack())
		}
	}()
	task(p.ctx)
}
