package eventloop

import (
	"context"
	"fmt"
)

type callResult[T any] struct {
	value T
	err   error
}

// Call runs fn on d and blocks the calling goroutine until it returns. It is
// how workers read state owned by the UI context. Calling it from the UI
// context itself deadlocks.
func Call[T any](ctx context.Context, d Dispatcher, fn func() (T, error)) (T, error) {
	var zero T
	reply := make(chan callResult[T], 1)
	posted := d.Post(func() {
		var res callResult[T]
		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("ui call panicked: %v", r)
			}
			reply <- res
		}()
		res.value, res.err = fn()
	})
	if !posted {
		return zero, ErrStopped
	}
	var stopped <-chan struct{}
	if s, ok := d.(interface{ Done() <-chan struct{} }); ok {
		stopped = s.Done()
	}
	select {
	case res := <-reply:
		return res.value, res.err
	case <-stopped:
		// the reply may have raced the stop
		select {
		case res := <-reply:
			return res.value, res.err
		default:
			return zero, ErrStopped
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
