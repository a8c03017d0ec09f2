package browse

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// runMsg carries a closure posted to the UI context. Model.Update runs it.
type runMsg struct {
	fn func()
}

// Dispatcher posts closures into a Bubble Tea program so the program's update
// loop is the UI context the tracker works against.
type Dispatcher struct {
	mu   sync.RWMutex
	send func(tea.Msg)
	done chan struct{}
	once sync.Once
}

// NewDispatcher returns a dispatcher that drops posts until Attach is called.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{done: make(chan struct{})}
}

// Attach sets the function messages are delivered through, normally
// (*tea.Program).Send.
func (d *Dispatcher) Attach(send func(tea.Msg)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.send = send
}

// Post implements eventloop.Dispatcher.
func (d *Dispatcher) Post(fn func()) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	d.mu.RLock()
	send := d.send
	d.mu.RUnlock()
	if send == nil {
		return false
	}
	send(runMsg{fn: fn})
	return true
}

// Done is closed by Close. Pending cross-context calls give up on it.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

// Close marks the program as gone.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.done) })
}
