package sockettest

import (
	"context"
	"sync"
	"time"

	"github.com/kleeedolinux/socket.go/socket"
)

// fakeClock hands out timers that only fire when the test says so.
type fakeClock struct {
	mu      sync.Mutex
	timers  []*fakeTimer
	created chan *fakeTimer

	// onNewTimer runs before a timer is handed out. With preFired the timer
	// has already expired when the waiter first selects on it.
	onNewTimer func()
	preFired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{created: make(chan *fakeTimer, 64)}
}

func (c *fakeClock) NewTimer(time.Duration) Timer {
	if c.onNewTimer != nil {
		c.onNewTimer()
	}

	t := &fakeTimer{ch: make(chan time.Time, 1)}
	if c.preFired {
		t.fire()
	}

	c.mu.Lock()
	c.timers = append(c.timers, t)
	c.mu.Unlock()

	c.created <- t
	return t
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// live reports timers that were neither stopped nor fired.
func (c *fakeClock) live() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.timers {
		if t.active() {
			n++
		}
	}
	return n
}

// next blocks until a waiter has armed a timer.
func (c *fakeClock) next() *fakeTimer {
	select {
	case t := <-c.created:
		return t
	case <-time.After(5 * time.Second):
		panic("no timer armed")
	}
}

type fakeTimer struct {
	mu      sync.Mutex
	ch      chan time.Time
	stopped bool
	fired   bool
}

func (t *fakeTimer) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (t *fakeTimer) fire() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.fired {
		return
	}
	t.fired = true
	t.ch <- time.Now()
}

func (t *fakeTimer) active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && !t.fired
}

// fakeConn emits events synchronously when the test drives it.
type fakeConn struct {
	mu        sync.Mutex
	state     socket.State
	listeners map[socket.Event][]*fakeListener
	nextID    int
	sent      []string
	err       error
}

type fakeListener struct {
	id int
	fn socket.Listener
}

func newFakeConn(state socket.State) *fakeConn {
	return &fakeConn{
		state:     state,
		listeners: make(map[socket.Event][]*fakeListener),
	}
}

func (f *fakeConn) Connect(context.Context) error {
	f.open()
	return nil
}

func (f *fakeConn) State() socket.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeConn) Send(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != socket.StateOpen {
		return socket.ErrConnectionClosed
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeConn) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// fail closes the connection the way a transport error would.
func (f *fakeConn) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()

	f.emit(socket.EventError, err.Error())
	f.Close()
}

func (f *fakeConn) Close() error {
	f.transition(socket.StateClosed, socket.EventClose)
	return nil
}

func (f *fakeConn) On(event socket.Event, l socket.Listener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	f.listeners[event] = append(f.listeners[event], &fakeListener{id: id, fn: l})

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()

		list := f.listeners[event]
		for i, entry := range list {
			if entry.id == id {
				f.listeners[event] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

func (f *fakeConn) Once(event socket.Event, l socket.Listener) func() {
	var off func()
	var once sync.Once
	off = f.On(event, func(data string) {
		once.Do(func() {
			off()
			l(data)
		})
	})
	return off
}

func (f *fakeConn) listenerCount(event socket.Event) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners[event])
}

func (f *fakeConn) emit(event socket.Event, data string) {
	f.mu.Lock()
	list := append([]*fakeListener(nil), f.listeners[event]...)
	f.mu.Unlock()

	for _, l := range list {
		l.fn(data)
	}
}

func (f *fakeConn) transition(state socket.State, event socket.Event) {
	f.mu.Lock()
	if f.state == socket.StateClosed {
		f.mu.Unlock()
		return
	}
	f.state = state
	f.mu.Unlock()

	f.emit(event, "")
}

func (f *fakeConn) open() {
	f.transition(socket.StateOpen, socket.EventOpen)
}

// setState changes the state without emitting an event, as if the event were
// still queued.
func (f *fakeConn) setState(state socket.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
}

func (f *fakeConn) deliver(messages ...string) {
	for _, msg := range messages {
		f.emit(socket.EventMessage, msg)
	}
}
