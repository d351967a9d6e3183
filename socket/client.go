package socket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/kleeedolinux/socket.go/debug"
	"github.com/kleeedolinux/socket.go/socket/transport"
)

// Event names a Client lifecycle or data notification.
type Event string

const (
	EventOpen    Event = "open"
	EventClose   Event = "close"
	EventMessage Event = "message"
	EventError   Event = "error"
)

// Listener receives the payload of an event: the frame text for EventMessage,
// the error text for EventError and an empty string otherwise.
type Listener func(data string)

var ErrAlreadyConnecting = errors.New("connect already in progress")

type Transport interface {
	Connect(ctx context.Context) error
	Send(data []byte) error
	Receive() ([]byte, error)
	Close() error
}

// Client is an event-emitting WebSocket client. Listeners run synchronously on
// the goroutine that produced the event, so EventMessage listeners observe
// frames in arrival order.
type Client struct {
	mu        sync.RWMutex
	id        string
	conn      Transport
	state     State
	dialing   bool
	listeners map[Event][]*listener
	nextID    uint64
	err       error

	closeOnce sync.Once

	ctx        context.Context
	cancelFunc context.CancelFunc
}

type listener struct {
	id uint64
	fn Listener
}

type ClientOption func(*Client)

func WithClientID(id string) ClientOption {
	return func(c *Client) {
		c.id = id
	}
}

func NewClient(t Transport, opts ...ClientOption) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	client := &Client{
		id:         generateID(),
		conn:       t,
		state:      StateConnecting,
		listeners:  make(map[Event][]*listener),
		ctx:        ctx,
		cancelFunc: cancel,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// NewWebSocketClient returns a Client backed by a gorilla/websocket transport.
func NewWebSocketClient(url string, wsOpts []transport.WebSocketOption, opts ...ClientOption) *Client {
	return NewClient(transport.NewWebSocketTransport(url, wsOpts...), opts...)
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state
}

func (c *Client) IsConnected() bool {
	return c.State() == StateOpen
}

// Connect dials the transport and starts the receive loop. A failed dial moves
// the client straight to StateClosed.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.state == StateOpen:
		c.mu.Unlock()
		return nil
	case c.state != StateConnecting:
		c.mu.Unlock()
		return ErrConnectionClosed
	case c.dialing:
		c.mu.Unlock()
		return ErrAlreadyConnecting
	}
	c.dialing = true
	c.mu.Unlock()

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	if err := c.conn.Connect(dialCtx); err != nil {
		debug.Printf("Client %s: Connect failed: %v", c.id, err)
		c.finish(err)
		return err
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		c.conn.Close()
		return ErrConnectionClosed
	}
	c.state = StateOpen
	c.mu.Unlock()

	debug.Printf("Client %s: Connected", c.id)
	c.emit(EventOpen, "")

	go c.receiveLoop()

	return nil
}

func (c *Client) receiveLoop() {
	for {
		data, err := c.conn.Receive()
		if err != nil {
			c.finish(err)
			return
		}

		c.emit(EventMessage, string(data))
	}
}

// finish moves the client to StateClosed exactly once and emits EventClose.
// An unexpected cause is kept for Err and emitted as EventError first.
func (c *Client) finish(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		closing := c.state == StateClosing
		unexpected := cause != nil && !closing &&
			!websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway)
		if unexpected {
			c.err = cause
		}
		c.state = StateClosed
		c.mu.Unlock()

		c.cancelFunc()
		c.conn.Close()

		if unexpected {
			c.emit(EventError, cause.Error())
		}

		debug.Printf("Client %s: Closed", c.id)
		c.emit(EventClose, "")
	})
}

// Err returns the error that closed the connection, or nil if it was closed
// normally or is still open.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.err
}

func (c *Client) Send(text string) error {
	if c.State() != StateOpen {
		return ErrConnectionClosed
	}
	return c.conn.Send([]byte(text))
}

func (c *Client) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(string(data))
}

// Request frames value in an Envelope of type t and sends it.
func (c *Client) Request(t Type, value interface{}) error {
	env, err := NewEnvelope(t, value)
	if err != nil {
		return err
	}
	return c.SendJSON(env)
}

// On registers l for event and returns a function that removes it. The
// returned function is safe to call more than once.
func (c *Client) On(event Event, l Listener) (off func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	entry := &listener{id: c.nextID, fn: l}
	c.listeners[event] = append(c.listeners[event], entry)

	return func() { c.remove(event, entry.id) }
}

// Once registers l to run for the next occurrence of event only.
func (c *Client) Once(event Event, l Listener) (off func()) {
	var once sync.Once
	var remove func()
	ready := make(chan struct{})

	remove = c.On(event, func(data string) {
		once.Do(func() {
			<-ready
			remove()
			l(data)
		})
	})
	close(ready)

	return remove
}

func (c *Client) remove(event Event, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.listeners[event]
	for i, l := range list {
		if l.id == id {
			updated := make([]*listener, 0, len(list)-1)
			updated = append(updated, list[:i]...)
			updated = append(updated, list[i+1:]...)
			if len(updated) == 0 {
				delete(c.listeners, event)
			} else {
				c.listeners[event] = updated
			}
			return
		}
	}
}

// ListenerCount reports how many listeners are registered for event.
func (c *Client) ListenerCount(event Event) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.listeners[event])
}

func (c *Client) emit(event Event, data string) {
	c.mu.RLock()
	listeners := c.listeners[event]
	c.mu.RUnlock()

	for _, l := range listeners {
		l.fn(data)
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateClosing || c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosing
	c.mu.Unlock()

	c.cancelFunc()
	err := c.conn.Close()
	c.finish(nil)

	return err
}
