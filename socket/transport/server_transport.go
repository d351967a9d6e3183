package transport

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/kleeedolinux/socket.go/debug"

	"github.com/gorilla/websocket"
)

var (
	ErrTransportClosed = errors.New("transport closed")
	ErrSendBufferFull  = errors.New("send buffer full")
)

type ServerTransport interface {
	Read() ([]byte, error)

	Write([]byte) error

	Close() error

	ID() string

	// Done is closed when the transport stops accepting writes.
	Done() <-chan struct{}
}

// WebSocketServerTransport serializes writes through a single pump goroutine so
// frames leave in the order Write was called.
type WebSocketServerTransport struct {
	id           string
	conn         *websocket.Conn
	sendCh       chan []byte
	closeCh      chan struct{}
	writeWg      sync.WaitGroup
	writeTimeout time.Duration
	readTimeout  time.Duration
	mu           sync.Mutex
	closed       bool
}

type WebSocketServerConfig struct {
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	BufferSize   int
}

func DefaultWebSocketServerConfig() WebSocketServerConfig {
	return WebSocketServerConfig{
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  60 * time.Second,
		BufferSize:   100,
	}
}

func NewWebSocketServerTransport(id string, conn *websocket.Conn, config WebSocketServerConfig) *WebSocketServerTransport {
	t := &WebSocketServerTransport{
		id:           id,
		conn:         conn,
		sendCh:       make(chan []byte, config.BufferSize),
		closeCh:      make(chan struct{}),
		writeTimeout: config.WriteTimeout,
		readTimeout:  config.ReadTimeout,
	}

	t.writeWg.Add(1)
	go t.writePump()

	return t
}

func (t *WebSocketServerTransport) writePump() {
	defer t.writeWg.Done()

	for {
		select {
		case <-t.closeCh:
			t.drain()
			return
		case message := <-t.sendCh:
			if err := t.writeFrame(message); err != nil {
				if t.markClosed() {
					t.conn.Close()
				}
				return
			}
		}
	}
}

// drain flushes frames accepted before Close so they go out ahead of the close
// frame. Write cannot queue more once closeCh is closed.
func (t *WebSocketServerTransport) drain() {
	for {
		select {
		case message := <-t.sendCh:
			if err := t.writeFrame(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (t *WebSocketServerTransport) writeFrame(message []byte) error {
	if t.writeTimeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}

	err := t.conn.WriteMessage(websocket.TextMessage, message)
	if err != nil {
		debug.Printf("WebSocketServerTransport %s: Write error: %v", t.id, err)
	}
	return err
}

func (t *WebSocketServerTransport) Read() ([]byte, error) {
	if t.readTimeout > 0 {
		t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	}

	_, message, err := t.conn.ReadMessage()
	if err != nil {
		debug.Printf("WebSocketServerTransport %s: Error reading message: %v", t.id, err)
		t.Close()
		return nil, err
	}

	debug.Printf("WebSocketServerTransport %s: Received message: %s", t.id, string(message))
	return message, nil
}

func (t *WebSocketServerTransport) Write(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		debug.Printf("WebSocketServerTransport %s: Attempted to write to closed transport", t.id)
		return ErrTransportClosed
	}

	debug.Printf("WebSocketServerTransport %s: Queueing message: %s", t.id, string(data))

	select {
	case t.sendCh <- data:
		return nil
	default:
		debug.Printf("WebSocketServerTransport %s: Send buffer full, closing connection", t.id)
		go t.Close()
		return ErrSendBufferFull
	}
}

func (t *WebSocketServerTransport) markClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}
	t.closed = true
	close(t.closeCh)
	return true
}

func (t *WebSocketServerTransport) Close() error {
	if !t.markClosed() {
		return nil
	}

	t.writeWg.Wait()

	t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)

	return t.conn.Close()
}

func (t *WebSocketServerTransport) ID() string {
	return t.id
}

func (t *WebSocketServerTransport) Done() <-chan struct{} {
	return t.closeCh
}

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}
