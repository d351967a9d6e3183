package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/kleeedolinux/socket.go/debug"

	"github.com/gorilla/websocket"
)

var ErrNotConnected = errors.New("not connected")

// WebSocketTransport is the client side of a gorilla/websocket connection.
type WebSocketTransport struct {
	mu               sync.Mutex
	conn             *websocket.Conn
	url              string
	dialer           *websocket.Dialer
	headers          http.Header
	connected        bool
	readTimeout      time.Duration
	writeTimeout     time.Duration
	handshakeTimeout time.Duration
	compression      bool
}

type WebSocketOption func(*WebSocketTransport)

func WithHeaders(headers http.Header) WebSocketOption {
	return func(t *WebSocketTransport) {
		for k, v := range headers {
			t.headers[k] = v
		}
	}
}

// WithReadTimeout bounds each Receive call. Zero disables the deadline.
func WithReadTimeout(timeout time.Duration) WebSocketOption {
	return func(t *WebSocketTransport) {
		t.readTimeout = timeout
	}
}

func WithWriteTimeout(timeout time.Duration) WebSocketOption {
	return func(t *WebSocketTransport) {
		t.writeTimeout = timeout
	}
}

func WithHandshakeTimeout(timeout time.Duration) WebSocketOption {
	return func(t *WebSocketTransport) {
		t.handshakeTimeout = timeout
	}
}

func WithCompression(enabled bool) WebSocketOption {
	return func(t *WebSocketTransport) {
		t.compression = enabled
	}
}

func WithDialer(d *websocket.Dialer) WebSocketOption {
	return func(t *WebSocketTransport) {
		t.dialer = d
	}
}

func NewWebSocketTransport(url string, opts ...WebSocketOption) *WebSocketTransport {
	t := &WebSocketTransport{
		url:              url,
		dialer:           websocket.DefaultDialer,
		headers:          make(http.Header),
		writeTimeout:     10 * time.Second,
		handshakeTimeout: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *WebSocketTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connected {
		return nil
	}

	debug.Printf("WebSocketTransport: Connecting to %s", t.url)

	dialer := *t.dialer
	dialer.HandshakeTimeout = t.handshakeTimeout
	if t.compression {
		dialer.EnableCompression = true
	}

	conn, resp, err := dialer.DialContext(ctx, t.url, t.headers)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		debug.Printf("WebSocketTransport: Connection failed: %v", err)
		return err
	}

	debug.Printf("WebSocketTransport: Connected successfully")
	t.conn = conn
	t.connected = true

	return nil
}

func (t *WebSocketTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected || t.conn == nil {
		return ErrNotConnected
	}

	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}

	debug.Printf("WebSocketTransport: Sending data: %s", string(data))
	err := t.conn.WriteMessage(websocket.TextMessage, data)
	if err != nil {
		debug.Printf("WebSocketTransport: Send error: %v", err)
	}
	return err
}

func (t *WebSocketTransport) Receive() ([]byte, error) {
	t.mu.Lock()
	conn := t.conn
	if !t.connected || conn == nil {
		t.mu.Unlock()
		return nil, ErrNotConnected
	}

	if t.readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
			t.mu.Unlock()
			return nil, err
		}
	}
	t.mu.Unlock()

	_, message, err := conn.ReadMessage()
	if err != nil {
		debug.Printf("WebSocketTransport: Read error: %v", err)
		return nil, err
	}

	debug.Printf("WebSocketTransport: Received data: %s", string(message))
	return message, nil
}

func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected || t.conn == nil {
		return nil
	}

	debug.Printf("WebSocketTransport: Closing connection")

	err := t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	if err != nil {
		debug.Printf("WebSocketTransport: Error sending close message: %v", err)
	}

	err = t.conn.Close()
	if err != nil {
		debug.Printf("WebSocketTransport: Error closing connection: %v", err)
	}

	t.connected = false
	t.conn = nil

	return err
}
