package sockettest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kleeedolinux/socket.go/debug"
	"github.com/kleeedolinux/socket.go/socket"
	"github.com/kleeedolinux/socket.go/socket/transport"
)

// DefaultTimeout bounds a wait when neither the Socket nor the call sets one.
const DefaultTimeout = time.Second

// Conn is the event-emitting connection a Socket wraps. *socket.Client
// implements it.
type Conn interface {
	Connect(ctx context.Context) error
	State() socket.State
	Send(text string) error
	Close() error
	On(event socket.Event, l socket.Listener) (off func())
	Once(event socket.Event, l socket.Listener) (off func())
	Err() error
}

// Socket is a connection whose inbound frames are recorded and can be awaited.
type Socket struct {
	conn    Conn
	ledger  *ledger
	clock   Clock
	timeout time.Duration
	logger  *zap.Logger

	stopRecording func()
}

type config struct {
	clock      Clock
	timeout    time.Duration
	logger     *zap.Logger
	wsOpts     []transport.WebSocketOption
	clientOpts []socket.ClientOption
}

type Option func(*config)

// WithClock replaces the clock that creates wait timers.
func WithClock(c Clock) Option {
	return func(cfg *config) {
		cfg.clock = c
	}
}

// WithDefaultTimeout sets the timeout used by waits that do not pass Timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.timeout = d
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(cfg *config) {
		cfg.logger = l
	}
}

// WithTransportOptions configures the WebSocket transport used by Connect and Dial.
func WithTransportOptions(opts ...transport.WebSocketOption) Option {
	return func(cfg *config) {
		cfg.wsOpts = append(cfg.wsOpts, opts...)
	}
}

// WithClientOptions configures the socket.Client used by Connect and Dial.
func WithClientOptions(opts ...socket.ClientOption) Option {
	return func(cfg *config) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

func newConfig(opts []Option) config {
	cfg := config{
		clock:   RealClock(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = debug.Logger()
	}
	return cfg
}

// New wraps conn and starts recording its messages. It must be called before
// conn connects for the ledger to be complete.
func New(conn Conn, opts ...Option) *Socket {
	return newSocket(conn, newConfig(opts))
}

func newSocket(conn Conn, cfg config) *Socket {
	s := &Socket{
		conn:    conn,
		ledger:  newLedger(),
		clock:   cfg.clock,
		timeout: cfg.timeout,
		logger:  cfg.logger,
	}

	offMessage := conn.On(socket.EventMessage, s.ledger.append)
	var once sync.Once
	s.stopRecording = func() {
		once.Do(func() {
			offMessage()
			s.ledger.freeze()
		})
	}

	conn.Once(socket.EventClose, func(string) {
		s.stopRecording()
	})

	return s
}

// Connect starts dialing url in the background and returns immediately with
// the socket in StateConnecting.
func Connect(url string, opts ...Option) *Socket {
	cfg := newConfig(opts)
	client := socket.NewWebSocketClient(url, cfg.wsOpts, cfg.clientOpts...)
	s := newSocket(client, cfg)

	go func() {
		if err := client.Connect(context.Background()); err != nil {
			s.logger.Debug("connect failed", zap.String("url", url), zap.Error(err))
		}
	}()

	return s
}

// Dial connects to url and waits for the socket to open.
func Dial(ctx context.Context, url string, opts ...Option) (*Socket, error) {
	s := Connect(url, opts...)
	if err := s.AwaitState(ctx, socket.StateOpen); err != nil {
		s.Close()
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return s, nil
}

func (s *Socket) State() socket.State {
	return s.conn.State()
}

// Err returns the error that closed the connection, if any.
func (s *Socket) Err() error {
	return s.conn.Err()
}

func (s *Socket) Send(text string) error {
	return s.conn.Send(text)
}

func (s *Socket) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.conn.Send(string(data))
}

// Request sends value framed as an envelope of type t.
func (s *Socket) Request(t socket.Type, value interface{}) error {
	env, err := socket.NewEnvelope(t, value)
	if err != nil {
		return err
	}
	return s.SendJSON(env)
}

// Messages returns a copy of every frame received so far, in arrival order.
func (s *Socket) Messages() []string {
	return s.ledger.snapshot()
}

// ClearMessages empties the ledger. Waits that already returned keep their
// results.
func (s *Socket) ClearMessages() {
	s.ledger.clear()
}

// Close closes the connection and stops recording. It is safe to call more
// than once.
func (s *Socket) Close() error {
	err := s.conn.Close()
	s.stopRecording()
	return err
}
