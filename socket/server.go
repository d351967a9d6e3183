package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kleeedolinux/socket.go/debug"
	"github.com/kleeedolinux/socket.go/socket/transport"
)

// HandlerFunc handles the value of one envelope type.
type HandlerFunc func(s Socket, value json.RawMessage)

type Server struct {
	mu       sync.RWMutex
	sockets  map[string]Socket
	handlers map[Type][]HandlerFunc

	onConnect    []func(s Socket)
	onDisconnect []func(s Socket)

	groups *GroupRegistry
	logger *zap.Logger
	loops  sync.WaitGroup

	maxConcurrency       int
	concurrencySemaphore chan struct{}
	compressionEnabled   bool
	bufferSize           int
	sendQueueSize        int
	writeTimeout         time.Duration
	readTimeout          time.Duration
}

func NewServer(opts ...ServerOption) *Server {
	wsConfig := transport.DefaultWebSocketServerConfig()

	s := &Server{
		sockets:        make(map[string]Socket),
		handlers:       make(map[Type][]HandlerFunc),
		groups:         NewGroupRegistry(),
		maxConcurrency: 100,
		bufferSize:     1024,
		sendQueueSize:  wsConfig.BufferSize,
		writeTimeout:   wsConfig.WriteTimeout,
		readTimeout:    wsConfig.ReadTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = debug.Logger()
	}
	if s.concurrencySemaphore == nil && s.maxConcurrency > 0 {
		s.concurrencySemaphore = make(chan struct{}, s.maxConcurrency)
	}

	return s
}

type ServerOption func(*Server)

// WithMaxConcurrency caps the number of simultaneously connected sockets.
// Zero or less removes the cap.
func WithMaxConcurrency(maxConcurrent int) ServerOption {
	return func(s *Server) {
		s.maxConcurrency = maxConcurrent
		s.concurrencySemaphore = nil
	}
}

func WithCompression(enabled bool) ServerOption {
	return func(s *Server) {
		s.compressionEnabled = enabled
	}
}

// WithBufferSize sets the upgrader's read and write buffer sizes in bytes.
func WithBufferSize(size int) ServerOption {
	return func(s *Server) {
		s.bufferSize = size
	}
}

// WithSendQueueSize sets how many outbound frames each socket queues before
// the connection is dropped as too slow.
func WithSendQueueSize(frames int) ServerOption {
	return func(s *Server) {
		s.sendQueueSize = frames
	}
}

func WithWriteTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.writeTimeout = d
	}
}

func WithReadTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.readTimeout = d
	}
}

func WithLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// HandleHTTP upgrades the request and serves the connection until it closes.
func (s *Server) HandleHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}

	if s.concurrencySemaphore != nil {
		select {
		case s.concurrencySemaphore <- struct{}{}:
			defer func() {
				<-s.concurrencySemaphore
			}()
		default:
			http.Error(w, "Too many connections", http.StatusServiceUnavailable)
			return
		}
	}

	upgrader := transport.Upgrader
	upgrader.EnableCompression = s.compressionEnabled
	upgrader.ReadBufferSize = s.bufferSize
	upgrader.WriteBufferSize = s.bufferSize

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	id := generateID()
	wsTransport := transport.NewWebSocketServerTransport(id, conn, transport.WebSocketServerConfig{
		WriteTimeout: s.writeTimeout,
		ReadTimeout:  s.readTimeout,
		BufferSize:   s.sendQueueSize,
	})

	socket := newSocketFromServerTransport(id, wsTransport)

	s.loops.Add(1)
	defer s.loops.Done()

	s.addSocket(socket)
	defer s.removeSocket(socket)

	socket.receiveLoop(func(data []byte) {
		s.dispatch(socket, data)
	})
}

// HandleFunc registers handler for envelopes of type t.
func (s *Server) HandleFunc(t Type, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("registering handler", zap.String("type", string(t)))
	s.handlers[t] = append(s.handlers[t], handler)
}

func (s *Server) OnConnect(fn func(s Socket)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnect = append(s.onConnect, fn)
}

func (s *Server) OnDisconnect(fn func(s Socket)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnect = append(s.onDisconnect, fn)
}

func (s *Server) addSocket(socket Socket) {
	s.mu.Lock()
	s.sockets[socket.ID()] = socket
	hooks := s.onConnect
	s.mu.Unlock()

	s.logger.Info("socket connected", zap.String("socket", socket.ID()))

	for _, fn := range hooks {
		fn(socket)
	}
}

func (s *Server) removeSocket(socket Socket) {
	s.mu.Lock()
	delete(s.sockets, socket.ID())
	hooks := s.onDisconnect
	s.mu.Unlock()

	s.groups.Leave(socket.ID())

	s.logger.Info("socket disconnected", zap.String("socket", socket.ID()))

	for _, fn := range hooks {
		fn(socket)
	}
}

func (s *Server) dispatch(socket Socket, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("dropping frame",
			zap.String("socket", socket.ID()),
			zap.Error(ErrInvalidMessage),
			zap.NamedError("cause", err))
		return
	}

	s.mu.RLock()
	handlers := s.handlers[env.Type]
	s.mu.RUnlock()

	if len(handlers) == 0 {
		s.logger.Warn("dropping frame",
			zap.String("socket", socket.ID()),
			zap.String("type", string(env.Type)),
			zap.Error(ErrUnknownType))
		return
	}

	s.logger.Debug("dispatching",
		zap.String("socket", socket.ID()),
		zap.String("type", string(env.Type)))

	for _, handler := range handlers {
		handler(socket, env.Value)
	}
}

// Broadcast sends text to every connected socket and returns how many sends
// succeeded.
func (s *Server) Broadcast(text string) int {
	sockets := s.Sockets()

	s.logger.Debug("broadcasting", zap.Int("sockets", len(sockets)))

	sent := 0
	for _, socket := range sockets {
		if !socket.IsConnected() {
			continue
		}
		if err := socket.Send(text); err != nil {
			s.logger.Warn("broadcast failed", zap.String("socket", socket.ID()), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

func (s *Server) Sockets() []Socket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sockets := make([]Socket, 0, len(s.sockets))
	for _, socket := range s.sockets {
		sockets = append(sockets, socket)
	}
	return sockets
}

func (s *Server) Groups() *GroupRegistry {
	return s.groups
}

func (s *Server) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sockets)
}

func (s *Server) GetSocket(id string) (Socket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	socket, exists := s.sockets[id]
	return socket, exists
}

// Shutdown closes every socket and waits for their receive loops to return.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, socket := range s.Sockets() {
		if err := socket.Close(); err != nil {
			s.logger.Warn("error closing socket", zap.String("socket", socket.ID()), zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.loops.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
