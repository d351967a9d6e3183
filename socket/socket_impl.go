package socket

import (
	"sync"

	"github.com/kleeedolinux/socket.go/debug"

	"github.com/kleeedolinux/socket.go/socket/transport"
)

type socketImpl struct {
	id        string
	mu        sync.RWMutex
	transport transport.ServerTransport
	connected bool
}

func newSocketFromServerTransport(id string, t transport.ServerTransport) *socketImpl {
	debug.Printf("Creating new socket with ID: %s", id)
	return &socketImpl{
		id:        id,
		transport: t,
		connected: true,
	}
}

// receiveLoop hands every frame to dispatch on the calling goroutine, so
// requests from one connection are handled in the order they were sent.
func (s *socketImpl) receiveLoop(dispatch func(data []byte)) {
	debug.Printf("Socket %s: Starting receive loop", s.id)
	for {
		data, err := s.transport.Read()
		if err != nil {
			debug.Printf("Socket %s: Read error: %v", s.id, err)
			s.Close()
			return
		}

		dispatch(data)
	}
}

func (s *socketImpl) ID() string {
	return s.id
}

func (s *socketImpl) Send(text string) error {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()

	if !connected {
		debug.Printf("Socket %s: Attempted to send to closed socket", s.id)
		return ErrConnectionClosed
	}

	debug.Printf("Socket %s: Sending message: %s", s.id, text)

	err := s.transport.Write([]byte(text))
	if err != nil {
		debug.Printf("Socket %s: Error writing to transport: %v", s.id, err)
	}
	return err
}

func (s *socketImpl) Close() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil
	}

	debug.Printf("Socket %s: Closing connection", s.id)
	s.connected = false
	s.mu.Unlock()

	return s.transport.Close()
}

func (s *socketImpl) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()

	if !connected {
		return false
	}

	select {
	case <-s.transport.Done():
		return false
	default:
		return true
	}
}
