package socket

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubSocket struct {
	id string

	mu     sync.Mutex
	sent   []string
	closed bool
}

func newStubSocket(id string) *stubSocket {
	return &stubSocket{id: id}
}

func (s *stubSocket) ID() string { return s.id }

func (s *stubSocket) Send(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *stubSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSocket) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *stubSocket) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func TestGroupRegistryCreateAndJoin(t *testing.T) {
	r := NewGroupRegistry()
	a, b := newStubSocket("a"), newStubSocket("b")

	assert.True(t, r.Create("G", a))
	assert.False(t, r.Create("G", b), "names are unique")
	assert.True(t, r.Join("G", b))
	assert.False(t, r.Join("missing", b))

	g, ok := r.Get("G")
	assert.True(t, ok)
	assert.Equal(t, 2, g.Count())
	assert.True(t, g.HasSocket("a"))
	assert.True(t, g.HasSocket("b"))
}

func TestGroupRegistrySingleMembership(t *testing.T) {
	r := NewGroupRegistry()
	a := newStubSocket("a")

	r.Create("one", a)
	r.Create("two", a)

	name, ok := r.GroupOf("a")
	assert.True(t, ok)
	assert.Equal(t, "two", name)

	one, _ := r.Get("one")
	assert.Equal(t, 0, one.Count())
	assert.Equal(t, []string{"one", "two"}, r.Names())
}

func TestGroupRegistryLeaveKeepsGroup(t *testing.T) {
	r := NewGroupRegistry()
	a := newStubSocket("a")

	r.Create("G", a)
	r.Leave("a")
	r.Leave("a")

	_, ok := r.GroupOf("a")
	assert.False(t, ok)
	assert.True(t, r.Has("G"))
}

func TestGroupRegistryBroadcast(t *testing.T) {
	r := NewGroupRegistry()
	a, b, c := newStubSocket("a"), newStubSocket("b"), newStubSocket("c")

	r.Create("G", a)
	r.Join("G", b)
	r.Create("H", c)

	assert.Equal(t, 2, r.Broadcast("G", "hi"))
	assert.Equal(t, 0, r.Broadcast("missing", "hi"))

	assert.Equal(t, []string{"hi"}, a.received())
	assert.Equal(t, []string{"hi"}, b.received())
	assert.Empty(t, c.received())
}

func TestGroupBroadcastSkipsDisconnected(t *testing.T) {
	r := NewGroupRegistry()
	a, b := newStubSocket("a"), newStubSocket("b")

	r.Create("G", a)
	r.Join("G", b)
	b.Close()

	assert.Equal(t, 1, r.Broadcast("G", "hi"))
	assert.Equal(t, []string{"hi"}, a.received())
	assert.Empty(t, b.received())
}
