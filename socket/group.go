package socket

import (
	"sort"
	"sync"
)

// Group is a named set of sockets that receive MESSAGE_GROUP traffic.
type Group struct {
	name    string
	sockets map[string]Socket
	mu      sync.RWMutex
}

func NewGroup(name string) *Group {
	return &Group{
		name:    name,
		sockets: make(map[string]Socket),
	}
}

func (g *Group) Name() string {
	return g.name
}

func (g *Group) add(s Socket) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sockets[s.ID()] = s
}

func (g *Group) remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sockets, id)
}

func (g *Group) HasSocket(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, exists := g.sockets[id]
	return exists
}

func (g *Group) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sockets)
}

func (g *Group) Sockets() []Socket {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sockets := make([]Socket, 0, len(g.sockets))
	for _, socket := range g.sockets {
		sockets = append(sockets, socket)
	}
	return sockets
}

// Broadcast sends text to every connected member and returns how many sends
// succeeded.
func (g *Group) Broadcast(text string) int {
	sent := 0
	for _, socket := range g.Sockets() {
		if !socket.IsConnected() {
			continue
		}
		if err := socket.Send(text); err == nil {
			sent++
		}
	}
	return sent
}

// GroupRegistry tracks the groups of one Server. A socket belongs to at most
// one group at a time. Groups are never removed; the name is the identity.
type GroupRegistry struct {
	mu         sync.RWMutex
	groups     map[string]*Group
	membership map[string]*Group
}

func NewGroupRegistry() *GroupRegistry {
	return &GroupRegistry{
		groups:     make(map[string]*Group),
		membership: make(map[string]*Group),
	}
}

// Create registers a new group and moves s into it. It reports false if the
// name is already taken.
func (r *GroupRegistry) Create(name string, s Socket) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.groups[name]; exists {
		return false
	}

	g := NewGroup(name)
	r.groups[name] = g
	r.moveLocked(g, s)
	return true
}

// Join moves s into an existing group. It reports false if no such group exists.
func (r *GroupRegistry) Join(name string, s Socket) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, exists := r.groups[name]
	if !exists {
		return false
	}

	r.moveLocked(g, s)
	return true
}

func (r *GroupRegistry) moveLocked(g *Group, s Socket) {
	if current, ok := r.membership[s.ID()]; ok {
		current.remove(s.ID())
	}
	g.add(s)
	r.membership[s.ID()] = g
}

// Leave drops s from its group, if any. The group itself stays registered.
func (r *GroupRegistry) Leave(socketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.membership[socketID]; ok {
		g.remove(socketID)
		delete(r.membership, socketID)
	}
}

func (r *GroupRegistry) Get(name string) (*Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, exists := r.groups[name]
	return g, exists
}

func (r *GroupRegistry) Has(name string) bool {
	_, exists := r.Get(name)
	return exists
}

// GroupOf returns the name of the group s belongs to.
func (r *GroupRegistry) GroupOf(socketID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.membership[socketID]
	if !ok {
		return "", false
	}
	return g.Name(), true
}

// Names returns the registered group names in sorted order.
func (r *GroupRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Broadcast sends text to every member of the named group.
func (r *GroupRegistry) Broadcast(name, text string) int {
	g, exists := r.Get(name)
	if !exists {
		return 0
	}
	return g.Broadcast(text)
}
