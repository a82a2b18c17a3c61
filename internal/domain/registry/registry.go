// Package registry tracks live push-channel connections and their role.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/okian/cadhub/pkg/metrics"
)

// Role partitions connections. Every connection starts as RoleWeb.
type Role int

const (
	RoleWeb Role = iota
	RoleCAD
)

func (r Role) String() string {
	if r == RoleCAD {
		return "cad"
	}
	return "web"
}

// Sender is the outbound half of a connection. Send must not block; it
// reports false when the message was dropped.
type Sender interface {
	Send(msg []byte) bool
}

// Client is a read-only view of a registered connection.
type Client struct {
	ID    string
	Role  Role
	Since time.Time
}

type client struct {
	since  time.Time
	sender Sender
}

// Registry is the ClientRegistry. The web partition is derived as all
// known ids minus the CAD set, so the two views cannot drift apart.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*client
	cad     map[string]struct{}
	now     func() time.Time
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		clients: make(map[string]*client),
		cad:     make(map[string]struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers id as a web connection. Adding a known id replaces its
// sender and keeps its role.
func (r *Registry) Add(id string, s Sender) {
	r.mu.Lock()
	if c, ok := r.clients[id]; ok {
		c.sender = s
	} else {
		r.clients[id] = &client{since: r.now(), sender: s}
	}
	r.publishLocked()
	r.mu.Unlock()
}

// Remove forgets id in both partitions. Unknown ids are ignored.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return false
	}
	delete(r.clients, id)
	delete(r.cad, id)
	r.publishLocked()
	return true
}

// PromoteToCAD moves a known connection into the CAD partition. Promotion
// is one-way; promoting a CAD connection again is a no-op.
func (r *Registry) PromoteToCAD(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return ErrUnknownClient
	}
	r.cad[id] = struct{}{}
	r.publishLocked()
	return nil
}

// Get returns the connection registered under id.
func (r *Registry) Get(id string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	if !ok {
		return Client{}, false
	}
	return Client{ID: id, Role: r.roleLocked(id), Since: c.since}, true
}

// WebClients returns the ids of every non-CAD connection, sorted.
func (r *Registry) WebClients() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.clients)-len(r.cad))
	for id := range r.clients {
		if _, isCAD := r.cad[id]; !isCAD {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// CADClients returns the ids of CAD connections, sorted.
func (r *Registry) CADClients() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.cad))
	for id := range r.cad {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Counts returns the size of each partition.
func (r *Registry) Counts() (web, cad int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients) - len(r.cad), len(r.cad)
}

// Send delivers msg to a single connection. It returns false when the
// connection is gone or its buffer is full.
func (r *Registry) Send(id string, msg []byte) bool {
	var sender Sender
	r.mu.RLock()
	if c, ok := r.clients[id]; ok {
		sender = c.sender
	}
	r.mu.RUnlock()
	if sender == nil {
		return false
	}
	if !sender.Send(msg) {
		metrics.RecordPushDropped()
		return false
	}
	return true
}

// SendAll delivers msg to each id and returns how many accepted it.
// Connections that vanished since ids was computed are skipped.
func (r *Registry) SendAll(ids []string, msg []byte) int {
	n := 0
	for _, id := range ids {
		if r.Send(id, msg) {
			n++
		}
	}
	return n
}

func (r *Registry) roleLocked(id string) Role {
	if _, ok := r.cad[id]; ok {
		return RoleCAD
	}
	return RoleWeb
}

func (r *Registry) publishLocked() {
	metrics.UpdateConnectedClients(RoleWeb.String(), len(r.clients)-len(r.cad))
	metrics.UpdateConnectedClients(RoleCAD.String(), len(r.cad))
}
