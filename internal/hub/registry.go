package hub

import (
	"sync"

	"go.uber.org/zap"
)

// Registry is the shared table of live connections, keyed by identity id.
// It is owned by the hub server for the process lifetime; producers never
// touch it directly and only reach it through the Broadcaster.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
	log   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		conns: make(map[string]*Conn),
		log:   log.With(zap.String("module", "registry")),
	}
}

// Register inserts the connection under its identity id. A second connection
// for the same identity replaces the first; the superseded connection is
// returned so the caller can close it rather than leak a socket that no
// longer receives broadcasts.
func (r *Registry) Register(c *Conn) (superseded *Conn) {
	id := c.Identity().ID
	r.mu.Lock()
	prev := r.conns[id]
	r.conns[id] = c
	r.mu.Unlock()
	if prev != nil {
		r.log.Warn("connection superseded",
			zap.String("client_id", id),
			zap.String("old_conn_id", prev.ID()),
			zap.String("new_conn_id", c.ID()))
	}
	return prev
}

// Unregister removes the connection if it is still the one registered for its
// identity id. It returns false when the entry was already gone or had been
// replaced by a newer connection, so a superseded connection's teardown never
// evicts its successor. Idempotent.
func (r *Registry) Unregister(c *Conn) bool {
	id := c.Identity().ID
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.conns[id]; ok && current == c {
		delete(r.conns, id)
		return true
	}
	return false
}

// Get returns the live connection for an identity id.
func (r *Registry) Get(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ForEachInOrg calls fn for every currently-open connection in the org.
// Matching connections are snapshotted under the read lock and fn runs
// without it, so fn may write to sockets freely.
func (r *Registry) ForEachInOrg(orgID string, fn func(*Conn)) {
	for _, c := range r.snapshot(func(c *Conn) bool {
		return c.Identity().OrgID == orgID
	}) {
		fn(c)
	}
}

// ForEachInChannel is ForEachInOrg additionally filtered to connections
// subscribed to the channel.
func (r *Registry) ForEachInChannel(orgID, channelID string, fn func(*Conn)) {
	for _, c := range r.snapshot(func(c *Conn) bool {
		return c.Identity().OrgID == orgID && c.IsSubscribed(channelID)
	}) {
		fn(c)
	}
}

func (r *Registry) snapshot(match func(*Conn) bool) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		if c.Open() && match(c) {
			out = append(out, c)
		}
	}
	return out
}
