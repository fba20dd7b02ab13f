// Package relay keeps the connection registry: every live connection and the
// identity bound to it, owned by the hub rather than process-wide state.
package relay

import "sync"

// Registry tracks live connections by connection id. Identity binding happens
// at setup time and is stored on the client record; until then a connection
// is registered but belongs to no room.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Add registers a connection for later lookup.
func (r *Registry) Add(c *Client) {
	if c == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c.closed = false
	r.clients[c.id] = c
}

// Remove deletes the connection record and marks it closed. Removing an
// unknown connection is a no-op and returns false.
func (r *Registry) Remove(c *Client) bool {
	if c == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.id]; !ok {
		return false
	}
	delete(r.clients, c.id)
	c.closed = true
	return true
}

// Get returns the connection with the given id, or nil if it is already gone.
func (r *Registry) Get(id string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.clients[id]
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}

// bindIdentity records the identity a setup handshake claimed for the
// connection.
func (r *Registry) bindIdentity(c *Client, identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.identity = identity
}

// identityOf returns the identity bound to the connection, empty until setup
// completes.
func (r *Registry) identityOf(c *Client) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return c.identity
}

// alive reports whether the connection is still registered and able to
// receive deliveries.
func (r *Registry) alive(c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.clients[c.id]
	return ok && !c.closed
}

// snapshot returns all currently registered connections.
func (r *Registry) snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}
