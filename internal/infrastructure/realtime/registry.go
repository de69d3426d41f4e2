package realtime

import "sync"

// Registry maps an authenticated user identity to its live connections.
// A user may be connected from several devices simultaneously; routing an
// event to a user with no live connection is a no-op, never an error.
// Created once at server startup and passed by reference to the components
// that route outbound traffic.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn            // connection ID -> connection
	users map[string]map[string]Conn // user ID -> connection ID -> connection
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Conn),
		users: make(map[string]map[string]Conn),
	}
}

// Register tracks conn under its owning user.
func (r *Registry) Register(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[conn.ID()] = conn
	set := r.users[conn.UserID()]
	if set == nil {
		set = make(map[string]Conn)
		r.users[conn.UserID()] = set
	}
	set[conn.ID()] = conn
}

// Unregister removes conn and reports whether it was the last live connection
// for its user, so the caller can emit a presence-offline signal.
func (r *Registry) Unregister(conn Conn) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, tracked := r.conns[conn.ID()]; !tracked {
		return false
	}
	delete(r.conns, conn.ID())

	set := r.users[conn.UserID()]
	delete(set, conn.ID())
	if len(set) == 0 {
		delete(r.users, conn.UserID())
		return true
	}
	return false
}

// Route delivers payload to every live connection of userID and returns the
// number of successful deliveries. Zero connections is not an error.
func (r *Registry) Route(userID string, payload []byte) int {
	r.mu.RLock()
	set := r.users[userID]
	targets := make([]Conn, 0, len(set))
	for _, conn := range set {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// BroadcastAll delivers payload to every tracked connection. Used for
// presence events visible to the whole user base.
func (r *Registry) BroadcastAll(payload []byte) int {
	r.mu.RLock()
	targets := make([]Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// Close terminates every tracked connection and clears the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	targets := make([]Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		targets = append(targets, conn)
	}
	r.conns = make(map[string]Conn)
	r.users = make(map[string]map[string]Conn)
	r.mu.Unlock()

	for _, conn := range targets {
		conn.Close(1001, "registry shutdown")
	}
}
