package presence

import "sync"

// Conn is one live client connection. Push must be safe for concurrent use
// and must not block indefinitely; a broken connection surfaces as an error.
type Conn interface {
	Push(event string, payload any) error
	Close() error
}

// Registry is the process-wide map from user id to that user's open
// connections. It is the sole authority for "online": a user with zero
// entries is offline. Entries are ephemeral and never persisted.
type Registry struct {
	mu     sync.RWMutex
	conns  map[int64]map[Conn]struct{}
	owners map[Conn]int64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[int64]map[Conn]struct{}),
		owners: make(map[Conn]int64),
	}
}

// Register adds the connection to the user's set. Idempotent. Returns true
// when this is the user's first open connection.
func (r *Registry) Register(userID int64, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[userID] = set
	}
	first := len(set) == 0
	set[conn] = struct{}{}
	r.owners[conn] = userID
	return first
}

// Unregister removes the connection from whichever user owns it. Returns the
// owning user id and whether that user has no connections left. Unknown
// connections are a no-op.
func (r *Registry) Unregister(conn Conn) (userID int64, last bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok = r.owners[conn]
	if !ok {
		return 0, false, false
	}
	delete(r.owners, conn)

	set := r.conns[userID]
	delete(set, conn)
	if len(set) == 0 {
		delete(r.conns, userID)
		return userID, true, true
	}
	return userID, false, true
}

// Connections returns a snapshot of the user's open connections. Unknown
// users yield an empty slice.
func (r *Registry) Connections(userID int64) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.conns[userID]
	out := make([]Conn, 0, len(set))
	for conn := range set {
		out = append(out, conn)
	}
	return out
}

// IsOnline reports whether the user has at least one open connection.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// OnlineCount returns the number of users with at least one connection.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
