package runtime

import (
	"sync"

	"chatline/contract"
	"chatline/errors"

	"github.com/google/uuid"
)

// Connection is the ephemeral handle for one live push channel. It binds
// exactly one authenticated user to one delivery sink and is never
// persisted.
type Connection struct {
	ID     uuid.UUID
	UserID string
	Sink   contract.EventSink
}

// Registry owns the live connection table: user -> connection -> sink.
// All access goes through its methods; there is no ambient global state.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[uuid.UUID]*Connection
	byConn map[uuid.UUID]*Connection

	// maxPerUser lets the surrounding system cap simultaneous devices.
	// Zero means unlimited.
	maxPerUser int
}

func NewRegistry(maxPerUser int) *Registry {
	return &Registry{
		byUser:     make(map[string]map[uuid.UUID]*Connection),
		byConn:     make(map[uuid.UUID]*Connection),
		maxPerUser: maxPerUser,
	}
}

// Register adds the connection to its user's live set. Registering the
// same handle twice is a no-op. A user at the configured connection cap
// is rejected with ErrTooManyConnections.
func (r *Registry) Register(conn *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byConn[conn.ID]; exists {
		return nil
	}
	perUser := r.byUser[conn.UserID]
	if r.maxPerUser > 0 && len(perUser) >= r.maxPerUser {
		return errors.ErrTooManyConnections
	}
	if perUser == nil {
		perUser = make(map[uuid.UUID]*Connection)
		r.byUser[conn.UserID] = perUser
	}
	perUser[conn.ID] = conn
	r.byConn[conn.ID] = conn
	return nil
}

// Deregister removes the handle wherever present and reports whether it
// was still registered. It is idempotent: disconnect races between the
// close path and a failed delivery must never raise. Empty per-user sets
// are dropped to avoid leaking entries.
func (r *Registry) Deregister(connID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byConn[connID]
	if !ok {
		return false
	}
	delete(r.byConn, connID)
	if perUser := r.byUser[conn.UserID]; perUser != nil {
		delete(perUser, connID)
		if len(perUser) == 0 {
			delete(r.byUser, conn.UserID)
		}
	}
	return true
}

// ConnectionsOf returns a point-in-time snapshot of the user's live
// connections. Handles may go stale the moment the call returns; callers
// must tolerate failed sends.
func (r *Registry) ConnectionsOf(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	perUser := r.byUser[userID]
	if len(perUser) == 0 {
		return nil
	}
	conns := make([]*Connection, 0, len(perUser))
	for _, conn := range perUser {
		conns = append(conns, conn)
	}
	return conns
}

// CountFor exposes the current live count so callers can implement their
// own admission policies on top of Register.
func (r *Registry) CountFor(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}
