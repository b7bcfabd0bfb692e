package runtime

import (
	"context"
	"sync"
	"testing"

	"chatline/domain/event"
	"chatline/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type nopSink struct{}

func (nopSink) Consume(ctx context.Context, e event.DomainEvent) error { return nil }

func newConn(userID string) *Connection {
	return &Connection{ID: uuid.New(), UserID: userID, Sink: nopSink{}}
}

func TestRegistry_Register_One_User_Multiple_Connections(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)

	conn1 := newConn("alice")
	conn2 := newConn("alice")
	req.NoError(registry.Register(conn1))
	req.NoError(registry.Register(conn2))

	req.Equal(2, registry.CountFor("alice"))
	req.Len(registry.ConnectionsOf("alice"), 2)
	req.Nil(registry.ConnectionsOf("bob"))
}

func TestRegistry_Register_SameHandleTwice_IsNoOp(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)

	conn := newConn("alice")
	req.NoError(registry.Register(conn))
	req.NoError(registry.Register(conn))

	req.Equal(1, registry.CountFor("alice"))
}

func TestRegistry_Register_PerUserLimit(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(2)

	req.NoError(registry.Register(newConn("alice")))
	req.NoError(registry.Register(newConn("alice")))
	req.ErrorIs(registry.Register(newConn("alice")), errors.ErrTooManyConnections)

	// The cap is per user, another user is unaffected.
	req.NoError(registry.Register(newConn("bob")))
}

func TestRegistry_Deregister_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)

	alice1 := newConn("alice")
	alice2 := newConn("alice")
	bob := newConn("bob")
	req.NoError(registry.Register(alice1))
	req.NoError(registry.Register(alice2))
	req.NoError(registry.Register(bob))

	req.True(registry.Deregister(alice1.ID))
	req.False(registry.Deregister(alice1.ID))

	// Other connections and other users are untouched.
	req.Equal(1, registry.CountFor("alice"))
	req.Equal(1, registry.CountFor("bob"))
}

func TestRegistry_Deregister_Unknown(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)
	req.False(registry.Deregister(uuid.New()))
}

func TestRegistry_Snapshot_IsStable(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)

	conn := newConn("alice")
	req.NoError(registry.Register(conn))

	snapshot := registry.ConnectionsOf("alice")
	registry.Deregister(conn.ID)

	// The earlier snapshot still holds the now-stale handle; callers
	// must tolerate that, the registry must not mutate it.
	req.Len(snapshot, 1)
	req.Equal(conn.ID, snapshot[0].ID)
	req.Equal(0, registry.CountFor("alice"))
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := newConn("alice")
			_ = registry.Register(conn)
			registry.ConnectionsOf("alice")
			registry.Deregister(conn.ID)
			registry.Deregister(conn.ID)
		}()
	}
	wg.Wait()

	req.Equal(0, registry.CountFor("alice"))
}
