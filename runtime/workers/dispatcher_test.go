package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chatline/domain"
	"chatline/domain/event"
	"chatline/errors"
	"chatline/runtime"
	"chatline/sink"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type staticMembers struct {
	members map[uuid.UUID][]string
}

func (s staticMembers) MembersOf(chatID uuid.UUID) ([]string, error) {
	members, ok := s.members[chatID]
	if !ok {
		return nil, errors.ErrChatNotFound
	}
	return members, nil
}

type failingSink struct{}

func (failingSink) Consume(ctx context.Context, e event.DomainEvent) error {
	return errors.ErrDeliveryFailed
}

type blockingSink struct{}

func (blockingSink) Consume(ctx context.Context, e event.DomainEvent) error {
	<-ctx.Done()
	return ctx.Err()
}

func startDispatcher(t *testing.T, members MembershipResolver, registry *runtime.Registry) chan<- event.DomainEvent {
	t.Helper()
	events := make(chan event.DomainEvent, 16)
	dispatcher := NewDispatcher(slog.Default(), events, members, registry, 100*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = dispatcher.Run(ctx) }()
	return events
}

func storedMessage(chatID uuid.UUID, sender string, seq uint64) event.MessageStored {
	return event.MessageStored{Message: domain.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  sender,
		Body:      "hi",
		Seq:       seq,
		CreatedAt: time.Now().UTC(),
	}}
}

func TestDispatcher_DeliversToEveryConnectionOfEveryMember(t *testing.T) {
	req := require.New(t)
	chatID := uuid.New()
	members := staticMembers{members: map[uuid.UUID][]string{
		chatID: {"alice", "bob"},
	}}
	registry := runtime.NewRegistry(0)

	alice1 := sink.NewTimeline("alice")
	alice2 := sink.NewTimeline("alice")
	bob := sink.NewTimeline("bob")
	outsider := sink.NewTimeline("mallory")
	req.NoError(registry.Register(&runtime.Connection{ID: uuid.New(), UserID: "alice", Sink: alice1}))
	req.NoError(registry.Register(&runtime.Connection{ID: uuid.New(), UserID: "alice", Sink: alice2}))
	req.NoError(registry.Register(&runtime.Connection{ID: uuid.New(), UserID: "bob", Sink: bob}))
	req.NoError(registry.Register(&runtime.Connection{ID: uuid.New(), UserID: "mallory", Sink: outsider}))

	events := startDispatcher(t, members, registry)
	events <- storedMessage(chatID, "alice", 1)

	req.Eventually(func() bool {
		return len(alice1.Messages()) == 1 &&
			len(alice2.Messages()) == 1 &&
			len(bob.Messages()) == 1
	}, time.Second, 10*time.Millisecond)

	// Non-members never receive anything, connected or not.
	req.Empty(outsider.Messages())
}

func TestDispatcher_FailedDelivery_IsIsolatedAndDropsConnection(t *testing.T) {
	req := require.New(t)
	chatID := uuid.New()
	members := staticMembers{members: map[uuid.UUID][]string{
		chatID: {"alice", "bob"},
	}}
	registry := runtime.NewRegistry(0)

	broken := &runtime.Connection{ID: uuid.New(), UserID: "alice", Sink: failingSink{}}
	healthy := sink.NewTimeline("alice")
	bob := sink.NewTimeline("bob")
	req.NoError(registry.Register(broken))
	req.NoError(registry.Register(&runtime.Connection{ID: uuid.New(), UserID: "alice", Sink: healthy}))
	req.NoError(registry.Register(&runtime.Connection{ID: uuid.New(), UserID: "bob", Sink: bob}))

	events := startDispatcher(t, members, registry)
	events <- storedMessage(chatID, "bob", 1)

	// Siblings and other members still get the message; the broken
	// connection is removed from the registry.
	req.Eventually(func() bool {
		return len(healthy.Messages()) == 1 && len(bob.Messages()) == 1
	}, time.Second, 10*time.Millisecond)
	req.Eventually(func() bool {
		return registry.CountFor("alice") == 1
	}, time.Second, 10*time.Millisecond)
}

func TestDispatcher_SlowConsumer_TimesOutAndIsDropped(t *testing.T) {
	req := require.New(t)
	chatID := uuid.New()
	members := staticMembers{members: map[uuid.UUID][]string{
		chatID: {"alice"},
	}}
	registry := runtime.NewRegistry(0)

	slow := &runtime.Connection{ID: uuid.New(), UserID: "alice", Sink: blockingSink{}}
	req.NoError(registry.Register(slow))

	events := startDispatcher(t, members, registry)
	events <- storedMessage(chatID, "alice", 1)

	req.Eventually(func() bool {
		return registry.CountFor("alice") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDispatcher_SequentialAppends_ArriveInOrder(t *testing.T) {
	req := require.New(t)
	chatID := uuid.New()
	members := staticMembers{members: map[uuid.UUID][]string{
		chatID: {"alice"},
	}}
	registry := runtime.NewRegistry(0)

	timeline := sink.NewTimeline("alice")
	req.NoError(registry.Register(&runtime.Connection{ID: uuid.New(), UserID: "alice", Sink: timeline}))

	events := startDispatcher(t, members, registry)
	for seq := uint64(1); seq <= 5; seq++ {
		events <- storedMessage(chatID, "alice", seq)
	}

	req.Eventually(func() bool {
		return len(timeline.Messages()) == 5
	}, time.Second, 10*time.Millisecond)

	for i, message := range timeline.Messages() {
		req.Equal(uint64(i+1), message.Seq)
	}
}

func TestDispatcher_ChatVanished_NoPanic(t *testing.T) {
	req := require.New(t)
	registry := runtime.NewRegistry(0)
	members := staticMembers{members: map[uuid.UUID][]string{}}

	events := startDispatcher(t, members, registry)
	events <- storedMessage(uuid.New(), "alice", 1)

	// Nothing to assert beyond "the worker is still alive".
	timeline := sink.NewTimeline("alice")
	chatID := uuid.New()
	members.members[chatID] = []string{"alice"}
	req.NoError(registry.Register(&runtime.Connection{ID: uuid.New(), UserID: "alice", Sink: timeline}))
	events <- storedMessage(chatID, "alice", 1)

	req.Eventually(func() bool {
		return len(timeline.Messages()) == 1
	}, time.Second, 10*time.Millisecond)
}
