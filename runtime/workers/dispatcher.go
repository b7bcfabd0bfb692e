package workers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"chatline/domain/event"
	"chatline/errors"
	"chatline/runtime"

	"github.com/google/uuid"
)

// MembershipResolver is the slice of the membership index the dispatcher
// needs: the member set of a chat, resolved at dispatch time.
type MembershipResolver interface {
	MembersOf(chatID uuid.UUID) ([]string, error)
}

// ConnectionTable is the slice of the connection registry the dispatcher
// needs: live snapshots plus removal of dead handles.
type ConnectionTable interface {
	ConnectionsOf(userID string) []*runtime.Connection
	Deregister(connID uuid.UUID) bool
}

// DeliveryRecorder receives fan-out telemetry. May be nil.
type DeliveryRecorder interface {
	RecordDelivery()
	RecordDeliveryFailure()
}

// Dispatcher fans stored messages out to the live connections of the
// chat's members. It runs outside the append critical section: a send
// succeeds once the store commit returns, whatever happens here.
//
// Membership is resolved when the event is picked up, not when the
// message was sent. A member added between append and dispatch receives
// the message; a member removed in that window does not. Offline users
// are never retried, history covers them.
type Dispatcher struct {
	log             *slog.Logger
	events          <-chan event.DomainEvent
	members         MembershipResolver
	connections     ConnectionTable
	deliveryTimeout time.Duration
	recorder        DeliveryRecorder
}

func NewDispatcher(log *slog.Logger, events <-chan event.DomainEvent,
	members MembershipResolver, connections ConnectionTable,
	deliveryTimeout time.Duration, recorder DeliveryRecorder) *Dispatcher {
	return &Dispatcher{
		log:             log,
		events:          events,
		members:         members,
		connections:     connections,
		deliveryTimeout: deliveryTimeout,
		recorder:        recorder,
	}
}

func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("Stopping dispatcher")
			return ctx.Err()
		case evt, ok := <-d.events:
			if !ok {
				return nil
			}
			if stored, ok := evt.(event.MessageStored); ok {
				d.fanout(ctx, stored)
			}
		}
	}
}

// fanout delivers one stored message to every live connection of every
// current member. The sender's own connections are included: the push
// stream is the single source of truth for order, so the sender sees its
// message the same way everyone else does.
//
// One slow or closed connection is isolated: it gets deregistered and the
// loop moves on to siblings. The events channel is drained sequentially,
// so any single connection observes non-decreasing sequence keys per chat.
func (d *Dispatcher) fanout(ctx context.Context, stored event.MessageStored) {
	members, err := d.members.MembersOf(stored.Message.ChatID)
	if err != nil {
		if stderrors.Is(err, errors.ErrChatNotFound) {
			d.log.Warn("Chat vanished before dispatch", "chat_id", stored.Message.ChatID)
			return
		}
		d.log.Error("Resolving members failed, message stays history-only",
			"chat_id", stored.Message.ChatID, "error", err)
		return
	}

	for _, member := range members {
		for _, conn := range d.connections.ConnectionsOf(member) {
			d.deliver(ctx, conn, stored)
		}
	}
}

// deliver pushes one event into one sink under a bounded interval.
// A timeout counts as a failed delivery, not as a dispatch crash.
func (d *Dispatcher) deliver(ctx context.Context, conn *runtime.Connection, stored event.MessageStored) {
	deliveryCtx, cancel := context.WithTimeout(ctx, d.deliveryTimeout)
	defer cancel()

	if err := conn.Sink.Consume(deliveryCtx, stored); err != nil {
		d.log.Warn("Delivery failed, dropping connection",
			"connection_id", conn.ID,
			"user_id", conn.UserID,
			"chat_id", stored.Message.ChatID,
			"seq", stored.Message.Seq,
			"error", err)
		d.connections.Deregister(conn.ID)
		if d.recorder != nil {
			d.recorder.RecordDeliveryFailure()
		}
		return
	}
	if d.recorder != nil {
		d.recorder.RecordDelivery()
	}
}
