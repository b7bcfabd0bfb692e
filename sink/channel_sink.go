package sink

import (
	"context"

	"chatline/domain/event"
	"chatline/errors"
)

// ChannelSink bridges the dispatcher to one connection's write pump.
// Consume only parks the event in the buffer; the transport goroutine
// that owns the socket drains Events and performs the actual I/O.
type ChannelSink struct {
	Events chan event.DomainEvent
}

func NewChannelSink(bufferSize int) *ChannelSink {
	return &ChannelSink{Events: make(chan event.DomainEvent, bufferSize)}
}

// Consume is called by the dispatcher fan-out. A full buffer means the
// consumer is too slow to keep up and the delivery is reported failed so
// the connection gets dropped instead of stalling its siblings.
func (s *ChannelSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.ErrDeliveryFailed
	}
}
