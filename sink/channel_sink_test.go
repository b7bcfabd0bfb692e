package sink

import (
	"context"
	"testing"
	"time"

	"chatline/domain"
	"chatline/domain/event"
	"chatline/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestChannelSink_BuffersWithoutBlocking(t *testing.T) {
	req := require.New(t)
	snk := NewChannelSink(2)

	evt := event.MessageStored{Message: domain.Message{ID: uuid.New(), Seq: 1}}
	req.NoError(snk.Consume(context.Background(), evt))
	req.NoError(snk.Consume(context.Background(), evt))
	req.Len(snk.Events, 2)
}

func TestChannelSink_FullBufferFailsFast(t *testing.T) {
	req := require.New(t)
	snk := NewChannelSink(1)

	evt := event.MessageStored{Message: domain.Message{ID: uuid.New(), Seq: 1}}
	req.NoError(snk.Consume(context.Background(), evt))

	// The dispatcher must never be stalled by a slow socket writer.
	start := time.Now()
	err := snk.Consume(context.Background(), evt)
	req.ErrorIs(err, errors.ErrDeliveryFailed)
	req.Less(time.Since(start), 100*time.Millisecond)
}

func TestChannelSink_CanceledContext(t *testing.T) {
	req := require.New(t)
	snk := NewChannelSink(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	evt := event.MessageStored{Message: domain.Message{ID: uuid.New(), Seq: 1}}
	err := snk.Consume(ctx, evt)
	req.Error(err)
}
