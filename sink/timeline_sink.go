package sink

import (
	"context"
	"sync"

	"chatline/domain"
	"chatline/domain/event"
)

// Timeline collects delivered messages in arrival order. It backs
// in-process consumers and test scenarios that assert on what a
// connection actually received.
type Timeline struct {
	Owner string

	mu       sync.Mutex
	messages []domain.Message
}

func NewTimeline(owner string) *Timeline {
	return &Timeline{Owner: owner}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageStored:
		t.mu.Lock()
		t.messages = append(t.messages, evt.Message)
		t.mu.Unlock()
	}
	return nil
}

// Messages returns a copy of everything consumed so far.
func (t *Timeline) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out
}
