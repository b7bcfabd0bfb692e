// Package event defines the domain events flowing between the store
// and the delivery side of the system.
package event

import (
	"time"

	"chatline/domain"
)

type DomainEvent interface {
	Name() string
	OccurredAt() time.Time
}

// MessageStored is emitted after a message has been durably appended.
// It carries the full record, sequence key included, so sinks never
// have to read back from storage.
type MessageStored struct {
	Message domain.Message
}

func (e MessageStored) Name() string { return "MessageStored" }

func (e MessageStored) OccurredAt() time.Time { return e.Message.CreatedAt }
