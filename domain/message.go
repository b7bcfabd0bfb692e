// Package domain contains core concepts of the chat system.
// This file defines Message records and their ordering key.
// Messages are immutable once stored.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event.
//
// Seq is the per-chat sequence key: monotonically increasing, assigned
// exactly once at append time. Readers must treat it as monotonic but
// possibly sparse; a reservation abandoned by a crash leaves a gap.
type Message struct {
	ID        uuid.UUID
	ChatID    uuid.UUID
	SenderID  string
	Body      string
	Seq       uint64
	CreatedAt time.Time
}
