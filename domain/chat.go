package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChatKind string

const (
	ChatPersonal ChatKind = "personal"
	ChatGroup    ChatKind = "group"
)

// Chat is a conversation container.
//
// A personal chat holds exactly two members and its membership is frozen
// at creation. A group chat has a distinguished creator and a mutable
// member set; removing the last member marks the group inactive instead
// of deleting it, so history stays readable.
type Chat struct {
	ID        uuid.UUID
	Kind      ChatKind
	Name      string
	CreatorID string
	Members   []string
	Active    bool
	CreatedAt time.Time
}

// HasMember reports whether userID belongs to the chat's member set.
// An inactive group has no members left by construction.
func (c Chat) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}
