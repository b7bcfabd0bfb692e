// Package domain contains core concepts of the chat system.
// This file defines the User identity referenced by chats and messages.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// User is an immutable identity. The messaging core references users,
// it never owns them.
type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}
