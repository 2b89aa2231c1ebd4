package models

import "time"

// Message is a single bubble in a widget's message list. Messages are created on send or on reply and
// never mutated afterwards. The only message that ever leaves the list is a loading placeholder, which
// is removed once the reply it stands in for is ready.
type Message struct {
	ID        string
	Role      Role
	Text      string
	Timestamp time.Time

	// ElementID would be filled only if Loading is true. It identifies the placeholder in the view so it
	// can be removed later.
	ElementID string
	// Loading marks a transient placeholder shown while a reply is pending.
	Loading bool
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message typed by the person using the widget.
	RoleUser Role = "user"
	// RoleAssistant represents a reply, or the placeholder for a pending reply.
	RoleAssistant Role = "assistant"
)
