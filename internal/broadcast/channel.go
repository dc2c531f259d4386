// Package broadcast carries fire-and-forget signals between the tabs of a
// session. Nothing here guarantees delivery or ordering: receivers must be
// correct without ever seeing a message.
package broadcast

import "context"

type MessageType string

const (
	TypeReset       MessageType = "RESET"
	TypeForceLogout MessageType = "FORCE_LOGOUT"
)

type Message struct {
	Type   MessageType `json:"type"`
	Sender string      `json:"sender,omitempty"`
}

// Channel is one member's handle on a named channel. A member never receives
// its own posts.
type Channel interface {
	Post(ctx context.Context, msg Message) error
	OnMessage(fn func(Message)) (unsubscribe func())
	Close() error
}
