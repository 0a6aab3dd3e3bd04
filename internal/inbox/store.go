// Package inbox persists notifications that reached zero connected sessions,
// so the next client to connect still receives them. The inbox endpoint
// reports such deliveries as "queued"; replay on connect drains the store.
package inbox

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/earshot/pkg/wire"
)

// ErrNotFound is returned by MarkDelivered when no notification with the
// given ID is pending.
var ErrNotFound = errors.New("notification not found")

// Notification is a stored notification awaiting delivery.
type Notification struct {
	ID        string
	Title     string
	Message   string
	Priority  string
	Speak     bool
	CreatedAt time.Time
}

// FromWire builds a stored notification from its wire form.
func FromWire(n wire.Notification) Notification {
	return Notification{
		Title:    n.Title,
		Message:  n.Message,
		Priority: n.Priority,
		Speak:    n.Speak,
	}
}

// Wire converts the stored notification back to its wire form.
func (n Notification) Wire() wire.Notification {
	return wire.NewNotification(n.Title, n.Message, n.Priority, n.Speak)
}

// Store holds undelivered notifications.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Append stores n and returns it with a generated ID and creation time.
	// An empty priority is stored as [wire.PriorityNormal].
	Append(ctx context.Context, n Notification) (Notification, error)

	// Pending returns all undelivered notifications, oldest first.
	Pending(ctx context.Context) ([]Notification, error)

	// MarkDelivered removes the notification from the pending set.
	// Returns [ErrNotFound] when no pending notification has that ID.
	MarkDelivered(ctx context.Context, id string) error
}
