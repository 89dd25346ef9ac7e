// README: Booking notifier backed by the WebSocket hub.
package ws

import (
	"context"
	"errors"
)

// Notifier adapts the hub to the booking module's push port. Offline users
// are silently skipped: delivery is best effort.
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) Push(ctx context.Context, userID, event string, data interface{}) error {
	err := n.hub.Send(ctx, userID, event, data)
	if errors.Is(err, ErrOffline) {
		return nil
	}
	return err
}
