// README: Tracking event log: one append-only record per delivery milestone.
package tracking

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"courier/internal/types"
)

var (
	ErrNotFound   = errors.New("no tracking events")
	ErrBadRequest = errors.New("bad request")
)

// Event is one immutable entry of a booking's timeline. Location is set for
// location-carrying events and nil for pure status milestones.
type Event struct {
	ID          string                 `json:"event_id"`
	BookingID   string                 `json:"booking_id"`
	DeliveryID  string                 `json:"delivery_id"`
	Type        string                 `json:"type"`
	Location    *types.Point           `json:"location,omitempty"`
	RiderUserID string                 `json:"rider_user_id,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

const EventLocationUpdate = "location_update"

// NewEvent builds an event with a fresh id and timestamp.
func NewEvent(bookingID, deliveryID, eventType, riderUserID string, loc *types.Point, meta map[string]interface{}) (*Event, error) {
	if bookingID == "" || eventType == "" {
		return nil, ErrBadRequest
	}
	return &Event{
		ID:          "evt_" + uuid.NewString(),
		BookingID:   bookingID,
		DeliveryID:  deliveryID,
		Type:        eventType,
		Location:    loc,
		RiderUserID: riderUserID,
		Metadata:    meta,
		Timestamp:   time.Now(),
	}, nil
}

// Timeline is the assembled view of a booking's event history.
type Timeline struct {
	BookingID       string       `json:"booking_id"`
	DeliveryID      string       `json:"delivery_id"`
	CurrentStatus   string       `json:"current_status"`
	CurrentLocation *types.Point `json:"current_location,omitempty"`
	Events          []*Event     `json:"events"`
}
