// README: Capability interfaces the booking service consumes.
package booking

import (
	"context"

	"courier/internal/types"
)

// Repository is the persistence port. Save must reject stale writes with
// ErrConflict (optimistic concurrency on Booking.Version).
type Repository interface {
	Save(ctx context.Context, b *Booking) error
	FindByID(ctx context.Context, id string) (*Booking, error)
	FindByDeliveryID(ctx context.Context, deliveryID string) (*Booking, error)
	FindByCustomerUserID(ctx context.Context, customerUserID string) ([]*Booking, error)
	FindActiveBookings(ctx context.Context) ([]*Booking, error)
	FindByStatus(ctx context.Context, status Status) ([]*Booking, error)
}

// SearchCriteria is the candidate query sent to the matching engine.
type SearchCriteria struct {
	PickupLat   float64
	PickupLng   float64
	VehicleType string
	RadiusKm    float64
}

// Engine returns ranked rider candidates, best first. An empty result is a
// valid outcome, not an error. Implementations must not mutate booking state.
type Engine interface {
	FindCandidates(ctx context.Context, c SearchCriteria) ([]RiderInfo, error)
}

// Notifier pushes a realtime event to one connected user. Delivery is best
// effort; an offline user is not an error.
type Notifier interface {
	Push(ctx context.Context, userID, event string, data interface{}) error
}

// Tracker appends a lifecycle event to the tracking log.
type Tracker interface {
	Append(ctx context.Context, bookingID, deliveryID, eventType, riderUserID string, loc *types.Point) error
}

// Directory resolves a rider id to a live profile snapshot. Missing riders
// return ErrNotFound from the implementing module.
type Directory interface {
	Lookup(ctx context.Context, riderUserID string) (*RiderInfo, error)
}
