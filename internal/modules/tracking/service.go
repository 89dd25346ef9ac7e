// README: Tracking service: append events and assemble timelines.
package tracking

import (
	"context"

	"courier/internal/logger"
	"courier/internal/types"
)

// Log is the persistence port for the event stream.
type Log interface {
	Append(ctx context.Context, e *Event) error
	ListByBookingID(ctx context.Context, bookingID string) ([]*Event, error)
	ListByDeliveryID(ctx context.Context, deliveryID string) ([]*Event, error)
}

type Service struct {
	log    Log
	logger logger.ILogger
}

func NewService(log Log, l logger.ILogger) *Service {
	return &Service{log: log, logger: l}
}

type CreateEventCommand struct {
	BookingID   string
	DeliveryID  string
	Type        string
	Location    *types.Point
	RiderUserID string
	Metadata    map[string]interface{}
}

// CreateEvent appends one event to the log.
func (s *Service) CreateEvent(ctx context.Context, cmd CreateEventCommand) (*Event, error) {
	e, err := NewEvent(cmd.BookingID, cmd.DeliveryID, cmd.Type, cmd.RiderUserID, cmd.Location, cmd.Metadata)
	if err != nil {
		return nil, err
	}
	if err := s.log.Append(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// RecordLocation appends a location_update event, typically from the rider's
// device during an active delivery.
func (s *Service) RecordLocation(ctx context.Context, bookingID, deliveryID, riderUserID string, loc types.Point) (*Event, error) {
	return s.CreateEvent(ctx, CreateEventCommand{
		BookingID:   bookingID,
		DeliveryID:  deliveryID,
		Type:        EventLocationUpdate,
		Location:    &loc,
		RiderUserID: riderUserID,
	})
}

// Append satisfies the booking tracker port.
func (s *Service) Append(ctx context.Context, bookingID, deliveryID, eventType, riderUserID string, loc *types.Point) error {
	_, err := s.CreateEvent(ctx, CreateEventCommand{
		BookingID:   bookingID,
		DeliveryID:  deliveryID,
		Type:        eventType,
		Location:    loc,
		RiderUserID: riderUserID,
	})
	return err
}

// TimelineByBooking assembles the booking's event history oldest first.
func (s *Service) TimelineByBooking(ctx context.Context, bookingID string) (*Timeline, error) {
	events, err := s.log.ListByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return assemble(events), nil
}

// TimelineByDelivery is the same view keyed by the upstream delivery id.
func (s *Service) TimelineByDelivery(ctx context.Context, deliveryID string) (*Timeline, error) {
	events, err := s.log.ListByDeliveryID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return assemble(events), nil
}

// CurrentLocation returns the latest location-carrying event's position.
func (s *Service) CurrentLocation(ctx context.Context, bookingID string) (*types.Point, error) {
	events, err := s.log.ListByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Location != nil {
			return events[i].Location, nil
		}
	}
	return nil, ErrNotFound
}

// assemble derives the timeline view. Status is the literal last event's
// type, location_update included; location comes from the last event carrying
// one.
func assemble(events []*Event) *Timeline {
	t := &Timeline{
		BookingID:     events[0].BookingID,
		DeliveryID:    events[0].DeliveryID,
		CurrentStatus: events[len(events)-1].Type,
		Events:        events,
	}
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Location != nil {
			t.CurrentLocation = events[i].Location
			break
		}
	}
	return t
}
