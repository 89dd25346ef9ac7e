// README: Tracking service tests (timeline assembly, location trail).
package tracking

import (
	"context"
	"testing"

	"courier/internal/logger"
	"courier/internal/types"
)

func setupTracking(t *testing.T) *Service {
	t.Helper()
	return NewService(NewMemoryLog(), logger.Nop())
}

func TestTimelineAssembly(t *testing.T) {
	svc := setupTracking(t)
	ctx := context.Background()

	appendEvent := func(eventType string, loc *types.Point) {
		t.Helper()
		if err := svc.Append(ctx, "bkg_1", "dlv_1", eventType, "rider_a", loc); err != nil {
			t.Fatalf("append %s: %v", eventType, err)
		}
	}

	appendEvent("rider_assigned", nil)
	appendEvent("en_route", nil)
	if _, err := svc.RecordLocation(ctx, "bkg_1", "dlv_1", "rider_a", types.Point{Lat: 25.04, Lng: 121.56}); err != nil {
		t.Fatalf("record location: %v", err)
	}
	appendEvent("arrived_pickup", &types.Point{Lat: 25.041, Lng: 121.561})

	tl, err := svc.TimelineByBooking(ctx, "bkg_1")
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(tl.Events) != 4 {
		t.Fatalf("events = %d, want 4", len(tl.Events))
	}
	if tl.CurrentStatus != "arrived_pickup" {
		t.Errorf("current status = %q", tl.CurrentStatus)
	}
	if tl.CurrentLocation == nil || tl.CurrentLocation.Lat != 25.041 {
		t.Errorf("current location = %+v", tl.CurrentLocation)
	}
	if tl.Events[0].Type != "rider_assigned" {
		t.Errorf("events not oldest first: %s", tl.Events[0].Type)
	}

	byDelivery, err := svc.TimelineByDelivery(ctx, "dlv_1")
	if err != nil || len(byDelivery.Events) != 4 {
		t.Errorf("timeline by delivery: %v, %d events", err, len(byDelivery.Events))
	}
}

func TestStatusFollowsLastEvent(t *testing.T) {
	svc := setupTracking(t)
	ctx := context.Background()

	svc.Append(ctx, "bkg_1", "dlv_1", "picked_up", "rider_a", nil)
	svc.RecordLocation(ctx, "bkg_1", "dlv_1", "rider_a", types.Point{Lat: 25.05, Lng: 121.57})

	// the literal last event drives status, location_update included
	tl, err := svc.TimelineByBooking(ctx, "bkg_1")
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if tl.CurrentStatus != EventLocationUpdate {
		t.Errorf("status = %q, want %q", tl.CurrentStatus, EventLocationUpdate)
	}
	if tl.CurrentLocation == nil || tl.CurrentLocation.Lat != 25.05 {
		t.Errorf("location = %+v", tl.CurrentLocation)
	}

	svc.Append(ctx, "bkg_1", "dlv_1", "en_route_dropoff", "rider_a", nil)
	tl, _ = svc.TimelineByBooking(ctx, "bkg_1")
	if tl.CurrentStatus != "en_route_dropoff" {
		t.Errorf("status = %q after milestone", tl.CurrentStatus)
	}
}

func TestCurrentLocation(t *testing.T) {
	svc := setupTracking(t)
	ctx := context.Background()

	if _, err := svc.CurrentLocation(ctx, "bkg_1"); err != ErrNotFound {
		t.Errorf("no events: %v, want ErrNotFound", err)
	}

	svc.RecordLocation(ctx, "bkg_1", "dlv_1", "rider_a", types.Point{Lat: 25.01, Lng: 121.51})
	svc.RecordLocation(ctx, "bkg_1", "dlv_1", "rider_a", types.Point{Lat: 25.02, Lng: 121.52})

	loc, err := svc.CurrentLocation(ctx, "bkg_1")
	if err != nil {
		t.Fatalf("current location: %v", err)
	}
	if loc.Lat != 25.02 {
		t.Errorf("location = %+v, want latest", loc)
	}
}

func TestTimelineMissingBooking(t *testing.T) {
	svc := setupTracking(t)
	if _, err := svc.TimelineByBooking(context.Background(), "bkg_nope"); err != ErrNotFound {
		t.Errorf("missing booking: %v, want ErrNotFound", err)
	}
}

func TestCreateEventValidation(t *testing.T) {
	svc := setupTracking(t)
	_, err := svc.CreateEvent(context.Background(), CreateEventCommand{DeliveryID: "dlv_1", Type: "en_route"})
	if err != ErrBadRequest {
		t.Errorf("missing booking id: %v, want ErrBadRequest", err)
	}
	_, err = svc.CreateEvent(context.Background(), CreateEventCommand{BookingID: "bkg_1"})
	if err != ErrBadRequest {
		t.Errorf("missing type: %v, want ErrBadRequest", err)
	}
}
