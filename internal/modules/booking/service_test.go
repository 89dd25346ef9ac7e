// README: Booking service tests (search rounds, responses, sweeper).
package booking

import (
	"context"
	"testing"
	"time"

	"courier/internal/config"
	"courier/internal/logger"
	"courier/internal/types"
)

type stubEngine struct {
	candidates []RiderInfo
	err        error
	calls      int
}

func (e *stubEngine) FindCandidates(_ context.Context, _ SearchCriteria) ([]RiderInfo, error) {
	e.calls++
	return e.candidates, e.err
}

type recordedPush struct {
	UserID string
	Event  string
}

type recordingNotifier struct {
	pushes []recordedPush
}

func (n *recordingNotifier) Push(_ context.Context, userID, event string, _ interface{}) error {
	n.pushes = append(n.pushes, recordedPush{UserID: userID, Event: event})
	return nil
}

func (n *recordingNotifier) eventsFor(userID string) []string {
	var out []string
	for _, p := range n.pushes {
		if p.UserID == userID {
			out = append(out, p.Event)
		}
	}
	return out
}

type recordedTrack struct {
	BookingID string
	EventType string
	RiderID   string
}

type recordingTracker struct {
	events []recordedTrack
}

func (r *recordingTracker) Append(_ context.Context, bookingID, _, eventType, riderUserID string, _ *types.Point) error {
	r.events = append(r.events, recordedTrack{BookingID: bookingID, EventType: eventType, RiderID: riderUserID})
	return nil
}

type stubDirectory struct {
	riders map[string]RiderInfo
}

func (d *stubDirectory) Lookup(_ context.Context, riderUserID string) (*RiderInfo, error) {
	if info, ok := d.riders[riderUserID]; ok {
		return &info, nil
	}
	return nil, ErrNotFound
}

type testEnv struct {
	svc      *Service
	store    *MemoryStore
	engine   *stubEngine
	notifier *recordingNotifier
	tracker  *recordingTracker
}

func setupService(t *testing.T, candidates ...RiderInfo) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    NewMemoryStore(),
		engine:   &stubEngine{candidates: candidates},
		notifier: &recordingNotifier{},
		tracker:  &recordingTracker{},
	}
	cfg := config.MatchingConfig{OfferTTLSec: 45, RadiusKm: 10, SweepSec: 10, SearchTimeoutSec: 15}
	dir := &stubDirectory{riders: map[string]RiderInfo{}}
	for _, c := range candidates {
		dir.riders[c.UserID] = c
	}
	env.svc = NewService(env.store, env.engine, env.notifier, env.tracker, dir, logger.Nop(), cfg)
	// run search rounds inline so tests observe their effects synchronously
	env.svc.RunSearchesInline()
	return env
}

func mustCreate(t *testing.T, env *testEnv) string {
	t.Helper()
	res, err := env.svc.Create(context.Background(), CreateCommand{
		DeliveryID:     "dlv_1",
		VehicleType:    "motorcycle",
		Pickup:         Stop{Sequence: 0, Geo: pt(25.04, 121.56)},
		Dropoffs:       []Stop{{Sequence: 1, Geo: pt(25.05, 121.57)}},
		CustomerUserID: "cust_1",
		CustomerName:   "Alice",
		CustomerPhone:  "0912345678",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return res.BookingID
}

func assertStatus(t *testing.T, env *testEnv, id string, want Status) {
	t.Helper()
	b, err := env.svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	if b.Status != want {
		t.Fatalf("status = %s, want %s", b.Status, want)
	}
}

func TestCreateOffersTopCandidate(t *testing.T) {
	env := setupService(t,
		RiderInfo{UserID: "rider_a", Name: "Bob", Vehicle: "motorcycle", EtaMin: 3},
		RiderInfo{UserID: "rider_b", Name: "Carol", Vehicle: "motorcycle", EtaMin: 7},
	)
	id := mustCreate(t, env)

	assertStatus(t, env, id, StatusOffered)
	b, _ := env.svc.Get(context.Background(), id)
	if b.CurrentOfferRider() != "rider_a" {
		t.Errorf("offer went to %q, want rider_a", b.CurrentOfferRider())
	}
	if got := env.notifier.eventsFor("rider_a"); len(got) != 1 || got[0] != EventOffered {
		t.Errorf("rider_a events = %v", got)
	}
}

func TestCreateWithNoCandidates(t *testing.T) {
	env := setupService(t)
	id := mustCreate(t, env)

	assertStatus(t, env, id, StatusSearching)
	if got := env.notifier.eventsFor("cust_1"); len(got) != 1 || got[0] != EventSearchIdle {
		t.Errorf("customer events = %v, want [search_idle]", got)
	}
}

func TestDeclineTriggersReoffer(t *testing.T) {
	env := setupService(t,
		RiderInfo{UserID: "rider_a", Vehicle: "motorcycle"},
		RiderInfo{UserID: "rider_b", Vehicle: "motorcycle"},
	)
	id := mustCreate(t, env)

	if _, err := env.svc.Respond(context.Background(), id, RespondCommand{RiderUserID: "rider_a", Decision: "decline"}); err != nil {
		t.Fatalf("decline: %v", err)
	}

	assertStatus(t, env, id, StatusOffered)
	b, _ := env.svc.Get(context.Background(), id)
	if b.CurrentOfferRider() != "rider_b" {
		t.Errorf("reoffer went to %q, want rider_b", b.CurrentOfferRider())
	}
	want := []string{"rider_a", "rider_b"}
	if len(b.Offer.OfferedTo) != len(want) {
		t.Fatalf("offered_to = %v, want %v", b.Offer.OfferedTo, want)
	}
	for i := range want {
		if b.Offer.OfferedTo[i] != want[i] {
			t.Fatalf("offered_to = %v, want %v", b.Offer.OfferedTo, want)
		}
	}
}

func TestDeclineWithPoolExhausted(t *testing.T) {
	env := setupService(t, RiderInfo{UserID: "rider_a", Vehicle: "motorcycle"})
	id := mustCreate(t, env)

	if _, err := env.svc.Respond(context.Background(), id, RespondCommand{RiderUserID: "rider_a", Decision: "decline"}); err != nil {
		t.Fatalf("decline: %v", err)
	}

	assertStatus(t, env, id, StatusSearching)
	if got := env.notifier.eventsFor("cust_1"); len(got) != 1 || got[0] != EventSearchIdle {
		t.Errorf("customer events = %v, want [search_idle]", got)
	}
}

func TestAcceptAssignsRiderAndNotifiesBothSides(t *testing.T) {
	env := setupService(t, RiderInfo{UserID: "rider_a", Name: "Bob", Vehicle: "motorcycle", Phone: "0987", Rating: 4.8})
	id := mustCreate(t, env)

	b, err := env.svc.Respond(context.Background(), id, RespondCommand{RiderUserID: "rider_a", Decision: "accept"})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if b.Status != StatusAccepted {
		t.Fatalf("status = %s", b.Status)
	}
	if b.Rider == nil || b.Rider.Name != "Bob" {
		t.Errorf("rider snapshot = %+v", b.Rider)
	}
	if got := env.notifier.eventsFor("cust_1"); len(got) != 1 || got[0] != EventAccepted {
		t.Errorf("customer events = %v", got)
	}
	if len(env.tracker.events) != 1 || env.tracker.events[0].EventType != TrackRiderAssigned {
		t.Errorf("tracking events = %+v", env.tracker.events)
	}
}

func TestRespondByWrongRider(t *testing.T) {
	env := setupService(t, RiderInfo{UserID: "rider_a", Vehicle: "motorcycle"})
	id := mustCreate(t, env)

	_, err := env.svc.Respond(context.Background(), id, RespondCommand{RiderUserID: "rider_x", Decision: "accept"})
	if err != ErrConflict {
		t.Errorf("accept by stranger: %v, want ErrConflict", err)
	}
	_, err = env.svc.Respond(context.Background(), id, RespondCommand{RiderUserID: "rider_a", Decision: "maybe"})
	if err != ErrBadRequest {
		t.Errorf("bad decision: %v, want ErrBadRequest", err)
	}
}

func TestRespondAfterCancel(t *testing.T) {
	env := setupService(t, RiderInfo{UserID: "rider_a", Vehicle: "motorcycle"})
	id := mustCreate(t, env)

	if _, err := env.svc.Cancel(context.Background(), id, "changed mind"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := env.svc.Respond(context.Background(), id, RespondCommand{RiderUserID: "rider_a", Decision: "accept"})
	if err != ErrInvalidState {
		t.Errorf("accept after cancel: %v, want ErrInvalidState", err)
	}
}

func TestProgressFlowAndTimers(t *testing.T) {
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	now := base
	timeNow = func() time.Time { return now }
	defer func() { timeNow = time.Now }()

	env := setupService(t, RiderInfo{UserID: "rider_a", Vehicle: "motorcycle"})
	id := mustCreate(t, env)
	ctx := context.Background()

	if _, err := env.svc.Respond(ctx, id, RespondCommand{RiderUserID: "rider_a", Decision: "accept"}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	stages := []struct {
		stage string
		at    time.Duration
	}{
		{"en_route", 30 * time.Second},
		{"arrived_pickup", 90 * time.Second},
		{"picked_up", 120 * time.Second},
		{"en_route_dropoff", 150 * time.Second},
		{"delivered", 300 * time.Second},
	}
	for _, s := range stages {
		now = base.Add(s.at)
		if _, err := env.svc.Progress(ctx, id, s.stage); err != nil {
			t.Fatalf("progress %s: %v", s.stage, err)
		}
	}
	assertStatus(t, env, id, StatusDelivered)

	wt, err := env.svc.Timers(ctx, id)
	if err != nil {
		t.Fatalf("timers: %v", err)
	}
	if wt.PickupSec != 120 {
		t.Errorf("pickup wait = %d, want 120", wt.PickupSec)
	}
	if wt.DropoffSec != 180 {
		t.Errorf("dropoff wait = %d, want 180", wt.DropoffSec)
	}

	// skipping a stage is rejected
	env2 := setupService(t, RiderInfo{UserID: "rider_a", Vehicle: "motorcycle"})
	id2 := mustCreate(t, env2)
	env2.svc.Respond(ctx, id2, RespondCommand{RiderUserID: "rider_a", Decision: "accept"})
	if _, err := env2.svc.Progress(ctx, id2, "picked_up"); err != ErrInvalidState {
		t.Errorf("skipped stage: %v, want ErrInvalidState", err)
	}
}

func TestCompleteRequiresDelivered(t *testing.T) {
	env := setupService(t, RiderInfo{UserID: "rider_a", Vehicle: "motorcycle"})
	id := mustCreate(t, env)
	ctx := context.Background()

	if _, err := env.svc.Complete(ctx, id, nil, nil); err != ErrInvalidState {
		t.Fatalf("complete before delivery: %v, want ErrInvalidState", err)
	}

	env.svc.Respond(ctx, id, RespondCommand{RiderUserID: "rider_a", Decision: "accept"})
	for _, stage := range []string{"en_route", "arrived_pickup", "picked_up", "en_route_dropoff", "delivered"} {
		if _, err := env.svc.Progress(ctx, id, stage); err != nil {
			t.Fatalf("progress %s: %v", stage, err)
		}
	}

	pricing := map[string]interface{}{"total": 120, "currency": "TWD"}
	b, err := env.svc.Complete(ctx, id, pricing, map[string]interface{}{"method": "cash"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if b.Status != StatusDelivered {
		t.Errorf("status = %s after complete", b.Status)
	}
	if b.Metadata["pricing"] == nil || b.Metadata["payment"] == nil {
		t.Errorf("pricing/payment not recorded: %v", b.Metadata)
	}
}

func TestSweepExpiredOffers(t *testing.T) {
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	now := base
	timeNow = func() time.Time { return now }
	defer func() { timeNow = time.Now }()

	env := setupService(t,
		RiderInfo{UserID: "rider_a", Vehicle: "motorcycle"},
		RiderInfo{UserID: "rider_b", Vehicle: "motorcycle"},
	)
	id := mustCreate(t, env)
	assertStatus(t, env, id, StatusOffered)

	// before the TTL the sweep is a no-op
	env.svc.sweepExpiredOffers(context.Background())
	b, _ := env.svc.Get(context.Background(), id)
	if b.CurrentOfferRider() != "rider_a" {
		t.Fatalf("sweep touched a live offer")
	}

	now = base.Add(46 * time.Second)
	env.svc.sweepExpiredOffers(context.Background())

	b, _ = env.svc.Get(context.Background(), id)
	if b.Status != StatusOffered || b.CurrentOfferRider() != "rider_b" {
		t.Fatalf("after sweep: status=%s rider=%q, want offered/rider_b", b.Status, b.CurrentOfferRider())
	}
	if got := env.notifier.eventsFor("rider_a"); len(got) != 2 || got[1] != EventOfferExpired {
		t.Errorf("rider_a events = %v", got)
	}
}

func TestEditWhileSearching(t *testing.T) {
	env := setupService(t)
	id := mustCreate(t, env)

	newPickup := Stop{Sequence: 0, Geo: pt(25.01, 121.50), Address: "updated"}
	b, err := env.svc.Edit(context.Background(), id, EditCommand{Pickup: &newPickup})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if b.Pickup.Address != "updated" {
		t.Errorf("pickup = %+v", b.Pickup)
	}
}

func TestGetUnknownBooking(t *testing.T) {
	env := setupService(t)
	if _, err := env.svc.Get(context.Background(), "bkg_missing"); err != ErrNotFound {
		t.Errorf("get missing: %v, want ErrNotFound", err)
	}
}

type panickyNotifier struct {
	pushed chan struct{}
}

func (n *panickyNotifier) Push(_ context.Context, _, _ string, _ interface{}) error {
	close(n.pushed)
	panic("sink gone")
}

func TestSearchRoundPanicIsContained(t *testing.T) {
	env := setupService(t, RiderInfo{UserID: "rider_a", Vehicle: "motorcycle"})
	notifier := &panickyNotifier{pushed: make(chan struct{})}
	env.svc.notifier = notifier
	// default spawn: the round runs on its own goroutine behind the recover
	// boundary, where an uncaught panic would kill the test process
	env.svc.spawn = env.svc.goSupervised

	id := mustCreate(t, env)

	select {
	case <-notifier.pushed:
	case <-time.After(2 * time.Second):
		t.Fatal("search round never reached the notifier")
	}
	time.Sleep(20 * time.Millisecond)

	// the offer was persisted before the push panicked
	assertStatus(t, env, id, StatusOffered)
}

func TestListActive(t *testing.T) {
	env := setupService(t, RiderInfo{UserID: "rider_a", Vehicle: "motorcycle"})
	offered := mustCreate(t, env)
	cancelled := mustCreate(t, env)
	env.svc.Cancel(context.Background(), cancelled, "dup")

	active, err := env.svc.ListActive(context.Background())
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != offered {
		t.Errorf("active = %d bookings", len(active))
	}
}

func TestListByCustomer(t *testing.T) {
	env := setupService(t)
	mustCreate(t, env)
	mustCreate(t, env)

	got, err := env.svc.ListByCustomer(context.Background(), "cust_1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("listed %d bookings, want 2", len(got))
	}
}
