// README: Booking orchestrator: lifecycle operations, async search/reoffer, offer sweep.
package booking

import (
	"context"
	"fmt"
	"time"

	"courier/internal/config"
	"courier/internal/logger"
	"courier/internal/metrics"
	"courier/internal/types"
)

// Notification event names pushed through the realtime sink.
const (
	EventOffered      = "booking_offered"
	EventAccepted     = "booking_accepted"
	EventProgress     = "booking_progress"
	EventCancelled    = "booking_cancelled"
	EventCompleted    = "booking_completed"
	EventEdited       = "booking_edited"
	EventOfferExpired = "offer_expired"
	EventSearchIdle   = "search_idle"
)

// Tracking event types for milestones that are not progress stages. Progress
// stages are appended under their stage name.
const (
	TrackRiderAssigned = "rider_assigned"
	TrackCancelled     = "cancelled"
)

type CreateCommand struct {
	DeliveryID     string
	VehicleType    string
	Pickup         Stop
	Dropoffs       []Stop
	CustomerUserID string
	CustomerName   string
	CustomerPhone  string
	Metadata       map[string]interface{}
}

type CreateResult struct {
	BookingID          string
	Status             string
	EstimatedSearchSec int
}

type EditCommand struct {
	Pickup   *Stop
	Dropoffs []Stop
	Metadata map[string]interface{}
}

type RespondCommand struct {
	RiderUserID string
	Decision    string // "accept" or "decline"
}

type Service struct {
	repo      Repository
	engine    Engine
	notifier  Notifier
	tracker   Tracker
	directory Directory
	log       logger.ILogger
	cfg       config.MatchingConfig

	// spawn runs the fire-and-forget search/reoffer rounds. Tests replace it
	// with a synchronous runner.
	spawn func(fn func())
}

func NewService(
	repo Repository,
	engine Engine,
	notifier Notifier,
	tracker Tracker,
	directory Directory,
	log logger.ILogger,
	cfg config.MatchingConfig,
) *Service {
	s := &Service{
		repo:      repo,
		engine:    engine,
		notifier:  notifier,
		tracker:   tracker,
		directory: directory,
		log:       log,
		cfg:       cfg,
	}
	s.spawn = s.goSupervised
	return s
}

// goSupervised runs fn on its own goroutine with a recover boundary. A panic
// in a search or reoffer round must not take the process down.
func (s *Service) goSupervised(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("background round panic", logger.String("panic", fmt.Sprint(r)))
			}
		}()
		fn()
	}()
}

// RunSearchesInline makes search and reoffer rounds run synchronously on the
// caller's goroutine. For tests that need deterministic ordering.
func (s *Service) RunSearchesInline() {
	s.spawn = func(fn func()) { fn() }
}

// Create validates and persists a PENDING booking, then kicks off the search
// round in the background. The caller gets an immediate acknowledgment; search
// failures are logged, never surfaced here.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (CreateResult, error) {
	b, err := NewBooking(cmd)
	if err != nil {
		return CreateResult{}, err
	}
	if err := s.repo.Save(ctx, b); err != nil {
		return CreateResult{}, err
	}
	metrics.BookingsCreated.Inc()

	id := b.ID
	s.spawn(func() {
		bctx, cancel := s.backgroundContext()
		defer cancel()
		if err := s.StartSearch(bctx, id); err != nil {
			s.log.Error("search round failed", logger.String("booking_id", id), logger.Error(err))
		}
	})

	return CreateResult{
		BookingID:          b.ID,
		Status:             string(StatusSearching),
		EstimatedSearchSec: s.cfg.OfferTTLSec,
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Booking, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) GetByDeliveryID(ctx context.Context, deliveryID string) (*Booking, error) {
	return s.repo.FindByDeliveryID(ctx, deliveryID)
}

func (s *Service) ListByCustomer(ctx context.Context, customerUserID string) ([]*Booking, error) {
	return s.repo.FindByCustomerUserID(ctx, customerUserID)
}

func (s *Service) ListActive(ctx context.Context) ([]*Booking, error) {
	return s.repo.FindActiveBookings(ctx)
}

// Edit applies a partial update while the booking is still editable.
func (s *Service) Edit(ctx context.Context, id string, cmd EditCommand) (*Booking, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.EditDetails(cmd); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, b); err != nil {
		return nil, err
	}
	s.push(ctx, b.CustomerUserID, EventEdited, b)
	return b, nil
}

// Cancel moves the booking to CANCELLED and records the reason.
func (s *Service) Cancel(ctx context.Context, id, reason string) (*Booking, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.Cancel(reason); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, b); err != nil {
		return nil, err
	}
	metrics.BookingsCancelled.Inc()
	s.track(ctx, b, TrackCancelled, "")
	s.push(ctx, b.CustomerUserID, EventCancelled, b)
	if b.Rider != nil {
		s.push(ctx, b.Rider.UserID, EventCancelled, b)
	} else if rider := b.CurrentOfferRider(); rider != "" {
		s.push(ctx, rider, EventCancelled, b)
	}
	s.log.Info("booking cancelled",
		logger.String("booking_id", b.ID), logger.String("reason", reason))
	return b, nil
}

// Respond handles a rider's accept/decline of the standing offer. A decline
// triggers the reoffer round in the background.
func (s *Service) Respond(ctx context.Context, id string, cmd RespondCommand) (*Booking, error) {
	if cmd.RiderUserID == "" {
		return nil, ErrBadRequest
	}
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch cmd.Decision {
	case "accept":
		rider := s.riderSnapshot(ctx, cmd.RiderUserID, b.VehicleType)
		if err := b.AcceptByRider(rider); err != nil {
			return nil, err
		}
		if err := s.repo.Save(ctx, b); err != nil {
			return nil, err
		}
		metrics.OffersAccepted.Inc()
		s.track(ctx, b, TrackRiderAssigned, rider.UserID)
		s.push(ctx, b.CustomerUserID, EventAccepted, b)
		s.push(ctx, rider.UserID, EventAccepted, b)

	case "decline":
		if err := b.DeclineByRider(cmd.RiderUserID); err != nil {
			return nil, err
		}
		if err := s.repo.Save(ctx, b); err != nil {
			return nil, err
		}
		metrics.OffersDeclined.Inc()
		s.spawn(func() {
			bctx, cancel := s.backgroundContext()
			defer cancel()
			if err := s.Reoffer(bctx, id); err != nil {
				s.log.Error("reoffer round failed", logger.String("booking_id", id), logger.Error(err))
			}
		})

	default:
		return nil, ErrBadRequest
	}

	return b, nil
}

// Progress advances the delivery leg by one stage.
func (s *Service) Progress(ctx context.Context, id, stage string) (*Booking, error) {
	target, err := ParseStage(stage)
	if err != nil {
		return nil, err
	}
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.UpdateProgress(target); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, b); err != nil {
		return nil, err
	}
	if target == StatusDelivered {
		metrics.BookingsDelivered.Inc()
	}
	riderID := ""
	if b.Rider != nil {
		riderID = b.Rider.UserID
	}
	s.track(ctx, b, string(target), riderID)
	s.push(ctx, b.CustomerUserID, EventProgress, b)
	return b, nil
}

// Timers reports the accrued wait times. Only closed windows count: a wait
// window still open at call time shows up after its closing transition.
func (s *Service) Timers(ctx context.Context, id string) (WaitTimes, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return WaitTimes{}, err
	}
	return b.WaitTimes, nil
}

// Complete finalizes a delivered booking. Status stays DELIVERED; pricing and
// payment payloads are recorded as opaque metadata for downstream systems.
func (s *Service) Complete(ctx context.Context, id string, pricing, payment interface{}) (*Booking, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusDelivered {
		return nil, ErrInvalidState
	}
	if pricing != nil {
		b.Metadata["pricing"] = pricing
	}
	if payment != nil {
		b.Metadata["payment"] = payment
	}
	if err := s.repo.Save(ctx, b); err != nil {
		return nil, err
	}
	s.push(ctx, b.CustomerUserID, EventCompleted, b)
	if b.Rider != nil {
		s.push(ctx, b.Rider.UserID, EventCompleted, b)
	}
	s.log.Info("booking completed",
		logger.String("booking_id", b.ID),
		logger.Int("pickup_wait_sec", b.WaitTimes.PickupSec),
		logger.Int("dropoff_wait_sec", b.WaitTimes.DropoffSec))
	return b, nil
}

// StartSearch runs the initial search round: PENDING → SEARCHING, query the
// engine, offer to the top candidate. An empty candidate list leaves the
// booking SEARCHING.
func (s *Service) StartSearch(ctx context.Context, id string) error {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := b.StartSearching(); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, b); err != nil {
		return err
	}

	candidates, err := s.engine.FindCandidates(ctx, s.criteria(b))
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		s.log.Info("no riders available", logger.String("booking_id", b.ID))
		s.push(ctx, b.CustomerUserID, EventSearchIdle, b)
		metrics.SearchExhausted.Inc()
		return nil
	}
	return s.offer(ctx, b, candidates[0])
}

// Reoffer re-queries the engine and offers to the best candidate not yet
// offered to. With every candidate exhausted the booking stays SEARCHING and
// the customer gets a search_idle event.
func (s *Service) Reoffer(ctx context.Context, id string) error {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if b.Status != StatusSearching {
		// A racing accept or cancel settled the booking first.
		return nil
	}

	candidates, err := s.engine.FindCandidates(ctx, s.criteria(b))
	if err != nil {
		return err
	}
	for _, c := range candidates {
		if !b.alreadyOffered(c.UserID) {
			return s.offer(ctx, b, c)
		}
	}

	s.log.Info("candidate pool exhausted", logger.String("booking_id", b.ID))
	s.push(ctx, b.CustomerUserID, EventSearchIdle, b)
	metrics.SearchExhausted.Inc()
	return nil
}

// RunOfferSweeper periodically expires timed-out offers and reoffers. The
// offer TTL on its own is advisory; this loop is what enforces it.
func (s *Service) RunOfferSweeper(ctx context.Context) {
	tick := time.Duration(s.cfg.SweepSec) * time.Second
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepExpiredOffers(ctx)
		}
	}
}

func (s *Service) sweepExpiredOffers(ctx context.Context) {
	offered, err := s.repo.FindByStatus(ctx, StatusOffered)
	if err != nil {
		s.log.Error("offer sweep query failed", logger.Error(err))
		return
	}
	now := timeNow()
	for _, b := range offered {
		if b.Offer.ExpiresAt == nil || now.Before(*b.Offer.ExpiresAt) {
			continue
		}
		rider := b.CurrentOfferRider()
		if err := b.ExpireOffer(); err != nil {
			continue
		}
		if err := s.repo.Save(ctx, b); err != nil {
			s.log.Error("offer expiry save failed", logger.String("booking_id", b.ID), logger.Error(err))
			continue
		}
		metrics.OffersExpired.Inc()
		s.push(ctx, rider, EventOfferExpired, b)
		s.log.Info("offer expired",
			logger.String("booking_id", b.ID), logger.String("rider_id", rider))
		if err := s.Reoffer(ctx, b.ID); err != nil {
			s.log.Error("reoffer after expiry failed", logger.String("booking_id", b.ID), logger.Error(err))
		}
	}
}

func (s *Service) offer(ctx context.Context, b *Booking, candidate RiderInfo) error {
	ttl := time.Duration(s.cfg.OfferTTLSec) * time.Second
	if err := b.OfferToRider(candidate.UserID, ttl); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, b); err != nil {
		return err
	}
	metrics.OffersIssued.Inc()
	s.push(ctx, candidate.UserID, EventOffered, b)
	s.log.Info("booking offered",
		logger.String("booking_id", b.ID),
		logger.String("rider_id", candidate.UserID),
		logger.Int("ttl_sec", s.cfg.OfferTTLSec))
	return nil
}

func (s *Service) criteria(b *Booking) SearchCriteria {
	return SearchCriteria{
		PickupLat:   b.Pickup.Geo.Lat,
		PickupLng:   b.Pickup.Geo.Lng,
		VehicleType: b.VehicleType,
		RadiusKm:    s.cfg.RadiusKm,
	}
}

// riderSnapshot resolves the accepting rider's profile. Without a directory
// hit the snapshot degrades to id-only with the booking's vehicle type.
func (s *Service) riderSnapshot(ctx context.Context, riderUserID, vehicleType string) RiderInfo {
	if s.directory != nil {
		if info, err := s.directory.Lookup(ctx, riderUserID); err == nil && info != nil {
			return *info
		}
	}
	return RiderInfo{UserID: riderUserID, Vehicle: vehicleType}
}

func (s *Service) push(ctx context.Context, userID, event string, b *Booking) {
	if s.notifier == nil || userID == "" {
		return
	}
	if err := s.notifier.Push(ctx, userID, event, b); err != nil {
		s.log.Warn("notify failed",
			logger.String("user_id", userID), logger.String("event", event), logger.Error(err))
	}
}

func (s *Service) track(ctx context.Context, b *Booking, eventType, riderUserID string) {
	if s.tracker == nil {
		return
	}
	var loc *types.Point
	if err := s.tracker.Append(ctx, b.ID, b.DeliveryID, eventType, riderUserID, loc); err != nil {
		s.log.Warn("tracking append failed",
			logger.String("booking_id", b.ID), logger.String("event_type", eventType), logger.Error(err))
	}
}

func (s *Service) backgroundContext() (context.Context, context.CancelFunc) {
	timeout := time.Duration(s.cfg.SearchTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
