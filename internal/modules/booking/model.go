// README: Booking aggregate, status definitions, and guarded transitions.
package booking

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"courier/internal/types"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusSearching      Status = "searching"
	StatusOffered        Status = "offered"
	StatusAccepted       Status = "accepted"
	StatusEnRoute        Status = "en_route"
	StatusArrivedPickup  Status = "arrived_pickup"
	StatusPickedUp       Status = "picked_up"
	StatusEnRouteDropoff Status = "en_route_dropoff"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

var (
	ErrNotFound     = errors.New("booking not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("booking state conflict")
	ErrBadRequest   = errors.New("bad request")
	ErrEditLocked   = errors.New("booking can no longer be edited")
	ErrInvalidStage = errors.New("unknown progress stage")
)

// timeNow is swapped out in tests that assert wait-time accounting.
var timeNow = time.Now

// progressTransitions is the strict forward order of the delivery leg.
var progressTransitions = map[Status]Status{
	StatusAccepted:       StatusEnRoute,
	StatusEnRoute:        StatusArrivedPickup,
	StatusArrivedPickup:  StatusPickedUp,
	StatusPickedUp:       StatusEnRouteDropoff,
	StatusEnRouteDropoff: StatusDelivered,
}

// progressStages maps the wire stage names to statuses.
var progressStages = map[string]Status{
	"en_route":         StatusEnRoute,
	"arrived_pickup":   StatusArrivedPickup,
	"picked_up":        StatusPickedUp,
	"en_route_dropoff": StatusEnRouteDropoff,
	"delivered":        StatusDelivered,
}

// ParseStage resolves a wire stage name. Unknown names get ErrInvalidStage.
func ParseStage(stage string) (Status, error) {
	s, ok := progressStages[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return s, nil
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// IsActive reports whether the booking is between search kickoff and the final
// dropoff leg, inclusive.
func (s Status) IsActive() bool {
	switch s {
	case StatusSearching, StatusOffered, StatusAccepted, StatusEnRoute,
		StatusArrivedPickup, StatusPickedUp, StatusEnRouteDropoff:
		return true
	}
	return false
}

// Stop is one sequenced point of the delivery route.
type Stop struct {
	Sequence int         `json:"sequence"`
	Geo      types.Point `json:"geo"`
	Address  string      `json:"address,omitempty"`
}

// RiderInfo is the snapshot of the assigned rider, copied onto the booking at
// accept time and decoupled from the live rider record.
type RiderInfo struct {
	UserID  string  `json:"user_id"`
	Name    string  `json:"name"`
	Vehicle string  `json:"vehicle"`
	Phone   string  `json:"phone"`
	Rating  float64 `json:"rating,omitempty"`
	EtaMin  int     `json:"eta_min,omitempty"`
}

// Offer tracks the current offer round. OfferedTo accumulates every rider the
// booking has been offered to; they are never offered again.
type Offer struct {
	ExpiresAt *time.Time `json:"expires_at"`
	OfferedTo []string   `json:"offered_to"`
}

type WaitTimes struct {
	PickupSec  int `json:"pickup_sec"`
	DropoffSec int `json:"dropoff_sec"`
}

// Booking is the aggregate tracking one delivery-matching request end-to-end.
// All mutation goes through the named transition methods below; stores and
// codecs read the fields but must not write them.
type Booking struct {
	ID                 string                 `json:"booking_id"`
	DeliveryID         string                 `json:"delivery_id"`
	Status             Status                 `json:"status"`
	VehicleType        string                 `json:"vehicle_type"`
	Pickup             Stop                   `json:"pickup"`
	Dropoffs           []Stop                 `json:"dropoffs"`
	Rider              *RiderInfo             `json:"rider"`
	Offer              Offer                  `json:"offer"`
	WaitTimes          WaitTimes              `json:"wait_times"`
	CanUserEdit        bool                   `json:"can_user_edit"`
	CustomerUserID     string                 `json:"customer_user_id"`
	CustomerName       string                 `json:"customer_name"`
	CustomerPhone      string                 `json:"customer_phone"`
	Metadata           map[string]interface{} `json:"metadata"`
	CancellationReason string                 `json:"cancellation_reason,omitempty"`
	Version            int                    `json:"-"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`

	PickupWaitStart  *time.Time `json:"-"`
	DropoffWaitStart *time.Time `json:"-"`
}

// NewBooking validates the creation input and returns a PENDING booking.
func NewBooking(cmd CreateCommand) (*Booking, error) {
	if cmd.DeliveryID == "" || cmd.VehicleType == "" {
		return nil, ErrBadRequest
	}
	if cmd.CustomerUserID == "" || cmd.CustomerName == "" || cmd.CustomerPhone == "" {
		return nil, ErrBadRequest
	}
	if len(cmd.Dropoffs) == 0 {
		return nil, ErrBadRequest
	}
	if !uniqueSequences(cmd.Pickup, cmd.Dropoffs) {
		return nil, ErrBadRequest
	}

	meta := cmd.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	now := timeNow()
	return &Booking{
		ID:             "bkg_" + uuid.NewString(),
		DeliveryID:     cmd.DeliveryID,
		Status:         StatusPending,
		VehicleType:    cmd.VehicleType,
		Pickup:         cmd.Pickup,
		Dropoffs:       cmd.Dropoffs,
		Offer:          Offer{OfferedTo: []string{}},
		CanUserEdit:    true,
		CustomerUserID: cmd.CustomerUserID,
		CustomerName:   cmd.CustomerName,
		CustomerPhone:  cmd.CustomerPhone,
		Metadata:       meta,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func uniqueSequences(pickup Stop, dropoffs []Stop) bool {
	seen := map[int]bool{pickup.Sequence: true}
	for _, d := range dropoffs {
		if seen[d.Sequence] {
			return false
		}
		seen[d.Sequence] = true
	}
	return true
}

// StartSearching moves PENDING → SEARCHING.
func (b *Booking) StartSearching() error {
	if b.Status != StatusPending {
		return ErrInvalidState
	}
	b.Status = StatusSearching
	b.touch()
	return nil
}

// OfferToRider moves SEARCHING/OFFERED → OFFERED, stamps the offer expiry and
// records the rider. Adding the same rider twice does not duplicate the entry.
func (b *Booking) OfferToRider(riderUserID string, expiresIn time.Duration) error {
	if riderUserID == "" {
		return ErrBadRequest
	}
	if b.Status != StatusSearching && b.Status != StatusOffered {
		return ErrInvalidState
	}
	if !b.alreadyOffered(riderUserID) {
		b.Offer.OfferedTo = append(b.Offer.OfferedTo, riderUserID)
	}
	exp := timeNow().Add(expiresIn)
	b.Offer.ExpiresAt = &exp
	b.Status = StatusOffered
	b.touch()
	return nil
}

// AcceptByRider moves OFFERED → ACCEPTED. Only the rider the offer currently
// stands with may accept. Opens the pickup wait window and locks edits.
func (b *Booking) AcceptByRider(rider RiderInfo) error {
	if b.Status != StatusOffered {
		return ErrInvalidState
	}
	if b.CurrentOfferRider() != rider.UserID {
		return ErrConflict
	}
	now := timeNow()
	b.Status = StatusAccepted
	b.Rider = &rider
	b.Offer.ExpiresAt = nil
	b.PickupWaitStart = &now
	b.CanUserEdit = false
	b.touch()
	return nil
}

// DeclineByRider moves OFFERED → SEARCHING. The rider stays on the offered-to
// list so reoffer rounds skip them.
func (b *Booking) DeclineByRider(riderUserID string) error {
	if b.Status != StatusOffered {
		return ErrInvalidState
	}
	if b.CurrentOfferRider() != riderUserID {
		return ErrConflict
	}
	b.Status = StatusSearching
	b.Offer.ExpiresAt = nil
	b.touch()
	return nil
}

// ExpireOffer treats a timed-out offer the same as a decline.
func (b *Booking) ExpireOffer() error {
	if b.Status != StatusOffered {
		return ErrInvalidState
	}
	if b.Offer.ExpiresAt == nil || timeNow().Before(*b.Offer.ExpiresAt) {
		return ErrInvalidState
	}
	b.Status = StatusSearching
	b.Offer.ExpiresAt = nil
	b.touch()
	return nil
}

// UpdateProgress advances the delivery leg one stage forward. Closes the
// pickup wait window at picked_up and the dropoff window at delivered.
func (b *Booking) UpdateProgress(stage Status) error {
	if !isProgressStage(stage) {
		return ErrInvalidStage
	}
	if progressTransitions[b.Status] != stage {
		return ErrInvalidState
	}

	now := timeNow()
	switch stage {
	case StatusPickedUp:
		if b.PickupWaitStart != nil {
			b.WaitTimes.PickupSec = int(now.Sub(*b.PickupWaitStart).Seconds())
			b.PickupWaitStart = nil
		}
		b.DropoffWaitStart = &now
	case StatusDelivered:
		if b.DropoffWaitStart != nil {
			b.WaitTimes.DropoffSec = int(now.Sub(*b.DropoffWaitStart).Seconds())
			b.DropoffWaitStart = nil
		}
	}

	b.Status = stage
	b.touch()
	return nil
}

// EditDetails replaces the provided fields wholesale while edits are allowed.
// A rejected edit leaves the booking untouched.
func (b *Booking) EditDetails(cmd EditCommand) error {
	if !b.CanUserEdit {
		return ErrEditLocked
	}

	pickup := b.Pickup
	if cmd.Pickup != nil {
		pickup = *cmd.Pickup
	}
	dropoffs := b.Dropoffs
	if cmd.Dropoffs != nil {
		if len(cmd.Dropoffs) == 0 {
			return ErrBadRequest
		}
		dropoffs = cmd.Dropoffs
	}
	if !uniqueSequences(pickup, dropoffs) {
		return ErrBadRequest
	}

	b.Pickup = pickup
	b.Dropoffs = dropoffs
	for k, v := range cmd.Metadata {
		b.Metadata[k] = v
	}
	b.touch()
	return nil
}

// Cancel moves any non-terminal state → CANCELLED and records the reason.
func (b *Booking) Cancel(reason string) error {
	if b.Status.IsTerminal() {
		return ErrInvalidState
	}
	b.Status = StatusCancelled
	b.CancellationReason = reason
	b.Metadata["cancel_reason"] = reason
	b.Offer.ExpiresAt = nil
	b.CanUserEdit = false
	b.touch()
	return nil
}

// CurrentOfferRider returns the rider the offer currently stands with, or ""
// when no offer round has run.
func (b *Booking) CurrentOfferRider() string {
	if len(b.Offer.OfferedTo) == 0 {
		return ""
	}
	return b.Offer.OfferedTo[len(b.Offer.OfferedTo)-1]
}

func isProgressStage(s Status) bool {
	for _, v := range progressStages {
		if v == s {
			return true
		}
	}
	return false
}

func (b *Booking) alreadyOffered(riderUserID string) bool {
	for _, id := range b.Offer.OfferedTo {
		if id == riderUserID {
			return true
		}
	}
	return false
}

func (b *Booking) touch() {
	b.UpdatedAt = timeNow()
}
