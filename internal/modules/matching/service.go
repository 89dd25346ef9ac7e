// README: Matching service: rider presence and candidate search for bookings.
package matching

import (
	"context"
	"time"

	"courier/internal/logger"
	"courier/internal/modules/booking"
	"courier/internal/types"
)

// Pool is the presence store the service drives. *Store is the Redis
// implementation; tests substitute an in-memory one.
type Pool interface {
	AddRider(ctx context.Context, r Rider) error
	RemoveRider(ctx context.Context, userID, vehicleType string) error
	UpdatePosition(ctx context.Context, userID, vehicleType string, p types.Point) error
	NearbyRiders(ctx context.Context, vehicleType string, p types.Point, radiusKm float64) ([]Candidate, error)
	GetRider(ctx context.Context, userID string) (*Rider, error)
}

type Service struct {
	pool Pool
	log  logger.ILogger
}

func NewService(pool Pool, log logger.ILogger) *Service {
	return &Service{pool: pool, log: log}
}

type GoOnlineCommand struct {
	UserID      string
	Name        string
	Phone       string
	VehicleType string
	Rating      float64
	Position    types.Point
}

// GoOnline puts the rider into the matching pool.
func (s *Service) GoOnline(ctx context.Context, cmd GoOnlineCommand) error {
	if cmd.UserID == "" || cmd.VehicleType == "" {
		return ErrBadRequest
	}
	r := Rider{
		UserID:      cmd.UserID,
		Name:        cmd.Name,
		Phone:       cmd.Phone,
		VehicleType: cmd.VehicleType,
		Rating:      cmd.Rating,
		Online:      true,
		Position:    cmd.Position,
		UpdatedAt:   time.Now(),
	}
	if err := s.pool.AddRider(ctx, r); err != nil {
		return err
	}
	s.log.Info("rider online",
		logger.String("rider_id", cmd.UserID), logger.String("vehicle_type", cmd.VehicleType))
	return nil
}

// GoOffline removes the rider from the pool.
func (s *Service) GoOffline(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrBadRequest
	}
	r, err := s.pool.GetRider(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.pool.RemoveRider(ctx, userID, r.VehicleType); err != nil {
		return err
	}
	s.log.Info("rider offline", logger.String("rider_id", userID))
	return nil
}

// UpdateLocation records a new position for an online rider.
func (s *Service) UpdateLocation(ctx context.Context, userID string, p types.Point) error {
	if userID == "" {
		return ErrBadRequest
	}
	r, err := s.pool.GetRider(ctx, userID)
	if err != nil {
		return err
	}
	return s.pool.UpdatePosition(ctx, userID, r.VehicleType, p)
}

// GetRider exposes one pool profile.
func (s *Service) GetRider(ctx context.Context, userID string) (*Rider, error) {
	return s.pool.GetRider(ctx, userID)
}

// FindCandidates satisfies the booking engine port: online riders of the
// requested vehicle type within the radius, nearest first.
func (s *Service) FindCandidates(ctx context.Context, c booking.SearchCriteria) ([]booking.RiderInfo, error) {
	pickup := types.Point{Lat: c.PickupLat, Lng: c.PickupLng}
	nearby, err := s.pool.NearbyRiders(ctx, c.VehicleType, pickup, c.RadiusKm)
	if err != nil {
		return nil, err
	}
	out := make([]booking.RiderInfo, 0, len(nearby))
	for _, cand := range nearby {
		out = append(out, riderInfo(cand.Rider, cand.EtaMin()))
	}
	return out, nil
}

// Lookup satisfies the booking directory port.
func (s *Service) Lookup(ctx context.Context, riderUserID string) (*booking.RiderInfo, error) {
	r, err := s.pool.GetRider(ctx, riderUserID)
	if err == ErrNotFound {
		return nil, booking.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	info := riderInfo(*r, 0)
	return &info, nil
}

func riderInfo(r Rider, etaMin int) booking.RiderInfo {
	return booking.RiderInfo{
		UserID:  r.UserID,
		Name:    r.Name,
		Vehicle: r.VehicleType,
		Phone:   r.Phone,
		Rating:  r.Rating,
		EtaMin:  etaMin,
	}
}
