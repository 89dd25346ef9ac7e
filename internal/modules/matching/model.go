// README: Rider presence records for the matching pool.
package matching

import (
	"errors"
	"time"

	"courier/internal/types"
)

var (
	ErrNotFound   = errors.New("rider not found")
	ErrBadRequest = errors.New("bad request")
)

// Rider is one courier in the matching pool. Position is the last reported
// location; it goes stale the moment the rider goes offline.
type Rider struct {
	UserID      string      `json:"user_id"`
	Name        string      `json:"name"`
	Phone       string      `json:"phone"`
	VehicleType string      `json:"vehicle_type"`
	Rating      float64     `json:"rating"`
	Online      bool        `json:"online"`
	Position    types.Point `json:"position"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Candidate is a pool rider annotated with its distance from a pickup point,
// produced by a geo query and already sorted nearest first.
type Candidate struct {
	Rider
	DistanceKm float64 `json:"distance_km"`
}

// avgSpeedKmh converts candidate distance into a rough arrival estimate.
// Matching only needs a rank-stable figure, not a routed ETA.
const avgSpeedKmh = 30.0

func (c Candidate) EtaMin() int {
	eta := int(c.DistanceKm / avgSpeedKmh * 60)
	if eta < 1 {
		eta = 1
	}
	return eta
}
