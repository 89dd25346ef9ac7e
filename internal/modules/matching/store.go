// README: Matching store backed by Redis GEO sets and profile hashes.
package matching

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"courier/internal/types"
)

const (
	geoKeyPrefix     = "riders:geo:%s"
	profileKeyPrefix = "rider:%s"
	// Stale presence records expire on their own if a rider drops without
	// going offline cleanly.
	profileTTL = 24 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// AddRider registers or refreshes a rider in the pool: profile hash plus a
// geo entry under the rider's vehicle type.
func (s *Store) AddRider(ctx context.Context, r Rider) error {
	pipe := s.redis.Pipeline()
	pipe.HSet(ctx, profileKey(r.UserID), map[string]interface{}{
		"name":         r.Name,
		"phone":        r.Phone,
		"vehicle_type": r.VehicleType,
		"rating":       r.Rating,
		"online":       "1",
		"lat":          r.Position.Lat,
		"lng":          r.Position.Lng,
		"updated_at":   r.UpdatedAt.UTC().Format(time.RFC3339),
	})
	pipe.Expire(ctx, profileKey(r.UserID), profileTTL)
	pipe.GeoAdd(ctx, geoKey(r.VehicleType), &redis.GeoLocation{
		Name:      r.UserID,
		Longitude: r.Position.Lng,
		Latitude:  r.Position.Lat,
	})
	_, err := pipe.Exec(ctx)
	return err
}

// RemoveRider drops the rider from the geo pool and flags the profile
// offline. The profile hash stays for directory lookups until its TTL.
func (s *Store) RemoveRider(ctx context.Context, userID, vehicleType string) error {
	pipe := s.redis.Pipeline()
	pipe.ZRem(ctx, geoKey(vehicleType), userID)
	pipe.HSet(ctx, profileKey(userID), "online", "0")
	_, err := pipe.Exec(ctx)
	return err
}

// UpdatePosition moves the rider's geo entry and refreshes the profile
// coordinates.
func (s *Store) UpdatePosition(ctx context.Context, userID, vehicleType string, p types.Point) error {
	pipe := s.redis.Pipeline()
	pipe.GeoAdd(ctx, geoKey(vehicleType), &redis.GeoLocation{
		Name:      userID,
		Longitude: p.Lng,
		Latitude:  p.Lat,
	})
	pipe.HSet(ctx, profileKey(userID), map[string]interface{}{
		"lat":        p.Lat,
		"lng":        p.Lng,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	})
	pipe.Expire(ctx, profileKey(userID), profileTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// NearbyRiders returns pool riders within radiusKm of p for one vehicle type,
// nearest first, with their distances.
func (s *Store) NearbyRiders(ctx context.Context, vehicleType string, p types.Point, radiusKm float64) ([]Candidate, error) {
	results, err := s.redis.GeoSearchLocation(ctx, geoKey(vehicleType), &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithDist:  true,
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(results))
	for _, loc := range results {
		r, err := s.GetRider(ctx, loc.Name)
		if err == ErrNotFound {
			// geo entry outlived the profile; drop it lazily
			_ = s.redis.ZRem(ctx, geoKey(vehicleType), loc.Name).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		if !r.Online {
			continue
		}
		r.Position = types.Point{Lat: loc.Latitude, Lng: loc.Longitude}
		candidates = append(candidates, Candidate{Rider: *r, DistanceKm: loc.Dist})
	}
	return candidates, nil
}

// GetRider loads one profile hash.
func (s *Store) GetRider(ctx context.Context, userID string) (*Rider, error) {
	vals, err := s.redis.HGetAll(ctx, profileKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, ErrNotFound
	}

	r := Rider{
		UserID:      userID,
		Name:        vals["name"],
		Phone:       vals["phone"],
		VehicleType: vals["vehicle_type"],
		Online:      vals["online"] == "1",
	}
	r.Rating, _ = strconv.ParseFloat(vals["rating"], 64)
	r.Position.Lat, _ = strconv.ParseFloat(vals["lat"], 64)
	r.Position.Lng, _ = strconv.ParseFloat(vals["lng"], 64)
	if ts, err := time.Parse(time.RFC3339, vals["updated_at"]); err == nil {
		r.UpdatedAt = ts
	}
	return &r, nil
}

func geoKey(vehicleType string) string {
	return fmt.Sprintf(geoKeyPrefix, vehicleType)
}

func profileKey(userID string) string {
	return fmt.Sprintf(profileKeyPrefix, userID)
}
