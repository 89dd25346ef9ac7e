// README: Tracking event store backed by PostgreSQL.
package tracking

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, e *Event) error {
	var lat, lng *float64
	if e.Location != nil {
		lat, lng = &e.Location.Lat, &e.Location.Lng
	}
	var meta []byte
	if e.Metadata != nil {
		var err error
		if meta, err = json.Marshal(e.Metadata); err != nil {
			return err
		}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO tracking_events (
			id, booking_id, delivery_id, event_type, rider_user_id,
			lat, lng, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.BookingID, e.DeliveryID, e.Type, nullable(e.RiderUserID),
		lat, lng, meta, e.Timestamp,
	)
	return err
}

func (s *Store) ListByBookingID(ctx context.Context, bookingID string) ([]*Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, booking_id, delivery_id, event_type, rider_user_id,
		       lat, lng, metadata, created_at
		FROM tracking_events
		WHERE booking_id = $1
		ORDER BY created_at ASC, id ASC`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) ListByDeliveryID(ctx context.Context, deliveryID string) ([]*Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, booking_id, delivery_id, event_type, rider_user_id,
		       lat, lng, metadata, created_at
		FROM tracking_events
		WHERE delivery_id = $1
		ORDER BY created_at ASC, id ASC`, deliveryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]*Event, error) {
	var out []*Event
	for rows.Next() {
		var e Event
		var riderID *string
		var lat, lng *float64
		var meta []byte
		err := rows.Scan(&e.ID, &e.BookingID, &e.DeliveryID, &e.Type, &riderID,
			&lat, &lng, &meta, &e.Timestamp)
		if err != nil {
			return nil, err
		}
		if riderID != nil {
			e.RiderUserID = *riderID
		}
		if lat != nil && lng != nil {
			e.Location = &types.Point{Lat: *lat, Lng: *lng}
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
