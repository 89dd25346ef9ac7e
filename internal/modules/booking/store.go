// README: Booking store backed by PostgreSQL with optimistic concurrency.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const bookingColumns = `
	id, delivery_id, status, vehicle_type,
	pickup, dropoffs, rider, offer,
	pickup_wait_sec, dropoff_wait_sec, pickup_wait_start, dropoff_wait_start,
	can_user_edit, customer_user_id, customer_name, customer_phone,
	metadata, cancellation_reason, version, created_at, updated_at`

// Save inserts a fresh booking or applies a version-conditional update. A
// stale version returns ErrConflict.
func (s *Store) Save(ctx context.Context, b *Booking) error {
	pickup, dropoffs, rider, offer, meta, err := encodeBooking(b)
	if err != nil {
		return err
	}

	if b.Version == 0 {
		_, err := s.db.Exec(ctx, `
			INSERT INTO bookings (
				id, delivery_id, status, vehicle_type,
				pickup, dropoffs, rider, offer,
				pickup_wait_sec, dropoff_wait_sec, pickup_wait_start, dropoff_wait_start,
				can_user_edit, customer_user_id, customer_name, customer_phone,
				metadata, cancellation_reason, version, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4,
				$5, $6, $7, $8,
				$9, $10, $11, $12,
				$13, $14, $15, $16,
				$17, $18, 1, $19, $20
			)`,
			b.ID, b.DeliveryID, string(b.Status), b.VehicleType,
			pickup, dropoffs, rider, offer,
			b.WaitTimes.PickupSec, b.WaitTimes.DropoffSec, b.PickupWaitStart, b.DropoffWaitStart,
			b.CanUserEdit, b.CustomerUserID, b.CustomerName, b.CustomerPhone,
			meta, nullIfEmpty(b.CancellationReason), b.CreatedAt, b.UpdatedAt,
		)
		if err != nil {
			return err
		}
		b.Version = 1
		return nil
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET status = $1,
		    pickup = $2,
		    dropoffs = $3,
		    rider = $4,
		    offer = $5,
		    pickup_wait_sec = $6,
		    dropoff_wait_sec = $7,
		    pickup_wait_start = $8,
		    dropoff_wait_start = $9,
		    can_user_edit = $10,
		    metadata = $11,
		    cancellation_reason = $12,
		    version = version + 1,
		    updated_at = $13
		WHERE id = $14 AND version = $15`,
		string(b.Status),
		pickup, dropoffs, rider, offer,
		b.WaitTimes.PickupSec, b.WaitTimes.DropoffSec, b.PickupWaitStart, b.DropoffWaitStart,
		b.CanUserEdit, meta, nullIfEmpty(b.CancellationReason),
		b.UpdatedAt,
		b.ID, b.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	b.Version++
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*Booking, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	return scanBooking(row)
}

func (s *Store) FindByDeliveryID(ctx context.Context, deliveryID string) (*Booking, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE delivery_id = $1
		 ORDER BY created_at DESC LIMIT 1`, deliveryID)
	return scanBooking(row)
}

func (s *Store) FindByCustomerUserID(ctx context.Context, customerUserID string) ([]*Booking, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE customer_user_id = $1
		 ORDER BY created_at DESC`, customerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (s *Store) FindActiveBookings(ctx context.Context) ([]*Booking, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE status NOT IN ('pending', 'delivered', 'cancelled')
		 ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (s *Store) FindByStatus(ctx context.Context, status Status) ([]*Booking, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE status = $1
		 ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func encodeBooking(b *Booking) (pickup, dropoffs, rider, offer, meta []byte, err error) {
	if pickup, err = json.Marshal(b.Pickup); err != nil {
		return
	}
	if dropoffs, err = json.Marshal(b.Dropoffs); err != nil {
		return
	}
	if b.Rider != nil {
		if rider, err = json.Marshal(b.Rider); err != nil {
			return
		}
	}
	if offer, err = json.Marshal(b.Offer); err != nil {
		return
	}
	meta, err = json.Marshal(b.Metadata)
	return
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var status string
	var pickup, dropoffs, rider, offer, meta []byte
	var cancelReason *string
	var pickupWaitStart, dropoffWaitStart *time.Time

	err := row.Scan(
		&b.ID, &b.DeliveryID, &status, &b.VehicleType,
		&pickup, &dropoffs, &rider, &offer,
		&b.WaitTimes.PickupSec, &b.WaitTimes.DropoffSec, &pickupWaitStart, &dropoffWaitStart,
		&b.CanUserEdit, &b.CustomerUserID, &b.CustomerName, &b.CustomerPhone,
		&meta, &cancelReason, &b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	b.Status = Status(status)
	if err := json.Unmarshal(pickup, &b.Pickup); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(dropoffs, &b.Dropoffs); err != nil {
		return nil, err
	}
	if len(rider) > 0 {
		b.Rider = &RiderInfo{}
		if err := json.Unmarshal(rider, b.Rider); err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal(offer, &b.Offer); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &b.Metadata); err != nil {
			return nil, err
		}
	}
	if b.Metadata == nil {
		b.Metadata = map[string]interface{}{}
	}
	if cancelReason != nil {
		b.CancellationReason = *cancelReason
	}
	b.PickupWaitStart = pickupWaitStart
	b.DropoffWaitStart = dropoffWaitStart
	return &b, nil
}

func scanBookings(rows pgx.Rows) ([]*Booking, error) {
	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
