// README: In-memory booking store for tests and local development.
package booking

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryStore struct {
	mu       sync.Mutex
	bookings map[string]*Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bookings: map[string]*Booking{}}
}

func (m *MemoryStore) Save(_ context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.bookings[b.ID]; ok {
		if existing.Version != b.Version {
			return ErrConflict
		}
	} else if b.Version != 0 {
		return ErrConflict
	}
	b.Version++
	m.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (m *MemoryStore) FindByID(_ context.Context, id string) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBooking(b), nil
}

// cloneBooking detaches the slices, map, and pointers so stored bookings and
// caller-held bookings never alias.
func cloneBooking(b *Booking) *Booking {
	cp := *b
	cp.Dropoffs = append([]Stop(nil), b.Dropoffs...)
	cp.Offer.OfferedTo = append([]string(nil), b.Offer.OfferedTo...)
	if b.Rider != nil {
		r := *b.Rider
		cp.Rider = &r
	}
	if b.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(b.Metadata))
		for k, v := range b.Metadata {
			cp.Metadata[k] = v
		}
	}
	cp.Offer.ExpiresAt = cloneTime(b.Offer.ExpiresAt)
	cp.PickupWaitStart = cloneTime(b.PickupWaitStart)
	cp.DropoffWaitStart = cloneTime(b.DropoffWaitStart)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (m *MemoryStore) FindByDeliveryID(_ context.Context, deliveryID string) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *Booking
	for _, b := range m.bookings {
		if b.DeliveryID != deliveryID {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			latest = b
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return cloneBooking(latest), nil
}

func (m *MemoryStore) FindByCustomerUserID(_ context.Context, customerUserID string) ([]*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Booking
	for _, b := range m.bookings {
		if b.CustomerUserID == customerUserID {
			out = append(out, cloneBooking(b))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) FindActiveBookings(_ context.Context) ([]*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Booking
	for _, b := range m.bookings {
		if b.Status.IsActive() {
			out = append(out, cloneBooking(b))
		}
	}
	sortOldestFirst(out)
	return out, nil
}

func (m *MemoryStore) FindByStatus(_ context.Context, status Status) ([]*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Booking
	for _, b := range m.bookings {
		if b.Status == status {
			out = append(out, cloneBooking(b))
		}
	}
	sortOldestFirst(out)
	return out, nil
}

func sortNewestFirst(bs []*Booking) {
	sort.Slice(bs, func(i, j int) bool { return bs[i].CreatedAt.After(bs[j].CreatedAt) })
}

func sortOldestFirst(bs []*Booking) {
	sort.Slice(bs, func(i, j int) bool { return bs[i].CreatedAt.Before(bs[j].CreatedAt) })
}
