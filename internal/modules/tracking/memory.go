// README: In-memory tracking log for tests and local development.
package tracking

import (
	"context"
	"sync"
)

type MemoryLog struct {
	mu     sync.Mutex
	events []*Event
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (m *MemoryLog) Append(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *MemoryLog) ListByBookingID(_ context.Context, bookingID string) ([]*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Event
	for _, e := range m.events {
		if e.BookingID == bookingID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryLog) ListByDeliveryID(_ context.Context, deliveryID string) ([]*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Event
	for _, e := range m.events {
		if e.DeliveryID == deliveryID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}
