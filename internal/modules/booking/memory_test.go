// README: In-memory store aliasing and conflict tests.
package booking

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreCopiesDoNotAlias(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	b := newTestBooking(t)
	b.StartSearching()
	b.OfferToRider("rider_a", 45*time.Second)
	b.Metadata["note"] = "fragile"
	if err := store.Save(ctx, b); err != nil {
		t.Fatalf("save: %v", err)
	}

	// mutating the caller's aggregate must not bleed into the stored copy
	b.Offer.OfferedTo[0] = "tampered"
	b.Metadata["note"] = "tampered"
	b.Dropoffs[0].Address = "tampered"

	got, err := store.FindByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Offer.OfferedTo[0] != "rider_a" {
		t.Errorf("offered_to aliased: %v", got.Offer.OfferedTo)
	}
	if got.Metadata["note"] != "fragile" {
		t.Errorf("metadata aliased: %v", got.Metadata)
	}
	if got.Dropoffs[0].Address == "tampered" {
		t.Errorf("dropoffs aliased: %+v", got.Dropoffs)
	}

	// and mutating a loaded copy must not bleed into the store either
	got.Offer.OfferedTo = append(got.Offer.OfferedTo, "rider_x")
	got.Metadata["extra"] = true

	again, _ := store.FindByID(ctx, b.ID)
	if len(again.Offer.OfferedTo) != 1 {
		t.Errorf("stored offered_to grew: %v", again.Offer.OfferedTo)
	}
	if _, ok := again.Metadata["extra"]; ok {
		t.Errorf("stored metadata grew: %v", again.Metadata)
	}
}

func TestMemoryStoreStaleSaveRejected(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	b := newTestBooking(t)
	if err := store.Save(ctx, b); err != nil {
		t.Fatalf("save: %v", err)
	}

	stale, _ := store.FindByID(ctx, b.ID)
	fresh, _ := store.FindByID(ctx, b.ID)
	fresh.StartSearching()
	if err := store.Save(ctx, fresh); err != nil {
		t.Fatalf("fresh save: %v", err)
	}

	stale.StartSearching()
	if err := store.Save(ctx, stale); err != ErrConflict {
		t.Errorf("stale save: %v, want ErrConflict", err)
	}
}
