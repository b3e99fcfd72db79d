package app

import (
	"context"

	"hotel_inventory/internal/domain"
)

// ConflictingRooms unions the room sets of active reservations overlapping iv
// and intersects the union with candidates. The result is in candidate order.
func ConflictingRooms(existing []domain.Reservation, candidates []int64, iv domain.Interval) []int64 {
	occupied := make(map[int64]struct{})
	for _, r := range existing {
		if r.State != domain.StateActive || !r.Interval.Overlaps(iv) {
			continue
		}
		for _, id := range r.RoomIDs {
			occupied[id] = struct{}{}
		}
	}
	var out []int64
	for _, id := range candidates {
		if _, ok := occupied[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// DetectConflicts runs ConflictingRooms over the hotel's ledger. Inside a unit
// of work that holds the hotel lock the answer is stable until commit.
func DetectConflicts(ctx context.Context, ledger domain.ReservationRepository, hotelID int64, candidates []int64, iv domain.Interval) ([]int64, error) {
	active, err := ledger.ActiveOverlapping(ctx, hotelID, iv)
	if err != nil {
		return nil, err
	}
	return ConflictingRooms(active, candidates, iv), nil
}
