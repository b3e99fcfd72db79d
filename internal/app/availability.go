package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"hotel_inventory/internal/adapters/observability"
	"hotel_inventory/internal/domain"
)

type AvailabilityService struct {
	store domain.Store
	now   func() time.Time
}

func NewAvailabilityService(s domain.Store, now func() time.Time) *AvailabilityService {
	if now == nil {
		now = time.Now
	}
	return &AvailabilityService{store: s, now: now}
}

// Resolve answers which rooms of type t in the hotel are free for iv. The
// resolver reads a plain snapshot; booking correctness is enforced at commit.
func (s *AvailabilityService) Resolve(ctx context.Context, hotelID int64, t string, iv domain.Interval) (domain.AvailabilityResult, error) {
	ctx, span := tracer.Start(ctx, "availability.Resolve")
	defer span.End()
	span.SetAttributes(attribute.Int64("hotel.id", hotelID), attribute.String("room.type", t))

	catalog := s.store.Catalog()
	if _, err := catalog.GetHotel(ctx, hotelID); err != nil {
		return domain.AvailabilityResult{}, err
	}
	if err := iv.Validate(s.now()); err != nil {
		return domain.AvailabilityResult{}, err
	}
	rt, err := domain.ParseRoomType(t)
	if err != nil {
		return domain.AvailabilityResult{}, err
	}
	rooms, err := bookableRoomsOfType(ctx, catalog, hotelID, rt)
	if err != nil {
		return domain.AvailabilityResult{}, err
	}
	if len(rooms) == 0 {
		observability.ObserveAvailability("no_rooms_of_type")
		return domain.AvailabilityResult{}, &domain.NotFoundError{
			Resource: fmt.Sprintf("available rooms of type %s in hotel %d", rt, hotelID),
		}
	}

	ids := make([]int64, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
	}
	busy, err := DetectConflicts(ctx, s.store.Ledger(), hotelID, ids, iv)
	if err != nil {
		return domain.AvailabilityResult{}, err
	}
	free := subtractRooms(rooms, busy)
	if len(free) == 0 {
		observability.ObserveAvailability("full")
		return domain.AvailabilityResult{Available: false, TotalRooms: len(rooms), Rooms: []domain.Room{}}, nil
	}
	observability.ObserveAvailability("available")
	return domain.AvailabilityResult{
		Available: true,
		Count:     len(free),
		Price:     RepresentativePrice(free),
		Rooms:     free,
	}, nil
}

// RepresentativePrice is the most frequent price. Ties go to the price seen
// first when rooms are walked in ascending id order.
func RepresentativePrice(rooms []domain.Room) float64 {
	if len(rooms) == 0 {
		return 0
	}
	ordered := append([]domain.Room(nil), rooms...)
	sortRoomsByID(ordered)

	counts := make(map[float64]int)
	var order []float64
	for _, r := range ordered {
		if counts[r.Price] == 0 {
			order = append(order, r.Price)
		}
		counts[r.Price]++
	}
	best := order[0]
	for _, p := range order[1:] {
		if counts[p] > counts[best] {
			best = p
		}
	}
	return best
}

func subtractRooms(rooms []domain.Room, busy []int64) []domain.Room {
	skip := make(map[int64]struct{}, len(busy))
	for _, id := range busy {
		skip[id] = struct{}{}
	}
	out := make([]domain.Room, 0, len(rooms))
	for _, r := range rooms {
		if _, ok := skip[r.ID]; !ok {
			out = append(out, r)
		}
	}
	return out
}

func sortRoomsByID(rooms []domain.Room) {
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
}
