package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hotel_inventory/internal/app"
	"hotel_inventory/internal/domain"
	"hotel_inventory/internal/storage/memory"
)

var clock = func() time.Time { return time.Date(2024, 12, 15, 9, 30, 12, 500, time.UTC) }

func iv(t *testing.T, start, end string) domain.Interval {
	t.Helper()
	out, err := domain.NewInterval(start, end)
	require.NoError(t, err)
	return out
}

type fixture struct {
	store        domain.Store
	catalog      *app.CatalogService
	availability *app.AvailabilityService
	reservations *app.ReservationService
	hotel        domain.Hotel
	rooms        map[string]domain.Room
}

// newFixture seeds hotel H1 with doubles 101 and 102 at 100 and 103 at 120.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, memory.New())
}

func newFixtureOn(t *testing.T, s domain.Store) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:        s,
		catalog:      app.NewCatalogService(s, nil, 0),
		availability: app.NewAvailabilityService(s, clock),
		reservations: app.NewReservationService(s, clock),
		rooms:        map[string]domain.Room{},
	}
	h, err := f.catalog.CreateHotel(ctx, domain.Hotel{Name: "H1"})
	require.NoError(t, err)
	f.hotel = h
	for _, r := range []struct {
		n string
		p float64
	}{{"101", 100}, {"102", 100}, {"103", 120}} {
		room, err := f.catalog.CreateRoom(ctx, domain.Room{HotelID: h.ID, Number: r.n, Type: domain.RoomDouble, Price: r.p})
		require.NoError(t, err)
		f.rooms[r.n] = room
	}
	return f
}

func (f *fixture) ids(numbers ...string) []int64 {
	out := make([]int64, len(numbers))
	for i, n := range numbers {
		out[i] = f.rooms[n].ID
	}
	return out
}

func (f *fixture) book(ctx context.Context, t *testing.T, start, end string, numbers ...string) (domain.Reservation, error) {
	t.Helper()
	return f.reservations.Create(ctx, app.CreateReservation{
		HotelID:  f.hotel.ID,
		RoomIDs:  f.ids(numbers...),
		Interval: iv(t, start, end),
		Customer: domain.Customer{ID: "c-1", Name: "Ada", Email: "ada@example.com"},
	})
}

// flakyStore fails the first n commits with a write conflict.
type flakyStore struct {
	domain.Store
	failures int
	commits  int
}

func (s *flakyStore) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	uow, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &flakyUoW{UnitOfWork: uow, s: s}, nil
}

type flakyUoW struct {
	domain.UnitOfWork
	s *flakyStore
}

func (u *flakyUoW) Commit() error {
	u.s.commits++
	if u.s.failures > 0 {
		u.s.failures--
		_ = u.UnitOfWork.Rollback()
		return domain.ErrConcurrencyConflict
	}
	return u.UnitOfWork.Commit()
}
