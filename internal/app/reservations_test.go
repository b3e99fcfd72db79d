package app_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"hotel_inventory/internal/app"
	"hotel_inventory/internal/domain"
	"hotel_inventory/internal/storage/memory"
)

func TestBookingScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.availability.Resolve(ctx, f.hotel.ID, "double", iv(t, "2025-01-01", "2025-01-05"))
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, 100.0, res.Price)

	r1, err := f.book(ctx, t, "2025-01-01", "2025-01-05", "102", "101")
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, r1.State)
	assert.Equal(t, f.ids("101", "102"), r1.RoomIDs, "room ids are stored sorted")
	assert.Equal(t, time.Date(2024, 12, 15, 9, 30, 12, 0, time.UTC), r1.CreatedAt)

	res, err = f.availability.Resolve(ctx, f.hotel.ID, "double", iv(t, "2025-01-01", "2025-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 120.0, res.Price)

	_, err = f.book(ctx, t, "2025-01-03", "2025-01-06", "101")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"101"}, ve.Rooms)

	// back-to-back stays share no night
	_, err = f.book(ctx, t, "2025-01-05", "2025-01-07", "101")
	require.NoError(t, err)

	cancelled, err := f.reservations.Cancel(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, cancelled.State)

	_, err = f.reservations.Cancel(ctx, r1.ID)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "reservation is already cancelled", err.Error())

	res, err = f.availability.Resolve(ctx, f.hotel.ID, "double", iv(t, "2025-01-01", "2025-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count, "cancelled reservations free their rooms")
}

func TestCreateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, err := f.catalog.CreateHotel(ctx, domain.Hotel{Name: "H2"})
	require.NoError(t, err)
	foreign, err := f.catalog.CreateRoom(ctx, domain.Room{HotelID: other.ID, Number: "9", Type: domain.RoomSuite, Price: 400})
	require.NoError(t, err)

	customer := domain.Customer{ID: "c", Name: "n", Email: "e@x"}
	cases := []struct {
		name  string
		in    app.CreateReservation
		rooms []string
	}{
		{"unknown hotel", app.CreateReservation{HotelID: 999, RoomIDs: f.ids("101"), Interval: iv(t, "2025-01-01", "2025-01-02"), Customer: customer}, nil},
		{"no rooms", app.CreateReservation{HotelID: f.hotel.ID, Interval: iv(t, "2025-01-01", "2025-01-02"), Customer: customer}, nil},
		{"unknown room", app.CreateReservation{HotelID: f.hotel.ID, RoomIDs: []int64{f.rooms["101"].ID, 777}, Interval: iv(t, "2025-01-01", "2025-01-02"), Customer: customer}, []string{"777"}},
		{"foreign room", app.CreateReservation{HotelID: f.hotel.ID, RoomIDs: []int64{foreign.ID}, Interval: iv(t, "2025-01-01", "2025-01-02"), Customer: customer}, []string{"9"}},
		{"empty interval", app.CreateReservation{HotelID: f.hotel.ID, RoomIDs: f.ids("101"), Interval: iv(t, "2025-01-01", "2025-01-01"), Customer: customer}, nil},
		{"past", app.CreateReservation{HotelID: f.hotel.ID, RoomIDs: f.ids("101"), Interval: iv(t, "2024-12-14", "2024-12-16"), Customer: customer}, nil},
		{"no customer", app.CreateReservation{HotelID: f.hotel.ID, RoomIDs: f.ids("101"), Interval: iv(t, "2025-01-01", "2025-01-02")}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.reservations.Create(ctx, tc.in)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.rooms, ve.Rooms)
		})
	}

	all, err := f.reservations.List(ctx, domain.ReservationsQuery{})
	require.NoError(t, err)
	assert.Empty(t, all, "rejected requests leave no trace")
}

func TestCreateStartingTodayIsAllowed(t *testing.T) {
	f := newFixture(t)
	_, err := f.book(context.Background(), t, "2024-12-15", "2024-12-16", "101")
	require.NoError(t, err)
}

func TestCreateRejectsUnbookableRoomAndClosedHotel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room := f.rooms["103"]
	room.Status = domain.RoomMaintenance
	require.NoError(t, f.catalog.UpdateRoom(ctx, room))
	_, err := f.book(ctx, t, "2025-01-01", "2025-01-02", "101", "103")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"103"}, ve.Rooms)

	h := f.hotel
	h.Status = domain.HotelOutOfService
	require.NoError(t, f.catalog.UpdateHotel(ctx, h))
	_, err = f.book(ctx, t, "2025-01-01", "2025-01-02", "101")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestConcurrentBookingsNeverDoubleBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wins atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			_, err := f.book(gctx, t, "2025-02-01", "2025-02-04", "101")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, domain.ErrValidation):
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), wins.Load())

	rs, err := f.reservations.List(ctx, domain.ReservationsQuery{HotelID: f.hotel.ID})
	require.NoError(t, err)
	assert.Len(t, rs, 1)
}

func TestCreateRetriesOnceOnCommitConflict(t *testing.T) {
	fs := &flakyStore{Store: memory.New()}
	f := newFixtureOn(t, fs)
	ctx := context.Background()

	fs.commits, fs.failures = 0, 1
	_, err := f.book(ctx, t, "2025-01-01", "2025-01-02", "101")
	require.NoError(t, err)
	assert.Equal(t, 2, fs.commits)

	fs.commits, fs.failures = 0, 2
	_, err = f.book(ctx, t, "2025-01-10", "2025-01-12", "102")
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "rooms already booked for the requested dates", err.Error())
	assert.Equal(t, 2, fs.commits)
}

func TestCancelSurfacesRepeatedConflict(t *testing.T) {
	fs := &flakyStore{Store: memory.New()}
	f := newFixtureOn(t, fs)
	ctx := context.Background()
	r, err := f.book(ctx, t, "2025-01-01", "2025-01-02", "101")
	require.NoError(t, err)

	fs.failures = 2
	_, err = f.reservations.Cancel(ctx, r.ID)
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	got, err := f.reservations.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, got.State)
}

func TestSetStateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.book(ctx, t, "2025-01-01", "2025-01-02", "101")
	require.NoError(t, err)

	_, err = f.reservations.SetState(ctx, r.ID, "active")
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.reservations.SetState(ctx, r.ID, "checked-in")
	require.ErrorIs(t, err, domain.ErrValidation)

	done, err := f.reservations.SetState(ctx, r.ID, "Completed")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, done.State)

	_, err = f.reservations.Cancel(ctx, r.ID)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.reservations.Cancel(ctx, 404)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetRoundTripsStoredFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.book(ctx, t, "2025-03-01", "2025-03-04", "103", "101")
	require.NoError(t, err)

	got, err := f.reservations.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, 3, got.Interval.Nights())
}

func TestCompleteElapsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ended, err := f.book(ctx, t, "2025-01-01", "2025-01-03", "101")
	require.NoError(t, err)
	running, err := f.book(ctx, t, "2025-01-02", "2025-01-09", "102")
	require.NoError(t, err)
	cancelled, err := f.book(ctx, t, "2025-01-01", "2025-01-02", "103")
	require.NoError(t, err)
	_, err = f.reservations.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)

	n, err := f.reservations.CompleteElapsed(ctx, f.hotel.ID, time.Date(2025, 1, 3, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for id, want := range map[int64]domain.ReservationState{
		ended.ID:     domain.StateCompleted,
		running.ID:   domain.StateActive,
		cancelled.ID: domain.StateCancelled,
	} {
		got, err := f.reservations.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.State, "reservation %d", id)
	}

	n, err = f.reservations.CompleteElapsed(ctx, f.hotel.ID, time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.reservations.CompleteElapsed(ctx, 999, time.Now())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.book(ctx, t, "2025-01-01", "2025-01-02", "101")
	require.NoError(t, err)
	second, err := f.reservations.Create(ctx, app.CreateReservation{
		HotelID: f.hotel.ID, RoomIDs: f.ids("102"), Interval: iv(t, "2025-01-01", "2025-01-02"),
		Customer: domain.Customer{ID: "c-2", Name: "Bob", Email: "bob@example.com"},
	})
	require.NoError(t, err)

	byCustomer, err := f.reservations.List(ctx, domain.ReservationsQuery{CustomerID: "c-2"})
	require.NoError(t, err)
	require.Len(t, byCustomer, 1)
	assert.Equal(t, second.ID, byCustomer[0].ID)

	limited, err := f.reservations.List(ctx, domain.ReservationsQuery{HotelID: f.hotel.ID, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = f.reservations.List(ctx, domain.ReservationsQuery{HotelID: 999})
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.reservations.Delete(ctx, first.ID))
	require.ErrorIs(t, f.reservations.Delete(ctx, first.ID), domain.ErrNotFound)

	res, err := f.availability.Resolve(ctx, f.hotel.ID, "double", iv(t, "2025-01-01", "2025-01-02"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
}
