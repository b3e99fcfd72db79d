package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel_inventory/internal/domain"
)

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func seed(t *testing.T, s *Store) (domain.Hotel, domain.Room) {
	t.Helper()
	ctx := context.Background()
	h := domain.Hotel{Name: "Harbour", Status: domain.HotelAvailable}
	require.NoError(t, s.Catalog().CreateHotel(ctx, &h))
	r := domain.Room{HotelID: h.ID, Number: "101", Type: domain.RoomSingle, Price: 80, Status: domain.RoomAvailable}
	require.NoError(t, s.Catalog().CreateRoom(ctx, &r))
	return h, r
}

func TestUnitOfWorkIsInvisibleUntilCommit(t *testing.T) {
	s := New()
	ctx := context.Background()
	h, r := seed(t, s)

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = uow.LockHotel(ctx, h.ID)
	require.NoError(t, err)

	res := domain.Reservation{
		HotelID: h.ID, RoomIDs: []int64{r.ID}, State: domain.StateActive,
		Interval: domain.Interval{Start: day("2030-01-01"), End: day("2030-01-03")},
	}
	require.NoError(t, uow.Ledger().Insert(ctx, &res))

	_, err = s.Ledger().Get(ctx, res.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "uncommitted insert must not be visible")

	require.NoError(t, uow.Commit())
	got, err := s.Ledger().Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{r.ID}, got.RoomIDs)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	h, _ := seed(t, s)

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Catalog().DeleteHotel(ctx, h.ID))
	require.NoError(t, uow.Rollback())

	_, err = s.Catalog().GetHotel(ctx, h.ID)
	require.NoError(t, err)
}

func TestCancelledContextBeforeCommitRollsBack(t *testing.T) {
	s := New()
	h, r := seed(t, s)
	ctx, cancel := context.WithCancel(context.Background())

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	res := domain.Reservation{HotelID: h.ID, RoomIDs: []int64{r.ID}, State: domain.StateActive}
	require.NoError(t, uow.Ledger().Insert(ctx, &res))
	cancel()

	require.ErrorIs(t, uow.Commit(), context.Canceled)
	out, err := s.Ledger().List(context.Background(), domain.ReservationsQuery{})
	require.NoError(t, err)
	assert.Empty(t, out)

	// the writer slot is free again
	uow2, err := s.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, uow2.Rollback())
}

func TestBeginHonoursContextWhileWriterBusy(t *testing.T) {
	s := New()
	uow, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer uow.Rollback()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Begin(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLockHotelUnknown(t *testing.T) {
	s := New()
	uow, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer uow.Rollback()
	_, err = uow.LockHotel(context.Background(), 42)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedgerQueries(t *testing.T) {
	s := New()
	ctx := context.Background()
	h, r := seed(t, s)
	base := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

	mk := func(start, end string, st domain.ReservationState, created time.Time, customer string) domain.Reservation {
		res := domain.Reservation{
			HotelID: h.ID, RoomIDs: []int64{r.ID}, State: st, CreatedAt: created,
			Interval: domain.Interval{Start: day(start), End: day(end)},
			Customer: domain.Customer{ID: customer, Name: "n", Email: "e"},
		}
		require.NoError(t, s.Ledger().Insert(ctx, &res))
		return res
	}
	a := mk("2030-02-01", "2030-02-03", domain.StateActive, base, "c1")
	b := mk("2030-02-03", "2030-02-05", domain.StateActive, base.Add(time.Minute), "c2")
	mk("2030-02-01", "2030-02-10", domain.StateCancelled, base.Add(2*time.Minute), "c1")

	overlap, err := s.Ledger().ActiveOverlapping(ctx, h.ID, domain.Interval{Start: day("2030-02-02"), End: day("2030-02-03")})
	require.NoError(t, err)
	require.Len(t, overlap, 1)
	assert.Equal(t, a.ID, overlap[0].ID)

	due, err := s.Ledger().ActiveEndingBy(ctx, h.ID, day("2030-02-03"))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, a.ID, due[0].ID)

	all, err := s.Ledger().List(ctx, domain.ReservationsQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, b.ID+1, all[0].ID, "newest first")

	byCustomer, err := s.Ledger().List(ctx, domain.ReservationsQuery{CustomerID: "c2"})
	require.NoError(t, err)
	require.Len(t, byCustomer, 1)
	assert.Equal(t, b.ID, byCustomer[0].ID)

	busy, err := s.Ledger().HasActiveForRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, busy)
}

func TestCatalogQueries(t *testing.T) {
	s := New()
	ctx := context.Background()
	h, _ := seed(t, s)
	r2 := domain.Room{HotelID: h.ID, Number: "099", Type: domain.RoomSingle, Price: 70, Status: domain.RoomMaintenance}
	require.NoError(t, s.Catalog().CreateRoom(ctx, &r2))

	rooms, err := s.Catalog().ListRooms(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "099", rooms[0].Number)

	avail, err := s.Catalog().RoomsOfType(ctx, h.ID, domain.RoomSingle, domain.RoomAvailable)
	require.NoError(t, err)
	require.Len(t, avail, 1)
	assert.Equal(t, "101", avail[0].Number)

	taken, err := s.Catalog().RoomNumberTaken(ctx, h.ID, "101", 0)
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = s.Catalog().RoomNumberTaken(ctx, h.ID, "101", avail[0].ID)
	require.NoError(t, err)
	assert.False(t, taken)

	found, err := s.Catalog().RoomsByIDs(ctx, []int64{avail[0].ID, 999})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	hotels, err := s.Catalog().ListHotels(ctx, domain.HotelsQuery{Name: "harb"})
	require.NoError(t, err)
	assert.Len(t, hotels, 1)

	err = s.Catalog().CreateRoom(ctx, &domain.Room{HotelID: 77, Number: "1"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReadsReturnCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	h, _ := seed(t, s)
	h.Images = []string{"a"}
	require.NoError(t, s.Catalog().UpdateHotel(ctx, h))

	got, err := s.Catalog().GetHotel(ctx, h.ID)
	require.NoError(t, err)
	got.Images[0] = "mutated"

	again, err := s.Catalog().GetHotel(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, again.Images)
}
