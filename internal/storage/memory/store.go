// Package memory is an in-process Store used by tests and by STORE_DRIVER=memory.
//
// Committed state is an immutable snapshot. A unit of work takes the single
// writer slot, mutates a private copy and swaps it in on Commit, so readers
// never observe partial writes and writers are fully serialised.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"hotel_inventory/internal/domain"
)

type state struct {
	hotels       map[int64]domain.Hotel
	rooms        map[int64]domain.Room
	reservations map[int64]domain.Reservation
	nextHotel    int64
	nextRoom     int64
	nextRes      int64
}

func newState() *state {
	return &state{
		hotels:       map[int64]domain.Hotel{},
		rooms:        map[int64]domain.Room{},
		reservations: map[int64]domain.Reservation{},
	}
}

func (s *state) clone() *state {
	c := &state{
		hotels:       make(map[int64]domain.Hotel, len(s.hotels)),
		rooms:        make(map[int64]domain.Room, len(s.rooms)),
		reservations: make(map[int64]domain.Reservation, len(s.reservations)),
		nextHotel:    s.nextHotel,
		nextRoom:     s.nextRoom,
		nextRes:      s.nextRes,
	}
	for k, v := range s.hotels {
		c.hotels[k] = v
	}
	for k, v := range s.rooms {
		c.rooms[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	return c
}

type Store struct {
	mu     sync.RWMutex
	data   *state
	writer chan struct{}
}

func New() *Store {
	return &Store{data: newState(), writer: make(chan struct{}, 1)}
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.writer <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() { <-s.writer }

func (s *Store) publish(st *state) {
	s.mu.Lock()
	s.data = st
	s.mu.Unlock()
}

// autocommit runs a single write outside of an explicit unit of work.
func (s *Store) autocommit(ctx context.Context, fn func(*state) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	next := s.snapshot().clone()
	if err := fn(next); err != nil {
		return err
	}
	s.publish(next)
	return nil
}

func (s *Store) Catalog() domain.CatalogRepository     { return &catalog{s: s} }
func (s *Store) Ledger() domain.ReservationRepository { return &ledger{s: s} }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	return &unitOfWork{s: s, ctx: ctx, tx: s.snapshot().clone()}, nil
}

type unitOfWork struct {
	s    *Store
	ctx  context.Context
	tx   *state
	done bool
}

func (u *unitOfWork) Catalog() domain.CatalogRepository     { return &catalog{s: u.s, tx: u.tx} }
func (u *unitOfWork) Ledger() domain.ReservationRepository { return &ledger{s: u.s, tx: u.tx} }

// LockHotel is satisfied by the writer slot held since Begin.
func (u *unitOfWork) LockHotel(_ context.Context, hotelID int64) (domain.Hotel, error) {
	h, ok := u.tx.hotels[hotelID]
	if !ok {
		return domain.Hotel{}, domain.NotFound("hotel", hotelID)
	}
	return cloneHotel(h), nil
}

func (u *unitOfWork) Commit() error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.s.release()
	if err := u.ctx.Err(); err != nil {
		return err
	}
	u.s.publish(u.tx)
	return nil
}

func (u *unitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	u.s.release()
	return nil
}

// view picks the transaction copy when present, the committed snapshot otherwise.
func view(s *Store, tx *state) *state {
	if tx != nil {
		return tx
	}
	return s.snapshot()
}

// write applies fn to the transaction copy or autocommits it.
func write(ctx context.Context, s *Store, tx *state, fn func(*state) error) error {
	if tx != nil {
		return fn(tx)
	}
	return s.autocommit(ctx, fn)
}

type catalog struct {
	s  *Store
	tx *state
}

func (c *catalog) GetHotel(_ context.Context, id int64) (domain.Hotel, error) {
	h, ok := view(c.s, c.tx).hotels[id]
	if !ok {
		return domain.Hotel{}, domain.NotFound("hotel", id)
	}
	return cloneHotel(h), nil
}

func (c *catalog) ListHotels(_ context.Context, q domain.HotelsQuery) ([]domain.Hotel, error) {
	needle := strings.ToLower(q.Name)
	out := []domain.Hotel{}
	for _, h := range view(c.s, c.tx).hotels {
		if needle == "" || strings.Contains(strings.ToLower(h.Name), needle) {
			out = append(out, cloneHotel(h))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (c *catalog) CreateHotel(ctx context.Context, h *domain.Hotel) error {
	return write(ctx, c.s, c.tx, func(st *state) error {
		st.nextHotel++
		h.ID = st.nextHotel
		st.hotels[h.ID] = cloneHotel(*h)
		return nil
	})
}

func (c *catalog) UpdateHotel(ctx context.Context, h domain.Hotel) error {
	return write(ctx, c.s, c.tx, func(st *state) error {
		if _, ok := st.hotels[h.ID]; !ok {
			return domain.NotFound("hotel", h.ID)
		}
		st.hotels[h.ID] = cloneHotel(h)
		return nil
	})
}

func (c *catalog) DeleteHotel(ctx context.Context, id int64) error {
	return write(ctx, c.s, c.tx, func(st *state) error {
		if _, ok := st.hotels[id]; !ok {
			return domain.NotFound("hotel", id)
		}
		delete(st.hotels, id)
		return nil
	})
}

func (c *catalog) GetRoom(_ context.Context, id int64) (domain.Room, error) {
	r, ok := view(c.s, c.tx).rooms[id]
	if !ok {
		return domain.Room{}, domain.NotFound("room", id)
	}
	return cloneRoom(r), nil
}

func (c *catalog) ListRooms(_ context.Context, hotelID int64) ([]domain.Room, error) {
	out := c.filterRooms(func(r domain.Room) bool { return r.HotelID == hotelID })
	sort.Slice(out, func(i, j int) bool {
		if out[i].Number != out[j].Number {
			return out[i].Number < out[j].Number
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *catalog) RoomsByIDs(_ context.Context, ids []int64) ([]domain.Room, error) {
	st := view(c.s, c.tx)
	out := make([]domain.Room, 0, len(ids))
	for _, id := range ids {
		if r, ok := st.rooms[id]; ok {
			out = append(out, cloneRoom(r))
		}
	}
	return out, nil
}

func (c *catalog) RoomsOfType(_ context.Context, hotelID int64, t domain.RoomType, status domain.RoomStatus) ([]domain.Room, error) {
	out := c.filterRooms(func(r domain.Room) bool {
		return r.HotelID == hotelID && r.Type == t && r.Status == status
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *catalog) CountRooms(_ context.Context, hotelID int64) (int, error) {
	return len(c.filterRooms(func(r domain.Room) bool { return r.HotelID == hotelID })), nil
}

func (c *catalog) RoomNumberTaken(_ context.Context, hotelID int64, number string, exceptID int64) (bool, error) {
	taken := c.filterRooms(func(r domain.Room) bool {
		return r.HotelID == hotelID && r.ID != exceptID && strings.EqualFold(r.Number, number)
	})
	return len(taken) > 0, nil
}

func (c *catalog) CreateRoom(ctx context.Context, r *domain.Room) error {
	return write(ctx, c.s, c.tx, func(st *state) error {
		if _, ok := st.hotels[r.HotelID]; !ok {
			return domain.NotFound("hotel", r.HotelID)
		}
		st.nextRoom++
		r.ID = st.nextRoom
		st.rooms[r.ID] = cloneRoom(*r)
		return nil
	})
}

func (c *catalog) UpdateRoom(ctx context.Context, r domain.Room) error {
	return write(ctx, c.s, c.tx, func(st *state) error {
		if _, ok := st.rooms[r.ID]; !ok {
			return domain.NotFound("room", r.ID)
		}
		st.rooms[r.ID] = cloneRoom(r)
		return nil
	})
}

func (c *catalog) DeleteRoom(ctx context.Context, id int64) error {
	return write(ctx, c.s, c.tx, func(st *state) error {
		if _, ok := st.rooms[id]; !ok {
			return domain.NotFound("room", id)
		}
		delete(st.rooms, id)
		return nil
	})
}

func (c *catalog) filterRooms(keep func(domain.Room) bool) []domain.Room {
	out := []domain.Room{}
	for _, r := range view(c.s, c.tx).rooms {
		if keep(r) {
			out = append(out, cloneRoom(r))
		}
	}
	return out
}

type ledger struct {
	s  *Store
	tx *state
}

func (l *ledger) Insert(ctx context.Context, r *domain.Reservation) error {
	return write(ctx, l.s, l.tx, func(st *state) error {
		st.nextRes++
		r.ID = st.nextRes
		st.reservations[r.ID] = cloneReservation(*r)
		return nil
	})
}

func (l *ledger) Get(_ context.Context, id int64) (domain.Reservation, error) {
	r, ok := view(l.s, l.tx).reservations[id]
	if !ok {
		return domain.Reservation{}, domain.NotFound("reservation", id)
	}
	return cloneReservation(r), nil
}

func (l *ledger) List(_ context.Context, q domain.ReservationsQuery) ([]domain.Reservation, error) {
	out := l.filter(func(r domain.Reservation) bool {
		return (q.HotelID == 0 || r.HotelID == q.HotelID) &&
			(q.CustomerID == "" || r.Customer.ID == q.CustomerID)
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (l *ledger) ActiveOverlapping(_ context.Context, hotelID int64, iv domain.Interval) ([]domain.Reservation, error) {
	return l.filter(func(r domain.Reservation) bool {
		return r.HotelID == hotelID && r.State == domain.StateActive && r.Interval.Overlaps(iv)
	}), nil
}

func (l *ledger) ActiveEndingBy(_ context.Context, hotelID int64, day time.Time) ([]domain.Reservation, error) {
	out := l.filter(func(r domain.Reservation) bool {
		return r.HotelID == hotelID && r.State == domain.StateActive && !r.Interval.End.After(day)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *ledger) HasActiveForRoom(_ context.Context, roomID int64) (bool, error) {
	hits := l.filter(func(r domain.Reservation) bool {
		return r.State == domain.StateActive && r.HasRoom(roomID)
	})
	return len(hits) > 0, nil
}

func (l *ledger) UpdateState(ctx context.Context, id int64, next domain.ReservationState) error {
	return write(ctx, l.s, l.tx, func(st *state) error {
		r, ok := st.reservations[id]
		if !ok {
			return domain.NotFound("reservation", id)
		}
		r.State = next
		st.reservations[id] = r
		return nil
	})
}

func (l *ledger) Delete(ctx context.Context, id int64) error {
	return write(ctx, l.s, l.tx, func(st *state) error {
		if _, ok := st.reservations[id]; !ok {
			return domain.NotFound("reservation", id)
		}
		delete(st.reservations, id)
		return nil
	})
}

func (l *ledger) filter(keep func(domain.Reservation) bool) []domain.Reservation {
	out := []domain.Reservation{}
	for _, r := range view(l.s, l.tx).reservations {
		if keep(r) {
			out = append(out, cloneReservation(r))
		}
	}
	return out
}

func cloneHotel(h domain.Hotel) domain.Hotel {
	h.Images = append([]string{}, h.Images...)
	return h
}

func cloneRoom(r domain.Room) domain.Room {
	r.Images = append([]string{}, r.Images...)
	return r
}

func cloneReservation(r domain.Reservation) domain.Reservation {
	r.RoomIDs = append([]int64(nil), r.RoomIDs...)
	return r
}
