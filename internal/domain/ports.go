package domain

import (
	"context"
	"io"
	"time"
)

// CatalogRepository holds hotels and rooms.
type CatalogRepository interface {
	GetHotel(ctx context.Context, id int64) (Hotel, error)
	ListHotels(ctx context.Context, q HotelsQuery) ([]Hotel, error)
	CreateHotel(ctx context.Context, h *Hotel) error
	UpdateHotel(ctx context.Context, h Hotel) error
	DeleteHotel(ctx context.Context, id int64) error

	GetRoom(ctx context.Context, id int64) (Room, error)
	ListRooms(ctx context.Context, hotelID int64) ([]Room, error) // ordered by number
	RoomsByIDs(ctx context.Context, ids []int64) ([]Room, error)  // missing ids are omitted
	RoomsOfType(ctx context.Context, hotelID int64, t RoomType, status RoomStatus) ([]Room, error)
	CountRooms(ctx context.Context, hotelID int64) (int, error)
	RoomNumberTaken(ctx context.Context, hotelID int64, number string, exceptID int64) (bool, error)
	CreateRoom(ctx context.Context, r *Room) error
	UpdateRoom(ctx context.Context, r Room) error
	DeleteRoom(ctx context.Context, id int64) error
}

// ReservationRepository is the reservation ledger.
type ReservationRepository interface {
	Insert(ctx context.Context, r *Reservation) error
	Get(ctx context.Context, id int64) (Reservation, error)
	List(ctx context.Context, q ReservationsQuery) ([]Reservation, error) // newest first
	// ActiveOverlapping returns active reservations of the hotel whose interval overlaps iv.
	ActiveOverlapping(ctx context.Context, hotelID int64, iv Interval) ([]Reservation, error)
	// ActiveEndingBy returns active reservations of the hotel with End <= day.
	ActiveEndingBy(ctx context.Context, hotelID int64, day time.Time) ([]Reservation, error)
	HasActiveForRoom(ctx context.Context, roomID int64) (bool, error)
	UpdateState(ctx context.Context, id int64, state ReservationState) error
	Delete(ctx context.Context, id int64) error
}

// UnitOfWork is an explicit transaction boundary. Repositories obtained from it
// read and write inside the transaction; nothing is visible to others before Commit.
type UnitOfWork interface {
	Catalog() CatalogRepository
	Ledger() ReservationRepository
	// LockHotel serialises writers of the hotel for the rest of the unit of work.
	LockHotel(ctx context.Context, hotelID int64) (Hotel, error)
	Commit() error
	Rollback() error
}

// Store is the single source of truth. Catalog and Ledger are snapshot readers
// (and single-statement writers) outside of any unit of work.
type Store interface {
	Catalog() CatalogRepository
	Ledger() ReservationRepository
	Begin(ctx context.Context) (UnitOfWork, error)
}

// Cache fronts catalog display reads only.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// ImageStore is the external object store that owns image bytes.
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (uri string, err error)
	Delete(ctx context.Context, key string) error
}

type HotelsQuery struct {
	Name  string // substring match, empty = all
	Limit int
}

type ReservationsQuery struct {
	HotelID    int64
	CustomerID string
	Limit      int
}

// AvailabilityResult answers a hotel/type/interval query.
type AvailabilityResult struct {
	Available  bool
	Count      int
	Price      float64 // representative price, set only when Available
	Rooms      []Room
	TotalRooms int // catalog rooms of the type, set only when not Available
}
