package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_inventory/internal/domain"
)

// CatalogService owns hotels and rooms. Display reads may be served from the
// cache; the availability and reservation paths never read through it.
type CatalogService struct {
	store    domain.Store
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewCatalogService(s domain.Store, c domain.Cache, ttl time.Duration) *CatalogService {
	return &CatalogService{store: s, cache: c, cacheTTL: ttl}
}

func hotelKey(id int64) string { return fmt.Sprintf("hotel:%d", id) }
func roomsKey(id int64) string { return fmt.Sprintf("rooms:%d", id) }

func (s *CatalogService) GetHotel(ctx context.Context, id int64) (domain.Hotel, error) {
	var h domain.Hotel
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, hotelKey(id), &h); ok {
			return h, nil
		}
	}
	h, err := s.store.Catalog().GetHotel(ctx, id)
	if err != nil {
		return domain.Hotel{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, hotelKey(id), h, int(s.cacheTTL.Seconds()))
	}
	return h, nil
}

func (s *CatalogService) ListHotels(ctx context.Context, q domain.HotelsQuery) ([]domain.Hotel, error) {
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 500
	}
	q.Name = strings.TrimSpace(q.Name)
	return s.store.Catalog().ListHotels(ctx, q)
}

func (s *CatalogService) CreateHotel(ctx context.Context, h domain.Hotel) (domain.Hotel, error) {
	if h.Status == "" {
		h.Status = domain.HotelAvailable
	}
	st, err := domain.ParseHotelStatus(string(h.Status))
	if err != nil {
		return domain.Hotel{}, err
	}
	h.Status = st
	if err := h.Validate(); err != nil {
		return domain.Hotel{}, err
	}
	if h.Images == nil {
		h.Images = []string{}
	}
	if err := s.store.Catalog().CreateHotel(ctx, &h); err != nil {
		return domain.Hotel{}, err
	}
	log.Info().Int64("hotel_id", h.ID).Str("name", h.Name).Msg("hotel created")
	return h, nil
}

// UpdateHotel replaces hotel fields. An empty status or a nil image list keeps
// the stored value.
func (s *CatalogService) UpdateHotel(ctx context.Context, h domain.Hotel) error {
	if h.Status != "" {
		st, err := domain.ParseHotelStatus(string(h.Status))
		if err != nil {
			return err
		}
		h.Status = st
	}
	err := s.inHotel(ctx, h.ID, func(uow domain.UnitOfWork, cur domain.Hotel) error {
		if h.Status == "" {
			h.Status = cur.Status
		}
		if h.Images == nil {
			h.Images = cur.Images
		}
		if err := h.Validate(); err != nil {
			return err
		}
		return uow.Catalog().UpdateHotel(ctx, h)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, h.ID)
	return nil
}

// DeleteHotel refuses while the hotel still owns rooms.
func (s *CatalogService) DeleteHotel(ctx context.Context, id int64) error {
	err := s.inHotel(ctx, id, func(uow domain.UnitOfWork, _ domain.Hotel) error {
		n, err := uow.Catalog().CountRooms(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.Invalid(fmt.Sprintf("hotel %d still has %d rooms", id, n))
		}
		return uow.Catalog().DeleteHotel(ctx, id)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, id)
	log.Info().Int64("hotel_id", id).Msg("hotel deleted")
	return nil
}

// ListRooms returns every room of the hotel ordered by number.
func (s *CatalogService) ListRooms(ctx context.Context, hotelID int64) ([]domain.Room, error) {
	var rooms []domain.Room
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, roomsKey(hotelID), &rooms); ok {
			return rooms, nil
		}
	}
	if _, err := s.store.Catalog().GetHotel(ctx, hotelID); err != nil {
		return nil, err
	}
	rooms, err := s.store.Catalog().ListRooms(ctx, hotelID)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, roomsKey(hotelID), rooms, int(s.cacheTTL.Seconds()))
	}
	return rooms, nil
}

func (s *CatalogService) GetRoom(ctx context.Context, id int64) (domain.Room, error) {
	return s.store.Catalog().GetRoom(ctx, id)
}

func (s *CatalogService) RoomExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.store.Catalog().GetRoom(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *CatalogService) CreateRoom(ctx context.Context, r domain.Room) (domain.Room, error) {
	if r.Status == "" {
		r.Status = domain.RoomAvailable
	}
	if err := normalizeRoom(&r); err != nil {
		return domain.Room{}, err
	}
	if r.Images == nil {
		r.Images = []string{}
	}
	err := s.inHotel(ctx, r.HotelID, func(uow domain.UnitOfWork, _ domain.Hotel) error {
		if err := ensureNumberFree(ctx, uow.Catalog(), r); err != nil {
			return err
		}
		return uow.Catalog().CreateRoom(ctx, &r)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Room{}, domain.Invalid(fmt.Sprintf("hotel %d does not exist", r.HotelID))
	}
	if err != nil {
		return domain.Room{}, err
	}
	s.invalidate(ctx, r.HotelID)
	log.Info().Int64("room_id", r.ID).Int64("hotel_id", r.HotelID).Str("number", r.Number).Msg("room created")
	return r, nil
}

// UpdateRoom replaces room fields. Rooms cannot move between hotels; a nil
// image list keeps the stored references.
func (s *CatalogService) UpdateRoom(ctx context.Context, r domain.Room) error {
	cur, err := s.store.Catalog().GetRoom(ctx, r.ID)
	if err != nil {
		return err
	}
	if r.HotelID == 0 {
		r.HotelID = cur.HotelID
	}
	if r.HotelID != cur.HotelID {
		return domain.Invalid("a room cannot be moved to another hotel")
	}
	if r.Type == "" {
		r.Type = cur.Type
	}
	if r.Status == "" {
		r.Status = cur.Status
	}
	if err := normalizeRoom(&r); err != nil {
		return err
	}
	if r.Images == nil {
		r.Images = cur.Images
	}
	err = s.inHotel(ctx, r.HotelID, func(uow domain.UnitOfWork, _ domain.Hotel) error {
		if err := ensureNumberFree(ctx, uow.Catalog(), r); err != nil {
			return err
		}
		return uow.Catalog().UpdateRoom(ctx, r)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, r.HotelID)
	return nil
}

// DeleteRoom refuses while an active reservation references the room.
func (s *CatalogService) DeleteRoom(ctx context.Context, id int64) error {
	room, err := s.store.Catalog().GetRoom(ctx, id)
	if err != nil {
		return err
	}
	err = s.inHotel(ctx, room.HotelID, func(uow domain.UnitOfWork, _ domain.Hotel) error {
		busy, err := uow.Ledger().HasActiveForRoom(ctx, id)
		if err != nil {
			return err
		}
		if busy {
			return domain.InvalidRooms("room has active reservations and cannot be deleted", []string{room.Number})
		}
		return uow.Catalog().DeleteRoom(ctx, id)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, room.HotelID)
	log.Info().Int64("room_id", id).Int64("hotel_id", room.HotelID).Msg("room deleted")
	return nil
}

// inHotel runs fn in a unit of work holding the hotel lock and commits on success.
func (s *CatalogService) inHotel(ctx context.Context, hotelID int64, fn func(domain.UnitOfWork, domain.Hotel) error) (err error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = uow.Rollback()
		}
	}()
	h, err := uow.LockHotel(ctx, hotelID)
	if err != nil {
		return err
	}
	if err = fn(uow, h); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *CatalogService) invalidate(ctx context.Context, hotelID int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, hotelKey(hotelID))
	_ = s.cache.Del(ctx, roomsKey(hotelID))
}

func normalizeRoom(r *domain.Room) error {
	r.Number = strings.TrimSpace(r.Number)
	t, err := domain.ParseRoomType(string(r.Type))
	if err != nil {
		return err
	}
	st, err := domain.ParseRoomStatus(string(r.Status))
	if err != nil {
		return err
	}
	r.Type, r.Status = t, st
	return r.Validate()
}

func ensureNumberFree(ctx context.Context, repo domain.CatalogRepository, r domain.Room) error {
	taken, err := repo.RoomNumberTaken(ctx, r.HotelID, r.Number, r.ID)
	if err != nil {
		return err
	}
	if taken {
		return domain.InvalidRooms(fmt.Sprintf("hotel %d already has a room with that number", r.HotelID), []string{r.Number})
	}
	return nil
}

// bookableRoomsOfType returns available rooms of the type, ordered by id.
func bookableRoomsOfType(ctx context.Context, repo domain.CatalogRepository, hotelID int64, t domain.RoomType) ([]domain.Room, error) {
	rooms, err := repo.RoomsOfType(ctx, hotelID, t, domain.RoomAvailable)
	if err != nil {
		return nil, err
	}
	sortRoomsByID(rooms)
	return rooms, nil
}

// resolveRoomSet loads ids and reports missing or foreign rooms as validation failures.
func resolveRoomSet(ctx context.Context, repo domain.CatalogRepository, hotelID int64, ids []int64) ([]domain.Room, error) {
	if len(ids) == 0 {
		return nil, domain.Invalid("at least one room must be selected")
	}
	rooms, err := repo.RoomsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(rooms) != len(ids) {
		found := make(map[int64]bool, len(rooms))
		for _, r := range rooms {
			found[r.ID] = true
		}
		var missing []string
		for _, id := range ids {
			if !found[id] {
				missing = append(missing, strconv.FormatInt(id, 10))
			}
		}
		return nil, domain.InvalidRooms("one or more rooms do not exist", missing)
	}
	var foreign []string
	for _, r := range rooms {
		if r.HotelID != hotelID {
			foreign = append(foreign, r.Number)
		}
	}
	if len(foreign) > 0 {
		return nil, domain.InvalidRooms(fmt.Sprintf("all rooms must belong to hotel %d", hotelID), foreign)
	}
	sortRoomsByID(rooms)
	return rooms, nil
}
