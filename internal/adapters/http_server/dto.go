package httpserver

import (
	"time"

	"hotel_inventory/internal/domain"
)

type hotelDTO struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	City    string   `json:"city"`
	Address string   `json:"address"`
	Status  string   `json:"status"`
	Images  []string `json:"images"`
}

type hotelInput struct {
	Name    string `json:"name"`
	City    string `json:"city"`
	Address string `json:"address"`
	Status  string `json:"status"`
}

func (in hotelInput) toDomain(id int64) domain.Hotel {
	return domain.Hotel{ID: id, Name: in.Name, City: in.City, Address: in.Address, Status: domain.HotelStatus(in.Status)}
}

func toHotelDTO(h domain.Hotel) hotelDTO {
	return hotelDTO{ID: h.ID, Name: h.Name, City: h.City, Address: h.Address, Status: string(h.Status), Images: nonNil(h.Images)}
}

type roomDTO struct {
	ID      int64    `json:"id"`
	HotelID int64    `json:"hotel_id"`
	Number  string   `json:"number"`
	Type    string   `json:"type"`
	Price   float64  `json:"price"`
	Status  string   `json:"status"`
	Images  []string `json:"images"`
}

type roomInput struct {
	HotelID int64   `json:"hotel_id"`
	Number  string  `json:"number"`
	Type    string  `json:"type"`
	Price   float64 `json:"price"`
	Status  string  `json:"status"`
}

func (in roomInput) toDomain(id int64) domain.Room {
	return domain.Room{
		ID: id, HotelID: in.HotelID, Number: in.Number,
		Type: domain.RoomType(in.Type), Price: in.Price, Status: domain.RoomStatus(in.Status),
	}
}

func toRoomDTO(r domain.Room) roomDTO {
	return roomDTO{
		ID: r.ID, HotelID: r.HotelID, Number: r.Number, Type: string(r.Type),
		Price: r.Price, Status: string(r.Status), Images: nonNil(r.Images),
	}
}

func toRoomDTOs(rs []domain.Room) []roomDTO {
	out := make([]roomDTO, len(rs))
	for i, r := range rs {
		out[i] = toRoomDTO(r)
	}
	return out
}

type customerDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type reservationDTO struct {
	ID        int64       `json:"id"`
	HotelID   int64       `json:"hotel_id"`
	RoomIDs   []int64     `json:"room_ids"`
	StartDate string      `json:"start_date"`
	EndDate   string      `json:"end_date"`
	Nights    int         `json:"nights"`
	State     string      `json:"state"`
	CreatedAt time.Time   `json:"created_at"`
	Customer  customerDTO `json:"customer"`
}

type reservationInput struct {
	HotelID   int64       `json:"hotel_id"`
	RoomIDs   []int64     `json:"room_ids"`
	StartDate string      `json:"start_date"`
	EndDate   string      `json:"end_date"`
	Customer  customerDTO `json:"customer"`
}

type stateInput struct {
	State string `json:"state"`
}

func toReservationDTO(r domain.Reservation) reservationDTO {
	return reservationDTO{
		ID:        r.ID,
		HotelID:   r.HotelID,
		RoomIDs:   append([]int64{}, r.RoomIDs...),
		StartDate: r.Interval.Start.Format(domain.DateLayout),
		EndDate:   r.Interval.End.Format(domain.DateLayout),
		Nights:    r.Interval.Nights(),
		State:     string(r.State),
		CreatedAt: r.CreatedAt.UTC(),
		Customer:  customerDTO{ID: r.Customer.ID, Name: r.Customer.Name, Email: r.Customer.Email},
	}
}

func toReservationDTOs(rs []domain.Reservation) []reservationDTO {
	out := make([]reservationDTO, len(rs))
	for i, r := range rs {
		out[i] = toReservationDTO(r)
	}
	return out
}

type availabilityDTO struct {
	HotelID    int64     `json:"hotel_id"`
	Type       string    `json:"type"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	Available  bool      `json:"available"`
	Count      int       `json:"count"`
	Price      *float64  `json:"price,omitempty"`
	TotalRooms *int      `json:"total_rooms,omitempty"`
	Rooms      []roomDTO `json:"rooms"`
}

func toAvailabilityDTO(hotelID int64, t string, iv domain.Interval, res domain.AvailabilityResult) availabilityDTO {
	out := availabilityDTO{
		HotelID:   hotelID,
		Type:      t,
		StartDate: iv.Start.Format(domain.DateLayout),
		EndDate:   iv.End.Format(domain.DateLayout),
		Available: res.Available,
		Count:     res.Count,
		Rooms:     toRoomDTOs(res.Rooms),
	}
	if res.Available {
		p := res.Price
		out.Price = &p
	} else {
		n := res.TotalRooms
		out.TotalRooms = &n
	}
	return out
}

type messageDTO struct {
	Message string `json:"message"`
}

type imageDTO struct {
	URI string `json:"uri"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
