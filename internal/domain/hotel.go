package domain

import (
	"fmt"
	"strings"
)

type HotelStatus string

const (
	HotelAvailable    HotelStatus = "available"
	HotelOutOfService HotelStatus = "out_of_service"
)

type RoomType string

const (
	RoomSingle RoomType = "single"
	RoomDouble RoomType = "double"
	RoomSuite  RoomType = "suite"
)

type RoomStatus string

const (
	RoomAvailable    RoomStatus = "available"
	RoomMaintenance  RoomStatus = "maintenance"
	RoomOutOfService RoomStatus = "out_of_service"
)

type Hotel struct {
	ID      int64
	Name    string
	City    string
	Address string
	Status  HotelStatus
	Images  []string // URIs owned by the object store
}

type Room struct {
	ID      int64
	HotelID int64
	Number  string
	Type    RoomType
	Price   float64
	Status  RoomStatus
	Images  []string
}

// normalize lowercases and maps "out-of-service" / "out of service" to "out_of_service".
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.Join(strings.Fields(s), "_")
}

func ParseHotelStatus(s string) (HotelStatus, error) {
	switch v := HotelStatus(normalize(s)); v {
	case HotelAvailable, HotelOutOfService:
		return v, nil
	}
	return "", Invalid(fmt.Sprintf("hotel status must be one of: %s, %s", HotelAvailable, HotelOutOfService))
}

func ParseRoomType(s string) (RoomType, error) {
	switch v := RoomType(normalize(s)); v {
	case RoomSingle, RoomDouble, RoomSuite:
		return v, nil
	}
	return "", Invalid(fmt.Sprintf("room type must be one of: %s, %s, %s", RoomSingle, RoomDouble, RoomSuite))
}

func ParseRoomStatus(s string) (RoomStatus, error) {
	switch v := RoomStatus(normalize(s)); v {
	case RoomAvailable, RoomMaintenance, RoomOutOfService:
		return v, nil
	}
	return "", Invalid(fmt.Sprintf("room status must be one of: %s, %s, %s", RoomAvailable, RoomMaintenance, RoomOutOfService))
}

// Validate checks the fields a stored hotel must carry.
func (h Hotel) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return Invalid("hotel name is required")
	}
	if _, err := ParseHotelStatus(string(h.Status)); err != nil {
		return err
	}
	return nil
}

func (r Room) Validate() error {
	if r.HotelID <= 0 {
		return Invalid("hotel_id is required")
	}
	if strings.TrimSpace(r.Number) == "" {
		return Invalid("room number is required")
	}
	if _, err := ParseRoomType(string(r.Type)); err != nil {
		return err
	}
	if _, err := ParseRoomStatus(string(r.Status)); err != nil {
		return err
	}
	if r.Price <= 0 {
		return Invalid("room price must be positive")
	}
	return nil
}

// Bookable reports whether the room may appear in availability results and new reservations.
func (r Room) Bookable() bool { return r.Status == RoomAvailable }

func (h Hotel) AcceptsReservations() bool { return h.Status == HotelAvailable }
