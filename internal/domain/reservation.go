package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Interval is a half-open date range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps is true iff a.Start < b.End && b.Start < a.End; back-to-back stays do not overlap.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Validate rejects empty or inverted ranges and ranges starting before today.
func (a Interval) Validate(today time.Time) error {
	if !a.Start.Before(a.End) {
		return Invalid("start date must be before end date")
	}
	if a.Start.Before(Day(today)) {
		return Invalid("start date cannot be in the past")
	}
	return nil
}

func (a Interval) Nights() int { return int(a.End.Sub(a.Start).Hours() / 24) }

func (a Interval) String() string {
	return fmt.Sprintf("[%s,%s)", a.Start.Format(DateLayout), a.End.Format(DateLayout))
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or RFC3339 and returns the UTC calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Day(t), nil
	}
	return time.Time{}, Invalid(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s))
}

func NewInterval(start, end string) (Interval, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: s, End: e}, nil
}

type ReservationState string

const (
	StateActive    ReservationState = "active"
	StateCancelled ReservationState = "cancelled"
	StateCompleted ReservationState = "completed"
)

func ParseReservationState(s string) (ReservationState, error) {
	switch v := ReservationState(normalize(s)); v {
	case StateActive, StateCancelled, StateCompleted:
		return v, nil
	}
	return "", Invalid(fmt.Sprintf("reservation state must be one of: %s, %s, %s", StateActive, StateCancelled, StateCompleted))
}

func (s ReservationState) Terminal() bool { return s == StateCancelled || s == StateCompleted }

type Customer struct {
	ID    string
	Name  string
	Email string
}

func (c Customer) Validate() error {
	switch {
	case strings.TrimSpace(c.ID) == "":
		return Invalid("customer id is required")
	case strings.TrimSpace(c.Name) == "":
		return Invalid("customer name is required")
	case strings.TrimSpace(c.Email) == "":
		return Invalid("customer email is required")
	}
	return nil
}

type Reservation struct {
	ID        int64
	HotelID   int64
	RoomIDs   []int64 // sorted, unique
	Interval  Interval
	State     ReservationState
	CreatedAt time.Time
	Customer  Customer
}

// TransitionTo applies a state machine move. Only active -> cancelled and
// active -> completed are legal; everything else is a validation error.
func (r *Reservation) TransitionTo(next ReservationState) error {
	switch {
	case r.State == next && next == StateCancelled:
		return Invalid("reservation is already cancelled")
	case r.State == next:
		return Invalid(fmt.Sprintf("reservation is already %s", next))
	case r.State == StateCancelled:
		return Invalid(fmt.Sprintf("cannot move a cancelled reservation to %s", next))
	case r.State == StateCompleted && next == StateCancelled:
		return Invalid("cannot cancel a completed reservation")
	case r.State == StateCompleted:
		return Invalid(fmt.Sprintf("cannot move a completed reservation to %s", next))
	case next == StateActive:
		return Invalid("reservations cannot be re-activated")
	}
	r.State = next
	return nil
}

// HasRoom reports whether id is part of the reservation's room set.
func (r Reservation) HasRoom(id int64) bool {
	i := sort.Search(len(r.RoomIDs), func(i int) bool { return r.RoomIDs[i] >= id })
	return i < len(r.RoomIDs) && r.RoomIDs[i] == id
}

// NormalizeRoomIDs sorts and de-duplicates ids.
func NormalizeRoomIDs(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}
