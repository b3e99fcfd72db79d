package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"hotel_inventory/internal/adapters/observability"
	"hotel_inventory/internal/domain"
)

var tracer = otel.Tracer("hotel_inventory/internal/app")

// ReservationService drives the reservation lifecycle. Every mutation runs in
// a unit of work that holds the owning hotel's lock, so the conflict check and
// the commit are one atomic step.
type ReservationService struct {
	store domain.Store
	now   func() time.Time
}

func NewReservationService(s domain.Store, now func() time.Time) *ReservationService {
	if now == nil {
		now = time.Now
	}
	return &ReservationService{store: s, now: now}
}

type CreateReservation struct {
	HotelID  int64
	RoomIDs  []int64
	Interval domain.Interval
	Customer domain.Customer
}

func (s *ReservationService) Create(ctx context.Context, in CreateReservation) (domain.Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservations.Create")
	defer span.End()
	span.SetAttributes(attribute.Int64("hotel.id", in.HotelID), attribute.Int("rooms", len(in.RoomIDs)))

	in.RoomIDs = domain.NormalizeRoomIDs(in.RoomIDs)
	for attempt := 0; ; attempt++ {
		res, err := s.create(ctx, in)
		switch {
		case err == nil:
			observability.ObserveReservation("created")
			log.Info().Int64("reservation_id", res.ID).Int64("hotel_id", res.HotelID).
				Ints64("rooms", res.RoomIDs).Str("interval", res.Interval.String()).Msg("reservation created")
			return res, nil
		case errors.Is(err, domain.ErrConcurrencyConflict) && attempt == 0:
			observability.ObserveReservation("retried")
			log.Warn().Err(err).Int64("hotel_id", in.HotelID).Msg("reservation commit conflicted, retrying")
			continue
		case errors.Is(err, domain.ErrConcurrencyConflict):
			observability.ObserveReservation("conflict")
			span.SetStatus(codes.Error, "commit conflict")
			return domain.Reservation{}, domain.Invalid("rooms already booked for the requested dates")
		default:
			var ve *domain.ValidationError
			if errors.As(err, &ve) && len(ve.Rooms) > 0 {
				observability.ObserveReservation("conflict")
			} else {
				observability.ObserveReservation("rejected")
			}
			span.RecordError(err)
			return domain.Reservation{}, err
		}
	}
}

func (s *ReservationService) create(ctx context.Context, in CreateReservation) (res domain.Reservation, err error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return domain.Reservation{}, err
	}
	defer func() {
		if err != nil {
			_ = uow.Rollback()
		}
	}()

	hotel, err := uow.LockHotel(ctx, in.HotelID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Reservation{}, domain.Invalid(fmt.Sprintf("hotel %d does not exist", in.HotelID))
	}
	if err != nil {
		return domain.Reservation{}, err
	}
	if !hotel.AcceptsReservations() {
		return domain.Reservation{}, domain.Invalid(fmt.Sprintf("hotel %d is not accepting reservations", hotel.ID))
	}
	if err = in.Interval.Validate(s.now()); err != nil {
		return domain.Reservation{}, err
	}
	rooms, err := resolveRoomSet(ctx, uow.Catalog(), hotel.ID, in.RoomIDs)
	if err != nil {
		return domain.Reservation{}, err
	}
	var idle []string
	for _, r := range rooms {
		if !r.Bookable() {
			idle = append(idle, r.Number)
		}
	}
	if len(idle) > 0 {
		return domain.Reservation{}, domain.InvalidRooms("rooms are not available", idle)
	}
	busy, err := DetectConflicts(ctx, uow.Ledger(), hotel.ID, in.RoomIDs, in.Interval)
	if err != nil {
		return domain.Reservation{}, err
	}
	if len(busy) > 0 {
		return domain.Reservation{}, domain.InvalidRooms("rooms are already booked for those dates", roomNumbers(rooms, busy))
	}
	if err = in.Customer.Validate(); err != nil {
		return domain.Reservation{}, err
	}

	res = domain.Reservation{
		HotelID:   hotel.ID,
		RoomIDs:   in.RoomIDs,
		Interval:  in.Interval,
		State:     domain.StateActive,
		CreatedAt: s.now().UTC().Truncate(time.Second),
		Customer:  in.Customer,
	}
	if err = uow.Ledger().Insert(ctx, &res); err != nil {
		return domain.Reservation{}, err
	}
	if err = uow.Commit(); err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

// Cancel moves an active reservation to cancelled. Cancelling twice fails.
func (s *ReservationService) Cancel(ctx context.Context, id int64) (domain.Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservations.Cancel")
	defer span.End()
	span.SetAttributes(attribute.Int64("reservation.id", id))

	res, err := s.transition(ctx, id, domain.StateCancelled)
	if err != nil {
		span.RecordError(err)
		return domain.Reservation{}, err
	}
	observability.ObserveReservation("cancelled")
	log.Info().Int64("reservation_id", id).Msg("reservation cancelled")
	return res, nil
}

// SetState applies an explicit transition through the same state machine.
func (s *ReservationService) SetState(ctx context.Context, id int64, state string) (domain.Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservations.SetState")
	defer span.End()
	span.SetAttributes(attribute.Int64("reservation.id", id), attribute.String("state", state))

	next, err := domain.ParseReservationState(state)
	if err != nil {
		return domain.Reservation{}, err
	}
	res, err := s.transition(ctx, id, next)
	if err != nil {
		span.RecordError(err)
		return domain.Reservation{}, err
	}
	observability.ObserveReservation(string(next))
	log.Info().Int64("reservation_id", id).Str("state", string(next)).Msg("reservation state changed")
	return res, nil
}

func (s *ReservationService) transition(ctx context.Context, id int64, next domain.ReservationState) (domain.Reservation, error) {
	var out domain.Reservation
	err := s.withReservation(ctx, id, func(uow domain.UnitOfWork, res domain.Reservation) error {
		if err := res.TransitionTo(next); err != nil {
			return err
		}
		if err := uow.Ledger().UpdateState(ctx, id, res.State); err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// Delete purges a reservation regardless of state.
func (s *ReservationService) Delete(ctx context.Context, id int64) error {
	err := s.withReservation(ctx, id, func(uow domain.UnitOfWork, _ domain.Reservation) error {
		return uow.Ledger().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	observability.ObserveReservation("deleted")
	log.Info().Int64("reservation_id", id).Msg("reservation deleted")
	return nil
}

// CompleteElapsed completes the hotel's active reservations that ended on or before day.
func (s *ReservationService) CompleteElapsed(ctx context.Context, hotelID int64, day time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "reservations.CompleteElapsed")
	defer span.End()
	span.SetAttributes(attribute.Int64("hotel.id", hotelID))

	n := 0
	err := s.withRetry(func() (err error) {
		n = 0
		uow, err := s.store.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				_ = uow.Rollback()
			}
		}()
		if _, err = uow.LockHotel(ctx, hotelID); err != nil {
			return err
		}
		due, err := uow.Ledger().ActiveEndingBy(ctx, hotelID, domain.Day(day))
		if err != nil {
			return err
		}
		for _, r := range due {
			if err = r.TransitionTo(domain.StateCompleted); err != nil {
				return err
			}
			if err = uow.Ledger().UpdateState(ctx, r.ID, r.State); err != nil {
				return err
			}
			n++
		}
		return uow.Commit()
	})
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		observability.ObserveReservation("completed")
	}
	return n, nil
}

func (s *ReservationService) Get(ctx context.Context, id int64) (domain.Reservation, error) {
	return s.store.Ledger().Get(ctx, id)
}

func (s *ReservationService) List(ctx context.Context, q domain.ReservationsQuery) ([]domain.Reservation, error) {
	if q.HotelID != 0 {
		if _, err := s.store.Catalog().GetHotel(ctx, q.HotelID); err != nil {
			return nil, err
		}
	}
	if q.Limit <= 0 || q.Limit > 1000 {
		q.Limit = 1000
	}
	out, err := s.store.Ledger().List(ctx, q)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Reservation{}
	}
	return out, nil
}

// withReservation loads the reservation, locks its hotel, re-reads it under the
// lock and runs fn before committing.
func (s *ReservationService) withReservation(ctx context.Context, id int64, fn func(domain.UnitOfWork, domain.Reservation) error) error {
	return s.withRetry(func() (err error) {
		uow, err := s.store.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				_ = uow.Rollback()
			}
		}()
		res, err := uow.Ledger().Get(ctx, id)
		if err != nil {
			return err
		}
		if _, err = uow.LockHotel(ctx, res.HotelID); err != nil {
			return err
		}
		if res, err = uow.Ledger().Get(ctx, id); err != nil {
			return err
		}
		if err = fn(uow, res); err != nil {
			return err
		}
		return uow.Commit()
	})
}

// withRetry reruns fn once when the store reports a write conflict.
func (s *ReservationService) withRetry(fn func() error) error {
	err := fn()
	if errors.Is(err, domain.ErrConcurrencyConflict) {
		observability.ObserveReservation("retried")
		err = fn()
	}
	return err
}

// roomNumbers maps ids to room numbers, keeping id order.
func roomNumbers(rooms []domain.Room, ids []int64) []string {
	byID := make(map[int64]string, len(rooms))
	for _, r := range rooms {
		byID[r.ID] = r.Number
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := byID[id]; ok {
			out = append(out, n)
		} else {
			out = append(out, fmt.Sprint(id))
		}
	}
	return out
}
