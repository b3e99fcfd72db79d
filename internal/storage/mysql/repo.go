package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"hotel_inventory/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface{ Scan(dest ...any) error }

func valJSON(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// -----------------------------------------------------------------------------
// CATALOG
// -----------------------------------------------------------------------------

type catalogRepo struct{ q querier }

func scanHotel(s scanner) (domain.Hotel, error) {
	var h domain.Hotel
	var status string
	var images []byte
	if err := s.Scan(&h.ID, &h.Name, &h.City, &h.Address, &status, &images); err != nil {
		return domain.Hotel{}, err
	}
	h.Status = domain.HotelStatus(status)
	h.Images = []string{}
	_ = json.Unmarshal(images, &h.Images)
	return h, nil
}

func scanRoom(s scanner) (domain.Room, error) {
	var r domain.Room
	var typ, status string
	var images []byte
	if err := s.Scan(&r.ID, &r.HotelID, &r.Number, &typ, &r.Price, &status, &images); err != nil {
		return domain.Room{}, err
	}
	r.Type, r.Status = domain.RoomType(typ), domain.RoomStatus(status)
	r.Images = []string{}
	_ = json.Unmarshal(images, &r.Images)
	return r, nil
}

func (c *catalogRepo) GetHotel(ctx context.Context, id int64) (domain.Hotel, error) {
	h, err := scanHotel(c.q.QueryRowContext(ctx, getHotelSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Hotel{}, domain.NotFound("hotel", id)
	}
	return h, mapErr(err)
}

func (c *catalogRepo) ListHotels(ctx context.Context, q domain.HotelsQuery) ([]domain.Hotel, error) {
	name := likeEscaper.Replace(q.Name)
	limit := q.Limit
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := c.q.QueryContext(ctx, listHotelsSQL, name, name, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []domain.Hotel{}
	for rows.Next() {
		h, err := scanHotel(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, h)
	}
	return out, mapErr(rows.Err())
}

func (c *catalogRepo) CreateHotel(ctx context.Context, h *domain.Hotel) error {
	res, err := c.q.ExecContext(ctx, insertHotelSQL, h.Name, h.City, h.Address, string(h.Status), valJSON(h.Images))
	if err != nil {
		return mapErr(err)
	}
	h.ID, err = res.LastInsertId()
	return mapErr(err)
}

func (c *catalogRepo) UpdateHotel(ctx context.Context, h domain.Hotel) error {
	res, err := c.q.ExecContext(ctx, updateHotelSQL, h.Name, h.City, h.Address, string(h.Status), valJSON(h.Images), h.ID)
	if err != nil {
		return mapErr(err)
	}
	return affected(res, "hotel", h.ID)
}

func (c *catalogRepo) DeleteHotel(ctx context.Context, id int64) error {
	return deleteByID(ctx, c.q, deleteHotelSQL, "hotel", id)
}

func (c *catalogRepo) GetRoom(ctx context.Context, id int64) (domain.Room, error) {
	r, err := scanRoom(c.q.QueryRowContext(ctx, getRoomSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, domain.NotFound("room", id)
	}
	return r, mapErr(err)
}

func (c *catalogRepo) queryRooms(ctx context.Context, query string, args ...any) ([]domain.Room, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []domain.Room{}
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, r)
	}
	return out, mapErr(rows.Err())
}

func (c *catalogRepo) ListRooms(ctx context.Context, hotelID int64) ([]domain.Room, error) {
	return c.queryRooms(ctx, listRoomsSQL, hotelID)
}

func (c *catalogRepo) RoomsByIDs(ctx context.Context, ids []int64) ([]domain.Room, error) {
	if len(ids) == 0 {
		return []domain.Room{}, nil
	}
	ph, args := inList(ids)
	return c.queryRooms(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id IN (`+ph+`) ORDER BY id`, args...)
}

func (c *catalogRepo) RoomsOfType(ctx context.Context, hotelID int64, t domain.RoomType, status domain.RoomStatus) ([]domain.Room, error) {
	return c.queryRooms(ctx, roomsOfTypeSQL, hotelID, string(t), string(status))
}

func (c *catalogRepo) CountRooms(ctx context.Context, hotelID int64) (int, error) {
	var n int
	err := c.q.QueryRowContext(ctx, countRoomsSQL, hotelID).Scan(&n)
	return n, mapErr(err)
}

func (c *catalogRepo) RoomNumberTaken(ctx context.Context, hotelID int64, number string, exceptID int64) (bool, error) {
	var taken bool
	err := c.q.QueryRowContext(ctx, roomNumberTakenSQL, hotelID, number, exceptID).Scan(&taken)
	return taken, mapErr(err)
}

func (c *catalogRepo) CreateRoom(ctx context.Context, r *domain.Room) error {
	res, err := c.q.ExecContext(ctx, insertRoomSQL,
		r.HotelID, r.Number, string(r.Type), r.Price, string(r.Status), valJSON(r.Images))
	if err != nil {
		return mapErr(err)
	}
	r.ID, err = res.LastInsertId()
	return mapErr(err)
}

func (c *catalogRepo) UpdateRoom(ctx context.Context, r domain.Room) error {
	res, err := c.q.ExecContext(ctx, updateRoomSQL,
		r.Number, string(r.Type), r.Price, string(r.Status), valJSON(r.Images), r.ID)
	if err != nil {
		return mapErr(err)
	}
	return affected(res, "room", r.ID)
}

func (c *catalogRepo) DeleteRoom(ctx context.Context, id int64) error {
	return deleteByID(ctx, c.q, deleteRoomSQL, "room", id)
}

// -----------------------------------------------------------------------------
// LEDGER
// -----------------------------------------------------------------------------

type ledgerRepo struct {
	q  querier
	db *sql.DB // set outside a unit of work; multi-statement writes open their own tx
}

func scanReservation(s scanner) (domain.Reservation, error) {
	var r domain.Reservation
	var state string
	if err := s.Scan(&r.ID, &r.HotelID, &r.Interval.Start, &r.Interval.End, &state,
		&r.Customer.ID, &r.Customer.Name, &r.Customer.Email, &r.CreatedAt); err != nil {
		return domain.Reservation{}, err
	}
	r.State = domain.ReservationState(state)
	r.Interval.Start, r.Interval.End = domain.Day(r.Interval.Start), domain.Day(r.Interval.End)
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

func (l *ledgerRepo) Insert(ctx context.Context, r *domain.Reservation) error {
	if len(r.RoomIDs) == 0 {
		return domain.Invalid("at least one room must be selected")
	}
	if l.db != nil {
		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			return mapErr(err)
		}
		if err := (&ledgerRepo{q: tx}).Insert(ctx, r); err != nil {
			_ = tx.Rollback()
			return err
		}
		return mapErr(tx.Commit())
	}

	res, err := l.q.ExecContext(ctx, insertReservationSQL,
		r.HotelID,
		r.Interval.Start.Format(domain.DateLayout),
		r.Interval.End.Format(domain.DateLayout),
		string(r.State),
		r.Customer.ID, r.Customer.Name, r.Customer.Email,
		r.CreatedAt.UTC(),
	)
	if err != nil {
		return mapErr(err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return mapErr(err)
	}

	values := make([]string, 0, len(r.RoomIDs))
	args := make([]any, 0, len(r.RoomIDs)*2)
	for _, id := range r.RoomIDs {
		values = append(values, "(?,?)")
		args = append(args, r.ID, id)
	}
	_, err = l.q.ExecContext(ctx, insertReservationRoomsPrefix+strings.Join(values, ","), args...)
	return mapErr(err)
}

func (l *ledgerRepo) Get(ctx context.Context, id int64) (domain.Reservation, error) {
	r, err := scanReservation(l.q.QueryRowContext(ctx, getReservationSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reservation{}, domain.NotFound("reservation", id)
	}
	if err != nil {
		return domain.Reservation{}, mapErr(err)
	}
	out := []domain.Reservation{r}
	if err := l.attachRooms(ctx, out); err != nil {
		return domain.Reservation{}, err
	}
	return out[0], nil
}

func (l *ledgerRepo) query(ctx context.Context, query string, args ...any) ([]domain.Reservation, error) {
	rows, err := l.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	out := []domain.Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			rows.Close()
			return nil, mapErr(err)
		}
		out = append(out, r)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, mapErr(err)
	}
	if err := l.attachRooms(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachRooms fills RoomIDs for a batch with one IN query.
func (l *ledgerRepo) attachRooms(ctx context.Context, rs []domain.Reservation) error {
	if len(rs) == 0 {
		return nil
	}
	ids := make([]int64, len(rs))
	idx := make(map[int64]int, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
		idx[r.ID] = i
	}
	ph, args := inList(ids)
	rows, err := l.q.QueryContext(ctx, reservationRoomsPrefix+ph+") ORDER BY reservation_id, room_id", args...)
	if err != nil {
		return mapErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var resID, roomID int64
		if err := rows.Scan(&resID, &roomID); err != nil {
			return mapErr(err)
		}
		i := idx[resID]
		rs[i].RoomIDs = append(rs[i].RoomIDs, roomID)
	}
	return mapErr(rows.Err())
}

func (l *ledgerRepo) List(ctx context.Context, q domain.ReservationsQuery) ([]domain.Reservation, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = math.MaxInt32
	}
	return l.query(ctx, listReservationsSQL, q.HotelID, q.HotelID, q.CustomerID, q.CustomerID, limit)
}

func (l *ledgerRepo) ActiveOverlapping(ctx context.Context, hotelID int64, iv domain.Interval) ([]domain.Reservation, error) {
	return l.query(ctx, activeOverlappingSQL, hotelID,
		iv.End.Format(domain.DateLayout), iv.Start.Format(domain.DateLayout))
}

func (l *ledgerRepo) ActiveEndingBy(ctx context.Context, hotelID int64, day time.Time) ([]domain.Reservation, error) {
	return l.query(ctx, activeEndingBySQL, hotelID, day.Format(domain.DateLayout))
}

func (l *ledgerRepo) HasActiveForRoom(ctx context.Context, roomID int64) (bool, error) {
	var busy bool
	err := l.q.QueryRowContext(ctx, hasActiveForRoomSQL, roomID).Scan(&busy)
	return busy, mapErr(err)
}

func (l *ledgerRepo) UpdateState(ctx context.Context, id int64, state domain.ReservationState) error {
	res, err := l.q.ExecContext(ctx, updateReservationStateSQL, string(state), id)
	if err != nil {
		return mapErr(err)
	}
	return affected(res, "reservation", id)
}

func (l *ledgerRepo) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, l.q, deleteReservationSQL, "reservation", id)
}

func deleteByID(ctx context.Context, q querier, stmt, resource string, id int64) error {
	res, err := q.ExecContext(ctx, stmt, id)
	if err != nil {
		return mapErr(err)
	}
	return affected(res, resource, id)
}

// affected maps zero matched rows to not found. Open enables ClientFoundRows,
// so an UPDATE that changes nothing still counts its row.
func affected(res sql.Result, resource string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return domain.NotFound(resource, id)
	}
	return nil
}

func inList(ids []int64) (string, []any) {
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = "?"
		args[i] = id
	}
	return strings.Join(ph, ","), args
}
