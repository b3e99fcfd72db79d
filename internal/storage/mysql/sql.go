package mysql

// -----------------------------------------------------------------------------
// CATALOG
// -----------------------------------------------------------------------------

const hotelColumns = `id, name, city, address, status, images`

const getHotelSQL = `SELECT ` + hotelColumns + ` FROM hotels WHERE id = ?`

// Taken as the first statement of a unit of work; every writer of the hotel
// queues behind it until commit or rollback.
const lockHotelSQL = getHotelSQL + ` FOR UPDATE`

const listHotelsSQL = `
SELECT ` + hotelColumns + `
FROM hotels
WHERE (? = '' OR name LIKE CONCAT('%', ?, '%'))
ORDER BY id
LIMIT ?`

const insertHotelSQL = `
INSERT INTO hotels (name, city, address, status, images)
VALUES (?, ?, ?, ?, ?)`

const updateHotelSQL = `
UPDATE hotels
SET name = ?, city = ?, address = ?, status = ?, images = ?
WHERE id = ?`

const deleteHotelSQL = `DELETE FROM hotels WHERE id = ?`

const roomColumns = `id, hotel_id, number, type, price, status, images`

const getRoomSQL = `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`

const listRoomsSQL = `SELECT ` + roomColumns + ` FROM rooms WHERE hotel_id = ? ORDER BY number, id`

const roomsOfTypeSQL = `
SELECT ` + roomColumns + `
FROM rooms
WHERE hotel_id = ? AND type = ? AND status = ?
ORDER BY id`

const countRoomsSQL = `SELECT COUNT(*) FROM rooms WHERE hotel_id = ?`

const roomNumberTakenSQL = `
SELECT EXISTS (
  SELECT 1 FROM rooms WHERE hotel_id = ? AND number = ? AND id <> ?
)`

const insertRoomSQL = `
INSERT INTO rooms (hotel_id, number, type, price, status, images)
VALUES (?, ?, ?, ?, ?, ?)`

const updateRoomSQL = `
UPDATE rooms
SET number = ?, type = ?, price = ?, status = ?, images = ?
WHERE id = ?`

const deleteRoomSQL = `DELETE FROM rooms WHERE id = ?`

// -----------------------------------------------------------------------------
// LEDGER
// -----------------------------------------------------------------------------

const reservationColumns = `id, hotel_id, start_date, end_date, state, customer_id, customer_name, customer_email, created_at`

const insertReservationSQL = `
INSERT INTO reservations
  (hotel_id, start_date, end_date, state, customer_id, customer_name, customer_email, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)`

const insertReservationRoomsPrefix = "INSERT INTO reservation_rooms (reservation_id, room_id) VALUES "

const getReservationSQL = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`

const listReservationsSQL = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE (? = 0 OR hotel_id = ?)
  AND (? = '' OR customer_id = ?)
ORDER BY created_at DESC, id DESC
LIMIT ?`

// Half-open overlap: existing.start < query.end AND query.start < existing.end.
const activeOverlappingSQL = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE hotel_id = ? AND state = 'active' AND start_date < ? AND ? < end_date
ORDER BY id`

const activeEndingBySQL = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE hotel_id = ? AND state = 'active' AND end_date <= ?
ORDER BY id`

const hasActiveForRoomSQL = `
SELECT EXISTS (
  SELECT 1
  FROM reservation_rooms rr
  JOIN reservations r ON r.id = rr.reservation_id
  WHERE rr.room_id = ? AND r.state = 'active'
)`

const updateReservationStateSQL = `UPDATE reservations SET state = ? WHERE id = ?`

const deleteReservationSQL = `DELETE FROM reservations WHERE id = ?`

const reservationRoomsPrefix = "SELECT reservation_id, room_id FROM reservation_rooms WHERE reservation_id IN ("
