package httpserver

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"hotel_inventory/internal/adapters/export"
	"hotel_inventory/internal/app"
	"hotel_inventory/internal/domain"
)

const maxJSONBody = 1 << 20

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Catalog      *app.CatalogService
	Availability *app.AvailabilityService
	Reservations *app.ReservationService
	Images       *app.ImageService // nil disables upload routes
	Health       Pinger
	MaxUpload    int64
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", h.healthz)

	s.mux.Route("/v1", func(r chi.Router) {
		r.Get("/hotels", h.listHotels)
		r.Get("/hotels/{id}", h.getHotel)
		r.Get("/hotels/{id}/rooms", h.listHotelRooms)
		r.Get("/hotels/{id}/availability", h.availability)
		r.Get("/hotels/{id}/reservations", h.listHotelReservations)
		r.Get("/hotels/{id}/reservations/export", h.exportHotelReservations)

		r.Get("/rooms/{id}", h.getRoom)

		r.Get("/reservations", h.listReservations)
		r.Get("/reservations/{id}", h.getReservation)
		r.Get("/customers/{customerId}/reservations", h.listCustomerReservations)

		r.Group(func(wr chi.Router) {
			wr.Use(s.writeLimit)

			wr.Post("/hotels", h.createHotel)
			wr.Put("/hotels/{id}", h.updateHotel)
			wr.Delete("/hotels/{id}", h.deleteHotel)

			wr.Post("/rooms", h.createRoom)
			wr.Put("/rooms/{id}", h.updateRoom)
			wr.Delete("/rooms/{id}", h.deleteRoom)

			wr.Post("/reservations", h.createReservation)
			wr.Patch("/reservations/{id}/cancel", h.cancelReservation)
			wr.Patch("/reservations/{id}/state", h.setReservationState)
			wr.Delete("/reservations/{id}", h.deleteReservation)

			if h.Images != nil {
				wr.Post("/hotels/{id}/images", h.uploadHotelImage)
				wr.Post("/rooms/{id}/images", h.uploadRoomImage)
			}
		})
	})
}

// ---- helpers ----

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number", nil)
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error(), nil)
		return false
	}
	return true
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	ls := r.URL.Query().Get("limit")
	if ls == "" {
		return 0, true
	}
	l, err := strconv.Atoi(ls)
	if err != nil || l <= 0 || l > 1000 {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 1000", nil)
		return 0, false
	}
	return l, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCacheable serves catalog views with a weak ETag and honours If-None-Match.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write body")
	}
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "store ping failed", nil)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ---- hotels ----

func (h *Handlers) listHotels(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	hs, err := h.Catalog.ListHotels(r.Context(), domain.HotelsQuery{Name: r.URL.Query().Get("name"), Limit: limit})
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]hotelDTO, len(hs))
	for i, x := range hs {
		out[i] = toHotelDTO(x)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getHotel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	hotel, err := h.Catalog.GetHotel(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, toHotelDTO(hotel))
}

func (h *Handlers) createHotel(w http.ResponseWriter, r *http.Request) {
	var in hotelInput
	if !decode(w, r, &in) {
		return
	}
	hotel, err := h.Catalog.CreateHotel(r.Context(), in.toDomain(0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/hotels/%d", hotel.ID))
	writeJSON(w, http.StatusCreated, toHotelDTO(hotel))
}

func (h *Handlers) updateHotel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in hotelInput
	if !decode(w, r, &in) {
		return
	}
	if err := h.Catalog.UpdateHotel(r.Context(), in.toDomain(id)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) deleteHotel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Catalog.DeleteHotel(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageDTO{Message: "hotel deleted"})
}

func (h *Handlers) listHotelRooms(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rooms, err := h.Catalog.ListRooms(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, toRoomDTOs(rooms))
}

func (h *Handlers) availability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	t, start, end := q.Get("type"), q.Get("start"), q.Get("end")
	if t == "" || start == "" || end == "" {
		writeProblem(w, http.StatusBadRequest, "Validation Failed", "type, start and end are required", nil)
		return
	}
	iv, err := domain.NewInterval(start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Availability.Resolve(r.Context(), id, t, iv)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt, _ := domain.ParseRoomType(t)
	writeJSON(w, http.StatusOK, toAvailabilityDTO(id, string(rt), iv, res))
}

// ---- rooms ----

func (h *Handlers) getRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	room, err := h.Catalog.GetRoom(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, toRoomDTO(room))
}

func (h *Handlers) createRoom(w http.ResponseWriter, r *http.Request) {
	var in roomInput
	if !decode(w, r, &in) {
		return
	}
	room, err := h.Catalog.CreateRoom(r.Context(), in.toDomain(0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/rooms/%d", room.ID))
	writeJSON(w, http.StatusCreated, toRoomDTO(room))
}

func (h *Handlers) updateRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in roomInput
	if !decode(w, r, &in) {
		return
	}
	if err := h.Catalog.UpdateRoom(r.Context(), in.toDomain(id)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) deleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Catalog.DeleteRoom(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageDTO{Message: "room deleted"})
}

// ---- reservations ----

func (h *Handlers) createReservation(w http.ResponseWriter, r *http.Request) {
	var in reservationInput
	if !decode(w, r, &in) {
		return
	}
	iv, err := domain.NewInterval(in.StartDate, in.EndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Reservations.Create(r.Context(), app.CreateReservation{
		HotelID:  in.HotelID,
		RoomIDs:  in.RoomIDs,
		Interval: iv,
		Customer: domain.Customer{
			ID:    strings.TrimSpace(in.Customer.ID),
			Name:  strings.TrimSpace(in.Customer.Name),
			Email: strings.TrimSpace(in.Customer.Email),
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/reservations/%d", res.ID))
	writeJSON(w, http.StatusCreated, toReservationDTO(res))
}

func (h *Handlers) getReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.Reservations.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTO(res))
}

func (h *Handlers) listReservations(w http.ResponseWriter, r *http.Request) {
	h.writeReservations(w, r, domain.ReservationsQuery{})
}

func (h *Handlers) listHotelReservations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h.writeReservations(w, r, domain.ReservationsQuery{HotelID: id})
}

func (h *Handlers) listCustomerReservations(w http.ResponseWriter, r *http.Request) {
	cid := strings.TrimSpace(chi.URLParam(r, "customerId"))
	if cid == "" {
		writeProblem(w, http.StatusBadRequest, "Validation Failed", "customer id is required", nil)
		return
	}
	h.writeReservations(w, r, domain.ReservationsQuery{CustomerID: cid})
}

func (h *Handlers) writeReservations(w http.ResponseWriter, r *http.Request, q domain.ReservationsQuery) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	q.Limit = limit
	rs, err := h.Reservations.List(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTOs(rs))
}

func (h *Handlers) exportHotelReservations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	hotel, err := h.Catalog.GetHotel(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rs, err := h.Reservations.List(r.Context(), domain.ReservationsQuery{HotelID: id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	rooms, err := h.Catalog.ListRooms(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	numbers := make(map[int64]string, len(rooms))
	for _, room := range rooms {
		numbers[room.ID] = room.Number
	}

	var buf bytes.Buffer
	if err := export.WriteReservations(&buf, hotel, numbers, rs); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="hotel-%d-reservations.xlsx"`, id))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, &buf); err != nil {
		log.Error().Err(err).Msg("failed to write export body")
	}
}

func (h *Handlers) cancelReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.Reservations.Cancel(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTO(res))
}

func (h *Handlers) setReservationState(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in stateInput
	if !decode(w, r, &in) {
		return
	}
	res, err := h.Reservations.SetState(r.Context(), id, in.State)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTO(res))
}

func (h *Handlers) deleteReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Reservations.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageDTO{Message: "reservation deleted"})
}

// ---- images ----

func (h *Handlers) uploadHotelImage(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, h.Images.AddHotelImage)
}

func (h *Handlers) uploadRoomImage(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, h.Images.AddRoomImage)
}

func (h *Handlers) upload(w http.ResponseWriter, r *http.Request, add func(context.Context, int64, app.ImageUpload) (string, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit := h.MaxUpload
	if limit <= 0 {
		limit = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "image exceeds upload limit", nil)
			return
		}
		writeProblem(w, http.StatusBadRequest, "Invalid Upload", "multipart field \"file\" is required", nil)
		return
	}
	defer file.Close()

	uri, err := add(r.Context(), id, app.ImageUpload{Filename: header.Filename, Body: file})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, imageDTO{URI: uri})
}
