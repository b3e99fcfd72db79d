package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"hotel_inventory/internal/domain"
)

type problem struct {
	Type   string   `json:"type"`
	Title  string   `json:"title"`
	Status int      `json:"status"`
	Detail string   `json:"detail,omitempty"`
	Rooms  []string `json:"rooms,omitempty"`
}

func writeProblem(w http.ResponseWriter, status int, title, detail string, rooms []string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Rooms: rooms}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps the domain taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	var nf *domain.NotFoundError
	switch {
	case errors.As(err, &ve):
		writeProblem(w, http.StatusBadRequest, "Validation Failed", ve.Reason, ve.Rooms)
	case errors.As(err, &nf):
		writeProblem(w, http.StatusNotFound, "Not Found", nf.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), nil)
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "Validation Failed", err.Error(), nil)
	case errors.Is(err, domain.ErrConcurrencyConflict):
		writeProblem(w, http.StatusConflict, "Conflict", "concurrent update, retry the request", nil)
	case errors.Is(err, domain.ErrStoreUnavailable):
		log.Error().Err(err).Str("path", r.URL.Path).Msg("store unavailable")
		writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "storage is temporarily unavailable", nil)
	case errors.Is(err, domain.ErrObjectStore):
		log.Error().Err(err).Str("path", r.URL.Path).Msg("object store failure")
		writeProblem(w, http.StatusBadGateway, "Bad Gateway", "image storage failed", nil)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "request cancelled or timed out", nil)
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error", nil)
	}
}
