package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type Options struct {
	RequestTimeout time.Duration
	// WriteRPS limits POST/PUT/PATCH/DELETE across all clients; 0 disables it.
	WriteRPS   float64
	WriteBurst int
}

type Server struct {
	mux        *chi.Mux
	writeLimit func(http.Handler) http.Handler
}

func New(opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	m := chi.NewRouter()

	// All middlewares go here (before any routes are added)
	m.Use(chimw.RealIP)
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	m.Use(Timeout(opts.RequestTimeout))
	m.Use(Metrics)
	m.Use(Logger(log.Logger))

	s := &Server{mux: m, writeLimit: func(next http.Handler) http.Handler { return next }}
	if opts.WriteRPS > 0 {
		burst := opts.WriteBurst
		if burst < 1 {
			burst = 1
		}
		s.writeLimit = RateLimit(rate.NewLimiter(rate.Limit(opts.WriteRPS), burst))
	}
	return s
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g., /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
