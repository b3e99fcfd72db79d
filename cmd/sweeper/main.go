package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hotel_inventory/internal/adapters/observability"
	"hotel_inventory/internal/app"
	"hotel_inventory/internal/domain"
	"hotel_inventory/internal/shared"
	mysqlrepo "hotel_inventory/internal/storage/mysql"
)

// sweeper marks active reservations whose stay has ended as completed, one
// hotel per worker.
func main() {
	dayFlag := flag.String("day", "", "complete reservations ending on or before this date (YYYY-MM-DD), default today")
	flag.Parse()

	_ = godotenv.Load()
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, observability.FileSink{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})

	day := domain.Day(time.Now().UTC())
	if *dayFlag != "" {
		d, err := domain.ParseDate(*dayFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid -day")
		}
		day = d
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("day", day.Format(domain.DateLayout)).
		Int("workers", cfg.SweepWorkers).
		Msg("sweeper starting")

	db, err := mysqlrepo.Open(cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("mysql open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	store := mysqlrepo.New(db)
	hotels, err := store.Catalog().ListHotels(ctx, domain.HotelsQuery{})
	if err != nil {
		log.Fatal().Err(err).Msg("list hotels failed")
	}

	completed, failed := sweep(ctx, app.NewReservationService(store, time.Now), hotels, day, cfg.SweepWorkers)
	log.Info().
		Int("hotels", len(hotels)).
		Int64("completed", completed).
		Int64("failed", failed).
		Msg("sweep completed")
	if failed > 0 {
		os.Exit(1)
	}
}

func sweep(ctx context.Context, svc *app.ReservationService, hotels []domain.Hotel, day time.Time, workers int) (completed, failed int64) {
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	var done, errs atomic.Int64

	for _, h := range hotels {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("sweep interrupted")
			break
		}

		wg.Add(1)
		go func(hotelID int64) {
			defer wg.Done()
			defer sem.Release(1)

			n, err := svc.CompleteElapsed(ctx, hotelID, day)
			if err != nil {
				errs.Add(1)
				log.Warn().Int64("hotel_id", hotelID).Err(err).Msg("sweep failed")
				return
			}
			done.Add(int64(n))
			if n > 0 {
				log.Info().Int64("hotel_id", hotelID).Int("completed", n).Msg("reservations completed")
			}
		}(h.ID)
	}

	wg.Wait()
	return done.Load(), errs.Load()
}
