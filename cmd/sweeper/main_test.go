package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel_inventory/internal/app"
	"hotel_inventory/internal/domain"
	"hotel_inventory/internal/storage/memory"
)

func TestSweepCompletesEndedStaysAcrossHotels(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	catalog := app.NewCatalogService(store, nil, 0)
	booked := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := app.NewReservationService(store, func() time.Time { return booked })

	var hotels []domain.Hotel
	for _, name := range []string{"North", "South", "East"} {
		h, err := catalog.CreateHotel(ctx, domain.Hotel{Name: name})
		require.NoError(t, err)
		room, err := catalog.CreateRoom(ctx, domain.Room{HotelID: h.ID, Number: "1", Type: domain.RoomSingle, Price: 70})
		require.NoError(t, err)
		for _, stay := range [][2]string{{"2025-01-02", "2025-01-04"}, {"2025-01-04", "2025-01-08"}} {
			iv, err := domain.NewInterval(stay[0], stay[1])
			require.NoError(t, err)
			_, err = svc.Create(ctx, app.CreateReservation{
				HotelID: h.ID, RoomIDs: []int64{room.ID}, Interval: iv,
				Customer: domain.Customer{ID: "c", Name: "n", Email: "e@x"},
			})
			require.NoError(t, err)
		}
		hotels = append(hotels, h)
	}
	hotels = append(hotels, domain.Hotel{ID: 404})

	done, failed := sweep(ctx, svc, hotels, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), 2)
	assert.Equal(t, int64(3), done)
	assert.Equal(t, int64(1), failed, "unknown hotels are reported, not fatal")

	done, failed = sweep(ctx, svc, hotels[:3], time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), 2)
	assert.Zero(t, done, "completed reservations are not touched again")
	assert.Zero(t, failed)
}
