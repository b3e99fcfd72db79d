//go:build integration

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"hotel_inventory/internal/app"
	"hotel_inventory/internal/domain"
	mysqlstore "hotel_inventory/internal/storage/mysql"
)

func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir()

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir %s: %v", dir, err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

// startMySQL runs an isolated MySQL container; Docker picks a free host port.
func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	pool.MaxWait = 2 * time.Minute

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=inventory",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/inventory?multiStatements=true&charset=utf8mb4",
		resource.GetPort("3306/tcp"))

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = mysqlstore.Open(dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

func TestStore_MySQL_BookingFlow(t *testing.T) {
	db := startMySQL(t)
	store := mysqlstore.New(db)
	ctx := context.Background()
	now := func() time.Time { return time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC) }

	catalog := app.NewCatalogService(store, nil, 0)
	reservations := app.NewReservationService(store, now)
	availability := app.NewAvailabilityService(store, now)

	h, err := catalog.CreateHotel(ctx, domain.Hotel{Name: "Integration Inn", City: "Lisbon"})
	require.NoError(t, err)

	var rooms []domain.Room
	for _, n := range []string{"101", "102", "103"} {
		r, err := catalog.CreateRoom(ctx, domain.Room{HotelID: h.ID, Number: n, Type: domain.RoomDouble, Price: 120})
		require.NoError(t, err)
		rooms = append(rooms, r)
	}

	_, err = catalog.CreateRoom(ctx, domain.Room{HotelID: h.ID, Number: "101", Type: domain.RoomSingle, Price: 90})
	require.ErrorIs(t, err, domain.ErrValidation)

	iv, err := domain.NewInterval("2025-12-10", "2025-12-12")
	require.NoError(t, err)
	customer := domain.Customer{ID: "c-1", Name: "Ada", Email: "ada@example.com"}

	res, err := reservations.Create(ctx, app.CreateReservation{
		HotelID: h.ID, RoomIDs: []int64{rooms[0].ID, rooms[1].ID}, Interval: iv, Customer: customer,
	})
	require.NoError(t, err)

	got, err := reservations.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.RoomIDs, got.RoomIDs)
	assert.True(t, res.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, iv.Start.Equal(got.Interval.Start))

	avail, err := availability.Resolve(ctx, h.ID, "double", iv)
	require.NoError(t, err)
	require.Equal(t, 1, avail.Count)
	assert.Equal(t, "103", avail.Rooms[0].Number)

	_, err = reservations.Cancel(ctx, res.ID)
	require.NoError(t, err)
	_, err = reservations.Cancel(ctx, res.ID)
	require.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, catalog.DeleteRoom(ctx, rooms[0].ID))
	require.NoError(t, reservations.Delete(ctx, res.ID))
	require.ErrorIs(t, reservations.Delete(ctx, res.ID), domain.ErrNotFound)
}

func TestStore_MySQL_NoDoubleBookingUnderContention(t *testing.T) {
	db := startMySQL(t)
	store := mysqlstore.New(db)
	ctx := context.Background()
	now := func() time.Time { return time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC) }

	catalog := app.NewCatalogService(store, nil, 0)
	reservations := app.NewReservationService(store, now)

	h, err := catalog.CreateHotel(ctx, domain.Hotel{Name: "Contended"})
	require.NoError(t, err)
	room, err := catalog.CreateRoom(ctx, domain.Room{HotelID: h.ID, Number: "1", Type: domain.RoomSingle, Price: 50})
	require.NoError(t, err)
	iv, _ := domain.NewInterval("2025-12-20", "2025-12-22")

	const callers = 8
	results := make([]error, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			_, results[i] = reservations.Create(ctx, app.CreateReservation{
				HotelID: h.ID, RoomIDs: []int64{room.ID}, Interval: iv,
				Customer: domain.Customer{ID: fmt.Sprint(i), Name: "n", Email: "e@x"},
			})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	ok := 0
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrValidation):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
}
