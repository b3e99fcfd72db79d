package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"hotel_inventory/internal/domain"
)

// MySQL error numbers the store reacts to.
const (
	errDupEntry        = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
	errRowIsReferenced = 1451
	errNoReferencedRow = 1452
)

// Open parses dsn and forces the options the store depends on: DATE/DATETIME
// as UTC time.Time and matched (not changed) rows in RowsAffected.
func Open(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	conn, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(conn)
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Catalog() domain.CatalogRepository     { return &catalogRepo{q: s.db} }
func (s *Store) Ledger() domain.ReservationRepository { return &ledgerRepo{q: s.db, db: s.db} }

func (s *Store) Ping(ctx context.Context) error { return mapErr(s.db.PingContext(ctx)) }

// Begin opens a READ COMMITTED transaction. Serialisation comes from the
// hotel row lock, not from the isolation level.
func (s *Store) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, mapErr(err)
	}
	return &unitOfWork{tx: tx}, nil
}

type unitOfWork struct{ tx *sql.Tx }

func (u *unitOfWork) Catalog() domain.CatalogRepository     { return &catalogRepo{q: u.tx} }
func (u *unitOfWork) Ledger() domain.ReservationRepository { return &ledgerRepo{q: u.tx} }

func (u *unitOfWork) LockHotel(ctx context.Context, hotelID int64) (domain.Hotel, error) {
	h, err := scanHotel(u.tx.QueryRowContext(ctx, lockHotelSQL, hotelID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Hotel{}, domain.NotFound("hotel", hotelID)
	}
	return h, mapErr(err)
}

func (u *unitOfWork) Commit() error { return mapErr(u.tx.Commit()) }

func (u *unitOfWork) Rollback() error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return mapErr(err)
	}
	return nil
}

// mapErr translates driver failures into the domain taxonomy.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errDeadlock, errLockWaitTimeout:
			return fmt.Errorf("%w: %v", domain.ErrConcurrencyConflict, err)
		case errDupEntry:
			return domain.Invalid("duplicate value: " + me.Message)
		case errRowIsReferenced:
			return domain.Invalid("record is still referenced")
		case errNoReferencedRow:
			return domain.Invalid("referenced record does not exist")
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ne net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) || errors.As(err, &ne) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return err
}
