// Package repository defines the storage contracts used by the services and
// their Postgres implementation. ErrNotFound and ErrDuplicate are the only
// storage failures callers are expected to branch on; anything else is an
// infrastructure error.
package repository

import (
	"context"
	"errors"
	"time"

	"parksync/internal/db"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a write violates a uniqueness constraint,
// including the one-active-reservation-per-user and per-spot indexes.
var ErrDuplicate = errors.New("duplicate record")

// Store opens units of work. fn runs inside a single transaction that is
// committed when fn returns nil and rolled back otherwise.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Users() UserRepository
	Lots() LotRepository
	Spots() SpotRepository
	Reservations() ReservationRepository
	Payments() PaymentRepository
}

type UserRepository interface {
	Create(ctx context.Context, u *db.User) error
	GetByID(ctx context.Context, id int64) (*db.User, error)
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	GetByUsername(ctx context.Context, username string) (*db.User, error)
}

type LotRepository interface {
	Create(ctx context.Context, lot *db.ParkingLot) error
	GetByID(ctx context.Context, id int64) (*db.ParkingLot, error)
	// GetByIDForUpdate locks the lot row until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*db.ParkingLot, error)
	List(ctx context.Context) ([]db.LotSummary, error)
	UpdateTotalSpots(ctx context.Context, id int64, total int) error
	Delete(ctx context.Context, id int64) error
}

type SpotRepository interface {
	CreateBatch(ctx context.Context, lotID int64, numbers []int) error
	GetByID(ctx context.Context, id int64) (*db.ParkingSpot, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*db.ParkingSpot, error)
	// FirstAvailable returns the lowest-numbered unbooked spot of the lot.
	FirstAvailable(ctx context.Context, lotID int64) (*db.ParkingSpot, error)
	ListByLot(ctx context.Context, lotID int64) ([]db.ParkingSpot, error)
	SetBooked(ctx context.Context, id int64, booked bool) error
	DeleteByIDs(ctx context.Context, ids []int64) error
}

type ReservationRepository interface {
	Create(ctx context.Context, r *db.Reservation) error
	GetByID(ctx context.Context, id int64) (*db.Reservation, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*db.Reservation, error)
	GetActiveByUser(ctx context.Context, userID int64) (*db.Reservation, error)
	ListByUser(ctx context.Context, userID int64) ([]db.Reservation, error)
	// ListAll returns every reservation, newest start time first.
	ListAll(ctx context.Context) ([]db.Reservation, error)
	ListActive(ctx context.Context) ([]db.Reservation, error)
	ListByLot(ctx context.Context, lotID int64) ([]db.Reservation, error)
	ListBySpots(ctx context.Context, spotIDs []int64) ([]db.Reservation, error)
	// ListMissingSnapshot returns reservations that still resolve their spot
	// but have at least one empty snapshot field.
	ListMissingSnapshot(ctx context.Context, limit int) ([]db.Reservation, error)
	Close(ctx context.Context, id int64, endTime time.Time) error
	SaveSnapshot(ctx context.Context, r *db.Reservation) error
}

type PaymentRepository interface {
	Create(ctx context.Context, p *db.Payment) error
	GetByID(ctx context.Context, id int64) (*db.Payment, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*db.Payment, error)
	GetByReservation(ctx context.Context, reservationID int64) (*db.Payment, error)
	GetByCheckoutSession(ctx context.Context, sessionID string) (*db.Payment, error)
	// ListByStatus returns paid payments by payment date (newest first) or
	// unpaid payments by creation date (oldest first).
	ListByStatus(ctx context.Context, paid bool) ([]db.Payment, error)
	ListUnpaidBefore(ctx context.Context, before time.Time) ([]db.Payment, error)
	// MarkPaid flips an unpaid payment to paid. It reports false when the
	// payment was already paid.
	MarkPaid(ctx context.Context, id int64, at time.Time) (bool, error)
	SetCheckoutSession(ctx context.Context, id int64, sessionID string) error
}
