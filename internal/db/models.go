package db

import "time"

type User struct {
	ID           int64
	Username     string
	Email        string
	Phone        string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

type ParkingLot struct {
	ID           int64
	Name         string
	TotalSpots   int
	PricePerHour float64
	CreatedAt    time.Time
}

// LotSummary is a lot together with the occupancy of its spots.
type LotSummary struct {
	ParkingLot
	SpotCount   int
	BookedSpots int
}

func (s LotSummary) AvailableSpots() int {
	return s.SpotCount - s.BookedSpots
}

type ParkingSpot struct {
	ID         int64
	LotID      int64
	SpotNumber int
	IsBooked   bool
}

// Reservation mirrors the reservations table. The Live* fields are resolved
// through the spot and its lot when the row is read; they are nil once either
// has been deleted, which is why the snapshot fields exist.
type Reservation struct {
	ID            int64
	UserID        int64
	SpotID        *int64
	VehicleNumber string
	StartTime     time.Time
	EndTime       *time.Time
	IsActive      bool

	LotNameSnapshot      *string
	SpotNumberSnapshot   *int
	PricePerHourSnapshot *float64

	LiveLotID        *int64
	LiveLotName      *string
	LiveSpotNumber   *int
	LivePricePerHour *float64
}

// HasSnapshot reports whether every snapshot field has been captured.
func (r *Reservation) HasSnapshot() bool {
	return r.LotNameSnapshot != nil && r.SpotNumberSnapshot != nil && r.PricePerHourSnapshot != nil
}

type Payment struct {
	ID                int64
	ReservationID     int64
	Amount            int64
	IsPaid            bool
	PaymentDate       *time.Time
	CheckoutSessionID *string
	CreatedAt         time.Time
}
