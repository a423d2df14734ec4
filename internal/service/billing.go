package service

import (
	"errors"
	"math"
	"strconv"
	"time"

	"parksync/internal/db"
)

const (
	UnknownLotName    = "Unknown Lot"
	UnknownSpotNumber = "N/A"
)

// CalculateDurationHours is the elapsed time between start and end (or now
// while the reservation is active) in fractional hours, never negative.
func CalculateDurationHours(res *db.Reservation, now time.Time) float64 {
	end := now
	if res.EndTime != nil {
		end = *res.EndTime
	}
	hours := end.Sub(res.StartTime).Hours()
	if hours < 0 {
		return 0
	}
	return hours
}

// EffectivePrice is the hourly price a reservation is billed at: the snapshot
// when captured and non-zero, otherwise the live lot price, otherwise 0.
func EffectivePrice(res *db.Reservation) float64 {
	if res.PricePerHourSnapshot != nil && *res.PricePerHourSnapshot != 0 {
		return *res.PricePerHourSnapshot
	}
	if res.LivePricePerHour != nil && *res.LivePricePerHour != 0 {
		return *res.LivePricePerHour
	}
	return 0
}

// CalculateCost bills duration times price, rounded half to even to whole
// currency units. It never fails; unusable data bills as 0.
func CalculateCost(res *db.Reservation, now time.Time) int64 {
	cost, err := CostOf(res, now)
	if err != nil {
		return 0
	}
	return cost
}

var (
	errMissingStart = errors.New("reservation has no start time")
	errBadPrice     = errors.New("reservation price is not a finite non-negative number")
)

// CostOf is CalculateCost for callers that need to tell corrupt records apart
// from free ones.
func CostOf(res *db.Reservation, now time.Time) (int64, error) {
	if res.StartTime.IsZero() {
		return 0, errMissingStart
	}
	price := EffectivePrice(res)
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return 0, errBadPrice
	}
	return int64(math.RoundToEven(CalculateDurationHours(res, now) * price)), nil
}

// LotName is the lot name to display: snapshot, then live, then a placeholder.
func LotName(res *db.Reservation) string {
	if res.LotNameSnapshot != nil && *res.LotNameSnapshot != "" {
		return *res.LotNameSnapshot
	}
	if res.LiveLotName != nil {
		return *res.LiveLotName
	}
	return UnknownLotName
}

// SpotNumber is the spot number to display: snapshot, then live, then "N/A".
func SpotNumber(res *db.Reservation) string {
	if res.SpotNumberSnapshot != nil {
		return strconv.Itoa(*res.SpotNumberSnapshot)
	}
	if res.LiveSpotNumber != nil {
		return strconv.Itoa(*res.LiveSpotNumber)
	}
	return UnknownSpotNumber
}
