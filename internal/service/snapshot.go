package service

import (
	"context"
	"errors"

	"parksync/internal/db"
	"parksync/internal/repository"
)

// TakeSnapshot copies lot name, spot number and hourly price into the empty
// snapshot fields of res. Captured fields are never overwritten. A nil spot or
// lot leaves res untouched. It reports whether any field changed.
func TakeSnapshot(res *db.Reservation, spot *db.ParkingSpot, lot *db.ParkingLot) bool {
	if res == nil || spot == nil || lot == nil {
		return false
	}
	changed := false
	if res.LotNameSnapshot == nil {
		name := lot.Name
		res.LotNameSnapshot = &name
		changed = true
	}
	if res.SpotNumberSnapshot == nil {
		number := spot.SpotNumber
		res.SpotNumberSnapshot = &number
		changed = true
	}
	if res.PricePerHourSnapshot == nil {
		price := lot.PricePerHour
		res.PricePerHourSnapshot = &price
		changed = true
	}
	return changed
}

// snapshotReservation resolves the spot and lot of res inside tx and persists
// any newly captured fields. A broken relation is not an error.
func snapshotReservation(ctx context.Context, tx repository.Tx, res *db.Reservation) (bool, error) {
	if res.SpotID == nil || res.HasSnapshot() {
		return false, nil
	}
	spot, err := tx.Spots().GetByID(ctx, *res.SpotID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	lot, err := tx.Lots().GetByID(ctx, spot.LotID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !TakeSnapshot(res, spot, lot) {
		return false, nil
	}
	return true, tx.Reservations().SaveSnapshot(ctx, res)
}
