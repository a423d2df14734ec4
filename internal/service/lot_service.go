package service

import (
	"context"
	"sort"
	"strings"

	"github.com/go-playground/validator"
	"github.com/sirupsen/logrus"

	"parksync/internal/auth"
	"parksync/internal/db"
	"parksync/internal/entities"
	apperrors "parksync/internal/errors"
	"parksync/internal/repository"
)

const (
	MinSpots = 1
	MaxSpots = 500
)

type CreateLotInput struct {
	Name         string  `json:"name" validate:"required,max=100"`
	TotalSpots   int     `json:"total_spots" validate:"min=1,max=500"`
	PricePerHour float64 `json:"price_per_hour" validate:"gt=0"`
}

// LotService manages parking lots and their spots. Every operation requires
// the admin role.
type LotService struct {
	store    repository.Store
	validate *validator.Validate
	log      logrus.FieldLogger
	now      Clock
}

func NewLotService(store repository.Store, log logrus.FieldLogger, now Clock) *LotService {
	return &LotService{
		store:    store,
		validate: validator.New(),
		log:      orLogger(log),
		now:      orClock(now),
	}
}

// CreateLot creates a lot with spots numbered 1..TotalSpots.
func (s *LotService) CreateLot(ctx context.Context, actor auth.Actor, in CreateLotInput) (*entities.LotResponse, error) {
	const op = "service.LotService.CreateLot"

	if err := auth.Authorize(actor, auth.OpManageLots, auth.Resource{}); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return nil, apperrors.Validation(op, "name must be 1-100 characters, total_spots between %d and %d, price_per_hour greater than 0", MinSpots, MaxSpots)
	}

	lot := &db.ParkingLot{Name: in.Name, TotalSpots: in.TotalSpots, PricePerHour: in.PricePerHour, CreatedAt: s.now()}
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := tx.Lots().Create(ctx, lot); err != nil {
			return storageErr(op, err, "parking lot")
		}
		if err := tx.Spots().CreateBatch(ctx, lot.ID, sequence(1, in.TotalSpots)); err != nil {
			return storageErr(op, err, "parking spot")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"lot_id": lot.ID, "total_spots": lot.TotalSpots}).Info("parking lot created")
	out := lotResponse(db.LotSummary{ParkingLot: *lot, SpotCount: lot.TotalSpots})
	return &out, nil
}

func sequence(from, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = from + i
	}
	return out
}

// ResizeLot grows or shrinks a lot to newTotal spots. Growth appends numbers
// after the current maximum. Shrinking removes the highest-numbered unbooked
// spots after snapshotting their reservations; booked spots always stay.
func (s *LotService) ResizeLot(ctx context.Context, actor auth.Actor, lotID int64, newTotal int) (*entities.LotResponse, error) {
	const op = "service.LotService.ResizeLot"

	if err := auth.Authorize(actor, auth.OpManageLots, auth.Resource{}); err != nil {
		return nil, err
	}
	if newTotal < MinSpots || newTotal > MaxSpots {
		return nil, apperrors.Validation(op, "total_spots must be between %d and %d", MinSpots, MaxSpots)
	}

	var out entities.LotResponse
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		lot, err := tx.Lots().GetByIDForUpdate(ctx, lotID)
		if err != nil {
			return storageErr(op, err, "parking lot")
		}
		spots, err := tx.Spots().ListByLot(ctx, lotID)
		if err != nil {
			return apperrors.Internal(op, err)
		}

		booked, maxNumber := 0, 0
		for _, sp := range spots {
			if sp.IsBooked {
				booked++
			}
			if sp.SpotNumber > maxNumber {
				maxNumber = sp.SpotNumber
			}
		}
		if newTotal < booked {
			return apperrors.Conflict(op, "cannot reduce to %d spots while %d are booked", newTotal, booked)
		}

		switch current := len(spots); {
		case newTotal > current:
			if err := tx.Spots().CreateBatch(ctx, lotID, sequence(maxNumber+1, newTotal-current)); err != nil {
				return storageErr(op, err, "parking spot")
			}
		case newTotal < current:
			if err := s.removeSpots(ctx, tx, spots, current-newTotal); err != nil {
				return apperrors.Internal(op, err)
			}
		}

		if err := tx.Lots().UpdateTotalSpots(ctx, lotID, newTotal); err != nil {
			return storageErr(op, err, "parking lot")
		}
		lot.TotalSpots = newTotal
		out = lotResponse(db.LotSummary{ParkingLot: *lot, SpotCount: newTotal, BookedSpots: booked})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"lot_id": lotID, "total_spots": newTotal}).Info("parking lot resized")
	return &out, nil
}

// removeSpots deletes n unbooked spots, highest numbers first.
func (s *LotService) removeSpots(ctx context.Context, tx repository.Tx, spots []db.ParkingSpot, n int) error {
	sorted := append([]db.ParkingSpot(nil), spots...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SpotNumber > sorted[j].SpotNumber })

	ids := make([]int64, 0, n)
	for _, sp := range sorted {
		if len(ids) == n {
			break
		}
		if !sp.IsBooked {
			ids = append(ids, sp.ID)
		}
	}

	if err := s.snapshotAll(ctx, tx, func() ([]db.Reservation, error) {
		return tx.Reservations().ListBySpots(ctx, ids)
	}); err != nil {
		return err
	}
	return tx.Spots().DeleteByIDs(ctx, ids)
}

func (s *LotService) snapshotAll(ctx context.Context, tx repository.Tx, list func() ([]db.Reservation, error)) error {
	reservations, err := list()
	if err != nil {
		return err
	}
	for i := range reservations {
		if _, err := snapshotReservation(ctx, tx, &reservations[i]); err != nil {
			return err
		}
	}
	return nil
}

// DeleteLot removes a lot with no booked spots. Reservations of the lot keep
// their history through their snapshot fields.
func (s *LotService) DeleteLot(ctx context.Context, actor auth.Actor, lotID int64) error {
	const op = "service.LotService.DeleteLot"

	if err := auth.Authorize(actor, auth.OpManageLots, auth.Resource{}); err != nil {
		return err
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Lots().GetByIDForUpdate(ctx, lotID); err != nil {
			return storageErr(op, err, "parking lot")
		}
		spots, err := tx.Spots().ListByLot(ctx, lotID)
		if err != nil {
			return apperrors.Internal(op, err)
		}
		for _, sp := range spots {
			if sp.IsBooked {
				return apperrors.Conflict(op, "cannot delete parking lot: spot %d is booked", sp.SpotNumber)
			}
		}

		if err := s.snapshotAll(ctx, tx, func() ([]db.Reservation, error) {
			return tx.Reservations().ListByLot(ctx, lotID)
		}); err != nil {
			return apperrors.Internal(op, err)
		}
		if err := tx.Lots().Delete(ctx, lotID); err != nil {
			return storageErr(op, err, "parking lot")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithField("lot_id", lotID).Info("parking lot deleted")
	return nil
}

func (s *LotService) List(ctx context.Context, actor auth.Actor) ([]entities.LotResponse, error) {
	const op = "service.LotService.List"

	if err := auth.Authorize(actor, auth.OpManageLots, auth.Resource{}); err != nil {
		return nil, err
	}
	var out []entities.LotResponse
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		lots, err := tx.Lots().List(ctx)
		if err != nil {
			return apperrors.Internal(op, err)
		}
		out = lotResponses(lots)
		return nil
	})
	return out, err
}

// Grid returns every spot of a lot with its active reservation, if any.
func (s *LotService) Grid(ctx context.Context, actor auth.Actor, lotID int64) (*entities.LotGrid, error) {
	const op = "service.LotService.Grid"

	if err := auth.Authorize(actor, auth.OpManageLots, auth.Resource{}); err != nil {
		return nil, err
	}
	var out *entities.LotGrid
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		lot, err := tx.Lots().GetByID(ctx, lotID)
		if err != nil {
			return storageErr(op, err, "parking lot")
		}
		spots, err := tx.Spots().ListByLot(ctx, lotID)
		if err != nil {
			return apperrors.Internal(op, err)
		}
		reservations, err := tx.Reservations().ListByLot(ctx, lotID)
		if err != nil {
			return apperrors.Internal(op, err)
		}

		now := s.now()
		active := make(map[int64]entities.ReservationResponse)
		for i := range reservations {
			res := &reservations[i]
			if res.IsActive && res.SpotID != nil {
				active[*res.SpotID] = ReservationView(res, now)
			}
		}

		summary := db.LotSummary{ParkingLot: *lot, SpotCount: len(spots)}
		grid := &entities.LotGrid{Spots: make([]entities.SpotResponse, 0, len(spots))}
		for _, sp := range spots {
			view := entities.SpotResponse{ID: sp.ID, SpotNumber: sp.SpotNumber, IsBooked: sp.IsBooked}
			if sp.IsBooked {
				summary.BookedSpots++
			}
			if res, ok := active[sp.ID]; ok {
				view.Reservation = &res
			}
			grid.Spots = append(grid.Spots, view)
		}
		grid.Lot = lotResponse(summary)
		out = grid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
