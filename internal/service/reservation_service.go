package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator"
	"github.com/sirupsen/logrus"

	"parksync/internal/auth"
	"parksync/internal/db"
	"parksync/internal/entities"
	apperrors "parksync/internal/errors"
	"parksync/internal/metrics"
	"parksync/internal/repository"
	"parksync/internal/utils"
)

type ReservationService struct {
	store    repository.Store
	notifier Notifier
	validate *validator.Validate
	log      logrus.FieldLogger
	now      Clock
}

func NewReservationService(store repository.Store, notifier Notifier, log logrus.FieldLogger, now Clock) *ReservationService {
	return &ReservationService{
		store:    store,
		notifier: orNotifier(notifier),
		validate: validator.New(),
		log:      orLogger(log),
		now:      orClock(now),
	}
}

func (s *ReservationService) vehicleNumber(op, raw string) (string, error) {
	vehicle := utils.NormalizeVehicleNumber(raw)
	if err := s.validate.Var(vehicle, "min=3,max=20"); err != nil {
		return "", apperrors.Validation(op, "vehicle number must be between 3 and 20 characters")
	}
	return vehicle, nil
}

// Create books spotID for the actor.
func (s *ReservationService) Create(ctx context.Context, actor auth.Actor, spotID int64, vehicleNumber string) (*db.Reservation, error) {
	return s.createOnSpot(ctx, "service.ReservationService.Create", actor, 0, spotID, vehicleNumber)
}

// BookSpot is Create for a spot that must belong to lotID.
func (s *ReservationService) BookSpot(ctx context.Context, actor auth.Actor, lotID, spotID int64, vehicleNumber string) (*db.Reservation, error) {
	return s.createOnSpot(ctx, "service.ReservationService.BookSpot", actor, lotID, spotID, vehicleNumber)
}

func (s *ReservationService) createOnSpot(ctx context.Context, op string, actor auth.Actor, lotID, spotID int64, vehicleNumber string) (*db.Reservation, error) {
	if err := auth.Authorize(actor, auth.OpBook, auth.Resource{}); err != nil {
		return nil, err
	}
	vehicle, err := s.vehicleNumber(op, vehicleNumber)
	if err != nil {
		return nil, err
	}

	var res *db.Reservation
	var user *db.User
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		spot, err := tx.Spots().GetByIDForUpdate(ctx, spotID)
		if err != nil {
			return storageErr(op, err, "parking spot")
		}
		if lotID != 0 && spot.LotID != lotID {
			return apperrors.NotFound(op, "parking spot not found")
		}
		res, user, err = s.book(ctx, tx, op, actor, spot, vehicle)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.booked(user, res)
	return res, nil
}

// BookLot books the lowest-numbered free spot of lotID.
func (s *ReservationService) BookLot(ctx context.Context, actor auth.Actor, lotID int64, vehicleNumber string) (*db.Reservation, error) {
	const op = "service.ReservationService.BookLot"

	if err := auth.Authorize(actor, auth.OpBook, auth.Resource{}); err != nil {
		return nil, err
	}
	vehicle, err := s.vehicleNumber(op, vehicleNumber)
	if err != nil {
		return nil, err
	}

	var res *db.Reservation
	var user *db.User
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Lots().GetByID(ctx, lotID); err != nil {
			return storageErr(op, err, "parking lot")
		}
		if err := s.ensureNoActive(ctx, tx, op, actor.UserID); err != nil {
			return err
		}
		spot, err := tx.Spots().FirstAvailable(ctx, lotID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.Conflict(op, "parking lot is full")
		}
		if err != nil {
			return apperrors.Internal(op, err)
		}
		res, user, err = s.book(ctx, tx, op, actor, spot, vehicle)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.booked(user, res)
	return res, nil
}

func (s *ReservationService) ensureNoActive(ctx context.Context, tx repository.Tx, op string, userID int64) error {
	_, err := tx.Reservations().GetActiveByUser(ctx, userID)
	switch {
	case err == nil:
		return apperrors.Conflict(op, "you already have an active reservation")
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return apperrors.Internal(op, err)
	}
}

// book marks spot as booked and creates the snapshotted reservation. The
// partial unique indexes back up the checks against concurrent bookings.
func (s *ReservationService) book(ctx context.Context, tx repository.Tx, op string, actor auth.Actor, spot *db.ParkingSpot, vehicle string) (*db.Reservation, *db.User, error) {
	if err := s.ensureNoActive(ctx, tx, op, actor.UserID); err != nil {
		return nil, nil, err
	}
	if spot.IsBooked {
		return nil, nil, apperrors.Conflict(op, "spot %d is already booked", spot.SpotNumber)
	}
	user, err := tx.Users().GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, nil, storageErr(op, err, "user")
	}
	lot, err := tx.Lots().GetByID(ctx, spot.LotID)
	if err != nil {
		return nil, nil, storageErr(op, err, "parking lot")
	}

	if err := tx.Spots().SetBooked(ctx, spot.ID, true); err != nil {
		return nil, nil, storageErr(op, err, "parking spot")
	}
	spotID := spot.ID
	res := &db.Reservation{
		UserID:        actor.UserID,
		SpotID:        &spotID,
		VehicleNumber: vehicle,
		StartTime:     s.now(),
		IsActive:      true,
	}
	TakeSnapshot(res, spot, lot)
	if err := tx.Reservations().Create(ctx, res); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, apperrors.Conflict(op, "an active reservation already exists for this user or spot")
		}
		return nil, nil, apperrors.Internal(op, err)
	}

	created, err := tx.Reservations().GetByID(ctx, res.ID)
	if err != nil {
		return nil, nil, apperrors.Internal(op, err)
	}
	return created, user, nil
}

func (s *ReservationService) booked(user *db.User, res *db.Reservation) {
	metrics.ReservationCreated()
	s.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"user_id":        res.UserID,
		"spot_id":        *res.SpotID,
	}).Info("reservation created")
	s.notifier.ReservationBooked(*user, *res)
}

// Snapshot fills the missing snapshot fields of a reservation from its
// current spot and lot.
func (s *ReservationService) Snapshot(ctx context.Context, actor auth.Actor, reservationID int64) (*db.Reservation, error) {
	const op = "service.ReservationService.Snapshot"

	var out *db.Reservation
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		res, err := tx.Reservations().GetByIDForUpdate(ctx, reservationID)
		if err != nil {
			return storageErr(op, err, "reservation")
		}
		if err := auth.Authorize(actor, auth.OpSnapshot, auth.OwnedBy(res.UserID)); err != nil {
			return err
		}
		if _, err := snapshotReservation(ctx, tx, res); err != nil {
			return apperrors.Internal(op, err)
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Checkout closes an active reservation, frees its spot and bills it.
func (s *ReservationService) Checkout(ctx context.Context, actor auth.Actor, reservationID int64) (*db.Reservation, *db.Payment, error) {
	const op = "service.ReservationService.Checkout"

	var res *db.Reservation
	var payment *db.Payment
	var user *db.User
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.Reservations().GetByIDForUpdate(ctx, reservationID)
		if err != nil {
			return storageErr(op, err, "reservation")
		}
		if err := auth.Authorize(actor, auth.OpCheckout, auth.OwnedBy(res.UserID)); err != nil {
			return err
		}
		if !res.IsActive {
			return apperrors.Conflict(op, "reservation is not active")
		}

		now := s.now()
		res.EndTime = &now
		res.IsActive = false
		amount := CalculateCost(res, now)

		if err := tx.Reservations().Close(ctx, res.ID, now); err != nil {
			return storageErr(op, err, "reservation")
		}
		if res.SpotID != nil {
			err := tx.Spots().SetBooked(ctx, *res.SpotID, false)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return apperrors.Internal(op, err)
			}
		}

		payment = &db.Payment{ReservationID: res.ID, Amount: amount, CreatedAt: now}
		if err := tx.Payments().Create(ctx, payment); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.Conflict(op, "reservation has already been billed")
			}
			return apperrors.Internal(op, err)
		}

		user, err = tx.Users().GetByID(ctx, res.UserID)
		if err != nil {
			return storageErr(op, err, "user")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.CheckedOut(payment.Amount)
	s.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"user_id":        res.UserID,
		"payment_id":     payment.ID,
		"amount":         payment.Amount,
	}).Info("reservation checked out")
	s.notifier.ReservationCheckedOut(*user, *res, *payment)
	return res, payment, nil
}

// ActiveFor returns the actor's active reservation, or nil when there is none.
func (s *ReservationService) ActiveFor(ctx context.Context, actor auth.Actor) (*db.Reservation, error) {
	const op = "service.ReservationService.ActiveFor"

	if err := auth.Authorize(actor, auth.OpViewReservation, auth.OwnedBy(actor.UserID)); err != nil {
		return nil, err
	}
	var res *db.Reservation
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.Reservations().GetActiveByUser(ctx, actor.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			res = nil
			return nil
		}
		if err != nil {
			return apperrors.Internal(op, err)
		}
		return nil
	})
	return res, err
}

// Get returns one of the actor's reservations.
func (s *ReservationService) Get(ctx context.Context, actor auth.Actor, reservationID int64) (*db.Reservation, error) {
	const op = "service.ReservationService.Get"

	var res *db.Reservation
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.Reservations().GetByID(ctx, reservationID)
		if err != nil {
			return storageErr(op, err, "reservation")
		}
		return auth.Authorize(actor, auth.OpViewReservation, auth.OwnedBy(res.UserID))
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// History lists the actor's reservations with their payments, newest first.
func (s *ReservationService) History(ctx context.Context, actor auth.Actor) ([]entities.ReservationResponse, error) {
	const op = "service.ReservationService.History"

	if err := auth.Authorize(actor, auth.OpViewReservation, auth.OwnedBy(actor.UserID)); err != nil {
		return nil, err
	}
	var out []entities.ReservationResponse
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		out, err = s.history(ctx, tx, actor.UserID, false)
		if err != nil {
			return apperrors.Internal(op, err)
		}
		return nil
	})
	return out, err
}

func (s *ReservationService) history(ctx context.Context, tx repository.Tx, userID int64, skipActive bool) ([]entities.ReservationResponse, error) {
	list, err := tx.Reservations().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]entities.ReservationResponse, 0, len(list))
	for i := range list {
		res := &list[i]
		if skipActive && res.IsActive {
			continue
		}
		view := ReservationView(res, now)
		payment, err := tx.Payments().GetByReservation(ctx, res.ID)
		switch {
		case err == nil:
			pv := PaymentView(payment)
			view.Payment = &pv
		case !errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

// Dashboard is the customer landing view: lots with availability, the active
// reservation with its running cost and the previous reservations.
func (s *ReservationService) Dashboard(ctx context.Context, actor auth.Actor) (*entities.UserDashboard, error) {
	const op = "service.ReservationService.Dashboard"

	if err := auth.Authorize(actor, auth.OpViewReservation, auth.OwnedBy(actor.UserID)); err != nil {
		return nil, err
	}
	out := &entities.UserDashboard{}
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		lots, err := tx.Lots().List(ctx)
		if err != nil {
			return apperrors.Internal(op, err)
		}
		out.Lots = lotResponses(lots)

		active, err := tx.Reservations().GetActiveByUser(ctx, actor.UserID)
		switch {
		case err == nil:
			view := ReservationView(active, s.now())
			out.Active = &view
		case !errors.Is(err, repository.ErrNotFound):
			return apperrors.Internal(op, err)
		}

		out.History, err = s.history(ctx, tx, actor.UserID, true)
		if err != nil {
			return apperrors.Internal(op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListLots is the customer view of every lot and its free spots.
func (s *ReservationService) ListLots(ctx context.Context, actor auth.Actor) ([]entities.LotResponse, error) {
	const op = "service.ReservationService.ListLots"

	if err := auth.Authorize(actor, auth.OpBook, auth.Resource{}); err != nil {
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
