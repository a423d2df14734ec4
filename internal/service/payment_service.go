package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"parksync/internal/auth"
	"parksync/internal/db"
	"parksync/internal/entities"
	apperrors "parksync/internal/errors"
	"parksync/internal/metrics"
	"parksync/internal/repository"
)

const (
	settledManual = "manual"
	settledOnline = "online"
)

// CheckoutSessionRequest describes one hosted payment page.
type CheckoutSessionRequest struct {
	PaymentID     int64
	Amount        int64
	Currency      string
	Description   string
	CustomerEmail string
}

// PaymentGateway creates hosted checkout pages for online payment.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (url, sessionID string, err error)
}

type PaymentService struct {
	store    repository.Store
	gateway  PaymentGateway
	currency string
	log      logrus.FieldLogger
	now      Clock
}

// NewPaymentService builds the billing service. A nil gateway disables online
// payment.
func NewPaymentService(store repository.Store, gateway PaymentGateway, currency string, log logrus.FieldLogger, now Clock) *PaymentService {
	return &PaymentService{
		store:    store,
		gateway:  gateway,
		currency: currency,
		log:      orLogger(log),
		now:      orClock(now),
	}
}

// loadOwned returns the payment and its reservation after checking that actor
// may perform op on it.
func loadOwned(ctx context.Context, tx repository.Tx, op string, actor auth.Actor, authOp auth.Op, paymentID int64, forUpdate bool) (*db.Payment, *db.Reservation, error) {
	get := tx.Payments().GetByID
	if forUpdate {
		get = tx.Payments().GetByIDForUpdate
	}
	payment, err := get(ctx, paymentID)
	if err != nil {
		return nil, nil, storageErr(op, err, "payment")
	}
	res, err := tx.Reservations().GetByID(ctx, payment.ReservationID)
	if err != nil {
		return nil, nil, storageErr(op, err, "reservation")
	}
	if err := auth.Authorize(actor, authOp, auth.OwnedBy(res.UserID)); err != nil {
		return nil, nil, err
	}
	return payment, res, nil
}

// MarkPaid settles an unpaid payment.
func (s *PaymentService) MarkPaid(ctx context.Context, actor auth.Actor, paymentID int64) (*db.Payment, error) {
	const op = "service.PaymentService.MarkPaid"

	var out *db.Payment
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		payment, _, err := loadOwned(ctx, tx, op, actor, auth.OpPayPayment, paymentID, true)
		if err != nil {
			return err
		}
		out, err = s.settle(ctx, tx, op, payment)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.settled(out, settledManual)
	return out, nil
}

func (s *PaymentService) settle(ctx context.Context, tx repository.Tx, op string, payment *db.Payment) (*db.Payment, error) {
	if payment.IsPaid {
		return nil, apperrors.Conflict(op, "payment has already been paid")
	}
	now := s.now()
	ok, err := tx.Payments().MarkPaid(ctx, payment.ID, now)
	if err != nil {
		return nil, storageErr(op, err, "payment")
	}
	if !ok {
		return nil, apperrors.Conflict(op, "payment has already been paid")
	}
	payment.IsPaid = true
	payment.PaymentDate = &now
	return payment, nil
}

func (s *PaymentService) settled(p *db.Payment, method string) {
	metrics.PaymentSettled(method)
	s.log.WithFields(logrus.Fields{
		"payment_id":     p.ID,
		"reservation_id": p.ReservationID,
		"amount":         p.Amount,
		"method":         method,
	}).Info("payment settled")
}

// DeferPayment records the customer's choice to pay later. The payment stays
// unpaid.
func (s *PaymentService) DeferPayment(ctx context.Context, actor auth.Actor, paymentID int64) (*db.Payment, error) {
	const op = "service.PaymentService.DeferPayment"

	var out *db.Payment
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		payment, _, err := loadOwned(ctx, tx, op, actor, auth.OpPayPayment, paymentID, false)
		out = payment
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("payment_id", out.ID).Debug("payment deferred")
	return out, nil
}

// Options returns the payment together with its reservation.
func (s *PaymentService) Options(ctx context.Context, actor auth.Actor, paymentID int64) (*entities.PaymentOptions, error) {
	const op = "service.PaymentService.Options"

	var out *entities.PaymentOptions
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		payment, res, err := loadOwned(ctx, tx, op, actor, auth.OpViewPayment, paymentID, false)
		if err != nil {
			return err
		}
		out = &entities.PaymentOptions{
			Payment:         PaymentView(payment),
			Reservation:     ReservationView(res, s.now()),
			OnlineAvailable: s.gateway != nil && !payment.IsPaid && payment.Amount > 0,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PayOnline opens a hosted checkout page for an unpaid payment and returns
// its URL. The payment is settled later by ConfirmCheckoutSession.
func (s *PaymentService) PayOnline(ctx context.Context, actor auth.Actor, paymentID int64) (string, error) {
	const op = "service.PaymentService.PayOnline"

	if s.gateway == nil {
		return "", apperrors.Validation(op, "online payment is not available")
	}

	var req CheckoutSessionRequest
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		payment, res, err := loadOwned(ctx, tx, op, actor, auth.OpPayPayment, paymentID, false)
		if err != nil {
			return err
		}
		if payment.IsPaid {
			return apperrors.Conflict(op, "payment has already been paid")
		}
		if payment.Amount <= 0 {
			return apperrors.Validation(op, "nothing to pay")
		}
		user, err := tx.Users().GetByID(ctx, res.UserID)
		if err != nil {
			return storageErr(op, err, "user")
		}
		req = CheckoutSessionRequest{
			PaymentID:     payment.ID,
			Amount:        payment.Amount,
			Currency:      s.currency,
			Description:   fmt.Sprintf("Parking at %s, spot %s (%s)", LotName(res), SpotNumber(res), res.VehicleNumber),
			CustomerEmail: user.Email,
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	url, sessionID, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		return "", apperrors.Internal(op, err)
	}

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := tx.Payments().SetCheckoutSession(ctx, paymentID, sessionID); err != nil {
			return storageErr(op, err, "checkout session")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	s.log.WithFields(logrus.Fields{"payment_id": paymentID, "session_id": sessionID}).Info("checkout session created")
	return url, nil
}

// CompletedCheckout identifies a paid checkout session and the payment it was
// opened for. PaymentID is zero when the session carries no reference.
type CompletedCheckout struct {
	SessionID string
	PaymentID int64
}

// ConfirmCheckoutSession settles the payment linked to a completed checkout
// session. A session that is no longer the payment's latest one is matched by
// its payment reference. Repeated confirmations of a paid payment are ignored.
func (s *PaymentService) ConfirmCheckoutSession(ctx context.Context, actor auth.Actor, done CompletedCheckout) (*db.Payment, error) {
	const op = "service.PaymentService.ConfirmCheckoutSession"

	var out *db.Payment
	var changed bool
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		payment, err := tx.Payments().GetByCheckoutSession(ctx, done.SessionID)
		if errors.Is(err, repository.ErrNotFound) && done.PaymentID != 0 {
			payment, err = tx.Payments().GetByIDForUpdate(ctx, done.PaymentID)
		}
		if err != nil {
			return storageErr(op, err, "payment for checkout session")
		}
		res, err := tx.Reservations().GetByID(ctx, payment.ReservationID)
		if err != nil {
			return storageErr(op, err, "reservation")
		}
		if err := auth.Authorize(actor, auth.OpPayPayment, auth.OwnedBy(res.UserID)); err != nil {
			return err
		}
		if payment.IsPaid {
			out = payment
			return nil
		}
		if payment.CheckoutSessionID == nil || *payment.CheckoutSessionID != done.SessionID {
			if err := tx.Payments().SetCheckoutSession(ctx, payment.ID, done.SessionID); err != nil {
				return storageErr(op, err, "checkout session")
			}
			sessionID := done.SessionID
			payment.CheckoutSessionID = &sessionID
		}
		out, err = s.settle(ctx, tx, op, payment)
		if apperrors.Is(err, apperrors.KindConflict) {
			out, err = tx.Payments().GetByID(ctx, payment.ID)
			return storageErr(op, err, "payment")
		}
		changed = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.settled(out, settledOnline)
	}
	return out, nil
}
