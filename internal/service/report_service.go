package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"parksync/internal/auth"
	"parksync/internal/db"
	"parksync/internal/entities"
	"parksync/internal/repository"
)

// ReportService computes the admin dashboards. Totals are best-effort: an
// item that cannot be valued is listed in failed_items and left out of the
// total instead of failing the whole report.
type ReportService struct {
	store repository.Store
	log   logrus.FieldLogger
	now   Clock
}

func NewReportService(store repository.Store, log logrus.FieldLogger, now Clock) *ReportService {
	return &ReportService{store: store, log: orLogger(log), now: orClock(now)}
}

func reservationKey(r db.Reservation) int64 { return r.ID }
func paymentKey(p db.Payment) int64         { return p.ID }

func paymentAmount(p db.Payment) (int64, error) {
	if p.Amount < 0 {
		return 0, fmt.Errorf("negative amount %d", p.Amount)
	}
	return p.Amount, nil
}

func liveCost(now time.Time) func(db.Reservation) (int64, error) {
	return func(r db.Reservation) (int64, error) {
		return CostOf(&r, now)
	}
}

// totals holds the figures shared by several reports.
type totals struct {
	earnings  Aggregate
	dueUnpaid Aggregate
	dueActive Aggregate
	paid      []db.Payment
	unpaid    []db.Payment
	active    []db.Reservation
}

func (t totals) due() int64 { return t.dueUnpaid.Total + t.dueActive.Total }

func (t totals) failures() []ItemFailure {
	var out []ItemFailure
	out = append(out, t.earnings.Failures...)
	out = append(out, t.dueUnpaid.Failures...)
	out = append(out, t.dueActive.Failures...)
	return out
}

func (s *ReportService) totals(ctx context.Context, tx repository.Tx, now time.Time) (totals, error) {
	var t totals
	var err error
	if t.paid, err = tx.Payments().ListByStatus(ctx, true); err != nil {
		return t, err
	}
	if t.unpaid, err = tx.Payments().ListByStatus(ctx, false); err != nil {
		return t, err
	}
	if t.active, err = tx.Reservations().ListActive(ctx); err != nil {
		return t, err
	}
	t.earnings = SumBestEffort(t.paid, paymentKey, paymentAmount)
	t.dueUnpaid = SumBestEffort(t.unpaid, paymentKey, paymentAmount)
	t.dueActive = SumBestEffort(t.active, reservationKey, liveCost(now))

	reportFailures(s.log, "earnings", t.earnings)
	reportFailures(s.log, "due_unpaid", t.dueUnpaid)
	reportFailures(s.log, "due_active", t.dueActive)
	return t, nil
}

func (s *ReportService) read(ctx context.Context, actor auth.Actor, op string, fn func(tx repository.Tx, now time.Time) error) error {
	if err := auth.Authorize(actor, auth.OpViewReports, auth.Resource{}); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := fn(tx, s.now()); err != nil {
			return storageErr(op, err, "record")
		}
		return nil
	})
}

// Dashboard summarises inventory, earnings and money still due.
func (s *ReportService) Dashboard(ctx context.Context, actor auth.Actor) (*entities.AdminDashboard, error) {
	const op = "service.ReportService.Dashboard"

	out := &entities.AdminDashboard{}
	err := s.read(ctx, actor, op, func(tx repository.Tx, now time.Time) error {
		lots, err := tx.Lots().List(ctx)
		if err != nil {
			return err
		}
		t, err := s.totals(ctx, tx, now)
		if err != nil {
			return err
		}

		out.TotalLots = len(lots)
		for _, l := range lots {
			out.TotalSpots += l.TotalSpots
		}
		out.Lots = lotResponses(lots)
		out.ActiveBookings = len(t.active)
		out.TotalEarnings = t.earnings.Total
		out.TotalDue = t.due()
		out.FailedItems = t.failures()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Bookings lists every reservation with its duration, cost and payment.
func (s *ReportService) Bookings(ctx context.Context, actor auth.Actor) (*entities.BookingsReport, error) {
	const op = "service.ReportService.Bookings"

	out := &entities.BookingsReport{}
	err := s.read(ctx, actor, op, func(tx repository.Tx, now time.Time) error {
		all, err := tx.Reservations().ListAll(ctx)
		if err != nil {
			return err
		}
		payments, err := paymentsByReservation(ctx, tx)
		if err != nil {
			return err
		}

		out.Bookings = make([]entities.ReservationResponse, 0, len(all))
		for i := range all {
			res := &all[i]
			view := ReservationView(res, now)
			if p, ok := payments[res.ID]; ok {
				pv := PaymentView(&p)
				view.Payment = &pv
			}
			if _, err := CostOf(res, now); err != nil {
				out.FailedItems = append(out.FailedItems, ItemFailure{ID: res.ID, Reason: err.Error()})
			}
			out.Bookings = append(out.Bookings, view)
		}
		reportFailures(s.log, "bookings", Aggregate{Failures: out.FailedItems})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func paymentsByReservation(ctx context.Context, tx repository.Tx) (map[int64]db.Payment, error) {
	out := make(map[int64]db.Payment)
	for _, paid := range []bool{true, false} {
		list, err := tx.Payments().ListByStatus(ctx, paid)
		if err != nil {
			return nil, err
		}
		for _, p := range list {
			out[p.ReservationID] = p
		}
	}
	return out, nil
}

// ActiveBookings lists the running reservations and their combined live cost.
func (s *ReportService) ActiveBookings(ctx context.Context, actor auth.Actor) (*entities.ActiveBookingsReport, error) {
	const op = "service.ReportService.ActiveBookings"

	out := &entities.ActiveBookingsReport{}
	err := s.read(ctx, actor, op, func(tx repository.Tx, now time.Time) error {
		active, err := tx.Reservations().ListActive(ctx)
		if err != nil {
			return err
		}
		agg := SumBestEffort(active, reservationKey, liveCost(now))
		reportFailures(s.log, "active_bookings", agg)

		out.Bookings = make([]entities.ReservationResponse, 0, len(active))
		for i := range active {
			out.Bookings = append(out.Bookings, ReservationView(&active[i], now))
		}
		out.TotalCost = agg.Total
		out.FailedItems = agg.Failures
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DuePayments lists unpaid payments and running reservations with the amount
// owed for each group.
func (s *ReportService) DuePayments(ctx context.Context, actor auth.Actor) (*entities.DuePaymentsReport, error) {
	const op = "service.ReportService.DuePayments"

	out := &entities.DuePaymentsReport{}
	err := s.read(ctx, actor, op, func(tx repository.Tx, now time.Time) error {
		t, err := s.totals(ctx, tx, now)
		if err != nil {
			return err
		}
		views, failures, err := paymentViews(ctx, tx, t.unpaid, now)
		if err != nil {
			return err
		}

		out.UnpaidPayments = views
		out.ActiveReservations = make([]entities.ReservationResponse, 0, len(t.active))
		for i := range t.active {
			out.ActiveReservations = append(out.ActiveReservations, ReservationView(&t.active[i], now))
		}
		out.TotalDueCompleted = t.dueUnpaid.Total
		out.TotalDueActive = t.dueActive.Total
		out.TotalDue = t.due()
		out.FailedItems = append(append(failures, t.dueUnpaid.Failures...), t.dueActive.Failures...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Earnings lists settled payments, newest first, with revenue totals.
func (s *ReportService) Earnings(ctx context.Context, actor auth.Actor) (*entities.EarningsReport, error) {
	const op = "service.ReportService.Earnings"

	out := &entities.EarningsReport{}
	err := s.read(ctx, actor, op, func(tx repository.Tx, now time.Time) error {
		t, err := s.totals(ctx, tx, now)
		if err != nil {
			return err
		}
		views, failures, err := paymentViews(ctx, tx, t.paid, now)
		if err != nil {
			return err
		}

		out.PaidPayments = views
		out.TotalEarnings = t.earnings.Total
		out.TotalDue = t.due()
		out.TotalRevenue = out.TotalEarnings + out.TotalDue
		out.UnpaidCount = len(t.unpaid)
		out.FailedItems = append(failures, t.failures()...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// paymentViews resolves the reservation of each payment. A payment whose
// reservation cannot be loaded is reported as a failure.
func paymentViews(ctx context.Context, tx repository.Tx, payments []db.Payment, now time.Time) ([]entities.ReservationResponse, []ItemFailure, error) {
	views := make([]entities.ReservationResponse, 0, len(payments))
	var failures []ItemFailure
	for i := range payments {
		p := &payments[i]
		res, err := tx.Reservations().GetByID(ctx, p.ReservationID)
		if errors.Is(err, repository.ErrNotFound) {
			failures = append(failures, ItemFailure{ID: p.ID, Reason: "reservation not found"})
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		view := ReservationView(res, now)
		pv := PaymentView(p)
		view.Payment = &pv
		views = append(views, view)
	}
	return views, failures, nil
}
