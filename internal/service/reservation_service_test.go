package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parksync/internal/auth"
	apperrors "parksync/internal/errors"
)

func TestReservationLifecycle(t *testing.T) {
	f := newFixture(t)
	user := f.account(t, "alice", false)
	lotID := f.lot(t, "A", 2, 10)
	spots := f.spots(t, lotID)
	require.Len(t, spots, 2)

	res, err := f.reservations.Create(f.ctx, user, spots[0].ID, " ka 01  ab 1234 ")
	require.NoError(t, err)
	assert.True(t, res.IsActive)
	assert.Nil(t, res.EndTime)
	assert.Equal(t, t0, res.StartTime)
	assert.Equal(t, "KA 01 AB 1234", res.VehicleNumber)
	assert.Equal(t, "A", *res.LotNameSnapshot)
	assert.Equal(t, 1, *res.SpotNumberSnapshot)
	assert.Equal(t, 10.0, *res.PricePerHourSnapshot)
	assert.True(t, f.spots(t, lotID)[0].IsBooked)

	f.clock.Advance(2 * time.Hour)
	closed, payment, err := f.reservations.Checkout(f.ctx, user, res.ID)
	require.NoError(t, err)
	assert.False(t, closed.IsActive)
	assert.Equal(t, t0.Add(2*time.Hour), *closed.EndTime)
	assert.Equal(t, int64(20), payment.Amount)
	assert.False(t, payment.IsPaid)
	assert.False(t, f.spots(t, lotID)[0].IsBooked)
	assert.Equal(t, []string{"booked", "checked_out"}, f.notifier.kinds())

	paid, err := f.payments.MarkPaid(f.ctx, user, payment.ID)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	assert.Equal(t, t0.Add(2*time.Hour), *paid.PaymentDate)

	dash, err := f.reports.Dashboard(f.ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, int64(20), dash.TotalEarnings)
	assert.Zero(t, dash.TotalDue)
	assert.Equal(t, 1, dash.TotalLots)
	assert.Equal(t, 2, dash.TotalSpots)
	assert.Zero(t, dash.ActiveBookings)
}

func TestReservationCreate_Errors(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice", false)
	bob := f.account(t, "bob", false)
	lotID := f.lot(t, "A", 2, 10)
	spots := f.spots(t, lotID)

	_, err := f.reservations.Create(f.ctx, alice, spots[0].ID, "KA01")
	require.NoError(t, err)

	tests := []struct {
		name     string
		actor    auth.Actor
		spotID   int64
		vehicle  string
		wantKind apperrors.Kind
	}{
		{name: "user already has an active reservation", actor: alice, spotID: spots[1].ID, vehicle: "KA02", wantKind: apperrors.KindConflict},
		{name: "spot already booked", actor: bob, spotID: spots[0].ID, vehicle: "KA03", wantKind: apperrors.KindConflict},
		{name: "unknown spot", actor: bob, spotID: 9999, vehicle: "KA03", wantKind: apperrors.KindNotFound},
		{name: "vehicle number too short", actor: bob, spotID: spots[1].ID, vehicle: " a ", wantKind: apperrors.KindValidation},
		{name: "vehicle number too long", actor: bob, spotID: spots[1].ID, vehicle: "ABCDEFGHIJKLMNOPQRSTUV", wantKind: apperrors.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.reservations.Create(f.ctx, tt.actor, tt.spotID, tt.vehicle)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperrors.KindOf(err))
		})
	}

	_, err = f.reservations.Create(f.ctx, f.admin, spots[1].ID, "KA09")
	assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))

	assert.False(t, f.spots(t, lotID)[1].IsBooked, "failed bookings leave the spot free")
	assert.Equal(t, []string{"booked"}, f.notifier.kinds())
}

func TestReservationBookLot(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice", false)
	bob := f.account(t, "bob", false)
	carol := f.account(t, "carol", false)
	lotID := f.lot(t, "A", 2, 10)

	first, err := f.reservations.BookLot(f.ctx, alice, lotID, "KA01")
	require.NoError(t, err)
	assert.Equal(t, 1, *first.SpotNumberSnapshot)

	second, err := f.reservations.BookLot(f.ctx, bob, lotID, "KA02")
	require.NoError(t, err)
	assert.Equal(t, 2, *second.SpotNumberSnapshot)

	_, err = f.reservations.BookLot(f.ctx, carol, lotID, "KA03")
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	_, err = f.reservations.BookLot(f.ctx, carol, 9999, "KA03")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	_, _, err = f.reservations.Checkout(f.ctx, alice, first.ID)
	require.NoError(t, err)
	third, err := f.reservations.BookLot(f.ctx, carol, lotID, "KA03")
	require.NoError(t, err)
	assert.Equal(t, 1, *third.SpotNumberSnapshot, "freed spot is reused")
}

func TestReservationCheckout_Errors(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice", false)
	bob := f.account(t, "bob", false)
	lotID := f.lot(t, "A", 1, 10)

	res, err := f.reservations.BookLot(f.ctx, alice, lotID, "KA01")
	require.NoError(t, err)

	_, _, err = f.reservations.Checkout(f.ctx, bob, res.ID)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))

	_, _, err = f.reservations.Checkout(f.ctx, alice, 9999)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	_, _, err = f.reservations.Checkout(f.ctx, alice, res.ID)
	require.NoError(t, err)

	_, _, err = f.reservations.Checkout(f.ctx, alice, res.ID)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestReservationCheckout_AfterResize(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice", false)
	lotID := f.lot(t, "A", 3, 10)

	res, err := f.reservations.BookLot(f.ctx, alice, lotID, "KA01")
	require.NoError(t, err)

	// Shrinking the lot never removes the booked spot.
	_, err = f.lots.ResizeLot(f.ctx, f.admin, lotID, 1)
	require.NoError(t, err)

	f.clock.Advance(3 * time.Hour)
	_, payment, err := f.reservations.Checkout(f.ctx, alice, res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), payment.Amount)
}

func TestReservationReads(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice", false)
	bob := f.account(t, "bob", false)
	lotID := f.lot(t, "A", 2, 10)

	active, err := f.reservations.ActiveFor(f.ctx, alice)
	require.NoError(t, err)
	assert.Nil(t, active)

	_, payment := f.park(t, alice, lotID, time.Hour)
	current, err := f.reservations.BookLot(f.ctx, alice, lotID, "KA02")
	require.NoError(t, err)
	f.clock.Advance(30 * time.Minute)

	active, err = f.reservations.ActiveFor(f.ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, current.ID, active.ID)

	got, err := f.reservations.Get(f.ctx, alice, current.ID)
	require.NoError(t, err)
	assert.Equal(t, current.ID, got.ID)
	_, err = f.reservations.Get(f.ctx, bob, current.ID)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))

	history, err := f.reservations.History(f.ctx, alice)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, current.ID, history[0].ID, "newest first")
	require.NotNil(t, history[1].Payment)
	assert.Equal(t, payment.ID, history[1].Payment.ID)

	dash, err := f.reservations.Dashboard(f.ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, dash.Active)
	assert.Equal(t, int64(5), dash.Active.Cost, "half an hour at 10/h")
	assert.InDelta(t, 0.5, dash.Active.DurationHours, 1e-9)
	require.Len(t, dash.History, 1)
	require.Len(t, dash.Lots, 1)
	assert.Equal(t, 1, dash.Lots[0].AvailableSpots)

	lots, err := f.reservations.ListLots(f.ctx, bob)
	require.NoError(t, err)
	assert.Len(t, lots, 1)

	_, err = f.reservations.Dashboard(f.ctx, f.admin)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))
}

func TestReservationCreate_Concurrent(t *testing.T) {
	f := newFixture(t)
	lotID := f.lot(t, "A", 1, 10)
	spotID := f.spots(t, lotID)[0].ID

	const n = 30
	actors := make([]auth.Actor, n)
	for i := range actors {
		actors[i] = f.account(t, fmt.Sprintf("driver%d", i), false)
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range actors {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, errs[i] = f.reservations.Create(f.ctx, actors[i], spotID, "KA-01")
			} else {
				_, errs[i] = f.reservations.BookLot(f.ctx, actors[i], lotID, "KA-01")
			}
		}(i)
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err), err.Error())
	}
	assert.Equal(t, 1, won)
	assert.True(t, f.spots(t, lotID)[0].IsBooked)
}

func TestReservationCreate_ConcurrentSameUser(t *testing.T) {
	f := newFixture(t)
	user := f.account(t, "alice", false)
	lotID := f.lot(t, "A", 10, 10)

	const n = 10
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.reservations.BookLot(f.ctx, user, lotID, "KA-01")
		}(i)
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
		}
	}
	assert.Equal(t, 1, won)

	var booked int
	for _, spot := range f.spots(t, lotID) {
		if spot.IsBooked {
			booked++
		}
	}
	assert.Equal(t, 1, booked)
}
