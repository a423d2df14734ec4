package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parksync/internal/auth"
	"parksync/internal/db"
	"parksync/internal/repository"
	"parksync/internal/repository/memory"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type notification struct {
	kind      string
	userID    int64
	reservaID int64
	amount    int64
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) record(kind string, user db.User, res db.Reservation, amount int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{kind: kind, userID: user.ID, reservaID: res.ID, amount: amount})
}

func (n *recordingNotifier) ReservationBooked(user db.User, res db.Reservation) {
	n.record("booked", user, res, 0)
}

func (n *recordingNotifier) ReservationCheckedOut(user db.User, res db.Reservation, p db.Payment) {
	n.record("checked_out", user, res, p.Amount)
}

func (n *recordingNotifier) PaymentDue(user db.User, res db.Reservation, p db.Payment) {
	n.record("due", user, res, p.Amount)
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.kind)
	}
	return out
}

type fixture struct {
	ctx          context.Context
	store        *memory.Store
	clock        *fakeClock
	notifier     *recordingNotifier
	admin        auth.Actor
	lots         *LotService
	reservations *ReservationService
	payments     *PaymentService
	reports      *ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := &fakeClock{now: t0}
	notifier := &recordingNotifier{}

	f := &fixture{
		ctx:          context.Background(),
		store:        store,
		clock:        clock,
		notifier:     notifier,
		lots:         NewLotService(store, nil, clock.Now),
		reservations: NewReservationService(store, notifier, nil, clock.Now),
		payments:     NewPaymentService(store, nil, "usd", nil, clock.Now),
		reports:      NewReportService(store, nil, clock.Now),
	}
	f.admin = f.account(t, "admin", true)
	return f
}

// account stores a user directly and returns its actor.
func (f *fixture) account(t *testing.T, name string, admin bool) auth.Actor {
	t.Helper()
	u := &db.User{Username: name, Email: name + "@example.com", PasswordHash: "x", IsAdmin: admin}
	require.NoError(t, f.store.WithTx(f.ctx, func(tx repository.Tx) error {
		return tx.Users().Create(f.ctx, u)
	}))
	return auth.Actor{UserID: u.ID, Username: u.Username, Role: auth.RoleFor(admin)}
}

func (f *fixture) lot(t *testing.T, name string, spots int, price float64) int64 {
	t.Helper()
	lot, err := f.lots.CreateLot(f.ctx, f.admin, CreateLotInput{Name: name, TotalSpots: spots, PricePerHour: price})
	require.NoError(t, err)
	return lot.ID
}

func (f *fixture) spots(t *testing.T, lotID int64) []db.ParkingSpot {
	t.Helper()
	var out []db.ParkingSpot
	require.NoError(t, f.store.WithTx(f.ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.Spots().ListByLot(f.ctx, lotID)
		return err
	}))
	return out
}

func (f *fixture) reservation(t *testing.T, id int64) *db.Reservation {
	t.Helper()
	var out *db.Reservation
	require.NoError(t, f.store.WithTx(f.ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.Reservations().GetByID(f.ctx, id)
		return err
	}))
	return out
}

func (f *fixture) payment(t *testing.T, id int64) *db.Payment {
	t.Helper()
	var out *db.Payment
	require.NoError(t, f.store.WithTx(f.ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.Payments().GetByID(f.ctx, id)
		return err
	}))
	return out
}

// park books the first spot of lotID and checks out after d.
func (f *fixture) park(t *testing.T, actor auth.Actor, lotID int64, d time.Duration) (*db.Reservation, *db.Payment) {
	t.Helper()
	res, err := f.reservations.BookLot(f.ctx, actor, lotID, "AB-1234")
	require.NoError(t, err)
	f.clock.Advance(d)
	closed, payment, err := f.reservations.Checkout(f.ctx, actor, res.ID)
	require.NoError(t, err)
	return closed, payment
}

func ptr[T any](v T) *T { return &v }
