// Package memory is an in-process implementation of repository.Store. It
// enforces the same uniqueness rules as the Postgres schema and is used for
// local runs without a database and as the storage fake in tests.
package memory

import (
	"context"
	"sync"

	"parksync/internal/db"
	"parksync/internal/repository"
)

type state struct {
	users        map[int64]db.User
	lots         map[int64]db.ParkingLot
	spots        map[int64]db.ParkingSpot
	reservations map[int64]db.Reservation
	payments     map[int64]db.Payment
	nextID       int64
}

func newState() *state {
	return &state{
		users:        map[int64]db.User{},
		lots:         map[int64]db.ParkingLot{},
		spots:        map[int64]db.ParkingSpot{},
		reservations: map[int64]db.Reservation{},
		payments:     map[int64]db.Payment{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.nextID = s.nextID
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.lots {
		c.lots[k] = v
	}
	for k, v := range s.spots {
		c.spots[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Store serialises transactions behind a mutex. Each transaction works on a
// copy of the state that replaces the committed state only on success.
type Store struct {
	mu    sync.Mutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

type tx struct {
	st *state
}

func (t *tx) Users() repository.UserRepository               { return userRepo{t.st} }
func (t *tx) Lots() repository.LotRepository                 { return lotRepo{t.st} }
func (t *tx) Spots() repository.SpotRepository               { return spotRepo{t.st} }
func (t *tx) Reservations() repository.ReservationRepository { return reservationRepo{t.st} }
func (t *tx) Payments() repository.PaymentRepository         { return paymentRepo{t.st} }
