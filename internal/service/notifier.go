package service

import "parksync/internal/db"

// Notifier delivers customer notifications. Implementations must not block
// the caller and must not fail the operation that triggered them.
type Notifier interface {
	ReservationBooked(user db.User, res db.Reservation)
	ReservationCheckedOut(user db.User, res db.Reservation, payment db.Payment)
	PaymentDue(user db.User, res db.Reservation, payment db.Payment)
}

type NoopNotifier struct{}

func (NoopNotifier) ReservationBooked(db.User, db.Reservation)                {}
func (NoopNotifier) ReservationCheckedOut(db.User, db.Reservation, db.Payment) {}
func (NoopNotifier) PaymentDue(db.User, db.Reservation, db.Payment)           {}

func orNotifier(n Notifier) Notifier {
	if n == nil {
		return NoopNotifier{}
	}
	return n
}
