package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parksync/internal/db"
)

type sentEmail struct {
	to, subject, plain, html string
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (e *fakeEmail) SendEmail(_ context.Context, toEmail, _, subject, plainText, html string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, sentEmail{to: toEmail, subject: subject, plain: plainText, html: html})
	return e.err
}

type fakeSMS struct {
	mu     sync.Mutex
	bodies map[string]string
}

func (s *fakeSMS) SendSMS(_ context.Context, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bodies == nil {
		s.bodies = map[string]string{}
	}
	s.bodies[to] = body
	return nil
}

func closedReservation() (db.User, db.Reservation, db.Payment) {
	user := db.User{ID: 1, Username: "alice", Email: "alice@example.com", Phone: "+15551234567"}
	res := db.Reservation{
		ID:                 7,
		UserID:             1,
		VehicleNumber:      "KA01",
		StartTime:          t0,
		EndTime:            ptr(t0.Add(2 * time.Hour)),
		LotNameSnapshot:    ptr("Central"),
		SpotNumberSnapshot: ptr(4),
	}
	return user, res, db.Payment{ID: 3, ReservationID: 7, Amount: 20}
}

func TestSenderService(t *testing.T) {
	email := &fakeEmail{}
	sms := &fakeSMS{}
	sender := NewSenderService(email, sms, "usd", nil)
	user, res, payment := closedReservation()

	sender.ReservationBooked(user, res)
	sender.ReservationCheckedOut(user, res, payment)
	sender.PaymentDue(user, res, payment)
	sender.Wait()

	assert.Contains(t, sms.bodies["+15551234567"], "spot 4 at Central")

	require.Len(t, email.sent, 2)
	subjects := []string{email.sent[0].subject, email.sent[1].subject}
	assert.ElementsMatch(t, []string{"Your parking receipt - Central", "Payment reminder - Central"}, subjects)
	for _, m := range email.sent {
		assert.Equal(t, "alice@example.com", m.to)
		assert.Contains(t, m.plain, "Amount: 20 usd")
		assert.Contains(t, m.html, "<td>Central</td>")
	}
}

func TestSenderService_SkipsMissingChannels(t *testing.T) {
	email := &fakeEmail{err: errors.New("smtp down")}
	sender := NewSenderService(email, nil, "usd", nil)
	user, res, payment := closedReservation()

	sender.ReservationBooked(user, res)
	user.Email = ""
	sender.ReservationCheckedOut(user, res, payment)
	user.Email = "alice@example.com"
	sender.PaymentDue(user, res, payment)
	sender.Wait()

	assert.Len(t, email.sent, 1, "delivery failures are only logged")
}
