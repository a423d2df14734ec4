package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"parksync/internal/db"
	"parksync/internal/entities"
)

const sendTimeout = 15 * time.Second

var emailTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif">
  <h2>{{.Heading}}</h2>
  <p>Hello {{.UserName}},</p>
  <p>{{.Intro}}</p>
  <table>
    <tr><td>Parking lot</td><td>{{.LotName}}</td></tr>
    <tr><td>Spot</td><td>{{.SpotNumber}}</td></tr>
    <tr><td>Vehicle</td><td>{{.VehicleNumber}}</td></tr>
    <tr><td>Check-in</td><td>{{.StartTime}}</td></tr>
    {{if .EndTime}}<tr><td>Check-out</td><td>{{.EndTime}}</td></tr>{{end}}
    {{if .Amount}}<tr><td>Amount</td><td>{{.Amount}}</td></tr>{{end}}
  </table>
  <p>ParkSync {{.CurrentYear}}</p>
</body>
</html>`))

// SenderService sends booking SMS and billing emails in the background.
// A nil transport disables that channel.
type SenderService struct {
	email    EmailTransport
	sms      SMSTransport
	currency string
	log      logrus.FieldLogger
	wg       sync.WaitGroup
}

func NewSenderService(email EmailTransport, sms SMSTransport, currency string, log logrus.FieldLogger) *SenderService {
	return &SenderService{email: email, sms: sms, currency: currency, log: orLogger(log)}
}

// Wait blocks until every queued notification has been attempted.
func (s *SenderService) Wait() {
	s.wg.Wait()
}

func (s *SenderService) ReservationBooked(user db.User, res db.Reservation) {
	if s.sms == nil || user.Phone == "" {
		return
	}
	body := fmt.Sprintf("ParkSync: spot %s at %s is booked for %s. Check-in: %s.",
		SpotNumber(&res), LotName(&res), res.VehicleNumber, res.StartTime.Format("02/01 15:04"))
	s.dispatch(res.ID, "booking sms", func(ctx context.Context) error {
		return s.sms.SendSMS(ctx, user.Phone, body)
	})
}

func (s *SenderService) ReservationCheckedOut(user db.User, res db.Reservation, payment db.Payment) {
	s.sendEmail(user, res, payment, "Your parking receipt",
		"Thanks for parking with us. Your reservation is closed and the amount below is now due.")
}

func (s *SenderService) PaymentDue(user db.User, res db.Reservation, payment db.Payment) {
	s.sendEmail(user, res, payment, "Payment reminder",
		"This parking session has not been paid yet. Please settle it from your dashboard.")
}

func (s *SenderService) sendEmail(user db.User, res db.Reservation, payment db.Payment, heading, intro string) {
	if s.email == nil || user.Email == "" {
		return
	}
	data := entities.EmailData{
		UserName:      user.Username,
		Heading:       heading,
		Intro:         intro,
		LotName:       LotName(&res),
		SpotNumber:    SpotNumber(&res),
		VehicleNumber: res.VehicleNumber,
		StartTime:     res.StartTime.Format("02 Jan 2006 15:04 MST"),
		Amount:        fmt.Sprintf("%d %s", payment.Amount, s.currency),
		CurrentYear:   time.Now().Year(),
	}
	if res.EndTime != nil {
		data.EndTime = res.EndTime.Format("02 Jan 2006 15:04 MST")
	}

	var html bytes.Buffer
	if err := emailTemplate.Execute(&html, data); err != nil {
		s.log.WithField("reservation_id", res.ID).Errorf("render email: %v", err)
		return
	}
	plain := fmt.Sprintf("Hello %s,\n\n%s\n\nLot: %s\nSpot: %s\nVehicle: %s\nAmount: %s\n",
		data.UserName, intro, data.LotName, data.SpotNumber, data.VehicleNumber, data.Amount)
	subject := fmt.Sprintf("%s - %s", heading, data.LotName)

	s.dispatch(res.ID, "email", func(ctx context.Context) error {
		return s.email.SendEmail(ctx, user.Email, user.Username, subject, plain, html.String())
	})
}

func (s *SenderService) dispatch(reservationID int64, kind string, send func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			s.log.WithField("reservation_id", reservationID).Warnf("%s not delivered: %v", kind, err)
		}
	}()
}
