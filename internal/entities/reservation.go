package entities

import "time"

type ReservationResponse struct {
	ID            int64            `json:"id"`
	UserID        int64            `json:"user_id"`
	SpotID        *int64           `json:"spot_id"`
	LotID         *int64           `json:"lot_id,omitempty"`
	LotName       string           `json:"lot_name"`
	SpotNumber    string           `json:"spot_number"`
	VehicleNumber string           `json:"vehicle_number"`
	StartTime     time.Time        `json:"start_time"`
	EndTime       *time.Time       `json:"end_time"`
	IsActive      bool             `json:"is_active"`
	PricePerHour  float64          `json:"price_per_hour"`
	DurationHours float64          `json:"duration_hours"`
	Cost          int64            `json:"cost"`
	Payment       *PaymentResponse `json:"payment,omitempty"`
}

type PaymentResponse struct {
	ID            int64      `json:"id"`
	ReservationID int64      `json:"reservation_id"`
	Amount        int64      `json:"amount"`
	IsPaid        bool       `json:"is_paid"`
	PaymentDate   *time.Time `json:"payment_date"`
	CreatedAt     time.Time  `json:"created_at"`
}

// CheckoutResponse is returned when a reservation is released.
type CheckoutResponse struct {
	Reservation ReservationResponse `json:"reservation"`
	Payment     PaymentResponse     `json:"payment"`
}

// PaymentOptions is what a customer sees before settling a payment.
type PaymentOptions struct {
	Payment         PaymentResponse     `json:"payment"`
	Reservation     ReservationResponse `json:"reservation"`
	OnlineAvailable bool                `json:"online_available"`
}

type CheckoutSessionResponse struct {
	PaymentID int64  `json:"payment_id"`
	URL       string `json:"url"`
}
