package entities

import "time"

type LotResponse struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	TotalSpots     int       `json:"total_spots"`
	PricePerHour   float64   `json:"price_per_hour"`
	AvailableSpots int       `json:"available_spots"`
	BookedSpots    int       `json:"booked_spots"`
	CreatedAt      time.Time `json:"created_at"`
}

type SpotResponse struct {
	ID          int64                `json:"id"`
	SpotNumber  int                  `json:"spot_number"`
	IsBooked    bool                 `json:"is_booked"`
	Reservation *ReservationResponse `json:"reservation,omitempty"`
}

// LotGrid is the admin view of a lot with every spot and its current booking.
type LotGrid struct {
	Lot   LotResponse    `json:"lot"`
	Spots []SpotResponse `json:"spots"`
}
