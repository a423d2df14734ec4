package service

import (
	"time"

	"parksync/internal/db"
	"parksync/internal/entities"
)

// ReservationView renders a reservation with its duration and cost at now.
func ReservationView(res *db.Reservation, now time.Time) entities.ReservationResponse {
	return entities.ReservationResponse{
		ID:            res.ID,
		UserID:        res.UserID,
		SpotID:        res.SpotID,
		LotID:         res.LiveLotID,
		LotName:       LotName(res),
		SpotNumber:    SpotNumber(res),
		VehicleNumber: res.VehicleNumber,
		StartTime:     res.StartTime,
		EndTime:       res.EndTime,
		IsActive:      res.IsActive,
		PricePerHour:  EffectivePrice(res),
		DurationHours: CalculateDurationHours(res, now),
		Cost:          CalculateCost(res, now),
	}
}

func PaymentView(p *db.Payment) entities.PaymentResponse {
	return entities.PaymentResponse{
		ID:            p.ID,
		ReservationID: p.ReservationID,
		Amount:        p.Amount,
		IsPaid:        p.IsPaid,
		PaymentDate:   p.PaymentDate,
		CreatedAt:     p.CreatedAt,
	}
}

func lotResponse(s db.LotSummary) entities.LotResponse {
	return entities.LotResponse{
		ID:             s.ID,
		Name:           s.Name,
		TotalSpots:     s.TotalSpots,
		PricePerHour:   s.PricePerHour,
		AvailableSpots: s.AvailableSpots(),
		BookedSpots:    s.BookedSpots,
		CreatedAt:      s.CreatedAt,
	}
}

func lotResponses(lots []db.LotSummary) []entities.LotResponse {
	out := make([]entities.LotResponse, 0, len(lots))
	for _, l := range lots {
		out = append(out, lotResponse(l))
	}
	return out
}
