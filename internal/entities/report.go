package entities

// ItemFailure identifies one item left out of an aggregate.
type ItemFailure struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

type UserDashboard struct {
	Lots    []LotResponse         `json:"lots"`
	Active  *ReservationResponse  `json:"active_reservation"`
	History []ReservationResponse `json:"history"`
}

type AdminDashboard struct {
	TotalLots      int           `json:"total_lots"`
	TotalSpots     int           `json:"total_spots"`
	ActiveBookings int           `json:"active_bookings"`
	TotalEarnings  int64         `json:"total_earnings"`
	TotalDue       int64         `json:"total_due"`
	Lots           []LotResponse `json:"lots"`
	FailedItems    []ItemFailure `json:"failed_items,omitempty"`
}

type BookingsReport struct {
	Bookings    []ReservationResponse `json:"bookings"`
	FailedItems []ItemFailure         `json:"failed_items,omitempty"`
}

type ActiveBookingsReport struct {
	Bookings    []ReservationResponse `json:"bookings"`
	TotalCost   int64                 `json:"total_cost"`
	FailedItems []ItemFailure         `json:"failed_items,omitempty"`
}

type DuePaymentsReport struct {
	UnpaidPayments     []ReservationResponse `json:"unpaid_payments"`
	ActiveReservations []ReservationResponse `json:"active_reservations"`
	TotalDueCompleted  int64                 `json:"total_due_completed"`
	TotalDueActive     int64                 `json:"total_due_active"`
	TotalDue           int64                 `json:"total_due"`
	FailedItems        []ItemFailure         `json:"failed_items,omitempty"`
}

type EarningsReport struct {
	PaidPayments  []ReservationResponse `json:"paid_payments"`
	TotalEarnings int64                 `json:"total_earnings"`
	TotalDue      int64                 `json:"total_due"`
	TotalRevenue  int64                 `json:"total_revenue"`
	UnpaidCount   int                   `json:"unpaid_count"`
	FailedItems   []ItemFailure         `json:"failed_items,omitempty"`
}
