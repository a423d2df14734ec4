package api

import (
	"net/http"
	"time"

	"parksync/internal/db"
	"parksync/internal/entities"
	"parksync/internal/service"
)

// UserHandler serves the customer routes.
type UserHandler struct {
	reservations *service.ReservationService
	payments     *service.PaymentService
	now          service.Clock
}

func NewUserHandler(reservations *service.ReservationService, payments *service.PaymentService, now service.Clock) *UserHandler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &UserHandler{reservations: reservations, payments: payments, now: now}
}

func (h *UserHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.reservations.Dashboard(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (h *UserHandler) ListLots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.reservations.ListLots(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lots)
}

func (h *UserHandler) Book(w http.ResponseWriter, r *http.Request) {
	lotID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req BookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	var res *db.Reservation
	if req.SpotID != nil {
		res, err = h.reservations.BookSpot(r.Context(), actorOf(r), lotID, *req.SpotID, req.VehicleNumber)
	} else {
		res, err = h.reservations.BookLot(r.Context(), actorOf(r), lotID, req.VehicleNumber)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, service.ReservationView(res, h.now()))
}

func (h *UserHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	res, payment, err := h.reservations.Checkout(r.Context(), actorOf(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.CheckoutResponse{
		Reservation: service.ReservationView(res, h.now()),
		Payment:     service.PaymentView(payment),
	})
}

func (h *UserHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.reservations.History(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *UserHandler) PaymentOptions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	opts, err := h.payments.Options(r.Context(), actorOf(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (h *UserHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	payment, err := h.payments.MarkPaid(r.Context(), actorOf(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.PaymentView(payment))
}

func (h *UserHandler) Defer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	payment, err := h.payments.DeferPayment(r.Context(), actorOf(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.PaymentView(payment))
}

func (h *UserHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	url, err := h.payments.PayOnline(r.Context(), actorOf(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.CheckoutSessionResponse{PaymentID: id, URL: url})
}
