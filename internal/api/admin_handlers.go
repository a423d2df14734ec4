package api

import (
	"net/http"
	"time"

	"parksync/internal/service"
)

// AdminHandler serves the lot management and reporting routes.
type AdminHandler struct {
	lots         *service.LotService
	reports      *service.ReportService
	reservations *service.ReservationService
	now          service.Clock
}

func NewAdminHandler(lots *service.LotService, reports *service.ReportService, reservations *service.ReservationService, now service.Clock) *AdminHandler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &AdminHandler{lots: lots, reports: reports, reservations: reservations, now: now}
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.reports.Dashboard(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (h *AdminHandler) ListLots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.lots.List(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lots)
}

func (h *AdminHandler) CreateLot(w http.ResponseWriter, r *http.Request) {
	var req service.CreateLotInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	lot, err := h.lots.CreateLot(r.Context(), actorOf(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lot)
}

func (h *AdminHandler) ResizeLot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req ResizeLotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	lot, err := h.lots.ResizeLot(r.Context(), actorOf(r), id, req.TotalSpots)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

func (h *AdminHandler) DeleteLot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.lots.DeleteLot(r.Context(), actorOf(r), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Parking lot deleted"})
}

func (h *AdminHandler) LotGrid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	grid, err := h.lots.Grid(r.Context(), actorOf(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

func (h *AdminHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Bookings(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *AdminHandler) ActiveBookings(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.ActiveBookings(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *AdminHandler) DuePayments(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.DuePayments(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *AdminHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Earnings(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *AdminHandler) SnapshotReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.reservations.Snapshot(r.Context(), actorOf(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.ReservationView(res, h.now()))
}
