package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"parksync/internal/auth"
	"parksync/internal/metrics"
)

// Pinger reports whether storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers groups everything NewRouter mounts. Stripe may be nil when online
// payment is disabled.
type Handlers struct {
	Auth   *AuthHandler
	User   *UserHandler
	Admin  *AdminHandler
	Stripe *StripeWebhookHandler
}

func NewRouter(h Handlers, tokens *auth.TokenMaker, store Pinger) *mux.Router {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)

	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	r.HandleFunc("/healthz", health(store)).Methods("GET")

	// Public endpoints
	r.HandleFunc("/api/auth/register", h.Auth.Register).Methods("POST")
	r.HandleFunc("/api/auth/login", h.Auth.Login).Methods("POST")
	if h.Stripe != nil {
		r.HandleFunc("/api/stripe/webhook", h.Stripe.HandleWebhook).Methods("POST")
	}

	// Customer endpoints
	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware(tokens))
	api.HandleFunc("/me", h.Auth.Me).Methods("GET")

	user := api.NewRoute().Subrouter()
	user.Use(auth.RequireRole(auth.RoleUser))
	user.HandleFunc("/dashboard", h.User.Dashboard).Methods("GET")
	user.HandleFunc("/lots", h.User.ListLots).Methods("GET")
	user.HandleFunc("/lots/{id}/book", h.User.Book).Methods("POST")
	user.HandleFunc("/reservations", h.User.History).Methods("GET")
	user.HandleFunc("/reservations/{id}/checkout", h.User.Checkout).Methods("POST")
	user.HandleFunc("/payments/{id}", h.User.PaymentOptions).Methods("GET")
	user.HandleFunc("/payments/{id}/pay", h.User.Pay).Methods("POST")
	user.HandleFunc("/payments/{id}/defer", h.User.Defer).Methods("POST")
	user.HandleFunc("/payments/{id}/checkout-session", h.User.CreateCheckoutSession).Methods("POST")

	// Admin endpoints
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(auth.RequireRole(auth.RoleAdmin))
	admin.HandleFunc("/dashboard", h.Admin.Dashboard).Methods("GET")
	admin.HandleFunc("/lots", h.Admin.ListLots).Methods("GET")
	admin.HandleFunc("/lots", h.Admin.CreateLot).Methods("POST")
	admin.HandleFunc("/lots/{id}/spots", h.Admin.ResizeLot).Methods("PUT")
	admin.HandleFunc("/lots/{id}", h.Admin.DeleteLot).Methods("DELETE")
	admin.HandleFunc("/lots/{id}/grid", h.Admin.LotGrid).Methods("GET")
	admin.HandleFunc("/bookings", h.Admin.Bookings).Methods("GET")
	admin.HandleFunc("/bookings/active", h.Admin.ActiveBookings).Methods("GET")
	admin.HandleFunc("/payments/due", h.Admin.DuePayments).Methods("GET")
	admin.HandleFunc("/earnings", h.Admin.Earnings).Methods("GET")
	admin.HandleFunc("/reservations/{id}/snapshot", h.Admin.SnapshotReservation).Methods("POST")

	return r
}

func health(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
