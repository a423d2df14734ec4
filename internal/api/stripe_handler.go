package api

import (
	"context"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"parksync/internal/auth"
	"parksync/internal/db"
	"parksync/internal/service"
)

// WebhookVerifier checks a Stripe delivery and extracts the paid checkout
// session, if the event settles one.
type WebhookVerifier interface {
	CompletedSession(payload []byte, signature string) (service.CompletedCheckout, bool, error)
}

// SessionConfirmer settles the payment linked to a checkout session.
type SessionConfirmer interface {
	ConfirmCheckoutSession(ctx context.Context, actor auth.Actor, done service.CompletedCheckout) (*db.Payment, error)
}

type StripeWebhookHandler struct {
	verifier WebhookVerifier
	payments SessionConfirmer
	log      logrus.FieldLogger
}

func NewStripeWebhookHandler(verifier WebhookVerifier, payments SessionConfirmer, log logrus.FieldLogger) *StripeWebhookHandler {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &StripeWebhookHandler{verifier: verifier, payments: payments, log: log}
}

func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.Warnf("error reading webhook body: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	done, ok, err := h.verifier.CompletedSession(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.log.Warnf("rejected webhook: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	payment, err := h.payments.ConfirmCheckoutSession(r.Context(), auth.System, done)
	if err != nil {
		h.log.WithFields(logrus.Fields{"session_id": done.SessionID, "payment_ref": done.PaymentID}).Errorf("confirming checkout session: %v", err)
		writeError(w, err)
		return
	}
	h.log.WithFields(logrus.Fields{"session_id": done.SessionID, "payment_id": payment.ID}).Info("checkout session confirmed")
	w.WriteHeader(http.StatusOK)
}
