package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"parksync/internal/config"
)

// StripeService is the PaymentGateway backed by Stripe Checkout.
type StripeService struct {
	successURL    string
	cancelURL     string
	webhookSecret string
}

func NewStripeService(cfg config.Stripe) *StripeService {
	stripe.Key = cfg.SecretKey
	return &StripeService{
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		webhookSecret: cfg.WebhookSecret,
	}
}

func (s *StripeService) CreateCheckoutSession(_ context.Context, req CheckoutSessionRequest) (string, string, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(toMinorUnits(req.Amount, req.Currency)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.cancelURL + "?session_id={CHECKOUT_SESSION_ID}"),
		ClientReferenceID: stripe.String(strconv.FormatInt(req.PaymentID, 10)),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata("payment_id", strconv.FormatInt(req.PaymentID, 10))

	sess, err := session.New(params)
	if err != nil {
		return "", "", fmt.Errorf("stripe checkout session: %w", err)
	}
	return sess.URL, sess.ID, nil
}

// zeroDecimal lists the currencies Stripe charges in whole units.
var zeroDecimal = map[string]bool{"jpy": true, "krw": true, "vnd": true, "clp": true, "isk": true}

func toMinorUnits(amount int64, currency string) int64 {
	if zeroDecimal[currency] {
		return amount
	}
	return amount * 100
}

// CompletedSession verifies a webhook delivery and returns the paid checkout
// session with the payment it references. ok is false for events that do not
// settle a payment.
func (s *StripeService) CompletedSession(payload []byte, signature string) (CompletedCheckout, bool, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return CompletedCheckout{}, false, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
	default:
		return CompletedCheckout{}, false, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return CompletedCheckout{}, false, fmt.Errorf("parse checkout session: %w", err)
	}
	if sess.ID == "" {
		return CompletedCheckout{}, false, fmt.Errorf("checkout session event without id")
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return CompletedCheckout{}, false, nil
	}
	return CompletedCheckout{SessionID: sess.ID, PaymentID: paymentReference(&sess)}, true, nil
}

// paymentReference reads the payment id set by CreateCheckoutSession, or 0.
func paymentReference(sess *stripe.CheckoutSession) int64 {
	for _, ref := range []string{sess.ClientReferenceID, sess.Metadata["payment_id"]} {
		if id, err := strconv.ParseInt(ref, 10, 64); err == nil && id > 0 {
			return id
		}
	}
	return 0
}
