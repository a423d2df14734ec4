package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parksync/internal/auth"
	apperrors "parksync/internal/errors"
)

type fakeGateway struct {
	requests []CheckoutSessionRequest
	err      error
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req CheckoutSessionRequest) (string, string, error) {
	if g.err != nil {
		return "", "", g.err
	}
	g.requests = append(g.requests, req)
	id := fmt.Sprintf("cs_test_%d", len(g.requests))
	return "https://checkout.test/" + id, id, nil
}

func TestMarkPaid(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice", false)
	bob := f.account(t, "bob", false)
	lotID := f.lot(t, "A", 1, 10)
	_, payment := f.park(t, alice, lotID, time.Hour)

	_, err := f.payments.MarkPaid(f.ctx, bob, payment.ID)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))
	_, err = f.payments.MarkPaid(f.ctx, f.admin, payment.ID)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))
	_, err = f.payments.MarkPaid(f.ctx, alice, 9999)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	paid, err := f.payments.MarkPaid(f.ctx, alice, payment.ID)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)

	_, err = f.payments.MarkPaid(f.ctx, alice, payment.ID)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	assert.Equal(t, t0.Add(time.Hour), *f.payment(t, payment.ID).PaymentDate, "payment date is not moved")
}

func TestDeferPayment(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice", false)
	bob := f.account(t, "bob", false)
	lotID := f.lot(t, "A", 1, 10)
	_, payment := f.park(t, alice, lotID, time.Hour)

	deferred, err := f.payments.DeferPayment(f.ctx, alice, payment.ID)
	require.NoError(t, err)
	assert.False(t, deferred.IsPaid)
	assert.Nil(t, f.payment(t, payment.ID).PaymentDate)

	_, err = f.payments.DeferPayment(f.ctx, bob, payment.ID)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))
}

func TestPaymentOptions(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice", false)
	lotID := f.lot(t, "A", 1, 10)
	_, payment := f.park(t, alice, lotID, time.Hour)

	opts, err := f.payments.Options(f.ctx, alice, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), opts.Payment.Amount)
	assert.Equal(t, "A", opts.Reservation.LotName)
	assert.False(t, opts.OnlineAvailable)

	f.payments = NewPaymentService(f.store, &fakeGateway{}, "usd", nil, f.clock.Now)
	opts, err = f.payments.Options(f.ctx, alice, payment.ID)
	require.NoError(t, err)
	assert.True(t, opts.OnlineAvailable)
}

func TestPayOnline(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice", false)
	bob := f.account(t, "bob", false)
	lotID := f.lot(t, "A", 1, 10)
	_, payment := f.park(t, alice, lotID, 2*time.Hour)

	_, err := f.payments.PayOnline(f.ctx, alice, payment.ID)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err), "no gateway configured")

	gateway := &fakeGateway{}
	f.payments = NewPaymentService(f.store, gateway, "usd", nil, f.clock.Now)

	_, err = f.payments.PayOnline(f.ctx, bob, payment.ID)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))

	url, err := f.payments.PayOnline(f.ctx, alice, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.test/cs_test_1", url)
	require.Len(t, gateway.requests, 1)
	assert.Equal(t, int64(20), gateway.requests[0].Amount)
	assert.Equal(t, "usd", gateway.requests[0].Currency)
	assert.Equal(t, "alice@example.com", gateway.requests[0].CustomerEmail)
	assert.Equal(t, "cs_test_1", *f.payment(t, payment.ID).CheckoutSessionID)
	assert.False(t, f.payment(t, payment.ID).IsPaid)

	confirmed, err := f.payments.ConfirmCheckoutSession(f.ctx, auth.System, CompletedCheckout{SessionID: "cs_test_1"})
	require.NoError(t, err)
	assert.True(t, confirmed.IsPaid)

	again, err := f.payments.ConfirmCheckoutSession(f.ctx, auth.System, CompletedCheckout{SessionID: "cs_test_1"})
	require.NoError(t, err, "confirmation is idempotent")
	assert.True(t, again.IsPaid)
	assert.Equal(t, *confirmed.PaymentDate, *again.PaymentDate)

	_, err = f.payments.PayOnline(f.ctx, alice, payment.ID)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	_, err = f.payments.ConfirmCheckoutSession(f.ctx, auth.System, CompletedCheckout{SessionID: "cs_unknown"})
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestConfirmCheckoutSession_SupersededSession(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice", false)
	bob := f.account(t, "bob", false)
	lotID := f.lot(t, "A", 2, 10)
	_, payment := f.park(t, alice, lotID, time.Hour)
	_, other := f.park(t, bob, lotID, time.Hour)

	f.payments = NewPaymentService(f.store, &fakeGateway{}, "usd", nil, f.clock.Now)
	_, err := f.payments.PayOnline(f.ctx, alice, payment.ID)
	require.NoError(t, err)
	_, err = f.payments.PayOnline(f.ctx, alice, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_2", *f.payment(t, payment.ID).CheckoutSessionID)

	_, err = f.payments.ConfirmCheckoutSession(f.ctx, auth.System, CompletedCheckout{SessionID: "cs_test_1"})
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err), "no payment reference")
	assert.False(t, f.payment(t, payment.ID).IsPaid)

	confirmed, err := f.payments.ConfirmCheckoutSession(f.ctx, auth.System, CompletedCheckout{SessionID: "cs_test_1", PaymentID: payment.ID})
	require.NoError(t, err)
	assert.True(t, confirmed.IsPaid)
	stored := f.payment(t, payment.ID)
	assert.True(t, stored.IsPaid)
	assert.Equal(t, "cs_test_1", *stored.CheckoutSessionID, "records the session that paid")

	again, err := f.payments.ConfirmCheckoutSession(f.ctx, auth.System, CompletedCheckout{SessionID: "cs_test_2", PaymentID: payment.ID})
	require.NoError(t, err)
	assert.Equal(t, *confirmed.PaymentDate, *again.PaymentDate)
	assert.False(t, f.payment(t, other.ID).IsPaid)
}

func TestPayOnline_Errors(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice", false)
	lotID := f.lot(t, "A", 1, 10)

	gateway := &fakeGateway{}
	f.payments = NewPaymentService(f.store, gateway, "usd", nil, f.clock.Now)

	_, free := f.park(t, alice, lotID, 0)
	assert.Zero(t, free.Amount)
	_, err := f.payments.PayOnline(f.ctx, alice, free.ID)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err), "nothing to pay")

	_, payment := f.park(t, alice, lotID, time.Hour)
	gateway.err = errors.New("gateway down")
	_, err = f.payments.PayOnline(f.ctx, alice, payment.ID)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	assert.Nil(t, f.payment(t, payment.ID).CheckoutSessionID)
}
