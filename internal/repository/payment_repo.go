package repository

import (
	"context"
	"fmt"
	"time"

	"parksync/internal/db"
)

type PaymentRepo struct {
	DB Querier
}

func NewPaymentRepo(q Querier) *PaymentRepo {
	return &PaymentRepo{DB: q}
}

const paymentColumns = `id, reservation_id, amount, is_paid, payment_date, checkout_session_id, created_at`

func scanPayment(row rowScanner) (*db.Payment, error) {
	var p db.Payment
	if err := row.Scan(&p.ID, &p.ReservationID, &p.Amount, &p.IsPaid, &p.PaymentDate, &p.CheckoutSessionID, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts p with its CreatedAt, which is set to the current time when
// zero.
func (r *PaymentRepo) Create(ctx context.Context, p *db.Payment) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO payments (reservation_id, amount, is_paid, payment_date, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.DB.QueryRowContext(ctx, query, p.ReservationID, p.Amount, p.IsPaid, p.PaymentDate, p.CreatedAt).Scan(&p.ID); err != nil {
		return fmt.Errorf("error creating payment: %w", translate(err))
	}
	return nil
}

func (r *PaymentRepo) GetByID(ctx context.Context, id int64) (*db.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

func (r *PaymentRepo) GetByIDForUpdate(ctx context.Context, id int64) (*db.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
}

func (r *PaymentRepo) GetByReservation(ctx context.Context, reservationID int64) (*db.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE reservation_id = $1`, reservationID)
}

func (r *PaymentRepo) GetByCheckoutSession(ctx context.Context, sessionID string) (*db.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE checkout_session_id = $1 FOR UPDATE`, sessionID)
}

func (r *PaymentRepo) getOne(ctx context.Context, query string, arg any) (*db.Payment, error) {
	p, err := scanPayment(r.DB.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, fmt.Errorf("error querying payment: %w", translate(err))
	}
	return p, nil
}

func (r *PaymentRepo) ListByStatus(ctx context.Context, paid bool) ([]db.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE is_paid = FALSE ORDER BY created_at, id`
	if paid {
		query = `SELECT ` + paymentColumns + ` FROM payments WHERE is_paid = TRUE ORDER BY payment_date DESC, id DESC`
	}
	return r.list(ctx, query)
}

func (r *PaymentRepo) ListUnpaidBefore(ctx context.Context, before time.Time) ([]db.Payment, error) {
	return r.list(ctx, `SELECT `+paymentColumns+` FROM payments WHERE is_paid = FALSE AND created_at < $1 ORDER BY created_at, id`, before)
}

func (r *PaymentRepo) list(ctx context.Context, query string, args ...any) ([]db.Payment, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing payments: %w", err)
	}
	defer rows.Close()

	var out []db.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning payment: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}
	return out, nil
}

func (r *PaymentRepo) MarkPaid(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE payments SET is_paid = TRUE, payment_date = $1 WHERE id = $2 AND is_paid = FALSE`,
		at, id)
	if err != nil {
		return false, fmt.Errorf("error marking payment %d paid: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error marking payment %d paid: %w", id, err)
	}
	return n == 1, nil
}

func (r *PaymentRepo) SetCheckoutSession(ctx context.Context, id int64, sessionID string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE payments SET checkout_session_id = $1 WHERE id = $2`, sessionID, id)
	if err != nil {
		return fmt.Errorf("error storing checkout session for payment %d: %w", id, translate(err))
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("error storing checkout session for payment %d: %w", id, err)
	}
	return nil
}
