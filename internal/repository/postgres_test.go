package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parksync/internal/db"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, mock
}

var reservationCols = []string{
	"id", "user_id", "spot_id", "vehicle_number", "start_time", "end_time", "is_active",
	"lot_name_snapshot", "spot_number_snapshot", "price_per_hour_snapshot",
	"lot_id", "name", "spot_number", "price_per_hour",
}

func TestPostgresStore_WithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		conn, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE parking_lots SET total_spots = $1 WHERE id = $2`)).
			WithArgs(10, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := NewPostgresStore(conn).WithTx(ctx, func(tx Tx) error {
			return tx.Lots().UpdateTotalSpots(ctx, 1, 10)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		conn, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := NewPostgresStore(conn).WithTx(ctx, func(Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		conn, mock := newMock(t)
		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		called := false
		err := NewPostgresStore(conn).WithTx(ctx, func(Tx) error { called = true; return nil })
		assert.Error(t, err)
		assert.False(t, called)
	})
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate(nil))
	assert.ErrorIs(t, translate(sql.ErrNoRows), ErrNotFound)

	dup := translate(&pq.Error{Code: "23505", Constraint: "reservations_one_active_per_user"})
	assert.ErrorIs(t, dup, ErrDuplicate)
	assert.Contains(t, dup.Error(), "reservations_one_active_per_user")

	other := &pq.Error{Code: "23503"}
	assert.Equal(t, error(other), translate(other))
}

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	conn, mock := newMock(t)
	repo := NewUserRepo(conn)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("alice", "alice@example.com", "", "hash", false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), created))

	u := &db.User{Username: "alice", Email: "Alice@Example.com", PasswordHash: "hash"}
	require.NoError(t, repo.Create(ctx, u))
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, created, u.CreatedAt)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})
	err := repo.Create(ctx, &db.User{Username: "alice2", Email: "alice@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "phone", "password_hash", "is_admin", "created_at"}))
	_, err = repo.GetByEmail(ctx, "Nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE username = $1`)).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "phone", "password_hash", "is_admin", "created_at"}).
			AddRow(int64(7), "alice", "alice@example.com", "", "hash", false, created))
	found, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(7), found.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSpotRepo_CreateBatch(t *testing.T) {
	ctx := context.Background()
	conn, mock := newMock(t)
	repo := NewSpotRepo(conn)

	mock.ExpectExec(regexp.QuoteMeta(`FROM unnest($2::int[])`)).
		WithArgs(int64(3), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	require.NoError(t, repo.CreateBatch(ctx, 3, []int{1, 2}))

	require.NoError(t, repo.CreateBatch(ctx, 3, nil), "empty batch issues no statement")

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO parking_spots`)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "parking_spots_lot_id_spot_number_key"})
	assert.ErrorIs(t, repo.CreateBatch(ctx, 3, []int{2}), ErrDuplicate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_GetByID(t *testing.T) {
	ctx := context.Background()
	conn, mock := newMock(t)
	repo := NewReservationRepo(conn)
	start := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE r.id = $1`)).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(reservationCols).AddRow(
			int64(4), int64(1), nil, "KA01", start, start.Add(time.Hour), false,
			"Central", int64(3), 10.0,
			nil, nil, nil, nil,
		))

	res, err := repo.GetByID(ctx, 4)
	require.NoError(t, err)
	assert.Nil(t, res.SpotID)
	assert.Nil(t, res.LiveLotName)
	assert.Equal(t, "Central", *res.LotNameSnapshot)
	assert.Equal(t, 3, *res.SpotNumberSnapshot)
	assert.Equal(t, start.Add(time.Hour), *res.EndTime)
	assert.True(t, res.HasSnapshot())

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE r.id = $1`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(reservationCols))
	_, err = repo.GetByID(ctx, 5)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepo_Close(t *testing.T) {
	ctx := context.Background()
	conn, mock := newMock(t)
	repo := NewReservationRepo(conn)
	end := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $2 AND is_active`)).
		WithArgs(end, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Close(ctx, 4, end), ErrNotFound, "already closed")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_Create(t *testing.T) {
	ctx := context.Background()
	conn, mock := newMock(t)
	repo := NewPaymentRepo(conn)
	created := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta(`INSERT INTO payments (reservation_id, amount, is_paid, payment_date, created_at)`)

	mock.ExpectQuery(query).
		WithArgs(int64(4), int64(20), false, nil, created).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	p := &db.Payment{ReservationID: 4, Amount: 20, CreatedAt: created}
	require.NoError(t, repo.Create(ctx, p))
	assert.Equal(t, int64(11), p.ID)
	assert.Equal(t, created, p.CreatedAt, "keeps the caller's timestamp")

	mock.ExpectQuery(query).
		WithArgs(int64(4), int64(20), false, nil, sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "payments_reservation_id_key"})
	err := repo.Create(ctx, &db.Payment{ReservationID: 4, Amount: 20})
	assert.ErrorIs(t, err, ErrDuplicate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_MarkPaid(t *testing.T) {
	ctx := context.Background()
	conn, mock := newMock(t)
	repo := NewPaymentRepo(conn)
	at := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta(`UPDATE payments SET is_paid = TRUE, payment_date = $1 WHERE id = $2 AND is_paid = FALSE`)

	mock.ExpectExec(query).WithArgs(at, int64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.MarkPaid(ctx, 9, at)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(query).WithArgs(at, int64(9)).WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.MarkPaid(ctx, 9, at)
	require.NoError(t, err)
	assert.False(t, ok, "already paid")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_ListByStatus(t *testing.T) {
	ctx := context.Background()
	conn, mock := newMock(t)
	repo := NewPaymentRepo(conn)
	created := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	cols := []string{"id", "reservation_id", "amount", "is_paid", "payment_date", "checkout_session_id", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE is_paid = TRUE ORDER BY payment_date DESC`)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(2), int64(5), int64(30), true, created.Add(time.Hour), "cs_1", created).
			AddRow(int64(1), int64(4), int64(20), true, created, nil, created))

	paid, err := repo.ListByStatus(ctx, true)
	require.NoError(t, err)
	require.Len(t, paid, 2)
	assert.Equal(t, "cs_1", *paid[0].CheckoutSessionID)
	assert.Nil(t, paid[1].CheckoutSessionID)
	assert.Equal(t, int64(20), paid[1].Amount)

	assert.NoError(t, mock.ExpectationsWereMet())
}
