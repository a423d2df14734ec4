package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	const op = "repository.PostgresStore.WithTx"

	sqlTx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(newPostgresTx(sqlTx)); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, translate(err))
	}
	committed = true
	return nil
}

type postgresTx struct {
	users        *UserRepo
	lots         *LotRepo
	spots        *SpotRepo
	reservations *ReservationRepo
	payments     *PaymentRepo
}

func newPostgresTx(q Querier) *postgresTx {
	return &postgresTx{
		users:        NewUserRepo(q),
		lots:         NewLotRepo(q),
		spots:        NewSpotRepo(q),
		reservations: NewReservationRepo(q),
		payments:     NewPaymentRepo(q),
	}
}

func (t *postgresTx) Users() UserRepository               { return t.users }
func (t *postgresTx) Lots() LotRepository                 { return t.lots }
func (t *postgresTx) Spots() SpotRepository               { return t.spots }
func (t *postgresTx) Reservations() ReservationRepository { return t.reservations }
func (t *postgresTx) Payments() PaymentRepository         { return t.payments }

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
