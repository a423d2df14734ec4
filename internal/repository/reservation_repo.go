package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"parksync/internal/db"
)

type ReservationRepo struct {
	DB Querier
}

func NewReservationRepo(q Querier) *ReservationRepo {
	return &ReservationRepo{DB: q}
}

// reservationSelect resolves the live spot and lot of each reservation. The
// joins are outer so reservations whose spot or lot was deleted still load.
const reservationSelect = `
	SELECT r.id, r.user_id, r.spot_id, r.vehicle_number, r.start_time, r.end_time, r.is_active,
	       r.lot_name_snapshot, r.spot_number_snapshot, r.price_per_hour_snapshot,
	       l.id, l.name, s.spot_number, l.price_per_hour
	FROM reservations r
	LEFT JOIN parking_spots s ON s.id = r.spot_id
	LEFT JOIN parking_lots l ON l.id = s.lot_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*db.Reservation, error) {
	var res db.Reservation
	err := row.Scan(
		&res.ID, &res.UserID, &res.SpotID, &res.VehicleNumber, &res.StartTime, &res.EndTime, &res.IsActive,
		&res.LotNameSnapshot, &res.SpotNumberSnapshot, &res.PricePerHourSnapshot,
		&res.LiveLotID, &res.LiveLotName, &res.LiveSpotNumber, &res.LivePricePerHour,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *ReservationRepo) Create(ctx context.Context, res *db.Reservation) error {
	query := `
		INSERT INTO reservations
		(user_id, spot_id, vehicle_number, start_time, is_active, lot_name_snapshot, spot_number_snapshot, price_per_hour_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := r.DB.QueryRowContext(ctx, query,
		res.UserID,
		res.SpotID,
		res.VehicleNumber,
		res.StartTime,
		res.IsActive,
		res.LotNameSnapshot,
		res.SpotNumberSnapshot,
		res.PricePerHourSnapshot,
	).Scan(&res.ID)
	if err != nil {
		return fmt.Errorf("error creating reservation: %w", translate(err))
	}
	return nil
}

func (r *ReservationRepo) GetByID(ctx context.Context, id int64) (*db.Reservation, error) {
	return r.getOne(ctx, reservationSelect+` WHERE r.id = $1`, id)
}

func (r *ReservationRepo) GetByIDForUpdate(ctx context.Context, id int64) (*db.Reservation, error) {
	return r.getOne(ctx, reservationSelect+` WHERE r.id = $1 FOR UPDATE OF r`, id)
}

func (r *ReservationRepo) GetActiveByUser(ctx context.Context, userID int64) (*db.Reservation, error) {
	return r.getOne(ctx, reservationSelect+` WHERE r.user_id = $1 AND r.is_active`, userID)
}

func (r *ReservationRepo) getOne(ctx context.Context, query string, arg int64) (*db.Reservation, error) {
	res, err := scanReservation(r.DB.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, fmt.Errorf("error querying reservation: %w", translate(err))
	}
	return res, nil
}

func (r *ReservationRepo) ListByUser(ctx context.Context, userID int64) ([]db.Reservation, error) {
	return r.list(ctx, reservationSelect+` WHERE r.user_id = $1 ORDER BY r.start_time DESC, r.id DESC`, userID)
}

func (r *ReservationRepo) ListAll(ctx context.Context) ([]db.Reservation, error) {
	return r.list(ctx, reservationSelect+` ORDER BY r.start_time DESC, r.id DESC`)
}

func (r *ReservationRepo) ListActive(ctx context.Context) ([]db.Reservation, error) {
	return r.list(ctx, reservationSelect+` WHERE r.is_active ORDER BY r.start_time DESC, r.id DESC`)
}

func (r *ReservationRepo) ListByLot(ctx context.Context, lotID int64) ([]db.Reservation, error) {
	return r.list(ctx, reservationSelect+` WHERE s.lot_id = $1 ORDER BY r.id`, lotID)
}

func (r *ReservationRepo) ListBySpots(ctx context.Context, spotIDs []int64) ([]db.Reservation, error) {
	if len(spotIDs) == 0 {
		return nil, nil
	}
	return r.list(ctx, reservationSelect+` WHERE r.spot_id = ANY($1) ORDER BY r.id`, pq.Array(spotIDs))
}

func (r *ReservationRepo) ListMissingSnapshot(ctx context.Context, limit int) ([]db.Reservation, error) {
	query := reservationSelect + `
		WHERE r.spot_id IS NOT NULL
		  AND (r.lot_name_snapshot IS NULL OR r.spot_number_snapshot IS NULL OR r.price_per_hour_snapshot IS NULL)
		ORDER BY r.id
		LIMIT $1`
	return r.list(ctx, query, limit)
}

func (r *ReservationRepo) list(ctx context.Context, query string, args ...any) ([]db.Reservation, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing reservations: %w", err)
	}
	defer rows.Close()

	var out []db.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning reservation: %w", err)
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservations: %w", err)
	}
	return out, nil
}

func (r *ReservationRepo) Close(ctx context.Context, id int64, endTime time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE reservations SET end_time = $1, is_active = FALSE WHERE id = $2 AND is_active`,
		endTime, id)
	if err != nil {
		return fmt.Errorf("error closing reservation %d: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("error closing reservation %d: %w", id, err)
	}
	return nil
}

func (r *ReservationRepo) SaveSnapshot(ctx context.Context, res *db.Reservation) error {
	result, err := r.DB.ExecContext(ctx, `
		UPDATE reservations
		SET lot_name_snapshot = $1, spot_number_snapshot = $2, price_per_hour_snapshot = $3
		WHERE id = $4`,
		nullString(res.LotNameSnapshot), nullInt(res.SpotNumberSnapshot), nullFloat(res.PricePerHourSnapshot), res.ID)
	if err != nil {
		return fmt.Errorf("error saving snapshot for reservation %d: %w", res.ID, err)
	}
	if err := expectOneRow(result); err != nil {
		return fmt.Errorf("error saving snapshot for reservation %d: %w", res.ID, err)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
