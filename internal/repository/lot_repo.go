package repository

import (
	"context"
	"fmt"

	"parksync/internal/db"
)

type LotRepo struct {
	DB Querier
}

func NewLotRepo(q Querier) *LotRepo {
	return &LotRepo{DB: q}
}

func (r *LotRepo) Create(ctx context.Context, lot *db.ParkingLot) error {
	query := `
		INSERT INTO parking_lots (name, total_spots, price_per_hour)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	if err := r.DB.QueryRowContext(ctx, query, lot.Name, lot.TotalSpots, lot.PricePerHour).Scan(&lot.ID, &lot.CreatedAt); err != nil {
		return fmt.Errorf("error creating parking lot: %w", translate(err))
	}
	return nil
}

func (r *LotRepo) GetByID(ctx context.Context, id int64) (*db.ParkingLot, error) {
	return r.get(ctx, `SELECT id, name, total_spots, price_per_hour, created_at FROM parking_lots WHERE id = $1`, id)
}

func (r *LotRepo) GetByIDForUpdate(ctx context.Context, id int64) (*db.ParkingLot, error) {
	return r.get(ctx, `SELECT id, name, total_spots, price_per_hour, created_at FROM parking_lots WHERE id = $1 FOR UPDATE`, id)
}

func (r *LotRepo) get(ctx context.Context, query string, id int64) (*db.ParkingLot, error) {
	var lot db.ParkingLot
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&lot.ID, &lot.Name, &lot.TotalSpots, &lot.PricePerHour, &lot.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("error querying parking lot %d: %w", id, translate(err))
	}
	return &lot, nil
}

func (r *LotRepo) List(ctx context.Context) ([]db.LotSummary, error) {
	query := `
		SELECT l.id, l.name, l.total_spots, l.price_per_hour, l.created_at,
		       COUNT(s.id) AS spot_count,
		       COUNT(s.id) FILTER (WHERE s.is_booked) AS booked_spots
		FROM parking_lots l
		LEFT JOIN parking_spots s ON s.lot_id = l.id
		GROUP BY l.id
		ORDER BY l.id`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing parking lots: %w", err)
	}
	defer rows.Close()

	var lots []db.LotSummary
	for rows.Next() {
		var s db.LotSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.TotalSpots, &s.PricePerHour, &s.CreatedAt, &s.SpotCount, &s.BookedSpots); err != nil {
			return nil, fmt.Errorf("error scanning parking lot: %w", err)
		}
		lots = append(lots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parking lots: %w", err)
	}
	return lots, nil
}

func (r *LotRepo) UpdateTotalSpots(ctx context.Context, id int64, total int) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE parking_lots SET total_spots = $1 WHERE id = $2`, total, id)
	if err != nil {
		return fmt.Errorf("error updating parking lot %d: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("error updating parking lot %d: %w", id, err)
	}
	return nil
}

// Delete removes the lot. Its spots cascade; reservations keep their rows
// with spot_id set to NULL.
func (r *LotRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM parking_lots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting parking lot %d: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("error deleting parking lot %d: %w", id, err)
	}
	return nil
}
