package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"parksync/internal/db"
)

type SpotRepo struct {
	DB Querier
}

func NewSpotRepo(q Querier) *SpotRepo {
	return &SpotRepo{DB: q}
}

// CreateBatch inserts one unbooked spot per number using a single statement.
func (r *SpotRepo) CreateBatch(ctx context.Context, lotID int64, numbers []int) error {
	if len(numbers) == 0 {
		return nil
	}
	nums := make([]int64, len(numbers))
	for i, n := range numbers {
		nums[i] = int64(n)
	}
	query := `
		INSERT INTO parking_spots (lot_id, spot_number, is_booked)
		SELECT $1, n, FALSE FROM unnest($2::int[]) AS n`
	if _, err := r.DB.ExecContext(ctx, query, lotID, pq.Array(nums)); err != nil {
		return fmt.Errorf("error creating spots for lot %d: %w", lotID, translate(err))
	}
	return nil
}

const spotColumns = `id, lot_id, spot_number, is_booked`

func (r *SpotRepo) GetByID(ctx context.Context, id int64) (*db.ParkingSpot, error) {
	return r.get(ctx, `SELECT `+spotColumns+` FROM parking_spots WHERE id = $1`, id)
}

func (r *SpotRepo) GetByIDForUpdate(ctx context.Context, id int64) (*db.ParkingSpot, error) {
	return r.get(ctx, `SELECT `+spotColumns+` FROM parking_spots WHERE id = $1 FOR UPDATE`, id)
}

// FirstAvailable skips rows locked by concurrent bookings so two callers
// never receive the same spot.
func (r *SpotRepo) FirstAvailable(ctx context.Context, lotID int64) (*db.ParkingSpot, error) {
	query := `
		SELECT ` + spotColumns + ` FROM parking_spots
		WHERE lot_id = $1 AND is_booked = FALSE
		ORDER BY spot_number
		LIMIT 1
		FOR UPDATE SKIP LOCKED`
	return r.get(ctx, query, lotID)
}

func (r *SpotRepo) get(ctx context.Context, query string, arg int64) (*db.ParkingSpot, error) {
	var s db.ParkingSpot
	if err := r.DB.QueryRowContext(ctx, query, arg).Scan(&s.ID, &s.LotID, &s.SpotNumber, &s.IsBooked); err != nil {
		return nil, fmt.Errorf("error querying parking spot: %w", translate(err))
	}
	return &s, nil
}

func (r *SpotRepo) ListByLot(ctx context.Context, lotID int64) ([]db.ParkingSpot, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+spotColumns+` FROM parking_spots WHERE lot_id = $1 ORDER BY spot_number`, lotID)
	if err != nil {
		return nil, fmt.Errorf("error listing spots for lot %d: %w", lotID, err)
	}
	defer rows.Close()

	var spots []db.ParkingSpot
	for rows.Next() {
		var s db.ParkingSpot
		if err := rows.Scan(&s.ID, &s.LotID, &s.SpotNumber, &s.IsBooked); err != nil {
			return nil, fmt.Errorf("error scanning parking spot: %w", err)
		}
		spots = append(spots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parking spots: %w", err)
	}
	return spots, nil
}

func (r *SpotRepo) SetBooked(ctx context.Context, id int64, booked bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE parking_spots SET is_booked = $1 WHERE id = $2`, booked, id)
	if err != nil {
		return fmt.Errorf("error updating spot %d: %w", id, err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("error updating spot %d: %w", id, err)
	}
	return nil
}

func (r *SpotRepo) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM parking_spots WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("error deleting spots: %w", err)
	}
	return nil
}
