package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
)

// FindByKey retrieves one snapshot by natural key.  ErrNotFound when absent.
func (r *OccupancyRepo) FindByKey(ctx context.Context, k model.NaturalKey) (*model.SeatOccupancyRecord, error) {
	q := r.d.Rebind(`SELECT ` + occupancyCols + `
	           FROM seat_occupancy o
	           WHERE o.schedule_id = ? AND o.seat_type = ? AND o.recorded_at = ?`)
	rec, err := scanOccupancy(r.db.QueryRowContext(ctx, q, k.ScheduleID, string(k.SeatType), k.Timestamp.UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Count returns the number of stored snapshots.
func (r *OccupancyRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seat_occupancy`).Scan(&n)
	return n, err
}
