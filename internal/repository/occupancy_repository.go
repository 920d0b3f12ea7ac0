package repository // repository defines data access for seat occupancy snapshots

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
)

// OccupancyRepo provides methods to work with seat_occupancy rows.
type OccupancyRepo struct {
	db *sql.DB
	d  Dialect
}

// NewOccupancyRepo constructs an OccupancyRepo with the given DB handle.
func NewOccupancyRepo(db *sql.DB, d Dialect) *OccupancyRepo {
	return &OccupancyRepo{db: db, d: d}
}

const occupancyCols = `o.schedule_id, o.seat_type, o.total_seats, o.occupied_seats, o.fare, o.occupancy_rate, o.recorded_at`

// UpsertOccupancy writes rec keyed by (schedule_id, seat_type,
// recorded_at).  An existing row with the same key is overwritten, so
// the latest write wins and replays add nothing.
func (r *OccupancyRepo) UpsertOccupancy(ctx context.Context, rec model.SeatOccupancyRecord) error {
	q := r.d.Upsert("seat_occupancy",
		[]string{"schedule_id", "seat_type", "total_seats", "occupied_seats", "fare", "occupancy_rate", "recorded_at"},
		[]string{"schedule_id", "seat_type", "recorded_at"},
		[]string{"total_seats", "occupied_seats", "fare", "occupancy_rate"})
	_, err := r.db.ExecContext(ctx, q,
		rec.ScheduleID, string(rec.SeatType), rec.TotalSeats, rec.OccupiedSeats, rec.Fare, rec.OccupancyRate, rec.Timestamp.UTC())
	return classify(err)
}

// History returns up to limit snapshots of a route and seat type with
// from <= recorded_at < to, newest first.
func (r *OccupancyRepo) History(ctx context.Context, routeID int64, seat model.SeatType, from, to time.Time, limit int) ([]model.SeatOccupancyRecord, error) {
	q := r.d.Rebind(`SELECT ` + occupancyCols + `
	           FROM seat_occupancy o
	           JOIN schedules s ON s.schedule_id = o.schedule_id
	           WHERE s.route_id = ? AND o.seat_type = ? AND o.recorded_at >= ? AND o.recorded_at < ?
	           ORDER BY o.recorded_at DESC
	           LIMIT ?`)
	rows, err := r.db.QueryContext(ctx, q, routeID, string(seat), from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.SeatOccupancyRecord
	for rows.Next() {
		rec, err := scanOccupancy(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Summarize condenses snapshots into a HistorySummary.  OccupancyStdDev
// is the sample standard deviation, zero for fewer than two snapshots.
func Summarize(recs []model.SeatOccupancyRecord) model.HistorySummary {
	if len(recs) == 0 {
		return model.HistorySummary{}
	}
	var fare, occ float64
	for _, r := range recs {
		fare += r.Fare
		occ += r.OccupancyRate
	}
	n := float64(len(recs))
	hs := model.HistorySummary{Samples: len(recs), AvgFare: fare / n, AvgOccupancy: occ / n}
	if len(recs) > 1 {
		var ss float64
		for _, r := range recs {
			d := r.OccupancyRate - hs.AvgOccupancy
			ss += d * d
		}
		hs.OccupancyStdDev = math.Sqrt(ss / (n - 1))
	}
	return hs
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOccupancy(s rowScanner) (*model.SeatOccupancyRecord, error) {
	var rec model.SeatOccupancyRecord
	var seat string
	if err := s.Scan(&rec.ScheduleID, &seat, &rec.TotalSeats, &rec.OccupiedSeats, &rec.Fare, &rec.OccupancyRate, &rec.Timestamp); err != nil {
		return nil, err
	}
	rec.SeatType = model.SeatType(seat)
	rec.Timestamp = rec.Timestamp.UTC()
	return &rec, nil
}
