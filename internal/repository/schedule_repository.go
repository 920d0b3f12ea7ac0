package repository // repository defines data access for schedules

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
)

// ScheduleRepo provides methods to work with schedules in the database.
type ScheduleRepo struct {
	db *sql.DB
	d  Dialect
}

// NewScheduleRepo constructs a ScheduleRepo with the given DB handle.
func NewScheduleRepo(db *sql.DB, d Dialect) *ScheduleRepo {
	return &ScheduleRepo{db: db, d: d}
}

// GetSchedule retrieves a schedule by id.  ErrNotFound when absent.
func (r *ScheduleRepo) GetSchedule(ctx context.Context, id int64) (*model.Schedule, error) {
	q := r.d.Rebind(`SELECT schedule_id, route_id, operator_id, departure_time, arrival_time, service_date
	           FROM schedules WHERE schedule_id = ?`)
	var s model.Schedule
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&s.ID, &s.RouteID, &s.OperatorID, &s.DepartureTime, &s.ArrivalTime, &s.Date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.DepartureTime = s.DepartureTime.UTC()
	s.ArrivalTime = s.ArrivalTime.UTC()
	s.Date = s.Date.UTC()
	return &s, nil
}

// UpsertSchedule inserts a schedule or replaces the one with the same id.
func (r *ScheduleRepo) UpsertSchedule(ctx context.Context, s model.Schedule) error {
	q := r.d.Upsert("schedules",
		[]string{"schedule_id", "route_id", "operator_id", "departure_time", "arrival_time", "service_date"},
		[]string{"schedule_id"},
		[]string{"route_id", "operator_id", "departure_time", "arrival_time", "service_date"})
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.RouteID, s.OperatorID, s.DepartureTime.UTC(), s.ArrivalTime.UTC(), s.Date.UTC())
	return classify(err)
}
