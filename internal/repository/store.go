package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
)

// Store bundles the repositories behind one handle.  It satisfies the
// loader's write contract and the pricing service's lookups.
type Store struct {
	*RouteRepo
	*OperatorRepo
	*ScheduleRepo
	*OccupancyRepo
	*IssueRepo

	historyLimit int
}

// NewStore builds every repository over db.  historyLimit caps the
// snapshots a history summary is computed from.
func NewStore(db *sql.DB, d Dialect, historyLimit int) *Store {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Store{
		RouteRepo:     NewRouteRepo(db, d),
		OperatorRepo:  NewOperatorRepo(db, d),
		ScheduleRepo:  NewScheduleRepo(db, d),
		OccupancyRepo: NewOccupancyRepo(db, d),
		IssueRepo:     NewIssueRepo(db, d),
		historyLimit:  historyLimit,
	}
}

// HistorySummary summarizes the latest snapshots of a route and seat
// type within [from, to).
func (s *Store) HistorySummary(ctx context.Context, routeID int64, seat model.SeatType, from, to time.Time) (model.HistorySummary, error) {
	recs, err := s.History(ctx, routeID, seat, from, to, s.historyLimit)
	if err != nil {
		return model.HistorySummary{}, err
	}
	return Summarize(recs), nil
}
