package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/bus-occupancy-pricing/internal/apperr"
	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
	"github.com/iliyamo/bus-occupancy-pricing/internal/repository"
)

// RouteLookup resolves route reference data.
type RouteLookup interface {
	GetRoute(ctx context.Context, id int64) (*model.Route, error)
}

// ScheduleLookup resolves a schedule and the operator running it.
type ScheduleLookup interface {
	GetSchedule(ctx context.Context, id int64) (*model.Schedule, error)
	GetOperator(ctx context.Context, id int64) (*model.Operator, error)
}

// HistoryLookup summarizes past occupancy of a route and seat type.
type HistoryLookup interface {
	HistorySummary(ctx context.Context, routeID int64, seat model.SeatType, from, to time.Time) (model.HistorySummary, error)
}

// Query asks for a suggestion by ids.  Either RouteID or ScheduleID must
// be set; a schedule supplies the route and the departure time.
// CurrentFare zero means "derive it".
type Query struct {
	RouteID       int64
	ScheduleID    int64
	SeatType      model.SeatType
	OccupancyRate float64
	DepartureTime time.Time
	CurrentFare   float64
}

// Service builds engine requests from the store.  It performs exactly
// one history lookup per suggestion.
type Service struct {
	engine    *Engine
	routes    RouteLookup
	schedules ScheduleLookup
	history   HistoryLookup
	window    time.Duration
	log       *zap.Logger
}

// NewService wires the engine to its lookups.  schedules may be nil when
// callers always pass a route id.
func NewService(engine *Engine, routes RouteLookup, schedules ScheduleLookup, history HistoryLookup, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		engine:    engine,
		routes:    routes,
		schedules: schedules,
		history:   history,
		window:    engine.cfg.HistoryWindow,
		log:       log,
	}
}

// Suggest resolves q and prices it.  Unknown routes, schedules and
// inactive operators are rejected with a PricingValidationError.  A
// failing history lookup does not fail the request; it only lowers the
// confidence.
func (s *Service) Suggest(ctx context.Context, q Query) (model.PricingSuggestion, error) {
	routeID, departure := q.RouteID, q.DepartureTime
	q.SeatType = model.SeatType(strings.ToLower(strings.TrimSpace(string(q.SeatType))))
	if !q.SeatType.Valid() {
		return model.PricingSuggestion{}, apperr.PricingValidationError{Field: "seat_type", Msg: fmt.Sprintf("unknown seat type %q", q.SeatType)}
	}
	if q.ScheduleID != 0 {
		if s.schedules == nil {
			return model.PricingSuggestion{}, apperr.PricingValidationError{Field: "schedule_id", Msg: "schedule lookups unavailable"}
		}
		sc, err := s.schedules.GetSchedule(ctx, q.ScheduleID)
		if err != nil {
			return model.PricingSuggestion{}, lookupErr("schedule_id", q.ScheduleID, err)
		}
		op, err := s.schedules.GetOperator(ctx, sc.OperatorID)
		if err != nil {
			return model.PricingSuggestion{}, lookupErr("operator_id", sc.OperatorID, err)
		}
		if !op.IsActive {
			return model.PricingSuggestion{}, apperr.PricingValidationError{Field: "operator_id", Msg: fmt.Sprintf("operator %d is inactive", op.ID)}
		}
		if routeID != 0 && routeID != sc.RouteID {
			return model.PricingSuggestion{}, apperr.PricingValidationError{Field: "route_id", Msg: "does not match schedule"}
		}
		routeID = sc.RouteID
		if departure.IsZero() {
			departure = sc.DepartureTime
		}
	}
	if routeID == 0 {
		return model.PricingSuggestion{}, apperr.PricingValidationError{Field: "route_id", Msg: "unknown route"}
	}
	route, err := s.routes.GetRoute(ctx, routeID)
	if err != nil {
		return model.PricingSuggestion{}, lookupErr("route_id", routeID, err)
	}

	now := s.engine.now()
	var hist model.HistorySummary
	if s.history != nil {
		hist, err = s.history.HistorySummary(ctx, routeID, q.SeatType, now.Add(-s.window), now)
		if err != nil {
			s.log.Warn("history lookup failed; pricing without history",
				zap.Int64("route_id", routeID), zap.String("seat_type", string(q.SeatType)), zap.Error(err))
			hist = model.HistorySummary{}
		}
	}

	fare := q.CurrentFare
	if fare == 0 && hist.Samples > 0 {
		fare = hist.AvgFare
	}
	if fare == 0 {
		if fare, err = s.engine.TariffFare(route.DistanceKm, q.SeatType); err != nil {
			return model.PricingSuggestion{}, err
		}
	}

	return s.engine.Suggest(Request{
		RouteID:           routeID,
		DistanceKm:        route.DistanceKm,
		SeatType:          q.SeatType,
		OccupancyRate:     q.OccupancyRate,
		DepartureTime:     departure,
		CurrentFare:       fare,
		HistoricalSamples: hist.Samples,
		RoutePopularity:   RoutePopularity(hist),
	})
}

// lookupErr turns a missing row into a rejection and passes store
// failures through unchanged.
func lookupErr(field string, id int64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.PricingValidationError{Field: field, Msg: fmt.Sprintf("%d not found", id), Err: err}
	}
	return fmt.Errorf("lookup %s %d: %w", field, id, err)
}
