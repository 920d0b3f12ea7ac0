package repository // route and operator reference data

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
)

// RouteRepo provides methods to work with routes in the database.
type RouteRepo struct {
	db *sql.DB
	d  Dialect
}

// NewRouteRepo constructs a RouteRepo with the given DB handle.
func NewRouteRepo(db *sql.DB, d Dialect) *RouteRepo {
	return &RouteRepo{db: db, d: d}
}

// GetRoute retrieves a route by id.  ErrNotFound when absent.
func (r *RouteRepo) GetRoute(ctx context.Context, id int64) (*model.Route, error) {
	q := r.d.Rebind(`SELECT route_id, origin, destination, distance_km, created_at
	           FROM routes WHERE route_id = ?`)
	var rt model.Route
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&rt.ID, &rt.Origin, &rt.Destination, &rt.DistanceKm, &rt.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rt, nil
}

// UpsertRoute inserts or replaces a route.  created_at is kept on update.
func (r *RouteRepo) UpsertRoute(ctx context.Context, rt model.Route) error {
	q := r.d.Upsert("routes",
		[]string{"route_id", "origin", "destination", "distance_km"},
		[]string{"route_id"},
		[]string{"origin", "destination", "distance_km"})
	_, err := r.db.ExecContext(ctx, q, rt.ID, rt.Origin, rt.Destination, rt.DistanceKm)
	return classify(err)
}

// OperatorRepo provides methods to work with operators in the database.
type OperatorRepo struct {
	db *sql.DB
	d  Dialect
}

// NewOperatorRepo constructs an OperatorRepo with the given DB handle.
func NewOperatorRepo(db *sql.DB, d Dialect) *OperatorRepo {
	return &OperatorRepo{db: db, d: d}
}

// GetOperator retrieves an operator by id.  ErrNotFound when absent.
func (r *OperatorRepo) GetOperator(ctx context.Context, id int64) (*model.Operator, error) {
	q := r.d.Rebind(`SELECT operator_id, name, is_active FROM operators WHERE operator_id = ?`)
	var op model.Operator
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&op.ID, &op.Name, &op.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &op, nil
}

// UpsertOperator inserts or replaces an operator.
func (r *OperatorRepo) UpsertOperator(ctx context.Context, op model.Operator) error {
	q := r.d.Upsert("operators",
		[]string{"operator_id", "name", "is_active"},
		[]string{"operator_id"},
		[]string{"name", "is_active"})
	_, err := r.db.ExecContext(ctx, q, op.ID, op.Name, op.IsActive)
	return classify(err)
}
