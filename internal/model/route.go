package model

import "time"

// Route describes a bus route between two cities.  Routes are
// reference data carried in the routes section of a batch or in the
// routes metadata file; they are loaded before any schedule.
//
// Fields:
//  ID          – primary key identifier.
//  Origin      – departure city.
//  Destination – arrival city.
//  DistanceKm  – route length in kilometres (always > 0).
//  CreatedAt   – creation timestamp.
type Route struct {
	ID          int64     `json:"route_id"`    // routes.route_id
	Origin      string    `json:"origin"`      // routes.origin
	Destination string    `json:"destination"` // routes.destination
	DistanceKm  float64   `json:"distance_km"` // routes.distance_km
	CreatedAt   time.Time `json:"created_at"`  // routes.created_at
}

// Operator is a bus company running schedules.
type Operator struct {
	ID       int64  `json:"operator_id"` // operators.operator_id
	Name     string `json:"name"`        // operators.name
	IsActive bool   `json:"is_active"`   // operators.is_active
}
