package model

import "time"

// Schedule is a single departure of an operator on a route.  The
// arrival time is always after the departure time; schedules violating
// this are rejected by the validator before they reach the store.
//
// Fields:
//  ID            – schedule identifier supplied by the batch source.
//  RouteID       – route being served.
//  OperatorID    – operator running the departure.
//  DepartureTime – scheduled departure (UTC).
//  ArrivalTime   – scheduled arrival (UTC).
//  Date          – service date (midnight UTC).
type Schedule struct {
	ID            int64     `json:"schedule_id"`    // schedules.schedule_id
	RouteID       int64     `json:"route_id"`       // schedules.route_id
	OperatorID    int64     `json:"operator_id"`    // schedules.operator_id
	DepartureTime time.Time `json:"departure_time"` // schedules.departure_time
	ArrivalTime   time.Time `json:"arrival_time"`   // schedules.arrival_time
	Date          time.Time `json:"date"`           // schedules.date
}
