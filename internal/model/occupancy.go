package model

import (
	"fmt"
	"time"
)

// SeatType is the canonical seat class of an occupancy record.
type SeatType string

const (
	SeatRegular SeatType = "regular"
	SeatPremium SeatType = "premium"
	SeatSleeper SeatType = "sleeper"
)

// SeatTypes lists every canonical seat type in tier order.
var SeatTypes = []SeatType{SeatRegular, SeatPremium, SeatSleeper}

// Valid reports whether s is one of the canonical seat types.
func (s SeatType) Valid() bool {
	switch s {
	case SeatRegular, SeatPremium, SeatSleeper:
		return true
	}
	return false
}

// RawRecord is an occupancy record exactly as it arrived from the batch
// source.  Values are whatever the JSON decoder produced (json.Number,
// string, bool, nil, ...) and nothing about them is trusted.
type RawRecord map[string]any

// SeatOccupancyRecord is the normalized seat occupancy snapshot for one
// seat class of one schedule at one point in time.  OccupancyRate is
// derived from OccupiedSeats/TotalSeats by the normalizer and is never
// copied from the raw input.
//
// Fields:
//  ScheduleID    – schedule the snapshot belongs to.
//  SeatType      – canonical seat class.
//  TotalSeats    – seats of this class on the bus.
//  OccupiedSeats – seats sold, 0 <= OccupiedSeats <= TotalSeats.
//  Fare          – fare charged at snapshot time (> 0).
//  OccupancyRate – OccupiedSeats/TotalSeats rounded to 3 decimals.
//  Timestamp     – snapshot time (UTC, second precision).
type SeatOccupancyRecord struct {
	ScheduleID    int64     `json:"schedule_id"`    // seat_occupancy.schedule_id
	SeatType      SeatType  `json:"seat_type"`      // seat_occupancy.seat_type
	TotalSeats    int       `json:"total_seats"`    // seat_occupancy.total_seats
	OccupiedSeats int       `json:"occupied_seats"` // seat_occupancy.occupied_seats
	Fare          float64   `json:"fare"`           // seat_occupancy.fare
	OccupancyRate float64   `json:"occupancy_rate"` // seat_occupancy.occupancy_rate
	Timestamp     time.Time `json:"timestamp"`      // seat_occupancy.timestamp
}

// NaturalKey identifies an occupancy snapshot independently of any
// surrogate id assigned by the store.
type NaturalKey struct {
	ScheduleID int64
	SeatType   SeatType
	Timestamp  time.Time
}

// String renders the key as "schedule/seat_type/RFC3339".
func (k NaturalKey) String() string {
	return fmt.Sprintf("%d/%s/%s", k.ScheduleID, k.SeatType, k.Timestamp.UTC().Format(time.RFC3339))
}

// Key returns the record's natural key.  The timestamp is converted to
// UTC so equal instants in different zones map to the same key.
func (r SeatOccupancyRecord) Key() NaturalKey {
	return NaturalKey{ScheduleID: r.ScheduleID, SeatType: r.SeatType, Timestamp: r.Timestamp.UTC()}
}

// HistorySummary condenses the recent occupancy history of one route and
// seat type.  Samples is the number of records the summary is built from.
type HistorySummary struct {
	Samples         int     `json:"samples"`
	AvgFare         float64 `json:"avg_fare"`
	AvgOccupancy    float64 `json:"avg_occupancy"`
	OccupancyStdDev float64 `json:"occupancy_stddev"`
}
