// Package etl turns raw occupancy batches into normalized records: it
// validates, repairs or drops each record, normalizes the survivors and
// hands them to the quality reporter and the loader.
package etl

import (
	"errors"
	"fmt"

	"github.com/iliyamo/bus-occupancy-pricing/internal/apperr"
	"github.com/iliyamo/bus-occupancy-pricing/internal/config"
	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
)

// Required occupancy record fields.
const (
	FieldScheduleID    = "schedule_id"
	FieldSeatType      = "seat_type"
	FieldTotalSeats    = "total_seats"
	FieldOccupiedSeats = "occupied_seats"
	FieldFare          = "fare"
	FieldTimestamp     = "timestamp"
)

// Validator classifies raw records against field and business rules.
// It holds only thresholds, so one instance is safe for concurrent use.
type Validator struct {
	maxFare float64
}

// NewValidator creates a validator for the given thresholds.
func NewValidator(t config.ValidationThresholds) *Validator {
	return &Validator{maxFare: t.MaxFare}
}

// Validate runs every check against raw and returns the tagged outcome.
// Checks are independent: a record can collect several issues.  Any drop
// check wins over a repair.  The candidate record carries the raw seat
// type; canonicalization is the normalizer's job.
func (v *Validator) Validate(recordID string, raw model.RawRecord) model.Outcome {
	out := model.Outcome{RecordID: recordID, Status: model.StatusValid}
	var issues []model.QualityIssue
	drop := false

	fail := func(it model.IssueType, sev model.Severity, field, msg string) {
		issues = append(issues, newIssue(recordID, it, sev, apperr.DataError{RecordID: recordID, Field: field, Msg: msg}))
	}
	missing := func(field string, err error) {
		drop = true
		msg := "missing required field"
		if errors.Is(err, errUnparseable) {
			msg = fmt.Sprintf("unparseable value %v", raw[field])
		}
		fail(model.IssueMissingField, model.SeverityHigh, field, msg)
	}

	scheduleID, err := toInt(raw[FieldScheduleID])
	if err != nil {
		missing(FieldScheduleID, err)
	}
	seatType, err := toString(raw[FieldSeatType])
	if err != nil {
		missing(FieldSeatType, err)
	}
	ts, err := toTime(raw[FieldTimestamp])
	if err != nil {
		missing(FieldTimestamp, err)
	}

	fare, fareErr := toFloat(raw[FieldFare])
	switch {
	case fareErr != nil:
		missing(FieldFare, fareErr)
	case fare <= 0:
		drop = true
		fail(model.IssueNegativeFare, model.SeverityHigh, FieldFare, fmt.Sprintf("fare %.2f is not positive", fare))
	case fare > v.maxFare:
		drop = true
		fail(model.IssueExcessiveFare, model.SeverityHigh, FieldFare, fmt.Sprintf("fare %.2f exceeds maximum %.2f", fare, v.maxFare))
	}

	total, totalErr := toInt(raw[FieldTotalSeats])
	switch {
	case totalErr != nil:
		missing(FieldTotalSeats, totalErr)
	case total <= 0:
		drop = true
		fail(model.IssueInvalidCapacity, model.SeverityHigh, FieldTotalSeats, fmt.Sprintf("total_seats %d is not positive", total))
	}

	occupied, occErr := toInt(raw[FieldOccupiedSeats])
	switch {
	case occErr != nil:
		missing(FieldOccupiedSeats, occErr)
	case occupied < 0:
		drop = true
		fail(model.IssueInvalidOccupancy, model.SeverityHigh, FieldOccupiedSeats, fmt.Sprintf("occupied_seats %d is negative", occupied))
	}

	repaired := false
	if totalErr == nil && occErr == nil && total > 0 && occupied > total {
		fail(model.IssueImpossibleOccupancy, model.SeverityMedium, FieldOccupiedSeats,
			fmt.Sprintf("occupied_seats %d exceeds total_seats %d, clamped", occupied, total))
		occupied = total
		repaired = true
	}

	out.Issues = issues
	switch {
	case drop:
		out.Status = model.StatusDropped
		for i := range out.Issues {
			out.Issues[i].ActionTaken = model.ActionDropped
		}
		out.Reason = model.ReasonFrom(out.Issues)
		return out
	case repaired:
		out.Status = model.StatusRepaired
		out.Reason = model.ReasonFrom(out.Issues)
	}

	out.Record = model.SeatOccupancyRecord{
		ScheduleID:    scheduleID,
		SeatType:      model.SeatType(seatType),
		TotalSeats:    int(total),
		OccupiedSeats: int(occupied),
		Fare:          fare,
		Timestamp:     ts,
	}
	return out
}

// ValidateSchedule checks one schedule row.  ok is false when the row
// must be dropped; issues describe why.
func ValidateSchedule(recordID string, raw model.RawRecord) (s model.Schedule, issues []model.QualityIssue, ok bool) {
	fail := func(it model.IssueType, field, msg string) {
		is := newIssue(recordID, it, model.SeverityHigh, apperr.DataError{RecordID: recordID, Field: field, Msg: msg})
		is.ActionTaken = model.ActionDropped
		issues = append(issues, is)
	}
	ids := map[string]*int64{"schedule_id": &s.ID, "route_id": &s.RouteID, "operator_id": &s.OperatorID}
	for _, field := range []string{"schedule_id", "route_id", "operator_id"} {
		n, err := toInt(raw[field])
		if err != nil || n <= 0 {
			fail(model.IssueMissingField, field, "missing or invalid id")
			continue
		}
		*ids[field] = n
	}
	dep, depErr := toTime(raw["departure_time"])
	if depErr != nil {
		fail(model.IssueMissingField, "departure_time", depErr.Error())
	}
	arr, arrErr := toTime(raw["arrival_time"])
	if arrErr != nil {
		fail(model.IssueMissingField, "arrival_time", arrErr.Error())
	}
	if depErr == nil && arrErr == nil && !arr.After(dep) {
		fail(model.IssueInvalidSchedule, "arrival_time", "arrival is not after departure")
	}
	if len(issues) > 0 {
		return model.Schedule{}, issues, false
	}

	s.DepartureTime = dep.UTC()
	s.ArrivalTime = arr.UTC()
	s.Date = dayOf(s.DepartureTime)
	if d, err := toTime(raw["date"]); err == nil {
		s.Date = dayOf(d.UTC())
	}
	return s, nil, true
}

// ValidateRoute checks one route row.  Ids and both cities are
// required and the distance must be positive.
func ValidateRoute(recordID string, raw model.RawRecord) (r model.Route, issues []model.QualityIssue, ok bool) {
	fail := func(it model.IssueType, field, msg string) {
		is := newIssue(recordID, it, model.SeverityHigh, apperr.DataError{RecordID: recordID, Field: field, Msg: msg})
		issues = append(issues, is)
	}
	if id, err := toInt(raw["route_id"]); err != nil || id <= 0 {
		fail(model.IssueMissingField, "route_id", "missing or invalid id")
	} else {
		r.ID = id
	}
	cities := map[string]*string{"origin": &r.Origin, "destination": &r.Destination}
	for _, field := range []string{"origin", "destination"} {
		v, err := toString(raw[field])
		if err != nil || v == "" {
			fail(model.IssueMissingField, field, "missing city")
			continue
		}
		*cities[field] = v
	}
	km, err := toFloat(raw["distance_km"])
	switch {
	case errors.Is(err, errMissing):
		fail(model.IssueMissingField, "distance_km", err.Error())
	case err != nil:
		fail(model.IssueCoercionFailure, "distance_km", err.Error())
	case km <= 0:
		fail(model.IssueInvalidRoute, "distance_km", fmt.Sprintf("distance %v must be positive", km))
	default:
		r.DistanceKm = km
	}
	if len(issues) > 0 {
		return model.Route{}, issues, false
	}
	return r, nil, true
}

// ValidateOperator checks one operator row.  A missing is_active means
// active.
func ValidateOperator(recordID string, raw model.RawRecord) (op model.Operator, issues []model.QualityIssue, ok bool) {
	fail := func(field, msg string) {
		is := newIssue(recordID, model.IssueMissingField, model.SeverityHigh, apperr.DataError{RecordID: recordID, Field: field, Msg: msg})
		issues = append(issues, is)
	}
	if id, err := toInt(raw["operator_id"]); err != nil || id <= 0 {
		fail("operator_id", "missing or invalid id")
	} else {
		op.ID = id
	}
	if name, err := toString(raw["name"]); err != nil || name == "" {
		fail("name", "missing name")
	} else {
		op.Name = name
	}
	op.IsActive = true
	if present(raw["is_active"]) {
		active, err := toBool(raw["is_active"])
		if err != nil {
			fail("is_active", err.Error())
		}
		op.IsActive = active
	}
	if len(issues) > 0 {
		return model.Operator{}, issues, false
	}
	return op, nil, true
}

func newIssue(recordID string, it model.IssueType, sev model.Severity, err error) model.QualityIssue {
	action := model.ActionDropped
	if it == model.IssueImpossibleOccupancy {
		action = model.ActionRepaired
	}
	return model.QualityIssue{
		RecordID:    recordID,
		IssueType:   it,
		Severity:    sev,
		Description: err.Error(),
		ActionTaken: action,
	}
}
