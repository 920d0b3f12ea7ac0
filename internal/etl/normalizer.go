package etl

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/iliyamo/bus-occupancy-pricing/internal/apperr"
	"github.com/iliyamo/bus-occupancy-pricing/internal/config"
	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
)

// Normalizer canonicalizes accepted outcomes.  Dropped outcomes pass
// through untouched.
type Normalizer struct {
	aliases map[string]model.SeatType
}

// NewNormalizer builds the seat type lookup from the alias table.  Keys
// are folded the same way incoming values are, so "AC Sleeper" in the
// table matches "ac-sleeper" in a record.
func NewNormalizer(c config.NormalizationConfig) *Normalizer {
	aliases := make(map[string]model.SeatType, len(c.SeatTypeAliases)+len(model.SeatTypes))
	for k, v := range c.SeatTypeAliases {
		aliases[foldSeatType(k)] = model.SeatType(foldSeatType(v))
	}
	for _, st := range model.SeatTypes {
		aliases[string(st)] = st
	}
	return &Normalizer{aliases: aliases}
}

// Normalize recomputes the derived fields of an accepted outcome.  A
// record that cannot be normalized is demoted to Dropped; Normalize
// never fails the caller.
func (n *Normalizer) Normalize(o model.Outcome) model.Outcome {
	if !o.Accepted() {
		return o
	}
	r := o.Record

	st, ok := n.SeatType(string(r.SeatType))
	if !ok {
		return o.Drop(newIssue(o.RecordID, model.IssueUnknownSeatType, model.SeverityMedium,
			apperr.DataError{RecordID: o.RecordID, Field: FieldSeatType, Msg: fmt.Sprintf("unknown seat type %q", r.SeatType)}))
	}
	r.SeatType = st

	if r.TotalSeats <= 0 {
		return o.Drop(coercionIssue(o.RecordID, FieldTotalSeats, "cannot derive occupancy rate"))
	}
	r.OccupancyRate = round(float64(r.OccupiedSeats)/float64(r.TotalSeats), 3)

	r.Fare = round(r.Fare, 2)
	if r.Fare <= 0 {
		return o.Drop(coercionIssue(o.RecordID, FieldFare, "fare rounds to zero"))
	}

	if r.Timestamp.IsZero() {
		return o.Drop(coercionIssue(o.RecordID, FieldTimestamp, "zero timestamp"))
	}
	r.Timestamp = r.Timestamp.UTC().Truncate(time.Second)

	o.Record = r
	return o
}

// SeatType resolves a raw seat type to its canonical form.
func (n *Normalizer) SeatType(raw string) (model.SeatType, bool) {
	st, ok := n.aliases[foldSeatType(raw)]
	if !ok || !st.Valid() {
		return "", false
	}
	return st, true
}

func foldSeatType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	}), "_")
}

func coercionIssue(recordID, field, msg string) model.QualityIssue {
	return newIssue(recordID, model.IssueCoercionFailure, model.SeverityMedium,
		apperr.DataError{RecordID: recordID, Field: field, Msg: msg})
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
