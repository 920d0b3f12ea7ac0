package etl

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/iliyamo/bus-occupancy-pricing/internal/config"
	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(config.DefaultThresholds().Normalization)
}

func accepted(rec model.SeatOccupancyRecord) model.Outcome {
	return model.Outcome{RecordID: "b:0", Status: model.StatusValid, Record: rec}
}

func baseRecord() model.SeatOccupancyRecord {
	return model.SeatOccupancyRecord{
		ScheduleID: 1, SeatType: "regular", TotalSeats: 40, OccupiedSeats: 30, Fare: 300,
		Timestamp: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestNormalize_RepairedScenario(t *testing.T) {
	raw := with(cleanRaw(), "total_seats", 40, "occupied_seats", 50, "fare", 300, "occupancy_rate", 1.25)
	o := newTestNormalizer().Normalize(newTestValidator().Validate("b:0", raw))
	if o.Status != model.StatusRepaired {
		t.Fatalf("status = %v", o.Status)
	}
	if o.Record.OccupiedSeats != 40 || o.Record.OccupancyRate != 1.0 {
		t.Errorf("record = %+v, want occupied 40 rate 1.0", o.Record)
	}
	if !issueTypes(o)[model.IssueImpossibleOccupancy] {
		t.Errorf("issues = %+v", o.Issues)
	}
}

func TestNormalize_RecomputesOccupancyRate(t *testing.T) {
	n := newTestNormalizer()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		rec := baseRecord()
		rec.TotalSeats = 1 + rng.Intn(80)
		rec.OccupiedSeats = rng.Intn(rec.TotalSeats + 1)
		rec.OccupancyRate = rng.Float64() * 5 // garbage from upstream
		o := n.Normalize(accepted(rec))
		want := round(float64(rec.OccupiedSeats)/float64(rec.TotalSeats), 3)
		if o.Record.OccupancyRate != want {
			t.Fatalf("%d/%d: rate = %v, want %v", rec.OccupiedSeats, rec.TotalSeats, o.Record.OccupancyRate, want)
		}
		if o.Record.OccupancyRate < 0 || o.Record.OccupancyRate > 1 {
			t.Fatalf("rate %v out of range", o.Record.OccupancyRate)
		}
	}
}

func TestNormalize_SeatTypeFolding(t *testing.T) {
	tests := []struct {
		in   string
		want model.SeatType
	}{
		{"regular", model.SeatRegular},
		{"  Premium ", model.SeatPremium},
		{"SLEEPER", model.SeatSleeper},
		{"Economy", model.SeatRegular},
		{"deluxe", model.SeatPremium},
		{"Berth", model.SeatSleeper},
	}
	n := newTestNormalizer()
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			rec := baseRecord()
			rec.SeatType = model.SeatType(tt.in)
			o := n.Normalize(accepted(rec))
			if !o.Accepted() || o.Record.SeatType != tt.want {
				t.Errorf("got %v %q, want %q", o.Status, o.Record.SeatType, tt.want)
			}
		})
	}
}

func TestNormalize_CustomAliasesFoldSeparators(t *testing.T) {
	n := NewNormalizer(config.NormalizationConfig{SeatTypeAliases: map[string]string{"AC Sleeper": "sleeper"}})
	for _, in := range []string{"ac-sleeper", "AC_SLEEPER", "ac  sleeper"} {
		if st, ok := n.SeatType(in); !ok || st != model.SeatSleeper {
			t.Errorf("SeatType(%q) = %q, %v", in, st, ok)
		}
	}
}

func TestNormalize_UnknownSeatTypeDrops(t *testing.T) {
	rec := baseRecord()
	rec.SeatType = "first class"
	in := accepted(rec)
	in.Status = model.StatusRepaired
	in.Issues = []model.QualityIssue{{RecordID: "b:0", IssueType: model.IssueImpossibleOccupancy, ActionTaken: model.ActionRepaired}}

	o := newTestNormalizer().Normalize(in)
	if o.Status != model.StatusDropped {
		t.Fatalf("status = %v, want dropped", o.Status)
	}
	if len(o.Issues) != 2 || o.Issues[1].IssueType != model.IssueUnknownSeatType {
		t.Fatalf("issues = %+v", o.Issues)
	}
	for _, is := range o.Issues {
		if is.ActionTaken != model.ActionDropped {
			t.Errorf("issue %s action = %s", is.IssueType, is.ActionTaken)
		}
	}
	if in.Issues[0].ActionTaken != model.ActionRepaired {
		t.Error("input outcome was mutated")
	}
	if o.Reason != "impossible_occupancy,unknown_seat_type" {
		t.Errorf("reason = %q", o.Reason)
	}
}

func TestNormalize_FareAndTimestamp(t *testing.T) {
	rec := baseRecord()
	rec.Fare = 299.999
	rec.Timestamp = time.Date(2024, 3, 1, 13, 30, 15, 987654321, time.FixedZone("IST", 19800))
	o := newTestNormalizer().Normalize(accepted(rec))
	if o.Record.Fare != 300 {
		t.Errorf("fare = %v, want 300", o.Record.Fare)
	}
	want := time.Date(2024, 3, 1, 8, 0, 15, 0, time.UTC)
	if !o.Record.Timestamp.Equal(want) || o.Record.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp = %v, want %v", o.Record.Timestamp, want)
	}
}

func TestNormalize_CoercionFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.SeatOccupancyRecord)
	}{
		{"fare rounds to zero", func(r *model.SeatOccupancyRecord) { r.Fare = 0.004 }},
		{"zero timestamp", func(r *model.SeatOccupancyRecord) { r.Timestamp = time.Time{} }},
		{"zero capacity", func(r *model.SeatOccupancyRecord) { r.TotalSeats = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := baseRecord()
			tt.mutate(&rec)
			o := newTestNormalizer().Normalize(accepted(rec))
			if o.Status != model.StatusDropped || !issueTypes(o)[model.IssueCoercionFailure] {
				t.Errorf("outcome = %+v", o)
			}
		})
	}
}

func TestNormalize_DroppedPassesThrough(t *testing.T) {
	in := model.Outcome{RecordID: "b:9", Status: model.StatusDropped, Reason: "negative_fare"}
	if o := newTestNormalizer().Normalize(in); o.Status != model.StatusDropped || o.Reason != "negative_fare" || len(o.Issues) != 0 {
		t.Errorf("outcome = %+v", o)
	}
}

func ExampleNormalizer_SeatType() {
	n := NewNormalizer(config.DefaultThresholds().Normalization)
	st, ok := n.SeatType(" Executive ")
	fmt.Println(st, ok)
	// Output: premium true
}
