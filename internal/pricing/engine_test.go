package pricing

import (
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/bus-occupancy-pricing/internal/apperr"
	"github.com/iliyamo/bus-occupancy-pricing/internal/config"
	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
)

var now = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(config.DefaultThresholds().Pricing, WithClock(func() time.Time { return now }))
}

func TestSuggest_PeakLastMinute(t *testing.T) {
	s, err := newTestEngine().Suggest(Request{
		RouteID: 1, DistanceKm: 150, SeatType: model.SeatRegular, OccupancyRate: 0.9,
		DepartureTime: now.Add(30 * time.Minute), CurrentFare: 300, BaseFare: 300, HistoricalSamples: 20,
	})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if s.SuggestedFare < 210 || s.SuggestedFare > 750 {
		t.Errorf("fare %v outside [210, 750]", s.SuggestedFare)
	}
	// 300 * 1.42 * 1.15 * 1.2 = 587.88 -> 590
	if s.SuggestedFare != 590 {
		t.Errorf("fare = %v, want 590", s.SuggestedFare)
	}
	for _, want := range []string{"high occupancy", "last-minute booking", "peak hour"} {
		if !strings.Contains(s.Reasoning, want) {
			t.Errorf("reasoning %q lacks %q", s.Reasoning, want)
		}
	}
	if s.Factors.Occupancy != 1.42 || s.Factors.PeakHour != 1.15 || s.Factors.LeadTime != 1.2 || s.Factors.Route != 1 {
		t.Errorf("factors = %+v", s.Factors)
	}
	if s.AdjustmentPct != 96.7 {
		t.Errorf("adjustment = %v, want 96.7", s.AdjustmentPct)
	}
	if s.ModelVersion != ModelVersion || !s.ComputedAt.Equal(now) {
		t.Errorf("meta = %s %v", s.ModelVersion, s.ComputedAt)
	}
}

func TestSuggest_OffPeakEarlyBooking(t *testing.T) {
	dep := time.Date(2024, 3, 11, 23, 0, 0, 0, time.UTC)
	s, err := newTestEngine().Suggest(Request{
		RouteID: 1, DistanceKm: 150, SeatType: model.SeatRegular, OccupancyRate: 0.1,
		DepartureTime: dep, CurrentFare: 300,
	})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if s.SuggestedFare >= s.BaseFare {
		t.Errorf("fare %v not below base %v", s.SuggestedFare, s.BaseFare)
	}
	// 300 * 0.78 * 0.9 * 0.95 = 200.07, clamped to 210
	if s.SuggestedFare != 210 {
		t.Errorf("fare = %v, want 210", s.SuggestedFare)
	}
	for _, want := range []string{"low occupancy", "early booking", "off-peak", "minimum fare applied", "limited historical data"} {
		if !strings.Contains(s.Reasoning, want) {
			t.Errorf("reasoning %q lacks %q", s.Reasoning, want)
		}
	}
}

func TestSuggest_StaysWithinClamp(t *testing.T) {
	e := newTestEngine()
	rng := rand.New(rand.NewSource(42))
	seats := model.SeatTypes
	for i := 0; i < 2000; i++ {
		base := 50 + rng.Float64()*2000
		req := Request{
			DistanceKm:    1 + rng.Float64()*1200,
			SeatType:      seats[rng.Intn(len(seats))],
			OccupancyRate: rng.Float64(),
			DepartureTime: now.Add(time.Duration(rng.Int63n(int64(30 * 24 * time.Hour)))),
			CurrentFare:   base * (0.2 + rng.Float64()*4),
			BaseFare:      base,
		}
		s, err := e.Suggest(req)
		if err != nil {
			t.Fatalf("Suggest(%+v): %v", req, err)
		}
		if s.SuggestedFare < 0.7*base-1e-9 || s.SuggestedFare > 2.5*base+1e-9 {
			t.Fatalf("fare %v outside [%v, %v] for %+v", s.SuggestedFare, 0.7*base, 2.5*base, req)
		}
	}
}

func TestSuggest_OccupancyFactorIsMonotonic(t *testing.T) {
	e := newTestEngine()
	prev := math.Inf(-1)
	for i := 0; i <= 100; i++ {
		r := float64(i) / 100
		s, err := e.Suggest(Request{DistanceKm: 100, SeatType: model.SeatPremium, OccupancyRate: r, CurrentFare: 500})
		if err != nil {
			t.Fatalf("Suggest: %v", err)
		}
		if s.Factors.Occupancy < prev {
			t.Fatalf("occupancy factor fell from %v to %v at r=%v", prev, s.Factors.Occupancy, r)
		}
		prev = s.Factors.Occupancy
	}
	if prev != 1.5 {
		t.Errorf("factor at full occupancy = %v, want 1.5", prev)
	}
}

func TestConfidence(t *testing.T) {
	e := newTestEngine()
	for _, pop := range []float64{0, 0.5, 1} {
		prev := -1.0
		for n := -5; n <= 200; n++ {
			c := e.Confidence(n, pop)
			if c < 0 || c > 1 {
				t.Fatalf("confidence(%d, %v) = %v out of range", n, pop, c)
			}
			if c < prev {
				t.Fatalf("confidence decreased at %d (popularity %v): %v < %v", n, pop, c, prev)
			}
			prev = c
		}
	}
	tests := []struct {
		samples    int
		popularity float64
		want       float64
	}{
		{0, 1, 0.5},
		{25, 0, 0.7},
		{50, 0, 0.9},
		{50, 1, 1},
		{500, 0.5, 0.95},
		{10, 7, 0.68},
		{10, math.NaN(), 0.58},
	}
	for _, tt := range tests {
		if got := e.Confidence(tt.samples, tt.popularity); got != tt.want {
			t.Errorf("Confidence(%d, %v) = %v, want %v", tt.samples, tt.popularity, got, tt.want)
		}
	}
}

func TestRoutePopularity(t *testing.T) {
	tests := []struct {
		name string
		h    model.HistorySummary
		want float64
	}{
		{"no history", model.HistorySummary{}, 0.5},
		{"full and steady", model.HistorySummary{Samples: 20, AvgOccupancy: 1}, 1},
		{"busy with spread", model.HistorySummary{Samples: 20, AvgOccupancy: 0.8, OccupancyStdDev: 0.1}, 0.83},
		{"empty and erratic", model.HistorySummary{Samples: 20, AvgOccupancy: 0, OccupancyStdDev: 2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoutePopularity(tt.h); got != tt.want {
				t.Errorf("RoutePopularity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSuggest_PeakHoursFollowConfiguredTimezone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	local := time.Date(2024, 3, 5, 8, 0, 0, 0, ist) // 02:30 UTC
	req := Request{DistanceKm: 150, SeatType: model.SeatRegular, OccupancyRate: 0.5, CurrentFare: 300}

	utc := newTestEngine()
	for _, dep := range []time.Time{local, local.UTC()} {
		req.DepartureTime = dep
		s, err := utc.Suggest(req)
		if err != nil {
			t.Fatalf("Suggest: %v", err)
		}
		if s.Factors.PeakHour != 0.9 {
			t.Errorf("UTC engine, departure %v: peak factor = %v, want off-peak 0.9", dep, s.Factors.PeakHour)
		}
	}

	cfg := config.DefaultThresholds().Pricing
	cfg.Timezone = "Asia/Kolkata"
	kolkata := NewEngine(cfg, WithClock(func() time.Time { return now }))
	for _, dep := range []time.Time{local, local.UTC()} {
		req.DepartureTime = dep
		s, err := kolkata.Suggest(req)
		if err != nil {
			t.Fatalf("Suggest: %v", err)
		}
		if s.Factors.PeakHour != 1.15 || !strings.Contains(s.Reasoning, "peak hour departure") {
			t.Errorf("Kolkata engine, departure %v: peak factor = %v (%s)", dep, s.Factors.PeakHour, s.Reasoning)
		}
	}
}

func TestSuggest_Rejections(t *testing.T) {
	valid := Request{DistanceKm: 100, SeatType: model.SeatRegular, OccupancyRate: 0.5, CurrentFare: 300}
	tests := []struct {
		name  string
		mod   func(*Request)
		field string
	}{
		{"unknown seat type", func(r *Request) { r.SeatType = "lounge" }, "seat_type"},
		{"occupancy above one", func(r *Request) { r.OccupancyRate = 1.01 }, "occupancy_rate"},
		{"negative occupancy", func(r *Request) { r.OccupancyRate = -0.1 }, "occupancy_rate"},
		{"NaN occupancy", func(r *Request) { r.OccupancyRate = math.NaN() }, "occupancy_rate"},
		{"zero fare", func(r *Request) { r.CurrentFare = 0 }, "current_fare"},
		{"negative fare", func(r *Request) { r.CurrentFare = -20 }, "current_fare"},
		{"infinite fare", func(r *Request) { r.CurrentFare = math.Inf(1) }, "current_fare"},
		{"negative base", func(r *Request) { r.BaseFare = -1 }, "base_fare"},
		{"unknown route", func(r *Request) { r.DistanceKm = 0 }, "distance_km"},
		{"popularity above one", func(r *Request) { r.RoutePopularity = 1.5 }, "route_popularity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mod(&req)
			s, err := newTestEngine().Suggest(req)
			if !apperr.IsPricingValidation(err) {
				t.Fatalf("err = %v, want PricingValidationError", err)
			}
			var pve apperr.PricingValidationError
			if pve = err.(apperr.PricingValidationError); pve.Field != tt.field {
				t.Errorf("field = %q, want %q", pve.Field, tt.field)
			}
			if s != (model.PricingSuggestion{}) {
				t.Errorf("partial suggestion returned: %+v", s)
			}
		})
	}
}

func TestSuggest_SeatTypeIsFolded(t *testing.T) {
	s, err := newTestEngine().Suggest(Request{DistanceKm: 600, SeatType: " Sleeper ", OccupancyRate: 0.5, CurrentFare: 1000})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if s.SeatType != model.SeatSleeper {
		t.Errorf("seat = %q", s.SeatType)
	}
	// 1.06 band * 1.08 tier
	if s.Factors.Route != 1.1448 {
		t.Errorf("route factor = %v, want 1.1448", s.Factors.Route)
	}
	for _, want := range []string{"long-distance route", "sleeper seat tier", "no departure time"} {
		if !strings.Contains(s.Reasoning, want) {
			t.Errorf("reasoning %q lacks %q", s.Reasoning, want)
		}
	}
}

func TestSuggest_ReasoningIsDeterministic(t *testing.T) {
	req := Request{DistanceKm: 320, SeatType: model.SeatPremium, OccupancyRate: 0.6, DepartureTime: now.Add(3 * time.Hour), CurrentFare: 700}
	a, _ := newTestEngine().Suggest(req)
	b, _ := newTestEngine().Suggest(req)
	if a.Reasoning != b.Reasoning || a.SuggestedFare != b.SuggestedFare {
		t.Errorf("non-deterministic: %q/%v vs %q/%v", a.Reasoning, a.SuggestedFare, b.Reasoning, b.SuggestedFare)
	}
}

func TestRoundWithin(t *testing.T) {
	tests := []struct {
		v, inc, lo, hi, want float64
	}{
		{587.88, 5, 210, 750, 590},
		{210, 5, 210, 750, 210},
		{212.6, 5, 212.5, 300, 215},
		{749.9, 5, 210, 749.9, 745},
		{100.4, 5, 100.1, 100.9, 100.4},
		{123.456, 0, 0, 1000, 123.46},
	}
	for _, tt := range tests {
		if got := roundWithin(tt.v, tt.inc, tt.lo, tt.hi); got != tt.want {
			t.Errorf("roundWithin(%v, %v, %v, %v) = %v, want %v", tt.v, tt.inc, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestTariffFare(t *testing.T) {
	e := newTestEngine()
	tests := []struct {
		km   float64
		seat model.SeatType
		want float64
	}{
		{100, model.SeatRegular, 250},
		{250, model.SeatPremium, 787.5},
		{500, model.SeatSleeper, 1600},
	}
	for _, tt := range tests {
		got, err := e.TariffFare(tt.km, tt.seat)
		if err != nil || got != tt.want {
			t.Errorf("TariffFare(%v, %s) = %v, %v; want %v", tt.km, tt.seat, got, err, tt.want)
		}
	}
	if _, err := e.TariffFare(0, model.SeatRegular); !apperr.IsPricingValidation(err) {
		t.Errorf("zero distance err = %v", err)
	}
}
