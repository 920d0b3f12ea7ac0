// Package pricing suggests fares from occupancy, departure time and route
// signals.  Engine is a pure computation over a Request; Service adds the
// store lookups that build a Request from ids.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/bus-occupancy-pricing/internal/apperr"
	"github.com/iliyamo/bus-occupancy-pricing/internal/config"
	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
)

// ModelVersion tags every suggestion produced by this engine.
const ModelVersion = "heuristic_v1"

// Request is everything the engine needs for one suggestion.  BaseFare
// zero means "same as CurrentFare".  A zero DepartureTime yields neutral
// time factors.  RoutePopularity only counts when HistoricalSamples > 0.
type Request struct {
	RouteID           int64          `json:"route_id"`
	DistanceKm        float64        `json:"distance_km" validate:"gt=0"`
	SeatType          model.SeatType `json:"seat_type" validate:"oneof=regular premium sleeper"`
	OccupancyRate     float64        `json:"occupancy_rate" validate:"gte=0,lte=1"`
	DepartureTime     time.Time      `json:"departure_time"`
	CurrentFare       float64        `json:"current_fare" validate:"gt=0"`
	BaseFare          float64        `json:"base_fare" validate:"gte=0"`
	HistoricalSamples int            `json:"historical_samples" validate:"gte=0"`
	RoutePopularity   float64        `json:"route_popularity" validate:"gte=0,lte=1"`
}

// Engine computes fare suggestions.  It is safe for concurrent use.
type Engine struct {
	cfg      config.PricingConfig
	peak     map[int]bool
	offPeak  map[int]bool
	loc      *time.Location
	now      func() time.Time
	validate *validator.Validate
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// NewEngine builds an engine over validated thresholds.
func NewEngine(cfg config.PricingConfig, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		peak:    hourSet(cfg.PeakHours),
		offPeak: hourSet(cfg.OffPeakHours),
		loc:     time.UTC,
		now:     time.Now,
	}
	if loc, err := time.LoadLocation(cfg.Timezone); err == nil && cfg.Timezone != "" {
		e.loc = loc
	}
	e.cfg.DistanceBands = sortedBands(cfg.DistanceBands)
	e.cfg.TariffBands = sortedBands(cfg.TariffBands)

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
			return name
		}
		return f.Name
	})
	e.validate = v
	for _, o := range opts {
		o(e)
	}
	return e
}

// Suggest prices one request.  It returns either a complete suggestion
// whose fare lies within the configured clamp of the base fare, or a
// PricingValidationError and no suggestion.
func (e *Engine) Suggest(req Request) (model.PricingSuggestion, error) {
	req.SeatType = model.SeatType(strings.ToLower(strings.TrimSpace(string(req.SeatType))))
	if err := e.check(req); err != nil {
		return model.PricingSuggestion{}, err
	}
	base := req.BaseFare
	if base == 0 {
		base = req.CurrentFare
	}
	c := e.cfg
	var notes []string

	occ := c.OccupancyFloor + req.OccupancyRate*c.OccupancySlope
	switch {
	case occ > c.HighOccupancyFactor:
		notes = append(notes, fmt.Sprintf("high occupancy (%.0f%%)", req.OccupancyRate*100))
	case occ < c.LowOccupancyFactor:
		notes = append(notes, fmt.Sprintf("low occupancy (%.0f%%)", req.OccupancyRate*100))
	default:
		notes = append(notes, fmt.Sprintf("moderate occupancy (%.0f%%)", req.OccupancyRate*100))
	}

	peak, lead := 1.0, 1.0
	if req.DepartureTime.IsZero() {
		notes = append(notes, "no departure time")
	} else {
		switch h := req.DepartureTime.In(e.loc).Hour(); {
		case e.peak[h]:
			peak = c.PeakMultiplier
			notes = append(notes, "peak hour departure")
		case e.offPeak[h]:
			peak = c.OffPeakMultiplier
			notes = append(notes, "off-peak departure")
		}
		switch until := req.DepartureTime.Sub(e.now()); {
		case until < c.UrgencyThreshold:
			lead = c.UrgencyMultiplier
			notes = append(notes, "last-minute booking")
		case until > c.EarlyBirdThreshold:
			lead = c.EarlyBirdMultiplier
			notes = append(notes, "early booking")
		}
	}
	timeFactor := peak * lead

	band := bandFor(c.DistanceBands, req.DistanceKm)
	tier := c.SeatTierMultipliers[string(req.SeatType)]
	route := band * tier
	switch {
	case band > 1:
		notes = append(notes, "long-distance route")
	case band < 1:
		notes = append(notes, "short-distance route")
	}
	if tier != 1 {
		notes = append(notes, fmt.Sprintf("%s seat tier", req.SeatType))
	}

	total := occ * timeFactor * route
	raw := req.CurrentFare * total
	lo, hi := c.MinMultiplier*base, c.MaxMultiplier*base
	fare := raw
	switch {
	case raw < lo:
		fare = lo
		notes = append(notes, "minimum fare applied")
	case raw > hi:
		fare = hi
		notes = append(notes, "maximum fare applied")
	}
	fare = roundWithin(fare, c.RoundingIncrement, lo, hi)

	if req.HistoricalSamples < c.Confidence.LowSampleThreshold {
		notes = append(notes, "limited historical data")
	}

	return model.PricingSuggestion{
		RouteID:       req.RouteID,
		SeatType:      req.SeatType,
		BaseFare:      base,
		CurrentFare:   req.CurrentFare,
		SuggestedFare: fare,
		AdjustmentPct: round((fare-req.CurrentFare)/req.CurrentFare*100, 1),
		Confidence:    e.Confidence(req.HistoricalSamples, req.RoutePopularity),
		Factors: model.PricingFactors{
			Occupancy: round(occ, 4),
			PeakHour:  peak,
			LeadTime:  lead,
			Time:      round(timeFactor, 4),
			Route:     round(route, 4),
			Total:     round(total, 4),
		},
		Reasoning:    strings.Join(notes, "; "),
		ModelVersion: ModelVersion,
		ComputedAt:   e.now().UTC(),
	}, nil
}

// Confidence maps a historical sample count and a route popularity in
// [0, 1] to [0, 1].  For a fixed popularity it never decreases as
// samples grow; without samples popularity is ignored.
func (e *Engine) Confidence(samples int, popularity float64) float64 {
	c := e.cfg.Confidence
	n := min(max(samples, 0), c.SampleCap)
	v := c.Baseline + c.Bonus*float64(n)/float64(c.SampleCap)
	if n > 0 && !math.IsNaN(popularity) {
		v += c.PopularityWeight * math.Min(math.Max(popularity, 0), 1)
	}
	return round(math.Min(math.Max(v, 0), 1), 3)
}

// RoutePopularity scores how full and how steady a route's recent
// occupancy is: 0.7 * average occupancy + 0.3 * (1 - spread).  Without
// history the score is a neutral 0.5.
func RoutePopularity(h model.HistorySummary) float64 {
	if h.Samples == 0 {
		return 0.5
	}
	p := h.AvgOccupancy*0.7 + (1-h.OccupancyStdDev)*0.3
	return round(math.Min(math.Max(p, 0), 1), 2)
}

// TariffFare is the reference fare of a route and seat type when no
// fare is known: a per-km rate scaled by the distance band.
func (e *Engine) TariffFare(distanceKm float64, seat model.SeatType) (float64, error) {
	rate, ok := e.cfg.TariffPerKm[string(seat)]
	if !ok {
		return 0, apperr.PricingValidationError{Field: "seat_type", Msg: fmt.Sprintf("unknown seat type %q", seat)}
	}
	if distanceKm <= 0 {
		return 0, apperr.PricingValidationError{Field: "distance_km", Msg: "unknown route"}
	}
	return round(distanceKm*rate*bandFor(e.cfg.TariffBands, distanceKm), 2), nil
}

func (e *Engine) check(req Request) error {
	for field, v := range map[string]float64{"distance_km": req.DistanceKm, "current_fare": req.CurrentFare, "base_fare": req.BaseFare} {
		if math.IsInf(v, 0) {
			return apperr.PricingValidationError{Field: field, Msg: "must be finite"}
		}
	}
	err := e.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.PricingValidationError{Msg: "invalid request", Err: err}
	}
	fe := verrs[0]
	field := fe.Field()
	var msg string
	switch field {
	case "distance_km":
		msg = "unknown route"
	case "seat_type":
		msg = fmt.Sprintf("unknown seat type %q", req.SeatType)
	case "occupancy_rate", "route_popularity":
		msg = fmt.Sprintf("%v is outside [0, 1]", fe.Value())
	case "current_fare", "base_fare":
		msg = fmt.Sprintf("%v must be positive", fe.Value())
	default:
		msg = fmt.Sprintf("failed %q check", fe.Tag())
	}
	return apperr.PricingValidationError{Field: field, Msg: msg}
}

// roundWithin rounds v to the nearest multiple of inc, moving to the
// inner multiple when the nearest one leaves [lo, hi].  If no multiple
// fits the range, v is rounded to cents instead.
func roundWithin(v, inc, lo, hi float64) float64 {
	if inc <= 0 {
		return cents(v, lo, hi)
	}
	r := math.Round(v/inc) * inc
	if r > hi {
		r = math.Floor(hi/inc) * inc
	}
	if r < lo {
		r = math.Ceil(lo/inc) * inc
	}
	if r < lo || r > hi {
		return cents(v, lo, hi)
	}
	return r
}

func cents(v, lo, hi float64) float64 {
	return math.Min(math.Max(round(v, 2), lo), hi)
}

func bandFor(bands []config.DistanceBand, km float64) float64 {
	m := 1.0
	for _, b := range bands {
		if km >= b.MinKm {
			m = b.Multiplier
		}
	}
	return m
}

func sortedBands(in []config.DistanceBand) []config.DistanceBand {
	out := append([]config.DistanceBand(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i].MinKm < out[j].MinKm })
	return out
}

func hourSet(hours []int) map[int]bool {
	m := make(map[int]bool, len(hours))
	for _, h := range hours {
		m[h] = true
	}
	return m
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
