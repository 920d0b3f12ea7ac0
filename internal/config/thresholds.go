package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/iliyamo/bus-occupancy-pricing/internal/apperr"
)

// Thresholds groups every business threshold of the pipeline and the
// pricing engine.  Nothing in the core hardcodes these values; they are
// loaded from YAML on top of DefaultThresholds and validated once at
// startup.
type Thresholds struct {
	Validation    ValidationThresholds `yaml:"validation"`
	Normalization NormalizationConfig  `yaml:"normalization"`
	Report        ReportConfig         `yaml:"report"`
	Pricing       PricingConfig        `yaml:"pricing"`
}

// ValidationThresholds drive the record validator.
type ValidationThresholds struct {
	MaxFare float64 `yaml:"max_fare" validate:"gt=0"`
}

// NormalizationConfig maps lower-cased seat type aliases to canonical
// seat types.  Canonical names always map to themselves and need not be
// listed.
type NormalizationConfig struct {
	SeatTypeAliases map[string]string `yaml:"seat_type_aliases" validate:"dive,keys,required,endkeys,oneof=regular premium sleeper"`
}

// ReportConfig bounds the per-issue-type id samples kept in a report.
type ReportConfig struct {
	SampleLimit int `yaml:"sample_limit" validate:"gte=0"`
}

// DistanceBand applies Multiplier to routes of at least MinKm.  Bands are
// matched by the largest MinKm not exceeding the route distance.
type DistanceBand struct {
	MinKm      float64 `yaml:"min_km" validate:"gte=0"`
	Multiplier float64 `yaml:"multiplier" validate:"gt=0"`
}

// ConfidenceConfig: confidence = Baseline + Bonus*min(n, SampleCap)/SampleCap,
// plus PopularityWeight times the route popularity once any history exists.
type ConfidenceConfig struct {
	Baseline           float64 `yaml:"baseline" validate:"gte=0,lte=1"`
	Bonus              float64 `yaml:"bonus" validate:"gte=0,lte=1"`
	PopularityWeight   float64 `yaml:"popularity_weight" validate:"gte=0,lte=1"`
	SampleCap          int     `yaml:"sample_cap" validate:"gt=0"`
	LowSampleThreshold int     `yaml:"low_sample_threshold" validate:"gte=0"`
}

// PricingConfig parameterizes every step of the heuristic engine.
type PricingConfig struct {
	MinMultiplier float64 `yaml:"min_multiplier" validate:"gt=0"`
	MaxMultiplier float64 `yaml:"max_multiplier" validate:"gtfield=MinMultiplier"`

	OccupancyFloor      float64 `yaml:"occupancy_floor" validate:"gt=0"`
	OccupancySlope      float64 `yaml:"occupancy_slope" validate:"gte=0"`
	HighOccupancyFactor float64 `yaml:"high_occupancy_factor" validate:"gt=0"`
	LowOccupancyFactor  float64 `yaml:"low_occupancy_factor" validate:"gt=0,ltfield=HighOccupancyFactor"`

	// Timezone is the IANA zone whose wall clock peak and off-peak hours
	// refer to.  Departures are converted to it before the hour is read.
	Timezone          string  `yaml:"timezone" validate:"required"`
	PeakHours         []int   `yaml:"peak_hours" validate:"dive,gte=0,lte=23"`
	PeakMultiplier    float64 `yaml:"peak_multiplier" validate:"gt=0"`
	OffPeakHours      []int   `yaml:"off_peak_hours" validate:"dive,gte=0,lte=23"`
	OffPeakMultiplier float64 `yaml:"off_peak_multiplier" validate:"gt=0"`

	UrgencyThreshold    time.Duration `yaml:"urgency_threshold" validate:"gte=0"`
	UrgencyMultiplier   float64       `yaml:"urgency_multiplier" validate:"gt=0"`
	EarlyBirdThreshold  time.Duration `yaml:"early_bird_threshold" validate:"gtfield=UrgencyThreshold"`
	EarlyBirdMultiplier float64       `yaml:"early_bird_multiplier" validate:"gt=0"`

	DistanceBands       []DistanceBand     `yaml:"distance_bands" validate:"required,dive"`
	SeatTierMultipliers map[string]float64 `yaml:"seat_tier_multipliers" validate:"required,dive,keys,oneof=regular premium sleeper,endkeys,gt=0"`

	RoundingIncrement float64          `yaml:"rounding_increment" validate:"gte=0"`
	Confidence        ConfidenceConfig `yaml:"confidence"`

	TariffPerKm   map[string]float64 `yaml:"tariff_per_km" validate:"required,dive,keys,oneof=regular premium sleeper,endkeys,gt=0"`
	TariffBands   []DistanceBand     `yaml:"tariff_bands" validate:"required,dive"`
	HistoryWindow time.Duration      `yaml:"history_window" validate:"gt=0"`
	HistoryLimit  int                `yaml:"history_limit" validate:"gt=0"`
}

// DefaultThresholds returns the production defaults.  They are a starting
// point, not a statement of correctness.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Validation: ValidationThresholds{MaxFare: 100000},
		Normalization: NormalizationConfig{SeatTypeAliases: map[string]string{
			"standard":  "regular",
			"economy":   "regular",
			"general":   "regular",
			"seater":    "regular",
			"deluxe":    "premium",
			"executive": "premium",
			"business":  "premium",
			"vip":       "premium",
			"berth":     "sleeper",
			"sleeping":  "sleeper",
		}},
		Report: ReportConfig{SampleLimit: 10},
		Pricing: PricingConfig{
			MinMultiplier:       0.7,
			MaxMultiplier:       2.5,
			OccupancyFloor:      0.7,
			OccupancySlope:      0.8,
			HighOccupancyFactor: 1.1,
			LowOccupancyFactor:  0.9,
			Timezone:            "UTC",
			PeakHours:           []int{7, 8, 9, 17, 18, 19},
			PeakMultiplier:      1.15,
			OffPeakHours:        []int{22, 23, 0, 1, 2, 3, 4, 5},
			OffPeakMultiplier:   0.9,
			UrgencyThreshold:    2 * time.Hour,
			UrgencyMultiplier:   1.2,
			EarlyBirdThreshold:  7 * 24 * time.Hour,
			EarlyBirdMultiplier: 0.95,
			DistanceBands: []DistanceBand{
				{MinKm: 0, Multiplier: 1.0},
				{MinKm: 300, Multiplier: 1.03},
				{MinKm: 500, Multiplier: 1.06},
			},
			SeatTierMultipliers: map[string]float64{"regular": 1.0, "premium": 1.04, "sleeper": 1.08},
			RoundingIncrement:   5,
			Confidence:          ConfidenceConfig{Baseline: 0.5, Bonus: 0.4, PopularityWeight: 0.1, SampleCap: 50, LowSampleThreshold: 10},
			TariffPerKm:         map[string]float64{"regular": 2.5, "premium": 3.5, "sleeper": 4.0},
			TariffBands: []DistanceBand{
				{MinKm: 0, Multiplier: 1.0},
				{MinKm: 200, Multiplier: 0.9},
				{MinKm: 400, Multiplier: 0.8},
			},
			HistoryWindow: 30 * 24 * time.Hour,
			HistoryLimit:  50,
		},
	}
}

// LoadThresholds reads the YAML file at path over DefaultThresholds and
// validates the result.  An empty path validates and returns the
// defaults.  Every failure is a ConfigurationError.
func LoadThresholds(path string) (Thresholds, error) {
	t := DefaultThresholds()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Thresholds{}, apperr.ConfigurationError{Key: "THRESHOLDS_FILE", Msg: "unreadable", Err: err}
		}
		if err := yaml.Unmarshal(data, &t); err != nil {
			return Thresholds{}, apperr.ConfigurationError{Key: path, Msg: "invalid yaml", Err: err}
		}
	}
	if err := t.Validate(); err != nil {
		return Thresholds{}, err
	}
	sortBands(t.Pricing.DistanceBands)
	sortBands(t.Pricing.TariffBands)
	return t, nil
}

// Validate checks struct tags first and then the cross-field rules that
// tags cannot express.
func (t Thresholds) Validate() error {
	v := validator.New()
	if err := v.Struct(t); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperr.ConfigurationError{Key: fe.Namespace(), Msg: fmt.Sprintf("failed %q check", fe.Tag())}
		}
		return apperr.ConfigurationError{Msg: "invalid thresholds", Err: err}
	}

	p := t.Pricing
	if c := p.Confidence; c.Baseline+c.Bonus+c.PopularityWeight > 1 {
		return apperr.ConfigurationError{Key: "pricing.confidence", Msg: "baseline + bonus + popularity_weight must not exceed 1"}
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return apperr.ConfigurationError{Key: "pricing.timezone", Msg: "unknown time zone", Err: err}
	}
	peak := make(map[int]bool, len(p.PeakHours))
	for _, h := range p.PeakHours {
		peak[h] = true
	}
	for _, h := range p.OffPeakHours {
		if peak[h] {
			return apperr.ConfigurationError{Key: "pricing.off_peak_hours", Msg: fmt.Sprintf("hour %d is also a peak hour", h)}
		}
	}
	for _, st := range []string{"regular", "premium", "sleeper"} {
		if _, ok := p.SeatTierMultipliers[st]; !ok {
			return apperr.ConfigurationError{Key: "pricing.seat_tier_multipliers", Msg: "missing " + st}
		}
		if _, ok := p.TariffPerKm[st]; !ok {
			return apperr.ConfigurationError{Key: "pricing.tariff_per_km", Msg: "missing " + st}
		}
	}
	if !hasZeroBand(p.DistanceBands) {
		return apperr.ConfigurationError{Key: "pricing.distance_bands", Msg: "a band starting at 0 km is required"}
	}
	if !hasZeroBand(p.TariffBands) {
		return apperr.ConfigurationError{Key: "pricing.tariff_bands", Msg: "a band starting at 0 km is required"}
	}
	return nil
}

func hasZeroBand(bands []DistanceBand) bool {
	for _, b := range bands {
		if b.MinKm == 0 {
			return true
		}
	}
	return false
}

func sortBands(bands []DistanceBand) {
	sort.Slice(bands, func(i, j int) bool { return bands[i].MinKm < bands[j].MinKm })
}
