package model

import "time"

// PricingFactors is the multiplicative breakdown behind a suggestion.
// Total is the product of Occupancy, Time and Route before clamping.
type PricingFactors struct {
	Occupancy float64 `json:"occupancy"`
	PeakHour  float64 `json:"peak_hour"`
	LeadTime  float64 `json:"lead_time"`
	Time      float64 `json:"time"`
	Route     float64 `json:"route"`
	Total     float64 `json:"total"`
}

// PricingSuggestion is the engine's answer for one route and seat type.
// It is computed on demand and not persisted.
type PricingSuggestion struct {
	RouteID       int64          `json:"route_id"`
	SeatType      SeatType       `json:"seat_type"`
	BaseFare      float64        `json:"base_fare"`
	CurrentFare   float64        `json:"current_fare"`
	SuggestedFare float64        `json:"suggested_fare"`
	AdjustmentPct float64        `json:"fare_adjustment_percentage"`
	Confidence    float64        `json:"confidence_score"`
	Factors       PricingFactors `json:"adjustment_factors"`
	Reasoning     string         `json:"reasoning"`
	ModelVersion  string         `json:"model_version"`
	ComputedAt    time.Time      `json:"computed_at"`
}
