package models

const (
	TrendGrowing   = "growing"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

type Factor struct {
	Name         string  `json:"name"`
	Input        float64 `json:"input"`
	Normalized   float64 `json:"normalized"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

type ApartmentMix struct {
	StudioPct float64 `json:"studio_demand_pct"`
	OneBedPct float64 `json:"one_bed_demand_pct"`
	TwoBedPct float64 `json:"two_bed_demand_pct"`
}

// PredictionResult is computed on demand from a Municipality and never stored.
type PredictionResult struct {
	Code                string       `json:"nis_code"`
	Name                string       `json:"name"`
	Region              string       `json:"region,omitempty"`
	DemandScore         float64      `json:"demand_score"`
	Confidence          float64      `json:"confidence"`
	ContributingFactors []Factor     `json:"contributing_factors"`
	ApartmentMix        ApartmentMix `json:"apartment_mix"`
	MarketTrend         string       `json:"market_trend"`
	ModelVersion        string       `json:"model_version"`
}
