package services

import (
	"errors"
	"fmt"
	"math"

	"belgian-housing-api/config"
	"belgian-housing-api/models"
)

const (
	trendThresholdPct = 0.5
	regionWeight      = 1.0
)

// Scorer computes the demand score from a weight table. It holds no mutable
// state; Predict is deterministic.
type Scorer struct {
	w          config.ScoringConfig
	regionBias map[string]float64
}

// ValidateWeights checks the weight table: weights non-negative and summing
// to at most 1, positive divisors, finite boost and biases, base in [0,1].
func ValidateWeights(w config.ScoringConfig) error {
	var errs []error
	finite := func(name string, v float64) bool {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("%s must be finite", name))
			return false
		}
		return true
	}

	if finite("density weight", w.DensityWeight) && w.DensityWeight < 0 {
		errs = append(errs, errors.New("density weight must not be negative"))
	}
	if finite("growth weight", w.GrowthWeight) && w.GrowthWeight < 0 {
		errs = append(errs, errors.New("growth weight must not be negative"))
	}
	if sum := w.DensityWeight + w.GrowthWeight; sum > 1+1e-9 {
		errs = append(errs, fmt.Errorf("weights sum to %.3f, the maximum is 1", sum))
	}
	if finite("urbanization divisor", w.UrbanizationDivisor) && w.UrbanizationDivisor <= 0 {
		errs = append(errs, errors.New("urbanization divisor must be positive"))
	}
	if finite("size divisor", w.SizeDivisor) && w.SizeDivisor <= 0 {
		errs = append(errs, errors.New("size divisor must be positive"))
	}
	finite("growth boost", w.GrowthBoostPerPct)
	if finite("confidence base", w.ConfidenceBase) && (w.ConfidenceBase < 0 || w.ConfidenceBase > 1) {
		errs = append(errs, errors.New("confidence base must be between 0 and 1"))
	}
	for region, bias := range w.RegionBias {
		finite("bias of "+region, bias)
	}
	return errors.Join(errs...)
}

func NewScorer(w config.ScoringConfig) (*Scorer, error) {
	if err := ValidateWeights(w); err != nil {
		return nil, fmt.Errorf("invalid scoring weights: %w", err)
	}
	bias := make(map[string]float64, len(w.RegionBias))
	for region, b := range w.RegionBias {
		bias[fold(region)] = b
	}
	if w.ModelVersion == "" {
		w.ModelVersion = config.DefaultScoringConfig().ModelVersion
	}
	return &Scorer{w: w, regionBias: bias}, nil
}

func (s *Scorer) ModelVersion() string { return s.w.ModelVersion }

// Predict scores one municipality. Population and area are required; the
// optional demographic fields only raise the confidence.
func (s *Scorer) Predict(m models.Municipality) (models.PredictionResult, error) {
	if m.Population == nil || m.AreaKm2 == nil || *m.AreaKm2 <= 0 {
		return models.PredictionResult{}, fmt.Errorf("%w: %s needs population and area", models.ErrInsufficientData, m.Code)
	}

	population := float64(*m.Population)
	density := population / *m.AreaKm2

	urbanization := math.Min(100, density/s.w.UrbanizationDivisor)
	size := math.Min(100, population/s.w.SizeDivisor)

	growthInput := 0.0
	growthProxy := size
	if m.GrowthRatePct != nil {
		growthInput = *m.GrowthRatePct
		growthProxy = clamp(size+s.w.GrowthBoostPerPct*growthInput, 0, 100)
	}
	bias := s.regionBias[fold(m.Region)]

	factors := []models.Factor{
		{
			Name:         "urbanization",
			Input:        round(density, 2),
			Normalized:   round(urbanization, 2),
			Weight:       s.w.DensityWeight,
			Contribution: round(s.w.DensityWeight*urbanization, 2),
		},
		{
			Name:         "growth",
			Input:        growthInput,
			Normalized:   round(growthProxy, 2),
			Weight:       s.w.GrowthWeight,
			Contribution: round(s.w.GrowthWeight*growthProxy, 2),
		},
		{
			Name:         "region",
			Input:        bias,
			Normalized:   bias,
			Weight:       regionWeight,
			Contribution: bias,
		},
	}

	score := clamp(s.w.DensityWeight*urbanization+s.w.GrowthWeight*growthProxy+bias, 0, 100)

	present := float64(m.OptionalFieldsPresent())
	confidence := math.Min(1, s.w.ConfidenceBase+(1-s.w.ConfidenceBase)*present/models.OptionalFieldCount)

	return models.PredictionResult{
		Code:                m.Code,
		Name:                m.Name,
		Region:              m.Region,
		DemandScore:         round(score, 2),
		Confidence:          round(confidence, 2),
		ContributingFactors: factors,
		ApartmentMix:        apartmentMix(urbanization, size),
		MarketTrend:         marketTrend(m.GrowthRatePct),
		ModelVersion:        s.w.ModelVersion,
	}, nil
}

func apartmentMix(urbanization, size float64) models.ApartmentMix {
	studio := 20 + 0.3*urbanization + 0.1*size
	oneBed := 40 + 0.2*urbanization
	twoBed := 40 - 0.1*urbanization
	total := studio + oneBed + twoBed
	return models.ApartmentMix{
		StudioPct: round(studio/total*100, 1),
		OneBedPct: round(oneBed/total*100, 1),
		TwoBedPct: round(twoBed/total*100, 1),
	}
}

func marketTrend(growth *float64) string {
	switch {
	case growth == nil:
		return models.TrendStable
	case *growth > trendThresholdPct:
		return models.TrendGrowing
	case *growth < -trendThresholdPct:
		return models.TrendDeclining
	}
	return models.TrendStable
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
