package models

type DensityPercentiles struct {
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

type ScoreBucket struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

type ScoreDistribution struct {
	Buckets          []ScoreBucket `json:"buckets"`
	InsufficientData int           `json:"insufficient_data"`
	MeanScore        float64       `json:"mean_score"`
}

type RegionStats struct {
	Region          string  `json:"region"`
	Count           int     `json:"count"`
	TotalPopulation int64   `json:"total_population"`
	AvgDensity      float64 `json:"avg_density"`
	AvgDemandScore  float64 `json:"avg_demand_score"`
	AvgStudioPct    float64 `json:"avg_studio_pct"`
	AvgOneBedPct    float64 `json:"avg_one_bed_pct"`
	AvgTwoBedPct    float64 `json:"avg_two_bed_pct"`
}

type Stats struct {
	SnapshotVersion     uint64                `json:"snapshot_version"`
	TotalMunicipalities int                   `json:"total_municipalities"`
	PopulationSum       int64                 `json:"population_sum"`
	AvgDensity          float64               `json:"avg_density"`
	DensityPercentiles  DensityPercentiles    `json:"density_percentiles"`
	ScoreDistribution   ScoreDistribution     `json:"score_distribution"`
	ByRegion            []RegionStats         `json:"by_region"`
	TopCities           []MunicipalitySummary `json:"top_cities"`
}

// Clone returns a copy that shares no slices or pointers with s.
func (s Stats) Clone() Stats {
	s.ScoreDistribution.Buckets = append([]ScoreBucket(nil), s.ScoreDistribution.Buckets...)
	s.ByRegion = append([]RegionStats{}, s.ByRegion...)
	top := make([]MunicipalitySummary, len(s.TopCities))
	for i, c := range s.TopCities {
		c.Population = clonePtr(c.Population)
		c.Density = clonePtr(c.Density)
		top[i] = c
	}
	s.TopCities = top
	return s
}
