package services

import (
	"sort"
	"sync/atomic"

	"belgian-housing-api/models"
	"belgian-housing-api/store"

	"gonum.org/v1/gonum/stat"
)

const (
	topCitiesLimit = 10
	bucketWidth    = 20.0
	unknownRegion  = "Unknown"
)

var densityQuantiles = []float64{0.10, 0.25, 0.50, 0.75, 0.90}

type statsMemo struct {
	snap  *store.Snapshot
	stats models.Stats
}

// AggregationService summarises the current snapshot. Results are memoized
// until the snapshot is swapped.
type AggregationService struct {
	source SnapshotSource
	scorer *Scorer
	memo   atomic.Pointer[statsMemo]
}

func NewAggregationService(source SnapshotSource, scorer *Scorer) *AggregationService {
	return &AggregationService{source: source, scorer: scorer}
}

// Stats returns a copy of the memoized summary; callers may modify it.
func (a *AggregationService) Stats() models.Stats {
	snap := a.source.Snapshot()
	if memo := a.memo.Load(); memo != nil && memo.snap == snap {
		return memo.stats.Clone()
	}
	stats := a.compute(snap)
	a.memo.Store(&statsMemo{snap: snap, stats: stats})
	return stats.Clone()
}

type regionAcc struct {
	count                  int
	population             int64
	densitySum             float64
	densityN               int
	scoreSum               float64
	studio, oneBed, twoBed float64
	scoredN                int
}

func (a *AggregationService) compute(snap *store.Snapshot) models.Stats {
	all := snap.All()
	stats := models.Stats{
		SnapshotVersion:     snap.Version(),
		TotalMunicipalities: len(all),
		ByRegion:            []models.RegionStats{},
		TopCities:           []models.MunicipalitySummary{},
	}

	buckets := make([]models.ScoreBucket, int(100/bucketWidth))
	for i := range buckets {
		buckets[i] = models.ScoreBucket{Min: float64(i) * bucketWidth, Max: float64(i+1) * bucketWidth}
	}

	var densities []float64
	var scoreSum float64
	var scored int
	regions := make(map[string]*regionAcc)

	for _, m := range all {
		region := m.Region
		if region == "" {
			region = unknownRegion
		}
		acc, ok := regions[region]
		if !ok {
			acc = &regionAcc{}
			regions[region] = acc
		}
		acc.count++

		if m.Population != nil {
			stats.PopulationSum += *m.Population
			acc.population += *m.Population
		}
		if m.Density != nil {
			densities = append(densities, *m.Density)
			acc.densitySum += *m.Density
			acc.densityN++
		}

		p, err := a.scorer.Predict(m)
		if err != nil {
			stats.ScoreDistribution.InsufficientData++
			continue
		}
		scored++
		scoreSum += p.DemandScore
		buckets[bucketIndex(p.DemandScore, len(buckets))].Count++

		acc.scoredN++
		acc.scoreSum += p.DemandScore
		acc.studio += p.ApartmentMix.StudioPct
		acc.oneBed += p.ApartmentMix.OneBedPct
		acc.twoBed += p.ApartmentMix.TwoBedPct
	}

	stats.ScoreDistribution.Buckets = buckets
	if scored > 0 {
		stats.ScoreDistribution.MeanScore = round(scoreSum/float64(scored), 2)
	}

	if len(densities) > 0 {
		stats.AvgDensity = round(stat.Mean(densities, nil), 2)
		sort.Float64s(densities)
		q := make([]float64, len(densityQuantiles))
		for i, p := range densityQuantiles {
			q[i] = round(stat.Quantile(p, stat.Empirical, densities, nil), 2)
		}
		stats.DensityPercentiles = models.DensityPercentiles{P10: q[0], P25: q[1], P50: q[2], P75: q[3], P90: q[4]}
	}

	names := make([]string, 0, len(regions))
	for name := range regions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		acc := regions[name]
		rs := models.RegionStats{Region: name, Count: acc.count, TotalPopulation: acc.population}
		if acc.densityN > 0 {
			rs.AvgDensity = round(acc.densitySum/float64(acc.densityN), 2)
		}
		if acc.scoredN > 0 {
			n := float64(acc.scoredN)
			rs.AvgDemandScore = round(acc.scoreSum/n, 2)
			rs.AvgStudioPct = round(acc.studio/n, 1)
			rs.AvgOneBedPct = round(acc.oneBed/n, 1)
			rs.AvgTwoBedPct = round(acc.twoBed/n, 1)
		}
		stats.ByRegion = append(stats.ByRegion, rs)
	}

	sort.SliceStable(all, func(i, j int) bool { return lessByPopulation(all[i], all[j]) })
	for _, m := range all {
		if len(stats.TopCities) == topCitiesLimit || m.Population == nil {
			break
		}
		stats.TopCities = append(stats.TopCities, m.Summary())
	}

	return stats
}

// bucketIndex places 100 in the last bucket.
func bucketIndex(score float64, n int) int {
	i := int(score / bucketWidth)
	if i >= n {
		return n - 1
	}
	if i < 0 {
		return 0
	}
	return i
}
