package evaluation

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"RegimeLab/internal/domain/models"
)

// DefaultProfileWindow is the number of rows averaged before each change.
const DefaultProfileWindow = 5

// PreChangeProfiles describes skewness and kurtosis over the window rows
// that precede each change. Changes without a full window are skipped.
func PreChangeProfiles(rows []models.AnalysisRow, changes []bool, regimes []int, window int) []models.TransitionProfile {
	if window < 1 || len(rows) != len(changes) || len(rows) != len(regimes) {
		return nil
	}
	var out []models.TransitionProfile
	skew := make([]float64, window)
	kurt := make([]float64, window)
	for c := window; c < len(rows); c++ {
		if !changes[c] {
			continue
		}
		for k, r := range rows[c-window : c] {
			skew[k], kurt[k] = r.Skewness, r.Kurtosis
		}
		out = append(out, models.TransitionProfile{
			Date:      rows[c].Timestamp,
			OldRegime: regimes[c-1],
			NewRegime: regimes[c],
			AvgSkew:   stat.Mean(skew, nil),
			AvgKurt:   stat.Mean(kurt, nil),
			SkewRange: floats.Max(skew) - floats.Min(skew),
		})
	}
	return out
}

// Summaries aggregates profiles: first over all of them, then per
// (old, new) direction in ascending order.
func Summaries(profiles []models.TransitionProfile) []models.TransitionSummary {
	if len(profiles) == 0 {
		return nil
	}
	out := []models.TransitionSummary{summary(profiles, nil, nil)}

	type dir struct{ from, to int }
	groups := map[dir][]models.TransitionProfile{}
	for _, p := range profiles {
		d := dir{p.OldRegime, p.NewRegime}
		groups[d] = append(groups[d], p)
	}
	keys := make([]dir, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].from != keys[j].from {
			return keys[i].from < keys[j].from
		}
		return keys[i].to < keys[j].to
	})
	for _, k := range keys {
		from, to := k.from, k.to
		out = append(out, summary(groups[k], &from, &to))
	}
	return out
}

func summary(ps []models.TransitionProfile, from, to *int) models.TransitionSummary {
	skew := make([]float64, len(ps))
	kurt := make([]float64, len(ps))
	for i, p := range ps {
		skew[i], kurt[i] = p.AvgSkew, p.AvgKurt
	}
	return models.TransitionSummary{
		From:    from,
		To:      to,
		Count:   len(ps),
		AvgSkew: stat.Mean(skew, nil),
		MinSkew: floats.Min(skew),
		MaxSkew: floats.Max(skew),
		AvgKurt: stat.Mean(kurt, nil),
		MinKurt: floats.Min(kurt),
		MaxKurt: floats.Max(kurt),
	}
}
