package history

import (
	"sort"

	"RegimeLab/internal/domain/models"
)

// TopExhausted returns the cfg.TopN rows with the highest exhaustion score,
// highest first, each with its regime context and what followed it. The
// forward return is measured at row i+ForwardSteps and is nil when that row
// does not exist; the trend change is searched over rows i+1..i+ChangeLookahead.
func TopExhausted(rows []models.AnalysisRow, intervals []models.RegimeInterval, cfg Config) []models.TopExhausted {
	if len(rows) == 0 || cfg.TopN <= 0 {
		return nil
	}
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return rows[idx[a]].ExhaustionScore > rows[idx[b]].ExhaustionScore
	})
	if len(idx) > cfg.TopN {
		idx = idx[:cfg.TopN]
	}

	out := make([]models.TopExhausted, 0, len(idx))
	for _, i := range idx {
		r := rows[i]
		te := models.TopExhausted{
			Timestamp:  r.Timestamp,
			Score:      r.ExhaustionScore,
			Age:        r.Age,
			Multiplier: r.Multiplier,
			Composite:  r.CompositeRaw,
			Close:      r.Close,
			Regime:     Find(intervals, r.Timestamp),
		}
		if te.Regime != nil && !te.Regime.Open {
			d := days(r.Timestamp, te.Regime.End)
			te.DaysToChange = &d
		}
		if j := i + cfg.ForwardSteps; cfg.ForwardSteps > 0 && j < len(rows) && r.Close > 0 {
			pct := (rows[j].Close/r.Close - 1) * 100
			te.ForwardReturnPct = &pct
		}
		for j := i + 1; j < len(rows) && j <= i+cfg.ChangeLookahead; j++ {
			if rows[j].Trend != r.Trend {
				at, later := rows[j].Timestamp, days(r.Timestamp, rows[j].Timestamp)
				te.TrendChanged, te.ChangedAt, te.DaysLater = true, &at, &later
				break
			}
		}
		out = append(out, te)
	}
	return out
}

// Current describes the latest row. Alerts are only raised while the ongoing
// regime is longer than cfg.LongRegimeDays: alert at or above the very high
// threshold, warning at or above the high threshold. Shorter regimes stay
// normal whatever the score.
func Current(rows []models.AnalysisRow, intervals []models.RegimeInterval, th models.Thresholds, cfg Config) *models.CurrentState {
	if len(rows) == 0 {
		return nil
	}
	r := rows[len(rows)-1]
	cs := &models.CurrentState{
		Timestamp: r.Timestamp,
		Close:     r.Close,
		Score:     r.ExhaustionScore,
		Age:       r.Age,
		Trend:     r.Trend,
		Level:     r.Level,
		Regime:    Find(intervals, r.Timestamp),
		Alert:     models.AlertNormal,
	}
	long := cs.Regime != nil && cs.Regime.DurationDays > cfg.LongRegimeDays
	switch {
	case long && r.ExhaustionScore >= th.VeryHigh:
		cs.Alert = models.AlertAlert
	case long && r.ExhaustionScore >= th.High:
		cs.Alert = models.AlertWarning
	}
	return cs
}
