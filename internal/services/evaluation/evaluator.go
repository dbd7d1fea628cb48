package evaluation

import (
	"fmt"
	"math"
	"time"

	"RegimeLab/internal/domain/models"
)

// DefaultHorizon is the forward look-ahead in steps.
const DefaultHorizon = 5

// Evaluate checks every fired entry against the change series: a hit is a
// change within the next horizon steps (the entry step itself excluded).
// dates may be nil; when set it must match the series length.
//
// The baseline assumes uniformly arriving changes:
// min(1, changes/steps * horizon). EdgeRatio = HitRate/BaselineRate and is
// reported as 0 with EdgeDefined=false when the baseline is 0.
func Evaluate(entries, changes []bool, dates []time.Time, horizon int) (models.SignalEvaluation, error) {
	if horizon < 1 {
		return models.SignalEvaluation{}, fmt.Errorf("evaluate: horizon must be >= 1, got %d", horizon)
	}
	if len(entries) != len(changes) {
		return models.SignalEvaluation{}, fmt.Errorf("evaluate: %d entries vs %d change flags", len(entries), len(changes))
	}
	if dates != nil && len(dates) != len(entries) {
		return models.SignalEvaluation{}, fmt.Errorf("evaluate: %d dates vs %d entries", len(dates), len(entries))
	}

	n := len(entries)
	res := models.SignalEvaluation{Horizon: horizon, Timesteps: n}
	if n == 0 {
		return res, nil
	}
	for _, c := range changes {
		if c {
			res.ChangeEvents++
		}
	}

	for i, fired := range entries {
		if !fired {
			continue
		}
		res.TotalSignals++
		out := models.SignalOutcome{Index: i}
		if dates != nil {
			out.Date = dates[i]
		}
		for j := i + 1; j < n && j <= i+horizon; j++ {
			if changes[j] {
				out.Hit, out.Steps = true, j-i
				if dates != nil {
					at := dates[j]
					out.ChangeAt = &at
				}
				break
			}
		}
		if out.Hit {
			res.Hits++
		}
		res.Outcomes = append(res.Outcomes, out)
	}

	if res.TotalSignals > 0 {
		res.HitRate = float64(res.Hits) / float64(res.TotalSignals)
	}
	res.BaselineRate = math.Min(1, float64(res.ChangeEvents*horizon)/float64(n))
	if res.BaselineRate > 0 {
		res.EdgeRatio, res.EdgeDefined = res.HitRate/res.BaselineRate, true
	}
	return res, nil
}

// Edge returns the edge ratio, or models.ErrUndefinedRatio when the baseline
// was zero.
func Edge(e models.SignalEvaluation) (float64, error) {
	if !e.EdgeDefined {
		return 0, fmt.Errorf("edge ratio with baseline %v: %w", e.BaselineRate, models.ErrUndefinedRatio)
	}
	return e.EdgeRatio, nil
}

// FutureChange marks position i when any of changes[i+1..i+horizon] is set.
// The final horizon positions cannot see a full window and are false.
func FutureChange(changes []bool, horizon int) []bool {
	n := len(changes)
	out := make([]bool, n)
	for i := 0; i+horizon < n; i++ {
		for j := i + 1; j <= i+horizon; j++ {
			if changes[j] {
				out[i] = true
				break
			}
		}
	}
	return out
}
