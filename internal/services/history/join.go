package history

import (
	"time"

	"RegimeLab/internal/domain/models"
)

// Join lines up the stage outputs into the per-timestamp table. A row is
// produced only where every stage has a value, in feature order.
func Join(features []models.FeatureVector, scores []models.CompositeScore, signals []models.ExhaustionSignal, states []models.RegimeState) []models.AnalysisRow {
	if len(features) == 0 || len(signals) == 0 {
		return nil
	}
	sc := make(map[time.Time]models.CompositeScore, len(scores))
	for _, s := range scores {
		sc[s.Timestamp] = s
	}
	sig := make(map[time.Time]models.ExhaustionSignal, len(signals))
	for _, s := range signals {
		sig[s.Timestamp] = s
	}
	st := make(map[time.Time]models.RegimeState, len(states))
	for _, s := range states {
		st[s.Timestamp] = s
	}

	rows := make([]models.AnalysisRow, 0, len(signals))
	for _, fv := range features {
		c, ok := sc[fv.Timestamp]
		if !ok {
			continue
		}
		x, ok := sig[fv.Timestamp]
		if !ok {
			continue
		}
		s, ok := st[fv.Timestamp]
		if !ok {
			continue
		}
		rows = append(rows, models.AnalysisRow{
			Timestamp:       fv.Timestamp,
			Close:           fv.Close,
			Return:          fv.Return,
			Skewness:        fv.Skewness,
			Kurtosis:        fv.Kurtosis,
			Range:           fv.Range,
			CompositeRaw:    c.Raw,
			CompositeScore:  c.Normalized,
			Trend:           s.Trend,
			Age:             s.Age,
			Flip:            s.Flip,
			Multiplier:      x.Multiplier,
			ExhaustionRaw:   x.Raw,
			ExhaustionScore: x.Score,
			Level:           x.Level,
		})
	}
	return rows
}
