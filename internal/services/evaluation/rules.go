package evaluation

import (
	"time"

	"RegimeLab/internal/domain/models"
)

// Rule decides whether an entry fires on a row.
type Rule interface {
	Fires(r models.AnalysisRow) bool
}

// RuleFunc adapts a plain function to Rule.
type RuleFunc func(models.AnalysisRow) bool

func (f RuleFunc) Fires(r models.AnalysisRow) bool { return f(r) }

// BandRule fires when skewness and kurtosis sit strictly inside their bands,
// the trend matches and the regime is older than MinAge.
type BandRule struct {
	SkewMin float64      `yaml:"skew_min" json:"skew_min"`
	SkewMax float64      `yaml:"skew_max" json:"skew_max"`
	KurtMin float64      `yaml:"kurt_min" json:"kurt_min"`
	KurtMax float64      `yaml:"kurt_max" json:"kurt_max"`
	Trend   models.Trend `yaml:"trend" json:"trend"`
	MinAge  int          `yaml:"min_age" json:"min_age"`
}

func DefaultBandRule() BandRule {
	return BandRule{SkewMin: -2.0, SkewMax: -0.4, KurtMin: 1.5, KurtMax: 7.0, Trend: models.TrendUp, MinAge: 10}
}

func (b BandRule) Fires(r models.AnalysisRow) bool {
	return r.Skewness > b.SkewMin && r.Skewness < b.SkewMax &&
		r.Kurtosis > b.KurtMin && r.Kurtosis < b.KurtMax &&
		r.Trend == b.Trend && r.Age > b.MinAge
}

// ThresholdRule fires on exhaustion score >= MinScore in a regime older
// than MinAge.
type ThresholdRule struct {
	MinScore float64 `yaml:"min_score" json:"min_score"`
	MinAge   int     `yaml:"min_age" json:"min_age"`
}

func (t ThresholdRule) Fires(r models.AnalysisRow) bool {
	return r.ExhaustionScore >= t.MinScore && r.Age > t.MinAge
}

// Entries applies rule to every row.
func Entries(rows []models.AnalysisRow, rule Rule) []bool {
	out := make([]bool, len(rows))
	for i, r := range rows {
		out[i] = rule.Fires(r)
	}
	return out
}

// Dates returns the row timestamps.
func Dates(rows []models.AnalysisRow) []time.Time {
	out := make([]time.Time, len(rows))
	for i, r := range rows {
		out[i] = r.Timestamp
	}
	return out
}

// ChangesFromRows uses the segmenter's flips as change events. Regime ids
// are 1 for up and 0 for down.
func ChangesFromRows(rows []models.AnalysisRow) (changes []bool, regimes []int) {
	changes = make([]bool, len(rows))
	regimes = make([]int, len(rows))
	for i, r := range rows {
		changes[i] = r.Flip
		if r.Trend == models.TrendUp {
			regimes[i] = 1
		}
	}
	return changes, regimes
}

// ChangesFromEvents aligns an external classifier's events with the rows by
// timestamp. Rows without an event keep the previous regime id and are not
// changes.
func ChangesFromEvents(rows []models.AnalysisRow, events []models.RegimeEvent) (changes []bool, regimes []int) {
	byTS := make(map[time.Time]models.RegimeEvent, len(events))
	for _, e := range events {
		byTS[e.Timestamp] = e
	}
	changes = make([]bool, len(rows))
	regimes = make([]int, len(rows))
	prev := 0
	for i, r := range rows {
		e, ok := byTS[r.Timestamp]
		if !ok {
			regimes[i] = prev
			continue
		}
		changes[i], regimes[i], prev = e.Changed, e.RegimeID, e.RegimeID
	}
	return changes, regimes
}
