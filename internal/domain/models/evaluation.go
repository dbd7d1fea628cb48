package models

import "time"

// SignalOutcome is the forward check of one fired entry.
type SignalOutcome struct {
	Index    int        `json:"index"`
	Date     time.Time  `json:"ts"`
	Hit      bool       `json:"hit"`
	ChangeAt *time.Time `json:"change_at,omitempty"`
	Steps    int        `json:"steps,omitempty"` // steps until the change, when Hit
}

// SignalEvaluation aggregates hits of an entry rule against regime changes.
// EdgeRatio is only meaningful when EdgeDefined is true.
type SignalEvaluation struct {
	Horizon      int             `json:"horizon"`
	Timesteps    int             `json:"timesteps"`
	ChangeEvents int             `json:"change_events"`
	TotalSignals int             `json:"total_signals"`
	Hits         int             `json:"hits"`
	HitRate      float64         `json:"hit_rate"`
	BaselineRate float64         `json:"baseline_rate"`
	EdgeRatio    float64         `json:"edge_ratio"`
	EdgeDefined  bool            `json:"edge_defined"`
	Outcomes     []SignalOutcome `json:"outcomes,omitempty"`
}

// Misses is TotalSignals - Hits.
func (e SignalEvaluation) Misses() int { return e.TotalSignals - e.Hits }

// Correlation is a point-biserial correlation with its two-sided p-value.
type Correlation struct {
	Feature     string  `json:"feature"`
	N           int     `json:"n"`
	R           float64 `json:"r"`
	PValue      float64 `json:"p_value"`
	Significant bool    `json:"significant"`
}

// CorrelationCheck groups the per-feature correlations of one sub-period.
type CorrelationCheck struct {
	Since                    time.Time     `json:"since"`
	Horizon                  int           `json:"horizon"`
	Alpha                    float64       `json:"alpha"`
	Results                  []Correlation `json:"results"`
	NoSignificantCorrelation bool          `json:"no_significant_correlation"`
}

// TransitionProfile describes feature behaviour in the rows before one change.
type TransitionProfile struct {
	Date      time.Time `json:"ts"`
	OldRegime int       `json:"old_regime"`
	NewRegime int       `json:"new_regime"`
	AvgSkew   float64   `json:"avg_skew"`
	AvgKurt   float64   `json:"avg_kurt"`
	SkewRange float64   `json:"skew_range"`
}

// TransitionSummary aggregates profiles that share a direction (or all of them
// when From and To are nil).
type TransitionSummary struct {
	From    *int    `json:"from,omitempty"`
	To      *int    `json:"to,omitempty"`
	Count   int     `json:"count"`
	AvgSkew float64 `json:"avg_skew"`
	MinSkew float64 `json:"min_skew"`
	MaxSkew float64 `json:"max_skew"`
	AvgKurt float64 `json:"avg_kurt"`
	MinKurt float64 `json:"min_kurt"`
	MaxKurt float64 `json:"max_kurt"`
}
