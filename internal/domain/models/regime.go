package models

import (
	"fmt"
	"time"
)

// MarshalText renders the trend as "up"/"down".
func (t Trend) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText parses "up"/"down".
func (t *Trend) UnmarshalText(b []byte) error {
	v, ok := ParseTrend(string(b))
	if !ok {
		return fmt.Errorf("invalid trend %q", string(b))
	}
	*t = v
	return nil
}

// ExhaustionMark locates an above-Normal point relative to its regime.
type ExhaustionMark struct {
	Timestamp time.Time `json:"ts"`
	Score     float64   `json:"score"`
	LeadDays  int       `json:"lead_days"` // calendar days before the regime end
	MaxScore  float64   `json:"max_score"` // highest score inside the lookback window
	Preceded  bool      `json:"preceded"`  // LeadDays within the lookback window
}

// RegimeInterval is a maximal span of one trend label. Start is inclusive; End
// is the successor's first timestamp (exclusive) or, when Open, the last
// timestamp of the series (inclusive).
type RegimeInterval struct {
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
	Open         bool            `json:"open"`
	Trend        Trend           `json:"trend"`
	Duration     time.Duration   `json:"duration"`
	DurationDays int             `json:"duration_days"`
	Points       int             `json:"points"`
	MeanSignal   float64         `json:"mean_signal"`
	AboveNormal  int             `json:"above_normal"`
	FirstOffset  *int            `json:"first_exhaustion_day,omitempty"` // days into regime
	LastOffset   *int            `json:"last_exhaustion_day,omitempty"`
	Final        *ExhaustionMark `json:"final_exhaustion,omitempty"` // closed intervals only
}

// Contains reports whether ts falls inside the interval.
func (r RegimeInterval) Contains(ts time.Time) bool {
	if ts.Before(r.Start) {
		return false
	}
	if r.Open {
		return !ts.After(r.End)
	}
	return ts.Before(r.End)
}

// TopExhausted is one of the most exhausted timestamps with its regime context.
type TopExhausted struct {
	Timestamp        time.Time       `json:"ts"`
	Score            float64         `json:"score"`
	Age              int             `json:"age"`
	Multiplier       float64         `json:"multiplier"`
	Composite        float64         `json:"composite"`
	Close            float64         `json:"close"`
	Regime           *RegimeInterval `json:"regime,omitempty"`
	DaysToChange     *int            `json:"days_to_change,omitempty"`
	ForwardReturnPct *float64        `json:"forward_return_pct,omitempty"`
	TrendChanged     bool            `json:"trend_changed"`
	ChangedAt        *time.Time      `json:"changed_at,omitempty"`
	DaysLater        *int            `json:"days_later,omitempty"`
}

// AlertLevel grades the current state.
type AlertLevel string

const (
	AlertNormal  AlertLevel = "normal"
	AlertWarning AlertLevel = "warning"
	AlertAlert   AlertLevel = "alert"
)

// CurrentState summarises the latest row and the ongoing regime.
type CurrentState struct {
	Timestamp time.Time       `json:"ts"`
	Close     float64         `json:"close"`
	Score     float64         `json:"score"`
	Age       int             `json:"age"`
	Trend     Trend           `json:"trend"`
	Level     Level           `json:"level"`
	Regime    *RegimeInterval `json:"regime,omitempty"`
	Alert     AlertLevel      `json:"alert"`
}

// Alert is published when a run ends in a non-normal state.
type Alert struct {
	RunID      string     `json:"run_id"`
	Symbol     string     `json:"symbol"`
	Timestamp  time.Time  `json:"ts"`
	Score      float64    `json:"score"`
	Level      Level      `json:"level"`
	Alert      AlertLevel `json:"alert"`
	Trend      Trend      `json:"trend"`
	Age        int        `json:"age"`
	RegimeDays int        `json:"regime_days"`
}
