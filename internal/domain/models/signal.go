package models

import "time"

// PricePoint is one observation of the input series. Series are ordered by
// Timestamp, strictly increasing.
type PricePoint struct {
	Timestamp time.Time
	Close     float64
}

// Candle represents a stored OHLCV bar as read from the warehouse.
type Candle struct {
	Bucket time.Time `json:"ts"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Point drops everything but the close.
func (c Candle) Point() PricePoint {
	return PricePoint{Timestamp: c.Bucket, Close: c.Close}
}

// FeatureVector holds the distributional features of the trailing window that
// ends just before Timestamp.
type FeatureVector struct {
	Timestamp time.Time
	Close     float64
	Return    float64 // sum of log returns
	Skewness  float64 // sample skewness (adjusted Fisher-Pearson)
	Kurtosis  float64 // sample excess kurtosis
	Range     float64 // max - min of the log returns
	N         int     // number of returns used
}

// CompositeScore is the weighted z-score composite of one FeatureVector.
// Normalized depends on the whole batch and is not streaming-safe.
type CompositeScore struct {
	Timestamp  time.Time
	Raw        float64
	Normalized float64 // [0,100]
}

// CausalScore is produced from trailing statistics only and is safe to emit
// bar by bar.
type CausalScore struct {
	Timestamp  time.Time `json:"ts"`
	Raw        float64   `json:"raw"`
	Normalized float64   `json:"normalized"`     // [0,100] against the trailing reference window
	Reference  int       `json:"reference"`      // vectors in the reference window
	Flat       []string  `json:"flat,omitempty"` // columns with zero spread at this bar
}

// Trend is the moving-average direction label.
type Trend int8

const (
	TrendDown Trend = -1
	TrendUp   Trend = 1
)

func (t Trend) String() string {
	if t == TrendUp {
		return "up"
	}
	return "down"
}

// Title is the human form used in reports.
func (t Trend) Title() string {
	if t == TrendUp {
		return "Uptrend"
	}
	return "Downtrend"
}

// ParseTrend accepts "up"/"down" (and the report titles).
func ParseTrend(s string) (Trend, bool) {
	switch s {
	case "up", "Uptrend", "uptrend", "1":
		return TrendUp, true
	case "down", "Downtrend", "downtrend", "-1":
		return TrendDown, true
	default:
		return 0, false
	}
}

// RegimeState is the trend label and age at one labeled timestamp.
type RegimeState struct {
	Timestamp time.Time
	Trend     Trend
	Age       int  // steps since the last flip; 0 at a flip
	Flip      bool // label differs from the previous labeled step
	ShortMA   float64
	LongMA    float64
}

// RegimeEvent is one step of an external classifier's output.
type RegimeEvent struct {
	Timestamp time.Time
	RegimeID  int
	Changed   bool
}

// Level classifies a normalized exhaustion score against the dynamic thresholds.
type Level string

const (
	LevelNormal   Level = "Normal"
	LevelHigh     Level = "High"
	LevelVeryHigh Level = "Very High"
)

// AboveNormal reports High or Very High.
func (l Level) AboveNormal() bool { return l == LevelHigh || l == LevelVeryHigh }

// Thresholds are the percentile cut-offs of the normalized exhaustion signal.
type Thresholds struct {
	High     float64 `json:"high"`
	VeryHigh float64 `json:"very_high"`
}

// Classify applies the boundary-inclusive cut-offs.
func (t Thresholds) Classify(score float64) Level {
	switch {
	case score >= t.VeryHigh:
		return LevelVeryHigh
	case score >= t.High:
		return LevelHigh
	default:
		return LevelNormal
	}
}

// ExhaustionSignal is the fatigue-amplified composite at one timestamp.
type ExhaustionSignal struct {
	Timestamp  time.Time
	Composite  float64 // CompositeScore.Raw
	Age        int
	Trend      Trend
	Multiplier float64
	Raw        float64 // Composite * Multiplier
	Score      float64 // Raw min-max scaled to [0,100]
	Level      Level
}

// AnalysisRow is one line of the per-timestamp output table.
type AnalysisRow struct {
	Timestamp       time.Time `json:"ts"`
	Close           float64   `json:"close"`
	Return          float64   `json:"return"`
	Skewness        float64   `json:"skewness"`
	Kurtosis        float64   `json:"kurtosis"`
	Range           float64   `json:"range"`
	CompositeRaw    float64   `json:"composite_raw"`
	CompositeScore  float64   `json:"composite_score"`
	Trend           Trend     `json:"trend"`
	Age             int       `json:"age"`
	Flip            bool      `json:"flip"`
	Multiplier      float64   `json:"multiplier"`
	ExhaustionRaw   float64   `json:"exhaustion_raw"`
	ExhaustionScore float64   `json:"exhaustion_score"`
	Level           Level     `json:"level"`
}
