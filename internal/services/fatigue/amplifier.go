package fatigue

import (
	"fmt"
	"math"
	"slices"
	"time"

	"RegimeLab/internal/domain/models"
	"RegimeLab/internal/services/scoring"
)

const stage = "fatigue"

// Config controls the age multiplier and the level cut-offs.
type Config struct {
	Scale            float64 // k in 1 + age/max(1, k*maxAge)
	HighQuantile     float64
	VeryHighQuantile float64
}

func DefaultConfig() Config {
	return Config{Scale: 0.5, HighQuantile: 0.75, VeryHighQuantile: 0.90}
}

func (c Config) validate() error {
	if !(c.Scale > 0) {
		return fmt.Errorf("fatigue: scale must be > 0, got %v", c.Scale)
	}
	if !(c.HighQuantile > 0 && c.HighQuantile < c.VeryHighQuantile && c.VeryHighQuantile < 1) {
		return fmt.Errorf("fatigue: quantiles %v/%v", c.HighQuantile, c.VeryHighQuantile)
	}
	return nil
}

// Result holds the amplified series and the thresholds derived from it.
type Result struct {
	Signals    []models.ExhaustionSignal
	Thresholds models.Thresholds
	MaxAge     int
	Warnings   []error
}

// Multiplier is 1 + age / max(1, scale*maxAge).
func Multiplier(age, maxAge int, scale float64) float64 {
	return 1 + float64(age)/math.Max(1, scale*float64(maxAge))
}

// Amplify joins composite scores with regime states by timestamp, multiplies
// each raw composite by the fatigue multiplier and rescales the product to
// [0,100] over the whole joined series. Levels use the configured quantiles
// of that scaled series, inclusive at the boundary.
func Amplify(scores []models.CompositeScore, states []models.RegimeState, cfg Config) (Result, error) {
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}

	byTS := make(map[time.Time]models.RegimeState, len(states))
	for _, s := range states {
		byTS[s.Timestamp] = s
	}

	var res Result
	joined := make([]models.ExhaustionSignal, 0, len(scores))
	for _, cs := range scores {
		st, ok := byTS[cs.Timestamp]
		if !ok {
			continue
		}
		joined = append(joined, models.ExhaustionSignal{
			Timestamp: cs.Timestamp,
			Composite: cs.Raw,
			Age:       st.Age,
			Trend:     st.Trend,
		})
		if st.Age > res.MaxAge {
			res.MaxAge = st.Age
		}
	}
	if len(joined) == 0 {
		return res, nil
	}

	raw := make([]float64, len(joined))
	for i := range joined {
		joined[i].Multiplier = Multiplier(joined[i].Age, res.MaxAge, cfg.Scale)
		joined[i].Raw = joined[i].Composite * joined[i].Multiplier
		raw[i] = joined[i].Raw
	}

	norm, ok := scoring.MinMax(raw)
	if !ok {
		res.Warnings = append(res.Warnings, &models.DegenerateRangeError{Stage: stage, Field: "exhaustion_raw"})
	}
	res.Thresholds = models.Thresholds{
		High:     Quantile(norm, cfg.HighQuantile),
		VeryHigh: Quantile(norm, cfg.VeryHighQuantile),
	}
	for i := range joined {
		joined[i].Score = norm[i]
		joined[i].Level = res.Thresholds.Classify(norm[i])
	}
	res.Signals = joined
	return res, nil
}

// Quantile returns the p-quantile of x by linear interpolation between the
// closest ranks (h = (n-1)p). x is not modified. NaN for empty input.
func Quantile(x []float64, p float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	s := slices.Clone(x)
	slices.Sort(s)
	h := float64(len(s)-1) * p
	lo := int(math.Floor(h))
	if lo >= len(s)-1 {
		return s[len(s)-1]
	}
	if lo < 0 {
		return s[0]
	}
	return s[lo] + (h-float64(lo))*(s[lo+1]-s[lo])
}
