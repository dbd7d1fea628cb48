package fatigue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
)

var t0 = time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time { return t0.AddDate(0, 0, i) }

func TestMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, Multiplier(0, 40, 0.5))
	assert.Equal(t, 2.0, Multiplier(20, 40, 0.5))
	assert.Equal(t, 3.0, Multiplier(40, 40, 0.5))
	// the denominator never drops below 1
	assert.Equal(t, 2.0, Multiplier(1, 1, 0.5))
	assert.Equal(t, 1.0, Multiplier(0, 0, 0.5))
}

func TestQuantileLinear(t *testing.T) {
	x := []float64{10, 0, 30, 20, 40}
	assert.Equal(t, 30.0, Quantile(x, 0.75))
	assert.InDelta(t, 36.0, Quantile(x, 0.90), 1e-12)
	assert.Equal(t, 0.0, Quantile(x, 0))
	assert.Equal(t, 40.0, Quantile(x, 1))
	assert.Equal(t, []float64{10, 0, 30, 20, 40}, x)
	assert.True(t, Quantile(nil, 0.5) != Quantile(nil, 0.5)) // NaN
}

func TestAmplifyJoinsAndClassifies(t *testing.T) {
	var scores []models.CompositeScore
	var states []models.RegimeState
	for i := 0; i < 10; i++ {
		scores = append(scores, models.CompositeScore{Timestamp: day(i), Raw: float64(i + 1)})
	}
	// state for day 0 is missing: not labeled yet
	for i := 1; i < 12; i++ {
		states = append(states, models.RegimeState{Timestamp: day(i), Trend: models.TrendUp, Age: i - 1})
	}

	res, err := Amplify(scores, states, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Signals, 9)
	assert.Equal(t, 8, res.MaxAge)
	assert.Empty(t, res.Warnings)

	first, last := res.Signals[0], res.Signals[8]
	assert.Equal(t, day(1), first.Timestamp)
	assert.Equal(t, 1.0, first.Multiplier)
	assert.Equal(t, 3.0, last.Multiplier)
	assert.Equal(t, 30.0, last.Raw)
	assert.Equal(t, 100.0, last.Score)
	assert.Equal(t, 0.0, first.Score)

	for _, s := range res.Signals {
		assert.Equal(t, res.Thresholds.Classify(s.Score), s.Level)
	}
	assert.Equal(t, models.LevelVeryHigh, last.Level)
	assert.Equal(t, models.LevelNormal, first.Level)
}

func TestAmplifyBoundaryIsInclusive(t *testing.T) {
	// five equal-age points: quantiles land exactly on sample values
	var scores []models.CompositeScore
	var states []models.RegimeState
	for i, raw := range []float64{0, 1, 2, 3, 4} {
		scores = append(scores, models.CompositeScore{Timestamp: day(i), Raw: raw})
		states = append(states, models.RegimeState{Timestamp: day(i), Age: 0})
	}
	res, err := Amplify(scores, states, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 75.0, res.Thresholds.High)
	assert.Equal(t, models.LevelHigh, res.Signals[3].Level)
	assert.Equal(t, models.LevelVeryHigh, res.Signals[4].Level)
	assert.Equal(t, models.LevelNormal, res.Signals[2].Level)
}

func TestAmplifyDegenerate(t *testing.T) {
	scores := []models.CompositeScore{{Timestamp: day(0)}, {Timestamp: day(1)}}
	states := []models.RegimeState{{Timestamp: day(0)}, {Timestamp: day(1), Age: 1}}
	res, err := Amplify(scores, states, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.True(t, errors.Is(res.Warnings[0], models.ErrDegenerateRange))
	for _, s := range res.Signals {
		assert.Equal(t, 50.0, s.Score)
		// every point sits on both thresholds
		assert.Equal(t, models.LevelVeryHigh, s.Level)
	}
}

func TestAmplifyEmpty(t *testing.T) {
	res, err := Amplify(nil, nil, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, res.Signals)
}

func TestAmplifyRejectsBadConfig(t *testing.T) {
	_, err := Amplify(nil, nil, Config{Scale: 0, HighQuantile: 0.75, VeryHighQuantile: 0.9})
	assert.Error(t, err)
	_, err = Amplify(nil, nil, Config{Scale: 0.5, HighQuantile: 0.9, VeryHighQuantile: 0.75})
	assert.Error(t, err)
}
