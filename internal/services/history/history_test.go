package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
)

var t0 = time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time { return t0.AddDate(0, 0, i) }

// timeline: up for days 0-9, down 10-19, up 20-29; High on day 5,
// Very High on day 8, everything else Normal.
func timeline() ([]models.AnalysisRow, []time.Time) {
	rows := make([]models.AnalysisRow, 30)
	for i := range rows {
		tr := models.TrendUp
		if i >= 10 && i < 20 {
			tr = models.TrendDown
		}
		rows[i] = models.AnalysisRow{
			Timestamp:       day(i),
			Close:           100 + float64(i),
			Trend:           tr,
			Age:             i % 10,
			Flip:            i == 10 || i == 20,
			ExhaustionScore: 10,
			Level:           models.LevelNormal,
		}
	}
	rows[5].ExhaustionScore, rows[5].Level = 80, models.LevelHigh
	rows[8].ExhaustionScore, rows[8].Level = 95, models.LevelVeryHigh
	return rows, []time.Time{day(10), day(20)}
}

func assertPartition(t *testing.T, rows []models.AnalysisRow, ivs []models.RegimeInterval) {
	t.Helper()
	require.NotEmpty(t, ivs)
	assert.Equal(t, rows[0].Timestamp, ivs[0].Start)
	assert.Equal(t, rows[len(rows)-1].Timestamp, ivs[len(ivs)-1].End)
	assert.True(t, ivs[len(ivs)-1].Open)
	for i := 1; i < len(ivs); i++ {
		assert.False(t, ivs[i-1].Open)
		assert.Equal(t, ivs[i-1].End, ivs[i].Start, "gap or overlap at %d", i)
	}
	total := 0
	for _, r := range rows {
		n := 0
		for _, iv := range ivs {
			if iv.Contains(r.Timestamp) {
				n++
			}
		}
		assert.Equal(t, 1, n, "row %s", r.Timestamp)
	}
	for _, iv := range ivs {
		total += iv.Points
	}
	assert.Equal(t, len(rows), total)
}

func TestBuildPartitionsTimeline(t *testing.T) {
	rows, flips := timeline()
	ivs := Build(rows, flips, DefaultConfig())
	require.Len(t, ivs, 3)
	assertPartition(t, rows, ivs)

	assert.Equal(t, models.TrendUp, ivs[0].Trend)
	assert.Equal(t, models.TrendDown, ivs[1].Trend)
	assert.Equal(t, models.TrendUp, ivs[2].Trend)

	assert.Equal(t, 10, ivs[0].DurationDays)
	assert.Equal(t, 10*24*time.Hour, ivs[0].Duration)
	assert.Equal(t, 9, ivs[2].DurationDays)
	assert.Equal(t, 10, ivs[2].Points)

	assert.Equal(t, 2, ivs[0].AboveNormal)
	assert.InDelta(t, (8*10+80+95)/10.0, ivs[0].MeanSignal, 1e-9)
	require.NotNil(t, ivs[0].FirstOffset)
	assert.Equal(t, 5, *ivs[0].FirstOffset)
	assert.Equal(t, 8, *ivs[0].LastOffset)
	assert.Nil(t, ivs[1].FirstOffset)
}

func TestBuildFinalExhaustion(t *testing.T) {
	rows, flips := timeline()
	ivs := Build(rows, flips, DefaultConfig())

	fin := ivs[0].Final
	require.NotNil(t, fin)
	assert.Equal(t, day(8), fin.Timestamp)
	assert.Equal(t, 2, fin.LeadDays)
	assert.Equal(t, 95.0, fin.MaxScore)
	assert.True(t, fin.Preceded)

	assert.Nil(t, ivs[1].Final)
	assert.Nil(t, ivs[2].Final, "open interval has no final exhaustion")

	// a lookback shorter than the lead time misses the point
	short := DefaultConfig()
	short.LookbackDays = 1
	ivs = Build(rows, flips, short)
	assert.Nil(t, ivs[0].Final)
}

func TestBuildIgnoresFlipsOutsideRows(t *testing.T) {
	rows, _ := timeline()
	ivs := Build(rows, []time.Time{day(-5), day(15), day(40)}, DefaultConfig())
	require.Len(t, ivs, 2)
	assertPartition(t, rows, ivs)
	assert.Equal(t, day(15), ivs[1].Start)
}

func TestBuildAbsorbsEmptySpan(t *testing.T) {
	rows, _ := timeline()
	flips := []time.Time{day(10).Add(12 * time.Hour), day(10).Add(18 * time.Hour)}
	ivs := Build(rows, flips, DefaultConfig())
	require.Len(t, ivs, 2)
	assertPartition(t, rows, ivs)
	assert.Equal(t, day(10).Add(18*time.Hour), ivs[0].End)
}

func TestBuildNoFlips(t *testing.T) {
	rows, _ := timeline()
	ivs := Build(rows, nil, DefaultConfig())
	require.Len(t, ivs, 1)
	assertPartition(t, rows, ivs)
	assert.Equal(t, 29, ivs[0].DurationDays)
}

func TestLongRegimes(t *testing.T) {
	ivs := []models.RegimeInterval{{DurationDays: 100}, {DurationDays: 101}, {DurationDays: 250}}
	long := LongRegimes(ivs, 100)
	require.Len(t, long, 2)
	assert.Equal(t, 101, long[0].DurationDays)
}

func TestTopExhausted(t *testing.T) {
	rows, flips := timeline()
	ivs := Build(rows, flips, DefaultConfig())
	cfg := DefaultConfig()
	cfg.TopN = 2
	cfg.ForwardSteps = 5

	top := TopExhausted(rows, ivs, cfg)
	require.Len(t, top, 2)
	assert.Equal(t, day(8), top[0].Timestamp)
	assert.Equal(t, day(5), top[1].Timestamp)

	first := top[0]
	require.NotNil(t, first.Regime)
	assert.Equal(t, day(0), first.Regime.Start)
	require.NotNil(t, first.DaysToChange)
	assert.Equal(t, 2, *first.DaysToChange)
	require.NotNil(t, first.ForwardReturnPct)
	assert.InDelta(t, (113.0/108.0-1)*100, *first.ForwardReturnPct, 1e-9)
	assert.True(t, first.TrendChanged)
	assert.Equal(t, day(10), *first.ChangedAt)
	assert.Equal(t, 2, *first.DaysLater)
}

func TestTopExhaustedNearEnd(t *testing.T) {
	rows, flips := timeline()
	rows[28].ExhaustionScore = 99
	ivs := Build(rows, flips, DefaultConfig())
	top := TopExhausted(rows, ivs, DefaultConfig())
	require.Len(t, top, 15)
	assert.Equal(t, day(28), top[0].Timestamp)
	assert.Nil(t, top[0].ForwardReturnPct)
	assert.Nil(t, top[0].DaysToChange)
	assert.False(t, top[0].TrendChanged)
}

func TestCurrent(t *testing.T) {
	rows, flips := timeline()
	ivs := Build(rows, flips, DefaultConfig())
	th := models.Thresholds{High: 50, VeryHigh: 90}

	cs := Current(rows, ivs, th, DefaultConfig())
	require.NotNil(t, cs)
	assert.Equal(t, day(29), cs.Timestamp)
	assert.Equal(t, models.AlertNormal, cs.Alert)
	require.NotNil(t, cs.Regime)
	assert.True(t, cs.Regime.Open)

	rows[29].ExhaustionScore = 95
	cs = Current(rows, ivs, th, DefaultConfig())
	// regime only 9 days old: no alert at any score
	assert.Equal(t, models.AlertNormal, cs.Alert)

	rows[29].ExhaustionScore = 80
	cs = Current(rows, ivs, models.Thresholds{High: 70, VeryHigh: 90}, DefaultConfig())
	assert.Equal(t, models.AlertNormal, cs.Alert)

	cfg := DefaultConfig()
	cfg.LongRegimeDays = 5
	cs = Current(rows, ivs, models.Thresholds{High: 70, VeryHigh: 90}, cfg)
	assert.Equal(t, models.AlertWarning, cs.Alert)

	rows[29].ExhaustionScore = 95
	cs = Current(rows, ivs, th, cfg)
	assert.Equal(t, models.AlertAlert, cs.Alert)
}

func TestEmptyInputs(t *testing.T) {
	assert.Empty(t, Join(nil, nil, nil, nil))
	assert.Empty(t, Build(nil, nil, DefaultConfig()))
	assert.Empty(t, TopExhausted(nil, nil, DefaultConfig()))
	assert.Nil(t, Current(nil, nil, models.Thresholds{}, DefaultConfig()))
	assert.Empty(t, LongRegimes(nil, 100))
}

func TestJoinInner(t *testing.T) {
	var (
		fvs     []models.FeatureVector
		scores  []models.CompositeScore
		signals []models.ExhaustionSignal
		states  []models.RegimeState
	)
	for i := 0; i < 6; i++ {
		fvs = append(fvs, models.FeatureVector{Timestamp: day(i), Close: float64(i), Skewness: 0.1 * float64(i)})
		scores = append(scores, models.CompositeScore{Timestamp: day(i), Raw: float64(i)})
		if i >= 2 {
			states = append(states, models.RegimeState{Timestamp: day(i), Trend: models.TrendUp, Age: i - 2, Flip: i == 4})
			signals = append(signals, models.ExhaustionSignal{Timestamp: day(i), Score: float64(10 * i), Level: models.LevelHigh})
		}
	}
	rows := Join(fvs, scores, signals, states)
	require.Len(t, rows, 4)
	assert.Equal(t, day(2), rows[0].Timestamp)
	assert.Equal(t, 0.2, rows[0].Skewness)
	assert.Equal(t, 20.0, rows[0].ExhaustionScore)
	assert.True(t, rows[2].Flip)
	assert.Equal(t, models.LevelHigh, rows[3].Level)
}
