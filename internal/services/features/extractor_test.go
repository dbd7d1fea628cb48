package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
)

func series(closes ...float64) []models.PricePoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PricePoint, len(closes))
	for i, c := range closes {
		out[i] = models.PricePoint{Timestamp: start.AddDate(0, 0, i), Close: c}
	}
	return out
}

func walk(n int) []float64 {
	out := make([]float64, n)
	p := 100.0
	for i := range out {
		p *= 1 + 0.01*math.Sin(float64(i)*0.7) + 0.003*math.Cos(float64(i)*1.9)
		out[i] = p
	}
	return out
}

func TestLogReturns(t *testing.T) {
	r := LogReturns([]float64{100, 110, 0, 121})
	require.Len(t, r, 1)
	assert.InDelta(t, math.Log(1.1), r[0], 1e-12)
	assert.Nil(t, LogReturns([]float64{1}))
}

func TestExtractEmpty(t *testing.T) {
	assert.Empty(t, Extract(nil, DefaultExtractorConfig()))
	// W points are not enough
	assert.Empty(t, Extract(series(walk(20)...), DefaultExtractorConfig()))
}

func TestExtractFirstEligibleTimestamp(t *testing.T) {
	pts := series(walk(25)...)
	out := Extract(pts, DefaultExtractorConfig())
	require.Len(t, out, 5)
	assert.Equal(t, pts[20].Timestamp, out[0].Timestamp)
	assert.Equal(t, 19, out[0].N)
	for i := 1; i < len(out); i++ {
		assert.True(t, out[i].Timestamp.After(out[i-1].Timestamp))
	}
}

func TestExtractSumMatchesWindow(t *testing.T) {
	closes := walk(30)
	out := Extract(series(closes...), DefaultExtractorConfig())
	require.NotEmpty(t, out)
	// window [0,20) -> ln(c19/c0)
	assert.InDelta(t, math.Log(closes[19]/closes[0]), out[0].Return, 1e-12)
}

func TestExtractIsCausal(t *testing.T) {
	closes := walk(60)
	base := Extract(series(closes...), DefaultExtractorConfig())

	shifted := append([]float64(nil), closes...)
	for i := 40; i < len(shifted); i++ {
		shifted[i] *= 3
	}
	moved := Extract(series(shifted...), DefaultExtractorConfig())
	require.Equal(t, len(base), len(moved))

	for i := range base {
		if !base[i].Timestamp.Before(series(closes...)[41].Timestamp) {
			break
		}
		assert.Equal(t, base[i].Return, moved[i].Return, "idx %d", i)
		assert.Equal(t, base[i].Skewness, moved[i].Skewness, "idx %d", i)
		assert.Equal(t, base[i].Kurtosis, moved[i].Kurtosis, "idx %d", i)
		assert.Equal(t, base[i].Range, moved[i].Range, "idx %d", i)
	}
}

func TestExtractConstantPrice(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 50
	}
	out := Extract(series(closes...), DefaultExtractorConfig())
	require.Len(t, out, 10)
	for _, fv := range out {
		assert.Zero(t, fv.Return)
		assert.Zero(t, fv.Skewness)
		assert.Zero(t, fv.Kurtosis)
		assert.Zero(t, fv.Range)
	}
}

func TestExtractMinObservations(t *testing.T) {
	closes := walk(25)
	for i := 3; i < 15; i++ {
		closes[i] = 0
	}
	// most windows lose their returns to the zero closes
	out := Extract(series(closes...), DefaultExtractorConfig())
	for _, fv := range out {
		assert.GreaterOrEqual(t, fv.N, 10)
	}
	assert.Less(t, len(out), 5)
}

func TestMoments(t *testing.T) {
	// reference values from the adjusted Fisher-Pearson / unbiased excess kurtosis
	x := []float64{1, 2, 3, 4, 10}
	skew, kurt := Moments(x)
	assert.InDelta(t, 1.697056, skew, 1e-5)
	assert.InDelta(t, 3.152, kurt, 1e-5)

	skew, kurt = Moments([]float64{2, 2, 2, 2})
	assert.Zero(t, skew)
	assert.Zero(t, kurt)
}
