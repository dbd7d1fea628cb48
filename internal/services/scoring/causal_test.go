package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
)

func wave(n int) []models.FeatureVector {
	out := make([]models.FeatureVector, n)
	for i := range out {
		x := float64(i)
		out[i] = vec(i, math.Sin(x/5), math.Cos(x/7), math.Sin(x/3)+1, math.Abs(math.Sin(x/11)))
	}
	return out
}

func TestCausalScorerWarmUp(t *testing.T) {
	s, err := NewCausalScorer(DefaultWeights(), CausalConfig{ReferenceWindow: 10, MinReference: 5})
	require.NoError(t, err)
	vs := wave(20)
	for i := 0; i < 5; i++ {
		_, ok := s.Push(vs[i])
		assert.False(t, ok)
	}
	cs, ok := s.Push(vs[5])
	require.True(t, ok)
	assert.Equal(t, vs[5].Timestamp, cs.Timestamp)
	assert.Equal(t, 5, cs.Reference)
	for _, v := range vs[6:] {
		cs, ok = s.Push(v)
		require.True(t, ok)
		assert.GreaterOrEqual(t, cs.Normalized, 0.0)
		assert.LessOrEqual(t, cs.Normalized, 100.0)
	}
	assert.Equal(t, 10, s.Len())
	assert.Equal(t, 10, cs.Reference)
}

func TestCausalScoresIgnoreLaterData(t *testing.T) {
	cfg := CausalConfig{ReferenceWindow: 30, MinReference: 10}
	vs := wave(60)
	base, err := ScoreCausal(vs, DefaultWeights(), cfg)
	require.NoError(t, err)

	changed := append([]models.FeatureVector(nil), vs...)
	for i := 40; i < len(changed); i++ {
		changed[i].Kurtosis += 50
	}
	moved, err := ScoreCausal(changed, DefaultWeights(), cfg)
	require.NoError(t, err)
	require.Equal(t, len(base.Scores), len(moved.Scores))
	assert.Empty(t, base.Warnings)

	for i := range base.Scores {
		if !base.Scores[i].Timestamp.Before(vs[40].Timestamp) {
			break
		}
		assert.Equal(t, base.Scores[i], moved.Scores[i])
	}
}

func TestCausalFlatColumnIsReported(t *testing.T) {
	vs := wave(40)
	for i := range vs {
		vs[i].Range = 0.5
	}
	batch, err := ScoreCausal(vs, DefaultWeights(), CausalConfig{ReferenceWindow: 20, MinReference: 5})
	require.NoError(t, err)
	require.Len(t, batch.Scores, 35)
	for _, cs := range batch.Scores {
		assert.Equal(t, []string{"range"}, cs.Flat)
	}

	// one warning per column, not per bar
	require.Len(t, batch.Warnings, 1)
	var dr *models.DegenerateRangeError
	require.ErrorAs(t, batch.Warnings[0], &dr)
	assert.Equal(t, "causal", dr.Stage)
	assert.Equal(t, "range", dr.Field)
	assert.ErrorIs(t, batch.Warnings[0], models.ErrDegenerateRange)
}

func TestCausalConstantInputFlagsRawScores(t *testing.T) {
	vs := make([]models.FeatureVector, 12)
	for i := range vs {
		vs[i] = vec(i, 0.25, 0.5, 0.75, 1.5)
	}
	batch, err := ScoreCausal(vs, DefaultWeights(), CausalConfig{ReferenceWindow: 10, MinReference: 5})
	require.NoError(t, err)
	require.Len(t, batch.Scores, 7)

	// the first emitted bar has a single raw score and is not flagged for it
	assert.Equal(t, []string{"return", "skewness", "kurtosis", "range"}, batch.Scores[0].Flat)
	assert.Equal(t, []string{"return", "skewness", "kurtosis", "range", "causal_raw"}, batch.Scores[1].Flat)
	for _, cs := range batch.Scores {
		assert.Equal(t, 50.0, cs.Normalized)
		assert.Zero(t, cs.Raw)
	}
	assert.Len(t, batch.Warnings, 5)
}

func TestNewCausalScorerRejectsBadConfig(t *testing.T) {
	_, err := NewCausalScorer(DefaultWeights(), CausalConfig{ReferenceWindow: 5, MinReference: 10})
	assert.Error(t, err)
	_, err = NewCausalScorer(Weights{}, DefaultCausalConfig())
	assert.Error(t, err)
}
