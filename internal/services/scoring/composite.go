package scoring

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"RegimeLab/internal/domain/models"
)

const stage = "composite"

// Weights maps each feature to a non-negative weight. They are divided by
// their sum before use.
type Weights struct {
	Return   float64 `yaml:"return" json:"return"`
	Skewness float64 `yaml:"skewness" json:"skewness"`
	Kurtosis float64 `yaml:"kurtosis" json:"kurtosis"`
	Range    float64 `yaml:"range" json:"range"`
}

// DefaultWeights are the research weights for return, skewness, kurtosis, range.
func DefaultWeights() Weights {
	return Weights{Return: 0.2337, Skewness: 0.2126, Kurtosis: 0.2122, Range: 0.2542}
}

// Normalize returns the weights scaled to sum to 1.
func (w Weights) Normalize() (Weights, error) {
	if w.Return < 0 || w.Skewness < 0 || w.Kurtosis < 0 || w.Range < 0 {
		return Weights{}, fmt.Errorf("weights must be non-negative: %+v", w)
	}
	sum := w.Return + w.Skewness + w.Kurtosis + w.Range
	if sum <= 0 {
		return Weights{}, fmt.Errorf("weights sum to %v", sum)
	}
	return Weights{
		Return:   w.Return / sum,
		Skewness: w.Skewness / sum,
		Kurtosis: w.Kurtosis / sum,
		Range:    w.Range / sum,
	}, nil
}

func (w Weights) vector() [4]float64 {
	return [4]float64{w.Return, w.Skewness, w.Kurtosis, w.Range}
}

var featureNames = [4]string{"return", "skewness", "kurtosis", "range"}

func columns(fv models.FeatureVector) [4]float64 {
	return [4]float64{fv.Return, fv.Skewness, fv.Kurtosis, fv.Range}
}

// Batch is the output of Score. Warnings carry *models.DegenerateRangeError
// values for every column that fell back to its degenerate rule.
type Batch struct {
	Scores   []models.CompositeScore
	Warnings []error
}

// Score z-scores every feature against the whole batch and combines them:
// raw = sum(z * w * 100). Normalized is raw min-max scaled to [0,100].
// This uses statistics of later vectors and is for retrospective analysis only;
// see CausalScorer for the trailing variant.
func Score(vectors []models.FeatureVector, weights Weights) (Batch, error) {
	if len(vectors) == 0 {
		return Batch{}, nil
	}
	w, err := weights.Normalize()
	if err != nil {
		return Batch{}, fmt.Errorf("score: %w", err)
	}
	wv := w.vector()

	var out Batch
	raw := make([]float64, len(vectors))
	col := make([]float64, len(vectors))
	for f := 0; f < 4; f++ {
		for i, fv := range vectors {
			col[i] = columns(fv)[f]
		}
		z, ok := ZScores(col)
		if !ok {
			out.Warnings = append(out.Warnings, &models.DegenerateRangeError{Stage: stage, Field: featureNames[f]})
		}
		for i := range raw {
			raw[i] += z[i] * wv[f] * 100
		}
	}

	norm, ok := MinMax(raw)
	if !ok {
		out.Warnings = append(out.Warnings, &models.DegenerateRangeError{Stage: stage, Field: "composite_raw"})
	}
	out.Scores = make([]models.CompositeScore, len(vectors))
	for i, fv := range vectors {
		out.Scores[i] = models.CompositeScore{Timestamp: fv.Timestamp, Raw: raw[i], Normalized: norm[i]}
	}
	return out, nil
}

// ZScores standardizes x with its mean and sample standard deviation. When the
// deviation is not > 0 every z is 0 and ok is false.
func ZScores(x []float64) (z []float64, ok bool) {
	z = make([]float64, len(x))
	if len(x) < 2 {
		return z, false
	}
	mean, std := stat.MeanStdDev(x, nil)
	if !(std > 0) || math.IsInf(std, 0) {
		return z, false
	}
	for i, v := range x {
		z[i] = (v - mean) / std
	}
	return z, true
}

// MinMax rescales x to [0,100]. A constant (or empty) series maps to 50 and
// ok is false.
func MinMax(x []float64) (out []float64, ok bool) {
	out = make([]float64, len(x))
	if len(x) == 0 {
		return out, false
	}
	lo, hi := floats.Min(x), floats.Max(x)
	span := hi - lo
	if !(span > 0) || math.IsInf(span, 0) {
		for i := range out {
			out[i] = 50
		}
		return out, false
	}
	for i, v := range x {
		out[i] = clamp((v-lo)/span*100, 0, 100)
	}
	return out, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
