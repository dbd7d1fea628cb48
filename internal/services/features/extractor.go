package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"RegimeLab/internal/domain/models"
)

// ExtractorConfig controls the trailing window.
type ExtractorConfig struct {
	Window          int // prior points per window (W)
	MinObservations int // minimum valid returns per window (M)
}

// DefaultExtractorConfig returns W=20, M=10.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{Window: 20, MinObservations: 10}
}

// LogReturns computes r_t = ln(C_t / C_{t-1}) over consecutive closes.
// Pairs with a non-positive close are undefined and skipped.
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if r, ok := logReturn(closes[i-1], closes[i]); ok {
			out = append(out, r)
		}
	}
	return out
}

func logReturn(prev, cur float64) (float64, bool) {
	if prev <= 0 || cur <= 0 || math.IsNaN(prev) || math.IsNaN(cur) {
		return 0, false
	}
	r := math.Log(cur / prev)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

// Extract produces one FeatureVector per timestamp t_i (i >= W) from the W
// points strictly before t_i. Timestamps whose window holds fewer than
// MinObservations valid returns are skipped. Fewer than W+1 points yield nil.
func Extract(points []models.PricePoint, cfg ExtractorConfig) []models.FeatureVector {
	w := cfg.Window
	if w < 2 || len(points) < w+1 {
		return nil
	}

	// rets[j] is the return into point j; rets[0] has no prior point.
	rets := make([]float64, len(points))
	valid := make([]bool, len(points))
	for j := 1; j < len(points); j++ {
		rets[j], valid[j] = logReturn(points[j-1].Close, points[j].Close)
	}

	out := make([]models.FeatureVector, 0, len(points)-w)
	buf := make([]float64, 0, w-1)
	for i := w; i < len(points); i++ {
		// window points[i-w : i]; the first point contributes no return
		buf = buf[:0]
		for j := i - w + 1; j < i; j++ {
			if valid[j] {
				buf = append(buf, rets[j])
			}
		}
		if len(buf) < cfg.MinObservations || len(buf) < 1 {
			continue
		}
		skew, kurt := Moments(buf)
		out = append(out, models.FeatureVector{
			Timestamp: points[i].Timestamp,
			Close:     points[i].Close,
			Return:    floats.Sum(buf),
			Skewness:  skew,
			Kurtosis:  kurt,
			Range:     floats.Max(buf) - floats.Min(buf),
			N:         len(buf),
		})
	}
	return out
}

// Moments returns the bias-corrected sample skewness and excess kurtosis.
// A window with zero variance (or too few points) has both moments at 0.
func Moments(x []float64) (skew, kurt float64) {
	if len(x) < 3 {
		return 0, 0
	}
	if floats.Max(x) == floats.Min(x) {
		return 0, 0
	}
	skew = stat.Skew(x, nil)
	if math.IsNaN(skew) || math.IsInf(skew, 0) {
		skew = 0
	}
	if len(x) >= 4 {
		kurt = stat.ExKurtosis(x, nil)
		if math.IsNaN(kurt) || math.IsInf(kurt, 0) {
			kurt = 0
		}
	}
	return skew, kurt
}
