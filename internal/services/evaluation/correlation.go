package evaluation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"RegimeLab/internal/domain/models"
)

// DefaultAlpha is the significance level of the correlation check.
const DefaultAlpha = 0.05

// PointBiserial correlates a continuous feature with a binary indicator
// (Pearson r with the indicator as 0/1) and attaches the two-sided p-value
// from Student's t with n-2 degrees of freedom.
//
// Fewer than 3 observations return models.ErrInsufficientData. A constant
// feature or indicator returns a *models.DegenerateRangeError along with a
// non-significant result (r=0, p=1).
func PointBiserial(feature string, values []float64, flags []bool, alpha float64) (models.Correlation, error) {
	if len(values) != len(flags) {
		return models.Correlation{}, fmt.Errorf("point-biserial %s: %d values vs %d flags", feature, len(values), len(flags))
	}
	n := len(values)
	c := models.Correlation{Feature: feature, N: n, PValue: 1}
	if n < 3 {
		return c, fmt.Errorf("point-biserial %s: n=%d: %w", feature, n, models.ErrInsufficientData)
	}

	y := make([]float64, n)
	for i, f := range flags {
		if f {
			y[i] = 1
		}
	}
	if stat.Variance(y, nil) == 0 {
		return c, &models.DegenerateRangeError{Stage: "correlation", Field: "future_change"}
	}
	if stat.Variance(values, nil) == 0 {
		return c, &models.DegenerateRangeError{Stage: "correlation", Field: feature}
	}

	r := stat.Correlation(values, y, nil)
	if math.IsNaN(r) {
		return c, &models.DegenerateRangeError{Stage: "correlation", Field: feature}
	}
	c.R = r
	c.PValue = pValue(r, n)
	c.Significant = c.PValue <= alpha
	return c, nil
}

func pValue(r float64, n int) float64 {
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return math.Min(1, 2*dist.CDF(-math.Abs(t)))
}

// CorrelationCheck correlates skewness and kurtosis of rows at or after
// since with the future-change indicator over horizon steps. The indicator
// is built from the full series before the period filter so rows near the
// period start still see their own future. Degenerate features are returned
// as warnings and count as not significant.
func CorrelationCheck(rows []models.AnalysisRow, changes []bool, since time.Time, horizon int, alpha float64) (models.CorrelationCheck, []error, error) {
	chk := models.CorrelationCheck{Since: since, Horizon: horizon, Alpha: alpha}
	if len(rows) != len(changes) {
		return chk, nil, fmt.Errorf("correlation check: %d rows vs %d change flags", len(rows), len(changes))
	}
	future := FutureChange(changes, horizon)

	var (
		skew, kurt []float64
		flags      []bool
	)
	for i, r := range rows {
		if r.Timestamp.Before(since) {
			continue
		}
		skew = append(skew, r.Skewness)
		kurt = append(kurt, r.Kurtosis)
		flags = append(flags, future[i])
	}

	var warnings []error
	chk.NoSignificantCorrelation = true
	for _, f := range []struct {
		name string
		x    []float64
	}{{"skewness", skew}, {"kurtosis", kurt}} {
		c, err := PointBiserial(f.name, f.x, flags, alpha)
		if err != nil {
			if !errors.Is(err, models.ErrDegenerateRange) {
				return chk, warnings, fmt.Errorf("correlation check: %w", err)
			}
			warnings = append(warnings, err)
		}
		if c.Significant {
			chk.NoSignificantCorrelation = false
		}
		chk.Results = append(chk.Results, c)
	}
	return chk, warnings, nil
}
