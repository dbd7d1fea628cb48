package history

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"RegimeLab/internal/domain/models"
)

// Config holds the look-back and look-ahead horizons of the regime reports.
type Config struct {
	LookbackDays    int // window before a regime end searched for exhaustion
	LongRegimeDays  int
	TopN            int
	ForwardSteps    int // rows ahead for the forward return
	ChangeLookahead int // rows ahead searched for a trend change
}

func DefaultConfig() Config {
	return Config{LookbackDays: 30, LongRegimeDays: 100, TopN: 15, ForwardSteps: 30, ChangeLookahead: 60}
}

func days(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}

// Build partitions the row timeline at the flip timestamps into
// [start, flip1), [flip1, flip2), ... , [flipN, last] and summarises each
// span. The label of a span is taken from its first row. Flips outside the
// row range are ignored; a span that holds no rows is absorbed by its
// predecessor so the partition stays gap-free.
func Build(rows []models.AnalysisRow, flips []time.Time, cfg Config) []models.RegimeInterval {
	if len(rows) == 0 {
		return nil
	}
	first, last := rows[0].Timestamp, rows[len(rows)-1].Timestamp

	starts := []time.Time{first}
	for _, f := range flips {
		if f.After(starts[len(starts)-1]) && !f.After(last) {
			starts = append(starts, f)
		}
	}

	var out []models.RegimeInterval
	pos := 0
	for k, start := range starts {
		iv := models.RegimeInterval{Start: start}
		if k+1 < len(starts) {
			iv.End = starts[k+1]
		} else {
			iv.End, iv.Open = last, true
		}

		lo := pos
		for pos < len(rows) && iv.Contains(rows[pos].Timestamp) {
			pos++
		}
		span := rows[lo:pos]
		if len(span) == 0 {
			if n := len(out); n > 0 {
				out[n-1].End, out[n-1].Open = iv.End, iv.Open
			}
			continue
		}
		iv.Trend = span[0].Trend
		out = append(out, iv)
	}

	pos = 0
	for i := range out {
		lo := pos
		for pos < len(rows) && out[i].Contains(rows[pos].Timestamp) {
			pos++
		}
		summarise(&out[i], rows[lo:pos], cfg)
	}
	return out
}

func summarise(iv *models.RegimeInterval, span []models.AnalysisRow, cfg Config) {
	iv.Duration = iv.End.Sub(iv.Start)
	iv.DurationDays = days(iv.Start, iv.End)
	iv.Points = len(span)

	scores := make([]float64, len(span))
	for i, r := range span {
		scores[i] = r.ExhaustionScore
		if !r.Level.AboveNormal() {
			continue
		}
		iv.AboveNormal++
		off := days(iv.Start, r.Timestamp)
		if iv.FirstOffset == nil {
			f := off
			iv.FirstOffset = &f
		}
		l := off
		iv.LastOffset = &l
	}
	if len(scores) > 0 {
		iv.MeanSignal = stat.Mean(scores, nil)
	}
	if !iv.Open {
		iv.Final = finalExhaustion(iv, span, cfg.LookbackDays)
	}
}

// finalExhaustion finds the last above-Normal row in the final lookback
// days of a closed interval.
func finalExhaustion(iv *models.RegimeInterval, span []models.AnalysisRow, lookback int) *models.ExhaustionMark {
	from := iv.End.AddDate(0, 0, -lookback)
	var (
		mark    *models.ExhaustionMark
		maxSeen = math.Inf(-1)
	)
	for _, r := range span {
		if r.Timestamp.Before(from) {
			continue
		}
		maxSeen = math.Max(maxSeen, r.ExhaustionScore)
		if r.Level.AboveNormal() {
			mark = &models.ExhaustionMark{Timestamp: r.Timestamp, Score: r.ExhaustionScore}
		}
	}
	if mark == nil {
		return nil
	}
	mark.LeadDays = days(mark.Timestamp, iv.End)
	mark.MaxScore = maxSeen
	mark.Preceded = mark.LeadDays <= lookback
	return mark
}

// LongRegimes keeps intervals lasting more than minDays calendar days.
func LongRegimes(intervals []models.RegimeInterval, minDays int) []models.RegimeInterval {
	var out []models.RegimeInterval
	for _, iv := range intervals {
		if iv.DurationDays > minDays {
			out = append(out, iv)
		}
	}
	return out
}

// Find returns the interval containing ts, or nil.
func Find(intervals []models.RegimeInterval, ts time.Time) *models.RegimeInterval {
	for i := range intervals {
		if intervals[i].Contains(ts) {
			iv := intervals[i]
			return &iv
		}
	}
	return nil
}
