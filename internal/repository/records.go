package repository

import (
	"strconv"
	"time"

	"RegimeLab/internal/domain/models"
)

// pointRecord is one row of the exhaustion_points table.
type pointRecord struct {
	RunID           string    `db:"run_id"`
	Symbol          string    `db:"symbol"`
	Timestamp       time.Time `db:"ts"`
	Close           float64   `db:"close"`
	Return          float64   `db:"return"`
	Skewness        float64   `db:"skewness"`
	Kurtosis        float64   `db:"kurtosis"`
	Range           float64   `db:"range"`
	CompositeRaw    float64   `db:"composite_raw"`
	CompositeScore  float64   `db:"composite_score"`
	Trend           int8      `db:"trend"`
	Age             int       `db:"age"`
	Multiplier      float64   `db:"multiplier"`
	ExhaustionRaw   float64   `db:"exhaustion_raw"`
	ExhaustionScore float64   `db:"exhaustion_score"`
	Level           string    `db:"level"`
}

// regimeRecord is one row of the regime_history table.
type regimeRecord struct {
	RunID          string     `db:"run_id"`
	Symbol         string     `db:"symbol"`
	Start          time.Time  `db:"start"`
	End            time.Time  `db:"end"`
	Open           bool       `db:"open"`
	Trend          int8       `db:"trend"`
	DurationDays   int        `db:"duration_days"`
	Points         int        `db:"points"`
	MeanSignal     float64    `db:"mean_signal"`
	AboveNormal    int        `db:"above_normal"`
	LeadDays       *int       `db:"lead_days"`
	LastExhaustion *time.Time `db:"last_exhaustion"`
}

var pointColumns = []string{
	"run_id", "symbol", "ts", "close", "return", "skewness", "kurtosis", "range",
	"composite_raw", "composite_score", "trend", "age", "multiplier",
	"exhaustion_raw", "exhaustion_score", "level",
}

var regimeColumns = []string{
	"run_id", "symbol", "start", "end", "open", "trend", "duration_days", "points",
	"mean_signal", "above_normal", "lead_days", "last_exhaustion",
}

func pointRecords(r *models.Report) []pointRecord {
	out := make([]pointRecord, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, pointRecord{
			RunID:           r.RunID,
			Symbol:          r.Symbol,
			Timestamp:       row.Timestamp,
			Close:           row.Close,
			Return:          row.Return,
			Skewness:        row.Skewness,
			Kurtosis:        row.Kurtosis,
			Range:           row.Range,
			CompositeRaw:    row.CompositeRaw,
			CompositeScore:  row.CompositeScore,
			Trend:           int8(row.Trend),
			Age:             row.Age,
			Multiplier:      row.Multiplier,
			ExhaustionRaw:   row.ExhaustionRaw,
			ExhaustionScore: row.ExhaustionScore,
			Level:           string(row.Level),
		})
	}
	return out
}

func regimeRecords(r *models.Report) []regimeRecord {
	out := make([]regimeRecord, 0, len(r.Intervals))
	for _, iv := range r.Intervals {
		rec := regimeRecord{
			RunID:        r.RunID,
			Symbol:       r.Symbol,
			Start:        iv.Start,
			End:          iv.End,
			Open:         iv.Open,
			Trend:        int8(iv.Trend),
			DurationDays: iv.DurationDays,
			Points:       iv.Points,
			MeanSignal:   iv.MeanSignal,
			AboveNormal:  iv.AboveNormal,
		}
		if iv.Final != nil {
			lead := iv.Final.LeadDays
			ts := iv.Final.Timestamp
			rec.LeadDays = &lead
			rec.LastExhaustion = &ts
		}
		out = append(out, rec)
	}
	return out
}

func (p pointRecord) args() []interface{} {
	return []interface{}{
		p.RunID, p.Symbol, p.Timestamp, p.Close, p.Return, p.Skewness, p.Kurtosis, p.Range,
		p.CompositeRaw, p.CompositeScore, p.Trend, p.Age, p.Multiplier,
		p.ExhaustionRaw, p.ExhaustionScore, p.Level,
	}
}

func (r regimeRecord) args() []interface{} {
	var lead, last interface{}
	if r.LeadDays != nil {
		lead = *r.LeadDays
	}
	if r.LastExhaustion != nil {
		last = *r.LastExhaustion
	}
	return []interface{}{
		r.RunID, r.Symbol, r.Start, r.End, r.Open, r.Trend, r.DurationDays, r.Points,
		r.MeanSignal, r.AboveNormal, lead, last,
	}
}

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// fmtTime writes midnight-UTC timestamps as plain dates.
func fmtTime(t time.Time) string {
	t = t.UTC()
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339)
}

func (p pointRecord) strings() []string {
	return []string{
		p.RunID, p.Symbol, fmtTime(p.Timestamp), fmtFloat(p.Close), fmtFloat(p.Return),
		fmtFloat(p.Skewness), fmtFloat(p.Kurtosis), fmtFloat(p.Range),
		fmtFloat(p.CompositeRaw), fmtFloat(p.CompositeScore), models.Trend(p.Trend).Title(),
		strconv.Itoa(p.Age), fmtFloat(p.Multiplier), fmtFloat(p.ExhaustionRaw),
		fmtFloat(p.ExhaustionScore), p.Level,
	}
}

func (r regimeRecord) strings() []string {
	lead, last := "", ""
	if r.LeadDays != nil {
		lead = strconv.Itoa(*r.LeadDays)
	}
	if r.LastExhaustion != nil {
		last = fmtTime(*r.LastExhaustion)
	}
	return []string{
		r.RunID, r.Symbol, fmtTime(r.Start), fmtTime(r.End),
		strconv.FormatBool(r.Open), models.Trend(r.Trend).Title(), strconv.Itoa(r.DurationDays),
		strconv.Itoa(r.Points), fmtFloat(r.MeanSignal), strconv.Itoa(r.AboveNormal), lead, last,
	}
}
