package repository

import (
	"context"
	"strings"
	"time"

	"RegimeLab/internal/domain/models"
)

// Timeframe is a bar resolution derivable from stored daily bars.
type Timeframe string

const (
	TF1d Timeframe = "1d"
	TF1w Timeframe = "1w" // Monday-anchored weeks aggregated from daily bars
)

// Valid reports whether bars can be served at tf.
func (tf Timeframe) Valid() bool { return tf == TF1d || tf == TF1w }

// NormalizeTimeframe accepts the API spellings (1d, d, daily, 1w, w, weekly)
// in any case. Anything else, including "", is daily.
func NormalizeTimeframe(s string) Timeframe {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1w", "w", "weekly":
		return TF1w
	default:
		return TF1d
	}
}

// CandleStore reads warehoused bars, oldest first.
type CandleStore interface {
	GetCandles(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Candle, error)
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
}
