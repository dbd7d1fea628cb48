package regime

import (
	"fmt"
	"time"

	"github.com/markcheno/go-talib"

	"RegimeLab/internal/domain/models"
)

// SegmenterConfig holds the moving-average windows.
type SegmenterConfig struct {
	ShortWindow int
	LongWindow  int
}

func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{ShortWindow: 20, LongWindow: 50}
}

func (c SegmenterConfig) validate() error {
	if c.ShortWindow < 1 || c.LongWindow <= c.ShortWindow {
		return fmt.Errorf("segmenter: windows short=%d long=%d", c.ShortWindow, c.LongWindow)
	}
	return nil
}

// Segmentation is the labeled part of a series.
type Segmentation struct {
	States []models.RegimeState
	Flips  []time.Time // timestamps where the label changed
}

// Segment labels every point once both moving averages are populated:
// up when short > long, down otherwise (ties go down). The first labeled
// point has age 0 and is not a flip; a flip resets age to 0 at the flip
// itself. Points before the long window fills are not labeled.
func Segment(points []models.PricePoint, cfg SegmenterConfig) (Segmentation, error) {
	if err := cfg.validate(); err != nil {
		return Segmentation{}, err
	}
	if len(points) < cfg.LongWindow {
		return Segmentation{}, nil
	}

	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}
	short := talib.Sma(closes, cfg.ShortWindow)
	long := talib.Sma(closes, cfg.LongWindow)

	first := cfg.LongWindow - 1
	seg := Segmentation{States: make([]models.RegimeState, 0, len(points)-first)}

	var (
		label models.Trend
		age   int
	)
	for i := first; i < len(points); i++ {
		cur := models.TrendDown
		if short[i] > long[i] {
			cur = models.TrendUp
		}
		flip := i > first && cur != label
		switch {
		case i == first, flip:
			age = 0
		default:
			age++
		}
		label = cur

		seg.States = append(seg.States, models.RegimeState{
			Timestamp: points[i].Timestamp,
			Trend:     cur,
			Age:       age,
			Flip:      flip,
			ShortMA:   short[i],
			LongMA:    long[i],
		})
		if flip {
			seg.Flips = append(seg.Flips, points[i].Timestamp)
		}
	}
	return seg, nil
}

// Changes is the per-state change indicator (true at flips).
func Changes(states []models.RegimeState) []bool {
	out := make([]bool, len(states))
	for i, s := range states {
		out[i] = s.Flip
	}
	return out
}

// Events converts states into the classifier event shape so both change
// sources can be evaluated the same way. RegimeID is 1 for up, 0 for down.
func Events(states []models.RegimeState) []models.RegimeEvent {
	out := make([]models.RegimeEvent, len(states))
	for i, s := range states {
		id := 0
		if s.Trend == models.TrendUp {
			id = 1
		}
		out[i] = models.RegimeEvent{Timestamp: s.Timestamp, RegimeID: id, Changed: s.Flip}
	}
	return out
}

// MaxAge is the largest age in the series, 0 when empty.
func MaxAge(states []models.RegimeState) int {
	m := 0
	for _, s := range states {
		if s.Age > m {
			m = s.Age
		}
	}
	return m
}
