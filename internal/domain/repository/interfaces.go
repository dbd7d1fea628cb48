package repository

import (
	"context"
	"time"

	"RegimeLab/internal/domain/models"
)

// PriceSource returns an ordered close series for a symbol and date range.
// Failures are reported wrapped in models.ErrExternalSource.
type PriceSource interface {
	GetCloses(ctx context.Context, symbol string, from, to time.Time) ([]models.PricePoint, error)
}

// RegimeEventSource is an external classifier producing a regime id and a
// changed flag per timestamp.
type RegimeEventSource interface {
	Classify(ctx context.Context, symbol string, points []models.PricePoint) ([]models.RegimeEvent, error)
}

// ResultSink persists the two output tables of a run.
type ResultSink interface {
	SaveRun(ctx context.Context, r *models.Report) error
	Close() error
}

// AlertPublisher fans out non-normal current states.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, a models.Alert) error
	Close() error
}

type Metrics interface {
	RecordRun(symbol string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordExhaustion(symbol string, score float64)
	RecordWarning(stage string)
}
