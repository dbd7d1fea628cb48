package service

import (
	"context"
	"time"

	"RegimeLab/internal/domain/models"
)

// RunParams selects the series of one pipeline run. From and To are inclusive.
type RunParams struct {
	Symbol string
	From   time.Time
	To     time.Time
	// Fresh skips the cached report and recomputes.
	Fresh bool
}

// ExhaustionRunner runs the full pipeline and returns its report.
type ExhaustionRunner interface {
	Run(ctx context.Context, p RunParams) (*models.Report, error)
}
