package repository

import (
	"context"
	"errors"
	"fmt"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
)

// NamedSink tags a sink for error messages.
type NamedSink struct {
	Name string
	Sink domrepo.ResultSink
}

// MultiSink writes a run to every sink. A failing sink does not stop the
// others; the failures are joined.
type MultiSink struct {
	sinks []NamedSink
}

var _ domrepo.ResultSink = (*MultiSink)(nil)

func NewMultiSink(sinks ...NamedSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Len is the number of configured sinks.
func (m *MultiSink) Len() int { return len(m.sinks) }

func (m *MultiSink) SaveRun(ctx context.Context, r *models.Report) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Sink.SaveRun(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
