package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData means window or lookback requirements were not met.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDegenerateRange means a standard deviation or min-max span was zero.
	ErrDegenerateRange = errors.New("degenerate range")
	// ErrUndefinedRatio means a ratio had a zero denominator.
	ErrUndefinedRatio = errors.New("undefined ratio")
	// ErrExternalSource means price or regime data could not be obtained.
	ErrExternalSource = errors.New("external source failure")
)

// DegenerateRangeError names the stage and column that hit a zero spread.
// It is a warning: the stage substitutes its fallback value and continues.
type DegenerateRangeError struct {
	Stage string
	Field string
}

func (e *DegenerateRangeError) Error() string {
	return fmt.Sprintf("%s: %s has zero spread", e.Stage, e.Field)
}

func (e *DegenerateRangeError) Unwrap() error { return ErrDegenerateRange }
