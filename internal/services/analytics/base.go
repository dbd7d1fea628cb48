package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	xhttp "RegimeLab/pkg/http"
	applogger "RegimeLab/pkg/logger"

	"github.com/sony/gobreaker"
)

// HTTPServiceBase is the shared JSON-over-HTTP client of the analytics
// services, guarded by a circuit breaker.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
	cb      *gobreaker.CircuitBreaker
	log     *applogger.Logger
}

// BreakerConfig trips after FailureThreshold consecutive upstream failures
// and probes again after OpenTimeout.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// NewHTTPServiceBase builds an HTTP client with timeout and base URL.
func NewHTTPServiceBase(baseURL string, timeout time.Duration, bc BreakerConfig, l *applogger.Logger) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if bc.FailureThreshold == 0 {
		bc.FailureThreshold = 3
	}
	if l == nil {
		l = applogger.Nop()
	}
	st := gobreaker.Settings{
		Name:    bc.Name,
		Timeout: bc.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("circuit breaker state change",
				applogger.String("name", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
		IsSuccessful: upstreamHealthy,
	}
	return &HTTPServiceBase{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithUserAgent("regimelab-analytics")),
		cb:      gobreaker.NewCircuitBreaker(st),
		log:     l,
	}
}

// upstreamHealthy counts caller mistakes and cancellations as successes so
// only upstream trouble opens the breaker.
func upstreamHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return !se.Temporary()
	}
	return false
}

// State reports the breaker state.
func (b *HTTPServiceBase) State() gobreaker.State { return b.cb.State() }

// PostJSON posts the given payload to path under baseURL and decodes JSON into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("analytics http client not initialized")
	}
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.client.PostJSON(ctx, b.baseURL+path, payload, dest)
	})
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry retries transient failures up to attempts times. An open
// breaker or a non-retryable status ends the loop early.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}, attempts int) error {
	if attempts <= 1 {
		return b.PostJSON(ctx, path, payload, dest)
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = b.PostJSON(ctx, path, payload, dest)
		if err == nil || !retryable(err) {
			return err
		}
		b.log.Debug("analytics retry",
			applogger.String("path", path),
			applogger.Int("attempt", i),
			applogger.Error(err),
		)
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
