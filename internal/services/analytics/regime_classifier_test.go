package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"RegimeLab/internal/domain/models"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func points(n int) []models.PricePoint {
	out := make([]models.PricePoint, n)
	for i := range out {
		out[i] = models.PricePoint{Timestamp: time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC), Close: 100 + float64(i)}
	}
	return out
}

func newBase(url string, threshold uint32) *HTTPServiceBase {
	return NewHTTPServiceBase(url, time.Second, BreakerConfig{Name: "test", FailureThreshold: threshold, OpenTimeout: time.Minute}, nil)
}

func TestClassify_DerivesChangedFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/regime/classify", r.URL.Path)
		var req classifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "SPY", req.Symbol)
		require.Len(t, req.Closes, 3)

		ids := []int{0, 0, 1}
		resp := classifyResponse{}
		for i, ts := range req.Timestamps {
			resp.Events = append(resp.Events, classifyEvent{Timestamp: ts, RegimeID: ids[i]})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewHTTPRegimeClassifier(newBase(srv.URL, 3))
	events, err := c.Classify(context.Background(), "SPY", points(3))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.False(t, events[0].Changed)
	assert.False(t, events[1].Changed)
	assert.True(t, events[2].Changed)
	assert.Equal(t, 1, events[2].RegimeID)
}

func TestClassify_ExplicitChangedWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"events":[{"ts":"2024-01-01T00:00:00Z","regime_id":2,"changed":true}]}`))
	}))
	defer srv.Close()

	events, err := NewHTTPRegimeClassifier(newBase(srv.URL, 3)).Classify(context.Background(), "SPY", points(1))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Changed)
}

func TestClassify_RejectsUnorderedEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"events":[{"ts":"2024-01-02T00:00:00Z","regime_id":0},{"ts":"2024-01-01T00:00:00Z","regime_id":1}]}`))
	}))
	defer srv.Close()

	_, err := NewHTTPRegimeClassifier(newBase(srv.URL, 3)).Classify(context.Background(), "SPY", points(2))
	assert.ErrorIs(t, err, models.ErrExternalSource)
}

func TestClassify_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	base := newBase(srv.URL, 2)
	_, err := NewHTTPRegimeClassifier(base).Classify(context.Background(), "SPY", points(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrExternalSource)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, gobreaker.StateOpen, base.State())
}

func TestClassify_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	base := newBase(srv.URL, 1)
	_, err := NewHTTPRegimeClassifier(base).Classify(context.Background(), "SPY", points(2))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, gobreaker.StateClosed, base.State())
}

func TestClassify_EmptyInput(t *testing.T) {
	events, err := NewHTTPRegimeClassifier(newBase("http://unused", 1)).Classify(context.Background(), "SPY", nil)
	require.NoError(t, err)
	assert.Nil(t, events)
}
