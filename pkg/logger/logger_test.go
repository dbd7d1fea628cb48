package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesTypedFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug")
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	l.Warn("degenerate range",
		String("stage", "composite"),
		Int("rows", 3),
		Float64("score", 42.5),
		Bool("open", true),
		Time("ts", ts),
		Error(errors.New("boom")),
	)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "warn", got["level"])
	assert.Equal(t, "composite", got["stage"])
	assert.Equal(t, 3.0, got["rows"])
	assert.Equal(t, 42.5, got["score"])
	assert.Equal(t, true, got["open"])
	assert.Equal(t, "boom", got["error"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	l.With(String("symbol", "SPY")).Error("shown")
	assert.Contains(t, buf.String(), `"symbol":"SPY"`)
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]DigestEntry
}

func (p *recordingPublisher) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, payload.([]DigestEntry))
	return nil
}

func TestDigestFoldsRepeats(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDigest(DigestConfig{FlushInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})

	l := Nop()
	l.AttachDigest(d)
	for i := 0; i < 3; i++ {
		l.Warn("degenerate range", String("field", "skewness"))
	}
	l.Error("source failed", String("symbol", "SPY"))
	l.Info("not collected")
	assert.Equal(t, 2, d.Len())

	l.DetachDigest()
	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	counts := map[string]int{}
	for _, e := range pub.batches[0] {
		counts[e.Message] = e.Count
	}
	assert.Equal(t, 3, counts["degenerate range"])
	assert.Equal(t, 1, counts["source failed"])
}
