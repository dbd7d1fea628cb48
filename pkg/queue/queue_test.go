package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runPayload struct {
	Symbol string `json:"symbol"`
}

type stubJob struct {
	err  error
	seen []string
}

func (j *stubJob) Name() string { return "stub" }
func (j *stubJob) Type() string { return "analysis.run" }

func (j *stubJob) Handle(_ context.Context, payload interface{}) error {
	p, err := ParsePayload[runPayload](payload)
	if err != nil {
		return err
	}
	j.seen = append(j.seen, p.Symbol)
	return j.err
}

var t0 = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

func newTestQueue(client *redis.Client, mode Mode, cfg Config) *RedisQueue {
	q := NewRedisQueue(nil, cfg, client, mode, WithKeyPrefix("t"))
	q.now = func() time.Time { return t0 }
	q.newID = func() string { return "id-1" }
	return q
}

func encode(t *testing.T, m Message) string {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return string(b)
}

func TestEnqueue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := newTestQueue(db, ModeProducerOnly, Config{})
	ctx := context.Background()

	require.Error(t, q.Enqueue(ctx, "analysis.run", runPayload{Symbol: "SPY"}), "not started")

	mock.ExpectPing().SetVal("PONG")
	require.NoError(t, q.Start(ctx))
	assert.Error(t, q.Start(ctx), "already running")

	want := `{"id":"id-1","type":"analysis.run","payload":{"symbol":"SPY"},"attempts":0,"ts":"2025-01-02T00:00:00Z"}`
	mock.ExpectLPush("t:messages", want).SetVal(1)
	require.NoError(t, q.PublishMessage(ctx, "analysis.run", runPayload{Symbol: "SPY"}))
	require.NoError(t, mock.ExpectationsWereMet())
	require.NoError(t, q.Stop(ctx))
}

func TestEnqueue_UnknownTypeInConsumerMode(t *testing.T) {
	db, _ := redismock.NewClientMock()
	q := newTestQueue(db, ModeProducerConsumer, Config{})
	q.isRunning = true

	err := q.Enqueue(context.Background(), "nope", nil)
	assert.ErrorContains(t, err, "no job registered")
}

func TestStart_PingFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := newTestQueue(db, ModeProducerOnly, Config{})
	mock.ExpectPing().SetErr(errors.New("refused"))
	assert.ErrorContains(t, q.Start(context.Background()), "redis ping")
}

func TestProcess_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := newTestQueue(db, ModeConsumerOnly, Config{})
	job := &stubJob{}
	q.RegisterJobs(job)

	q.process(Message{ID: "m", Type: "analysis.run", Payload: json.RawMessage(`{"symbol":"QQQ"}`)})
	assert.Equal(t, []string{"QQQ"}, job.seen)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_FailureSchedulesRetry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := newTestQueue(db, ModeConsumerOnly, Config{RetryLimit: 1, RetryDelay: time.Minute})
	q.RegisterJob(&stubJob{err: errors.New("boom")})

	msg := Message{ID: "m", Type: "analysis.run", Payload: json.RawMessage(`{"symbol":"SPY"}`), Timestamp: t0}
	retried := msg
	retried.Attempts = 1
	mock.ExpectZAdd("t:retry", redis.Z{
		Score:  float64(t0.Add(time.Minute).Unix()),
		Member: encode(t, retried),
	}).SetVal(1)

	q.process(msg)
	require.NoError(t, mock.ExpectationsWereMet())

	// out of retries: dead-letter
	mock.ExpectLPush("t:dlq", encode(t, retried)).SetVal(1)
	q.process(retried)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_UnknownTypeGoesToDeadLetter(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := newTestQueue(db, ModeConsumerOnly, Config{})
	msg := Message{ID: "m", Type: "other", Payload: json.RawMessage(`{}`), Timestamp: t0}
	mock.ExpectLPush("t:dlq", encode(t, msg)).SetVal(1)

	q.process(msg)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterJob_ProducerOnlyIgnored(t *testing.T) {
	db, _ := redismock.NewClientMock()
	q := newTestQueue(db, ModeProducerOnly, Config{})
	q.RegisterJob(&stubJob{})
	assert.Empty(t, q.jobs)
}

func TestDepth(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := newTestQueue(db, ModeProducerOnly, Config{})
	mock.ExpectLLen("t:messages").SetVal(3)
	mock.ExpectZCard("t:retry").SetVal(1)
	mock.ExpectLLen("t:dlq").SetVal(0)

	d, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Depth{Pending: 3, Retrying: 1}, d)
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload[runPayload](json.RawMessage(`{"symbol":"IWM"}`))
	require.NoError(t, err)
	assert.Equal(t, "IWM", p.Symbol)

	p, err = ParsePayload[runPayload](map[string]interface{}{"symbol": "DIA"})
	require.NoError(t, err)
	assert.Equal(t, "DIA", p.Symbol)

	p, err = ParsePayload[runPayload](runPayload{Symbol: "SPY"})
	require.NoError(t, err)
	assert.Equal(t, "SPY", p.Symbol)

	_, err = ParsePayload[runPayload](42)
	assert.Error(t, err)
}
