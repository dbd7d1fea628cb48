package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
	domsvc "RegimeLab/internal/domain/service"
)

type fakeRunner struct {
	params []domsvc.RunParams
	err    error
}

func (f *fakeRunner) Run(_ context.Context, p domsvc.RunParams) (*models.Report, error) {
	f.params = append(f.params, p)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Report{RunID: "r", Symbol: p.Symbol}, nil
}

type fakePublisher struct {
	msgs []RunJob
	err  error
}

func (f *fakePublisher) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	if msgType != RunJobType {
		return errors.New("unexpected type " + msgType)
	}
	f.msgs = append(f.msgs, payload.(RunJob))
	return nil
}

func TestAnalysisJob_Handle(t *testing.T) {
	r := &fakeRunner{}
	job := NewAnalysisJob(r, nil)
	raw, err := json.Marshal(RunJob{Symbol: "QQQ", From: day0, To: day0.AddDate(1, 0, 0)})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), json.RawMessage(raw)))
	require.Len(t, r.params, 1)
	assert.Equal(t, "QQQ", r.params[0].Symbol)
	assert.True(t, r.params[0].Fresh)
	assert.True(t, r.params[0].From.Equal(day0))
}

func TestAnalysisJob_HandleErrors(t *testing.T) {
	r := &fakeRunner{err: models.ErrExternalSource}
	job := NewAnalysisJob(r, nil)

	err := job.Handle(context.Background(), RunJob{Symbol: "SPY", From: day0, To: day0.AddDate(0, 1, 0)})
	assert.ErrorIs(t, err, models.ErrExternalSource)

	assert.Error(t, job.Handle(context.Background(), 7))
}

func TestEnqueueRuns(t *testing.T) {
	pub := &fakePublisher{}
	to := day0.AddDate(1, 0, 0)

	queued, err := EnqueueRuns(context.Background(), pub, []string{"spy", " QQQ", "SPY", ""}, day0, to)
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY", "QQQ"}, queued)
	require.Len(t, pub.msgs, 2)
	assert.Equal(t, to, pub.msgs[1].To)

	_, err = EnqueueRuns(context.Background(), pub, []string{" "}, day0, to)
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	_, err = EnqueueRuns(context.Background(), pub, []string{"SPY"}, to, day0)
	assert.Error(t, err)

	pub.err = errors.New("redis down")
	_, err = EnqueueRuns(context.Background(), pub, []string{"SPY"}, day0, to)
	assert.ErrorContains(t, err, "redis down")
}
