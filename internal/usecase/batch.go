package usecase

import (
	"context"
	"fmt"
	"time"

	"RegimeLab/internal/domain/models"
	domsvc "RegimeLab/internal/domain/service"
	applogger "RegimeLab/pkg/logger"
	"RegimeLab/pkg/queue"
	xutil "RegimeLab/pkg/util"
)

// RunJobType is the queue message type of a single-symbol run.
const RunJobType = "analysis.run"

// RunJob is the queued payload of one symbol run.
type RunJob struct {
	Symbol string    `json:"symbol"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
}

// AnalysisJob executes queued runs. Each run bypasses the report cache and
// refreshes it, so queued batches warm the API.
type AnalysisJob struct {
	runner domsvc.ExhaustionRunner
	log    *applogger.Logger
}

var _ queue.Job = (*AnalysisJob)(nil)

func NewAnalysisJob(runner domsvc.ExhaustionRunner, l *applogger.Logger) *AnalysisJob {
	if l == nil {
		l = applogger.Nop()
	}
	return &AnalysisJob{runner: runner, log: l}
}

func (j *AnalysisJob) Name() string { return "exhaustion-run" }
func (j *AnalysisJob) Type() string { return RunJobType }

func (j *AnalysisJob) Handle(ctx context.Context, payload interface{}) error {
	job, err := queue.ParsePayload[RunJob](payload)
	if err != nil {
		return fmt.Errorf("analysis job: %w", err)
	}
	rep, err := j.runner.Run(ctx, domsvc.RunParams{Symbol: job.Symbol, From: job.From, To: job.To, Fresh: true})
	if err != nil {
		return fmt.Errorf("analysis job %s: %w", job.Symbol, err)
	}
	fields := []applogger.Field{
		applogger.String("symbol", rep.Symbol),
		applogger.String("run_id", rep.RunID),
		applogger.Int("rows", len(rep.Rows)),
	}
	if rep.Current != nil {
		fields = append(fields, applogger.String("alert", string(rep.Current.Alert)))
	}
	j.log.Info("queued run finished", fields...)
	return nil
}

// EnqueueRuns publishes one RunJob per distinct symbol and returns the
// normalized symbols that were queued.
func EnqueueRuns(ctx context.Context, pub queue.Publisher, symbols []string, from, to time.Time) ([]string, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("enqueue runs: empty range %s..%s", from.Format(xutil.DateLayout), to.Format(xutil.DateLayout))
	}
	seen := make(map[string]bool, len(symbols))
	var queued []string
	for _, s := range symbols {
		s = xutil.NormalizeSymbol(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		if err := pub.PublishMessage(ctx, RunJobType, RunJob{Symbol: s, From: from, To: to}); err != nil {
			return queued, fmt.Errorf("enqueue %s: %w", s, err)
		}
		queued = append(queued, s)
	}
	if len(queued) == 0 {
		return nil, fmt.Errorf("enqueue runs: no symbols: %w", models.ErrInsufficientData)
	}
	return queued, nil
}
