package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	domsvc "RegimeLab/internal/domain/service"
	"RegimeLab/internal/services/evaluation"
	"RegimeLab/internal/services/fatigue"
	"RegimeLab/internal/services/features"
	"RegimeLab/internal/services/history"
	"RegimeLab/internal/services/regime"
	"RegimeLab/internal/services/scoring"
	"RegimeLab/pkg/cache"
	"RegimeLab/pkg/config"
	applogger "RegimeLab/pkg/logger"
	xutil "RegimeLab/pkg/util"
)

// ExhaustionUseCase runs the regime-exhaustion pipeline for one symbol:
// fetch closes, extract features, score, segment, amplify, build the regime
// history and evaluate the configured entry rule. Results go to the sink and
// non-normal current states to the alert publisher.
type ExhaustionUseCase struct {
	source     domrepo.PriceSource
	classifier domrepo.RegimeEventSource
	sink       domrepo.ResultSink
	alerts     domrepo.AlertPublisher
	cache      cache.Service
	cacheTTL   time.Duration
	metrics    domrepo.Metrics
	cfg        config.Analysis
	log        *applogger.Logger

	now   func() time.Time
	newID func() string
}

var _ domsvc.ExhaustionRunner = (*ExhaustionUseCase)(nil)

// NewExhaustionUseCase wires the pipeline. classifier, sink, alerts, cache and
// metrics are optional and may be nil.
func NewExhaustionUseCase(
	source domrepo.PriceSource,
	classifier domrepo.RegimeEventSource,
	sink domrepo.ResultSink,
	alerts domrepo.AlertPublisher,
	c cache.Service,
	cacheTTL time.Duration,
	metrics domrepo.Metrics,
	cfg config.Analysis,
	l *applogger.Logger,
) *ExhaustionUseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &ExhaustionUseCase{
		source:     source,
		classifier: classifier,
		sink:       sink,
		alerts:     alerts,
		cache:      c,
		cacheTTL:   cacheTTL,
		metrics:    metrics,
		cfg:        cfg,
		log:        l,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
}

// Run returns the report for p, from the cache unless p.Fresh is set.
func (uc *ExhaustionUseCase) Run(ctx context.Context, p domsvc.RunParams) (*models.Report, error) {
	p.Symbol = xutil.NormalizeSymbol(p.Symbol)
	if p.Symbol == "" {
		return nil, errors.New("run: symbol is required")
	}
	if !p.From.Before(p.To) {
		return nil, fmt.Errorf("run %s: empty range %s..%s", p.Symbol, p.From.Format(xutil.DateLayout), p.To.Format(xutil.DateLayout))
	}

	start := time.Now()
	defer func() { uc.metrics.RecordLatency("run", time.Since(start).Seconds()) }()

	if uc.cache == nil {
		return uc.run(ctx, p)
	}

	key := uc.cacheKey(p)
	if p.Fresh {
		rep, err := uc.run(ctx, p)
		if err != nil {
			return nil, err
		}
		if err := uc.cache.Set(ctx, key, rep, uc.cacheTTL); err != nil {
			uc.log.Warn("report cache write failed", applogger.String("key", key), applogger.Error(err))
		}
		return rep, nil
	}

	rep, hit, err := cache.GetOrLoad(ctx, uc.cache, key, uc.cacheTTL, func(ctx context.Context) (*models.Report, error) {
		return uc.run(ctx, p)
	})
	var storeErr *cache.StoreError
	if errors.As(err, &storeErr) {
		uc.log.Warn("report cache write failed", applogger.String("key", key), applogger.Error(err))
		err = nil
	}
	if err != nil {
		return nil, err
	}
	if hit {
		uc.log.Debug("report cache hit", applogger.String("key", key))
	}
	return rep, nil
}

// cacheKey is day-granular so that default "up to now" ranges share a key
// within the TTL.
func (uc *ExhaustionUseCase) cacheKey(p domsvc.RunParams) string {
	return cache.Key("report",
		p.Symbol,
		p.From.UTC().Format(xutil.DateLayout),
		p.To.UTC().Format(xutil.DateLayout),
		cache.HashKey(fmt.Sprintf("%+v", uc.cfg)),
	)
}

func (uc *ExhaustionUseCase) run(ctx context.Context, p domsvc.RunParams) (*models.Report, error) {
	runID := uc.newID()
	log := uc.log.With(applogger.String("run_id", runID), applogger.String("symbol", p.Symbol))
	uc.metrics.RecordRun(p.Symbol)

	fetchStart := time.Now()
	points, err := uc.source.GetCloses(ctx, p.Symbol, p.From, p.To)
	uc.metrics.RecordLatency("fetch", time.Since(fetchStart).Seconds())
	if err != nil {
		uc.metrics.RecordError("source")
		log.Error("price fetch failed", applogger.Error(err))
		return nil, fmt.Errorf("run %s: %w", p.Symbol, err)
	}
	log.Debug("closes fetched", applogger.Int("points", len(points)))

	rep := &models.Report{
		RunID:       runID,
		Symbol:      p.Symbol,
		From:        p.From,
		To:          p.To,
		GeneratedAt: uc.now().UTC(),
	}
	if err := uc.analyze(ctx, rep, points, log); err != nil {
		uc.metrics.RecordError("analysis")
		log.Error("analysis failed", applogger.Error(err))
		return nil, fmt.Errorf("run %s: %w", p.Symbol, err)
	}

	uc.persist(ctx, rep, log)
	uc.alert(ctx, rep, log)

	fields := []applogger.Field{
		applogger.Int("rows", len(rep.Rows)),
		applogger.Int("intervals", len(rep.Intervals)),
		applogger.Int("signals", rep.Evaluation.TotalSignals),
		applogger.Int("hits", rep.Evaluation.Hits),
		applogger.Int("warnings", len(rep.Warnings)),
	}
	if rep.Current != nil {
		fields = append(fields,
			applogger.Float64("score", rep.Current.Score),
			applogger.String("level", string(rep.Current.Level)),
			applogger.String("alert", string(rep.Current.Alert)),
		)
	}
	log.Info("run complete", fields...)
	return rep, nil
}

func (uc *ExhaustionUseCase) analyze(ctx context.Context, rep *models.Report, points []models.PricePoint, log *applogger.Logger) error {
	cfg := uc.cfg

	vectors := features.Extract(points, features.ExtractorConfig{
		Window:          cfg.Features.Window,
		MinObservations: cfg.Features.MinObservations,
	})
	if len(vectors) == 0 {
		uc.warn(rep, log, "features", fmt.Errorf("features: %d closes for window %d: %w", len(points), cfg.Features.Window, models.ErrInsufficientData))
		return nil
	}

	weights := scoring.Weights{
		Return:   cfg.Weights.Return,
		Skewness: cfg.Weights.Skewness,
		Kurtosis: cfg.Weights.Kurtosis,
		Range:    cfg.Weights.Range,
	}
	batch, err := scoring.Score(vectors, weights)
	if err != nil {
		return err
	}
	uc.warnAll(rep, log, "composite", batch.Warnings)

	if cfg.Causal.Enabled {
		causal, err := scoring.ScoreCausal(vectors, weights, scoring.CausalConfig{
			ReferenceWindow: cfg.Causal.ReferenceWindow,
			MinReference:    cfg.Causal.MinReference,
		})
		if err != nil {
			return err
		}
		rep.Causal = causal.Scores
		uc.warnAll(rep, log, "causal", causal.Warnings)
	}

	seg, err := regime.Segment(points, regime.SegmenterConfig{
		ShortWindow: cfg.Regime.ShortWindow,
		LongWindow:  cfg.Regime.LongWindow,
	})
	if err != nil {
		return err
	}
	if len(seg.States) == 0 {
		uc.warn(rep, log, "regime", fmt.Errorf("regime: %d closes for long window %d: %w", len(points), cfg.Regime.LongWindow, models.ErrInsufficientData))
		return nil
	}

	amp, err := fatigue.Amplify(batch.Scores, seg.States, fatigue.Config{
		Scale:            cfg.Fatigue.Scale,
		HighQuantile:     cfg.Fatigue.HighQuantile,
		VeryHighQuantile: cfg.Fatigue.VeryHighQuantile,
	})
	if err != nil {
		return err
	}
	uc.warnAll(rep, log, "fatigue", amp.Warnings)
	rep.Thresholds = amp.Thresholds

	rows := history.Join(vectors, batch.Scores, amp.Signals, seg.States)
	if len(rows) == 0 {
		uc.warn(rep, log, "history", fmt.Errorf("history: no timestamp has both features and a regime label: %w", models.ErrInsufficientData))
		return nil
	}
	rep.Rows = rows

	hcfg := history.Config{
		LookbackDays:    cfg.History.LookbackDays,
		LongRegimeDays:  cfg.History.LongRegimeDays,
		TopN:            cfg.History.TopN,
		ForwardSteps:    cfg.History.ForwardSteps,
		ChangeLookahead: cfg.History.ChangeLookahead,
	}
	rep.Intervals = history.Build(rows, seg.Flips, hcfg)

	changes, regimes, err := uc.changes(ctx, rep.Symbol, points, rows, log)
	if err != nil {
		return err
	}

	ev := cfg.Evaluation
	entries := evaluation.Entries(rows, uc.rule())
	rep.Evaluation, err = evaluation.Evaluate(entries, changes, evaluation.Dates(rows), ev.Horizon)
	if err != nil {
		return err
	}

	chk, warnings, err := evaluation.CorrelationCheck(rows, changes, cfg.CorrelationSince(), ev.Horizon, ev.Alpha)
	switch {
	case errors.Is(err, models.ErrInsufficientData):
		uc.warn(rep, log, "correlation", err)
	case err != nil:
		return err
	default:
		uc.warnAll(rep, log, "correlation", warnings)
		rep.Correlations = &chk
	}

	rep.Transitions = evaluation.PreChangeProfiles(rows, changes, regimes, ev.ProfileWindow)
	rep.Summaries = evaluation.Summaries(rep.Transitions)

	rep.Top = history.TopExhausted(rows, rep.Intervals, hcfg)
	rep.LongRegimes = history.LongRegimes(rep.Intervals, hcfg.LongRegimeDays)
	rep.Current = history.Current(rows, rep.Intervals, rep.Thresholds, hcfg)
	if rep.Current != nil {
		uc.metrics.RecordExhaustion(rep.Symbol, rep.Current.Score)
	}
	return nil
}

// changes returns the per-row change flags and regime ids, from the external
// classifier when configured, otherwise from the moving-average flips.
func (uc *ExhaustionUseCase) changes(ctx context.Context, symbol string, points []models.PricePoint, rows []models.AnalysisRow, log *applogger.Logger) ([]bool, []int, error) {
	if uc.cfg.Evaluation.ChangeSource != "classifier" || uc.classifier == nil {
		changes, regimes := evaluation.ChangesFromRows(rows)
		return changes, regimes, nil
	}

	start := time.Now()
	events, err := uc.classifier.Classify(ctx, symbol, points)
	uc.metrics.RecordLatency("classify", time.Since(start).Seconds())
	if err != nil {
		uc.metrics.RecordError("classifier")
		return nil, nil, fmt.Errorf("classify: %w", err)
	}
	log.Debug("regime events received", applogger.Int("events", len(events)))
	changes, regimes := evaluation.ChangesFromEvents(rows, events)
	return changes, regimes, nil
}

func (uc *ExhaustionUseCase) rule() evaluation.Rule {
	ev := uc.cfg.Evaluation
	if ev.Rule == "threshold" {
		return evaluation.ThresholdRule{MinScore: ev.Threshold.MinScore, MinAge: ev.Threshold.MinAge}
	}
	trend, ok := models.ParseTrend(ev.Band.Trend)
	if !ok {
		trend = models.TrendUp
	}
	return evaluation.BandRule{
		SkewMin: ev.Band.SkewMin,
		SkewMax: ev.Band.SkewMax,
		KurtMin: ev.Band.KurtMin,
		KurtMax: ev.Band.KurtMax,
		Trend:   trend,
		MinAge:  ev.Band.MinAge,
	}
}

func (uc *ExhaustionUseCase) persist(ctx context.Context, rep *models.Report, log *applogger.Logger) {
	if uc.sink == nil || rep.Empty() {
		return
	}
	start := time.Now()
	err := uc.sink.SaveRun(ctx, rep)
	uc.metrics.RecordLatency("save", time.Since(start).Seconds())
	if err != nil {
		uc.metrics.RecordError("sink")
		log.Error("failed to save run", applogger.Error(err))
	}
}

func (uc *ExhaustionUseCase) alert(ctx context.Context, rep *models.Report, log *applogger.Logger) {
	cur := rep.Current
	if uc.alerts == nil || cur == nil || cur.Alert == models.AlertNormal {
		return
	}
	a := models.Alert{
		RunID:     rep.RunID,
		Symbol:    rep.Symbol,
		Timestamp: cur.Timestamp,
		Score:     cur.Score,
		Level:     cur.Level,
		Alert:     cur.Alert,
		Trend:     cur.Trend,
		Age:       cur.Age,
	}
	if cur.Regime != nil {
		a.RegimeDays = cur.Regime.DurationDays
	}
	if err := uc.alerts.PublishAlert(ctx, a); err != nil {
		uc.metrics.RecordError("alert")
		log.Error("failed to publish alert", applogger.Error(err))
		return
	}
	log.Info("alert published", applogger.String("alert", string(a.Alert)), applogger.Float64("score", a.Score))
}

func (uc *ExhaustionUseCase) warnAll(rep *models.Report, log *applogger.Logger, stage string, errs []error) {
	for _, err := range errs {
		uc.warn(rep, log, stage, err)
	}
}

// warn records a non-fatal condition on the report. Degenerate ranges carry
// their own stage name.
func (uc *ExhaustionUseCase) warn(rep *models.Report, log *applogger.Logger, stage string, err error) {
	var dr *models.DegenerateRangeError
	if errors.As(err, &dr) {
		stage = dr.Stage
	}
	rep.Warnings = append(rep.Warnings, err.Error())
	uc.metrics.RecordWarning(stage)
	log.Warn("pipeline warning", applogger.String("stage", stage), applogger.Error(err))
}

type nopMetrics struct{}

func (nopMetrics) RecordRun(string)                 {}
func (nopMetrics) RecordError(string)               {}
func (nopMetrics) RecordLatency(string, float64)    {}
func (nopMetrics) RecordExhaustion(string, float64) {}
func (nopMetrics) RecordWarning(string)             {}
