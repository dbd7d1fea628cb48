package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	domsvc "RegimeLab/internal/domain/service"
	"RegimeLab/internal/service/ratelimit"
	"RegimeLab/internal/usecase"
	xhttp "RegimeLab/pkg/http"
	applogger "RegimeLab/pkg/logger"
	"RegimeLab/pkg/queue"
)

// depther is implemented by queues that can report their backlog.
type depther interface {
	Depth(ctx context.Context) (queue.Depth, error)
}

// ExhaustionHandler serves reports of the exhaustion pipeline.
type ExhaustionHandler struct {
	runner  domsvc.ExhaustionRunner
	queue   queue.Publisher
	candles *usecase.CandlesUseCase
	limiter *ratelimit.Limiter
	log     *applogger.Logger
	now     func() time.Time
}

var _ xhttp.Handler = (*ExhaustionHandler)(nil)

// Option configures ExhaustionHandler.
type Option func(*ExhaustionHandler)

// WithQueue enables POST /api/runs.
func WithQueue(p queue.Publisher) Option {
	return func(h *ExhaustionHandler) { h.queue = p }
}

// WithCandles enables GET /api/candles.
func WithCandles(uc *usecase.CandlesUseCase) Option {
	return func(h *ExhaustionHandler) { h.candles = uc }
}

// WithRateLimiter limits /api requests per client address.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(h *ExhaustionHandler) { h.limiter = l }
}

func NewExhaustionHandler(runner domsvc.ExhaustionRunner, l *applogger.Logger, opts ...Option) *ExhaustionHandler {
	if l == nil {
		l = applogger.Nop()
	}
	h := &ExhaustionHandler{runner: runner, log: l, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ExhaustionHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	if h.limiter != nil {
		g.Use(h.rateLimit)
	}
	g.GET("/exhaustion", h.Exhaustion)
	g.GET("/regimes", h.Regimes)
	g.GET("/evaluation", h.Evaluation)
	if h.queue != nil {
		g.POST("/runs", h.EnqueueRuns)
	}
	if h.candles != nil {
		g.GET("/candles", h.Candles)
	}
}

func (h *ExhaustionHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ip := c.RealIP()
		if !h.limiter.Allow(ip) {
			h.log.Warn("rate limited", applogger.String("remote", ip), applogger.String("path", c.Path()))
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
		}
		return next(c)
	}
}

type healthResponse struct {
	Status string       `json:"status"`
	Time   time.Time    `json:"time"`
	Queue  *queue.Depth `json:"queue,omitempty"`
}

func (h *ExhaustionHandler) Health(c echo.Context) error {
	res := healthResponse{Status: "ok", Time: h.now().UTC()}
	if d, ok := h.queue.(depther); ok {
		depth, err := d.Depth(c.Request().Context())
		if err != nil {
			h.log.Warn("queue depth unavailable", applogger.Error(err))
			res.Status = "degraded"
		} else {
			res.Queue = &depth
		}
	}
	return xhttp.SuccessResponse(c, res)
}

// Exhaustion returns the full report. Rows are only included with rows=true.
func (h *ExhaustionHandler) Exhaustion(c echo.Context) error {
	req := &models.ExhaustionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rep, err := h.report(c, req.Symbol, req.From, req.To, req.Years, req.Fresh)
	if err != nil {
		return h.fail(c, "exhaustion", err)
	}
	out := *rep
	if !req.Rows {
		out.Rows = nil
	}
	return xhttp.SuccessResponse(c, &out)
}

type regimesResponse struct {
	RunID       string                  `json:"run_id"`
	Symbol      string                  `json:"symbol"`
	Thresholds  models.Thresholds       `json:"thresholds"`
	Intervals   []models.RegimeInterval `json:"intervals"`
	LongRegimes []models.RegimeInterval `json:"long_regimes"`
	Current     *models.CurrentState    `json:"current,omitempty"`
}

func (h *ExhaustionHandler) Regimes(c echo.Context) error {
	req := &models.RegimesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rep, err := h.report(c, req.Symbol, req.From, req.To, req.Years, false)
	if err != nil {
		return h.fail(c, "regimes", err)
	}
	res := regimesResponse{
		RunID:       rep.RunID,
		Symbol:      rep.Symbol,
		Thresholds:  rep.Thresholds,
		Intervals:   make([]models.RegimeInterval, 0, len(rep.Intervals)),
		LongRegimes: rep.LongRegimes,
		Current:     rep.Current,
	}
	for _, iv := range rep.Intervals {
		if iv.DurationDays >= req.MinDays {
			res.Intervals = append(res.Intervals, iv)
		}
	}
	return xhttp.SuccessResponse(c, res)
}

type evaluationResponse struct {
	RunID        string                     `json:"run_id"`
	Symbol       string                     `json:"symbol"`
	Evaluation   models.SignalEvaluation    `json:"evaluation"`
	Correlations *models.CorrelationCheck   `json:"correlations,omitempty"`
	Transitions  []models.TransitionProfile `json:"transitions"`
	Summaries    []models.TransitionSummary `json:"transition_summaries"`
	Top          []models.TopExhausted      `json:"top_exhausted"`
	Warnings     []string                   `json:"warnings,omitempty"`
}

func (h *ExhaustionHandler) Evaluation(c echo.Context) error {
	req := &models.EvaluationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rep, err := h.report(c, req.Symbol, req.From, req.To, req.Years, false)
	if err != nil {
		return h.fail(c, "evaluation", err)
	}
	ev := rep.Evaluation
	if !req.Outcomes {
		ev.Outcomes = nil
	}
	return xhttp.SuccessResponse(c, evaluationResponse{
		RunID:        rep.RunID,
		Symbol:       rep.Symbol,
		Evaluation:   ev,
		Correlations: rep.Correlations,
		Transitions:  rep.Transitions,
		Summaries:    rep.Summaries,
		Top:          rep.Top,
		Warnings:     rep.Warnings,
	})
}

type enqueueResponse struct {
	Queued []string  `json:"queued"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
}

func (h *ExhaustionHandler) EnqueueRuns(c echo.Context) error {
	req := &models.BatchRunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, ok := xhttp.ResolveRange(req.From, req.To, req.Years, h.now())
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid from/to range"))
	}
	queued, err := usecase.EnqueueRuns(c.Request().Context(), h.queue, req.Symbols, from, to)
	if err != nil {
		return h.fail(c, "runs", err)
	}
	h.log.Info("runs queued", applogger.Strings("symbols", queued))
	return xhttp.DataResponse(c, http.StatusAccepted, enqueueResponse{Queued: queued, From: from, To: to})
}

func (h *ExhaustionHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p := usecase.GetCandlesParams{
		Symbol:    req.Symbol,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Limit:     req.Limit,
		Latest:    req.Latest,
	}
	if req.Latest == 0 {
		from, to, ok := xhttp.ResolveRange(req.From, req.To, req.Years, h.now())
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid from/to range"))
		}
		p.From, p.To = from, to
	}
	res, err := h.candles.GetCandles(c.Request().Context(), p)
	if err != nil {
		return h.fail(c, "candles", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *ExhaustionHandler) report(c echo.Context, symbol, from, to string, years int, fresh bool) (*models.Report, error) {
	start, end, ok := xhttp.ResolveRange(from, to, years, h.now())
	if !ok {
		return nil, xhttp.BadRequestError("invalid from/to range")
	}
	rep, err := h.runner.Run(c.Request().Context(), domsvc.RunParams{Symbol: symbol, From: start, To: end, Fresh: fresh})
	if err != nil {
		return nil, err
	}
	if rep.Empty() {
		msg := "not enough history for " + rep.Symbol
		if len(rep.Warnings) > 0 {
			msg += ": " + strings.Join(rep.Warnings, "; ")
		}
		return nil, xhttp.UnprocessableError(msg).WithError(models.ErrInsufficientData)
	}
	return rep, nil
}

// fail maps pipeline errors onto API errors: missing history is 422, source
// or classifier failures are 502.
func (h *ExhaustionHandler) fail(c echo.Context, op string, err error) error {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
	case errors.Is(err, models.ErrExternalSource):
		appErr = xhttp.BadGatewayError("upstream data source failed").WithError(err)
	case errors.Is(err, models.ErrInsufficientData):
		appErr = xhttp.UnprocessableError(err.Error()).WithError(err)
	default:
		appErr = xhttp.InternalError("analysis failed").WithError(err)
	}
	if appErr.Status >= http.StatusInternalServerError {
		h.log.Error("api request failed", applogger.String("op", op), applogger.Int("status", appErr.Status), applogger.Error(err))
	} else {
		h.log.Debug("api request rejected", applogger.String("op", op), applogger.Int("status", appErr.Status), applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
