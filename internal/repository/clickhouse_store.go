package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	pkgch "RegimeLab/pkg/clickhouse"
	applogger "RegimeLab/pkg/logger"
)

// CHPriceStore reads warehoused daily bars from ClickHouse. Weekly bars are
// aggregated in the query.
type CHPriceStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var (
	_ domrepo.CandleStore = (*CHPriceStore)(nil)
	_ domrepo.PriceSource = (*CHPriceStore)(nil)
)

func NewCHPriceStore(ch *pkgch.Client, table string) *CHPriceStore {
	return &CHPriceStore{db: ch.DB(), table: ch.Database() + "." + table}
}

// SetLogger injects a structured logger.
func (s *CHPriceStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPriceStore) selectFor(tf domrepo.Timeframe) (string, error) {
	switch tf {
	case domrepo.TF1d, "":
		return fmt.Sprintf(`
        SELECT bucket, symbol, open, high, low, close, volume
        FROM %s FINAL`, s.table), nil
	case domrepo.TF1w:
		return fmt.Sprintf(`
        SELECT toDateTime64(toStartOfWeek(bucket, 1), 3, 'UTC') AS week, symbol,
               argMin(open, bucket), max(high), min(low), argMax(close, bucket), sum(volume)
        FROM %s FINAL`, s.table), nil
	default:
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
}

func groupFor(tf domrepo.Timeframe) (string, string) {
	if tf == domrepo.TF1w {
		return "GROUP BY week, symbol", "week"
	}
	return "", "bucket"
}

func (s *CHPriceStore) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	start := time.Now()
	sel, err := s.selectFor(tf)
	if err != nil {
		return nil, err
	}
	group, order := groupFor(tf)
	q := fmt.Sprintf("%s\n        WHERE symbol = ? AND bucket >= ? AND bucket <= ?\n        %s\n        ORDER BY %s ASC", sel, group, order)

	out, err := s.query(ctx, q, symbol, from, to)
	if err != nil {
		s.logErr("clickhouse get_candles", symbol, tf, err)
		return nil, fmt.Errorf("get candles: %w", err)
	}
	s.logOK("clickhouse get_candles ok", symbol, tf, len(out), start)
	return out, nil
}

func (s *CHPriceStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	start := time.Now()
	sel, err := s.selectFor(tf)
	if err != nil {
		return nil, err
	}
	group, order := groupFor(tf)
	q := fmt.Sprintf("%s\n        WHERE symbol = ?\n        %s\n        ORDER BY %s DESC\n        LIMIT ?", sel, group, order)

	tmp, err := s.query(ctx, q, symbol, n)
	if err != nil {
		s.logErr("clickhouse latest_candles", symbol, tf, err)
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	s.logOK("clickhouse latest_candles ok", symbol, tf, len(tmp), start)
	return tmp, nil
}

// GetCloses implements PriceSource over daily bars.
func (s *CHPriceStore) GetCloses(ctx context.Context, symbol string, from, to time.Time) ([]models.PricePoint, error) {
	candles, err := s.GetCandles(ctx, symbol, from, to, domrepo.TF1d)
	if err != nil {
		return nil, fmt.Errorf("clickhouse prices %s: %w: %w", symbol, models.ErrExternalSource, err)
	}
	points := make([]models.PricePoint, 0, len(candles))
	for _, c := range candles {
		if c.Close > 0 {
			points = append(points, c.Point())
		}
	}
	return sortPoints(points), nil
}

func (s *CHPriceStore) query(ctx context.Context, q string, args ...interface{}) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 512)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Bucket = c.Bucket.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHPriceStore) logErr(op, symbol string, tf domrepo.Timeframe, err error) {
	if s.l == nil {
		return
	}
	s.l.Error(op+" error",
		applogger.String("table", s.table),
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Error(err),
	)
}

func (s *CHPriceStore) logOK(msg, symbol string, tf domrepo.Timeframe, n int, start time.Time) {
	if s.l == nil {
		return
	}
	s.l.Debug(msg,
		applogger.String("table", s.table),
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", n),
		applogger.Duration("duration_ms", time.Since(start)),
	)
}

// CHResultStore appends run output to exhaustion_points and regime_history.
type CHResultStore struct {
	db        *sql.DB
	database  string
	batchSize int
	l         *applogger.Logger
}

var _ domrepo.ResultSink = (*CHResultStore)(nil)

func NewCHResultStore(ch *pkgch.Client, batchSize int) *CHResultStore {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &CHResultStore{db: ch.DB(), database: ch.Database(), batchSize: batchSize}
}

// SetLogger injects a structured logger.
func (s *CHResultStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHResultStore) SaveRun(ctx context.Context, r *models.Report) error {
	if r == nil {
		return nil
	}
	start := time.Now()

	points := pointRecords(r)
	pointArgs := make([][]interface{}, len(points))
	for i, p := range points {
		pointArgs[i] = p.args()
	}
	if err := s.insert(ctx, "exhaustion_points", pointColumns, pointArgs); err != nil {
		return err
	}

	regimes := regimeRecords(r)
	regimeArgs := make([][]interface{}, len(regimes))
	for i, rr := range regimes {
		regimeArgs[i] = rr.args()
	}
	if err := s.insert(ctx, "regime_history", regimeColumns, regimeArgs); err != nil {
		return err
	}

	if s.l != nil {
		s.l.Info("clickhouse results written",
			applogger.String("run_id", r.RunID),
			applogger.String("symbol", r.Symbol),
			applogger.Int("points", len(points)),
			applogger.Int("regimes", len(regimes)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

// insert writes rows as multi-row VALUES statements of at most batchSize rows.
func (s *CHResultStore) insert(ctx context.Context, table string, cols []string, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	prefix := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES ", s.database, table, strings.Join(cols, ", "))

	for lo := 0; lo < len(rows); lo += s.batchSize {
		hi := min(lo+s.batchSize, len(rows))
		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*len(cols))
		for _, row := range rows[lo:hi] {
			values = append(values, placeholder)
			args = append(args, row...)
		}
		if _, err := s.db.ExecContext(ctx, prefix+strings.Join(values, ","), args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse insert error",
					applogger.String("table", table),
					applogger.Int("rows", hi-lo),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

func (s *CHResultStore) Close() error { return nil }
