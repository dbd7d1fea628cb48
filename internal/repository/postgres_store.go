package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	applogger "RegimeLab/pkg/logger"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PGSchema is the DDL of the relational sink.
var PGSchema = []string{
	`CREATE TABLE IF NOT EXISTS regime_runs (
	run_id          UUID PRIMARY KEY,
	symbol          TEXT NOT NULL,
	range_from      TIMESTAMPTZ NOT NULL,
	range_to        TIMESTAMPTZ NOT NULL,
	generated_at    TIMESTAMPTZ NOT NULL,
	rows            INTEGER NOT NULL,
	high_threshold  DOUBLE PRECISION NOT NULL,
	very_high       DOUBLE PRECISION NOT NULL,
	total_signals   INTEGER NOT NULL,
	hits            INTEGER NOT NULL,
	edge_ratio      DOUBLE PRECISION,
	current_alert   TEXT
)`,
	`CREATE TABLE IF NOT EXISTS exhaustion_points (
	run_id           UUID NOT NULL REFERENCES regime_runs(run_id) ON DELETE CASCADE,
	symbol           TEXT NOT NULL,
	ts               TIMESTAMPTZ NOT NULL,
	close            DOUBLE PRECISION NOT NULL,
	"return"         DOUBLE PRECISION NOT NULL,
	skewness         DOUBLE PRECISION NOT NULL,
	kurtosis         DOUBLE PRECISION NOT NULL,
	"range"          DOUBLE PRECISION NOT NULL,
	composite_raw    DOUBLE PRECISION NOT NULL,
	composite_score  DOUBLE PRECISION NOT NULL,
	trend            SMALLINT NOT NULL,
	age              INTEGER NOT NULL,
	multiplier       DOUBLE PRECISION NOT NULL,
	exhaustion_raw   DOUBLE PRECISION NOT NULL,
	exhaustion_score DOUBLE PRECISION NOT NULL,
	level            TEXT NOT NULL,
	PRIMARY KEY (run_id, ts)
)`,
	`CREATE TABLE IF NOT EXISTS regime_history (
	run_id          UUID NOT NULL REFERENCES regime_runs(run_id) ON DELETE CASCADE,
	symbol          TEXT NOT NULL,
	start           TIMESTAMPTZ NOT NULL,
	"end"           TIMESTAMPTZ NOT NULL,
	open            BOOLEAN NOT NULL,
	trend           SMALLINT NOT NULL,
	duration_days   INTEGER NOT NULL,
	points          INTEGER NOT NULL,
	mean_signal     DOUBLE PRECISION NOT NULL,
	above_normal    INTEGER NOT NULL,
	lead_days       INTEGER,
	last_exhaustion TIMESTAMPTZ,
	PRIMARY KEY (run_id, start)
)`,
}

type runRecord struct {
	RunID        string    `db:"run_id"`
	Symbol       string    `db:"symbol"`
	From         time.Time `db:"range_from"`
	To           time.Time `db:"range_to"`
	GeneratedAt  time.Time `db:"generated_at"`
	Rows         int       `db:"rows"`
	High         float64   `db:"high_threshold"`
	VeryHigh     float64   `db:"very_high"`
	TotalSignals int       `db:"total_signals"`
	Hits         int       `db:"hits"`
	EdgeRatio    *float64  `db:"edge_ratio"`
	CurrentAlert *string   `db:"current_alert"`
}

func newRunRecord(r *models.Report) runRecord {
	rec := runRecord{
		RunID:        r.RunID,
		Symbol:       r.Symbol,
		From:         r.From,
		To:           r.To,
		GeneratedAt:  r.GeneratedAt,
		Rows:         len(r.Rows),
		High:         r.Thresholds.High,
		VeryHigh:     r.Thresholds.VeryHigh,
		TotalSignals: r.Evaluation.TotalSignals,
		Hits:         r.Evaluation.Hits,
	}
	if r.Evaluation.EdgeDefined {
		edge := r.Evaluation.EdgeRatio
		rec.EdgeRatio = &edge
	}
	if r.Current != nil {
		alert := string(r.Current.Alert)
		rec.CurrentAlert = &alert
	}
	return rec
}

var runColumns = []string{
	"run_id", "symbol", "range_from", "range_to", "generated_at", "rows", "high_threshold",
	"very_high", "total_signals", "hits", "edge_ratio", "current_alert",
}

// namedInsert renders INSERT ... VALUES (:col, ...) with quoted identifiers.
func namedInsert(table string, cols []string) string {
	quoted := make([]string, len(cols))
	named := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = `"` + c + `"`
		named[i] = ":" + c
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(quoted, ", "), strings.Join(named, ", "))
}

// PGResultStore writes each run in one transaction.
type PGResultStore struct {
	db      *sqlx.DB
	timeout time.Duration
	l       *applogger.Logger
}

var _ domrepo.ResultSink = (*PGResultStore)(nil)

// OpenPostgres opens and pings a pool for dsn.
func OpenPostgres(ctx context.Context, dsn string, maxOpen int) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

func NewPGResultStore(db *sqlx.DB, timeout time.Duration) *PGResultStore {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PGResultStore{db: db, timeout: timeout}
}

// SetLogger injects a structured logger.
func (s *PGResultStore) SetLogger(l *applogger.Logger) { s.l = l }

// InitSchema creates the sink tables if missing.
func (s *PGResultStore) InitSchema(ctx context.Context) error {
	for _, stmt := range PGSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}

func (s *PGResultStore) SaveRun(ctx context.Context, r *models.Report) error {
	if r == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, namedInsert("regime_runs", runColumns), newRunRecord(r)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	points := pointRecords(r)
	if err := execEach(ctx, tx, namedInsert("exhaustion_points", pointColumns), points); err != nil {
		return fmt.Errorf("insert exhaustion points: %w", err)
	}
	regimes := regimeRecords(r)
	if err := execEach(ctx, tx, namedInsert("regime_history", regimeColumns), regimes); err != nil {
		return fmt.Errorf("insert regime history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	if s.l != nil {
		s.l.Info("postgres results written",
			applogger.String("run_id", r.RunID),
			applogger.String("symbol", r.Symbol),
			applogger.Int("points", len(points)),
			applogger.Int("regimes", len(regimes)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func execEach[T any](ctx context.Context, tx *sqlx.Tx, query string, recs []T) error {
	if len(recs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range recs {
		if _, err := stmt.ExecContext(ctx, recs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *PGResultStore) Close() error { return s.db.Close() }
