package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	applogger "RegimeLab/pkg/logger"
	xutil "RegimeLab/pkg/util"
)

// CSVPriceSource reads <dir>/<SYMBOL>.csv files with a header row. The date
// column may be named date, timestamp, ts or datetime; "adj close" is
// preferred over "close" when both exist.
type CSVPriceSource struct {
	dir string
	l   *applogger.Logger
}

var _ domrepo.PriceSource = (*CSVPriceSource)(nil)

func NewCSVPriceSource(dir string) *CSVPriceSource {
	return &CSVPriceSource{dir: dir}
}

// SetLogger injects a structured logger.
func (s *CSVPriceSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CSVPriceSource) GetCloses(ctx context.Context, symbol string, from, to time.Time) ([]models.PricePoint, error) {
	path := filepath.Join(s.dir, xutil.NormalizeSymbol(symbol)+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv prices %s: %w: %w", symbol, models.ErrExternalSource, err)
	}
	defer f.Close()

	points, stats, err := readCloses(ctx, f, from, to)
	if err != nil {
		return nil, fmt.Errorf("csv prices %s: %w: %w", path, models.ErrExternalSource, err)
	}
	if stats.skipped > 0 && stats.parsed == 0 {
		return nil, fmt.Errorf("csv prices %s: %w: all %d rows malformed, first at line %d",
			path, models.ErrExternalSource, stats.skipped, stats.firstBad)
	}
	if s.l == nil {
		return points, nil
	}
	if stats.skipped > 0 {
		s.l.Warn("csv prices: malformed rows skipped",
			applogger.String("path", path),
			applogger.Int("skipped", stats.skipped),
			applogger.Int("first_line", stats.firstBad),
		)
	}
	s.l.Debug("csv prices loaded",
		applogger.String("path", path),
		applogger.Int("points", len(points)),
		applogger.Int("skipped", stats.skipped),
	)
	return points, nil
}

// csvStats counts data rows. parsed includes rows outside the requested range.
type csvStats struct {
	parsed   int
	skipped  int
	firstBad int // line number of the first malformed row
}

func (st *csvStats) bad(line int) {
	if st.skipped == 0 {
		st.firstBad = line
	}
	st.skipped++
}

func readCloses(ctx context.Context, r io.Reader, from, to time.Time) ([]models.PricePoint, csvStats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, csvStats{}, fmt.Errorf("read header: %w", err)
	}
	dateCol, closeCol := -1, -1
	adjCol := -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date", "timestamp", "ts", "datetime":
			dateCol = i
		case "close":
			closeCol = i
		case "adj close", "adj_close", "adjclose":
			adjCol = i
		}
	}
	if adjCol >= 0 {
		closeCol = adjCol
	}
	if dateCol < 0 || closeCol < 0 {
		return nil, csvStats{}, errors.New("header needs a date and a close column")
	}

	var (
		points []models.PricePoint
		stats  csvStats
	)
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) <= dateCol || len(rec) <= closeCol {
			stats.bad(line)
			continue
		}
		ts, ok := parseCSVTime(rec[dateCol])
		if !ok {
			stats.bad(line)
			continue
		}
		c, err := strconv.ParseFloat(strings.TrimSpace(rec[closeCol]), 64)
		if err != nil || c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			stats.bad(line)
			continue
		}
		stats.parsed++
		if (!from.IsZero() && ts.Before(from)) || (!to.IsZero() && ts.After(to)) {
			continue
		}
		points = append(points, models.PricePoint{Timestamp: ts, Close: c})
	}
	return sortPoints(points), stats, nil
}

func parseCSVTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, ok := xutil.ParseTime(s); ok {
		return t.UTC(), true
	}
	for _, layout := range []string{"2006-01-02 15:04:05-07:00", time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// sortPoints orders by time and keeps the last of duplicated timestamps.
func sortPoints(points []models.PricePoint) []models.PricePoint {
	slices.SortStableFunc(points, func(a, b models.PricePoint) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	out := points[:0]
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(p.Timestamp) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// CSVResultStore writes <symbol>_exhaustion.csv and <symbol>_regimes.csv into
// dir, replacing the previous run of the same symbol.
type CSVResultStore struct {
	dir string
	l   *applogger.Logger
}

var _ domrepo.ResultSink = (*CSVResultStore)(nil)

func NewCSVResultStore(dir string) (*CSVResultStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csv sink dir: %w", err)
	}
	return &CSVResultStore{dir: dir}, nil
}

// SetLogger injects a structured logger.
func (s *CSVResultStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CSVResultStore) SaveRun(ctx context.Context, r *models.Report) error {
	if r == nil {
		return nil
	}
	base := strings.ToLower(xutil.NormalizeSymbol(r.Symbol))

	points := pointRecords(r)
	pointRows := make([][]string, 0, len(points))
	for _, p := range points {
		pointRows = append(pointRows, p.strings())
	}
	if err := s.writeFile(ctx, base+"_exhaustion.csv", pointColumns, pointRows); err != nil {
		return err
	}

	regimes := regimeRecords(r)
	regimeRows := make([][]string, 0, len(regimes))
	for _, rr := range regimes {
		regimeRows = append(regimeRows, rr.strings())
	}
	if err := s.writeFile(ctx, base+"_regimes.csv", regimeColumns, regimeRows); err != nil {
		return err
	}

	if s.l != nil {
		s.l.Info("csv results written",
			applogger.String("dir", s.dir),
			applogger.String("run_id", r.RunID),
			applogger.Int("points", len(pointRows)),
			applogger.Int("regimes", len(regimeRows)),
		)
	}
	return nil
}

func (s *CSVResultStore) writeFile(ctx context.Context, name string, header []string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("csv sink %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("csv sink %s: %w", name, err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("csv sink %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csv sink %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("csv sink %s: %w", name, err)
	}
	return nil
}

func (s *CSVResultStore) Close() error { return nil }
