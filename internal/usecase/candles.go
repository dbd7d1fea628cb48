package usecase

import (
	"context"
	"fmt"
	"time"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	xutil "RegimeLab/pkg/util"
)

const (
	defaultCandleLimit = 10000
	maxCandleLimit     = 50000
)

// CandlesUseCase reads warehoused bars, the same series the pipeline runs on
// when the source is ClickHouse.
type CandlesUseCase struct {
	store domrepo.CandleStore
}

func NewCandlesUseCase(store domrepo.CandleStore) *CandlesUseCase {
	return &CandlesUseCase{store: store}
}

type GetCandlesParams struct {
	Symbol    string
	From      time.Time
	To        time.Time
	Timeframe domrepo.Timeframe
	Limit     int
	Latest    int // when > 0, the last Latest bars regardless of From/To
}

type GetCandlesResult struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"tf"`
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Count     int             `json:"count"`
	Candles   []models.Candle `json:"candles"`
}

func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	p.Symbol = xutil.NormalizeSymbol(p.Symbol)
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.Timeframe == "" {
		p.Timeframe = domrepo.TF1d
	}
	if !p.Timeframe.Valid() {
		return nil, fmt.Errorf("unsupported timeframe %q", p.Timeframe)
	}

	var (
		candles []models.Candle
		err     error
	)
	if p.Latest > 0 {
		candles, err = uc.store.GetLatestNCandles(ctx, p.Symbol, p.Latest, p.Timeframe)
	} else {
		if p.From.After(p.To) {
			return nil, fmt.Errorf("from must be <= to")
		}
		candles, err = uc.store.GetCandles(ctx, p.Symbol, p.From, p.To, p.Timeframe)
	}
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}

	switch {
	case p.Limit <= 0:
		p.Limit = defaultCandleLimit
	case p.Limit > maxCandleLimit:
		p.Limit = maxCandleLimit
	}
	if len(candles) > p.Limit {
		candles = candles[len(candles)-p.Limit:]
	}

	res := &GetCandlesResult{
		Symbol:    p.Symbol,
		Timeframe: string(p.Timeframe),
		From:      p.From,
		To:        p.To,
		Count:     len(candles),
		Candles:   candles,
	}
	if len(candles) > 0 {
		res.From, res.To = candles[0].Bucket, candles[len(candles)-1].Bucket
	}
	return res, nil
}
