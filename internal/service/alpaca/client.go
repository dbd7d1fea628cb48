package alpaca

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"slices"
	"time"

	"RegimeLab/internal/domain/models"
	drepo "RegimeLab/internal/domain/repository"
	applogger "RegimeLab/pkg/logger"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/time/rate"
)

// BarsClient is the part of the Alpaca market data client used here.
type BarsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// Option configures Client.
type Option func(*Client)

// WithRateLimit bounds request rate to rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithFeed selects "iex" or "sip" bars.
func WithFeed(feed string) Option {
	return func(c *Client) {
		c.feed = feed
	}
}

// WithLogger sets the client logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithBarsClient replaces the Alpaca SDK client.
func WithBarsClient(bc BarsClient) Option {
	return func(c *Client) {
		c.bars = bc
	}
}

// Client is a PriceSource backed by split- and dividend-adjusted Alpaca daily bars.
type Client struct {
	bars    BarsClient
	limiter *rate.Limiter
	feed    string
	log     *applogger.Logger
}

var _ drepo.PriceSource = (*Client)(nil)

// New builds a client for the given credentials. baseURL may be empty.
func New(apiKey, apiSecret, baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		limiter: rate.NewLimiter(rate.Limit(3), 1),
		feed:    "iex",
		log:     applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bars == nil {
		c.bars = marketdata.NewClient(marketdata.ClientOpts{
			APIKey:     apiKey,
			APISecret:  apiSecret,
			BaseURL:    baseURL,
			HTTPClient: &http.Client{Timeout: timeout},
		})
	}
	return c
}

// GetCloses returns the daily closes in [from, to], ordered and de-duplicated.
func (c *Client) GetCloses(ctx context.Context, symbol string, from, to time.Time) ([]models.PricePoint, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("alpaca bars %s: %w", symbol, err)
	}

	start := time.Now()
	bars, err := c.bars.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      from,
		End:        to,
		Feed:       feedOf(c.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars %s: %w: %w", symbol, models.ErrExternalSource, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	points := make([]models.PricePoint, 0, len(bars))
	dropped := 0
	for _, b := range bars {
		if b.Close <= 0 || math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
			dropped++
			continue
		}
		points = append(points, models.PricePoint{Timestamp: b.Timestamp.UTC(), Close: b.Close})
	}
	points = normalize(points)

	c.log.Debug("alpaca bars fetched",
		applogger.String("symbol", symbol),
		applogger.Int("bars", len(bars)),
		applogger.Int("points", len(points)),
		applogger.Int("dropped", dropped),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	if len(points) == 0 {
		return nil, fmt.Errorf("alpaca bars %s: %w: no usable bars between %s and %s",
			symbol, models.ErrExternalSource, from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	return points, nil
}

// normalize sorts by time and keeps the last point for duplicated timestamps.
func normalize(points []models.PricePoint) []models.PricePoint {
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

func feedOf(s string) marketdata.Feed {
	if s == "sip" {
		return marketdata.SIP
	}
	return marketdata.IEX
}
