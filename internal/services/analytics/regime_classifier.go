package analytics

import (
	"context"
	"fmt"
	"time"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
)

// HTTPRegimeClassifier asks an external service (e.g. a fitted mixture model)
// for a regime id per timestamp.
type HTTPRegimeClassifier struct {
	base     *HTTPServiceBase
	attempts int
}

var _ domrepo.RegimeEventSource = (*HTTPRegimeClassifier)(nil)

func NewHTTPRegimeClassifier(base *HTTPServiceBase) *HTTPRegimeClassifier {
	return &HTTPRegimeClassifier{base: base, attempts: 3}
}

type classifyRequest struct {
	Symbol     string      `json:"symbol"`
	Timestamps []time.Time `json:"timestamps"`
	Closes     []float64   `json:"closes"`
}

type classifyEvent struct {
	Timestamp time.Time `json:"ts"`
	RegimeID  int       `json:"regime_id"`
	Changed   *bool     `json:"changed,omitempty"`
}

type classifyResponse struct {
	Events []classifyEvent `json:"events"`
}

// Classify returns one event per classified timestamp, ordered. When the
// service omits the changed flag it is derived from consecutive regime ids.
func (c *HTTPRegimeClassifier) Classify(ctx context.Context, symbol string, points []models.PricePoint) ([]models.RegimeEvent, error) {
	if len(points) == 0 {
		return nil, nil
	}
	req := classifyRequest{
		Symbol:     symbol,
		Timestamps: make([]time.Time, len(points)),
		Closes:     make([]float64, len(points)),
	}
	for i, p := range points {
		req.Timestamps[i] = p.Timestamp
		req.Closes[i] = p.Close
	}

	var resp classifyResponse
	if err := c.base.PostJSONWithRetry(ctx, "/regime/classify", req, &resp, c.attempts); err != nil {
		return nil, fmt.Errorf("classify %s: %w: %w", symbol, models.ErrExternalSource, err)
	}

	out := make([]models.RegimeEvent, 0, len(resp.Events))
	for i, e := range resp.Events {
		if i > 0 && !e.Timestamp.After(resp.Events[i-1].Timestamp) {
			return nil, fmt.Errorf("classify %s: %w: events not strictly increasing at %d", symbol, models.ErrExternalSource, i)
		}
		changed := i > 0 && e.RegimeID != resp.Events[i-1].RegimeID
		if e.Changed != nil {
			changed = *e.Changed
		}
		out = append(out, models.RegimeEvent{Timestamp: e.Timestamp.UTC(), RegimeID: e.RegimeID, Changed: changed})
	}
	return out, nil
}
