package scoring

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"RegimeLab/internal/domain/models"
)

const (
	causalStage    = "causal"
	causalRawField = "causal_raw"
)

// CausalConfig sizes the trailing reference window.
type CausalConfig struct {
	ReferenceWindow int
	MinReference    int
}

func DefaultCausalConfig() CausalConfig {
	return CausalConfig{ReferenceWindow: 252, MinReference: 30}
}

// CausalScorer scores feature vectors one at a time against statistics of
// the vectors pushed before them. It never looks at later data and is the
// only scorer suitable for bar-by-bar use. Not safe for concurrent use.
type CausalScorer struct {
	cfg     CausalConfig
	weights [4]float64
	ref     [][4]float64 // trailing feature columns, oldest first
	raws    []float64    // trailing raw scores emitted so far
}

// NewCausalScorer validates the configuration and normalizes the weights.
func NewCausalScorer(weights Weights, cfg CausalConfig) (*CausalScorer, error) {
	if cfg.MinReference < 2 || cfg.ReferenceWindow < cfg.MinReference {
		return nil, fmt.Errorf("causal scorer: reference window %d / min %d", cfg.ReferenceWindow, cfg.MinReference)
	}
	w, err := weights.Normalize()
	if err != nil {
		return nil, fmt.Errorf("causal scorer: %w", err)
	}
	return &CausalScorer{cfg: cfg, weights: w.vector()}, nil
}

// Push scores fv against the current reference window and then adds it to
// the window. The second return is false while the window is still warming up.
// A reference column with zero spread contributes nothing and is listed in
// Flat, as is a constant run of raw scores (normalized to 50).
func (s *CausalScorer) Push(fv models.FeatureVector) (models.CausalScore, bool) {
	cur := columns(fv)
	defer s.remember(cur)

	n := len(s.ref)
	if n < s.cfg.MinReference {
		return models.CausalScore{}, false
	}

	var (
		raw  float64
		flat []string
	)
	col := make([]float64, n)
	for f := 0; f < 4; f++ {
		for i, row := range s.ref {
			col[i] = row[f]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if !(std > 0) {
			flat = append(flat, featureNames[f])
			continue
		}
		raw += (cur[f] - mean) / std * s.weights[f] * 100
	}

	s.raws = append(s.raws, raw)
	if len(s.raws) > s.cfg.ReferenceWindow {
		s.raws = s.raws[len(s.raws)-s.cfg.ReferenceWindow:]
	}
	// a single raw score has no range yet; that is warm-up, not degeneracy
	norm, ok := MinMax(s.raws)
	if !ok && len(s.raws) > 1 {
		flat = append(flat, causalRawField)
	}
	return models.CausalScore{
		Timestamp:  fv.Timestamp,
		Raw:        raw,
		Normalized: norm[len(norm)-1],
		Reference:  n,
		Flat:       flat,
	}, true
}

// Len is the number of vectors currently held for reference.
func (s *CausalScorer) Len() int { return len(s.ref) }

func (s *CausalScorer) remember(row [4]float64) {
	s.ref = append(s.ref, row)
	if len(s.ref) > s.cfg.ReferenceWindow {
		copy(s.ref, s.ref[1:])
		s.ref = s.ref[:s.cfg.ReferenceWindow]
	}
}

// CausalBatch is the output of ScoreCausal. Warnings holds one
// *models.DegenerateRangeError per column that was flat at any bar.
type CausalBatch struct {
	Scores   []models.CausalScore
	Warnings []error
}

// ScoreCausal replays vectors through a fresh CausalScorer and collects the
// scores emitted after warm-up.
func ScoreCausal(vectors []models.FeatureVector, weights Weights, cfg CausalConfig) (CausalBatch, error) {
	s, err := NewCausalScorer(weights, cfg)
	if err != nil {
		return CausalBatch{}, err
	}
	var (
		out  CausalBatch
		seen = map[string]bool{}
	)
	for _, fv := range vectors {
		cs, ok := s.Push(fv)
		if !ok {
			continue
		}
		for _, f := range cs.Flat {
			if !seen[f] {
				seen[f] = true
				out.Warnings = append(out.Warnings, &models.DegenerateRangeError{Stage: causalStage, Field: f})
			}
		}
		out.Scores = append(out.Scores, cs)
	}
	return out, nil
}
