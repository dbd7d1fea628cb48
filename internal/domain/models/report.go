package models

import "time"

// Report is the full output of one pipeline run.
type Report struct {
	RunID        string              `json:"run_id"`
	Symbol       string              `json:"symbol"`
	From         time.Time           `json:"from"`
	To           time.Time           `json:"to"`
	GeneratedAt  time.Time           `json:"generated_at"`
	Rows         []AnalysisRow       `json:"rows"`
	Intervals    []RegimeInterval    `json:"intervals"`
	Thresholds   Thresholds          `json:"thresholds"`
	Evaluation   SignalEvaluation    `json:"evaluation"`
	Correlations *CorrelationCheck   `json:"correlations,omitempty"`
	Transitions  []TransitionProfile `json:"transitions,omitempty"`
	Summaries    []TransitionSummary `json:"transition_summaries,omitempty"`
	Top          []TopExhausted      `json:"top_exhausted,omitempty"`
	LongRegimes  []RegimeInterval    `json:"long_regimes,omitempty"`
	Current      *CurrentState       `json:"current,omitempty"`
	Causal       []CausalScore       `json:"causal,omitempty"`
	Warnings     []string            `json:"warnings,omitempty"`
}

// Empty reports whether the run produced no rows.
func (r *Report) Empty() bool { return r == nil || len(r.Rows) == 0 }
