package models

// Requests for the analysis HTTP endpoints. Dates are YYYY-MM-DD, RFC3339 or unix seconds.

type ExhaustionRequest struct {
	Symbol string `query:"symbol" json:"symbol" default:"SPY" validate:"required,max=16"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Years  int    `query:"years" json:"years" default:"5" validate:"gte=1,lte=30"`
	Rows   bool   `query:"rows" json:"rows"`
	Fresh  bool   `query:"fresh" json:"fresh"`
}

type RegimesRequest struct {
	Symbol  string `query:"symbol" json:"symbol" default:"SPY" validate:"required,max=16"`
	From    string `query:"from" json:"from"`
	To      string `query:"to" json:"to"`
	Years   int    `query:"years" json:"years" default:"5" validate:"gte=1,lte=30"`
	MinDays int    `query:"min_days" json:"min_days" validate:"gte=0"`
}

type EvaluationRequest struct {
	Symbol   string `query:"symbol" json:"symbol" default:"SPY" validate:"required,max=16"`
	From     string `query:"from" json:"from"`
	To       string `query:"to" json:"to"`
	Years    int    `query:"years" json:"years" default:"5" validate:"gte=1,lte=30"`
	Outcomes bool   `query:"outcomes" json:"outcomes"`
}

// BatchRunRequest queues one run per symbol.
type BatchRunRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,max=50,dive,required,max=16"`
	From    string   `json:"from"`
	To      string   `json:"to"`
	Years   int      `json:"years" default:"5" validate:"gte=1,lte=30"`
}

// CandlesRequest reads stored bars; only available with the ClickHouse source.
type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" default:"SPY" validate:"required,max=16"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Years  int    `query:"years" json:"years" default:"1" validate:"gte=1,lte=30"`
	TF     string `query:"tf" json:"tf" default:"1d" validate:"oneof=1d 1w"`
	Limit  int    `query:"limit" json:"limit" validate:"gte=0,lte=50000"`
	Latest int    `query:"latest" json:"latest" validate:"gte=0,lte=5000"` // last N bars, ignores from/to
}
