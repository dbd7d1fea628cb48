package http

// APIResponse is the envelope every API route answers with.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request parameter. Field is the
// parameter name as the client sent it (query or json key).
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_ONEOF"`
	Field   string                 `json:"field,omitempty" example:"tf"`
	Message string                 `json:"message,omitempty" example:"tf must be one of: 1d, 1w"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
