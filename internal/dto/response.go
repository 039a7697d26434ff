package dto

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	Error   bool         `json:"error"`
	Message string       `json:"message"`
	Detail  *ErrorDetail `json:"detail,omitempty"`
}

// ErrorDetail classifies a failure: validation_error, not_found,
// permission_denied, conflict, busy or internal_error.
type ErrorDetail struct {
	Type    string `json:"type"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// SuccessResponse wraps write results.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}
