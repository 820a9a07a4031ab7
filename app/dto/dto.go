// Package dto defines the request and response shapes of the orchestrator API
package dto

// APIResponse is the envelope every orchestrator endpoint returns. Wizard and
// console payloads ride in Data; Error is populated only on failure.
type APIResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    any          `json:"data,omitempty" validate:"omitempty"`
	Error   *ErrorDetail `json:"error,omitempty" validate:"omitempty"`
}

// ErrorDetail carries the machine-readable error code, mirroring the flow
// layer's business error codes, plus optional field-level details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty" validate:"omitempty"`
}
