package models

import "time"

// APIResponse is the envelope returned by every REST endpoint
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewSuccessResponse wraps data in a successful envelope
func NewSuccessResponse(data interface{}) *APIResponse {
	return &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// NewErrorResponse builds a failed envelope
func NewErrorResponse(code, message string) *APIResponse {
	return &APIResponse{
		Success:   false,
		Error:     message,
		Code:      code,
		Timestamp: time.Now(),
	}
}
