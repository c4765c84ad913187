package model

import "time"

// ListResponse is the envelope for authorized read endpoints.
type ListResponse struct {
	Success   bool        `json:"success"`
	Count     int         `json:"count"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
// Kind names the failure class (e.g. "InvalidCredential") so callers can
// branch on it without parsing the message.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}
