package backend

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UnreachableError is a network-level failure reaching the backend.
type UnreachableError struct {
	URL      string
	Endpoint string
	Err      error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("backend %s%s unreachable: %v", e.URL, e.Endpoint, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// RejectedError is a non-2xx response from the backend.
type RejectedError struct {
	Endpoint string
	Status   int

	// Message is the backend's own message, empty when it sent none.
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend %s returned status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("backend %s returned status %d: %s", e.Endpoint, e.Status, e.Message)
}

func newRejectedError(endpoint string, status int, body []byte) *RejectedError {
	return &RejectedError{
		Endpoint: endpoint,
		Status:   status,
		Message:  extractMessage(body),
	}
}

// extractMessage reads "message" or, for FastAPI style errors, a string "detail".
func extractMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Detail  any    `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	if detail, ok := payload.Detail.(string); ok {
		return strings.TrimSpace(detail)
	}
	return ""
}
