// File: internal/workflow/result.go
package workflow

import "time"

// Result is the caller-facing outcome of a scenario or batch run.
type Result struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	Err          string    `json:"error,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
	SuccessCount int       `json:"success_count,omitempty"`
	FailCount    int       `json:"fail_count,omitempty"`
}

// Credentials are the ERP login credentials for one run. They are passed in
// by the caller and never persisted.
type Credentials struct {
	Username string
	Password string
}
