package domain

import (
	"time"

	"github.com/google/uuid"
)

// Vendor identifies which backend fulfills a job.
type Vendor string

const (
	// VendorSync answers within the dispatch call itself.
	VendorSync Vendor = "sync"
	// VendorAsync acknowledges receipt and reports the outcome later via webhook.
	VendorAsync Vendor = "async"
)

// ParseVendor validates a vendor tag from an external caller.
func ParseVendor(s string) (Vendor, error) {
	switch Vendor(s) {
	case VendorSync, VendorAsync:
		return Vendor(s), nil
	default:
		return "", &ValidationError{Message: "vendor must be \"sync\" or \"async\""}
	}
}

// Status is a job's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// transitions is the directed lifecycle graph. A retry is represented as a
// fresh dispatch attempt, so processing -> processing is legal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusProcessing, StatusComplete, StatusFailed},
}

// CanTransition reports whether from -> to is a legal lifecycle transition.
// Terminal states have no outgoing edges.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// ErrorInfo is the structured failure record attached to failed jobs.
type ErrorInfo struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Job is the unit of work tracked from intake through completion.
type Job struct {
	ID                    string
	Vendor                Vendor
	Status                Status
	Payload               map[string]any
	Result                map[string]any
	ErrorInfo             *ErrorInfo
	Attempts              int
	MaxAttempts           int
	CreatedAt             time.Time
	UpdatedAt             time.Time
	ProcessingStartedAt   *time.Time
	ProcessingCompletedAt *time.Time
}

// New creates a pending job with a fresh id and zero attempts.
func New(vendor Vendor, payload map[string]any, maxAttempts int) *Job {
	return &Job{
		ID:          uuid.NewString(),
		Vendor:      vendor,
		Status:      StatusPending,
		Payload:     payload,
		MaxAttempts: maxAttempts,
	}
}

// CanRetry reports whether another dispatch attempt is allowed.
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxAttempts
}
