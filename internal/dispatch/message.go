package dispatch

import (
	"time"

	"github.com/quayside/vendorq/internal/domain"
)

// Priority is a scheduling hint for the dispatch queue, derived once at
// enqueue time from the job's vendor. Lower value dequeues first.
type Priority int

const (
	PriorityHigh Priority = 1 // synchronous vendors
	PriorityLow  Priority = 2 // asynchronous vendors
)

// PriorityFor maps a vendor to its queue priority. Synchronous jobs jump
// ahead of asynchronous ones of equal or later enqueue time.
func PriorityFor(v domain.Vendor) Priority {
	if v == domain.VendorSync {
		return PriorityHigh
	}
	return PriorityLow
}

// Message is the lightweight queue entry carried between intake, retries
// and the worker pool. It references the job rather than duplicating it;
// workers re-fetch the payload from the store.
type Message struct {
	JobID        string            `json:"job_id"`
	Vendor       string            `json:"vendor"`
	Priority     Priority          `json:"priority"`
	Attempt      int               `json:"attempt"`
	EnqueuedAt   string            `json:"enqueued_at"` // RFC3339
	TraceHeaders map[string]string `json:"trace_headers,omitempty"`
}

// NewMessage builds the dispatch message for a job's next attempt.
func NewMessage(job *domain.Job) Message {
	return Message{
		JobID:      job.ID,
		Vendor:     string(job.Vendor),
		Priority:   PriorityFor(job.Vendor),
		Attempt:    job.Attempts,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
	}
}
