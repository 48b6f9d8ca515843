package domain

import "errors"

var (
	// ErrNotFound means the referenced job does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrConflict means a compare-and-set transition found the job in an
	// unexpected state. Callers treat it as a duplicate or late update.
	ErrConflict = errors.New("job status conflict")

	// ErrVendorMismatch means a webhook's vendor tag disagrees with the
	// vendor stored on the job.
	ErrVendorMismatch = errors.New("vendor mismatch")

	// ErrUnknownVendor means no client is registered for a vendor tag.
	ErrUnknownVendor = errors.New("unknown vendor")
)

// ValidationError reports malformed intake or webhook input. It is surfaced
// to the caller immediately and never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
