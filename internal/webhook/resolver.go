// Package webhook resolves asynchronous vendor callbacks into terminal job
// states. Vendors may deliver the same callback more than once; resolution is
// idempotent and duplicates acknowledge without mutating the job.
package webhook

import (
	"context"
	"errors"

	"github.com/quayside/vendorq/internal/domain"
	"github.com/quayside/vendorq/internal/logging"
	"github.com/quayside/vendorq/internal/metrics"
	"github.com/quayside/vendorq/internal/sanitize"
	"github.com/quayside/vendorq/internal/store"
)

// Callback is the parsed vendor callback. Vendor comes from the URL path,
// everything else from the body.
type Callback struct {
	JobID  string
	Vendor domain.Vendor
	Status string
	Data   map[string]any
	Error  string
}

// Resolution describes what a callback did to the job.
type Resolution string

const (
	ResolutionCompleted Resolution = "completed"
	ResolutionFailed    Resolution = "failed"
	ResolutionDuplicate Resolution = "duplicate"
)

type Resolver struct {
	store  store.Store
	logger *logging.Logger
}

func NewResolver(st store.Store, logger *logging.Logger) *Resolver {
	return &Resolver{store: st, logger: logger}
}

// Resolve applies the callback. Errors are domain.ErrNotFound,
// domain.ErrVendorMismatch, or *domain.ValidationError; a duplicate is not an
// error.
func (r *Resolver) Resolve(ctx context.Context, cb Callback) (Resolution, error) {
	log := r.logger.WithContext(ctx).WithJob(cb.JobID).WithVendor(string(cb.Vendor))

	job, err := r.store.FindByID(ctx, cb.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.RecordWebhook(string(cb.Vendor), "unknown_job")
		}
		return "", err
	}

	if job.Vendor != cb.Vendor {
		metrics.RecordWebhook(string(cb.Vendor), "vendor_mismatch")
		log.Warn("webhook vendor does not match job vendor")
		return "", domain.ErrVendorMismatch
	}

	if job.Status.Terminal() {
		metrics.RecordWebhook(string(cb.Vendor), "duplicate")
		log.Info("duplicate webhook for terminal job, acknowledging")
		return ResolutionDuplicate, nil
	}

	switch {
	case cb.Status == "complete":
		if cb.Data == nil {
			return "", &domain.ValidationError{Message: "complete callback requires data"}
		}
		result := sanitize.Process(cb.Data, job.Vendor)
		if err := r.store.Complete(ctx, cb.JobID, result); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				// Lost a race with another delivery of the same callback.
				metrics.RecordWebhook(string(cb.Vendor), "duplicate")
				return ResolutionDuplicate, nil
			}
			return "", err
		}
		metrics.RecordWebhook(string(cb.Vendor), "completed")
		log.Info("job completed via webhook")
		return ResolutionCompleted, nil

	// A bare error with no status still counts as a failure report.
	case cb.Status == "failed" || cb.Error != "":
		msg := cb.Error
		if msg == "" {
			msg = "Vendor reported failure"
		}
		info := domain.ErrorInfo{Message: msg, Code: "VENDOR_REPORTED_FAILURE"}
		if err := r.store.Fail(ctx, cb.JobID, info); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				metrics.RecordWebhook(string(cb.Vendor), "duplicate")
				return ResolutionDuplicate, nil
			}
			return "", err
		}
		metrics.RecordWebhook(string(cb.Vendor), "failed")
		log.Info("job failed via webhook")
		return ResolutionFailed, nil

	default:
		return "", &domain.ValidationError{Message: "unsupported webhook status: " + cb.Status}
	}
}
