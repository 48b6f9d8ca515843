package store

import (
	"context"

	"github.com/quayside/vendorq/internal/domain"
)

// Store is the durable job store contract. Every status mutation is a
// compare-and-set keyed on the expected prior status: concurrent writers
// (worker pool vs webhook resolver) race safely, and illegal lifecycle
// transitions are rejected here rather than by caller discipline.
type Store interface {
	// Create persists a new pending job.
	Create(ctx context.Context, job *domain.Job) error

	// FindByID returns the job or domain.ErrNotFound.
	FindByID(ctx context.Context, id string) (*domain.Job, error)

	// BeginAttempt moves a pending (or processing, for a retry) job into
	// processing, incrementing attempts and stamping processing_started_at.
	// The attempts < max_attempts guard is part of the same conditional
	// update. Returns domain.ErrConflict if the job is already terminal or
	// out of attempts.
	BeginAttempt(ctx context.Context, id string) (*domain.Job, error)

	// Complete transitions processing -> complete and stores the sanitized
	// result. Returns domain.ErrConflict if the job is not processing.
	Complete(ctx context.Context, id string, result map[string]any) error

	// Fail transitions processing -> failed and stores the error record.
	// Returns domain.ErrConflict if the job is not processing.
	Fail(ctx context.Context, id string, info domain.ErrorInfo) error

	// CompareAndSetStatus performs a bare conditional status flip with no
	// side fields. Returns domain.ErrConflict on an expectation mismatch.
	CompareAndSetStatus(ctx context.Context, id string, expected, next domain.Status) error

	// Stats returns job counts grouped by status.
	Stats(ctx context.Context) (map[domain.Status]int64, error)
}
