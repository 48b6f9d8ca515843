// Package intake owns job admission: validate, persist as pending, enqueue
// for dispatch. The API layer stays a thin HTTP translation over this.
package intake

import (
	"context"
	"time"

	"github.com/quayside/vendorq/internal/dispatch"
	"github.com/quayside/vendorq/internal/domain"
	"github.com/quayside/vendorq/internal/logging"
	"github.com/quayside/vendorq/internal/metrics"
	"github.com/quayside/vendorq/internal/store"
	"github.com/quayside/vendorq/internal/tracing"
)

// Enqueuer is the slice of the queue intake needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg dispatch.Message) error
}

type Service struct {
	store       store.Store
	queue       Enqueuer
	maxAttempts int
	logger      *logging.Logger
}

func NewService(st store.Store, q Enqueuer, maxAttempts int, logger *logging.Logger) *Service {
	return &Service{store: st, queue: q, maxAttempts: maxAttempts, logger: logger}
}

// Create validates and admits a new job. The job is durable before it is
// queued; a queue failure after the insert leaves a pending row that a
// requeue sweep can pick up, rather than a queued message with no row.
func (s *Service) Create(ctx context.Context, vendorTag string, payload map[string]any) (*domain.Job, error) {
	vendor, err := domain.ParseVendor(vendorTag)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, &domain.ValidationError{Message: "data is required"}
	}

	job := domain.New(vendor, payload, s.maxAttempts)

	if err := s.store.Create(ctx, job); err != nil {
		return nil, err
	}

	msg := dispatch.NewMessage(job)
	msg.TraceHeaders = tracing.PropagateTraceToQueue(ctx)
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		s.logger.WithContext(ctx).WithJob(job.ID).WithError(err).Error("enqueue after create failed")
		return nil, err
	}

	metrics.RecordJobCreated(string(vendor))
	s.logger.WithContext(ctx).WithJob(job.ID).WithVendor(string(vendor)).Info("job created")
	return job, nil
}

// Get returns the job by its request ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Job, error) {
	return s.store.FindByID(ctx, id)
}

// Stats returns job counts by status plus a timestamp, for the admin surface.
func (s *Service) Stats(ctx context.Context) (map[domain.Status]int64, time.Time, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	return stats, time.Now().UTC(), nil
}
