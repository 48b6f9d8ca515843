package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/quayside/vendorq/internal/dispatch"
	"github.com/quayside/vendorq/internal/domain"
	"github.com/quayside/vendorq/internal/logging"
	"github.com/quayside/vendorq/internal/metrics"
	"github.com/quayside/vendorq/internal/queue"
	"github.com/quayside/vendorq/internal/sanitize"
	"github.com/quayside/vendorq/internal/store"
	"github.com/quayside/vendorq/internal/tracing"
	"github.com/quayside/vendorq/internal/vendors"
)

// limiter is the slice of ratelimit.Limiter the pool needs.
type limiter interface {
	Acquire(ctx context.Context, vendor string) error
}

// Config tunes one Pool.
type Config struct {
	Concurrency    int
	VendorTimeout  time.Duration
	RetryBaseDelay time.Duration
}

// Pool consumes dispatch messages and drives jobs through their vendor
// calls. Each message is one attempt: failures either schedule a fresh
// delayed message or finalize the job as failed, never both.
type Pool struct {
	cfg      Config
	store    store.Store
	queue    queue.Queue
	limiter  limiter
	registry *vendors.Registry
	logger   *logging.Logger

	moverInterval time.Duration
	moverBatch    int64
}

func NewPool(cfg Config, st store.Store, q queue.Queue, lim limiter, reg *vendors.Registry, logger *logging.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Pool{
		cfg:           cfg,
		store:         st,
		queue:         q,
		limiter:       lim,
		registry:      reg,
		logger:        logger,
		moverInterval: 250 * time.Millisecond,
		moverBatch:    128,
	}
}

// Run blocks until ctx is cancelled and every worker has drained.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.runMover(ctx)
	}()

	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runWorker(ctx, id)
		}(i)
	}

	wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	log := p.logger.WithFields(map[string]any{"worker": id})
	log.Info("worker started")
	for {
		msg, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping")
				return
			}
			p.logger.Plain().WithField("worker", id).WithError(err).Error("dequeue failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		p.handle(ctx, msg)
	}
}

// runMover promotes delayed retry messages whose backoff has elapsed.
func (p *Pool) runMover(ctx context.Context) {
	ticker := time.NewTicker(p.moverInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.queue.MoveDue(ctx, time.Now(), p.moverBatch); err != nil && ctx.Err() == nil {
				p.logger.Plain().WithError(err).Warn("promoting delayed messages failed")
			}
		}
	}
}

func (p *Pool) handle(ctx context.Context, msg *dispatch.Message) {
	ctx = tracing.ExtractTraceFromQueue(ctx, msg.TraceHeaders)
	ctx, span := tracing.StartSpan(ctx, "worker.process_job",
		attribute.String("job.id", msg.JobID),
		attribute.String("job.vendor", msg.Vendor),
	)
	defer span.End()

	log := p.logger.WithContext(ctx).WithJob(msg.JobID).WithVendor(msg.Vendor)

	job, err := p.store.FindByID(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("job missing for dispatch message, dropping")
			return
		}
		tracing.SetSpanError(ctx, err)
		log.WithError(err).Error("loading job failed, dropping message")
		return
	}

	// CAS into processing. A conflict means another path already finished
	// this job (terminal status or attempts exhausted) and the message is a
	// stale duplicate.
	job, err = p.store.BeginAttempt(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
			log.Info("job not eligible for another attempt, dropping message")
			return
		}
		tracing.SetSpanError(ctx, err)
		log.WithError(err).Error("claiming job attempt failed, dropping message")
		return
	}
	log = p.logger.WithContext(ctx).WithJob(job.ID).WithVendor(string(job.Vendor))
	log.WithField("attempt", job.Attempts).Info("processing job")

	if err := p.limiter.Acquire(ctx, string(job.Vendor)); err != nil {
		// Only ctx cancellation reaches here; the limiter fails open on
		// everything else. Re-queue so the attempt is not lost to shutdown.
		p.requeueOnShutdown(job, log)
		return
	}

	client, err := p.registry.Get(job.Vendor)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		log.WithError(err).Error("no client for vendor, failing job")
		p.finalizeFail(ctx, job, domain.ErrorInfo{
			Message: "no client registered for vendor " + string(job.Vendor),
			Code:    "UNKNOWN_VENDOR",
		}, log)
		return
	}

	tracing.AddSpanEvent(ctx, "vendor.dispatch")
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.VendorTimeout)
	start := time.Now()
	outcome, err := client.Dispatch(callCtx, job.Payload, job.ID)
	cancel()
	metrics.ObserveVendorCall(string(job.Vendor), time.Since(start))

	if err != nil {
		tracing.SetSpanError(ctx, err)
		p.retryOrFail(ctx, job, err, log)
		return
	}

	if outcome.Accepted {
		// Async vendors resolve via webhook; the job stays processing.
		tracing.AddSpanEvent(ctx, "vendor.accepted")
		metrics.RecordDispatch(string(job.Vendor), "accepted")
		log.Info("vendor accepted job, awaiting webhook")
		return
	}

	result := sanitize.Process(outcome.Data, job.Vendor)
	// Finalization must survive a shutdown that races the vendor call.
	wctx := context.WithoutCancel(ctx)
	if err := p.store.Complete(wctx, job.ID, result); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			log.Warn("job finished elsewhere before result write")
			return
		}
		tracing.SetSpanError(ctx, err)
		log.WithError(err).Error("persisting result failed")
		return
	}
	metrics.RecordDispatch(string(job.Vendor), "complete")
	log.Info("job completed")
}

// retryOrFail schedules the next attempt with linear backoff, or finalizes
// the job when the attempt budget is spent.
func (p *Pool) retryOrFail(ctx context.Context, job *domain.Job, callErr error, log *logging.LogEntry) {
	reason := "other"
	var ce *vendors.CallError
	if errors.As(callErr, &ce) {
		reason = ce.Reason()
	}
	metrics.RecordDispatch(string(job.Vendor), "error")

	if !job.CanRetry() {
		log.WithError(callErr).WithField("attempts", job.Attempts).Error("attempts exhausted, failing job")
		p.finalizeFail(ctx, job, domain.ErrorInfo{
			Message: callErr.Error(),
			Code:    "VENDOR_CALL_ERROR",
		}, log)
		return
	}

	delay := p.cfg.RetryBaseDelay * time.Duration(job.Attempts)
	msg := dispatch.NewMessage(job)
	msg.TraceHeaders = tracing.PropagateTraceToQueue(ctx)

	wctx := context.WithoutCancel(ctx)
	if err := p.queue.EnqueueAfter(wctx, msg, delay); err != nil {
		log.WithError(err).Error("scheduling retry failed, failing job")
		p.finalizeFail(ctx, job, domain.ErrorInfo{
			Message: callErr.Error(),
			Code:    "VENDOR_CALL_ERROR",
		}, log)
		return
	}
	metrics.RecordRetry(reason)
	log.WithError(callErr).WithFields(map[string]any{
		"attempt":     job.Attempts,
		"retry_delay": delay.String(),
	}).Warn("vendor call failed, retry scheduled")
}

func (p *Pool) finalizeFail(ctx context.Context, job *domain.Job, info domain.ErrorInfo, log *logging.LogEntry) {
	wctx := context.WithoutCancel(ctx)
	if err := p.store.Fail(wctx, job.ID, info); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			log.Warn("job finished elsewhere before failure write")
			return
		}
		log.WithError(err).Error("persisting failure failed")
		return
	}
	metrics.RecordDispatch(string(job.Vendor), "failed")
}

// requeueOnShutdown puts an already-claimed job back on the queue so the
// attempt resumes after restart. The attempts counter stays bumped; the
// BeginAttempt guard still caps total attempts.
func (p *Pool) requeueOnShutdown(job *domain.Job, log *logging.LogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg := dispatch.NewMessage(job)
	if err := p.queue.Enqueue(ctx, msg); err != nil {
		log.WithError(err).Error("requeue on shutdown failed")
		return
	}
	log.Info("shutdown during rate limit wait, job requeued")
}
