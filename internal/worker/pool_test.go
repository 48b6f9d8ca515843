package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quayside/vendorq/internal/dispatch"
	"github.com/quayside/vendorq/internal/domain"
	"github.com/quayside/vendorq/internal/logging"
	"github.com/quayside/vendorq/internal/queue"
	"github.com/quayside/vendorq/internal/vendors"
)

type fakeStore struct {
	job *domain.Job

	beginErr    error
	completed   map[string]any
	failed      *domain.ErrorInfo
	completeErr error
}

func (s *fakeStore) Create(ctx context.Context, job *domain.Job) error { return nil }

func (s *fakeStore) FindByID(ctx context.Context, id string) (*domain.Job, error) {
	if s.job == nil || s.job.ID != id {
		return nil, domain.ErrNotFound
	}
	cp := *s.job
	return &cp, nil
}

func (s *fakeStore) BeginAttempt(ctx context.Context, id string) (*domain.Job, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	if s.job == nil || s.job.ID != id {
		return nil, domain.ErrNotFound
	}
	s.job.Status = domain.StatusProcessing
	s.job.Attempts++
	cp := *s.job
	return &cp, nil
}

func (s *fakeStore) Complete(ctx context.Context, id string, result map[string]any) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completed = result
	return nil
}

func (s *fakeStore) Fail(ctx context.Context, id string, info domain.ErrorInfo) error {
	s.failed = &info
	return nil
}

func (s *fakeStore) CompareAndSetStatus(ctx context.Context, id string, expected, next domain.Status) error {
	return nil
}

func (s *fakeStore) Stats(ctx context.Context) (map[domain.Status]int64, error) {
	return nil, nil
}

type fakeQueue struct {
	enqueued []dispatch.Message
	delayed  []time.Duration
}

func (q *fakeQueue) Enqueue(ctx context.Context, msg dispatch.Message) error {
	q.enqueued = append(q.enqueued, msg)
	q.delayed = append(q.delayed, 0)
	return nil
}

func (q *fakeQueue) EnqueueAfter(ctx context.Context, msg dispatch.Message, delay time.Duration) error {
	q.enqueued = append(q.enqueued, msg)
	q.delayed = append(q.delayed, delay)
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context) (*dispatch.Message, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (q *fakeQueue) MoveDue(ctx context.Context, now time.Time, batch int64) (int, error) {
	return 0, nil
}

func (q *fakeQueue) Depths(ctx context.Context) (int64, int64, int64, error) {
	return 0, 0, 0, nil
}

var _ queue.Queue = (*fakeQueue)(nil)

type openLimiter struct{}

func (openLimiter) Acquire(ctx context.Context, vendor string) error { return nil }

type fakeClient struct {
	tag     domain.Vendor
	outcome *vendors.Outcome
	err     error
	calls   int
}

func (c *fakeClient) Tag() domain.Vendor { return c.tag }

func (c *fakeClient) Dispatch(ctx context.Context, payload map[string]any, correlationID string) (*vendors.Outcome, error) {
	c.calls++
	return c.outcome, c.err
}

func testPool(st *fakeStore, q *fakeQueue, clients ...vendors.Client) *Pool {
	reg := vendors.NewRegistry()
	for _, c := range clients {
		reg.Register(c)
	}
	cfg := Config{
		Concurrency:    1,
		VendorTimeout:  5 * time.Second,
		RetryBaseDelay: time.Second,
	}
	return NewPool(cfg, st, q, openLimiter{}, reg, logging.New("test"))
}

func pendingJob(vendor domain.Vendor) *domain.Job {
	return domain.New(vendor, map[string]any{"name": "alice"}, 3)
}

func TestHandleSyncSuccess(t *testing.T) {
	st := &fakeStore{job: pendingJob(domain.VendorSync)}
	q := &fakeQueue{}
	client := &fakeClient{tag: domain.VendorSync, outcome: &vendors.Outcome{Data: map[string]any{"score": 42}}}
	p := testPool(st, q, client)

	msg := dispatch.NewMessage(st.job)
	p.handle(context.Background(), &msg)

	if client.calls != 1 {
		t.Fatalf("vendor called %d times, want 1", client.calls)
	}
	if st.completed == nil {
		t.Fatal("job was not completed")
	}
	if st.completed["source"] != "sync_vendor" {
		t.Errorf("result not sanitized: %v", st.completed)
	}
	if st.failed != nil {
		t.Errorf("job unexpectedly failed: %v", st.failed)
	}
	if len(q.enqueued) != 0 {
		t.Errorf("unexpected retry enqueued: %v", q.enqueued)
	}
}

func TestHandleAsyncAccepted(t *testing.T) {
	st := &fakeStore{job: pendingJob(domain.VendorAsync)}
	q := &fakeQueue{}
	client := &fakeClient{tag: domain.VendorAsync, outcome: &vendors.Outcome{Accepted: true}}
	p := testPool(st, q, client)

	msg := dispatch.NewMessage(st.job)
	p.handle(context.Background(), &msg)

	if st.completed != nil {
		t.Errorf("async job completed before webhook: %v", st.completed)
	}
	if st.failed != nil {
		t.Errorf("async job failed: %v", st.failed)
	}
	if st.job.Status != domain.StatusProcessing {
		t.Errorf("status = %v, want processing", st.job.Status)
	}
}

func TestHandleRetrySchedulesDelayedMessage(t *testing.T) {
	st := &fakeStore{job: pendingJob(domain.VendorSync)}
	q := &fakeQueue{}
	client := &fakeClient{tag: domain.VendorSync, err: &vendors.CallError{Vendor: "sync", HTTPStatus: 503}}
	p := testPool(st, q, client)

	msg := dispatch.NewMessage(st.job)
	p.handle(context.Background(), &msg)

	if st.failed != nil {
		t.Fatalf("job failed on first attempt: %v", st.failed)
	}
	if len(q.enqueued) != 1 {
		t.Fatalf("enqueued %d messages, want 1 retry", len(q.enqueued))
	}
	// Attempt 1 failed, so backoff is baseDelay * 1.
	if q.delayed[0] != time.Second {
		t.Errorf("retry delay = %v, want 1s", q.delayed[0])
	}
	if q.enqueued[0].JobID != st.job.ID {
		t.Errorf("retry message job = %q", q.enqueued[0].JobID)
	}
}

func TestHandleRetryDelayGrowsWithAttempts(t *testing.T) {
	st := &fakeStore{job: pendingJob(domain.VendorSync)}
	st.job.Attempts = 1 // second attempt is about to run
	q := &fakeQueue{}
	client := &fakeClient{tag: domain.VendorSync, err: &vendors.CallError{Vendor: "sync", HTTPStatus: 503}}
	p := testPool(st, q, client)

	msg := dispatch.NewMessage(st.job)
	p.handle(context.Background(), &msg)

	if len(q.enqueued) != 1 {
		t.Fatalf("enqueued %d messages, want 1", len(q.enqueued))
	}
	if q.delayed[0] != 2*time.Second {
		t.Errorf("retry delay = %v, want 2s", q.delayed[0])
	}
}

func TestHandleAttemptsExhausted(t *testing.T) {
	st := &fakeStore{job: pendingJob(domain.VendorSync)}
	st.job.Attempts = 2 // third and final attempt is about to run
	q := &fakeQueue{}
	client := &fakeClient{tag: domain.VendorSync, err: &vendors.CallError{Vendor: "sync", HTTPStatus: 500}}
	p := testPool(st, q, client)

	msg := dispatch.NewMessage(st.job)
	p.handle(context.Background(), &msg)

	if len(q.enqueued) != 0 {
		t.Errorf("retry enqueued after final attempt: %v", q.enqueued)
	}
	if st.failed == nil {
		t.Fatal("job was not failed")
	}
	if st.failed.Code != "VENDOR_CALL_ERROR" {
		t.Errorf("error code = %q, want VENDOR_CALL_ERROR", st.failed.Code)
	}
}

func TestHandleDuplicateMessageDropped(t *testing.T) {
	st := &fakeStore{job: pendingJob(domain.VendorSync), beginErr: domain.ErrConflict}
	q := &fakeQueue{}
	client := &fakeClient{tag: domain.VendorSync, outcome: &vendors.Outcome{Data: map[string]any{}}}
	p := testPool(st, q, client)

	msg := dispatch.NewMessage(st.job)
	p.handle(context.Background(), &msg)

	if client.calls != 0 {
		t.Errorf("vendor called %d times for a stale message, want 0", client.calls)
	}
	if st.completed != nil || st.failed != nil {
		t.Error("stale message mutated the job")
	}
}

func TestHandleMissingJobDropped(t *testing.T) {
	st := &fakeStore{}
	q := &fakeQueue{}
	client := &fakeClient{tag: domain.VendorSync}
	p := testPool(st, q, client)

	p.handle(context.Background(), &dispatch.Message{JobID: "nope", Vendor: "sync"})

	if client.calls != 0 {
		t.Errorf("vendor called for a missing job")
	}
}

func TestHandleUnknownVendorFailsJob(t *testing.T) {
	st := &fakeStore{job: pendingJob(domain.VendorAsync)}
	q := &fakeQueue{}
	p := testPool(st, q) // empty registry

	msg := dispatch.NewMessage(st.job)
	p.handle(context.Background(), &msg)

	if st.failed == nil {
		t.Fatal("job was not failed")
	}
	if st.failed.Code != "UNKNOWN_VENDOR" {
		t.Errorf("error code = %q, want UNKNOWN_VENDOR", st.failed.Code)
	}
	if len(q.enqueued) != 0 {
		t.Errorf("retry enqueued for unknown vendor")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	st := &fakeStore{}
	q := &fakeQueue{}
	p := testPool(st, q)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

var errDown = errors.New("store down")

func TestHandleBeginAttemptInfraErrorDropped(t *testing.T) {
	st := &fakeStore{job: pendingJob(domain.VendorSync), beginErr: errDown}
	q := &fakeQueue{}
	client := &fakeClient{tag: domain.VendorSync}
	p := testPool(st, q, client)

	msg := dispatch.NewMessage(st.job)
	p.handle(context.Background(), &msg)

	if client.calls != 0 {
		t.Error("vendor called despite store error")
	}
}
