package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/quayside/vendorq/internal/dispatch"
	"github.com/quayside/vendorq/internal/domain"
	"github.com/quayside/vendorq/internal/logging"
)

type fakeStore struct {
	created    *domain.Job
	createErr  error
	jobsByID   map[string]*domain.Job
	statsValue map[domain.Status]int64
}

func (s *fakeStore) Create(ctx context.Context, job *domain.Job) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = job
	return nil
}

func (s *fakeStore) FindByID(ctx context.Context, id string) (*domain.Job, error) {
	if j, ok := s.jobsByID[id]; ok {
		return j, nil
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) BeginAttempt(ctx context.Context, id string) (*domain.Job, error) {
	return nil, nil
}

func (s *fakeStore) Complete(ctx context.Context, id string, result map[string]any) error {
	return nil
}

func (s *fakeStore) Fail(ctx context.Context, id string, info domain.ErrorInfo) error {
	return nil
}

func (s *fakeStore) CompareAndSetStatus(ctx context.Context, id string, expected, next domain.Status) error {
	return nil
}

func (s *fakeStore) Stats(ctx context.Context) (map[domain.Status]int64, error) {
	return s.statsValue, nil
}

type fakeEnqueuer struct {
	msgs []dispatch.Message
	err  error
}

func (q *fakeEnqueuer) Enqueue(ctx context.Context, msg dispatch.Message) error {
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func TestCreate(t *testing.T) {
	st := &fakeStore{}
	q := &fakeEnqueuer{}
	svc := NewService(st, q, 3, logging.New("test"))

	job, err := svc.Create(context.Background(), "sync", map[string]any{"name": "alice"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if job.ID == "" {
		t.Error("job has no ID")
	}
	if job.Status != domain.StatusPending {
		t.Errorf("status = %v, want pending", job.Status)
	}
	if job.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", job.MaxAttempts)
	}
	if st.created == nil {
		t.Fatal("job not persisted")
	}
	if len(q.msgs) != 1 {
		t.Fatalf("enqueued %d messages, want 1", len(q.msgs))
	}
	if q.msgs[0].JobID != job.ID {
		t.Errorf("message job = %q, want %q", q.msgs[0].JobID, job.ID)
	}
	if q.msgs[0].Priority != dispatch.PriorityHigh {
		t.Errorf("sync job priority = %d, want high", q.msgs[0].Priority)
	}
}

func TestCreateAsyncGetsLowPriority(t *testing.T) {
	q := &fakeEnqueuer{}
	svc := NewService(&fakeStore{}, q, 3, logging.New("test"))

	if _, err := svc.Create(context.Background(), "async", map[string]any{"v": 1}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if q.msgs[0].Priority != dispatch.PriorityLow {
		t.Errorf("async job priority = %d, want low", q.msgs[0].Priority)
	}
}

func TestCreateInvalidVendor(t *testing.T) {
	st := &fakeStore{}
	svc := NewService(st, &fakeEnqueuer{}, 3, logging.New("test"))

	_, err := svc.Create(context.Background(), "carrier_pigeon", map[string]any{"v": 1})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Create() error = %v, want ValidationError", err)
	}
	if st.created != nil {
		t.Error("invalid job was persisted")
	}
}

func TestCreateMissingData(t *testing.T) {
	svc := NewService(&fakeStore{}, &fakeEnqueuer{}, 3, logging.New("test"))

	_, err := svc.Create(context.Background(), "sync", nil)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Create() error = %v, want ValidationError", err)
	}
}

func TestCreateEnqueueFailure(t *testing.T) {
	st := &fakeStore{}
	q := &fakeEnqueuer{err: errors.New("redis down")}
	svc := NewService(st, q, 3, logging.New("test"))

	if _, err := svc.Create(context.Background(), "sync", map[string]any{"v": 1}); err == nil {
		t.Fatal("Create() should surface enqueue failure")
	}
	// Row stays for a later sweep; no rollback here.
	if st.created == nil {
		t.Error("job row should have been persisted before the enqueue")
	}
}

func TestGet(t *testing.T) {
	job := domain.New(domain.VendorSync, map[string]any{}, 3)
	st := &fakeStore{jobsByID: map[string]*domain.Job{job.ID: job}}
	svc := NewService(st, &fakeEnqueuer{}, 3, logging.New("test"))

	got, err := svc.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != job.ID {
		t.Errorf("got job %q", got.ID)
	}

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStats(t *testing.T) {
	st := &fakeStore{statsValue: map[domain.Status]int64{
		domain.StatusPending:  2,
		domain.StatusComplete: 5,
	}}
	svc := NewService(st, &fakeEnqueuer{}, 3, logging.New("test"))

	stats, ts, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats[domain.StatusComplete] != 5 {
		t.Errorf("complete count = %d, want 5", stats[domain.StatusComplete])
	}
	if ts.IsZero() {
		t.Error("timestamp is zero")
	}
}
