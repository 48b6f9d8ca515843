package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quayside/vendorq/internal/domain"
)

const jobColumns = `
	id, vendor, status, payload, result, error_info,
	attempts, max_attempts, created_at, updated_at,
	processing_started_at, processing_completed_at`

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Create(ctx context.Context, job *domain.Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO vendorq.jobs(id, vendor, status, payload, attempts, max_attempts)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		RETURNING created_at, updated_at`,
		job.ID, string(job.Vendor), string(job.Status), string(payload), job.Attempts, job.MaxAttempts,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id string) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM vendorq.jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (s *Postgres) BeginAttempt(ctx context.Context, id string) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE vendorq.jobs
		SET status = 'processing',
		    attempts = attempts + 1,
		    processing_started_at = now(),
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'processing')
		  AND attempts < max_attempts
		RETURNING `+jobColumns, id)
	job, err := scanJob(row)
	if errors.Is(err, domain.ErrNotFound) {
		// Distinguish a missing job from a lost race against a terminal
		// transition or an exhausted attempt budget.
		return nil, s.conflictOrNotFound(ctx, id)
	}
	return job, err
}

func (s *Postgres) Complete(ctx context.Context, id string, result map[string]any) error {
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	ct, err := s.pool.Exec(ctx, `
		UPDATE vendorq.jobs
		SET status = 'complete',
		    result = $2::jsonb,
		    processing_completed_at = now(),
		    updated_at = now()
		WHERE id = $1 AND status = 'processing'`,
		id, string(b))
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return s.conflictOrNotFound(ctx, id)
	}
	return nil
}

func (s *Postgres) Fail(ctx context.Context, id string, info domain.ErrorInfo) error {
	b, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal error info: %w", err)
	}
	ct, err := s.pool.Exec(ctx, `
		UPDATE vendorq.jobs
		SET status = 'failed',
		    error_info = $2::jsonb,
		    processing_completed_at = now(),
		    updated_at = now()
		WHERE id = $1 AND status = 'processing'`,
		id, string(b))
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return s.conflictOrNotFound(ctx, id)
	}
	return nil
}

func (s *Postgres) CompareAndSetStatus(ctx context.Context, id string, expected, next domain.Status) error {
	if !domain.CanTransition(expected, next) {
		return domain.ErrConflict
	}
	ct, err := s.pool.Exec(ctx, `
		UPDATE vendorq.jobs
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`,
		id, string(expected), string(next))
	if err != nil {
		return fmt.Errorf("cas status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return s.conflictOrNotFound(ctx, id)
	}
	return nil
}

func (s *Postgres) Stats(ctx context.Context) (map[domain.Status]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM vendorq.jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.Status]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[domain.Status(status)] = count
	}
	return out, rows.Err()
}

// conflictOrNotFound resolves a zero-row conditional update into the right
// sentinel error.
func (s *Postgres) conflictOrNotFound(ctx context.Context, id string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM vendorq.jobs WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check job existence: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		j         domain.Job
		vendor    string
		status    string
		payload   []byte
		result    []byte
		errorInfo []byte
	)
	err := row.Scan(
		&j.ID, &vendor, &status, &payload, &result, &errorInfo,
		&j.Attempts, &j.MaxAttempts, &j.CreatedAt, &j.UpdatedAt,
		&j.ProcessingStartedAt, &j.ProcessingCompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	j.Vendor = domain.Vendor(vendor)
	j.Status = domain.Status(status)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &j.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &j.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if len(errorInfo) > 0 {
		var info domain.ErrorInfo
		if err := json.Unmarshal(errorInfo, &info); err != nil {
			return nil, fmt.Errorf("unmarshal error info: %w", err)
		}
		j.ErrorInfo = &info
	}
	return &j, nil
}
