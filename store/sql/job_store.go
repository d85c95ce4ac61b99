package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-crm/jobs"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusFailed     = "failed"
)

type JobRecord struct {
	ID             string
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	Status         string
	Attempts       int
	RunAt          time.Time
	LastError      string
}

// JobStore is a SQL backed go-job queue. Enqueue enlists in the caller's
// transaction so jobs commit or roll back with the surrounding work.
type JobStore struct {
	db   *bun.DB
	repo repository.Repository[*jobRecord]
	now  func() time.Time
}

func NewJobStore(db *bun.DB) (*JobStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*jobRecord](db, jobHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid job repository wiring: %w", err)
		}
	}
	return &JobStore{db: db, repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Enqueue inserts a pending job. A duplicate idempotency key is a no-op and
// the receipt names the job already stored under that key.
func (s *JobStore) Enqueue(ctx context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	if s == nil || s.db == nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("sqlstore: job store is not configured")
	}
	if msg == nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("sqlstore: execution message is required")
	}
	jobID := strings.TrimSpace(msg.JobID)
	if jobID == "" {
		return queue.EnqueueReceipt{}, fmt.Errorf("sqlstore: job id is required")
	}
	key := strings.TrimSpace(msg.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
		msg.IdempotencyKey = key
	}
	now := s.now()
	record := &jobRecord{
		ID:             uuid.NewString(),
		JobID:          jobID,
		Payload:        copyAnyMap(msg.Parameters),
		IdempotencyKey: key,
		Status:         JobStatusPending,
		RunAt:          now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	db := IDB(ctx, s.db)
	res, err := db.NewInsert().
		Model(record).
		On("CONFLICT (idempotency_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return queue.EnqueueReceipt{}, err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		existing := new(jobRecord)
		if err := db.NewSelect().Model(existing).Where("idempotency_key = ?", key).Limit(1).Scan(ctx); err != nil {
			return queue.EnqueueReceipt{}, err
		}
		return queue.EnqueueReceipt{DispatchID: existing.ID, EnqueuedAt: existing.CreatedAt}, nil
	}
	return queue.EnqueueReceipt{DispatchID: record.ID, EnqueuedAt: now}, nil
}

// Dequeue claims the next ready job or returns jobs.ErrNoJob.
func (s *JobStore) Dequeue(ctx context.Context) (queue.Delivery, error) {
	claimed, err := s.ClaimBatch(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(claimed) == 0 {
		return nil, jobs.ErrNoJob
	}
	return claimed[0], nil
}

func (s *JobStore) ClaimBatch(ctx context.Context, limit int) ([]queue.Delivery, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: job store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	now := s.now()
	var records []jobRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := `
WITH claimed AS (
	SELECT id
	FROM crm_jobs
	WHERE status = ?
	  AND run_at <= ?
	ORDER BY run_at ASC, created_at ASC
	LIMIT ?
)
UPDATE crm_jobs
SET status = ?, attempts = attempts + 1, updated_at = ?
WHERE id IN (SELECT id FROM claimed)
  AND status = ?
RETURNING
	id,
	job_id,
	payload,
	idempotency_key,
	status,
	attempts,
	run_at,
	last_error,
	created_at,
	updated_at
`
		return tx.NewRaw(
			query,
			JobStatusPending,
			now,
			limit,
			JobStatusProcessing,
			now,
			JobStatusPending,
		).Scan(ctx, &records)
	})
	if err != nil {
		return nil, err
	}
	out := make([]queue.Delivery, 0, len(records))
	for _, record := range records {
		out = append(out, &jobDelivery{store: s, record: record})
	}
	return out, nil
}

func (s *JobStore) GetByIdempotencyKey(ctx context.Context, key string) (JobRecord, error) {
	if s == nil || s.repo == nil {
		return JobRecord{}, fmt.Errorf("sqlstore: job store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return JobRecord{}, fmt.Errorf("sqlstore: idempotency key is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("idempotency_key", "=", key),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return JobRecord{}, err
	}
	if len(records) == 0 || records[0] == nil {
		return JobRecord{}, notFound("job", key)
	}
	return toJobRecord(*records[0]), nil
}

// List returns jobs of one kind, or all jobs when jobID is empty.
func (s *JobStore) List(ctx context.Context, jobID string) ([]JobRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: job store is not configured")
	}
	var records []jobRecord
	query := IDB(ctx, s.db).NewSelect().Model(&records).Order("created_at ASC", "id ASC")
	if trimmed := strings.TrimSpace(jobID); trimmed != "" {
		query = query.Where("job_id = ?", trimmed)
	}
	if err := query.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	out := make([]JobRecord, 0, len(records))
	for _, record := range records {
		out = append(out, toJobRecord(record))
	}
	return out, nil
}

func (s *JobStore) markDone(ctx context.Context, id string) error {
	_, err := s.db.NewUpdate().
		Model((*jobRecord)(nil)).
		Set("status = ?", JobStatusDone).
		Set("last_error = ?", "").
		Set("updated_at = ?", s.now()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// markRetry reschedules a retry after its delay; every other disposition is
// terminal and marks the job failed.
func (s *JobStore) markRetry(ctx context.Context, id string, opts queue.NackOptions) error {
	now := s.now()
	status := JobStatusPending
	runAt := now.Add(opts.Delay)
	if opts.Disposition != queue.NackDispositionRetry {
		status = JobStatusFailed
		runAt = now
	}
	_, err := s.db.NewUpdate().
		Model((*jobRecord)(nil)).
		Set("status = ?", status).
		Set("run_at = ?", runAt).
		Set("last_error = ?", strings.TrimSpace(opts.Reason)).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

type jobDelivery struct {
	store  *JobStore
	record jobRecord
}

func (d *jobDelivery) Message() *job.ExecutionMessage {
	if d == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          d.record.JobID,
		Parameters:     copyAnyMap(d.record.Payload),
		IdempotencyKey: d.record.IdempotencyKey,
	}
}

func (d *jobDelivery) Attempt() int {
	if d == nil {
		return 0
	}
	return d.record.Attempts
}

func (d *jobDelivery) Ack(ctx context.Context) error {
	if d == nil || d.store == nil {
		return fmt.Errorf("sqlstore: job delivery is not configured")
	}
	return d.store.markDone(ctx, d.record.ID)
}

func (d *jobDelivery) Nack(ctx context.Context, opts queue.NackOptions) error {
	if d == nil || d.store == nil {
		return fmt.Errorf("sqlstore: job delivery is not configured")
	}
	if err := queue.ValidateNackOptions(opts); err != nil {
		return fmt.Errorf("sqlstore: nack %s: %w", d.record.ID, err)
	}
	return d.store.markRetry(ctx, d.record.ID, opts)
}

func toJobRecord(record jobRecord) JobRecord {
	return JobRecord{
		ID:             record.ID,
		JobID:          record.JobID,
		Parameters:     copyAnyMap(record.Payload),
		IdempotencyKey: record.IdempotencyKey,
		Status:         record.Status,
		Attempts:       record.Attempts,
		RunAt:          record.RunAt,
		LastError:      record.LastError,
	}
}
