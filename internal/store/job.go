package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mozilla-ai/lumigator/internal/store/model"
	"gorm.io/gorm"
)

type Job interface {
	Create(ctx context.Context, job model.Job) (*model.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Job, error)
	List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) (model.JobList, error)
	Count(ctx context.Context, filter *JobQueryFilter) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*model.Job, error)
	UpdateLogs(ctx context.Context, id uuid.UUID, logs string) error
	Fail(ctx context.Context, id uuid.UUID, reason string) (*model.Job, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job model.Job) (*model.Job, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = model.JobStatusCreated
	}
	if err := getDB(ctx, s.db).Create(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	if err := getDB(ctx, s.db).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", err)
	}
	return &job, nil
}

func (s *JobStore) List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) (model.JobList, error) {
	var jobs model.JobList
	tx := getDB(ctx, s.db).Model(&jobs)

	if filter != nil {
		tx = filter.apply(tx)
	}
	if opts != nil {
		tx = opts.apply(tx)
	}

	if err := tx.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *JobStore) Count(ctx context.Context, filter *JobQueryFilter) (int64, error) {
	var count int64
	tx := getDB(ctx, s.db).Model(&model.Job{})
	if filter != nil {
		tx = filter.apply(tx)
	}
	if err := tx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateStatus moves a job forward to status. A job already past status, or in a terminal
// status, is left untouched and returned as is.
func (s *JobStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*model.Job, error) {
	result := getDB(ctx, s.db).Model(&model.Job{}).
		Where("id = ? AND status IN ?", id, model.JobStatusesBefore(status)).
		Update("status", status)
	if result.Error != nil {
		return nil, fmt.Errorf("updating job status: %w", result.Error)
	}
	return s.Get(ctx, id)
}

func (s *JobStore) UpdateLogs(ctx context.Context, id uuid.UUID, logs string) error {
	result := getDB(ctx, s.db).Model(&model.Job{}).Where("id = ?", id).Update("logs", logs)
	if result.Error != nil {
		return fmt.Errorf("updating job logs: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Fail marks a non terminal job as failed and keeps reason as its logs.
func (s *JobStore) Fail(ctx context.Context, id uuid.UUID, reason string) (*model.Job, error) {
	result := getDB(ctx, s.db).Model(&model.Job{}).
		Where("id = ? AND status NOT IN ?", id, model.TerminalJobStatuses).
		Updates(map[string]any{"status": model.JobStatusFailed, "logs": reason})
	if result.Error != nil {
		return nil, fmt.Errorf("failing job: %w", result.Error)
	}
	return s.Get(ctx, id)
}

func (s *JobStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := getDB(ctx, s.db).Delete(&model.Job{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
