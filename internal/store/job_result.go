package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mozilla-ai/lumigator/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JobResult interface {
	Upsert(ctx context.Context, result model.JobResult) (*model.JobResult, error)
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*model.JobResult, error)
}

type JobResultStore struct {
	db *gorm.DB
}

var _ JobResult = (*JobResultStore)(nil)

func NewJobResultStore(db *gorm.DB) JobResult {
	return &JobResultStore{db: db}
}

// Upsert stores the result of a job, replacing the metrics and parameters of a previous one.
func (s *JobResultStore) Upsert(ctx context.Context, result model.JobResult) (*model.JobResult, error) {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}

	err := getDB(ctx, s.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"metrics", "parameters"}),
	}).Create(&result).Error
	if err != nil {
		return nil, err
	}
	return s.GetByJobID(ctx, result.JobID)
}

func (s *JobResultStore) GetByJobID(ctx context.Context, jobID uuid.UUID) (*model.JobResult, error) {
	var result model.JobResult
	if err := getDB(ctx, s.db).First(&result, "job_id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}
