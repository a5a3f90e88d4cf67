package store

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SortOrder int

const (
	Unsorted SortOrder = iota
	SortByCreatedTime
	SortByCreatedTimeDesc
	SortByName
)

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

func (b *BaseQuerier) apply(tx *gorm.DB) *gorm.DB {
	if b == nil {
		return tx
	}
	for _, fn := range b.QueryFn {
		tx = fn(tx)
	}
	return tx
}

func withSortOrder(sort SortOrder) func(tx *gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		switch sort {
		case SortByCreatedTime:
			return tx.Order("created_at")
		case SortByCreatedTimeDesc:
			return tx.Order("created_at DESC")
		case SortByName:
			return tx.Order("name")
		default:
			return tx
		}
	}
}

func withOffset(skip int) func(tx *gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if skip <= 0 {
			return tx
		}
		return tx.Offset(skip)
	}
}

func withLimit(limit int) func(tx *gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return tx
		}
		return tx.Limit(limit)
	}
}

type DatasetQueryFilter struct {
	BaseQuerier
}

func NewDatasetQueryFilter() *DatasetQueryFilter {
	return &DatasetQueryFilter{BaseQuerier{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}}
}

func (f *DatasetQueryFilter) ByRunID(runID uuid.UUID) *DatasetQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("run_id = ?", runID)
	})
	return f
}

func (f *DatasetQueryFilter) ByGenerated(generated bool) *DatasetQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("generated = ?", generated)
	})
	return f
}

type DatasetQueryOptions struct {
	BaseQuerier
}

func NewDatasetQueryOptions() *DatasetQueryOptions {
	return &DatasetQueryOptions{BaseQuerier{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}}
}

func (o *DatasetQueryOptions) WithSortOrder(sort SortOrder) *DatasetQueryOptions {
	o.QueryFn = append(o.QueryFn, withSortOrder(sort))
	return o
}

func (o *DatasetQueryOptions) WithOffset(skip int) *DatasetQueryOptions {
	o.QueryFn = append(o.QueryFn, withOffset(skip))
	return o
}

func (o *DatasetQueryOptions) WithLimit(limit int) *DatasetQueryOptions {
	o.QueryFn = append(o.QueryFn, withLimit(limit))
	return o
}

type JobQueryFilter struct {
	BaseQuerier
}

func NewJobQueryFilter() *JobQueryFilter {
	return &JobQueryFilter{BaseQuerier{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}}
}

// ByJobTypes keeps the jobs of any of the given types. An empty list keeps every job.
func (f *JobQueryFilter) ByJobTypes(types ...string) *JobQueryFilter {
	if len(types) == 0 {
		return f
	}
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("job_type IN ?", types)
	})
	return f
}

func (f *JobQueryFilter) ByStatus(statuses ...string) *JobQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status IN ?", statuses)
	})
	return f
}

func (f *JobQueryFilter) ByExperimentID(experimentID string) *JobQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("experiment_id = ?", experimentID)
	})
	return f
}

type JobQueryOptions struct {
	BaseQuerier
}

func NewJobQueryOptions() *JobQueryOptions {
	return &JobQueryOptions{BaseQuerier{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}}
}

func (o *JobQueryOptions) WithSortOrder(sort SortOrder) *JobQueryOptions {
	o.QueryFn = append(o.QueryFn, withSortOrder(sort))
	return o
}

func (o *JobQueryOptions) WithOffset(skip int) *JobQueryOptions {
	o.QueryFn = append(o.QueryFn, withOffset(skip))
	return o
}

func (o *JobQueryOptions) WithLimit(limit int) *JobQueryOptions {
	o.QueryFn = append(o.QueryFn, withLimit(limit))
	return o
}
