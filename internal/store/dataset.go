package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mozilla-ai/lumigator/internal/store/model"
	"gorm.io/gorm"
)

type Dataset interface {
	Create(ctx context.Context, dataset model.Dataset) (*model.Dataset, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Dataset, error)
	GetByRunID(ctx context.Context, runID uuid.UUID) (*model.Dataset, error)
	List(ctx context.Context, filter *DatasetQueryFilter, opts *DatasetQueryOptions) (model.DatasetList, error)
	Count(ctx context.Context, filter *DatasetQueryFilter) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type DatasetStore struct {
	db *gorm.DB
}

// Make sure we conform to Dataset interface
var _ Dataset = (*DatasetStore)(nil)

func NewDatasetStore(db *gorm.DB) Dataset {
	return &DatasetStore{db: db}
}

func (d *DatasetStore) Create(ctx context.Context, dataset model.Dataset) (*model.Dataset, error) {
	if dataset.ID == uuid.Nil {
		dataset.ID = uuid.New()
	}
	if err := getDB(ctx, d.db).Create(&dataset).Error; err != nil {
		return nil, err
	}
	return &dataset, nil
}

func (d *DatasetStore) Get(ctx context.Context, id uuid.UUID) (*model.Dataset, error) {
	var dataset model.Dataset
	if err := getDB(ctx, d.db).First(&dataset, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &dataset, nil
}

// GetByRunID returns the most recent dataset produced by the job runID.
func (d *DatasetStore) GetByRunID(ctx context.Context, runID uuid.UUID) (*model.Dataset, error) {
	var dataset model.Dataset
	err := getDB(ctx, d.db).Where("run_id = ?", runID).Order("created_at DESC").First(&dataset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &dataset, nil
}

func (d *DatasetStore) List(ctx context.Context, filter *DatasetQueryFilter, opts *DatasetQueryOptions) (model.DatasetList, error) {
	var datasets model.DatasetList
	tx := getDB(ctx, d.db).Model(&datasets)

	if filter != nil {
		tx = filter.apply(tx)
	}
	if opts != nil {
		tx = opts.apply(tx)
	}

	if err := tx.Find(&datasets).Error; err != nil {
		return nil, err
	}
	return datasets, nil
}

func (d *DatasetStore) Count(ctx context.Context, filter *DatasetQueryFilter) (int64, error) {
	var count int64
	tx := getDB(ctx, d.db).Model(&model.Dataset{})
	if filter != nil {
		tx = filter.apply(tx)
	}
	if err := tx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (d *DatasetStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := getDB(ctx, d.db).Delete(&model.Dataset{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
