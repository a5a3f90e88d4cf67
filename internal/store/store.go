package store

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Dataset() Dataset
	Job() Job
	JobResult() JobResult
	Secret() Secret
	Close() error
}

type DataStore struct {
	db        *gorm.DB
	log       logrus.FieldLogger
	dataset   Dataset
	job       Job
	jobResult JobResult
	secret    Secret
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:        db,
		log:       logrus.New().WithField("component", "store"),
		dataset:   NewDatasetStore(db),
		job:       NewJobStore(db),
		jobResult: NewJobResultStore(db),
		secret:    NewSecretStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db, s.log)
}

func (s *DataStore) Dataset() Dataset {
	return s.dataset
}

func (s *DataStore) Job() Job {
	return s.job
}

func (s *DataStore) JobResult() JobResult {
	return s.jobResult
}

func (s *DataStore) Secret() Secret {
	return s.secret
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func getDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}
