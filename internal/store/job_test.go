package store_test

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mozilla-ai/lumigator/internal/store"
	"github.com/mozilla-ai/lumigator/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

const (
	insertJobStm = "INSERT INTO jobs (id, name, description, job_type, status, created_at) VALUES ('%s', '%s', '', '%s', '%s', '%s');"
)

var _ = Describe("job store", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
	)

	BeforeAll(func() {
		gormdb = newTestDB()
		s = store.NewStore(gormdb)
	})

	AfterAll(func() {
		s.Close()
	})

	Context("status", func() {
		It("moves a job forward", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "job", model.JobTypeInference, model.JobStatusCreated, "2025-01-01 10:00:00"))
			Expect(tx.Error).To(BeNil())

			job, err := s.Job().UpdateStatus(context.TODO(), id, model.JobStatusRunning)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusRunning))
		})

		It("never moves a job backwards", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "job", model.JobTypeInference, model.JobStatusRunning, "2025-01-01 10:00:00"))
			Expect(tx.Error).To(BeNil())

			job, err := s.Job().UpdateStatus(context.TODO(), id, model.JobStatusPending)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusRunning))

			job, err = s.Job().UpdateStatus(context.TODO(), id, model.JobStatusFailed)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
		})

		It("never leaves a terminal status", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "job", model.JobTypeInference, model.JobStatusSucceeded, "2025-01-01 10:00:00"))
			Expect(tx.Error).To(BeNil())

			job, err := s.Job().UpdateStatus(context.TODO(), id, model.JobStatusRunning)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusSucceeded))

			job, err = s.Job().Fail(context.TODO(), id, "boom")
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusSucceeded))
			Expect(job.Logs).To(BeNil())
		})

		It("fails a job and keeps the reason", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "job", model.JobTypeEvaluation, model.JobStatusCreated, "2025-01-01 10:00:00"))
			Expect(tx.Error).To(BeNil())

			job, err := s.Job().Fail(context.TODO(), id, "submission failed")
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
			Expect(*job.Logs).To(Equal("submission failed"))
		})

		It("fails to update a missing job", func() {
			_, err := s.Job().UpdateStatus(context.TODO(), uuid.New(), model.JobStatusRunning)
			Expect(err).To(Equal(store.ErrRecordNotFound))

			err = s.Job().UpdateLogs(context.TODO(), uuid.New(), "logs")
			Expect(err).To(Equal(store.ErrRecordNotFound))
		})
	})

	Context("list", func() {
		BeforeEach(func() {
			rows := []struct {
				kind model.JobType
				ts   string
			}{
				{model.JobTypeInference, "2025-01-01 10:00:00"},
				{model.JobTypeEvaluation, "2025-01-02 10:00:00"},
				{model.JobTypeAnnotation, "2025-01-03 10:00:00"},
				{model.JobTypeInference, "2025-01-04 10:00:00"},
			}
			for i, r := range rows {
				tx := gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.New(), fmt.Sprintf("job-%d", i), r.kind, model.JobStatusCreated, r.ts))
				Expect(tx.Error).To(BeNil())
			}
		})

		It("lists every job when no type is given", func() {
			jobs, err := s.Job().List(context.TODO(), store.NewJobQueryFilter().ByJobTypes(), nil)
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(4))
		})

		It("filters jobs by type", func() {
			filter := store.NewJobQueryFilter().ByJobTypes(string(model.JobTypeInference), string(model.JobTypeAnnotation))
			jobs, err := s.Job().List(context.TODO(), filter, store.NewJobQueryOptions().WithSortOrder(store.SortByCreatedTimeDesc))
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(3))
			Expect(jobs[0].Name).To(Equal("job-3"))

			count, err := s.Job().Count(context.TODO(), filter)
			Expect(err).To(BeNil())
			Expect(count).To(BeNumerically("==", 3))
		})
	})

	Context("results", func() {
		It("upserts the result of a job", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "job", model.JobTypeEvaluation, model.JobStatusSucceeded, "2025-01-01 10:00:00"))
			Expect(tx.Error).To(BeNil())

			_, err := s.JobResult().Upsert(context.TODO(), model.JobResult{JobID: id, Metrics: model.JSONMap{"rouge": 0.5}})
			Expect(err).To(BeNil())

			result, err := s.JobResult().Upsert(context.TODO(), model.JobResult{JobID: id, Metrics: model.JSONMap{"rouge": 0.75}})
			Expect(err).To(BeNil())
			Expect(result.Metrics).To(HaveKeyWithValue("rouge", 0.75))

			count := 0
			Expect(gormdb.Raw("SELECT COUNT(*) FROM job_results;").Scan(&count).Error).To(BeNil())
			Expect(count).To(Equal(1))
		})

		It("fails to get the result of an unknown job", func() {
			_, err := s.JobResult().GetByJobID(context.TODO(), uuid.New())
			Expect(err).To(Equal(store.ErrRecordNotFound))
		})
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM job_results;")
		gormdb.Exec("DELETE FROM jobs;")
	})
})
