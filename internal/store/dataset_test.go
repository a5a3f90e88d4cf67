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
	insertDatasetStm = "INSERT INTO datasets (id, filename, format, size, ground_truth, run_id, generated, created_at) VALUES ('%s', '%s', 'job', %d, %t, %s, %t, '%s');"
)

var _ = Describe("dataset store", Ordered, func() {
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

	Context("create and get", func() {
		It("successfully creates a dataset", func() {
			runID := uuid.New()
			generatedBy := "facebook/bart-large-cnn"

			dataset, err := s.Dataset().Create(context.TODO(), model.Dataset{
				Filename:    "dataset.csv",
				Format:      model.DatasetFormatJob,
				Size:        42,
				GroundTruth: true,
				RunID:       &runID,
				Generated:   true,
				GeneratedBy: &generatedBy,
			})
			Expect(err).To(BeNil())
			Expect(dataset.ID).ToNot(Equal(uuid.Nil))

			stored, err := s.Dataset().Get(context.TODO(), dataset.ID)
			Expect(err).To(BeNil())
			Expect(stored.Filename).To(Equal("dataset.csv"))
			Expect(stored.Size).To(BeNumerically("==", 42))
			Expect(stored.GroundTruth).To(BeTrue())
			Expect(stored.Generated).To(BeTrue())
			Expect(*stored.RunID).To(Equal(runID))
			Expect(*stored.GeneratedBy).To(Equal(generatedBy))
		})

		It("fails to get a missing dataset", func() {
			_, err := s.Dataset().Get(context.TODO(), uuid.New())
			Expect(err).To(Equal(store.ErrRecordNotFound))
		})

		It("gets the dataset produced by a job", func() {
			runID := uuid.New()
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertDatasetStm, id, "predictions.csv", 10, true, fmt.Sprintf("'%s'", runID), true, "2025-01-01 10:00:00"))
			Expect(tx.Error).To(BeNil())

			dataset, err := s.Dataset().GetByRunID(context.TODO(), runID)
			Expect(err).To(BeNil())
			Expect(dataset.ID).To(Equal(id))

			_, err = s.Dataset().GetByRunID(context.TODO(), uuid.New())
			Expect(err).To(Equal(store.ErrRecordNotFound))
		})
	})

	Context("list", func() {
		BeforeEach(func() {
			for i, ts := range []string{"2025-01-01 10:00:00", "2025-01-02 10:00:00", "2025-01-03 10:00:00"} {
				tx := gormdb.Exec(fmt.Sprintf(insertDatasetStm, uuid.New(), fmt.Sprintf("d%d.csv", i), 10, false, "NULL", false, ts))
				Expect(tx.Error).To(BeNil())
			}
		})

		It("lists every dataset", func() {
			datasets, err := s.Dataset().List(context.TODO(), store.NewDatasetQueryFilter(), nil)
			Expect(err).To(BeNil())
			Expect(datasets).To(HaveLen(3))

			count, err := s.Dataset().Count(context.TODO(), nil)
			Expect(err).To(BeNil())
			Expect(count).To(BeNumerically("==", 3))
		})

		It("pages through the datasets", func() {
			opts := store.NewDatasetQueryOptions().WithSortOrder(store.SortByCreatedTime).WithOffset(1).WithLimit(1)
			datasets, err := s.Dataset().List(context.TODO(), nil, opts)
			Expect(err).To(BeNil())
			Expect(datasets).To(HaveLen(1))
			Expect(datasets[0].Filename).To(Equal("d1.csv"))
		})
	})

	Context("delete", func() {
		It("deletes a dataset once", func() {
			id := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertDatasetStm, id, "d.csv", 10, false, "NULL", false, "2025-01-01 10:00:00"))
			Expect(tx.Error).To(BeNil())

			Expect(s.Dataset().Delete(context.TODO(), id)).To(BeNil())
			Expect(s.Dataset().Delete(context.TODO(), id)).To(Equal(store.ErrRecordNotFound))
		})
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM datasets;")
	})
})
