package store_test

import (
	"context"
	"errors"

	"github.com/google/uuid"
	st "github.com/mozilla-ai/lumigator/internal/store"
	"github.com/mozilla-ai/lumigator/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("Store", Ordered, func() {
	var (
		store  st.Store
		gormDB *gorm.DB
	)

	BeforeAll(func() {
		gormDB = newTestDB()
		store = st.NewStore(gormDB)
		Expect(store).ToNot(BeNil())
	})

	AfterAll(func() {
		store.Close()
	})

	Context("transaction", func() {
		It("inserts a secret successfully", func() {
			ctx, err := store.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			created, err := store.Secret().Save(ctx, model.Secret{Name: "openai_api_key", EncryptedValue: "abc"})
			Expect(err).To(BeNil())
			Expect(created).To(BeTrue())

			_, cerr := st.Commit(ctx)
			Expect(cerr).To(BeNil())

			count := 0
			err = gormDB.Raw("SELECT COUNT(*) from secrets;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(1))
		})

		It("rolls back a job successfully", func() {
			ctx, err := store.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			job, err := store.Job().Create(ctx, model.Job{ID: uuid.New(), Name: "job", JobType: model.JobTypeInference})
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusCreated))

			// visible in the same transaction
			jobs, err := store.Job().List(ctx, st.NewJobQueryFilter(), nil)
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))

			_, cerr := st.Rollback(ctx)
			Expect(cerr).To(BeNil())

			count := 0
			err = gormDB.Raw("SELECT COUNT(*) from jobs;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(0))
		})

		It("joins the transaction already in the context", func() {
			ctx, err := store.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			nested, err := store.NewTransactionContext(ctx)
			Expect(err).To(BeNil())
			Expect(nested).To(Equal(ctx))

			_, cerr := st.Rollback(ctx)
			Expect(cerr).To(BeNil())
		})

		It("commits when the function succeeds", func() {
			err := st.InTransaction(context.TODO(), store, func(ctx context.Context) error {
				_, err := store.Secret().Save(ctx, model.Secret{Name: "hf_token", EncryptedValue: "abc"})
				return err
			})
			Expect(err).To(BeNil())

			count := 0
			Expect(gormDB.Raw("SELECT COUNT(*) from secrets;").Scan(&count).Error).To(BeNil())
			Expect(count).To(Equal(1))
		})

		It("rolls back when the function fails", func() {
			failure := errors.New("upload failed")
			err := st.InTransaction(context.TODO(), store, func(ctx context.Context) error {
				if _, err := store.Secret().Save(ctx, model.Secret{Name: "hf_token", EncryptedValue: "abc"}); err != nil {
					return err
				}
				return failure
			})
			Expect(errors.Is(err, failure)).To(BeTrue())

			count := 0
			Expect(gormDB.Raw("SELECT COUNT(*) from secrets;").Scan(&count).Error).To(BeNil())
			Expect(count).To(Equal(0))
		})

		AfterEach(func() {
			gormDB.Exec("DELETE from secrets;")
			gormDB.Exec("DELETE from jobs;")
		})
	})
})
