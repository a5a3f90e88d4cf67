package service_test

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/mozilla-ai/lumigator/internal/service"
	"github.com/mozilla-ai/lumigator/internal/service/mappers"
	"github.com/mozilla-ai/lumigator/internal/store/model"
	"github.com/mozilla-ai/lumigator/internal/tracking"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("experiment service", func() {
	var (
		f       *fixture
		dataset *model.Dataset
	)

	create := func(name string) *tracking.Experiment {
		experiment, err := f.experiments.Create(context.TODO(), mappers.ExperimentCreateForm{
			Name:       name,
			Task:       service.TaskSummarization,
			Dataset:    dataset.ID,
			MaxSamples: 2,
		})
		Expect(err).To(BeNil())
		return experiment
	}

	BeforeEach(func() {
		f = newFixture()
		dataset = f.uploadCSV("data.csv", testDatasetCSV)
	})

	Context("create", func() {
		It("records the task and dataset", func() {
			experiment := create("summaries")
			Expect(experiment.TaskDefinition.Task).To(Equal(service.TaskSummarization))
			Expect(experiment.Dataset).To(Equal(dataset.ID.String()))
			Expect(experiment.MaxSamples).To(Equal(2))
		})

		It("rejects a translation without languages", func() {
			_, err := f.experiments.Create(context.TODO(), mappers.ExperimentCreateForm{
				Name:    "translation",
				Task:    service.TaskTranslation,
				Dataset: dataset.ID,
			})
			Expect(reflect.TypeOf(err)).To(Equal(reflect.TypeOf(&service.ErrValidation{})))
		})

		It("rejects an unknown dataset", func() {
			_, err := f.experiments.Create(context.TODO(), mappers.ExperimentCreateForm{
				Name:    "orphan",
				Task:    service.TaskSummarization,
				Dataset: uuid.New(),
			})
			Expect(reflect.TypeOf(err)).To(Equal(reflect.TypeOf(&service.ErrResourceNotFound{})))
		})

		It("rejects a duplicate name", func() {
			create("summaries")
			_, err := f.experiments.Create(context.TODO(), mappers.ExperimentCreateForm{
				Name:    "summaries",
				Task:    service.TaskSummarization,
				Dataset: dataset.ID,
			})
			Expect(reflect.TypeOf(err)).To(Equal(reflect.TypeOf(&service.ErrValidation{})))
		})
	})

	Context("get", func() {
		It("returns the experiment with its workflows", func() {
			f.completeJobs(func(kind string) map[string]any {
				if kind == string(model.JobTypeEvaluation) {
					return evaluationResult()
				}
				return inferenceResult(service.DefaultOutputField)
			})
			experiment := create("summaries")

			workflow, err := f.workflows.Create(context.TODO(), mappers.WorkflowCreateForm{
				Name:         "bart",
				ExperimentID: experiment.ID,
				Model:        "facebook/bart-large-cnn",
			})
			Expect(err).To(BeNil())
			Eventually(func() tracking.WorkflowStatus {
				w, _ := f.tracking.Workflow(workflow.ID)
				return w.Status
			}, "5s", "20ms").Should(Equal(tracking.WorkflowStatusSucceeded))

			got, err := f.experiments.Get(context.TODO(), experiment.ID)
			Expect(err).To(BeNil())
			Expect(got.Workflows).To(HaveLen(1))
			Expect(got.Workflows[0].ID).To(Equal(workflow.ID))
			Expect(got.Workflows[0].Jobs).To(HaveLen(2))
		})

		It("fails for an unknown experiment", func() {
			_, err := f.experiments.Get(context.TODO(), "404")
			Expect(reflect.TypeOf(err)).To(Equal(reflect.TypeOf(&service.ErrResourceNotFound{})))
		})
	})

	Context("list", func() {
		It("pages experiments and reports the total", func() {
			for i := 0; i < 3; i++ {
				create(fmt.Sprintf("experiment-%d", i))
			}

			experiments, total, err := f.experiments.List(context.TODO(), 1, 1)
			Expect(err).To(BeNil())
			Expect(total).To(Equal(3))
			Expect(experiments).To(HaveLen(1))
		})
	})

	Context("delete", func() {
		It("deletes the experiment and its running workflows", func() {
			experiment := create("summaries")
			workflow, err := f.workflows.Create(context.TODO(), mappers.WorkflowCreateForm{
				Name:         "bart",
				ExperimentID: experiment.ID,
				Model:        "facebook/bart-large-cnn",
			})
			Expect(err).To(BeNil())
			Eventually(func() int {
				w, _ := f.tracking.Workflow(workflow.ID)
				return len(w.Jobs)
			}, "5s", "20ms").Should(Equal(1))

			Expect(f.experiments.Delete(context.TODO(), experiment.ID)).To(Succeed())

			_, found := f.tracking.Workflow(workflow.ID)
			Expect(found).To(BeFalse())
			Expect(f.supervisor.IsRunning(workflow.ID)).To(BeFalse())

			_, err = f.experiments.Get(context.TODO(), experiment.ID)
			Expect(reflect.TypeOf(err)).To(Equal(reflect.TypeOf(&service.ErrResourceNotFound{})))
		})

		It("fails for an unknown experiment", func() {
			err := f.experiments.Delete(context.TODO(), "404")
			Expect(reflect.TypeOf(err)).To(Equal(reflect.TypeOf(&service.ErrResourceNotFound{})))
		})
	})
})
