package service_test

import (
	"context"
	"sync"

	"github.com/mozilla-ai/lumigator/internal/events"
	"github.com/mozilla-ai/lumigator/internal/service"
	"github.com/mozilla-ai/lumigator/internal/service/mappers"
	"github.com/mozilla-ai/lumigator/internal/store/model"
	"github.com/mozilla-ai/lumigator/internal/tracking"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingPublisher struct {
	mu        sync.Mutex
	workflows []events.WorkflowEvent
	jobs      []events.JobEvent
}

func (r *recordingPublisher) Publish(_ context.Context, kind string, body any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case events.WorkflowMessageKind:
		r.workflows = append(r.workflows, body.(events.WorkflowEvent))
	case events.JobMessageKind:
		r.jobs = append(r.jobs, body.(events.JobEvent))
	}
	return nil
}

func (r *recordingPublisher) workflowStatuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	statuses := make([]string, 0, len(r.workflows))
	for _, e := range r.workflows {
		statuses = append(statuses, e.Status)
	}
	return statuses
}

func (r *recordingPublisher) jobEvents() []events.JobEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.JobEvent(nil), r.jobs...)
}

var _ = Describe("lifecycle events", func() {
	It("publishes workflow and job status changes", func() {
		f := newFixture()
		publisher := &recordingPublisher{}
		f.jobs.WithEvents(publisher)
		f.workflows.WithEvents(publisher)

		dataset := f.uploadCSV("data.csv", testDatasetCSV)
		experiment, err := f.experiments.Create(context.TODO(), mappers.ExperimentCreateForm{
			Name:       "summaries",
			Task:       service.TaskSummarization,
			Dataset:    dataset.ID,
			MaxSamples: 2,
		})
		Expect(err).To(BeNil())

		f.completeJobs(func(kind string) map[string]any {
			if kind == string(model.JobTypeEvaluation) {
				return evaluationResult()
			}
			return inferenceResult(service.DefaultOutputField)
		})

		workflow, err := f.workflows.Create(context.TODO(), mappers.WorkflowCreateForm{
			Name:         "bart",
			ExperimentID: experiment.ID,
			Model:        "facebook/bart-large-cnn",
		})
		Expect(err).To(BeNil())

		Eventually(publisher.workflowStatuses, "5s", "20ms").Should(Equal([]string{
			string(tracking.WorkflowStatusCreated),
			string(tracking.WorkflowStatusRunning),
			string(tracking.WorkflowStatusSucceeded),
		}))

		jobs := publisher.jobEvents()
		Expect(jobs).NotTo(BeEmpty())
		Expect(jobs[0].JobType).To(Equal(string(model.JobTypeInference)))
		Expect(jobs[0].Status).To(Equal(model.JobStatusPending))
		Expect(jobs[0].ExperimentID).To(HaveValue(Equal(experiment.ID)))
		Expect(jobs).To(ContainElement(HaveField("Status", model.JobStatusSucceeded)))

		publisher.mu.Lock()
		defer publisher.mu.Unlock()
		Expect(publisher.workflows).To(HaveEach(HaveField("WorkflowID", workflow.ID)))
		Expect(publisher.workflows).To(HaveEach(HaveField("ExperimentID", experiment.ID)))
	})
})
