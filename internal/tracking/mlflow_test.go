package tracking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mozilla-ai/lumigator/internal/client"
	"github.com/mozilla-ai/lumigator/pkg/artifact"
	"github.com/mozilla-ai/lumigator/pkg/artifact/artifacttest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("mlflow tracking", func() {
	var (
		api       *fakeMLflow
		artifacts *artifacttest.MemoryStore
		tracking  *MLflowTracking
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.TODO()
		api = newFakeMLflow()
		artifacts = artifacttest.NewMemoryStore()
		tracking = newMLflowTracking(api, artifacts, "0.2.1")
		tracking.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 123456000, time.UTC) }
	})

	newExperiment := func(name string) *Experiment {
		exp, err := tracking.CreateExperiment(ctx, ExperimentCreate{
			Name:           name,
			Description:    "desc",
			TaskDefinition: TaskDefinition{Task: "summarization"},
			Dataset:        uuid.New(),
			MaxSamples:     10,
		})
		Expect(err).To(BeNil())
		return exp
	}

	Context("experiments", func() {
		It("creates an experiment with its tags", func() {
			exp := newExperiment("exp")
			Expect(exp.Name).To(Equal("exp"))
			Expect(exp.Description).To(Equal("desc"))
			Expect(exp.MaxSamples).To(Equal(10))
			Expect(exp.TaskDefinition.Task).To(Equal("summarization"))
			Expect(api.experiments[exp.ID].Tag("lumigator_version")).To(Equal("0.2.1"))
		})

		It("retries a conflicting name with a timestamp suffix", func() {
			newExperiment("exp")
			exp := newExperiment("exp")
			Expect(exp.Name).To(Equal("exp_20250102030405123456"))
		})

		It("hides deleted experiments", func() {
			exp := newExperiment("exp")
			Expect(tracking.DeleteExperiment(ctx, exp.ID)).To(Succeed())

			_, err := tracking.GetExperiment(ctx, exp.ID)
			Expect(err).To(MatchError(ErrNotFound))

			_, err = tracking.GetExperiment(ctx, "404")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("pages through experiments", func() {
			newExperiment("a")
			newExperiment("b")
			newExperiment("c")

			items, total, err := tracking.ListExperiments(ctx, 1, 1)
			Expect(err).To(BeNil())
			Expect(total).To(Equal(3))
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("b"))

			items, _, err = tracking.ListExperiments(ctx, 5, 0)
			Expect(err).To(BeNil())
			Expect(items).To(BeEmpty())
		})
	})

	Context("workflows", func() {
		var exp *Experiment

		BeforeEach(func() {
			exp = newExperiment("exp")
		})

		It("creates a workflow in created state", func() {
			wf, err := tracking.CreateWorkflow(ctx, WorkflowCreate{ExperimentID: exp.ID, Name: "wf", Model: "gpt-4o"})
			Expect(err).To(BeNil())
			Expect(wf.Status).To(Equal(WorkflowStatusCreated))
			Expect(api.runs[wf.ID].Info.Status).To(Equal(client.RunStatusScheduled))

			ids, err := tracking.ListWorkflowIDs(ctx, exp.ID)
			Expect(err).To(BeNil())
			Expect(ids).To(Equal([]string{wf.ID}))
		})

		It("maps the status to the run status", func() {
			wf, err := tracking.CreateWorkflow(ctx, WorkflowCreate{ExperimentID: exp.ID, Name: "wf"})
			Expect(err).To(BeNil())

			Expect(tracking.UpdateWorkflowStatus(ctx, wf.ID, WorkflowStatusRunning)).To(Succeed())
			Expect(api.runs[wf.ID].Info.Status).To(Equal(client.RunStatusRunning))
			Expect(tracking.UpdateWorkflowStatus(ctx, wf.ID, WorkflowStatusFailed)).To(Succeed())
			Expect(api.runs[wf.ID].Info.Status).To(Equal(client.RunStatusFailed))

			details, err := tracking.GetWorkflow(ctx, wf.ID)
			Expect(err).To(BeNil())
			Expect(details.Status).To(Equal(WorkflowStatusFailed))
			Expect(details.ArtifactsDownloadURL).To(BeEmpty())
		})

		It("compiles the results of a succeeded workflow once", func() {
			wf, err := tracking.CreateWorkflow(ctx, WorkflowCreate{ExperimentID: exp.ID, Name: "wf"})
			Expect(err).To(BeNil())

			inference := artifact.NewJobResultObject()
			inference.Artifacts["predictions"] = []any{"p1"}
			inference.Metrics["latency"] = 1.0
			evaluation := artifact.NewJobResultObject()
			evaluation.Metrics["latency"] = 2.0
			evaluation.Metrics["rouge_rouge1_mean"] = 0.5

			for name, res := range map[string]*artifact.JobResultObject{"inf": inference, "eval": evaluation} {
				data, _ := json.Marshal(res)
				artifacts.Objects["jobs/results/"+name+"/results.json"] = data
			}

			infRun, err := tracking.CreateJob(ctx, exp.ID, wf.ID, "wf-inference", "job-1")
			Expect(err).To(BeNil())
			Expect(tracking.UpdateJob(ctx, infRun, RunOutputs{Parameters: map[string]string{"inference_output_s3_path": "lumigator-storage/jobs/results/inf/results.json"}})).To(Succeed())

			evalRun, err := tracking.CreateJob(ctx, exp.ID, wf.ID, "wf-evaluation", "job-2")
			Expect(err).To(BeNil())
			Expect(tracking.UpdateJob(ctx, evalRun, RunOutputs{
				Metrics:    map[string]float64{"rouge_rouge1_mean": 0.5},
				Parameters: map[string]string{"eval_output_s3_path": "s3://lumigator-storage/jobs/results/eval/results.json"},
			})).To(Succeed())

			Expect(tracking.UpdateWorkflowStatus(ctx, wf.ID, WorkflowStatusSucceeded)).To(Succeed())

			details, err := tracking.GetWorkflow(ctx, wf.ID)
			Expect(err).To(BeNil())
			Expect(details.Jobs).To(HaveLen(2))
			Expect(details.Jobs[0].Name).To(Equal("wf-inference"))
			Expect(details.Jobs[0].JobID).To(Equal("job-1"))
			Expect(details.Metrics).To(HaveKeyWithValue("rouge_rouge1_mean", 0.5))
			Expect(details.Parameters).To(HaveKeyWithValue("ray_job_id", "job-1"))
			Expect(details.Parameters).To(HaveKeyWithValue("wf-evaluation_ray_job_id", "job-2"))
			Expect(details.ArtifactsDownloadURL).To(ContainSubstring("compiled.json"))

			key := artifact.CompiledWorkflowKey(wf.ID)
			compiled, err := artifact.DecodeJobResult(artifacts.Objects[key])
			Expect(err).To(BeNil())
			Expect(compiled.Metrics["latency"]).To(Equal(2.0))
			Expect(compiled.Artifacts).To(HaveKey("predictions"))

			// an existing compiled artifact is never rebuilt
			artifacts.Objects[key] = []byte(`{"metrics": {"kept": 1}}`)
			_, err = tracking.GetWorkflow(ctx, wf.ID)
			Expect(err).To(BeNil())
			Expect(string(artifacts.Objects[key])).To(Equal(`{"metrics": {"kept": 1}}`))
		})

		It("deletes a workflow with its jobs", func() {
			wf, err := tracking.CreateWorkflow(ctx, WorkflowCreate{ExperimentID: exp.ID, Name: "wf"})
			Expect(err).To(BeNil())
			run, err := tracking.CreateJob(ctx, exp.ID, wf.ID, "wf-inference", "job-1")
			Expect(err).To(BeNil())

			deleted, err := tracking.DeleteWorkflow(ctx, wf.ID)
			Expect(err).To(BeNil())
			Expect(deleted.Name).To(Equal("wf"))
			Expect(api.runs[run].Info.LifecycleStage).To(Equal("deleted"))

			_, err = tracking.GetWorkflow(ctx, wf.ID)
			Expect(err).To(MatchError(ErrNotFound))
		})
	})
})
