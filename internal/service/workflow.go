package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mozilla-ai/lumigator/internal/service/mappers"
	"github.com/mozilla-ai/lumigator/internal/store/model"
	"github.com/mozilla-ai/lumigator/internal/tracking"
	"github.com/mozilla-ai/lumigator/pkg/artifact"
	"github.com/mozilla-ai/lumigator/pkg/log"
	"github.com/mozilla-ai/lumigator/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	inferenceOutputParam  = "inference_output_s3_path"
	evaluationOutputParam = "eval_output_s3_path"
	inferenceRunName      = "inference"
	evaluationRunName     = "evaluation"
	logsSeparator         = "\n================\n"
	failureHandlerTimeout = 30 * time.Second
)

// JobManager is what workflows need from the job service.
type JobManager interface {
	CreateJob(ctx context.Context, req JobCreate) (*model.Job, error)
	WaitForTerminal(ctx context.Context, id uuid.UUID, timeout time.Duration) (*model.Job, error)
	StopJob(ctx context.Context, id uuid.UUID) (bool, error)
	GetJobLogs(ctx context.Context, id uuid.UUID) (string, error)
	CollectResult(ctx context.Context, job *model.Job) (*artifact.JobResultObject, *model.JobResult, error)
	StoreResultDataset(ctx context.Context, job *model.Job, filename, outputField string, result *artifact.JobResultObject) (*model.Dataset, error)
}

type WorkflowService struct {
	tracking       tracking.Client
	jobs           JobManager
	datasets       DatasetSource
	secrets        SecretSource
	artifacts      artifact.Store
	supervisor     *Supervisor
	defaultTimeout time.Duration
	events         EventPublisher
	logger         *log.StructuredLogger
}

func NewWorkflowService(
	trackingClient tracking.Client,
	jobs JobManager,
	datasets DatasetSource,
	secrets SecretSource,
	artifacts artifact.Store,
	supervisor *Supervisor,
	defaultTimeout time.Duration,
) *WorkflowService {
	return &WorkflowService{
		tracking:       trackingClient,
		jobs:           jobs,
		datasets:       datasets,
		secrets:        secrets,
		artifacts:      artifacts,
		supervisor:     supervisor,
		defaultTimeout: defaultTimeout,
		events:         noopPublisher{},
		logger:         log.NewDebugLogger("workflow_service"),
	}
}

// WithEvents publishes every workflow status change to p.
func (ws *WorkflowService) WithEvents(p EventPublisher) *WorkflowService {
	ws.events = p
	return ws
}

// Create registers the workflow and starts its inference and evaluation pipeline in the background.
func (ws *WorkflowService) Create(ctx context.Context, form mappers.WorkflowCreateForm) (*tracking.Workflow, error) {
	tracer := ws.logger.WithContext(ctx).Operation("create_workflow").
		WithString("name", form.Name).
		WithString("experiment_id", form.ExperimentID).
		WithString("model", form.Model).
		Build()

	experiment, err := ws.tracking.GetExperiment(ctx, form.ExperimentID)
	if err != nil {
		tracer.Error(err).Log()
		return nil, trackingError(err, noExperiment(form))
	}

	if form.SecretKeyName != "" {
		configured, err := ws.secrets.IsConfigured(ctx, form.SecretKeyName)
		if err != nil {
			tracer.Error(err).Log()
			return nil, err
		}
		if !configured {
			err := NewErrSecretNotConfigured(form.SecretKeyName)
			tracer.Error(err).Log()
			return nil, err
		}
	}

	var prompt *string
	if form.SystemPrompt != "" {
		prompt = &form.SystemPrompt
	}
	task := experiment.TaskDefinition
	prompt, err = TaskPrompt(task.Task, task.SourceLanguage, task.TargetLanguage, prompt)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	form.SystemPrompt = *prompt
	if form.InferenceOutputField == "" {
		form.InferenceOutputField = DefaultOutputField
	}
	tracer.Step("validate_workflow").WithString("system_prompt", form.SystemPrompt).Log()

	workflow, err := ws.tracking.CreateWorkflow(ctx, form.ToTracking())
	if err != nil {
		tracer.Error(err).Log()
		return nil, trackingError(err, noExperiment(form))
	}
	tracer.Step("create_tracking_workflow").WithString("workflow_id", workflow.ID).Log()
	publishWorkflowEvent(ctx, ws.events, workflow.ID, form.ExperimentID, tracking.WorkflowStatusCreated)

	if err := ws.supervisor.Go(workflow.ID, ws.pipeline(*workflow, *experiment, form)); err != nil {
		tracer.Error(err).Log()
		ws.fail(ctx, workflow.ID, form.ExperimentID)
		return nil, err
	}

	tracer.Success().WithString("workflow_id", workflow.ID).Log()
	return workflow, nil
}

func (ws *WorkflowService) pipeline(workflow tracking.Workflow, experiment tracking.Experiment, form mappers.WorkflowCreateForm) func(ctx context.Context) {
	return func(ctx context.Context) {
		tracer := ws.logger.WithContext(ctx).Operation("run_workflow").
			WithString("workflow_id", workflow.ID).
			WithString("experiment_id", experiment.ID).
			Build()

		defer func() {
			if r := recover(); r != nil {
				tracer.Error(fmt.Errorf("workflow panicked: %v", r)).Log()
				ws.fail(ctx, workflow.ID, experiment.ID)
			}
		}()

		if err := ws.run(ctx, workflow, experiment, form, tracer); err != nil {
			tracer.Error(err).Log()
			ws.fail(ctx, workflow.ID, experiment.ID)
			return
		}

		metrics.IncreaseWorkflowTransitionMetric(string(tracking.WorkflowStatusSucceeded))
		publishWorkflowEvent(ctx, ws.events, workflow.ID, experiment.ID, tracking.WorkflowStatusSucceeded)
		tracer.Success().Log()
	}
}

func (ws *WorkflowService) run(ctx context.Context, workflow tracking.Workflow, experiment tracking.Experiment, form mappers.WorkflowCreateForm, tracer *log.OperationTracer) error {
	timeout := ws.defaultTimeout
	if form.JobTimeoutSec > 0 {
		timeout = time.Duration(form.JobTimeoutSec) * time.Second
	}

	datasetID, err := uuid.Parse(experiment.Dataset)
	if err != nil {
		return fmt.Errorf("experiment %s has an invalid dataset %q: %w", experiment.ID, experiment.Dataset, err)
	}
	source, err := ws.datasets.Get(ctx, datasetID)
	if err != nil {
		return err
	}
	stem := strings.TrimSuffix(source.Filename, path.Ext(source.Filename))
	predictionsFilename := fmt.Sprintf("%s-%s-predictions.csv", stem, strings.ReplaceAll(form.Model, "/", "-"))

	// inference
	inference, err := ws.jobs.CreateJob(ctx, JobCreate{
		Name:         workflow.Name + "-inference",
		Description:  workflow.Description,
		DatasetID:    datasetID,
		MaxSamples:   experiment.MaxSamples,
		ExperimentID: &experiment.ID,
		Config:       inferenceConfig(experiment.TaskDefinition, form),
	})
	if err != nil {
		return fmt.Errorf("failed to create inference job: %w", err)
	}
	tracer.Step("create_inference_job").WithUUID("job_id", inference.ID).Log()

	if err := ws.tracking.UpdateWorkflowStatus(ctx, workflow.ID, tracking.WorkflowStatusRunning); err != nil {
		return err
	}
	publishWorkflowEvent(ctx, ws.events, workflow.ID, experiment.ID, tracking.WorkflowStatusRunning)
	inferenceRunID, err := ws.tracking.CreateJob(ctx, experiment.ID, workflow.ID, inferenceRunName, inference.ID.String())
	if err != nil {
		return err
	}

	inference, err = ws.waitForSuccess(ctx, inference.ID, timeout)
	if err != nil {
		return err
	}
	inferenceResult, _, err := ws.jobs.CollectResult(ctx, inference)
	if err != nil {
		return err
	}

	predictions, err := ws.jobs.StoreResultDataset(ctx, inference, predictionsFilename, form.InferenceOutputField, inferenceResult)
	if err != nil {
		return fmt.Errorf("failed to store the predictions of job %s: %w", inference.ID, err)
	}
	tracer.Step("store_predictions").WithUUID("dataset_id", predictions.ID).Log()

	err = ws.tracking.UpdateJob(ctx, inferenceRunID, tracking.RunOutputs{
		Metrics:    numericMetrics(inferenceResult.Metrics),
		Parameters: map[string]string{inferenceOutputParam: ws.artifacts.URI(artifact.JobResultKey(inference.Name, inference.ID))},
	})
	if err != nil {
		return err
	}

	// evaluation
	evalConfig := NewEvaluationJobConfig()
	if len(form.Metrics) > 0 {
		evalConfig.Metrics = form.Metrics
	}
	evalConfig.Model = form.Model

	evaluation, err := ws.jobs.CreateJob(ctx, JobCreate{
		Name:         workflow.Name + "-evaluation",
		Description:  workflow.Description,
		DatasetID:    predictions.ID,
		MaxSamples:   experiment.MaxSamples,
		ExperimentID: &experiment.ID,
		Config:       evalConfig,
	})
	if err != nil {
		return fmt.Errorf("failed to create evaluation job: %w", err)
	}
	tracer.Step("create_evaluation_job").WithUUID("job_id", evaluation.ID).Log()

	evaluationRunID, err := ws.tracking.CreateJob(ctx, experiment.ID, workflow.ID, evaluationRunName, evaluation.ID.String())
	if err != nil {
		return err
	}

	evaluation, err = ws.waitForSuccess(ctx, evaluation.ID, timeout)
	if err != nil {
		return err
	}
	evaluationResult, _, err := ws.jobs.CollectResult(ctx, evaluation)
	if err != nil {
		return err
	}

	err = ws.tracking.UpdateJob(ctx, evaluationRunID, tracking.RunOutputs{
		Metrics:    FlattenMetrics(evaluationResult.Metrics),
		Parameters: map[string]string{evaluationOutputParam: ws.artifacts.URI(artifact.JobResultKey(evaluation.Name, evaluation.ID))},
	})
	if err != nil {
		return err
	}

	if err := ws.tracking.UpdateWorkflowStatus(ctx, workflow.ID, tracking.WorkflowStatusSucceeded); err != nil {
		return err
	}

	// compiles the workflow results
	if _, err := ws.tracking.GetWorkflow(ctx, workflow.ID); err != nil {
		tracer.Warn("failed to compile workflow results").WithParam("error", err.Error()).Log()
	}
	return nil
}

func (ws *WorkflowService) waitForSuccess(ctx context.Context, id uuid.UUID, timeout time.Duration) (*model.Job, error) {
	job, err := ws.jobs.WaitForTerminal(ctx, id, timeout)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}
	if job.Status != model.JobStatusSucceeded {
		return nil, fmt.Errorf("job %s ended with status %s", id, job.Status)
	}
	return job, nil
}

func inferenceConfig(task tracking.TaskDefinition, form mappers.WorkflowCreateForm) *InferenceJobConfig {
	cfg := NewInferenceJobConfig()
	cfg.Model = form.Model
	if form.Provider != "" {
		cfg.Provider = form.Provider
	}
	cfg.BaseURL = form.BaseURL
	cfg.Task = task.Task
	cfg.SourceLanguage = task.SourceLanguage
	cfg.TargetLanguage = task.TargetLanguage
	prompt := form.SystemPrompt
	cfg.SystemPrompt = &prompt
	cfg.Output = form.InferenceOutputField
	cfg.SecretKey = form.SecretKeyName

	gen := form.GenerationConfig
	if gen.MaxTokens != nil {
		cfg.MaxTokens = *gen.MaxTokens
	}
	if gen.FrequencyPenalty != nil {
		cfg.FrequencyPenalty = *gen.FrequencyPenalty
	}
	if gen.Temperature != nil {
		cfg.Temperature = *gen.Temperature
	}
	if gen.TopP != nil {
		cfg.TopP = *gen.TopP
	}
	return cfg
}

// fail marks the workflow as failed and stops its jobs. It runs even when ctx is cancelled.
func (ws *WorkflowService) fail(ctx context.Context, workflowID, experimentID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureHandlerTimeout)
	defer cancel()

	tracer := ws.logger.WithContext(ctx).Operation("fail_workflow").WithString("workflow_id", workflowID).Build()
	metrics.IncreaseWorkflowTransitionMetric(string(tracking.WorkflowStatusFailed))

	if err := ws.tracking.UpdateWorkflowStatus(ctx, workflowID, tracking.WorkflowStatusFailed); err != nil {
		tracer.Warn("failed to mark workflow as failed").WithParam("error", err.Error()).Log()
	}
	publishWorkflowEvent(ctx, ws.events, workflowID, experimentID, tracking.WorkflowStatusFailed)
	ws.stopJobs(ctx, workflowID, tracer)
	tracer.Success().Log()
}

func (ws *WorkflowService) stopJobs(ctx context.Context, workflowID string, tracer *log.OperationTracer) {
	jobs, err := ws.tracking.ListWorkflowJobs(ctx, workflowID)
	if err != nil {
		tracer.Warn("failed to list workflow jobs").WithParam("error", err.Error()).Log()
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		id, err := uuid.Parse(j.JobID)
		if err != nil {
			continue
		}
		g.Go(func() error {
			if _, err := ws.jobs.StopJob(gctx, id); err != nil {
				tracer.Warn("failed to stop job").WithUUID("job_id", id).WithParam("error", err.Error()).Log()
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Get returns the workflow with its jobs. A succeeded workflow carries the download url of its
// compiled results.
func (ws *WorkflowService) Get(ctx context.Context, id string) (*tracking.WorkflowDetails, error) {
	tracer := ws.logger.WithContext(ctx).Operation("get_workflow").WithString("workflow_id", id).Build()

	details, err := ws.tracking.GetWorkflow(ctx, id)
	if err != nil {
		tracer.Error(err).Log()
		return nil, trackingError(err, NewErrWorkflowNotFound(id))
	}

	tracer.Success().WithString("status", string(details.Status)).WithInt("jobs", len(details.Jobs)).Log()
	return details, nil
}

// Logs joins the logs of the workflow jobs, oldest job first.
func (ws *WorkflowService) Logs(ctx context.Context, id string) (string, error) {
	tracer := ws.logger.WithContext(ctx).Operation("get_workflow_logs").WithString("workflow_id", id).Build()

	jobs, err := ws.tracking.ListWorkflowJobs(ctx, id)
	if err != nil {
		tracer.Error(err).Log()
		return "", trackingError(err, NewErrWorkflowNotFound(id))
	}

	logs := make([]string, 0, len(jobs))
	for _, j := range jobs {
		jobID, err := uuid.Parse(j.JobID)
		if err != nil {
			tracer.Warn("job run without job id").WithString("run_id", j.ID).Log()
			continue
		}
		l, err := ws.jobs.GetJobLogs(ctx, jobID)
		if err != nil {
			tracer.Error(err).Log()
			return "", err
		}
		logs = append(logs, l)
	}

	tracer.Success().WithInt("jobs", len(logs)).Log()
	return strings.Join(logs, logsSeparator), nil
}

// Delete removes the workflow, its jobs runs and its compiled results. A running workflow is only
// deleted when forced, its pipeline is then cancelled and its jobs stopped.
func (ws *WorkflowService) Delete(ctx context.Context, id string, force bool) (*tracking.Workflow, error) {
	tracer := ws.logger.WithContext(ctx).Operation("delete_workflow").
		WithString("workflow_id", id).
		WithBool("force", force).
		Build()

	details, err := ws.tracking.GetWorkflow(ctx, id)
	if err != nil {
		tracer.Error(err).Log()
		return nil, trackingError(err, NewErrWorkflowNotFound(id))
	}

	if details.Status == tracking.WorkflowStatusRunning && !force {
		err := NewErrWorkflowRunning(id)
		tracer.Error(err).Log()
		return nil, err
	}

	if ws.supervisor.Cancel(id) {
		tracer.Step("cancel_pipeline").Log()
	} else if !details.Status.IsTerminal() {
		ws.stopJobs(ctx, id, tracer)
	}

	prefix := path.Dir(artifact.CompiledWorkflowKey(id)) + "/"
	if err := ws.artifacts.RemoveRecursive(ctx, prefix); err != nil && !errors.Is(err, artifact.ErrNotFound) {
		tracer.Warn("failed to remove compiled results").WithParam("error", err.Error()).Log()
	}

	workflow, err := ws.tracking.DeleteWorkflow(ctx, id)
	if err != nil {
		tracer.Error(err).Log()
		return nil, trackingError(err, NewErrWorkflowNotFound(id))
	}

	tracer.Success().Log()
	return workflow, nil
}

// FlattenMetrics keeps the numeric metrics, nested ones become "<group>_<name>". Values are
// rounded to three decimals.
func FlattenMetrics(metrics map[string]any) map[string]float64 {
	flat := map[string]float64{}
	for name, value := range metrics {
		if group, ok := value.(map[string]any); ok {
			for sub, subValue := range group {
				if f, ok := toFloat(subValue); ok {
					flat[name+"_"+sub] = round3(f)
				}
			}
			continue
		}
		if f, ok := toFloat(value); ok {
			flat[name] = round3(f)
		}
	}
	return flat
}

func numericMetrics(metrics map[string]any) map[string]float64 {
	out := map[string]float64{}
	for name, value := range metrics {
		if f, ok := toFloat(value); ok {
			out[name] = f
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// noExperiment is the error of a workflow created under an experiment tracking does not know.
func noExperiment(form mappers.WorkflowCreateForm) error {
	return NewErrValidation("cannot create workflow %q: no experiment found with id %q", form.Name, form.ExperimentID)
}

// trackingError maps a tracking not found onto notFound, other failures are upstream ones.
func trackingError(err error, notFound error) error {
	if errors.Is(err, tracking.ErrNotFound) {
		return notFound
	}
	return NewErrUpstream("mlflow", err)
}
