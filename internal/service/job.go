package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"
	"github.com/lthibault/jitterbug/v2"
	"github.com/mozilla-ai/lumigator/internal/client"
	"github.com/mozilla-ai/lumigator/internal/redact"
	"github.com/mozilla-ai/lumigator/internal/service/mappers"
	"github.com/mozilla-ai/lumigator/internal/store"
	"github.com/mozilla-ai/lumigator/internal/store/model"
	"github.com/mozilla-ai/lumigator/pkg/artifact"
	"github.com/mozilla-ai/lumigator/pkg/log"
	"github.com/mozilla-ai/lumigator/pkg/metrics"
	"github.com/thoas/go-funk"
	"golang.org/x/sync/errgroup"
)

const (
	jobIDEnvVar  = "MZAI_JOB_ID"
	apiKeyEnvVar = "api_key"

	defaultPollInterval = 5 * time.Second
	stopWaitTimeout     = 10 * time.Second
	stopPollInterval    = time.Second
)

var ErrJobWaitTimeout = errors.New("timed out waiting for the job to finish")

// JobRunner is the remote service executing jobs.
type JobRunner interface {
	SubmitJob(ctx context.Context, submission client.JobSubmission) (string, error)
	GetJob(ctx context.Context, id string) (*client.JobDetails, error)
	ListJobs(ctx context.Context) ([]client.JobDetails, error)
	StopJob(ctx context.Context, id string) (bool, error)
	GetJobLogs(ctx context.Context, id string) (string, error)
	HealthCheck(ctx context.Context) error
}

type SecretSource interface {
	IsConfigured(ctx context.Context, name string) (bool, error)
	GetDecrypted(ctx context.Context, name string) (string, error)
}

type DatasetSource interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Dataset, error)
	GetS3Path(ctx context.Context, id uuid.UUID) (string, error)
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*model.Dataset, error)
	Upload(ctx context.Context, form mappers.DatasetUploadForm) (*model.Dataset, error)
}

// WorkerSettings locate the worker programs and the environment they run with.
type WorkerSettings struct {
	InferenceCommand string
	InferenceWorkDir string
	InferencePipReqs string
	EvaluatorCommand string
	EvaluatorWorkDir string
	EvaluatorPipReqs string
	EnvWhitelist     []string
	NumGPUs          float64
	JobTimeout       time.Duration
}

type workerEntrypoint struct {
	command string
	workDir string
	pip     string
}

func (w WorkerSettings) entrypoint(kind model.JobType) workerEntrypoint {
	if kind == model.JobTypeEvaluation {
		return workerEntrypoint{command: w.EvaluatorCommand, workDir: w.EvaluatorWorkDir, pip: w.EvaluatorPipReqs}
	}
	return workerEntrypoint{command: w.InferenceCommand, workDir: w.InferenceWorkDir, pip: w.InferencePipReqs}
}

type JobCreate struct {
	Name         string
	Description  string
	DatasetID    uuid.UUID
	MaxSamples   int
	ExperimentID *string
	Config       JobConfig
}

// JobView is a job record with the redacted remote submission details, when known.
type JobView struct {
	model.Job
	Submission map[string]any
}

type JobService struct {
	store        store.Store
	runner       JobRunner
	artifacts    artifact.Store
	secrets      SecretSource
	datasets     DatasetSource
	supervisor   *Supervisor
	redactor     *redact.Redactor
	workers      WorkerSettings
	pollInterval time.Duration
	events       EventPublisher
	logger       *log.StructuredLogger
}

func NewJobService(
	store store.Store,
	runner JobRunner,
	artifacts artifact.Store,
	secrets SecretSource,
	datasets DatasetSource,
	supervisor *Supervisor,
	redactor *redact.Redactor,
	workers WorkerSettings,
) *JobService {
	return &JobService{
		store:        store,
		runner:       runner,
		artifacts:    artifacts,
		secrets:      secrets,
		datasets:     datasets,
		supervisor:   supervisor,
		redactor:     redactor,
		workers:      workers,
		pollInterval: defaultPollInterval,
		events:       noopPublisher{},
		logger:       log.NewDebugLogger("job_service"),
	}
}

// WithPollInterval changes how often job statuses are polled while waiting.
func (js *JobService) WithPollInterval(interval time.Duration) *JobService {
	js.pollInterval = interval
	return js
}

// WithEvents publishes job submissions and status changes to p.
func (js *JobService) WithEvents(p EventPublisher) *JobService {
	js.events = p
	return js
}

// NormalizeStatus maps a remote status onto the local ones. Unknown statuses are failures.
func NormalizeStatus(remote string) string {
	status := strings.ToLower(strings.TrimSpace(remote))
	switch status {
	case model.JobStatusCreated, model.JobStatusPending, model.JobStatusRunning,
		model.JobStatusSucceeded, model.JobStatusFailed, model.JobStatusStopped:
		return status
	default:
		return model.JobStatusFailed
	}
}

func IsTerminal(status string) bool {
	return funk.ContainsString(model.TerminalJobStatuses, status)
}

func (js *JobService) CreateJob(ctx context.Context, req JobCreate) (*model.Job, error) {
	if req.Config == nil {
		return nil, NewErrValidation("job config is required")
	}
	kind := req.Config.JobType()

	tracer := js.logger.WithContext(ctx).Operation("create_job").
		WithString("name", req.Name).
		WithString("job_type", string(kind)).
		WithUUID("dataset_id", req.DatasetID).
		WithInt("max_samples", req.MaxSamples).
		Build()

	job, err := js.createJob(ctx, req, tracer)
	if err != nil {
		metrics.IncreaseJobsSubmittedMetric(string(kind), metrics.OutcomeFailure)
		tracer.Error(err).Log()
		return nil, err
	}

	metrics.IncreaseJobsSubmittedMetric(string(kind), metrics.OutcomeSuccess)
	tracer.Success().WithUUID("job_id", job.ID).Log()
	return job, nil
}

func (js *JobService) createJob(ctx context.Context, req JobCreate, tracer *log.OperationTracer) (*model.Job, error) {
	kind := req.Config.JobType()

	secretName := req.Config.SecretKeyName()
	if secretName != "" {
		configured, err := js.secrets.IsConfigured(ctx, secretName)
		if err != nil {
			return nil, err
		}
		if !configured {
			return nil, NewErrSecretNotConfigured(secretName)
		}
	}

	job, err := js.store.Job().Create(ctx, model.Job{
		Name:         req.Name,
		Description:  req.Description,
		JobType:      kind,
		Status:       model.JobStatusCreated,
		ExperimentID: req.ExperimentID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	tracer.Step("create_job_record").WithUUID("job_id", job.ID).Log()

	submission, err := js.prepareSubmission(ctx, job, req, secretName)
	if err != nil {
		// nothing was dispatched yet
		if delErr := js.store.Job().Delete(ctx, job.ID); delErr != nil {
			tracer.Warn("failed to delete job record").WithParam("error", delErr.Error()).Log()
		}
		return nil, err
	}

	if js.redactor != nil {
		redacted := js.redactor.Redact(map[string]any{"env_vars": toAnyMap(submission.RuntimeEnv.EnvVars)})
		tracer.Step("submit_job").WithString("entrypoint", submission.Entrypoint).WithParam("runtime_env", redacted).Log()
	}

	if _, err := js.runner.SubmitJob(ctx, *submission); err != nil {
		return nil, js.abandon(ctx, job, err, tracer)
	}

	job, err = js.store.Job().UpdateStatus(ctx, job.ID, model.JobStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to update job status: %w", err)
	}
	publishJobEvent(ctx, js.events, job)

	if req.Config.StoreToDataset() || kind == model.JobTypeAnnotation {
		if err := js.supervisor.Go(job.ID.String(), js.finalizer(job.ID, req.DatasetID, req.Config)); err != nil {
			tracer.Warn("failed to schedule the job finalizer").WithParam("error", err.Error()).Log()
		}
	}
	return job, nil
}

// abandon handles a failed submission. The record is deleted only if the remote service
// never saw the job, otherwise it is kept as failed.
func (js *JobService) abandon(ctx context.Context, job *model.Job, cause error, tracer *log.OperationTracer) error {
	_, err := js.runner.GetJob(ctx, job.ID.String())
	if client.IsNotFound(err) {
		if delErr := js.store.Job().Delete(ctx, job.ID); delErr != nil {
			tracer.Warn("failed to delete job record").WithParam("error", delErr.Error()).Log()
		}
	} else if _, failErr := js.store.Job().Fail(ctx, job.ID, cause.Error()); failErr != nil {
		tracer.Warn("failed to mark job as failed").WithParam("error", failErr.Error()).Log()
	}
	return NewErrUpstream("ray", cause)
}

func (js *JobService) prepareSubmission(ctx context.Context, job *model.Job, req JobCreate, secretName string) (*client.JobSubmission, error) {
	datasetPath, err := js.datasets.GetS3Path(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}

	config := req.Config.render(renderParams{
		name:        fmt.Sprintf("%s/%s", job.Name, job.ID),
		datasetPath: datasetPath,
		maxSamples:  req.MaxSamples,
		storagePath: js.artifacts.URI(artifact.JobResultsPrefix) + "/",
	})
	encoded, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job config: %w", err)
	}

	env := js.workerEnv(job.ID)
	if secretName != "" {
		value, err := js.secrets.GetDecrypted(ctx, secretName)
		if err != nil {
			return nil, err
		}
		env[apiKeyEnvVar] = value
	}

	worker := js.workers.entrypoint(job.JobType)
	command, err := shellquote.Split(worker.command)
	if err != nil {
		return nil, fmt.Errorf("invalid worker command %q: %w", worker.command, err)
	}
	command = append(command, "--config", string(encoded))

	submission := &client.JobSubmission{
		Entrypoint:   shellquote.Join(command...),
		SubmissionID: job.ID.String(),
		RuntimeEnv: client.RuntimeEnv{
			Pip:        worker.pip,
			WorkingDir: worker.workDir,
			EnvVars:    env,
		},
		Metadata: map[string]string{"job_type": string(job.JobType)},
	}
	if runsModelLocally(req.Config) {
		submission.EntrypointNumGPUs = js.workers.NumGPUs
	}
	return submission, nil
}

// workerEnv inherits the whitelisted variables set in the process environment.
func (js *JobService) workerEnv(jobID uuid.UUID) map[string]string {
	env := map[string]string{}
	present := funk.FilterString(js.workers.EnvWhitelist, func(name string) bool {
		_, found := os.LookupEnv(name)
		return found
	})
	for _, name := range present {
		env[name] = os.Getenv(name)
	}
	env[jobIDEnvVar] = jobID.String()
	return env
}

func runsModelLocally(cfg JobConfig) bool {
	switch c := cfg.(type) {
	case *InferenceJobConfig:
		return c.Provider == ProviderHuggingFace
	case *AnnotationJobConfig:
		return true
	default:
		return false
	}
}

// finalizer turns the output of a job into a new dataset once the job succeeded.
func (js *JobService) finalizer(jobID, datasetID uuid.UUID, cfg JobConfig) func(ctx context.Context) {
	return func(ctx context.Context) {
		tracer := js.logger.WithContext(ctx).Operation("finalize_job").
			WithUUID("job_id", jobID).
			WithString("job_type", string(cfg.JobType())).
			Build()

		job, err := js.WaitForTerminal(ctx, jobID, js.workers.JobTimeout)
		if err != nil {
			tracer.Error(err).Log()
			return
		}
		if job.Status != model.JobStatusSucceeded {
			tracer.Success().WithString("status", job.Status).Log()
			return
		}

		result, _, err := js.CollectResult(ctx, job)
		if err != nil {
			tracer.Error(err).Log()
			return
		}
		if !cfg.StoreToDataset() {
			tracer.Success().Log()
			return
		}

		source, err := js.datasets.Get(ctx, datasetID)
		if err != nil {
			tracer.Error(err).Log()
			return
		}
		stem := strings.TrimSuffix(source.Filename, path.Ext(source.Filename))
		dataset, err := js.StoreResultDataset(ctx, job, stem+"-annotated.csv", cfg.OutputField(), result)
		if err != nil {
			tracer.Error(err).Log()
			return
		}
		tracer.Success().WithUUID("dataset_id", dataset.ID).Log()
	}
}

// StoreResultDataset uploads the examples, ground truth and predictions of a job result as a
// dataset produced by the job.
func (js *JobService) StoreResultDataset(ctx context.Context, job *model.Job, filename, outputField string, result *artifact.JobResultObject) (*model.Dataset, error) {
	columns := funk.UniqString([]string{ExamplesColumn, GroundTruthColumn, outputField})
	values := make([][]string, 0, len(columns))
	missing := []string{}
	for _, column := range columns {
		list, ok := result.StringList(column)
		if !ok {
			missing = append(missing, column)
			continue
		}
		values = append(values, list)
	}
	if len(missing) > 0 {
		return nil, NewErrDatasetMissingFields(missing)
	}

	// a null column is written empty, any other one must have a value per example
	size := len(values[0])
	for c, column := range columns {
		if values[c] != nil && len(values[c]) != size {
			return nil, NewErrValidation("artifact %q has %d values, expected %d", column, len(values[c]), size)
		}
	}

	rows := [][]string{columns}
	for i := 0; i < size; i++ {
		row := make([]string, len(columns))
		for c := range columns {
			if values[c] != nil {
				row[c] = values[c][i]
			}
		}
		rows = append(rows, row)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}

	var generatedBy *string
	if m, ok := result.Artifacts["model"].(string); ok {
		generatedBy = &m
	}

	return js.datasets.Upload(ctx, mappers.DatasetUploadForm{
		Filename:    filename,
		Format:      model.DatasetFormatJob,
		RunID:       &job.ID,
		Generated:   true,
		GeneratedBy: generatedBy,
		Body:        &buf,
	})
}

// GetJob returns the job, first bringing a non terminal status up to date with the remote one.
func (js *JobService) GetJob(ctx context.Context, id uuid.UUID) (*JobView, error) {
	tracer := js.logger.WithContext(ctx).Operation("get_job").WithUUID("job_id", id).Build()

	job, err := js.getJob(ctx, id)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	view := &JobView{Job: *job}
	remote, err := js.runner.GetJob(ctx, id.String())
	if err != nil {
		if !client.IsNotFound(err) {
			tracer.Warn("failed to get remote job").WithParam("error", err.Error()).Log()
		}
		return view, nil
	}

	reconciled, err := js.reconcile(ctx, job, remote.Status)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	view.Job = *reconciled
	view.Submission = js.transform(remote)

	tracer.Success().WithString("status", view.Status).Log()
	return view, nil
}

func (js *JobService) getJob(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	job, err := js.store.Job().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (js *JobService) reconcile(ctx context.Context, job *model.Job, remoteStatus string) (*model.Job, error) {
	if job.IsTerminal() {
		return job, nil
	}
	status := NormalizeStatus(remoteStatus)
	if status == job.Status {
		return job, nil
	}
	updated, err := js.store.Job().UpdateStatus(ctx, job.ID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to update job status: %w", err)
	}
	publishJobEvent(ctx, js.events, updated)
	return updated, nil
}

func (js *JobService) transform(remote *client.JobDetails) map[string]any {
	if js.redactor == nil || remote.Raw == nil {
		return nil
	}
	return js.redactor.TransformJobSubmission(remote.Raw)
}

// ListJobs lists the local jobs of the given kinds, merged with what the remote service knows of them.
func (js *JobService) ListJobs(ctx context.Context, skip, limit int, kinds []string) ([]JobView, int64, error) {
	tracer := js.logger.WithContext(ctx).Operation("list_jobs").
		WithInt("skip", skip).
		WithInt("limit", limit).
		WithParam("job_types", kinds).
		Build()

	for _, kind := range kinds {
		if !model.JobType(kind).Valid() {
			return nil, 0, NewErrValidation("unknown job type %q", kind)
		}
	}

	var (
		jobs   model.JobList
		total  int64
		remote []client.JobDetails
	)

	// the store calls stay sequential, sqlite only has one connection
	total, err := js.store.Job().Count(ctx, store.NewJobQueryFilter().ByJobTypes(kinds...))
	if err != nil {
		tracer.Error(err).Log()
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		jobs, err = js.store.Job().List(gctx,
			store.NewJobQueryFilter().ByJobTypes(kinds...),
			store.NewJobQueryOptions().WithSortOrder(store.SortByCreatedTimeDesc).WithOffset(skip).WithLimit(limit))
		return err
	})
	g.Go(func() error {
		var err error
		if remote, err = js.runner.ListJobs(gctx); err != nil {
			tracer.Warn("failed to list remote jobs").WithParam("error", err.Error()).Log()
			remote = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		tracer.Error(err).Log()
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}

	byID := make(map[string]*client.JobDetails, len(remote))
	for i := range remote {
		byID[remote[i].SubmissionID] = &remote[i]
	}

	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		view := JobView{Job: job}
		if r, found := byID[job.ID.String()]; found {
			reconciled, err := js.reconcile(ctx, &job, r.Status)
			if err != nil {
				tracer.Error(err).Log()
				return nil, 0, err
			}
			view.Job = *reconciled
			view.Submission = js.transform(r)
		}
		views = append(views, view)
	}

	tracer.Success().WithInt("count", len(views)).Log()
	return views, total, nil
}

// StopJob stops the job and reports whether it ended up stopped.
func (js *JobService) StopJob(ctx context.Context, id uuid.UUID) (bool, error) {
	tracer := js.logger.WithContext(ctx).Operation("stop_job").WithUUID("job_id", id).Build()

	job, err := js.getJob(ctx, id)
	if err != nil {
		tracer.Error(err).Log()
		return false, err
	}
	if job.IsTerminal() {
		tracer.Success().WithString("status", job.Status).Log()
		return job.Status == model.JobStatusStopped, nil
	}

	if _, err := js.runner.StopJob(ctx, id.String()); err != nil {
		if !client.IsNotFound(err) {
			tracer.Error(err).Log()
			return false, NewErrUpstream("ray", err)
		}
		tracer.Warn("job unknown to the job service").Log()
		if _, err := js.store.Job().UpdateStatus(ctx, id, model.JobStatusStopped); err != nil {
			return false, fmt.Errorf("failed to update job status: %w", err)
		}
		tracer.Success().Log()
		return true, nil
	}

	job, err = js.waitForTerminal(ctx, id, stopWaitTimeout, min(stopPollInterval, js.pollInterval))
	if err != nil {
		if errors.Is(err, ErrJobWaitTimeout) {
			tracer.Warn("job did not stop in time").Log()
			return false, nil
		}
		tracer.Error(err).Log()
		return false, err
	}

	tracer.Success().WithString("status", job.Status).Log()
	return job.Status == model.JobStatusStopped, nil
}

// WaitForTerminal polls the job until it reaches a terminal status. Once there its logs are cached.
func (js *JobService) WaitForTerminal(ctx context.Context, id uuid.UUID, timeout time.Duration) (*model.Job, error) {
	job, err := js.waitForTerminal(ctx, id, timeout, js.pollInterval)
	if err != nil {
		return nil, err
	}
	if _, err := js.GetJobLogs(ctx, id); err != nil {
		tracer := js.logger.WithContext(ctx).Operation("cache_job_logs").WithUUID("job_id", id).Build()
		tracer.Warn("failed to cache job logs").WithParam("error", err.Error()).Log()
	}
	return job, nil
}

func (js *JobService) waitForTerminal(ctx context.Context, id uuid.UUID, timeout, interval time.Duration) (*model.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 10})
	defer ticker.Stop()

	for {
		view, err := js.GetJob(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrJobWaitTimeout
			}
			return nil, err
		}
		if view.IsTerminal() {
			return &view.Job, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrJobWaitTimeout
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetJobLogs prefers the remote logs and caches them. The cache is served when the remote fails.
func (js *JobService) GetJobLogs(ctx context.Context, id uuid.UUID) (string, error) {
	tracer := js.logger.WithContext(ctx).Operation("get_job_logs").WithUUID("job_id", id).Build()

	job, err := js.getJob(ctx, id)
	if err != nil {
		tracer.Error(err).Log()
		return "", err
	}

	logs, err := js.runner.GetJobLogs(ctx, id.String())
	if err != nil {
		if job.Logs != nil {
			tracer.Warn("serving cached logs").WithParam("error", err.Error()).Log()
			return *job.Logs, nil
		}
		tracer.Error(err).Log()
		return "", NewErrUpstream("ray", err)
	}

	if err := js.store.Job().UpdateLogs(ctx, id, logs); err != nil {
		tracer.Warn("failed to cache logs").WithParam("error", err.Error()).Log()
	}
	tracer.Success().Log()
	return logs, nil
}

// GetJobResult returns the recorded result of the job, collecting it first for a succeeded job
// whose result was never recorded.
func (js *JobService) GetJobResult(ctx context.Context, id uuid.UUID) (*model.JobResult, error) {
	tracer := js.logger.WithContext(ctx).Operation("get_job_result").WithUUID("job_id", id).Build()

	job, err := js.getJob(ctx, id)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	result, err := js.store.JobResult().GetByJobID(ctx, id)
	if err == nil {
		tracer.Success().Log()
		return result, nil
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		tracer.Error(err).Log()
		return nil, fmt.Errorf("failed to get job result: %w", err)
	}
	if job.Status != model.JobStatusSucceeded {
		return nil, NewErrJobResultNotFound(id)
	}

	_, result, err = js.CollectResult(ctx, job)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	tracer.Success().WithBool("collected", true).Log()
	return result, nil
}

// CollectResult reads the result blob of the job and records its metrics and parameters.
func (js *JobService) CollectResult(ctx context.Context, job *model.Job) (*artifact.JobResultObject, *model.JobResult, error) {
	blob, err := js.readResult(ctx, job)
	if err != nil {
		return nil, nil, err
	}
	result, err := js.store.JobResult().Upsert(ctx, model.JobResult{
		JobID:      job.ID,
		Metrics:    model.JSONMap(blob.Metrics),
		Parameters: model.JSONMap(blob.Parameters),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record job result: %w", err)
	}
	return blob, result, nil
}

func (js *JobService) GetJobResultDownloadURL(ctx context.Context, id uuid.UUID) (string, error) {
	job, err := js.getJob(ctx, id)
	if err != nil {
		return "", err
	}

	key := artifact.JobResultKey(job.Name, job.ID)
	exists, err := js.artifacts.Exists(ctx, key)
	if err != nil {
		return "", NewErrUpstream("s3", err)
	}
	if !exists {
		return "", NewErrJobResultNotFound(id)
	}

	url, err := js.artifacts.PresignedGetURL(ctx, key)
	if err != nil {
		return "", NewErrUpstream("s3", err)
	}
	return url, nil
}

// GetJobDataset returns the dataset produced by the job.
func (js *JobService) GetJobDataset(ctx context.Context, id uuid.UUID) (*model.Dataset, error) {
	if _, err := js.getJob(ctx, id); err != nil {
		return nil, err
	}
	return js.datasets.GetByJobID(ctx, id)
}

// GetJobResults reads the result blob written by the job.
func (js *JobService) GetJobResults(ctx context.Context, id uuid.UUID) (*artifact.JobResultObject, error) {
	job, err := js.getJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return js.readResult(ctx, job)
}

func (js *JobService) readResult(ctx context.Context, job *model.Job) (*artifact.JobResultObject, error) {
	data, err := js.artifacts.GetObject(ctx, artifact.JobResultKey(job.Name, job.ID))
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, NewErrJobResultNotFound(job.ID)
		}
		return nil, NewErrUpstream("s3", err)
	}
	result, err := artifact.DecodeJobResult(data)
	if err != nil {
		return nil, NewErrValidation("invalid result of job %s: %v", job.ID, err)
	}
	return result, nil
}

func (js *JobService) HealthCheck(ctx context.Context) error {
	return js.runner.HealthCheck(ctx)
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
