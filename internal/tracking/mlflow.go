package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mozilla-ai/lumigator/internal/client"
	"github.com/mozilla-ai/lumigator/pkg/artifact"
	"github.com/mozilla-ai/lumigator/pkg/log"
	"go.uber.org/zap"
)

const (
	tagRunName     = "mlflow.runName"
	tagParentRunID = "mlflow.parentRunId"
	tagStatus      = "status"
	paramJobID     = "ray_job_id"

	lifecycleDeleted   = "deleted"
	experimentsFilter  = `tags.lumigator_version != ""`
	s3PathParamSuffix  = "_s3_path"
	conflictTimeFormat = "20060102150405.000000"
)

var workflowToRunStatus = map[WorkflowStatus]string{
	WorkflowStatusCreated:   client.RunStatusScheduled,
	WorkflowStatusRunning:   client.RunStatusRunning,
	WorkflowStatusFailed:    client.RunStatusFailed,
	WorkflowStatusSucceeded: client.RunStatusFinished,
}

// mlflowAPI is the part of the MLflow REST client used here.
type mlflowAPI interface {
	CreateExperiment(ctx context.Context, name string, tags []client.Tag) (string, error)
	GetExperiment(ctx context.Context, id string) (*client.MLflowExperiment, error)
	SearchExperiments(ctx context.Context, filter string, maxResults int, pageToken string) ([]client.MLflowExperiment, string, error)
	DeleteExperiment(ctx context.Context, id string) error
	CreateRun(ctx context.Context, experimentID, name string, tags []client.Tag) (*client.Run, error)
	GetRun(ctx context.Context, id string) (*client.Run, error)
	SearchRuns(ctx context.Context, experimentID, filter string) ([]client.Run, error)
	UpdateRun(ctx context.Context, id, status string) error
	DeleteRun(ctx context.Context, id string) error
	SetTag(ctx context.Context, runID, key, value string) error
	LogParam(ctx context.Context, runID, key, value string) error
	LogMetric(ctx context.Context, runID, key string, value float64) error
	HealthCheck(ctx context.Context) error
}

// MLflowTracking stores experiments as MLflow experiments, workflows as top level runs and
// jobs as runs nested under their workflow.
type MLflowTracking struct {
	api       mlflowAPI
	artifacts artifact.Store
	version   string
	now       func() time.Time
}

func NewMLflowTracking(api *client.MLflowClient, artifacts artifact.Store, version string) *MLflowTracking {
	return newMLflowTracking(api, artifacts, version)
}

func newMLflowTracking(api mlflowAPI, artifacts artifact.Store, version string) *MLflowTracking {
	return &MLflowTracking{api: api, artifacts: artifacts, version: version, now: time.Now}
}

func (m *MLflowTracking) CreateExperiment(ctx context.Context, req ExperimentCreate) (*Experiment, error) {
	logger := log.NewDebugLogger("tracking").
		WithContext(ctx).
		Operation("create_experiment").
		WithString("name", req.Name).
		Build()

	task, err := json.Marshal(req.TaskDefinition)
	if err != nil {
		return nil, err
	}
	tags := []client.Tag{
		{Key: "description", Value: req.Description},
		{Key: "task_definition", Value: string(task)},
		{Key: "dataset", Value: req.Dataset.String()},
		{Key: "max_samples", Value: strconv.Itoa(req.MaxSamples)},
		{Key: "lumigator_version", Value: m.version},
	}

	id, err := m.createExperiment(ctx, req.Name, tags)
	if errors.Is(err, ErrConflict) {
		suffix := strings.Replace(m.now().Format(conflictTimeFormat), ".", "", 1)
		name := fmt.Sprintf("%s_%s", req.Name, suffix)
		logger.Warn("experiment name already exists, appending timestamp").WithString("new_name", name).Log()
		id, err = m.createExperiment(ctx, name, tags)
	}
	if err != nil {
		logger.Error(err).Log()
		return nil, err
	}

	logger.Success().WithString("experiment_id", id).Log()
	return m.GetExperiment(ctx, id)
}

func (m *MLflowTracking) createExperiment(ctx context.Context, name string, tags []client.Tag) (string, error) {
	id, err := m.api.CreateExperiment(ctx, name, tags)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode == client.ErrorCodeAlreadyExists {
			return "", fmt.Errorf("%w: %s", ErrConflict, name)
		}
		return "", err
	}
	return id, nil
}

func (m *MLflowTracking) GetExperiment(ctx context.Context, id string) (*Experiment, error) {
	exp, err := m.api.GetExperiment(ctx, id)
	if err != nil {
		if client.IsNotFound(err) {
			return nil, fmt.Errorf("%w: experiment %s", ErrNotFound, id)
		}
		return nil, err
	}
	if exp.LifecycleStage == lifecycleDeleted {
		return nil, fmt.Errorf("%w: experiment %s", ErrNotFound, id)
	}
	return toExperiment(*exp), nil
}

func (m *MLflowTracking) ListExperiments(ctx context.Context, skip, limit int) ([]Experiment, int, error) {
	all := []client.MLflowExperiment{}
	pageToken := ""
	for {
		page, next, err := m.api.SearchExperiments(ctx, experimentsFilter, 1000, pageToken)
		if err != nil {
			return nil, 0, err
		}
		all = append(all, page...)
		if next == "" {
			break
		}
		pageToken = next
	}

	total := len(all)
	if skip > total {
		skip = total
	}
	end := total
	if limit > 0 && skip+limit < total {
		end = skip + limit
	}

	experiments := make([]Experiment, 0, end-skip)
	for _, e := range all[skip:end] {
		experiments = append(experiments, *toExperiment(e))
	}
	return experiments, total, nil
}

func (m *MLflowTracking) DeleteExperiment(ctx context.Context, id string) error {
	if err := m.api.DeleteExperiment(ctx, id); err != nil {
		if client.IsNotFound(err) {
			return fmt.Errorf("%w: experiment %s", ErrNotFound, id)
		}
		return err
	}
	return nil
}

// ListWorkflowIDs returns the top level runs of the experiment.
func (m *MLflowTracking) ListWorkflowIDs(ctx context.Context, experimentID string) ([]string, error) {
	runs, err := m.api.SearchRuns(ctx, experimentID, "")
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, r := range runs {
		if r.Tag(tagParentRunID) == "" {
			ids = append(ids, r.Info.RunID)
		}
	}
	return ids, nil
}

func (m *MLflowTracking) CreateWorkflow(ctx context.Context, req WorkflowCreate) (*Workflow, error) {
	run, err := m.api.CreateRun(ctx, req.ExperimentID, req.Name, []client.Tag{
		{Key: tagRunName, Value: req.Name},
		{Key: tagStatus, Value: string(WorkflowStatusCreated)},
		{Key: "description", Value: req.Description},
		{Key: "model", Value: req.Model},
		{Key: "system_prompt", Value: req.SystemPrompt},
	})
	if err != nil {
		return nil, err
	}
	if err := m.api.UpdateRun(ctx, run.Info.RunID, workflowToRunStatus[WorkflowStatusCreated]); err != nil {
		return nil, err
	}

	return &Workflow{
		ID:           run.Info.RunID,
		ExperimentID: req.ExperimentID,
		Name:         req.Name,
		Description:  req.Description,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		Status:       WorkflowStatusCreated,
		CreatedAt:    time.UnixMilli(run.Info.StartTime),
	}, nil
}

func (m *MLflowTracking) GetWorkflow(ctx context.Context, id string) (*WorkflowDetails, error) {
	run, err := m.fetchRun(ctx, id)
	if err != nil {
		return nil, err
	}

	jobs, err := m.listJobs(ctx, run.Info.ExperimentID, id)
	if err != nil {
		return nil, err
	}

	details := &WorkflowDetails{
		Workflow:   toWorkflow(*run),
		Jobs:       jobs,
		Metrics:    map[string]float64{},
		Parameters: map[string]string{},
	}
	for _, j := range jobs {
		for k, v := range j.Metrics {
			details.Metrics[k] = v
		}
		// the first job keeps the bare name, later ones are prefixed with their job name
		for k, v := range j.Parameters {
			if _, found := details.Parameters[k]; found {
				details.Parameters[fmt.Sprintf("%s_%s", j.Name, k)] = v
				continue
			}
			details.Parameters[k] = v
		}
	}

	if details.Status != WorkflowStatusSucceeded {
		return details, nil
	}

	key := artifact.CompiledWorkflowKey(id)
	exists, err := m.artifacts.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := m.compile(ctx, key, jobs); err != nil {
			return nil, err
		}
	}

	url, err := m.artifacts.PresignedGetURL(ctx, key)
	if err != nil {
		return nil, err
	}
	details.ArtifactsDownloadURL = url
	return details, nil
}

// compile merges the result blobs of every job into a single object, later jobs win.
func (m *MLflowTracking) compile(ctx context.Context, key string, jobs []TrackedJob) error {
	logger := log.NewDebugLogger("tracking").
		WithContext(ctx).
		Operation("compile_workflow_results").
		WithString("key", key).
		Build()

	compiled := artifact.NewJobResultObject()
	for _, j := range jobs {
		uri := resultPath(j.Parameters)
		if uri == "" {
			continue
		}
		objectKey, err := artifact.KeyFromURI(uri)
		if err != nil {
			logger.Error(err).Log()
			return err
		}
		data, err := m.artifacts.GetObject(ctx, objectKey)
		if err != nil {
			logger.Error(err).WithString("job", j.Name).Log()
			return err
		}
		result, err := artifact.DecodeJobResult(data)
		if err != nil {
			logger.Error(err).WithString("job", j.Name).Log()
			return err
		}
		for _, collision := range compiled.Merge(result) {
			zap.S().Named("tracking").Warnw("overwriting compiled result key", "key", collision, "job", j.Name)
		}
	}

	data, err := compiled.Encode()
	if err != nil {
		return err
	}
	if err := m.artifacts.PutObject(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		logger.Error(err).Log()
		return err
	}

	logger.Success().WithInt("jobs", len(jobs)).Log()
	return nil
}

// resultPath returns the first parameter, by name, pointing to a result blob.
func resultPath(params map[string]string) string {
	names := make([]string, 0, len(params))
	for k := range params {
		if strings.HasSuffix(k, s3PathParamSuffix) {
			names = append(names, k)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return params[names[0]]
}

func (m *MLflowTracking) UpdateWorkflowStatus(ctx context.Context, id string, status WorkflowStatus) error {
	runStatus, found := workflowToRunStatus[status]
	if !found {
		return fmt.Errorf("unknown workflow status %q", status)
	}
	if err := m.api.SetTag(ctx, id, tagStatus, string(status)); err != nil {
		return err
	}
	return m.api.UpdateRun(ctx, id, runStatus)
}

func (m *MLflowTracking) DeleteWorkflow(ctx context.Context, id string) (*Workflow, error) {
	run, err := m.fetchRun(ctx, id)
	if err != nil {
		return nil, err
	}
	jobs, err := m.listJobs(ctx, run.Info.ExperimentID, id)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if err := m.api.DeleteRun(ctx, j.ID); err != nil && !client.IsNotFound(err) {
			return nil, err
		}
	}
	if err := m.api.DeleteRun(ctx, id); err != nil {
		return nil, err
	}

	workflow := toWorkflow(*run)
	return &workflow, nil
}

func (m *MLflowTracking) ListWorkflowJobs(ctx context.Context, workflowID string) ([]TrackedJob, error) {
	run, err := m.fetchRun(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return m.listJobs(ctx, run.Info.ExperimentID, workflowID)
}

func (m *MLflowTracking) CreateJob(ctx context.Context, experimentID, workflowID, name, jobID string) (string, error) {
	run, err := m.api.CreateRun(ctx, experimentID, name, []client.Tag{
		{Key: tagParentRunID, Value: workflowID},
		{Key: tagRunName, Value: name},
	})
	if err != nil {
		return "", err
	}
	if err := m.api.LogParam(ctx, run.Info.RunID, paramJobID, jobID); err != nil {
		return "", err
	}
	return run.Info.RunID, nil
}

func (m *MLflowTracking) UpdateJob(ctx context.Context, runID string, outputs RunOutputs) error {
	for k, v := range outputs.Metrics {
		if err := m.api.LogMetric(ctx, runID, k, v); err != nil {
			return err
		}
	}
	for k, v := range outputs.Parameters {
		if err := m.api.LogParam(ctx, runID, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (m *MLflowTracking) HealthCheck(ctx context.Context) error {
	return m.api.HealthCheck(ctx)
}

func (m *MLflowTracking) fetchRun(ctx context.Context, id string) (*client.Run, error) {
	run, err := m.api.GetRun(ctx, id)
	if err != nil {
		if client.IsNotFound(err) {
			return nil, fmt.Errorf("%w: workflow %s", ErrNotFound, id)
		}
		return nil, err
	}
	if run.Info.LifecycleStage == lifecycleDeleted {
		return nil, fmt.Errorf("%w: workflow %s", ErrNotFound, id)
	}
	return run, nil
}

func (m *MLflowTracking) listJobs(ctx context.Context, experimentID, workflowID string) ([]TrackedJob, error) {
	runs, err := m.api.SearchRuns(ctx, experimentID, fmt.Sprintf("tags.%s = '%s'", tagParentRunID, workflowID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Info.StartTime < runs[j].Info.StartTime })

	jobs := make([]TrackedJob, 0, len(runs))
	for _, r := range runs {
		if r.Info.LifecycleStage == lifecycleDeleted {
			continue
		}
		jobs = append(jobs, toTrackedJob(r))
	}
	return jobs, nil
}

func toExperiment(e client.MLflowExperiment) *Experiment {
	exp := &Experiment{
		ID:          e.ExperimentID,
		Name:        e.Name,
		Description: e.Tag("description"),
		Dataset:     e.Tag("dataset"),
		MaxSamples:  -1,
		CreatedAt:   time.UnixMilli(e.CreationTime),
		UpdatedAt:   time.UnixMilli(e.LastUpdateTime),
		Workflows:   []WorkflowDetails{},
	}
	if raw := e.Tag("task_definition"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &exp.TaskDefinition)
	}
	if n, err := strconv.Atoi(e.Tag("max_samples")); err == nil {
		exp.MaxSamples = n
	}
	return exp
}

func toWorkflow(r client.Run) Workflow {
	return Workflow{
		ID:           r.Info.RunID,
		ExperimentID: r.Info.ExperimentID,
		Name:         r.Tag(tagRunName),
		Description:  r.Tag("description"),
		Model:        r.Tag("model"),
		SystemPrompt: r.Tag("system_prompt"),
		Status:       WorkflowStatus(r.Tag(tagStatus)),
		CreatedAt:    time.UnixMilli(r.Info.StartTime),
	}
}

func toTrackedJob(r client.Run) TrackedJob {
	job := TrackedJob{
		ID:         r.Info.RunID,
		Name:       r.Tag(tagRunName),
		StartTime:  time.UnixMilli(r.Info.StartTime),
		Metrics:    map[string]float64{},
		Parameters: map[string]string{},
	}
	for _, metric := range r.Data.Metrics {
		job.Metrics[metric.Key] = metric.Value
	}
	for _, p := range r.Data.Params {
		job.Parameters[p.Key] = p.Value
	}
	job.JobID = job.Parameters[paramJobID]
	return job
}
