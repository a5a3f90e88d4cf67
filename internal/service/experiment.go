package service

import (
	"context"
	"errors"

	"github.com/mozilla-ai/lumigator/internal/service/mappers"
	"github.com/mozilla-ai/lumigator/internal/tracking"
	"github.com/mozilla-ai/lumigator/pkg/log"
	"golang.org/x/sync/errgroup"
)

const workflowFetchConcurrency = 8

// WorkflowManager is what experiments need from the workflow service.
type WorkflowManager interface {
	Get(ctx context.Context, id string) (*tracking.WorkflowDetails, error)
	Delete(ctx context.Context, id string, force bool) (*tracking.Workflow, error)
}

type ExperimentService struct {
	tracking  tracking.Client
	workflows WorkflowManager
	datasets  DatasetSource
	logger    *log.StructuredLogger
}

func NewExperimentService(trackingClient tracking.Client, workflows WorkflowManager, datasets DatasetSource) *ExperimentService {
	return &ExperimentService{
		tracking:  trackingClient,
		workflows: workflows,
		datasets:  datasets,
		logger:    log.NewDebugLogger("experiment_service"),
	}
}

func (es *ExperimentService) Create(ctx context.Context, form mappers.ExperimentCreateForm) (*tracking.Experiment, error) {
	tracer := es.logger.WithContext(ctx).Operation("create_experiment").
		WithString("name", form.Name).
		WithString("task", form.Task).
		WithUUID("dataset_id", form.Dataset).
		Build()

	if err := ValidateTask(form.Task, form.SourceLanguage, form.TargetLanguage); err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	if _, err := es.datasets.Get(ctx, form.Dataset); err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	experiment, err := es.tracking.CreateExperiment(ctx, form.ToTracking())
	if err != nil {
		tracer.Error(err).Log()
		if errors.Is(err, tracking.ErrConflict) {
			return nil, NewErrValidation("experiment %q already exists", form.Name)
		}
		return nil, NewErrUpstream("mlflow", err)
	}

	tracer.Success().WithString("experiment_id", experiment.ID).Log()
	return experiment, nil
}

// Get returns the experiment with every one of its workflows.
func (es *ExperimentService) Get(ctx context.Context, id string) (*tracking.Experiment, error) {
	tracer := es.logger.WithContext(ctx).Operation("get_experiment").WithString("experiment_id", id).Build()

	experiment, err := es.tracking.GetExperiment(ctx, id)
	if err != nil {
		tracer.Error(err).Log()
		return nil, trackingError(err, NewErrExperimentNotFound(id))
	}

	ids, err := es.tracking.ListWorkflowIDs(ctx, id)
	if err != nil {
		tracer.Error(err).Log()
		return nil, trackingError(err, NewErrExperimentNotFound(id))
	}

	workflows := make([]*tracking.WorkflowDetails, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workflowFetchConcurrency)
	for i, wid := range ids {
		g.Go(func() error {
			details, err := es.workflows.Get(gctx, wid)
			if err != nil {
				var notFound *ErrResourceNotFound
				if errors.As(err, &notFound) {
					// deleted meanwhile
					return nil
				}
				return err
			}
			workflows[i] = details
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	experiment.Workflows = make([]tracking.WorkflowDetails, 0, len(workflows))
	for _, w := range workflows {
		if w != nil {
			experiment.Workflows = append(experiment.Workflows, *w)
		}
	}

	tracer.Success().WithInt("workflows", len(experiment.Workflows)).Log()
	return experiment, nil
}

func (es *ExperimentService) List(ctx context.Context, skip, limit int) ([]tracking.Experiment, int, error) {
	tracer := es.logger.WithContext(ctx).Operation("list_experiments").
		WithInt("skip", skip).
		WithInt("limit", limit).
		Build()

	experiments, total, err := es.tracking.ListExperiments(ctx, skip, limit)
	if err != nil {
		tracer.Error(err).Log()
		return nil, 0, NewErrUpstream("mlflow", err)
	}

	tracer.Success().WithInt("count", len(experiments)).WithInt("total", total).Log()
	return experiments, total, nil
}

// Delete deletes the experiment and all of its workflows, running ones included.
func (es *ExperimentService) Delete(ctx context.Context, id string) error {
	tracer := es.logger.WithContext(ctx).Operation("delete_experiment").WithString("experiment_id", id).Build()

	if _, err := es.tracking.GetExperiment(ctx, id); err != nil {
		tracer.Error(err).Log()
		return trackingError(err, NewErrExperimentNotFound(id))
	}

	ids, err := es.tracking.ListWorkflowIDs(ctx, id)
	if err != nil {
		tracer.Error(err).Log()
		return trackingError(err, NewErrExperimentNotFound(id))
	}
	for _, wid := range ids {
		if _, err := es.workflows.Delete(ctx, wid, true); err != nil {
			var notFound *ErrResourceNotFound
			if errors.As(err, &notFound) {
				continue
			}
			tracer.Error(err).Log()
			return err
		}
		tracer.Step("delete_workflow").WithString("workflow_id", wid).Log()
	}

	if err := es.tracking.DeleteExperiment(ctx, id); err != nil {
		tracer.Error(err).Log()
		return trackingError(err, NewErrExperimentNotFound(id))
	}

	tracer.Success().WithInt("workflows", len(ids)).Log()
	return nil
}
