package tracking

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found in tracking")
	ErrConflict = errors.New("name already exists in tracking")
)

// Client records experiments, their workflows and the jobs of each workflow.
type Client interface {
	CreateExperiment(ctx context.Context, req ExperimentCreate) (*Experiment, error)
	// GetExperiment returns the experiment without its workflows.
	GetExperiment(ctx context.Context, id string) (*Experiment, error)
	ListExperiments(ctx context.Context, skip, limit int) ([]Experiment, int, error)
	DeleteExperiment(ctx context.Context, id string) error
	ListWorkflowIDs(ctx context.Context, experimentID string) ([]string, error)

	CreateWorkflow(ctx context.Context, req WorkflowCreate) (*Workflow, error)
	// GetWorkflow compiles the results of a succeeded workflow on first read.
	GetWorkflow(ctx context.Context, id string) (*WorkflowDetails, error)
	UpdateWorkflowStatus(ctx context.Context, id string, status WorkflowStatus) error
	DeleteWorkflow(ctx context.Context, id string) (*Workflow, error)

	// ListWorkflowJobs returns the jobs of a workflow ordered by start time.
	ListWorkflowJobs(ctx context.Context, workflowID string) ([]TrackedJob, error)
	CreateJob(ctx context.Context, experimentID, workflowID, name, jobID string) (string, error)
	UpdateJob(ctx context.Context, runID string, outputs RunOutputs) error

	HealthCheck(ctx context.Context) error
}
