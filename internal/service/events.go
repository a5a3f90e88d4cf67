package service

import (
	"context"

	"github.com/mozilla-ai/lumigator/internal/events"
	"github.com/mozilla-ai/lumigator/internal/store/model"
	"github.com/mozilla-ai/lumigator/internal/tracking"
	"go.uber.org/zap"
)

// EventPublisher receives job and workflow lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, kind string, body any) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }

func publishJobEvent(ctx context.Context, p EventPublisher, job *model.Job) {
	err := p.Publish(ctx, events.JobMessageKind, events.JobEvent{
		JobID:        job.ID.String(),
		JobType:      string(job.JobType),
		Status:       job.Status,
		ExperimentID: job.ExperimentID,
	})
	if err != nil {
		zap.S().Named("job_service").Warnw("failed to publish job event", "job_id", job.ID, "error", err)
	}
}

func publishWorkflowEvent(ctx context.Context, p EventPublisher, workflowID, experimentID string, status tracking.WorkflowStatus) {
	err := p.Publish(ctx, events.WorkflowMessageKind, events.WorkflowEvent{
		WorkflowID:   workflowID,
		ExperimentID: experimentID,
		Status:       string(status),
	})
	if err != nil {
		zap.S().Named("workflow_service").Warnw("failed to publish workflow event", "workflow_id", workflowID, "error", err)
	}
}
